package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/config"
	"github.com/hackgods/carelink-scheduling/internal/db"
	"github.com/hackgods/carelink-scheduling/internal/logging"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	ConfirmRatio float64
	ReadRatio    float64
	PatientLimit int
	DaysAhead    int
	// Stampede sends Workers concurrent bookings for one slot before the
	// mixed load starts and checks that exactly one wins.
	Stampede bool
}

type doctorRef struct {
	ID    uuid.UUID
	Token string
}

type booked struct {
	ID           uuid.UUID
	PatientToken string
	DoctorToken  string
}

type DataPool struct {
	PatientTokens []string
	Doctors       []doctorRef
	Slots         []string

	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	i := n * p / 100
	if i >= n {
		i = n - 1
	}
	return i
}

type Metrics struct {
	Booking      OperationMetrics
	Confirm      OperationMetrics
	ReadByID     OperationMetrics
	ListMine     OperationMetrics
	Availability OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  *zap.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := logging.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("simulate")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("booking", cfg.BookingRatio),
		zap.Float64("confirm", cfg.ConfirmRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	catalog, err := schedule.NewCatalog(baseCfg.SlotFirstHour, baseCfg.SlotLastHour, baseCfg.ClinicLocation)
	if err != nil {
		logger.Fatal("slot catalog", zap.Error(err))
	}

	dataPool, err := loadDataPool(ctx, pgPool, auth.NewVerifier(baseCfg.JWTSecret), catalog, cfg)
	if err != nil {
		logger.Fatal("load data pool", zap.Error(err))
	}
	logger.Info("data loaded",
		zap.Int("patients", len(dataPool.PatientTokens)),
		zap.Int("doctors", len(dataPool.Doctors)),
	)

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	if cfg.Stampede {
		sim.Stampede(catalog)
	}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.2),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 2000),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 7),
		Stampede:     getEnv("SIM_STAMPEDE", "true") == "true",
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.ReadRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

// loadDataPool mints tokens for seeded patients and doctors with logins and
// lists the bookable (date, slot) pairs from tomorrow on.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, v *auth.Verifier, catalog schedule.Catalog, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id, full_name FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	for rows.Next() {
		var p auth.Principal
		if err := rows.Scan(&p.UserID, &p.FullName); err != nil {
			rows.Close()
			return nil, err
		}
		p.Role = auth.RolePatient
		tok, err := v.Issue(p, cfg.Duration+time.Hour)
		if err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.PatientTokens = append(dataPool.PatientTokens, tok)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `SELECT id, user_id FROM doctors WHERE available AND user_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	for rows.Next() {
		var d doctorRef
		var userID uuid.UUID
		if err := rows.Scan(&d.ID, &userID); err != nil {
			rows.Close()
			return nil, err
		}
		d.Token, err = v.Issue(auth.Principal{UserID: userID, Role: auth.RoleDoctor}, cfg.Duration+time.Hour)
		if err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tomorrow := catalog.Date(time.Now()).AddDate(0, 0, 1)
	for d := 0; d < cfg.DaysAhead; d++ {
		day := tomorrow.AddDate(0, 0, d).Format(schedule.DateLayout)
		for _, s := range catalog.Slots() {
			dataPool.Slots = append(dataPool.Slots, day+" "+s.String())
		}
	}

	if len(dataPool.PatientTokens) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors with logins loaded")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info("starting mixed load", zap.Duration("duration", s.config.Duration), zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info("simulation complete")
}

// Stampede books the same doctor slot from every worker at once.
func (s *Simulator) Stampede(catalog schedule.Catalog) {
	doc := s.pool.Doctors[0]
	day := catalog.Date(time.Now()).AddDate(0, 0, s.config.DaysAhead+1).Format(schedule.DateLayout)
	slot := catalog.Last().String()

	var created, conflicts, other atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := s.pool.PatientTokens[i%len(s.pool.PatientTokens)]
			<-start
			status, _, err := s.book(context.Background(), tok, doc.ID, day, slot)
			switch {
			case err != nil:
				other.Add(1)
			case status == http.StatusCreated:
				created.Add(1)
			case status == http.StatusConflict:
				conflicts.Add(1)
			default:
				other.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	fields := []zap.Field{
		zap.String("doctor_id", doc.ID.String()),
		zap.String("date", day),
		zap.String("slot", slot),
		zap.Int64("created", created.Load()),
		zap.Int64("conflicts", conflicts.Load()),
		zap.Int64("other", other.Load()),
	}
	if created.Load() > 1 {
		s.logger.Error("stampede produced more than one booking for a slot", fields...)
		return
	}
	s.logger.Info("stampede finished", fields...)
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if r < s.config.BookingRatio+s.config.ConfirmRatio {
				s.doConfirm(ctx, rng)
			} else {
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListMine(ctx, rng)
				case 2:
					s.doAvailability(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) request(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.client.Do(req)
}

func (s *Simulator) book(ctx context.Context, token string, doctorID uuid.UUID, day, slot string) (int, uuid.UUID, error) {
	resp, err := s.request(ctx, http.MethodPost, "/appointments", token, map[string]string{
		"doctor_id": doctorID.String(),
		"date":      day,
		"slot":      slot,
	})
	if err != nil {
		return 0, uuid.Nil, err
	}
	defer resp.Body.Close()

	var appt struct {
		ID uuid.UUID `json:"id"`
	}
	if resp.StatusCode == http.StatusCreated {
		_ = json.NewDecoder(resp.Body).Decode(&appt)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode, appt.ID, nil
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doc := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	tok := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]
	day, slot, _ := strings.Cut(s.pool.Slots[rng.Intn(len(s.pool.Slots))], " ")

	start := time.Now()
	status, id, err := s.book(ctx, tok, doc.ID, day, slot)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	if success && id != uuid.Nil {
		s.pool.AddAppointment(booked{ID: id, PatientToken: tok, DoctorToken: doc.Token})
	}
	s.metrics.Booking.Record(latency, success, err == nil && status == http.StatusConflict)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	resp, err := s.request(ctx, http.MethodPost, "/appointments/"+appt.ID.String()+"/confirm", appt.DoctorToken, nil)
	latency := time.Since(start)

	success, conflict := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}
	s.metrics.Confirm.Record(latency, success, conflict)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	s.timedGet(ctx, &s.metrics.ReadByID, "/appointments/"+appt.ID.String(), appt.PatientToken)
}

func (s *Simulator) doListMine(ctx context.Context, rng *rand.Rand) {
	tok := s.pool.PatientTokens[rng.Intn(len(s.pool.PatientTokens))]
	s.timedGet(ctx, &s.metrics.ListMine, "/me/appointments?limit=20&offset=0", tok)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	doc := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	day, _, _ := strings.Cut(s.pool.Slots[rng.Intn(len(s.pool.Slots))], " ")
	s.timedGet(ctx, &s.metrics.Availability, "/doctors/"+doc.ID.String()+"/availability?date="+day, "")
}

func (s *Simulator) timedGet(ctx context.Context, om *OperationMetrics, path, token string) {
	start := time.Now()
	resp, err := s.request(ctx, http.MethodGet, path, token, nil)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("My appointments", &s.metrics.ListMine)
	printOperationReport("Doctor availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
