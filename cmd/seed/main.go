package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/config"
	"github.com/hackgods/carelink-scheduling/internal/db"
	"github.com/hackgods/carelink-scheduling/internal/logging"
)

var specialties = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("seed")

	doctors := envInt("SEED_DOCTORS", 20)
	patients := envInt("SEED_PATIENTS", 2000)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if _, err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	doctorUsers, err := seedDoctors(ctx, pool, faker, doctors)
	if err != nil {
		logger.Fatal("seed doctors", zap.Error(err))
	}
	logger.Info("doctors seeded", zap.Int("count", len(doctorUsers)))

	patientRows, err := seedPatients(ctx, pool, faker, patients)
	if err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}
	logger.Info("patients seeded", zap.Int64("count", patientRows))

	// Sample tokens so the API can be exercised straight away.
	v := auth.NewVerifier(cfg.JWTSecret)
	if len(doctorUsers) > 0 {
		tok, err := v.Issue(doctorUsers[0], 24*time.Hour)
		if err != nil {
			logger.Fatal("issue doctor token", zap.Error(err))
		}
		fmt.Printf("doctor token (%s):\n%s\n\n", doctorUsers[0].FullName, tok)
	}

	var p auth.Principal
	err = pool.QueryRow(ctx, `SELECT id, full_name, coalesce(email, '') FROM patients ORDER BY created_at DESC LIMIT 1`).
		Scan(&p.UserID, &p.FullName, &p.Email)
	if err != nil {
		logger.Fatal("load sample patient", zap.Error(err))
	}
	p.Role = auth.RolePatient
	tok, err := v.Issue(p, 24*time.Hour)
	if err != nil {
		logger.Fatal("issue patient token", zap.Error(err))
	}
	fmt.Printf("patient token (%s):\n%s\n", p.FullName, tok)
}

// seedDoctors gives every doctor a login so confirm and complete can be
// driven through the API.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) ([]auth.Principal, error) {
	out := make([]auth.Principal, 0, count)

	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			userID := uuid.New()
			name := "Dr. " + faker.Name()
			spec := specialties[faker.Number(0, len(specialties)-1)]

			_, err := tx.Exec(ctx, `
				INSERT INTO doctors (id, user_id, name, specialty, bio, image_url, available, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			`, uuid.New(), userID, name, spec, faker.Sentence(12), faker.URL(), faker.Float32Range(0, 1) > 0.1)
			if err != nil {
				return err
			}
			out = append(out, auth.Principal{UserID: userID, FullName: name, Role: auth.RoleDoctor})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int) (int64, error) {
	rows := make([][]any, 0, count)
	now := time.Now()
	for i := 0; i < count; i++ {
		rows = append(rows, []any{uuid.New(), faker.Name(), faker.Email(), now, now})
	}

	return pool.CopyFrom(ctx,
		pgx.Identifier{"patients"},
		[]string{"id", "full_name", "email", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
