package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/carelink-scheduling/internal/redis"
)

// memRepo is an in-memory Repository that enforces the same one-live-booking
// rule as the partial unique index.
type memRepo struct {
	mu       sync.Mutex
	patients map[uuid.UUID]*Patient
	doctors  map[uuid.UUID]*Doctor
	appts    map[uuid.UUID]*Appointment
	rooms    map[uuid.UUID]*ChatRoom // by appointment id
	events   []EventLog

	listDoctorCalls int
	// beforeInsert runs ahead of CreatePendingAppointment, outside the lock.
	beforeInsert func()
	// failEvents makes every event write fail, taking the row change it
	// travels with down too.
	failEvents bool
}

var errEventWrite = errors.New("insert event log: connection reset")

// appendEvent must be called with mu held.
func (m *memRepo) appendEvent(appointmentID uuid.UUID, ev *EventLog) {
	if ev == nil {
		return
	}
	cp := *ev
	cp.ID = int64(len(m.events) + 1)
	cp.AppointmentID = &appointmentID
	m.events = append(m.events, cp)
}

func newMemRepo() *memRepo {
	return &memRepo{
		patients: make(map[uuid.UUID]*Patient),
		doctors:  make(map[uuid.UUID]*Doctor),
		appts:    make(map[uuid.UUID]*Appointment),
		rooms:    make(map[uuid.UUID]*ChatRoom),
	}
}

func (m *memRepo) addPatient(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.patients[id] = &Patient{ID: id, FullName: name}
	return id
}

func (m *memRepo) addDoctor(name string, available bool) *Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID := uuid.New()
	d := &Doctor{ID: uuid.New(), UserID: &userID, Name: name, Specialty: "General Practice", Available: available}
	m.doctors[d.ID] = d
	return d
}

// put stores an appointment as-is, skipping the uniqueness rule.
func (m *memRepo) put(a Appointment) *Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := a
	m.appts[a.ID] = &cp
	return &cp
}

func (m *memRepo) status(id uuid.UUID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appts[id].Status
}

func (m *memRepo) countAt(doctorID uuid.UUID, at time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appts {
		if a.DoctorID == doctorID && a.ScheduledAt.Equal(at) && a.Status != StatusCancelled {
			n++
		}
	}
	return n
}

func (m *memRepo) roomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *memRepo) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.EventType
	}
	return out
}

func (m *memRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) GetDoctorByUserID(_ context.Context, userID uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.doctors {
		if d.UserID != nil && *d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrDoctorNotFound
}

func (m *memRepo) ListDoctors(_ context.Context) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listDoctorCalls++
	out := make([]Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetAppointmentDetail(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	det := &AppointmentDetail{Appointment: *a}
	if d, ok := m.doctors[a.DoctorID]; ok {
		cp := *d
		det.Doctor = &cp
	}
	if p, ok := m.patients[a.PatientID]; ok {
		cp := *p
		det.Patient = &cp
	}
	if r, ok := m.rooms[a.ID]; ok {
		cp := *r
		det.Room = &cp
	}
	return det, nil
}

func (m *memRepo) ListActiveByDoctorBetween(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.Status == StatusCancelled {
			continue
		}
		if a.ScheduledAt.Before(from) || !a.ScheduledAt.Before(to) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) CreatePendingAppointment(_ context.Context, in NewAppointment) (*Appointment, error) {
	if m.beforeInsert != nil {
		m.beforeInsert()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appts {
		if a.DoctorID == in.DoctorID && a.ScheduledAt.Equal(in.ScheduledAt) && a.Status != StatusCancelled {
			return nil, ErrSlotTaken
		}
	}
	if in.Event != nil && m.failEvents {
		return nil, errEventWrite
	}

	now := time.Now()
	a := &Appointment{
		ID:          uuid.New(),
		DoctorID:    in.DoctorID,
		PatientID:   in.PatientID,
		ScheduledAt: in.ScheduledAt,
		Status:      StatusPending,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.appts[a.ID] = a
	m.appendEvent(a.ID, in.Event)
	cp := *a
	return &cp, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, t Transition) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[t.ID]
	if !ok {
		return nil, errStatusChanged
	}
	allowed := false
	for _, s := range t.From {
		if a.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, errStatusChanged
	}
	if t.Event != nil && m.failEvents {
		return nil, errEventWrite
	}
	a.Status = t.To
	if t.Notes != nil {
		a.Notes = *t.Notes
	}
	a.UpdatedAt = time.Now()
	m.appendEvent(a.ID, t.Event)
	cp := *a
	return &cp, nil
}

func (m *memRepo) GetChatRoomByAppointment(_ context.Context, appointmentID uuid.UUID) (*ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[appointmentID]
	if !ok {
		return nil, ErrChatRoomNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) CreateChatRoom(_ context.Context, a *Appointment) (*ChatRoom, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[a.ID]; ok {
		cp := *r
		return &cp, false, nil
	}
	r := &ChatRoom{ID: uuid.New(), AppointmentID: a.ID, DoctorID: a.DoctorID, PatientID: a.PatientID, Status: RoomOpen}
	m.rooms[a.ID] = r
	cp := *r
	return &cp, true, nil
}

func (m *memRepo) SetChatRoomStatus(_ context.Context, id uuid.UUID, status RoomStatus) (*ChatRoom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rooms {
		if r.ID == id {
			r.Status = status
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrChatRoomNotFound
}

func (m *memRepo) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	return m.list(func(a *Appointment) bool { return a.PatientID == patientID }, limit, offset), nil
}

func (m *memRepo) ListAppointmentsByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	return m.list(func(a *Appointment) bool { return a.DoctorID == doctorID }, limit, offset), nil
}

func (m *memRepo) list(match func(*Appointment) bool, limit, offset int) []AppointmentDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []AppointmentDetail
	for _, a := range m.appts {
		if match(a) {
			all = append(all, AppointmentDetail{Appointment: *a})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ScheduledAt.After(all[j].ScheduledAt) })
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (m *memRepo) FindLapsedPending(_ context.Context, cutoff time.Time, limit int) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appts {
		if a.Status == StatusPending && a.ScheduledAt.Before(cutoff) {
			out = append(out, *a)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failEvents {
		return errEventWrite
	}
	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, ev)
	return nil
}

// fakeLocker runs fn one caller at a time, or reports the lock as held
// when busy is set.
type fakeLocker struct {
	mu    sync.Mutex
	busy  bool
	down  bool
	calls int

	held sync.Mutex
}

func (l *fakeLocker) WithDoctorDayLock(ctx context.Context, _ uuid.UUID, _ string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.calls++
	busy, down := l.busy, l.down
	l.mu.Unlock()
	if down {
		return fmt.Errorf("%w: dial tcp: connection refused", redisclient.ErrLockUnavailable)
	}
	if busy {
		return redisclient.ErrLockNotAcquired
	}

	l.held.Lock()
	defer l.held.Unlock()
	return fn(ctx)
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}
