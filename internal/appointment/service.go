package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/carelink-scheduling/internal/redis"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

const (
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentLapsed    = "APPOINTMENT_LAPSED"
	EventChatRoomOpened       = "CHAT_ROOM_OPENED"
	EventChatRoomClosed       = "CHAT_ROOM_CLOSED"
)

const doctorListKey = "doctors:all"

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	catalog  schedule.Catalog
	cache    redisclient.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

// WithCache caches the doctor directory for ttl.
func WithCache(c redisclient.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(repo Repository, locker redisclient.Locker, catalog schedule.Catalog, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		locker:  locker,
		catalog: catalog,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer("github.com/hackgods/carelink-scheduling/internal/appointment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() schedule.Catalog { return s.catalog }

// AttemptBook validates a slot selection and writes a pending appointment.
// Taken slots are re-read at write time under a doctor-day lock, and the
// storage uniqueness constraint settles any race the lock lets through.
func (s *Service) AttemptBook(ctx context.Context, req BookingRequest, now time.Time) (appt *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.AttemptBook", trace.WithAttributes(
		attribute.String("doctor.id", req.DoctorID.String()),
		attribute.String("slot", req.Slot),
	))
	start := time.Now()
	defer func() {
		s.metrics.ObserveBooking(bookingOutcome(err), time.Since(start))
		endSpan(span, err)
	}()

	if !req.Actor.Authenticated() {
		return nil, ErrUnauthenticated
	}

	slot, err := s.catalog.Parse(req.Slot)
	if err != nil {
		return nil, err
	}

	day := s.catalog.Date(req.Day)
	if s.catalog.Expired(day, slot, now) {
		return nil, ErrSlotExpired
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if !doctor.Available {
		return nil, ErrDoctorUnavailable
	}

	if _, err := s.repo.GetPatientByID(ctx, req.Actor.UserID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment
	err = s.withLock(ctx, doctor.ID, day, func(lockCtx context.Context) error {
		taken, err := s.takenSlots(lockCtx, doctor.ID, day)
		if err != nil {
			return err
		}
		for _, t := range taken {
			if t == slot {
				return ErrSlotTaken
			}
		}

		at := s.catalog.At(day, slot)
		a, err := s.repo.CreatePendingAppointment(lockCtx, NewAppointment{
			DoctorID:    doctor.ID,
			PatientID:   req.Actor.UserID,
			ScheduledAt: at,
			Notes:       strings.TrimSpace(req.Notes),
			Event: s.newEvent(EventAppointmentRequested, map[string]any{
				"doctor_id":    doctor.ID.String(),
				"patient_id":   req.Actor.UserID.String(),
				"scheduled_at": at,
			}),
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return err
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}
		created = a
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBusy
		}
		return nil, err
	}

	s.logger.Info("appointment requested",
		zap.String("appointment_id", created.ID.String()),
		zap.String("doctor_id", created.DoctorID.String()),
		zap.Time("scheduled_at", created.ScheduledAt),
	)
	return created, nil
}

func (s *Service) withLock(ctx context.Context, doctorID uuid.UUID, day time.Time, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithDoctorDayLock(ctx, doctorID, day.Format(schedule.DateLayout), fn)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		// the unique index still settles races
		s.logger.Warn("booking without doctor-day lock", zap.String("doctor_id", doctorID.String()), zap.Error(err))
		return fn(ctx)
	}
	return err
}

// Confirm moves a pending appointment to confirmed and makes sure it has an
// open chat room. Confirming an already confirmed appointment only
// reconciles the room, so repeated calls return the same room.
func (s *Service) Confirm(ctx context.Context, id, actingDoctorID uuid.UUID) (_ *Appointment, _ *ChatRoom, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Confirm", trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer func() { endSpan(span, err) }()

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !IsAssignedDoctor(appt, actingDoctorID) {
		return nil, nil, ErrForbidden
	}

	switch appt.Status {
	case StatusConfirmed:
	case StatusPending:
		updated, err := s.transition(ctx, Transition{
			ID:    appt.ID,
			From:  []Status{StatusPending},
			To:    StatusConfirmed,
			Event: s.newEvent(EventAppointmentConfirmed, map[string]any{"doctor_id": actingDoctorID.String()}),
		})
		switch {
		case err == nil:
			appt = updated
		case errors.Is(err, ErrInvalidStatusTransition):
			// a concurrent confirm is fine, anything else is not
			appt, err = s.load(ctx, id)
			if err != nil {
				return nil, nil, err
			}
			if appt.Status != StatusConfirmed {
				return nil, nil, ErrInvalidStatusTransition
			}
		default:
			return nil, nil, err
		}
	default:
		return nil, nil, ErrInvalidStatusTransition
	}

	room, err := s.ensureRoomOpen(ctx, appt)
	if err != nil {
		return nil, nil, err
	}
	return appt, room, nil
}

func (s *Service) ensureRoomOpen(ctx context.Context, appt *Appointment) (*ChatRoom, error) {
	room, err := s.repo.GetChatRoomByAppointment(ctx, appt.ID)
	switch {
	case errors.Is(err, ErrChatRoomNotFound):
		var created bool
		room, created, err = s.repo.CreateChatRoom(ctx, appt)
		if err != nil {
			return nil, fmt.Errorf("create chat room: %w", err)
		}
		if created {
			s.metrics.ObserveChatRoomOpened()
			s.logEvent(ctx, appt.ID, EventChatRoomOpened, map[string]any{"room_id": room.ID.String()})
		}
		if room.Status == RoomOpen {
			return room, nil
		}
	case err != nil:
		return nil, fmt.Errorf("load chat room: %w", err)
	case room.Status == RoomOpen:
		return room, nil
	}

	reopened, err := s.repo.SetChatRoomStatus(ctx, room.ID, RoomOpen)
	if err != nil {
		return nil, fmt.Errorf("reopen chat room: %w", err)
	}
	s.metrics.ObserveChatRoomOpened()
	s.logEvent(ctx, appt.ID, EventChatRoomOpened, map[string]any{"room_id": reopened.ID.String(), "reopened": true})
	return reopened, nil
}

// Complete closes out a visit. Notes are written with the status change.
func (s *Service) Complete(ctx context.Context, id, actingDoctorID uuid.UUID, notes string) (_ *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Complete", trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer func() { endSpan(span, err) }()

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsAssignedDoctor(appt, actingDoctorID) {
		return nil, ErrForbidden
	}

	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrMissingNotes
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.transition(ctx, Transition{
		ID:    appt.ID,
		From:  []Status{StatusPending, StatusConfirmed},
		To:    StatusCompleted,
		Notes: &notes,
		Event: s.newEvent(EventAppointmentCompleted, map[string]any{"doctor_id": actingDoctorID.String()}),
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel withdraws an appointment on behalf of its patient and closes the
// chat room if one was opened.
func (s *Service) Cancel(ctx context.Context, id, actingPatientID uuid.UUID) (_ *Appointment, err error) {
	ctx, span := s.tracer.Start(ctx, "appointment.Cancel", trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer func() { endSpan(span, err) }()

	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !IsOwningPatient(appt, actingPatientID) {
		return nil, ErrForbidden
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.cancel(ctx, appt.ID, "patient")
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	event := EventAppointmentCancelled
	if reason == "lapsed" {
		event = EventAppointmentLapsed
	}
	updated, err := s.transition(ctx, Transition{
		ID:    id,
		From:  []Status{StatusPending, StatusConfirmed},
		To:    StatusCancelled,
		Event: s.newEvent(event, map[string]any{"reason": reason}),
	})
	if err != nil {
		return nil, err
	}

	if err := s.closeRoom(ctx, updated.ID); err != nil {
		// the cancellation stands even if the room update fails
		s.logger.Warn("close chat room after cancel",
			zap.String("appointment_id", updated.ID.String()),
			zap.Error(err),
		)
	}
	return updated, nil
}

func (s *Service) closeRoom(ctx context.Context, appointmentID uuid.UUID) error {
	room, err := s.repo.GetChatRoomByAppointment(ctx, appointmentID)
	if errors.Is(err, ErrChatRoomNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if room.Status == RoomClosed {
		return nil
	}
	if _, err := s.repo.SetChatRoomStatus(ctx, room.ID, RoomClosed); err != nil {
		return err
	}
	s.logEvent(ctx, appointmentID, EventChatRoomClosed, map[string]any{"room_id": room.ID.String()})
	return nil
}

// CancelLapsed cancels pending appointments that nobody confirmed before
// their start time plus grace. It returns how many were cancelled.
func (s *Service) CancelLapsed(ctx context.Context, now time.Time, grace time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	candidates, err := s.repo.FindLapsedPending(ctx, now.Add(-grace), limit)
	if err != nil {
		return 0, fmt.Errorf("find lapsed pending appointments: %w", err)
	}

	n := 0
	for _, appt := range candidates {
		if _, err := s.cancel(ctx, appt.ID, "lapsed"); err != nil {
			if !errors.Is(err, ErrInvalidStatusTransition) {
				s.logger.Error("cancel lapsed appointment",
					zap.String("appointment_id", appt.ID.String()),
					zap.Error(err),
				)
			}
			continue
		}
		n++
	}

	s.metrics.ObserveLapsed(n)
	return n, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// transition runs one conditional update. Losing a race to another writer
// surfaces as ErrInvalidStatusTransition.
func (s *Service) transition(ctx context.Context, t Transition) (*Appointment, error) {
	updated, err := s.repo.UpdateStatus(ctx, t)
	if err != nil {
		if errors.Is(err, errStatusChanged) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment %s to %s: %w", t.ID, t.To, err)
	}
	s.metrics.ObserveTransition(string(t.To))
	return updated, nil
}

// TakenSlots reduces the doctor's non-cancelled appointments on day to slots.
func (s *Service) TakenSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]schedule.Slot, error) {
	return s.takenSlots(ctx, doctorID, s.catalog.Date(day))
}

func (s *Service) takenSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]schedule.Slot, error) {
	from, to := s.catalog.DayBounds(day)
	appts, err := s.repo.ListActiveByDoctorBetween(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}

	seen := make(map[schedule.Slot]bool, len(appts))
	out := make([]schedule.Slot, 0, len(appts))
	for _, a := range appts {
		slot, ok := s.catalog.SlotOf(a.ScheduledAt)
		if !ok || seen[slot] {
			continue
		}
		seen[slot] = true
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Availability is the doctor view of a day: the catalog, the slots already
// taken, and what is still selectable at now.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, day, now time.Time) (*Availability, error) {
	if _, err := s.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	day = s.catalog.Date(day)
	taken, err := s.takenSlots(ctx, doctorID, day)
	if err != nil {
		return nil, err
	}

	var open []schedule.Slot
	if !day.Before(s.catalog.Date(now)) {
		open = schedule.Selectable(s.catalog.AvailableSlots(day, now), taken)
	}

	return &Availability{
		DoctorID: doctorID,
		Day:      day,
		Catalog:  s.catalog.Slots(),
		Open:     open,
		Taken:    taken,
	}, nil
}

// ListDoctors returns the directory ordered by name, served from cache when
// one is configured. Cache failures fall through to the database.
func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	if s.cache != nil {
		raw, ok, err := s.cache.Get(ctx, doctorListKey)
		if err != nil {
			s.logger.Warn("doctor cache read", zap.Error(err))
		}
		if ok {
			var cached []Doctor
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(doctors); err == nil {
			if err := s.cache.Set(ctx, doctorListKey, raw, s.cacheTTL); err != nil {
				s.logger.Warn("doctor cache write", zap.Error(err))
			}
		}
	}
	return doctors, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return d, nil
}

// ActingDoctor resolves the doctor record behind a principal. Principals
// without one are forbidden from doctor operations.
func (s *Service) ActingDoctor(ctx context.Context, p auth.Principal) (*Doctor, error) {
	if !p.Authenticated() {
		return nil, ErrUnauthenticated
	}
	d, err := s.repo.GetDoctorByUserID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("resolve doctor: %w", err)
	}
	return d, nil
}

// GetAppointment returns an appointment with its doctor, patient and room,
// visible only to the two participants.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor auth.Principal) (*AppointmentDetail, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthenticated
	}
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if !IsParticipant(detail, actor.UserID) {
		return nil, ErrForbidden
	}
	return detail, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = page(limit, offset)
	out, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return out, nil
}

func (s *Service) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	limit, offset = page(limit, offset)
	out, err := s.repo.ListAppointmentsByDoctor(ctx, doctorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return out, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// newEvent builds an event row; the repository fills in the appointment id
// when the event rides along with a write.
func (s *Service) newEvent(eventType string, payload map[string]any) *EventLog {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}
	return &EventLog{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
}

// logEvent records a side event (chat room changes) on its own. A failure is
// logged and does not undo the change it describes.
func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	ev := s.newEvent(eventType, payload)
	apptID := appointmentID
	ev.AppointmentID = &apptID

	if err := s.repo.InsertEvent(ctx, *ev); err != nil {
		s.logger.Error("insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeBooked
	case errors.Is(err, ErrSlotTaken):
		return metrics.OutcomeSlotTaken
	case errors.Is(err, ErrSlotBusy):
		return metrics.OutcomeSlotBusy
	case errors.Is(err, ErrSlotExpired):
		return metrics.OutcomeSlotExpired
	case errors.Is(err, ErrInvalidSlot):
		return metrics.OutcomeInvalidSlot
	case errors.Is(err, ErrUnauthenticated):
		return metrics.OutcomeUnauthenticated
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrDoctorUnavailable):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
