package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/appointment"
	"github.com/hackgods/carelink-scheduling/internal/assistant"
	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/prescription"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

type AppointmentService interface {
	Catalog() schedule.Catalog
	AttemptBook(ctx context.Context, req appointment.BookingRequest, now time.Time) (*appointment.Appointment, error)
	Confirm(ctx context.Context, id, doctorID uuid.UUID) (*appointment.Appointment, *appointment.ChatRoom, error)
	Complete(ctx context.Context, id, doctorID uuid.UUID, notes string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id, patientID uuid.UUID) (*appointment.Appointment, error)
	Availability(ctx context.Context, doctorID uuid.UUID, day, now time.Time) (*appointment.Availability, error)
	ListDoctors(ctx context.Context) ([]appointment.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*appointment.Doctor, error)
	ActingDoctor(ctx context.Context, p auth.Principal) (*appointment.Doctor, error)
	GetAppointment(ctx context.Context, id uuid.UUID, actor auth.Principal) (*appointment.AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]appointment.AppointmentDetail, error)
}

type PrescriptionService interface {
	Issue(ctx context.Context, doctorID uuid.UUID, req prescription.IssueRequest) (*prescription.Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]prescription.Prescription, error)
	RequestRefill(ctx context.Context, id, patientID uuid.UUID) (*prescription.Prescription, error)
	OrderMedication(ctx context.Context, prescriptionID, patientID uuid.UUID) (*prescription.Order, error)
	ListOrders(ctx context.Context, patientID uuid.UUID) ([]prescription.Order, error)
	GetOrder(ctx context.Context, id, patientID uuid.UUID) (*prescription.Order, error)
}

type AssistantService interface {
	Summarize(ctx context.Context, actor auth.Principal, req assistant.Request) (*assistant.Summary, error)
}

type handlers struct {
	appointments  AppointmentService
	prescriptions PrescriptionService
	assistant     AssistantService
	logger        *zap.Logger
	now           func() time.Time
}

// principal returns the authenticated caller or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p := auth.FromContext(r.Context())
	if !p.Authenticated() {
		writeError(w, http.StatusUnauthorized, "unauthenticated", appointment.ErrUnauthenticated.Error())
		return p, false
	}
	return p, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// dateQuery reads ?date=, defaulting to today in the clinic location.
func (h *handlers) dateQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	c := h.appointments.Catalog()
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return c.Date(h.now()), true
	}
	d, err := c.ParseDate(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func (h *handlers) listSlots(w http.ResponseWriter, r *http.Request) {
	day, ok := h.dateQuery(w, r)
	if !ok {
		return
	}
	c := h.appointments.Catalog()
	now := h.now()

	slots := schedule.Labels(c.AvailableSlots(day, now))
	writeJSON(w, http.StatusOK, SlotsResponse{
		Date:              day.Format(schedule.DateLayout),
		AvailableSlots:    slots,
		HasAvailableSlots: len(slots) > 0,
		MinSelectableDate: c.MinSelectableDate(now).Format(schedule.DateLayout),
	})
}

func principalOf(r *http.Request) auth.Principal {
	return auth.FromContext(r.Context())
}
