package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/auth"
)

type RouterConfig struct {
	Appointments  AppointmentService
	Prescriptions PrescriptionService
	Assistant     AssistantService
	Verifier      *auth.Verifier
	Health        *HealthHandler
	Metrics       http.Handler
	Logger        *zap.Logger
	ServiceName   string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	h := &handlers{
		appointments:  cfg.Appointments,
		prescriptions: cfg.Prescriptions,
		assistant:     cfg.Assistant,
		logger:        logger,
		now:           now,
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(RecoverMiddleware(logger))
	r.Use(LoggingMiddleware(logger))

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.ServiceName != "" {
			r.Use(TracingMiddleware(cfg.ServiceName))
		}
		r.Use(AuthMiddleware(cfg.Verifier))

		r.Get("/slots", h.listSlots)
		r.Get("/doctors", h.listDoctors)
		r.Get("/doctors/{id}", h.getDoctor)
		r.Get("/doctors/{id}/availability", h.doctorAvailability)

		r.Post("/appointments", h.bookAppointment)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Post("/appointments/{id}/confirm", h.confirmAppointment)
		r.Post("/appointments/{id}/complete", h.completeAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Get("/me/appointments", h.listMyAppointments)
		r.Get("/doctor/appointments", h.listDoctorAppointments)

		if cfg.Prescriptions != nil {
			r.Post("/prescriptions", h.issuePrescription)
			r.Get("/me/prescriptions", h.listMyPrescriptions)
			r.Post("/prescriptions/{id}/refill", h.refillPrescription)
			r.Post("/prescriptions/{id}/orders", h.orderMedication)
			r.Get("/me/orders", h.listMyOrders)
			r.Get("/orders/{id}", h.getOrder)
		}
		if cfg.Assistant != nil {
			r.Post("/assistant/summary", h.summarize)
		}
	})

	return r
}
