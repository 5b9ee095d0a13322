// Package metrics provides Prometheus metrics for the booking service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking attempt outcomes.
const (
	OutcomeBooked          = "booked"
	OutcomeSlotTaken       = "slot_taken"
	OutcomeSlotBusy        = "slot_busy"
	OutcomeSlotExpired     = "slot_expired"
	OutcomeInvalidSlot     = "invalid_slot"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeRejected        = "rejected"
	OutcomeError           = "error"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	BookingAttempts    *prometheus.CounterVec
	BookingDuration    prometheus.Histogram
	Transitions        *prometheus.CounterVec
	ChatRoomsOpened    prometheus.Counter
	AssistantRequests  *prometheus.CounterVec
	EventsPublished    prometheus.Counter
	EventsFailed       prometheus.Counter
	LapsedAppointments prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BookingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_attempts_total",
			Help: "Booking attempts by outcome",
		}, []string{"outcome"}),
		BookingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "booking_attempt_duration_seconds",
			Help:    "Time spent validating and writing a booking",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Appointment lifecycle transitions by target status",
		}, []string{"status"}),
		ChatRoomsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_rooms_opened_total",
			Help: "Chat rooms created or reopened on confirmation",
		}),
		AssistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Assistant summaries by source (model or fallback)",
		}, []string{"source"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_relay_published_total",
			Help: "Event log rows published to Kafka",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "event_relay_failed_total",
			Help: "Event log rows that failed to publish",
		}),
		LapsedAppointments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appointments_lapsed_total",
			Help: "Pending appointments cancelled after their start time passed",
		}),
	}

	reg.MustRegister(
		m.BookingAttempts,
		m.BookingDuration,
		m.Transitions,
		m.ChatRoomsOpened,
		m.AssistantRequests,
		m.EventsPublished,
		m.EventsFailed,
		m.LapsedAppointments,
	)

	return m
}

func (m *Metrics) ObserveBooking(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.BookingAttempts.WithLabelValues(outcome).Inc()
	m.BookingDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveChatRoomOpened() {
	if m == nil {
		return
	}
	m.ChatRoomsOpened.Inc()
}

func (m *Metrics) ObserveAssistant(source string) {
	if m == nil {
		return
	}
	m.AssistantRequests.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRelay(published, failed int) {
	if m == nil {
		return
	}
	m.EventsPublished.Add(float64(published))
	m.EventsFailed.Add(float64(failed))
}

func (m *Metrics) ObserveLapsed(n int) {
	if m == nil {
		return
	}
	m.LapsedAppointments.Add(float64(n))
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
