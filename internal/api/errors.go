package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/appointment"
	"github.com/hackgods/carelink-scheduling/internal/assistant"
	"github.com/hackgods/carelink-scheduling/internal/prescription"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: wrapped sentinels (ErrInvalidStatusTransition wraps
// ErrForbidden) must be listed before the errors they wrap.
var errorMappings = []errorMapping{
	{appointment.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{assistant.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},

	{appointment.ErrInvalidStatusTransition, http.StatusConflict, "invalid_status_transition"},
	{appointment.ErrSlotTaken, http.StatusConflict, "slot_taken"},
	{appointment.ErrSlotExpired, http.StatusConflict, "slot_expired"},
	{appointment.ErrSlotBusy, http.StatusConflict, "slot_being_booked"},
	{appointment.ErrDoctorUnavailable, http.StatusConflict, "doctor_unavailable"},
	{appointment.ErrMissingNotes, http.StatusUnprocessableEntity, "missing_notes"},
	{appointment.ErrForbidden, http.StatusForbidden, "forbidden"},

	{appointment.ErrAppointmentNotFound, http.StatusNotFound, "appointment_not_found"},
	{appointment.ErrDoctorNotFound, http.StatusNotFound, "doctor_not_found"},
	{appointment.ErrPatientNotFound, http.StatusNotFound, "patient_not_found"},
	{appointment.ErrChatRoomNotFound, http.StatusNotFound, "chat_room_not_found"},
	{schedule.ErrInvalidSlot, http.StatusBadRequest, "invalid_slot"},
	{schedule.ErrInvalidDate, http.StatusBadRequest, "invalid_date"},

	{prescription.ErrNoSharedAppointment, http.StatusForbidden, "no_shared_appointment"},
	{prescription.ErrForbidden, http.StatusForbidden, "forbidden"},
	{prescription.ErrPrescriptionNotFound, http.StatusNotFound, "prescription_not_found"},
	{prescription.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{prescription.ErrInvalidInput, http.StatusBadRequest, "invalid_prescription"},
	{prescription.ErrNoRefillsLeft, http.StatusConflict, "no_refills_remaining"},
	{prescription.ErrInactive, http.StatusConflict, "prescription_inactive"},

	{assistant.ErrInvalidIntent, http.StatusBadRequest, "invalid_intent"},
	{assistant.ErrEmptyContext, http.StatusBadRequest, "missing_context"},
}

// serviceError writes the response for an error returned by a service.
// Unmapped errors are logged and surface as a bare 500.
func (h *handlers) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.code, err.Error())
			return
		}
	}
	h.logger.Error("request failed",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "")
}
