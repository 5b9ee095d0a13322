package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/carelink-scheduling/internal/appointment"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

func (h *handlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.appointments.ListDoctors(r.Context())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	out := make([]DoctorResponse, 0, len(doctors))
	for i := range doctors {
		out = append(out, *toDoctorResponse(&doctors[i]))
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	d, err := h.appointments.GetDoctor(r.Context(), id)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDoctorResponse(d))
}

func (h *handlers) doctorAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	day, ok := h.dateQuery(w, r)
	if !ok {
		return
	}

	now := h.now()
	a, err := h.appointments.Availability(r.Context(), id, day, now)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:          a.DoctorID,
		Date:              a.Day.Format(schedule.DateLayout),
		Slots:             schedule.Labels(a.Catalog),
		Open:              schedule.Labels(a.Open),
		Taken:             schedule.Labels(a.Taken),
		HasOpenSlots:      len(a.Open) > 0,
		MinSelectableDate: h.appointments.Catalog().MinSelectableDate(now).Format(schedule.DateLayout),
	})
}

func (h *handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}
	c := h.appointments.Catalog()
	day, err := c.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	appt, err := h.appointments.AttemptBook(r.Context(), appointment.BookingRequest{
		Actor:    p,
		DoctorID: doctorID,
		Day:      day,
		Slot:     req.Slot,
		Notes:    req.Notes,
	}, h.now())
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(c, appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	detail, err := h.appointments.GetAppointment(r.Context(), id, p)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailResponse(h.appointments.Catalog(), detail))
}

func (h *handlers) confirmAppointment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	doctor, err := h.appointments.ActingDoctor(r.Context(), p)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	appt, room, err := h.appointments.Confirm(r.Context(), id, doctor.ID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConfirmAppointmentResponse{
		Appointment: toAppointmentResponse(h.appointments.Catalog(), appt),
		RoomID:      room.ID,
	})
}

func (h *handlers) completeAppointment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req CompleteAppointmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	doctor, err := h.appointments.ActingDoctor(r.Context(), p)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	appt, err := h.appointments.Complete(r.Context(), id, doctor.ID, strings.TrimSpace(req.Notes))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(h.appointments.Catalog(), appt))
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	appt, err := h.appointments.Cancel(r.Context(), id, p.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(h.appointments.Catalog(), appt))
}

func (h *handlers) listMyAppointments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r)
	list, err := h.appointments.ListAppointmentsByPatient(r.Context(), p.UserID, limit, offset)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeAppointmentList(w, list)
}

func (h *handlers) listDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	doctor, err := h.appointments.ActingDoctor(r.Context(), p)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	limit, offset := pageParams(r)
	list, err := h.appointments.ListAppointmentsByDoctor(r.Context(), doctor.ID, limit, offset)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeAppointmentList(w, list)
}

func (h *handlers) writeAppointmentList(w http.ResponseWriter, list []appointment.AppointmentDetail) {
	c := h.appointments.Catalog()
	out := make([]AppointmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toDetailResponse(c, &list[i]))
	}
	writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: out, Count: len(out)})
}
