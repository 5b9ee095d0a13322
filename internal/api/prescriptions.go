package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/carelink-scheduling/internal/prescription"
)

func (h *handlers) issuePrescription(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req IssuePrescriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	doctor, err := h.appointments.ActingDoctor(r.Context(), p)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	rx, err := h.prescriptions.Issue(r.Context(), doctor.ID, prescription.IssueRequest{
		PatientID:      patientID,
		MedicationName: req.MedicationName,
		Dosage:         req.Dosage,
		Instructions:   req.Instructions,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPrescriptionResponse(rx))
}

func (h *handlers) listMyPrescriptions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.prescriptions.ListByPatient(r.Context(), p.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	out := make([]PrescriptionResponse, 0, len(list))
	for i := range list {
		out = append(out, toPrescriptionResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) refillPrescription(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	rx, err := h.prescriptions.RequestRefill(r.Context(), id, p.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPrescriptionResponse(rx))
}

func (h *handlers) orderMedication(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	o, err := h.prescriptions.OrderMedication(r.Context(), id, p.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *handlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	list, err := h.prescriptions.ListOrders(r.Context(), p.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	out := make([]OrderResponse, 0, len(list))
	for i := range list {
		out = append(out, toOrderResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) getOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	o, err := h.prescriptions.GetOrder(r.Context(), id, p.UserID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
