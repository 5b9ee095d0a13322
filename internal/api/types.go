package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/carelink-scheduling/internal/appointment"
	"github.com/hackgods/carelink-scheduling/internal/prescription"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Slot     string `json:"slot"`
	Notes    string `json:"notes"`
}

type CompleteAppointmentRequest struct {
	Notes string `json:"notes"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Bio       string    `json:"bio,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Available bool      `json:"available"`
}

type PatientResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    *string   `json:"email,omitempty"`
}

type AppointmentResponse struct {
	ID          uuid.UUID        `json:"id"`
	DoctorID    uuid.UUID        `json:"doctor_id"`
	PatientID   uuid.UUID        `json:"patient_id"`
	Date        string           `json:"date"`
	Slot        string           `json:"slot"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	Status      string           `json:"status"`
	Notes       string           `json:"notes,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	Doctor      *DoctorResponse  `json:"doctor,omitempty"`
	Patient     *PatientResponse `json:"patient,omitempty"`
	ChatRoomID  *uuid.UUID       `json:"chat_room_id,omitempty"`
	ChatRoom    string           `json:"chat_room_status,omitempty"`
}

type ConfirmAppointmentResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	RoomID      uuid.UUID           `json:"room_id"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Count        int                   `json:"count"`
}

type SlotsResponse struct {
	Date              string   `json:"date"`
	AvailableSlots    []string `json:"available_slots"`
	HasAvailableSlots bool     `json:"has_available_slots"`
	MinSelectableDate string   `json:"min_selectable_date"`
}

type AvailabilityResponse struct {
	DoctorID          uuid.UUID `json:"doctor_id"`
	Date              string    `json:"date"`
	Slots             []string  `json:"slots"`
	Open              []string  `json:"open"`
	Taken             []string  `json:"taken"`
	HasOpenSlots      bool      `json:"has_open_slots"`
	MinSelectableDate string    `json:"min_selectable_date"`
}

type IssuePrescriptionRequest struct {
	PatientID      string `json:"patient_id"`
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
}

type PrescriptionResponse struct {
	ID               uuid.UUID `json:"id"`
	PatientID        uuid.UUID `json:"patient_id"`
	DoctorID         uuid.UUID `json:"doctor_id"`
	MedicationName   string    `json:"medication_name"`
	Dosage           string    `json:"dosage"`
	Instructions     string    `json:"instructions,omitempty"`
	Status           string    `json:"status"`
	RefillsRemaining int       `json:"refills_remaining"`
	CreatedAt        time.Time `json:"created_at"`
}

type OrderResponse struct {
	ID             uuid.UUID `json:"id"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	MedicationName string    `json:"medication_name"`
	Quantity       int       `json:"quantity"`
	Status         string    `json:"status"`
	OrderedAt      time.Time `json:"ordered_at"`
}

type AssistantRequest struct {
	Intent  string `json:"intent"`
	Context string `json:"context"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toDoctorResponse(d *appointment.Doctor) *DoctorResponse {
	if d == nil {
		return nil
	}
	return &DoctorResponse{
		ID:        d.ID,
		Name:      d.Name,
		Specialty: d.Specialty,
		Bio:       d.Bio,
		ImageURL:  d.ImageURL,
		Available: d.Available,
	}
}

func toAppointmentResponse(c schedule.Catalog, a *appointment.Appointment) AppointmentResponse {
	local := a.ScheduledAt.In(c.Location())
	return AppointmentResponse{
		ID:          a.ID,
		DoctorID:    a.DoctorID,
		PatientID:   a.PatientID,
		Date:        local.Format(schedule.DateLayout),
		Slot:        schedule.Slot(local.Hour()).String(),
		ScheduledAt: a.ScheduledAt,
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func toDetailResponse(c schedule.Catalog, d *appointment.AppointmentDetail) AppointmentResponse {
	resp := toAppointmentResponse(c, &d.Appointment)
	resp.Doctor = toDoctorResponse(d.Doctor)
	if d.Patient != nil {
		resp.Patient = &PatientResponse{ID: d.Patient.ID, FullName: d.Patient.FullName, Email: d.Patient.Email}
	}
	if d.Room != nil {
		id := d.Room.ID
		resp.ChatRoomID = &id
		resp.ChatRoom = string(d.Room.Status)
	}
	return resp
}

func toPrescriptionResponse(p *prescription.Prescription) PrescriptionResponse {
	return PrescriptionResponse{
		ID:               p.ID,
		PatientID:        p.PatientID,
		DoctorID:         p.DoctorID,
		MedicationName:   p.MedicationName,
		Dosage:           p.Dosage,
		Instructions:     p.Instructions,
		Status:           string(p.Status),
		RefillsRemaining: p.RefillsRemaining,
		CreatedAt:        p.CreatedAt,
	}
}

func toOrderResponse(o *prescription.Order) OrderResponse {
	return OrderResponse{
		ID:             o.ID,
		PrescriptionID: o.PrescriptionID,
		MedicationName: o.MedicationName,
		Quantity:       o.Quantity,
		Status:         string(o.Status),
		OrderedAt:      o.OrderedAt,
	}
}
