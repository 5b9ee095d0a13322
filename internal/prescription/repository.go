package prescription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrForbidden            = errors.New("not permitted for this prescription")
	ErrInvalidInput         = errors.New("invalid prescription")
	ErrNoRefillsLeft        = errors.New("no refills remaining")
	ErrInactive             = errors.New("prescription is not active")

	ErrNoSharedAppointment = fmt.Errorf("%w: doctor has no appointment with this patient", ErrForbidden)
)

type Repository interface {
	// SharesAppointment reports whether the doctor has ever been booked by
	// the patient.
	SharesAppointment(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

	CreatePrescription(ctx context.Context, p Prescription) (*Prescription, error)
	GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error)
	// Refill reactivates the prescription and spends one refill. It returns
	// ErrNoRefillsLeft when none remain.
	Refill(ctx context.Context, id uuid.UUID) (*Prescription, error)

	CreateOrder(ctx context.Context, o Order) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]Order, error)
}
