package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Doctor directory
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// For conflict checks: non-cancelled appointments with from <= scheduled_at < to
	ListActiveByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// CreatePendingAppointment returns ErrSlotTaken when the slot already has
	// a non-cancelled appointment.
	CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error)
	// UpdateStatus applies t only if the current status is one of t.From.
	UpdateStatus(ctx context.Context, t Transition) (*Appointment, error)

	// Chat rooms
	GetChatRoomByAppointment(ctx context.Context, appointmentID uuid.UUID) (*ChatRoom, error)
	// CreateChatRoom is a no-op returning the existing room when one exists;
	// created reports whether this call inserted it.
	CreateChatRoom(ctx context.Context, a *Appointment) (room *ChatRoom, created bool, err error)
	SetChatRoomStatus(ctx context.Context, id uuid.UUID, status RoomStatus) (*ChatRoom, error)

	// Dashboards
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)

	// Lapse worker
	FindLapsedPending(ctx context.Context, cutoff time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
