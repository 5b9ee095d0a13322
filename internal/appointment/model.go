package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/carelink-scheduling/internal/auth"
	"github.com/hackgods/carelink-scheduling/internal/schedule"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type RoomStatus string

const (
	RoomOpen   RoomStatus = "open"
	RoomClosed RoomStatus = "closed"
)

type Patient struct {
	ID        uuid.UUID
	FullName  string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Name      string     `json:"name"`
	Specialty string     `json:"specialty"`
	Bio       string     `json:"bio"`
	ImageURL  string     `json:"image_url"`
	Available bool       `json:"available"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Appointment occupies one slot of one doctor's day. ScheduledAt is the slot
// start instant.
type Appointment struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Status      Status
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ChatRoom struct {
	ID            uuid.UUID
	AppointmentID uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Status        RoomStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
	Room    *ChatRoom
}

// BookingRequest is one slot selection submitted by a patient. Slot is the
// raw "HH:00" label as the client sent it.
type BookingRequest struct {
	Actor    auth.Principal
	DoctorID uuid.UUID
	Day      time.Time
	Slot     string
	Notes    string
}

// NewAppointment is a booking to insert. Event, when set, is written in the
// same transaction with its AppointmentID filled in from the new row.
type NewAppointment struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	ScheduledAt time.Time
	Notes       string
	Event       *EventLog
}

// Transition is a conditional status update. Notes, when set, are written in
// the same statement. Event is committed with the update or not at all.
type Transition struct {
	ID    uuid.UUID
	From  []Status
	To    Status
	Notes *string
	Event *EventLog
}

// Availability is the doctor view of one day.
type Availability struct {
	DoctorID uuid.UUID
	Day      time.Time
	Catalog  []schedule.Slot
	Open     []schedule.Slot
	Taken    []schedule.Slot
}
