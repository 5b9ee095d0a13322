// Package prescription covers what happens after a visit: doctors issue
// prescriptions to their patients, patients request refills and order
// medication against them.
package prescription

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

// DefaultRefills is granted on every new prescription.
const DefaultRefills = 3

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

type Prescription struct {
	ID               uuid.UUID
	PatientID        uuid.UUID
	DoctorID         uuid.UUID
	MedicationName   string
	Dosage           string
	Instructions     string
	Status           Status
	RefillsRemaining int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Order struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PrescriptionID uuid.UUID
	MedicationName string
	Quantity       int
	Status         OrderStatus
	OrderedAt      time.Time
	UpdatedAt      time.Time
}

type IssueRequest struct {
	PatientID      uuid.UUID
	MedicationName string
	Dosage         string
	Instructions   string
}
