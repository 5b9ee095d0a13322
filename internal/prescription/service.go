package prescription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Issue writes a new active prescription. The doctor must have seen the
// patient through at least one appointment.
func (s *Service) Issue(ctx context.Context, doctorID uuid.UUID, req IssueRequest) (*Prescription, error) {
	req.MedicationName = strings.TrimSpace(req.MedicationName)
	req.Dosage = strings.TrimSpace(req.Dosage)
	req.Instructions = strings.TrimSpace(req.Instructions)

	switch {
	case req.PatientID == uuid.Nil:
		return nil, fmt.Errorf("%w: patient is required", ErrInvalidInput)
	case req.MedicationName == "":
		return nil, fmt.Errorf("%w: medication name is required", ErrInvalidInput)
	case req.Dosage == "":
		return nil, fmt.Errorf("%w: dosage is required", ErrInvalidInput)
	}

	ok, err := s.repo.SharesAppointment(ctx, doctorID, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("check doctor-patient relationship: %w", err)
	}
	if !ok {
		return nil, ErrNoSharedAppointment
	}

	p, err := s.repo.CreatePrescription(ctx, Prescription{
		PatientID:        req.PatientID,
		DoctorID:         doctorID,
		MedicationName:   req.MedicationName,
		Dosage:           req.Dosage,
		Instructions:     req.Instructions,
		Status:           StatusActive,
		RefillsRemaining: DefaultRefills,
	})
	if err != nil {
		return nil, fmt.Errorf("create prescription: %w", err)
	}

	s.logger.Info("prescription issued",
		zap.String("prescription_id", p.ID.String()),
		zap.String("doctor_id", doctorID.String()),
	)
	return p, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error) {
	out, err := s.repo.ListPrescriptionsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions: %w", err)
	}
	return out, nil
}

func (s *Service) owned(ctx context.Context, id, patientID uuid.UUID) (*Prescription, error) {
	p, err := s.repo.GetPrescription(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPrescriptionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load prescription: %w", err)
	}
	if p.PatientID != patientID {
		return nil, ErrForbidden
	}
	return p, nil
}

// RequestRefill reactivates an owned prescription, spending one refill.
func (s *Service) RequestRefill(ctx context.Context, id, patientID uuid.UUID) (*Prescription, error) {
	if _, err := s.owned(ctx, id, patientID); err != nil {
		return nil, err
	}

	p, err := s.repo.Refill(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRefillsLeft) {
			return nil, err
		}
		return nil, fmt.Errorf("refill prescription: %w", err)
	}
	return p, nil
}

// OrderMedication places a single-unit order against an active prescription.
func (s *Service) OrderMedication(ctx context.Context, prescriptionID, patientID uuid.UUID) (*Order, error) {
	p, err := s.owned(ctx, prescriptionID, patientID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, ErrInactive
	}

	o, err := s.repo.CreateOrder(ctx, Order{
		PatientID:      patientID,
		PrescriptionID: p.ID,
		MedicationName: p.MedicationName,
		Quantity:       1,
		Status:         OrderPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("medication ordered",
		zap.String("order_id", o.ID.String()),
		zap.String("prescription_id", p.ID.String()),
	)
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, patientID uuid.UUID) ([]Order, error) {
	out, err := s.repo.ListOrdersByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

// GetOrder is used for order tracking; only the ordering patient sees it.
func (s *Service) GetOrder(ctx context.Context, id, patientID uuid.UUID) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if o.PatientID != patientID {
		return nil, ErrForbidden
	}
	return o, nil
}
