package prescription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type pair struct{ doctor, patient uuid.UUID }

type mockRepo struct {
	visits        map[pair]bool
	prescriptions map[uuid.UUID]*Prescription
	orders        map[uuid.UUID]*Order
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		visits:        make(map[pair]bool),
		prescriptions: make(map[uuid.UUID]*Prescription),
		orders:        make(map[uuid.UUID]*Order),
	}
}

func (m *mockRepo) SharesAppointment(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return m.visits[pair{doctorID, patientID}], nil
}

func (m *mockRepo) CreatePrescription(_ context.Context, p Prescription) (*Prescription, error) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.prescriptions[p.ID] = &p
	cp := p
	return &cp, nil
}

func (m *mockRepo) GetPrescription(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok {
		return nil, ErrPrescriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) ListPrescriptionsByPatient(_ context.Context, patientID uuid.UUID) ([]Prescription, error) {
	var out []Prescription
	for _, p := range m.prescriptions {
		if p.PatientID == patientID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) Refill(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.prescriptions[id]
	if !ok || p.RefillsRemaining <= 0 {
		return nil, ErrNoRefillsLeft
	}
	p.RefillsRemaining--
	p.Status = StatusActive
	cp := *p
	return &cp, nil
}

func (m *mockRepo) CreateOrder(_ context.Context, o Order) (*Order, error) {
	o.ID = uuid.New()
	o.OrderedAt = time.Now()
	m.orders[o.ID] = &o
	cp := o
	return &cp, nil
}

func (m *mockRepo) GetOrder(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) ListOrdersByPatient(_ context.Context, patientID uuid.UUID) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.PatientID == patientID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func TestIssue(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	doctor, patient := uuid.New(), uuid.New()
	repo.visits[pair{doctor, patient}] = true

	p, err := svc.Issue(context.Background(), doctor, IssueRequest{
		PatientID:      patient,
		MedicationName: " Amoxicillin ",
		Dosage:         "500mg",
		Instructions:   "Twice daily with food",
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if p.Status != StatusActive || p.RefillsRemaining != DefaultRefills {
		t.Errorf("got status %s refills %d", p.Status, p.RefillsRemaining)
	}
	if p.MedicationName != "Amoxicillin" {
		t.Errorf("medication name not trimmed: %q", p.MedicationName)
	}
}

func TestIssueRejections(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	doctor, patient := uuid.New(), uuid.New()

	tests := []struct {
		name string
		req  IssueRequest
		want error
	}{
		{"missing patient", IssueRequest{MedicationName: "x", Dosage: "1"}, ErrInvalidInput},
		{"missing medication", IssueRequest{PatientID: patient, Dosage: "1"}, ErrInvalidInput},
		{"missing dosage", IssueRequest{PatientID: patient, MedicationName: "x"}, ErrInvalidInput},
		{"never saw patient", IssueRequest{PatientID: patient, MedicationName: "x", Dosage: "1"}, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Issue(context.Background(), doctor, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if len(repo.prescriptions) != 0 {
		t.Fatal("rejected issue wrote a prescription")
	}
}

func seedPrescription(repo *mockRepo, patient uuid.UUID, status Status, refills int) *Prescription {
	p := &Prescription{ID: uuid.New(), PatientID: patient, DoctorID: uuid.New(), MedicationName: "Lisinopril", Dosage: "10mg", Status: status, RefillsRemaining: refills}
	repo.prescriptions[p.ID] = p
	return p
}

func TestRequestRefill(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	patient := uuid.New()
	p := seedPrescription(repo, patient, StatusInactive, 1)

	if _, err := svc.RequestRefill(context.Background(), p.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger: err = %v", err)
	}

	got, err := svc.RequestRefill(context.Background(), p.ID, patient)
	if err != nil {
		t.Fatalf("RequestRefill: %v", err)
	}
	if got.Status != StatusActive || got.RefillsRemaining != 0 {
		t.Errorf("got %s with %d refills", got.Status, got.RefillsRemaining)
	}

	if _, err := svc.RequestRefill(context.Background(), p.ID, patient); !errors.Is(err, ErrNoRefillsLeft) {
		t.Fatalf("exhausted: err = %v", err)
	}
	if _, err := svc.RequestRefill(context.Background(), uuid.New(), patient); !errors.Is(err, ErrPrescriptionNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
}

func TestOrderMedication(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	patient := uuid.New()
	active := seedPrescription(repo, patient, StatusActive, 3)
	inactive := seedPrescription(repo, patient, StatusInactive, 3)

	o, err := svc.OrderMedication(context.Background(), active.ID, patient)
	if err != nil {
		t.Fatalf("OrderMedication: %v", err)
	}
	if o.Quantity != 1 || o.Status != OrderPending || o.MedicationName != "Lisinopril" {
		t.Errorf("unexpected order %+v", o)
	}

	if _, err := svc.OrderMedication(context.Background(), inactive.ID, patient); !errors.Is(err, ErrInactive) {
		t.Errorf("inactive: err = %v", err)
	}
	if _, err := svc.OrderMedication(context.Background(), active.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v", err)
	}

	tracked, err := svc.GetOrder(context.Background(), o.ID, patient)
	if err != nil || tracked.ID != o.ID {
		t.Fatalf("GetOrder: %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), o.ID, uuid.New()); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger tracking: err = %v", err)
	}

	orders, err := svc.ListOrders(context.Background(), patient)
	if err != nil || len(orders) != 1 {
		t.Fatalf("ListOrders = %d, %v", len(orders), err)
	}
}
