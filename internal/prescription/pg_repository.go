package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	prescriptionCols = `id, patient_id, doctor_id, medication_name, dosage, instructions, status, refills_remaining, created_at, updated_at`
	orderCols        = `id, patient_id, prescription_id, medication_name, quantity, status, ordered_at, updated_at`
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.MedicationName, &p.Dosage,
		&p.Instructions, &p.Status, &p.RefillsRemaining, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrescriptionNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.PatientID, &o.PrescriptionID, &o.MedicationName, &o.Quantity, &o.Status, &o.OrderedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PgRepository) SharesAppointment(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND patient_id = $2
		)
	`, doctorID, patientID).Scan(&ok)
	return ok, err
}

func (r *PgRepository) CreatePrescription(ctx context.Context, p Prescription) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, doctor_id, medication_name, dosage, instructions, status, refills_remaining, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+prescriptionCols,
		uuid.New(), p.PatientID, p.DoctorID, p.MedicationName, p.Dosage, p.Instructions, string(p.Status), p.RefillsRemaining)
	return scanPrescription(row)
}

func (r *PgRepository) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+prescriptionCols+` FROM prescriptions WHERE id = $1`, id)
	return scanPrescription(row)
}

func (r *PgRepository) ListPrescriptionsByPatient(ctx context.Context, patientID uuid.UUID) ([]Prescription, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+prescriptionCols+`
		FROM prescriptions
		WHERE patient_id = $1
		ORDER BY created_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PgRepository) Refill(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE prescriptions
		SET status = 'active',
		    refills_remaining = refills_remaining - 1,
		    updated_at = now()
		WHERE id = $1
		  AND refills_remaining > 0
		RETURNING `+prescriptionCols, id)

	p, err := scanPrescription(row)
	if errors.Is(err, ErrPrescriptionNotFound) {
		return nil, ErrNoRefillsLeft
	}
	return p, err
}

func (r *PgRepository) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO medication_orders (id, patient_id, prescription_id, medication_name, quantity, status, ordered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+orderCols,
		uuid.New(), o.PatientID, o.PrescriptionID, o.MedicationName, o.Quantity, string(o.Status))
	return scanOrder(row)
}

func (r *PgRepository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM medication_orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (r *PgRepository) ListOrdersByPatient(ctx context.Context, patientID uuid.UUID) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderCols+`
		FROM medication_orders
		WHERE patient_id = $1
		ORDER BY ordered_at DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
