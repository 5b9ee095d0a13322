package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/carelink-scheduling/internal/db"
)

const slotIndex = "appointments_doctor_slot_active"

const (
	appointmentCols = `a.id, a.doctor_id, a.patient_id, a.scheduled_at, a.status, a.notes, a.created_at, a.updated_at`
	doctorCols      = `d.id, d.user_id, d.name, d.specialty, d.bio, d.image_url, d.available, d.created_at, d.updated_at`
	patientCols     = `p.id, p.full_name, p.email, p.created_at, p.updated_at`
	roomCols        = `r.id, r.appointment_id, r.doctor_id, r.patient_id, r.status, r.created_at, r.updated_at`
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func doctorDest(d *Doctor) []any {
	return []any{&d.ID, &d.UserID, &d.Name, &d.Specialty, &d.Bio, &d.ImageURL, &d.Available, &d.CreatedAt, &d.UpdatedAt}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(doctorDest(&d)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func appointmentDest(a *Appointment) []any {
	return []any{&a.ID, &a.DoctorID, &a.PatientID, &a.ScheduledAt, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(appointmentDest(&a)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

func scanChatRoom(row pgx.Row) (*ChatRoom, error) {
	var r ChatRoom
	err := row.Scan(&r.ID, &r.AppointmentID, &r.DoctorID, &r.PatientID, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatRoomNotFound
		}
		return nil, err
	}
	return &r, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients p WHERE p.id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors d WHERE d.id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors d WHERE d.user_id = $1`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doctorCols+` FROM doctors d ORDER BY d.name, d.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	var (
		det    AppointmentDetail
		doc    Doctor
		pat    Patient
		roomID *uuid.UUID
		room   ChatRoom
		status *string
	)

	dest := appointmentDest(&det.Appointment)
	dest = append(dest, doctorDest(&doc)...)
	dest = append(dest, &pat.ID, &pat.FullName, &pat.Email, &pat.CreatedAt, &pat.UpdatedAt)
	dest = append(dest, &roomID, &status)

	err := r.pool.QueryRow(ctx, `
		SELECT `+appointmentCols+`, `+doctorCols+`, `+patientCols+`, r.id, r.status
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		LEFT JOIN chat_rooms r ON r.appointment_id = a.id
		WHERE a.id = $1
	`, id).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	det.Doctor = &doc
	det.Patient = &pat
	if roomID != nil && status != nil {
		room = ChatRoom{
			ID:            *roomID,
			AppointmentID: det.ID,
			DoctorID:      det.DoctorID,
			PatientID:     det.PatientID,
			Status:        RoomStatus(*status),
		}
		det.Room = &room
	}
	return &det, nil
}

func (r *PgRepository) ListActiveByDoctorBetween(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.scheduled_at >= $2
		  AND a.scheduled_at < $3
		  AND a.status <> 'cancelled'
		ORDER BY a.scheduled_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreatePendingAppointment(ctx context.Context, in NewAppointment) (*Appointment, error) {
	var a *Appointment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO appointments AS a (id, doctor_id, patient_id, scheduled_at, status, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'pending', $5, now(), now())
			RETURNING `+appointmentCols,
			uuid.New(), in.DoctorID, in.PatientID, in.ScheduledAt, in.Notes)

		var err error
		if a, err = scanAppointment(row); err != nil {
			return err
		}
		return insertEvent(ctx, tx, a.ID, in.Event)
	})
	if err != nil {
		if db.IsUniqueViolation(err, slotIndex) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, t Transition) (*Appointment, error) {
	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	var a *Appointment
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			UPDATE appointments AS a
			SET status = $2,
			    notes = COALESCE($3, a.notes),
			    updated_at = now()
			WHERE a.id = $1
			  AND a.status = ANY($4::text[])
			RETURNING `+appointmentCols,
			t.ID, string(t.To), t.Notes, from)

		var err error
		if a, err = scanAppointment(row); err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return errStatusChanged
			}
			return err
		}
		return insertEvent(ctx, tx, a.ID, t.Event)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PgRepository) GetChatRoomByAppointment(ctx context.Context, appointmentID uuid.UUID) (*ChatRoom, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roomCols+` FROM chat_rooms r WHERE r.appointment_id = $1`, appointmentID)
	return scanChatRoom(row)
}

func (r *PgRepository) CreateChatRoom(ctx context.Context, a *Appointment) (*ChatRoom, bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO chat_rooms (id, appointment_id, doctor_id, patient_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'open', now(), now())
		ON CONFLICT (appointment_id) DO NOTHING
	`, uuid.New(), a.ID, a.DoctorID, a.PatientID)
	if err != nil {
		return nil, false, fmt.Errorf("insert chat room: %w", err)
	}

	room, err := r.GetChatRoomByAppointment(ctx, a.ID)
	if err != nil {
		return nil, false, err
	}
	return room, tag.RowsAffected() == 1, nil
}

func (r *PgRepository) SetChatRoomStatus(ctx context.Context, id uuid.UUID, status RoomStatus) (*ChatRoom, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE chat_rooms AS r
		SET status = $2, updated_at = now()
		WHERE r.id = $1
		RETURNING `+roomCols, id, string(status))
	return scanChatRoom(row)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`, `+doctorCols+`
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		WHERE a.patient_id = $1
		ORDER BY a.scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AppointmentDetail
	for rows.Next() {
		var det AppointmentDetail
		var doc Doctor
		dest := append(appointmentDest(&det.Appointment), doctorDest(&doc)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		det.Doctor = &doc
		out = append(out, det)
	}
	return out, rows.Err()
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`, `+patientCols+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.doctor_id = $1
		ORDER BY a.scheduled_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AppointmentDetail
	for rows.Next() {
		var det AppointmentDetail
		var pat Patient
		dest := append(appointmentDest(&det.Appointment), &pat.ID, &pat.FullName, &pat.Email, &pat.CreatedAt, &pat.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		det.Patient = &pat
		out = append(out, det)
	}
	return out, rows.Err()
}

func (r *PgRepository) FindLapsedPending(ctx context.Context, cutoff time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments a
		WHERE a.status = 'pending'
		  AND a.scheduled_at < $1
		ORDER BY a.scheduled_at
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	return insertEvent(ctx, r.pool, uuid.Nil, &ev)
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// insertEvent writes ev through q. A nil appointmentID keeps ev's own.
func insertEvent(ctx context.Context, q execer, appointmentID uuid.UUID, ev *EventLog) error {
	if ev == nil {
		return nil
	}
	apptID := ev.AppointmentID
	if appointmentID != uuid.Nil {
		apptID = &appointmentID
	}

	_, err := q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, apptID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
