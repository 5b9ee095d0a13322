// Package events relays rows written to event_logs onto a Kafka topic.
// Only one relay drains at a time: each batch transaction first takes a
// transaction-scoped advisory lock, and a relay that cannot get it skips the
// tick. Extra relay processes are standbys, so events keep their id order
// on the topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// relayLockID keys the advisory lock held by the draining relay.
const relayLockID int64 = 0x636c5f72656c6179

type Event struct {
	ID            int64           `json:"id"`
	Type          string          `json:"type"`
	AppointmentID *uuid.UUID      `json:"appointment_id,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Key partitions events by appointment so one appointment's history stays
// ordered.
func (e Event) Key() string {
	if e.AppointmentID != nil {
		return e.AppointmentID.String()
	}
	return fmt.Sprintf("event-%d", e.ID)
}

// Store hands out batches of unpublished events. fn returns the ids it
// published; those are marked before the batch is released.
type Store interface {
	WithUnpublished(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) []int64) error
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) WithUnpublished(ctx context.Context, limit int, fn func(ctx context.Context, batch []Event) []int64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return drainBatch(ctx, tx, limit, fn)
	})
}

// batchTx is the part of pgx.Tx a batch needs.
type batchTx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func drainBatch(ctx context.Context, tx batchTx, limit int, fn func(ctx context.Context, batch []Event) []int64) error {
	var leader bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, relayLockID).Scan(&leader); err != nil {
		return fmt.Errorf("take relay lock: %w", err)
	}
	if !leader {
		return nil
	}

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE
	`, limit)
	if err != nil {
		return fmt.Errorf("fetch unpublished events: %w", err)
	}

	batch, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		var payload []byte
		err := row.Scan(&e.ID, &e.Type, &e.AppointmentID, &payload, &e.CreatedAt)
		e.Payload = payload
		return e, err
	})
	if err != nil {
		return fmt.Errorf("scan events: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	published := fn(ctx, batch)
	if len(published) == 0 {
		return nil
	}

	if _, err := tx.Exec(ctx, `
		UPDATE event_logs SET published_at = now() WHERE id = ANY($1)
	`, published); err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}
