package events

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/carelink-scheduling/internal/observability/metrics"
)

type RelayConfig struct {
	Topic     string
	BatchSize int
	Interval  time.Duration
}

type Relay struct {
	store   Store
	pub     Publisher
	cfg     RelayConfig
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewRelay(store Store, pub Publisher, cfg RelayConfig, m *metrics.Metrics, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Relay{
		store:   store,
		pub:     pub,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		tracer:  otel.Tracer("github.com/hackgods/carelink-scheduling/internal/events"),
	}
}

// RunOnce publishes one batch in id order. It stops at the first failure so
// later events for the same appointment never overtake an earlier one.
func (r *Relay) RunOnce(ctx context.Context) (published, failed int, err error) {
	ctx, span := r.tracer.Start(ctx, "events.RelayBatch")
	defer span.End()

	err = r.store.WithUnpublished(ctx, r.cfg.BatchSize, func(ctx context.Context, batch []Event) []int64 {
		done := make([]int64, 0, len(batch))
		for _, ev := range batch {
			value, err := json.Marshal(ev)
			if err == nil {
				err = r.pub.Publish(ctx, r.cfg.Topic, ev.Key(), value)
			}
			if err != nil {
				failed = len(batch) - len(done)
				r.logger.Error("publish event",
					zap.Int64("event_id", ev.ID),
					zap.String("event_type", ev.Type),
					zap.Error(err),
				)
				break
			}
			done = append(done, ev.ID)
		}
		published = len(done)
		return done
	})

	span.SetAttributes(attribute.Int("published", published), attribute.Int("failed", failed))
	if err != nil {
		span.RecordError(err)
		return 0, failed, err
	}
	r.metrics.ObserveRelay(published, failed)
	return published, failed, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// another so a backlog drains without waiting for the ticker.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		published, _, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("relay batch failed", zap.Error(err))
		}
		if published == r.cfg.BatchSize && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
