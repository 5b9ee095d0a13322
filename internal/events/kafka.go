package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// Publisher writes one message and waits for the broker to acknowledge it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type KafkaConfig struct {
	Brokers  []string
	ClientID string
}

type KafkaPublisher struct {
	client *kgo.Client
	logger *zap.Logger
}

func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "carelink-event-relay"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
		kgo.ProducerBatchCompression(kgo.Lz4Compression()),
		kgo.RecordRetries(5),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, logger: logger}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	rec := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	injectTraceHeaders(ctx, rec)

	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopic creates the topic if it does not exist yet.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, topic string, partitions int32, replication int16) error {
	admin := kadm.NewClient(p.client)
	retention := "604800000" // 7 days
	resp, err := admin.CreateTopics(ctx, partitions, replication, map[string]*string{
		"retention.ms":   &retention,
		"cleanup.policy": strPtr("delete"),
	}, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err == nil {
			p.logger.Info("topic created", zap.String("topic", r.Topic), zap.Int32("partitions", partitions))
			continue
		}
		if errors.Is(r.Err, kerr.TopicAlreadyExists) {
			continue
		}
		return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
	}
	return nil
}

func (p *KafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("flush on close", zap.Error(err))
	}
	p.client.Close()
}

func strPtr(s string) *string { return &s }

type recordCarrier struct{ rec *kgo.Record }

func (c recordCarrier) Get(key string) string {
	for _, h := range c.rec.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c recordCarrier) Set(key, value string) {
	c.rec.Headers = append(c.rec.Headers, kgo.RecordHeader{Key: key, Value: []byte(value)})
}

func (c recordCarrier) Keys() []string {
	out := make([]string, len(c.rec.Headers))
	for i, h := range c.rec.Headers {
		out[i] = h.Key
	}
	return out
}

func injectTraceHeaders(ctx context.Context, rec *kgo.Record) {
	propagation.TraceContext{}.Inject(ctx, recordCarrier{rec})
}
