package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes envelopes to one topic, keyed by profile so a profile's runs
// stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink creates a writer for topic on brokers. No connection is made until
// the first publish.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Compression:            kafka.Lz4,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	return &KafkaSink{writer: w, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, subject string, env *model.Envelope, data []byte) error {
	start := time.Now()
	err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Profile),
		Value: data,
		Headers: []kafka.Header{
			{Key: "subject", Value: []byte(subject)},
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "correlation_id", Value: []byte(env.CorrelationID.String())},
		},
	})
	metrics.ObserveDuration(metrics.EventPublishDuration, start, s.Name())
	return err
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
