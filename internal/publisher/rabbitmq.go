package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQSink publishes envelopes to a durable queue via the default exchange.
type RabbitMQSink struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	service string
}

// NewRabbitMQSink dials url and declares queue.
func NewRabbitMQSink(url, queue, service string) (*RabbitMQSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %q: %w", queue, err)
	}
	return &RabbitMQSink{conn: conn, channel: ch, queue: queue, service: service}, nil
}

func (s *RabbitMQSink) Name() string { return "rabbitmq" }

func (s *RabbitMQSink) Publish(ctx context.Context, subject string, env *model.Envelope, data []byte) error {
	var priority uint8
	if isFailureSubject(subject) {
		priority = 10
	}

	start := time.Now()
	err := s.channel.PublishWithContext(ctx,
		"",      // exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.ID.String(),
			CorrelationId: env.CorrelationID.String(),
			Timestamp:     env.Timestamp,
			Type:          env.EventType,
			AppId:         s.service,
			Priority:      priority,
			Headers:       amqp.Table{"subject": subject, "profile": env.Profile},
			Body:          data,
		},
	)
	metrics.ObserveDuration(metrics.EventPublishDuration, start, s.Name())
	return err
}

func (s *RabbitMQSink) HealthCheck(context.Context) error {
	if s.conn == nil || s.conn.IsClosed() {
		return errors.New("connection closed")
	}
	return nil
}

func (s *RabbitMQSink) Close() error {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
