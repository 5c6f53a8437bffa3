package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSSink publishes envelopes to JetStream.
type NATSSink struct {
	nc      *nats.Conn
	js      jetStream
	service string
}

// NewNATSSink connects to url and enables JetStream.
func NewNATSSink(url, service string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name(service))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("nats jetstream: %w", err)
	}
	return &NATSSink{nc: nc, js: js, service: service}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Publish(ctx context.Context, subject string, env *model.Envelope, data []byte) error {
	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"event_type":     []string{env.EventType},
			"correlation_id": []string{env.CorrelationID.String()},
			"service":        []string{s.service},
			"content_type":   []string{"application/json"},
			"profile":        []string{env.Profile},
			nats.MsgIdHdr:    []string{env.ID.String()},
		},
	}

	start := time.Now()
	_, err := s.js.PublishMsg(msg, nats.Context(ctx))
	metrics.ObserveDuration(metrics.EventPublishDuration, start, s.Name())
	return err
}

func (s *NATSSink) HealthCheck(ctx context.Context) error {
	if s.nc == nil || !s.nc.IsConnected() {
		return errors.New("disconnected")
	}
	return s.nc.FlushWithContext(ctx)
}

func (s *NATSSink) Close() error {
	if s.nc != nil && s.nc.IsConnected() {
		s.nc.Close()
	}
	return nil
}
