package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/pkg/logger"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

const (
	eventType    = "rfq.workflow.completed"
	eventVersion = "1.0.0"
)

// Sink delivers serialized envelopes to one transport.
type Sink interface {
	Name() string
	Publish(ctx context.Context, subject string, env *model.Envelope, data []byte) error
	Close() error
}

// HealthChecker is implemented by sinks that hold a live connection.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Publisher fans a workflow result out to every configured sink.
type Publisher struct {
	prefix  string
	service string
	sinks   []Sink
}

// New creates a Publisher. Subjects are "{prefix}.workflow.{outcome}.v1".
func New(prefix, service string, sinks ...Sink) *Publisher {
	return &Publisher{prefix: prefix, service: service, sinks: sinks}
}

// Subject is the routing subject for a run outcome.
func (p *Publisher) Subject(outcome model.RunOutcome) string {
	return fmt.Sprintf("%s.workflow.%s.v1", p.prefix, outcome)
}

// Sinks returns the names of the configured sinks.
func (p *Publisher) Sinks() []string {
	names := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		names = append(names, s.Name())
	}
	return names
}

// NewRunEnvelope wraps run in the canonical envelope. The run ID doubles as the
// correlation ID so every sink's copy can be joined back to the journal.
func (p *Publisher) NewRunEnvelope(run *model.RunResult) (*model.Envelope, error) {
	payload, err := json.Marshal(run)
	if err != nil {
		return nil, err
	}
	return &model.Envelope{
		ID:            uuid.New(),
		CorrelationID: run.RunID,
		Profile:       run.Profile,
		Topic:         p.Subject(run.Outcome),
		EventType:     eventType,
		Version:       eventVersion,
		Timestamp:     time.Now().UTC(),
		Payload:       payload,
	}, nil
}

// PublishRun publishes run to every sink. A failing sink does not stop the others;
// all failures are joined into the returned error.
func (p *Publisher) PublishRun(ctx context.Context, run *model.RunResult) error {
	if len(p.sinks) == 0 {
		return nil
	}
	env, err := p.NewRunEnvelope(run)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}
	return p.PublishEnvelope(ctx, env.Topic, env)
}

// PublishEnvelope serializes env once and hands it to every sink.
func (p *Publisher) PublishEnvelope(ctx context.Context, subject string, env *model.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		logger.S().Errorw("publisher.marshal_failed",
			"subject", subject,
			"event_type", env.EventType,
			"error", err,
		)
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	var errs []error
	for _, s := range p.sinks {
		if err := s.Publish(ctx, subject, env, data); err != nil {
			logger.S().Errorw("publisher.publish_failed",
				"sink", s.Name(),
				"subject", subject,
				"profile", env.Profile,
				"error", err,
			)
			metrics.IncEventPublish(s.Name(), "error")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		metrics.IncEventPublish(s.Name(), "ok")
		logger.S().Debugw("publisher.publish_success",
			"sink", s.Name(),
			"subject", subject,
			"profile", env.Profile,
		)
	}
	return errors.Join(errs...)
}

// HealthCheck probes every sink that supports it, keyed by sink name.
func (p *Publisher) HealthCheck(ctx context.Context) map[string]error {
	out := make(map[string]error, len(p.sinks))
	for _, s := range p.sinks {
		if hc, ok := s.(HealthChecker); ok {
			out[s.Name()] = hc.HealthCheck(ctx)
		}
	}
	return out
}

// Close closes every sink.
func (p *Publisher) Close() error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// isFailureSubject reports whether subject carries a run that did not succeed.
func isFailureSubject(subject string) bool {
	return strings.Contains(subject, ".workflow."+string(model.OutcomeFailed)+".") ||
		strings.Contains(subject, ".workflow."+string(model.OutcomeInvisible)+".")
}
