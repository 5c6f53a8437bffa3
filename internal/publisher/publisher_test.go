package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

func sampleRun(outcome model.RunOutcome) *model.RunResult {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.RunResult{
		RunID:      uuid.New(),
		Profile:    "btc-buy",
		Pair:       "BTC-USD",
		Side:       model.SideBuy,
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		QuoteID:    uuid.NewString(),
		OrderID:    uuid.NewString(),
		Attempts:   2,
		Visible:    true,
		Outcome:    outcome,
	}
}

// ─── Fakes ────────────────────────────────────────────────────────────────────

type recordingSink struct {
	name     string
	err      error
	subjects []string
	payloads [][]byte
	closed   bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, subject string, _ *model.Envelope, data []byte) error {
	s.subjects = append(s.subjects, subject)
	s.payloads = append(s.payloads, data)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type fakeJetStream struct {
	msgs []*nats.Msg
}

func (f *fakeJetStream) PublishMsg(m *nats.Msg, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.msgs = append(f.msgs, m)
	return &nats.PubAck{Stream: "RFQ"}, nil
}

type fakeChannel struct {
	keys []string
	msgs []amqp.Publishing
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

// ─── Publisher ────────────────────────────────────────────────────────────────

func TestPublishRun_EnvelopeShape(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	p := New("evt.rfq", "rfq-checker", sink)
	run := sampleRun(model.OutcomeExecuted)

	require.NoError(t, p.PublishRun(context.Background(), run))
	require.Len(t, sink.payloads, 1)
	assert.Equal(t, "evt.rfq.workflow.executed.v1", sink.subjects[0])

	var env model.Envelope
	require.NoError(t, json.Unmarshal(sink.payloads[0], &env))
	assert.Equal(t, run.RunID, env.CorrelationID)
	assert.Equal(t, "btc-buy", env.Profile)
	assert.Equal(t, eventType, env.EventType)
	assert.Equal(t, "evt.rfq.workflow.executed.v1", env.Topic)

	var payload model.RunResult
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, run.OrderID, payload.OrderID)
	assert.Equal(t, 2, payload.Attempts)
}

func TestPublishRun_FanOutContinuesPastFailure(t *testing.T) {
	bad := &recordingSink{name: "bad", err: errors.New("broker down")}
	good := &recordingSink{name: "good"}
	p := New("evt.rfq", "rfq-checker", bad, good)

	err := p.PublishRun(context.Background(), sampleRun(model.OutcomeFailed))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: broker down")
	assert.Len(t, good.payloads, 1, "healthy sink still receives the event")
}

func TestPublishRun_NoSinks(t *testing.T) {
	p := New("evt.rfq", "rfq-checker")
	assert.NoError(t, p.PublishRun(context.Background(), sampleRun(model.OutcomeQuoted)))
	assert.Empty(t, p.Sinks())
}

func TestClose_ClosesAllSinks(t *testing.T) {
	a, b := &recordingSink{name: "a"}, &recordingSink{name: "b"}
	p := New("evt.rfq", "svc", a, b)
	require.NoError(t, p.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.Equal(t, []string{"a", "b"}, p.Sinks())
}

type checkedSink struct {
	recordingSink
	health error
}

func (s *checkedSink) HealthCheck(context.Context) error { return s.health }

func TestHealthCheck_OnlyProbesCheckers(t *testing.T) {
	down := errors.New("disconnected")
	p := New("evt.rfq", "rfq-checker",
		&checkedSink{recordingSink: recordingSink{name: "nats"}, health: down},
		&recordingSink{name: "kafka"},
	)

	got := p.HealthCheck(context.Background())
	require.Len(t, got, 1)
	assert.ErrorIs(t, got["nats"], down)
}

func TestIsFailureSubject(t *testing.T) {
	p := New("evt.rfq", "svc")
	assert.True(t, isFailureSubject(p.Subject(model.OutcomeFailed)))
	assert.True(t, isFailureSubject(p.Subject(model.OutcomeInvisible)))
	assert.False(t, isFailureSubject(p.Subject(model.OutcomeExecuted)))
}

// ─── Sinks ────────────────────────────────────────────────────────────────────

func TestNATSSink_Headers(t *testing.T) {
	js := &fakeJetStream{}
	sink := &NATSSink{js: js, service: "rfq-checker"}
	p := New("evt.rfq", "rfq-checker", sink)
	run := sampleRun(model.OutcomeExecuted)

	require.NoError(t, p.PublishRun(context.Background(), run))
	require.Len(t, js.msgs, 1)
	msg := js.msgs[0]
	assert.Equal(t, "evt.rfq.workflow.executed.v1", msg.Subject)
	assert.Equal(t, run.RunID.String(), msg.Header.Get("correlation_id"))
	assert.Equal(t, "btc-buy", msg.Header.Get("profile"))
	assert.NotEmpty(t, msg.Header.Get(nats.MsgIdHdr))
	assert.NoError(t, sink.Close())
}

func TestRabbitMQSink_PublishesToQueueWithPriority(t *testing.T) {
	ch := &fakeChannel{}
	sink := &RabbitMQSink{channel: ch, queue: "rfq.workflow.results", service: "rfq-checker"}
	p := New("evt.rfq", "rfq-checker", sink)

	require.NoError(t, p.PublishRun(context.Background(), sampleRun(model.OutcomeExecuted)))
	require.NoError(t, p.PublishRun(context.Background(), sampleRun(model.OutcomeFailed)))

	require.Len(t, ch.msgs, 2)
	assert.Equal(t, []string{"rfq.workflow.results", "rfq.workflow.results"}, ch.keys)
	assert.Equal(t, "application/json", ch.msgs[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.msgs[0].DeliveryMode)
	assert.Equal(t, uint8(0), ch.msgs[0].Priority)
	assert.Equal(t, uint8(10), ch.msgs[1].Priority)
	assert.Equal(t, "evt.rfq.workflow.failed.v1", ch.msgs[1].Headers["subject"])
}

func TestKafkaSink_KeysByProfile(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w, topic: "rfq.workflow.results"}
	p := New("evt.rfq", "rfq-checker", sink)

	require.NoError(t, p.PublishRun(context.Background(), sampleRun(model.OutcomeQuoted)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "btc-buy", string(w.msgs[0].Key))
	assert.Equal(t, "subject", w.msgs[0].Headers[0].Key)
	assert.Equal(t, "evt.rfq.workflow.quoted.v1", string(w.msgs[0].Headers[0].Value))
	assert.NoError(t, sink.Close())
}
