package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Checker-Finance/rfq-checker/internal/lifecycle"
	"github.com/Checker-Finance/rfq-checker/internal/metrics"
	"github.com/Checker-Finance/rfq-checker/internal/rfq"
	"github.com/Checker-Finance/rfq-checker/internal/secrets"
	"github.com/Checker-Finance/rfq-checker/internal/store"
	"github.com/Checker-Finance/rfq-checker/pkg/config"
	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

// ErrUnknownProfile is returned by RunProfile for a name that is not configured.
var ErrUnknownProfile = errors.New("unknown profile")

// Client is the RFQ capability one workflow run needs. Satisfied by *rfq.Client.
type Client interface {
	Authenticate(ctx context.Context) (model.AuthToken, error)
	lifecycle.Service
}

// ClientFactory builds a Client for a resolved credential set.
type ClientFactory func(creds secrets.Credentials) Client

// EventPublisher announces finished runs. Satisfied by *publisher.Publisher.
type EventPublisher interface {
	PublishRun(ctx context.Context, run *model.RunResult) error
}

// WorkflowRunner periodically runs every configured profile's
// quote→order→verify workflow and records the results.
type WorkflowRunner struct {
	logger    *zap.Logger
	profiles  []config.Profile
	resolver  secrets.CredentialResolver
	newClient ClientFactory
	store     store.Store
	publisher EventPublisher
	interval  time.Duration
	timeout   time.Duration

	// orchestratorOpts are appended to every orchestrator, mainly for tests.
	orchestratorOpts []lifecycle.Option

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewWorkflowRunner constructs the runner. publisher may be nil.
func NewWorkflowRunner(
	logger *zap.Logger,
	profiles []config.Profile,
	resolver secrets.CredentialResolver,
	newClient ClientFactory,
	st store.Store,
	pub EventPublisher,
	interval, timeout time.Duration,
) *WorkflowRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowRunner{
		logger:    logger,
		profiles:  profiles,
		resolver:  resolver,
		newClient: newClient,
		store:     st,
		publisher: pub,
		interval:  interval,
		timeout:   timeout,
		stopCh:    make(chan struct{}),
	}
}

// Profiles returns the configured profile names.
func (r *WorkflowRunner) Profiles() []string {
	names := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		names = append(names, p.Name)
	}
	return names
}

// Start runs every profile immediately and then on each interval tick, until
// Stop is called or ctx ends.
func (r *WorkflowRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("workflow_runner.started",
		zap.Duration("interval", r.interval),
		zap.Strings("profiles", r.Profiles()))

	r.tick(ctx)
	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopCh:
			r.logger.Info("workflow_runner.stopped (manual stop)")
			return
		case <-ctx.Done():
			r.logger.Info("workflow_runner.stopped (context canceled)")
			return
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (r *WorkflowRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *WorkflowRunner) tick(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		r.logger.Warn("workflow_runner.skipped_overlap")
		return
	}
	defer r.running.Store(false)
	r.RunOnce(ctx)
}

// RunOnce runs all profiles concurrently, each with its own orchestrator, and
// returns their results in profile order.
func (r *WorkflowRunner) RunOnce(ctx context.Context) []*model.RunResult {
	results := make([]*model.RunResult, len(r.profiles))
	var g errgroup.Group
	for i := range r.profiles {
		i := i
		g.Go(func() error {
			results[i] = r.run(ctx, r.profiles[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// RunProfile runs the named profile once.
func (r *WorkflowRunner) RunProfile(ctx context.Context, name string) (*model.RunResult, error) {
	for _, p := range r.profiles {
		if p.Name == name {
			return r.run(ctx, p), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
}

// run executes one workflow pass. It always returns a result; failures are
// recorded on it rather than returned.
func (r *WorkflowRunner) run(ctx context.Context, p config.Profile) *model.RunResult {
	log := r.logger.With(zap.String("profile", p.Name))
	req := p.QuoteRequest()
	res := &model.RunResult{
		RunID:     uuid.New(),
		Profile:   p.Name,
		Pair:      req.Pair,
		Side:      req.Side,
		StartedAt: time.Now().UTC(),
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.execute(ctx, log, p, req, res); err != nil {
		res.Outcome = model.OutcomeFailed
		res.Error = err.Error()
		if n := attemptsOf(err); n > 0 {
			res.Attempts = n
		}
	}
	res.FinishedAt = time.Now().UTC()
	r.record(log, res)
	return res
}

func (r *WorkflowRunner) execute(ctx context.Context, log *zap.Logger, p config.Profile, req model.QuoteRequest, res *model.RunResult) error {
	key := p.CredentialsKey()
	creds, err := r.resolver.Resolve(ctx, key)
	if err != nil {
		return err
	}
	if req.AccountID == "" {
		req.AccountID = creds.AccountID
	}

	client := r.newClient(creds)
	token, err := client.Authenticate(ctx)
	if err != nil {
		var authErr *rfq.AuthError
		if errors.As(err, &authErr) && authErr.StatusCode != 0 {
			r.resolver.Forget(key)
		}
		return err
	}

	opts := append([]lifecycle.Option(nil), r.orchestratorOpts...)
	if p.IdempotencyKeys {
		opts = append(opts, lifecycle.WithIdempotencyKeys())
	}
	orch := lifecycle.NewOrchestrator(log, client, token, req, opts...)

	if !p.Execute {
		q, err := orch.GetValidQuote(ctx)
		if err != nil {
			return err
		}
		setQuote(res, q)
		res.Outcome = model.OutcomeQuoted
		return nil
	}

	exec, err := orch.RunQuoteToOrder(ctx, p.MaxRetries, p.BaseDelay.Duration)
	if err != nil {
		if q := orch.CurrentQuote(); q != nil {
			setQuote(res, q)
		}
		return err
	}
	setQuote(res, exec.Quote)
	res.OrderID = exec.Order.ID
	res.Attempts = exec.Attempts
	res.IdempotencyKey = exec.IdempotencyKey

	var visible bool
	if p.VisibilityPolls > 1 {
		visible, err = orch.AwaitOrderVisible(ctx, exec.Order, p.VisibilityPolls, p.BaseDelay.Duration)
	} else {
		visible, err = orch.VerifyOrderVisible(ctx, exec.Order)
	}
	if err != nil {
		return fmt.Errorf("verify order %s: %w", exec.Order.ID, err)
	}
	res.Visible = visible
	if visible {
		res.Outcome = model.OutcomeExecuted
	} else {
		res.Outcome = model.OutcomeInvisible
	}
	return nil
}

func setQuote(res *model.RunResult, q *model.Quote) {
	res.QuoteID = q.ID
	res.QuoteValidity = q.Validity()
}

// attemptsOf extracts the execution attempt count carried by lifecycle errors.
func attemptsOf(err error) int {
	var exhausted *lifecycle.RetryExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	var execErr *lifecycle.ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Attempts
	}
	var cancelled *lifecycle.CancelledError
	if errors.As(err, &cancelled) {
		return cancelled.Attempts
	}
	return 0
}

// record updates metrics, persists and publishes res. Persistence and publish
// failures are logged only; the run result itself stands.
func (r *WorkflowRunner) record(log *zap.Logger, res *model.RunResult) {
	metrics.RecordRun(res.Profile, string(res.Outcome), res.StartedAt, res.FinishedAt)

	// Runs are recorded even when the workflow's own context was cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.store != nil {
		if err := r.store.SaveRun(ctx, res); err != nil {
			metrics.IncError("store", "save_run_failed")
			log.Error("workflow.run.save_failed", zap.Error(err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishRun(ctx, res); err != nil {
			log.Warn("workflow.run.publish_failed", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("run_id", res.RunID.String()),
		zap.String("outcome", string(res.Outcome)),
		zap.String("quote_id", res.QuoteID),
		zap.Duration("quote_validity", res.QuoteValidity),
		zap.String("order_id", res.OrderID),
		zap.Int("attempts", res.Attempts),
		zap.Duration("duration", res.Duration()),
	}
	if res.Succeeded() {
		log.Info("workflow.run.completed", fields...)
		return
	}
	log.Warn("workflow.run.completed", append(fields, zap.String("error", res.Error))...)
}
