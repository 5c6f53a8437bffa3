package rate

import (
	"context"
	"sync"
	"time"
)

// Config defines rate limiting parameters for one RFQ credential set.
type Config struct {
	RequestsPerSecond int
	Burst             int
}

// Limiter implements a token bucket. A zero or negative rate disables limiting.
type Limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
	now    func() time.Time
}

// New creates a limiter with a full bucket.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens: float64(burst),
		last:   time.Now(),
		rate:   float64(cfg.RequestsPerSecond),
		burst:  float64(burst),
		now:    time.Now,
	}
}

// reserve takes a token if one is available, otherwise reports how long until one will be.
func (l *Limiter) reserve() (bool, time.Duration) {
	if l.rate <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	missing := 1 - l.tokens
	return false, time.Duration(missing / l.rate * float64(time.Second))
}

// allow takes a token without blocking.
func (l *Limiter) allow() bool {
	ok, _ := l.reserve()
	return ok
}

// Wait blocks until a token becomes available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, wait := l.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Manager holds one limiter per key (profile credentials).
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

// NewManager creates a Manager whose limiters all use defaults.
func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

// GetLimiter returns the limiter for key, creating it on first use.
func (m *Manager) GetLimiter(key string) *Limiter {
	m.mu.RLock()
	lim, ok := m.limiters[key]
	m.mu.RUnlock()
	if ok {
		return lim
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim = New(m.defaults)
	m.limiters[key] = lim
	return lim
}

// Wait ensures rate limit compliance for key.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
