package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/rfq-checker/pkg/model"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	st, err := NewHybrid(mr.Addr(), 0, "", time.Hour, "", PGPoolConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

func sampleRun(profile string, started time.Time, outcome model.RunOutcome) *model.RunResult {
	return &model.RunResult{
		RunID:         uuid.New(),
		Profile:       profile,
		Pair:          "BTC-USD",
		Side:          model.SideBuy,
		StartedAt:     started,
		FinishedAt:    started.Add(1500 * time.Millisecond),
		QuoteID:       uuid.NewString(),
		QuoteValidity: 10 * time.Second,
		Attempts:      1,
		Outcome:       outcome,
	}
}

// fakeDB records Exec calls and fails Query on demand.
type fakeDB struct {
	execSQL  []string
	execArgs [][]any
	execErr  error
	queryErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, f.queryErr
}

// ─── HybridStore ──────────────────────────────────────────────────────────────

func TestSaveRun_LastRunRoundTrip(t *testing.T) {
	st, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	_, err := st.LastRun(ctx, "btc")
	assert.ErrorIs(t, err, ErrNotFound)

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	first := sampleRun("btc", t0, model.OutcomeQuoted)
	second := sampleRun("btc", t0.Add(time.Minute), model.OutcomeExecuted)
	require.NoError(t, st.SaveRun(ctx, first))
	require.NoError(t, st.SaveRun(ctx, second))

	last, err := st.LastRun(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, second.RunID, last.RunID)
	assert.Equal(t, model.OutcomeExecuted, last.Outcome)
	assert.Equal(t, 10*time.Second, last.QuoteValidity)

	assert.True(t, mr.Exists(lastRunKey("btc")))
	assert.Equal(t, time.Hour, mr.TTL(lastRunKey("btc")))
	assert.Equal(t, time.Hour, mr.TTL(historyKey("btc")))
}

func TestRecentRuns_RedisHistoryNewestFirstAndBounded(t *testing.T) {
	st, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < historyLen+5; i++ {
		r := sampleRun("eth", t0.Add(time.Duration(i)*time.Minute), model.OutcomeQuoted)
		ids = append(ids, r.RunID)
		require.NoError(t, st.SaveRun(ctx, r))
	}

	runs, err := st.RecentRuns(ctx, "eth", 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[len(ids)-1], runs[0].RunID)
	assert.Equal(t, ids[len(ids)-3], runs[2].RunID)

	all, err := st.RecentRuns(ctx, "eth", 0)
	require.NoError(t, err)
	assert.Len(t, all, historyLen)
}

func TestRecentRuns_SkipsCorruptEntries(t *testing.T) {
	st, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, st.SaveRun(ctx, sampleRun("x", time.Now(), model.OutcomeQuoted)))
	_, err := mr.Lpush(historyKey("x"), "not-json")
	require.NoError(t, err)

	runs, err := st.RecentRuns(ctx, "x", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestLastRun_InvalidJSON(t *testing.T) {
	st, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, mr.Set(lastRunKey("bad"), "not-json"))
	run, err := st.LastRun(context.Background(), "bad")
	assert.Nil(t, run)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSaveRun_JournalsWhenPostgresConfigured(t *testing.T) {
	_, mr := newTestStore(t)
	defer mr.Close()
	db := &fakeDB{}
	st := &HybridStore{
		redis:   redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		journal: NewJournal(db, nil),
		logger:  zap.NewNop(),
	}
	defer st.Close()

	run := sampleRun("btc", time.Now(), model.OutcomeFailed)
	run.Error = "execute quote: attempt 1 failed"
	require.NoError(t, st.SaveRun(context.Background(), run))

	require.Len(t, db.execSQL, 1)
	assert.Contains(t, db.execSQL[0], "monitoring.rfq_workflow_run")
	args := db.execArgs[0]
	require.Len(t, args, 14)
	assert.Equal(t, run.RunID, args[0])
	assert.Equal(t, "BUY", args[3])
	assert.Equal(t, int64(10000), args[7])
	assert.Nil(t, args[8], "empty order id is stored as NULL")
	assert.Equal(t, "failed", args[12])
}

func TestSaveRun_JournalErrorSurfaces(t *testing.T) {
	_, mr := newTestStore(t)
	defer mr.Close()
	db := &fakeDB{execErr: errors.New("relation does not exist")}
	st := &HybridStore{
		redis:   redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		journal: NewJournal(db, nil),
		logger:  zap.NewNop(),
	}
	defer st.Close()

	err := st.SaveRun(context.Background(), sampleRun("btc", time.Now(), model.OutcomeQuoted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal run")

	// Redis write still happened
	_, err = st.LastRun(context.Background(), "btc")
	assert.NoError(t, err)
}

func TestRecentRuns_PrefersJournal(t *testing.T) {
	_, mr := newTestStore(t)
	defer mr.Close()
	db := &fakeDB{queryErr: fmt.Errorf("conn closed")}
	st := &HybridStore{
		redis:   redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		journal: NewJournal(db, nil),
		logger:  zap.NewNop(),
	}
	defer st.Close()

	_, err := st.RecentRuns(context.Background(), "btc", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query recent runs")
}

func TestJournal_NilRun(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewJournal(db, nil).Record(context.Background(), nil))
	assert.Empty(t, db.execSQL)
}

// ─── HealthCheck / Close ──────────────────────────────────────────────────────

func TestHealthCheck_Success(t *testing.T) {
	st, mr := newTestStore(t)
	defer mr.Close()
	require.NoError(t, st.HealthCheck(context.Background()))
}

func TestHealthCheck_RedisNil(t *testing.T) {
	st := &HybridStore{}
	err := st.HealthCheck(context.Background())
	assert.ErrorContains(t, err, "redis not initialized")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	st := &HybridStore{redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	mr.Close()

	err = st.HealthCheck(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
}

func TestClose_NilComponents(t *testing.T) {
	require.NoError(t, (&HybridStore{}).Close())
}

func TestNewHybrid_Errors(t *testing.T) {
	_, err := NewHybrid("localhost:1", 0, "", 0, "", PGPoolConfig{}, nil)
	assert.ErrorContains(t, err, "redis ping failed")

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	_, err = NewHybrid(mr.Addr(), 0, "", 0, "not-a-valid-pg-url", PGPoolConfig{}, nil)
	assert.ErrorContains(t, err, "invalid pg config")
}

// ─── GetJSON ──────────────────────────────────────────────────────────────────

func TestGetJSON(t *testing.T) {
	st, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, mr.Set("k", `{"a":1}`))
	var out map[string]int
	require.NoError(t, st.GetJSON(ctx, "k", &out))
	assert.Equal(t, 1, out["a"])

	assert.Error(t, st.GetJSON(ctx, "missing", &out))
}

// ─── MemoryStore ──────────────────────────────────────────────────────────────

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.LastRun(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	t0 := time.Now()
	for i := 0; i < historyLen+2; i++ {
		require.NoError(t, m.SaveRun(ctx, sampleRun("p", t0.Add(time.Duration(i)*time.Second), model.OutcomeQuoted)))
	}
	last, err := m.LastRun(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Duration(historyLen+1)*time.Second), last.StartedAt)

	recent, err := m.RecentRuns(ctx, "p", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.True(t, recent[0].StartedAt.After(recent[1].StartedAt))

	all, err := m.RecentRuns(ctx, "p", 0)
	require.NoError(t, err)
	assert.Len(t, all, historyLen)
	assert.NoError(t, m.HealthCheck(ctx))
	assert.NoError(t, m.Close())
}
