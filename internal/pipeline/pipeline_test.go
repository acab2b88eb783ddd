package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/phase"
)

type fixture struct {
	store   *memStore
	log     *memLog
	tracker *phase.Tracker
	auditor *memAuditor
	runner  *Runner
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), log: newMemLog(), auditor: &memAuditor{}}
	f.tracker = phase.NewTracker(f.log, "run-1")
	f.runner = NewRunner(f.store, f.tracker, f.auditor, cfg, "run-1")
	return f
}

func (f *fixture) status(t *testing.T, id string, p model.Phase) model.PhaseStatus {
	t.Helper()
	st, err := f.tracker.Status(context.Background(), id, p)
	require.NoError(t, err)
	return st
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(newMemStore(), nil, nil, Config{}, "run-x")
	assert.Equal(t, defaultConcurrency, r.cfg.Concurrency)
	assert.Equal(t, defaultRecordTimeout, r.cfg.RecordTimeout)
	assert.Equal(t, "run-x", r.RunID())
}

func TestNewRunID_Unique(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestBatchResult_Record(t *testing.T) {
	res := &BatchResult{}
	res.record("a", "valid", nil)
	res.record("b", "valid", nil)
	res.record("c", "", errSkip)
	res.record("d", "", phase.ErrPhaseOrder)
	res.record("e", "", fmt.Errorf("boom"))

	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, map[string]int{"valid": 2}, res.Outcomes)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, RecordFailure{EntityID: "e", Reason: "boom"}, res.Failures[0])
}

func TestSweep_PagesWithLimit(t *testing.T) {
	var pages [][]int
	list := func(after string, limit int) ([]int, error) {
		start := 0
		if after != "" {
			fmt.Sscanf(after, "%d", &start) //nolint:errcheck
		}
		var page []int
		for i := start + 1; i <= 7 && len(page) < limit; i++ {
			page = append(page, i)
		}
		pages = append(pages, page)
		return page, nil
	}
	key := func(i int) string { return fmt.Sprint(i) }

	res := &BatchResult{}
	err := sweep(context.Background(), withDefaults(Config{Limit: 5}), res, list, key,
		func(context.Context, int) (string, error) { return "ok", nil })
	require.NoError(t, err)

	assert.Len(t, pages, 1)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 5, res.Outcomes["ok"])
}

func TestSweep_ListErrorAborts(t *testing.T) {
	res := &BatchResult{}
	list := func(string, int) ([]int, error) { return nil, fmt.Errorf("db down") }
	err := sweep(context.Background(), withDefaults(Config{}), res, list,
		func(i int) string { return fmt.Sprint(i) },
		func(context.Context, int) (string, error) { return "", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Zero(t, res.Processed)
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := &BatchResult{}
	err := forEach(ctx, withDefaults(Config{}), []int{1, 2, 3},
		func(i int) string { return fmt.Sprint(i) }, res,
		func(context.Context, int) (string, error) { return "ok", nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
	assert.Zero(t, res.Processed)
}

func TestForEach_RecordTimeout(t *testing.T) {
	res := &BatchResult{}
	cfg := withDefaults(Config{Concurrency: 2, RecordTimeout: 20 * time.Millisecond})
	err := forEach(context.Background(), cfg, []int{1, 2},
		func(i int) string { return fmt.Sprint(i) }, res,
		func(ctx context.Context, i int) (string, error) {
			if i == 2 {
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "ok", nil
		})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "2", res.Failures[0].EntityID)
	assert.Contains(t, res.Failures[0].Reason, "timed out")
}

func TestForEach_FailuresSorted(t *testing.T) {
	res := &BatchResult{}
	err := forEach(context.Background(), withDefaults(Config{Concurrency: 4}), []string{"d", "b", "c", "a"},
		func(s string) string { return s }, res,
		func(context.Context, string) (string, error) { return "", fmt.Errorf("nope") })
	require.NoError(t, err)

	require.Len(t, res.Failures, 4)
	for i, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, id, res.Failures[i].EntityID)
	}
}
