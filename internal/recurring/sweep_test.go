package recurring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
	"github.com/ledgerkeep/ledgerkeep/internal/jobs"
)

// fakeFinder serves a canned set of due rules.
type fakeFinder struct {
	rules []domain.RecurringRule
	err   error
}

func (f *fakeFinder) FindDueRules(now time.Time) ([]domain.RecurringRule, error) {
	return f.rules, f.err
}

// blockingStore parks every ApplyRuleProcessing call until released.
type blockingStore struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) ApplyRuleProcessing(ruleID string, txn *domain.Transaction, update RuleUpdate) error {
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func newTestSweeper(finder DueRuleFinder, store Store, now time.Time) (*Sweeper, *jobs.Tracker) {
	tracker := jobs.NewTracker()
	processor := newTestProcessor(store, now)
	sweeper := NewSweeper(finder, processor, tracker, zerolog.Nop())
	sweeper.SetClock(func() time.Time { return now })
	return sweeper, tracker
}

func dueRules(n int) []domain.RecurringRule {
	rules := make([]domain.RecurringRule, n)
	for i := range rules {
		r := testRule()
		r.ID = string(rune('a' + i))
		rules[i] = *r
	}
	return rules
}

func TestRunSweepProcessesAllDueRules(t *testing.T) {
	now := date(2024, time.March, 15)
	store := &fakeStore{}
	sweeper, tracker := newTestSweeper(&fakeFinder{rules: dueRules(3)}, store, now)

	result, err := sweeper.RunSweep(context.Background(), "manual")
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 3, result.CreatedTransactions)
	assert.Zero(t, result.Errors)
	assert.Len(t, store.calls, 3)

	history := tracker.GetJobHistory(SweepJobName, 10)
	require.Len(t, history, 1)
	assert.Equal(t, jobs.StatusSuccess, history[0].Status)
	assert.Equal(t, "manual", history[0].Trigger)
}

func TestRunSweepEmptySet(t *testing.T) {
	sweeper, tracker := newTestSweeper(&fakeFinder{}, &fakeStore{}, date(2024, time.March, 15))

	result, err := sweeper.RunSweep(context.Background(), "scheduled")
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessingResult{}, result)

	history := tracker.GetJobHistory(SweepJobName, 10)
	require.Len(t, history, 1)
	assert.Equal(t, jobs.StatusSuccess, history[0].Status)
}

func TestRunSweepIsolatesRuleFailures(t *testing.T) {
	now := date(2024, time.March, 15)
	rules := dueRules(4)
	// One rule has a frequency the calculator rejects; the others proceed.
	rules[1].FrequencyType = "BOGUS"

	store := &fakeStore{}
	sweeper, _ := newTestSweeper(&fakeFinder{rules: rules}, store, now)

	result, err := sweeper.RunSweep(context.Background(), "scheduled")
	require.NoError(t, err, "per-rule failures never fail the sweep")
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 3, result.CreatedTransactions)
}

func TestRunSweepStoreQueryFailureIsFatal(t *testing.T) {
	sweeper, tracker := newTestSweeper(
		&fakeFinder{err: errors.New("database is locked")},
		&fakeStore{}, date(2024, time.March, 15))

	_, err := sweeper.RunSweep(context.Background(), "scheduled")
	require.Error(t, err)

	history := tracker.GetJobHistory(SweepJobName, 10)
	require.Len(t, history, 1)
	assert.Equal(t, jobs.StatusFailure, history[0].Status)
	assert.Contains(t, history[0].Error, "database is locked")
}

func TestRunSweepOverlapGuard(t *testing.T) {
	now := date(2024, time.March, 15)
	store := &blockingStore{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	sweeper, _ := newTestSweeper(&fakeFinder{rules: dueRules(1)}, store, now)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := sweeper.RunSweep(context.Background(), "scheduled")
		assert.NoError(t, err)
	}()

	// Wait until the first sweep is inside rule processing, then race it.
	<-store.entered
	_, err := sweeper.RunSweep(context.Background(), "manual")
	assert.ErrorIs(t, err, domain.ErrSweepInProgress)

	close(store.release)
	wg.Wait()
}

func TestRunSweepSequentialRunsAllowed(t *testing.T) {
	sweeper, tracker := newTestSweeper(&fakeFinder{}, &fakeStore{}, date(2024, time.March, 15))

	for i := 0; i < 3; i++ {
		_, err := sweeper.RunSweep(context.Background(), "manual")
		require.NoError(t, err)
	}

	assert.Len(t, tracker.GetJobHistory(SweepJobName, 10), 3)
}

func TestRunSweepCancelledContextStopsLoop(t *testing.T) {
	now := date(2024, time.March, 15)
	sweeper, _ := newTestSweeper(&fakeFinder{rules: dueRules(2)}, &fakeStore{}, now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sweeper.RunSweep(ctx, "scheduled")
	assert.ErrorIs(t, err, context.Canceled)
}
