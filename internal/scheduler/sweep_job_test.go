package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
	"github.com/ledgerkeep/ledgerkeep/internal/jobs"
	"github.com/ledgerkeep/ledgerkeep/internal/recurring"
)

type staticFinder struct {
	rules []domain.RecurringRule
}

func (f *staticFinder) FindDueRules(now time.Time) ([]domain.RecurringRule, error) {
	return f.rules, nil
}

type noopStore struct{}

func (noopStore) ApplyRuleProcessing(ruleID string, txn *domain.Transaction, update recurring.RuleUpdate) error {
	return nil
}

func TestSweepJobRun(t *testing.T) {
	tracker := jobs.NewTracker()
	processor := recurring.NewProcessor(noopStore{}, zerolog.Nop())
	sweeper := recurring.NewSweeper(&staticFinder{}, processor, tracker, zerolog.Nop())

	job := NewSweepJob(sweeper, zerolog.Nop())
	assert.Equal(t, recurring.SweepJobName, job.Name())

	require.NoError(t, job.Run())

	history := tracker.GetJobHistory(recurring.SweepJobName, 10)
	require.Len(t, history, 1)
	assert.Equal(t, "scheduled", history[0].Trigger)
}
