package jobs

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker()

	jobID := tracker.StartJob("recurring_sweep", "manual")
	require.NotEmpty(t, jobID)

	running := tracker.GetStatus()
	require.Len(t, running, 1)
	assert.Equal(t, "recurring_sweep", running[0].Name)
	assert.Equal(t, "manual", running[0].Trigger)
	assert.Equal(t, StatusRunning, running[0].Status)

	tracker.CompleteJob(jobID, map[string]int{"processed": 3})

	assert.Empty(t, tracker.GetStatus())

	history := tracker.GetJobHistory("recurring_sweep", 10)
	require.Len(t, history, 1)
	assert.Equal(t, StatusSuccess, history[0].Status)
	require.NotNil(t, history[0].EndTime)
	require.NotNil(t, history[0].Duration)
	assert.GreaterOrEqual(t, *history[0].Duration, 0.0)
}

func TestTrackerFailureRecordsError(t *testing.T) {
	tracker := NewTracker()

	jobID := tracker.StartJob("backup", "scheduled")
	tracker.FailJob(jobID, errors.New("bucket unreachable"))

	history := tracker.GetJobHistory("backup", 10)
	require.Len(t, history, 1)
	assert.Equal(t, StatusFailure, history[0].Status)
	assert.Equal(t, "bucket unreachable", history[0].Error)
}

func TestTrackerUnknownIDIsNoOp(t *testing.T) {
	tracker := NewTracker()

	tracker.CompleteJob("no-such-id", nil)
	tracker.FailJob("no-such-id", errors.New("ignored"))

	assert.Empty(t, tracker.GetStatus())
	assert.Empty(t, tracker.GetJobHistory("", 0))
}

func TestTrackerDoubleFinishKeepsFirstOutcome(t *testing.T) {
	tracker := NewTracker()

	jobID := tracker.StartJob("recurring_sweep", "manual")
	tracker.CompleteJob(jobID, nil)
	tracker.FailJob(jobID, errors.New("late failure"))

	history := tracker.GetJobHistory("recurring_sweep", 10)
	require.Len(t, history, 1)
	assert.Equal(t, StatusSuccess, history[0].Status)
}

func TestTrackerHistoryEviction(t *testing.T) {
	tracker := NewTrackerWithCapacity(5)

	for i := 0; i < 8; i++ {
		jobID := tracker.StartJob("recurring_sweep", "scheduled")
		tracker.CompleteJob(jobID, i)
	}

	history := tracker.GetJobHistory("recurring_sweep", 0)
	require.Len(t, history, 5)
	// Most recent first, oldest three evicted.
	assert.Equal(t, 7, history[0].Result)
	assert.Equal(t, 3, history[4].Result)
}

func TestTrackerHistoryAcrossNames(t *testing.T) {
	tracker := NewTracker()

	for _, name := range []string{"recurring_sweep", "backup", "recurring_sweep"} {
		jobID := tracker.StartJob(name, "scheduled")
		tracker.CompleteJob(jobID, nil)
	}

	all := tracker.GetJobHistory("", 0)
	assert.Len(t, all, 3)

	limited := tracker.GetJobHistory("", 2)
	assert.Len(t, limited, 2)

	sweeps := tracker.GetJobHistory("recurring_sweep", 0)
	assert.Len(t, sweeps, 2)
}

func TestTrackerStats(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < 3; i++ {
		jobID := tracker.StartJob("recurring_sweep", "scheduled")
		if i == 1 {
			tracker.FailJob(jobID, fmt.Errorf("run %d failed", i))
		} else {
			tracker.CompleteJob(jobID, nil)
		}
	}

	stats := tracker.GetJobStats("recurring_sweep")
	assert.Equal(t, 3, stats.TotalExecutions)
	assert.Equal(t, 2, stats.SuccessfulExecutions)
	assert.Equal(t, 1, stats.FailedExecutions)
	require.NotNil(t, stats.LastExecution)

	empty := tracker.GetJobStats("never_ran")
	assert.Zero(t, empty.TotalExecutions)
	assert.Nil(t, empty.LastExecution)
}

func TestMetricsText(t *testing.T) {
	tracker := NewTracker()

	jobID := tracker.StartJob("recurring_sweep", "scheduled")
	tracker.CompleteJob(jobID, nil)
	jobID = tracker.StartJob("backup", "scheduled")
	tracker.FailJob(jobID, errors.New("boom"))
	tracker.StartJob("recurring_sweep", "manual") // left running

	text := tracker.MetricsText()
	assert.Contains(t, text, `ledgerkeep_job_executions_total{job="recurring_sweep",status="success"} 1`)
	assert.Contains(t, text, `ledgerkeep_job_executions_total{job="backup",status="failure"} 1`)
	assert.Contains(t, text, "ledgerkeep_jobs_running 1")
	assert.True(t, strings.HasPrefix(text, "# HELP"))
}
