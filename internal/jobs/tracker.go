// Package jobs provides in-process job execution tracking: who ran, when,
// how long, and with what outcome. This is a lightweight diagnostic layer
// for the health and metrics surfaces, not an audit log - nothing here
// survives a process restart.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryCapacity is how many finished executions are retained per
// job name before the oldest are evicted.
const DefaultHistoryCapacity = 50

// Status is the lifecycle state of a tracked execution.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Execution is one tracked job run.
type Execution struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Trigger   string      `json:"trigger,omitempty"`
	Status    Status      `json:"status"`
	StartTime time.Time   `json:"start_time"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Duration  *float64    `json:"duration_ms,omitempty"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Stats aggregates finished executions for one job name (or all names).
type Stats struct {
	TotalExecutions      int        `json:"total_executions"`
	SuccessfulExecutions int        `json:"successful_executions"`
	FailedExecutions     int        `json:"failed_executions"`
	AverageDurationMs    float64    `json:"average_duration_ms"`
	LastExecution        *time.Time `json:"last_execution,omitempty"`
}

// Tracker records job executions in memory with bounded per-name history.
//
// Record methods never return errors: observability must not be able to
// break rule processing. Completing or failing an unknown id is a no-op.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	running  map[string]*Execution
	history  map[string][]*Execution // per job name, oldest first
}

// NewTracker creates a tracker with the default history capacity.
func NewTracker() *Tracker {
	return NewTrackerWithCapacity(DefaultHistoryCapacity)
}

// NewTrackerWithCapacity creates a tracker with a custom per-name capacity.
func NewTrackerWithCapacity(capacity int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	return &Tracker{
		capacity: capacity,
		running:  make(map[string]*Execution),
		history:  make(map[string][]*Execution),
	}
}

// StartJob registers a running execution and returns its opaque id.
// The trigger tag identifies the caller (e.g. "scheduled", "manual").
func (t *Tracker) StartJob(name, trigger string) string {
	exec := &Execution{
		ID:        uuid.NewString(),
		Name:      name,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartTime: time.Now(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[exec.ID] = exec

	return exec.ID
}

// CompleteJob marks an execution successful and stores its result payload.
func (t *Tracker) CompleteJob(jobID string, result interface{}) {
	t.finish(jobID, StatusSuccess, result, nil)
}

// FailJob marks an execution failed and stores its error message.
func (t *Tracker) FailJob(jobID string, err error) {
	t.finish(jobID, StatusFailure, nil, err)
}

func (t *Tracker) finish(jobID string, status Status, result interface{}, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	exec, ok := t.running[jobID]
	if !ok {
		// Unknown or already finished id - degrade silently.
		return
	}
	delete(t.running, jobID)

	now := time.Now()
	durationMs := float64(now.Sub(exec.StartTime)) / float64(time.Millisecond)
	exec.EndTime = &now
	exec.Duration = &durationMs
	exec.Status = status
	exec.Result = result
	if err != nil {
		exec.Error = err.Error()
	}

	// Bounded ring buffer per job name: evict oldest once over capacity.
	hist := append(t.history[exec.Name], exec)
	if len(hist) > t.capacity {
		hist = hist[len(hist)-t.capacity:]
	}
	t.history[exec.Name] = hist
}

// GetStatus returns currently running executions, most recently started first.
func (t *Tracker) GetStatus() []Execution {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Execution, 0, len(t.running))
	for _, exec := range t.running {
		out = append(out, *exec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})

	return out
}

// GetJobHistory returns up to limit finished executions, most recent first.
// An empty name merges history across all job names.
func (t *Tracker) GetJobHistory(name string, limit int) []Execution {
	t.mu.Lock()
	defer t.mu.Unlock()

	var merged []Execution
	if name != "" {
		for _, exec := range t.history[name] {
			merged = append(merged, *exec)
		}
	} else {
		for _, hist := range t.history {
			for _, exec := range hist {
				merged = append(merged, *exec)
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartTime.After(merged[j].StartTime)
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return merged
}

// GetJobStats returns aggregate counts over retained history.
// An empty name aggregates across all job names.
func (t *Tracker) GetJobStats(name string) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stats Stats
	var totalDurationMs float64

	collect := func(hist []*Execution) {
		for _, exec := range hist {
			stats.TotalExecutions++
			switch exec.Status {
			case StatusSuccess:
				stats.SuccessfulExecutions++
			case StatusFailure:
				stats.FailedExecutions++
			}
			if exec.Duration != nil {
				totalDurationMs += *exec.Duration
			}
			if stats.LastExecution == nil || exec.StartTime.After(*stats.LastExecution) {
				start := exec.StartTime
				stats.LastExecution = &start
			}
		}
	}

	if name != "" {
		collect(t.history[name])
	} else {
		for _, hist := range t.history {
			collect(hist)
		}
	}

	if stats.TotalExecutions > 0 {
		stats.AverageDurationMs = totalDurationMs / float64(stats.TotalExecutions)
	}

	return stats
}

// Names returns all job names with retained history, sorted.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.history))
	for name := range t.history {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
