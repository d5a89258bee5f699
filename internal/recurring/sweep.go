package recurring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
	"github.com/ledgerkeep/ledgerkeep/internal/jobs"
)

// SweepJobName is the job name sweeps are tracked under.
const SweepJobName = "recurring_sweep"

// DueRuleFinder is the read side of the rule store the sweep depends on.
type DueRuleFinder interface {
	FindDueRules(now time.Time) ([]domain.RecurringRule, error)
}

// Sweeper runs one full pass over all due rules.
//
// Sweeps are mutually exclusive: a run requested while another is in flight
// fails fast with domain.ErrSweepInProgress instead of double-processing
// rules whose due dates have not advanced yet.
type Sweeper struct {
	store     DueRuleFinder
	processor *Processor
	tracker   *jobs.Tracker
	now       func() time.Time
	log       zerolog.Logger
	mu        sync.Mutex
}

// NewSweeper creates a new sweep runner.
func NewSweeper(store DueRuleFinder, processor *Processor, tracker *jobs.Tracker, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:     store,
		processor: processor,
		tracker:   tracker,
		now:       time.Now,
		log:       log.With().Str("component", "sweep_runner").Logger(),
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// RunSweep executes one full pass over all due rules and records the
// execution in the job tracker. The trigger tag identifies the caller
// ("scheduled" or "manual"); both go through the same processing path.
//
// Per-rule failures are isolated and counted; only infrastructure failures
// (store unreachable) fail the sweep as a whole.
func (s *Sweeper) RunSweep(ctx context.Context, trigger string) (domain.ProcessingResult, error) {
	if !s.mu.TryLock() {
		s.log.Warn().Str("trigger", trigger).Msg("Sweep already in progress, skipping")
		return domain.ProcessingResult{}, domain.ErrSweepInProgress
	}
	defer s.mu.Unlock()

	jobID := s.tracker.StartJob(SweepJobName, trigger)
	start := s.now()

	result, err := s.sweep(ctx)
	if err != nil {
		s.tracker.FailJob(jobID, err)
		s.log.Error().Err(err).Str("trigger", trigger).Msg("Recurring sweep failed")
		return domain.ProcessingResult{}, err
	}

	s.tracker.CompleteJob(jobID, result)

	s.log.Info().
		Str("trigger", trigger).
		Int("processed", result.Processed).
		Int("errors", result.Errors).
		Int("created", result.CreatedTransactions).
		Int("deactivated", result.DeactivatedRules).
		Dur("duration", s.now().Sub(start)).
		Msg("Recurring sweep completed")

	return result, nil
}

// sweep is the pass itself: query due rules, fold each rule's outcome into
// an aggregate result.
func (s *Sweeper) sweep(ctx context.Context) (domain.ProcessingResult, error) {
	now := s.now()

	rules, err := s.store.FindDueRules(now)
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("failed to find due rules: %w", err)
	}
	// A nil slice with no error means zero due rules, which is fine. A store
	// that cannot even be queried has already returned an error above and
	// failed the sweep loudly.

	var result domain.ProcessingResult
	for i := range rules {
		rule := &rules[i]

		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, err := s.processor.ProcessRule(ctx, rule)
		if err != nil {
			result.Errors++
			s.log.Error().
				Err(err).
				Str("rule_id", rule.ID).
				Msg("Failed to process recurring rule")
			continue
		}

		result = result.Add(stepResult(outcome))
	}

	return result, nil
}

// stepResult translates one step outcome into result counters.
func stepResult(outcome StepOutcome) domain.ProcessingResult {
	r := domain.ProcessingResult{Processed: 1}
	if outcome.CreatedTransaction {
		r.CreatedTransactions = 1
	}
	if outcome.SkippedFirst {
		r.SkippedFirst = 1
	}
	if outcome.Deactivated {
		r.DeactivatedRules = 1
	}
	return r
}
