package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkeep/ledgerkeep/internal/domain"
	"github.com/ledgerkeep/ledgerkeep/internal/recurring"
)

// sweepTimeout bounds one scheduled pass over all due rules.
const sweepTimeout = 10 * time.Minute

// SweepJob runs the daily recurring transaction sweep.
type SweepJob struct {
	sweeper *recurring.Sweeper
	log     zerolog.Logger
}

// NewSweepJob creates the scheduled sweep job.
func NewSweepJob(sweeper *recurring.Sweeper, log zerolog.Logger) *SweepJob {
	return &SweepJob{
		sweeper: sweeper,
		log:     log.With().Str("job", recurring.SweepJobName).Logger(),
	}
}

// Name returns the job name
func (j *SweepJob) Name() string {
	return recurring.SweepJobName
}

// Run executes one sweep. An already-running sweep is a skip, not a failure:
// the overlapping run would have found the same due rules.
func (j *SweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	_, err := j.sweeper.RunSweep(ctx, "scheduled")
	if errors.Is(err, domain.ErrSweepInProgress) {
		j.log.Warn().Msg("Previous sweep still running, skipping this tick")
		return nil
	}

	return err
}
