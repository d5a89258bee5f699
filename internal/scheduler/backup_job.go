package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ledgerkeep/ledgerkeep/internal/jobs"
	"github.com/ledgerkeep/ledgerkeep/internal/reliability"
)

// BackupJobName is the job name backups are tracked under.
const BackupJobName = "backup"

const backupTimeout = 30 * time.Minute

// BackupJob snapshots the ledger database and ships it to object storage.
type BackupJob struct {
	backups *reliability.BackupService
	tracker *jobs.Tracker
	log     zerolog.Logger
}

// NewBackupJob creates the scheduled backup job.
func NewBackupJob(backups *reliability.BackupService, tracker *jobs.Tracker, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		tracker: tracker,
		log:     log.With().Str("job", BackupJobName).Logger(),
	}
}

// Name returns the job name
func (j *BackupJob) Name() string {
	return BackupJobName
}

// Run executes one backup and records it in the job tracker.
func (j *BackupJob) Run() error {
	return j.RunWithTrigger("scheduled")
}

// RunWithTrigger executes one backup, tagging the tracked execution with the
// caller ("scheduled" or "manual").
func (j *BackupJob) RunWithTrigger(trigger string) error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()

	jobID := j.tracker.StartJob(BackupJobName, trigger)

	if err := j.backups.CreateAndUploadBackup(ctx); err != nil {
		j.tracker.FailJob(jobID, err)
		return err
	}

	j.tracker.CompleteJob(jobID, nil)
	return nil
}
