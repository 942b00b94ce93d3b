package printing

import (
	"time"

	"comanda-system/internal/database/models"
)

// claimEligible reports whether Poll may hand the job to a worker: pending
// always, failed only while attempts remain. in_progress is excluded, so a
// job claimed by a dead worker is never handed out again without a manual
// retry.
func claimEligible(job *models.PrintJob) bool {
	switch job.Status {
	case models.PrintJobPending:
		return true
	case models.PrintJobFailed:
		return job.Attempts < job.MaxAttempts
	default:
		return false
	}
}

func applyCompletion(job *models.PrintJob, now time.Time) error {
	if job.Status != models.PrintJobInProgress {
		return ErrJobNotInProgress
	}
	job.Status = models.PrintJobPrinted
	job.PrintedAt = &now
	return nil
}

// applyFailure increments attempts and leaves the job retryable. Attempts only
// ever grow here; once they hit the cap the job sits in failed until a manual
// retry.
func applyFailure(job *models.PrintJob, message string) error {
	if job.Status != models.PrintJobInProgress {
		return ErrJobNotInProgress
	}
	job.Status = models.PrintJobFailed
	job.Attempts++
	job.ErrorMessage = &message
	return nil
}

func applyRetry(job *models.PrintJob) error {
	if job.IsTerminal() {
		return ErrJobTerminal
	}
	job.Status = models.PrintJobPending
	job.Attempts = 0
	job.ErrorMessage = nil
	job.ClaimedBy = nil
	job.ClaimedAt = nil
	return nil
}

func applyCancel(job *models.PrintJob) error {
	if job.IsTerminal() {
		return ErrJobTerminal
	}
	job.Status = models.PrintJobCancelled
	return nil
}
