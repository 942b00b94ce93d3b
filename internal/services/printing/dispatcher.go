package printing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comanda-system/internal/database/models"
)

var (
	ErrJobNotInProgress = errors.New("print job is not in progress")
	ErrJobTerminal      = errors.New("print job is in a terminal state")
)

// Dispatcher owns the durable print queue. Jobs are enqueued in the same
// transaction as the order item they belong to and handed out to pull-based
// workers through a row-locked claim, so printing never blocks the order or
// payment path and two concurrent pollers never receive the same job.
type Dispatcher struct {
	db          *gorm.DB
	maxAttempts int32
	log         *zap.Logger
}

func NewDispatcher(db *gorm.DB, maxAttempts int32, log *zap.Logger) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{db: db, maxAttempts: maxAttempts, log: log}
}

// Enqueue creates a pending job inside the caller's transaction. Content is
// pre-rendered and opaque to the queue.
func (d *Dispatcher) Enqueue(tx *gorm.DB, orderItemID, printerID int64, content string) (*models.PrintJob, error) {
	job := models.PrintJob{
		OrderItemId: orderItemID,
		PrinterId:   printerID,
		Content:     content,
		Status:      models.PrintJobPending,
		MaxAttempts: d.maxAttempts,
	}
	if err := tx.Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimedJob is the wire shape handed to the worker. Field names are part of
// the worker protocol and must not change.
type ClaimedJob struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	PrinterPort string `json:"printer_port"`
	PrinterName string `json:"printer_name"`
	OrderItemId int64  `json:"order_item_id"`
	Attempts    int32  `json:"attempts"`
	MaxAttempts int32  `json:"max_attempts"`
}

// Poll atomically claims up to limit deliverable jobs for the given worker.
// Each job is flipped to in_progress under a row lock before it is returned;
// SKIP LOCKED keeps concurrent pollers from blocking on each other's claims.
func (d *Dispatcher) Poll(ctx context.Context, limit int, workerID string) ([]ClaimedJob, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	var claimed []ClaimedJob
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var printerIDs []int64
		if err := tx.Model(&models.Printer{}).Where("is_active = ?", true).
			Pluck("id", &printerIDs).Error; err != nil {
			return err
		}
		if len(printerIDs) == 0 {
			return nil
		}

		var jobs []models.PrintJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Preload("Printer").
			Where("printer_id IN ?", printerIDs).
			Where("status = ? OR (status = ? AND attempts < max_attempts)",
				models.PrintJobPending, models.PrintJobFailed).
			Order("created_at").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}

		now := time.Now()
		for i := range jobs {
			job := &jobs[i]
			if !claimEligible(job) {
				continue
			}
			job.Status = models.PrintJobInProgress
			job.ClaimedBy = &workerID
			job.ClaimedAt = &now
			if err := tx.Save(job).Error; err != nil {
				return err
			}

			cj := ClaimedJob{
				ID:          job.ID,
				Content:     job.Content,
				OrderItemId: job.OrderItemId,
				Attempts:    job.Attempts,
				MaxAttempts: job.MaxAttempts,
			}
			if job.Printer != nil {
				cj.PrinterPort = job.Printer.Port
				cj.PrinterName = job.Printer.Name
			}
			claimed = append(claimed, cj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(claimed) > 0 && d.log != nil {
		d.log.Info("print jobs claimed",
			zap.Int("count", len(claimed)), zap.String("worker", workerID))
	}
	return claimed, nil
}

// MarkCompleted records a held job's successful physical print.
func (d *Dispatcher) MarkCompleted(ctx context.Context, jobID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.PrintJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, jobID).Error; err != nil {
			return err
		}
		if err := applyCompletion(&job, time.Now()); err != nil {
			return err
		}
		return tx.Save(&job).Error
	})
}

// MarkFailed records a failed attempt. The job stays retryable through Poll
// until attempts reach the cap; after that only a manual Retry revives it.
func (d *Dispatcher) MarkFailed(ctx context.Context, jobID int64, message string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.PrintJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, jobID).Error; err != nil {
			return err
		}
		if err := applyFailure(&job, message); err != nil {
			return err
		}
		if d.log != nil {
			d.log.Warn("print job failed",
				zap.Int64("job_id", job.ID),
				zap.Int32("attempts", job.Attempts),
				zap.Int32("max_attempts", job.MaxAttempts),
				zap.String("error", message))
		}
		return tx.Save(&job).Error
	})
}

// Retry is a manual operator action: it resets the attempt counter and
// requeues the job, bypassing the cap.
func (d *Dispatcher) Retry(ctx context.Context, jobID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.PrintJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, jobID).Error; err != nil {
			return err
		}
		if err := applyRetry(&job); err != nil {
			return err
		}
		return tx.Save(&job).Error
	})
}

// Cancel moves any non-terminal job to cancelled.
func (d *Dispatcher) Cancel(ctx context.Context, jobID int64) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.PrintJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&job, jobID).Error; err != nil {
			return err
		}
		if err := applyCancel(&job); err != nil {
			return err
		}
		return tx.Save(&job).Error
	})
}

// CancelForOrderItem voids undelivered tickets when their item is removed or
// canceled. Runs in the caller's transaction; jobs already printed stay as
// they are.
func (d *Dispatcher) CancelForOrderItem(tx *gorm.DB, orderItemID int64) error {
	return tx.Model(&models.PrintJob{}).
		Where("order_item_id = ? AND status IN ?", orderItemID,
			[]models.PrintJobStatus{models.PrintJobPending, models.PrintJobInProgress, models.PrintJobFailed}).
		Updates(map[string]interface{}{"status": models.PrintJobCancelled}).Error
}

// List returns jobs for operator inspection, optionally filtered by status.
func (d *Dispatcher) List(ctx context.Context, status string, limit int) ([]models.PrintJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := d.db.WithContext(ctx).Preload("Printer").Order("created_at DESC").Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var jobs []models.PrintJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}
