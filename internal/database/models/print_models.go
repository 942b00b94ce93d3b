package models

import "time"

type PrintJobStatus string

const (
	PrintJobPending    PrintJobStatus = "pending"
	PrintJobInProgress PrintJobStatus = "in_progress"
	PrintJobPrinted    PrintJobStatus = "printed"
	PrintJobFailed     PrintJobStatus = "failed"
	PrintJobCancelled  PrintJobStatus = "cancelled"
)

// PrintJob is one durable kitchen/receipt ticket. Content is rendered at
// enqueue time so the worker never needs order data to reprint.
type PrintJob struct {
	ID           int64          `gorm:"primaryKey;autoIncrement"`
	OrderItemId  int64          `gorm:"index;not null"`
	PrinterId    int64          `gorm:"index;not null"`
	Content      string         `gorm:"type:text;not null"`
	Status       PrintJobStatus `gorm:"type:varchar(16);not null;index"`
	Attempts     int32          `gorm:"not null;default:0"`
	MaxAttempts  int32          `gorm:"not null;default:3"`
	ErrorMessage *string        `gorm:"type:text"`
	ClaimedBy    *string        `gorm:"type:varchar(64)"`
	ClaimedAt    *time.Time
	PrintedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Printer *Printer `gorm:"foreignKey:PrinterId"`
}

// IsTerminal reports whether no further worker activity can touch the job.
// printed and cancelled are final; failed stays retryable until attempts
// reach the cap, and even then a manual retry may revive it.
func (j *PrintJob) IsTerminal() bool {
	return j.Status == PrintJobPrinted || j.Status == PrintJobCancelled
}
