package orders

import (
	"fmt"

	"comanda-system/internal/database/models"
)

// ValidationError marks a malformed or impossible request rejected before any
// mutation happened.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is an illegal status change on an order item.
type InvalidTransitionError struct {
	ItemId int64
	From   models.ItemStatus
	To     models.ItemStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order item %d cannot move from %s to %s", e.ItemId, e.From, e.To)
}

var nextStatus = map[models.ItemStatus]models.ItemStatus{
	models.ItemStatusCreated:   models.ItemStatusPreparing,
	models.ItemStatusPreparing: models.ItemStatusServed,
	models.ItemStatusServed:    models.ItemStatusPaid,
}

// CanTransition enforces the CREATED -> PREPARING -> SERVED -> PAID chain,
// plus CANCELED from any non-terminal state. Same-status requests are the
// caller's no-op, not a transition.
func CanTransition(from, to models.ItemStatus) bool {
	if from == to {
		return false
	}
	if to == models.ItemStatusCanceled {
		return !IsTerminal(from)
	}
	return nextStatus[from] == to
}

type transitionPlan int

const (
	planNoop transitionPlan = iota
	planMove
	planCancel
)

// planStatusChange classifies a requested status update. Re-requesting the
// current status is a no-op (stations resubmit) and must leave no trace, not
// even an event; cancellation needs a reason; anything else must be a legal
// move through the chain.
func planStatusChange(itemID int64, current, requested models.ItemStatus, reason string) (transitionPlan, error) {
	if current == requested {
		return planNoop, nil
	}
	if !CanTransition(current, requested) {
		return planNoop, &InvalidTransitionError{ItemId: itemID, From: current, To: requested}
	}
	if requested == models.ItemStatusCanceled {
		if reason == "" {
			return planNoop, NewValidationError("cancellation requires a reason")
		}
		return planCancel, nil
	}
	return planMove, nil
}

// IsTerminal reports whether an item can never change status again.
func IsTerminal(status models.ItemStatus) bool {
	return status == models.ItemStatusPaid || status == models.ItemStatusCanceled
}

// ParseItemStatus validates a client-supplied status string.
func ParseItemStatus(s string) (models.ItemStatus, error) {
	switch models.ItemStatus(s) {
	case models.ItemStatusCreated, models.ItemStatusPreparing, models.ItemStatusServed,
		models.ItemStatusPaid, models.ItemStatusCanceled:
		return models.ItemStatus(s), nil
	}
	return "", NewValidationError("unknown item status %q", s)
}
