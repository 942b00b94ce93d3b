package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comanda-system/internal/database/models"
	"comanda-system/internal/events"
	"comanda-system/internal/services/orders"
)

// OverpaymentError rejects a payment that would exceed the uncovered balance,
// either of the whole order or of the items a split references.
type OverpaymentError struct {
	OrderId   int64
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds the remaining balance of %s on order %d",
		e.Requested.StringFixed(2), e.Remaining.StringFixed(2), e.OrderId)
}

// SplitInput assigns part of the bill to specific items.
type SplitInput struct {
	ItemIds []int64
	Method  string
	Amount  decimal.Decimal
	Payer   string
}

// Reconciler applies payments against orders. It records reconciled amounts
// only; it never moves real money. Payment creation and the item/order
// status transitions it causes always share one transaction.
type Reconciler struct {
	db     *gorm.DB
	events *events.Publisher
	log    *zap.Logger
}

func NewReconciler(db *gorm.DB, publisher *events.Publisher, log *zap.Logger) *Reconciler {
	return &Reconciler{db: db, events: publisher, log: log}
}

// PayFull applies one payment against the whole order. Every item must have
// left CREATED, and the amount may not exceed what is still uncovered. Once
// the order is fully covered, served items and the order itself go to PAID.
func (r *Reconciler) PayFull(ctx context.Context, orderID int64, method, payer string, amount decimal.Decimal) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, orders.NewValidationError("payment amount must be positive")
	}
	if method == "" {
		return nil, orders.NewValidationError("payment method is required")
	}

	var payment *models.Payment
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, items, err := r.lockOrder(tx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Status == models.ItemStatusCreated {
				return orders.NewValidationError("item %d has not left CREATED; serve or cancel it before payment", item.ID)
			}
		}

		grand, paid, err := r.balance(tx, order)
		if err != nil {
			return err
		}
		remaining := grand.Sub(paid)
		if amount.GreaterThan(remaining) {
			return &OverpaymentError{OrderId: order.ID, Remaining: remaining, Requested: amount}
		}

		payment = &models.Payment{
			OrderId: order.ID,
			Amount:  amount.StringFixed(2),
			Method:  method,
			Payer:   payer,
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

		if paid.Add(amount).Equal(grand) {
			return r.settleOrder(tx, order, items)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.afterPayment(ctx, orderID)
	return payment, nil
}

// PaySplit divides the bill across item groups. Each split becomes one
// Payment plus one PaymentItem per referenced item carrying a proportional
// share of the split amount, capped at that item's uncovered remainder so the
// per-item sum never exceeds its price. Settling an already-covered item
// again is rejected rather than double-counted.
func (r *Reconciler) PaySplit(ctx context.Context, orderID int64, splits []SplitInput) ([]models.Payment, error) {
	if len(splits) == 0 {
		return nil, orders.NewValidationError("at least one split is required")
	}
	totalSplit := decimal.Zero
	for i, split := range splits {
		if len(split.ItemIds) == 0 {
			return nil, orders.NewValidationError("split %d references no items", i)
		}
		if !split.Amount.IsPositive() {
			return nil, orders.NewValidationError("split %d amount must be positive", i)
		}
		if split.Method == "" {
			return nil, orders.NewValidationError("split %d has no payment method", i)
		}
		totalSplit = totalSplit.Add(split.Amount)
	}

	splitGroup := uuid.New().String()
	var created []models.Payment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, items, err := r.lockOrder(tx, orderID)
		if err != nil {
			return err
		}

		grand, paid, err := r.balance(tx, order)
		if err != nil {
			return err
		}
		if totalSplit.GreaterThan(grand.Sub(paid)) {
			return &OverpaymentError{OrderId: order.ID, Remaining: grand.Sub(paid), Requested: totalSplit}
		}

		itemsByID := make(map[int64]*models.OrderItem, len(items))
		for i := range items {
			itemsByID[items[i].ID] = &items[i]
		}
		covered, err := r.coveredByItem(tx, items)
		if err != nil {
			return err
		}

		for _, split := range splits {
			targets := make([]*models.OrderItem, 0, len(split.ItemIds))
			remainders := make([]decimal.Decimal, 0, len(split.ItemIds))
			for _, id := range split.ItemIds {
				item, ok := itemsByID[id]
				if !ok {
					return orders.NewValidationError("item %d does not belong to order %d", id, order.ID)
				}
				if item.Status == models.ItemStatusCanceled {
					return orders.NewValidationError("item %d is canceled and cannot be paid", id)
				}
				if item.Status == models.ItemStatusCreated {
					return orders.NewValidationError("item %d has not left CREATED; serve or cancel it before payment", id)
				}
				price, err := decimal.NewFromString(item.TotalPrice)
				if err != nil {
					return fmt.Errorf("invalid total price on item %d: %w", item.ID, err)
				}
				targets = append(targets, item)
				remainders = append(remainders, price.Sub(covered[item.ID]))
			}

			shares, err := Prorate(split.Amount, remainders)
			if errors.Is(err, ErrExceedsRemainder) {
				return &OverpaymentError{OrderId: order.ID, Remaining: sum(remainders), Requested: split.Amount}
			}
			if err != nil {
				return err
			}

			payment := models.Payment{
				OrderId:    order.ID,
				Amount:     split.Amount.StringFixed(2),
				Method:     split.Method,
				Payer:      split.Payer,
				SplitGroup: &splitGroup,
			}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}

			for i, item := range targets {
				if shares[i].IsZero() {
					continue
				}
				paymentItem := models.PaymentItem{
					PaymentId:   payment.ID,
					OrderItemId: item.ID,
					Amount:      shares[i].StringFixed(2),
				}
				if err := tx.Create(&paymentItem).Error; err != nil {
					return err
				}

				covered[item.ID] = covered[item.ID].Add(shares[i])
				price, _ := decimal.NewFromString(item.TotalPrice)
				if covered[item.ID].Equal(price) && item.Status == models.ItemStatusServed {
					item.Status = models.ItemStatusPaid
					if err := tx.Save(item).Error; err != nil {
						return err
					}
				}
			}
			created = append(created, payment)
		}

		if paid.Add(totalSplit).Equal(grand) {
			return r.settleOrder(tx, order, items)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.afterPayment(ctx, orderID)
	return created, nil
}

// MarkReceiptPrinted is one-way and deliberately not idempotent: printing two
// fiscal receipts for one payment is an error the operator must notice.
func (r *Reconciler) MarkReceiptPrinted(ctx context.Context, paymentID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&payment, paymentID).Error; err != nil {
			return err
		}
		if payment.ReceiptPrinted {
			return orders.NewValidationError("receipt already printed for payment %d", payment.ID)
		}
		payment.ReceiptPrinted = true
		return tx.Save(&payment).Error
	})
}

func (r *Reconciler) lockOrder(tx *gorm.DB, orderID int64) (*models.Order, []models.OrderItem, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, orderID).Error; err != nil {
		return nil, nil, err
	}
	if order.Status == models.OrderStatusPaid {
		return nil, nil, orders.NewValidationError("order %d is already paid", order.ID)
	}

	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Order("id").Find(&items).Error; err != nil {
		return nil, nil, err
	}
	return &order, items, nil
}

// balance computes the grand total (food plus container sales) and the amount
// already paid, both rebuilt from persisted rows.
func (r *Reconciler) balance(tx *gorm.DB, order *models.Order) (grand, paid decimal.Decimal, err error) {
	if err = tx.Where("order_id = ?", order.ID).Find(&order.ContainerSales).Error; err != nil {
		return
	}
	grand, err = orders.GrandTotal(order)
	if err != nil {
		return
	}

	var existing []models.Payment
	if err = tx.Where("order_id = ?", order.ID).Find(&existing).Error; err != nil {
		return
	}
	paid = decimal.Zero
	for _, p := range existing {
		var amount decimal.Decimal
		amount, err = decimal.NewFromString(p.Amount)
		if err != nil {
			err = fmt.Errorf("invalid amount on payment %d: %w", p.ID, err)
			return
		}
		paid = paid.Add(amount)
	}
	return
}

func (r *Reconciler) coveredByItem(tx *gorm.DB, items []models.OrderItem) (map[int64]decimal.Decimal, error) {
	covered := make(map[int64]decimal.Decimal, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		covered[item.ID] = decimal.Zero
		ids = append(ids, item.ID)
	}
	if len(ids) == 0 {
		return covered, nil
	}

	var rows []models.PaymentItem
	if err := tx.Where("order_item_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount on payment item %d: %w", row.ID, err)
		}
		covered[row.OrderItemId] = covered[row.OrderItemId].Add(amount)
	}
	return covered, nil
}

// settleOrder marks the covered order PAID along with every item that can
// legally make the move. PAID is terminal for both.
func (r *Reconciler) settleOrder(tx *gorm.DB, order *models.Order, items []models.OrderItem) error {
	for i := range items {
		if items[i].Status != models.ItemStatusServed {
			continue
		}
		items[i].Status = models.ItemStatusPaid
		if err := tx.Save(&items[i]).Error; err != nil {
			return err
		}
	}
	order.Status = models.OrderStatusPaid
	return tx.Save(order).Error
}

func (r *Reconciler) afterPayment(ctx context.Context, orderID int64) {
	r.events.Publish(ctx, events.EventPaymentProcessed, map[string]int64{"order_id": orderID})
	r.events.InvalidateOrder(ctx, orderID)
}
