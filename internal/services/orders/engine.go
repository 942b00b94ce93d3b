package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comanda-system/internal/database/models"
	"comanda-system/internal/events"
	"comanda-system/internal/services/printing"
	"comanda-system/internal/services/stock"
)

// ItemInput is one requested line before per-unit expansion.
type ItemInput struct {
	RecipeId    int64
	Quantity    int32
	Notes       string
	IsTakeaway  bool
	ContainerId *int64
}

// Engine owns the Order/OrderItem lifecycle and the total invariant. Every
// multi-step mutation (reserve stock, write rows, enqueue print jobs) runs in
// one transaction and rolls back entirely on any failure; cache invalidation
// and change events fire only after commit.
type Engine struct {
	db         *gorm.DB
	ledger     *stock.Ledger
	dispatcher *printing.Dispatcher
	events     *events.Publisher
	log        *zap.Logger
}

func NewEngine(db *gorm.DB, ledger *stock.Ledger, dispatcher *printing.Dispatcher, publisher *events.Publisher, log *zap.Logger) *Engine {
	return &Engine{db: db, ledger: ledger, dispatcher: dispatcher, events: publisher, log: log}
}

// CreateOrder admits a whole request or none of it: every recipe must be
// active and available and every reservation must succeed, otherwise the
// transaction rolls back with no partial stock mutation.
func (e *Engine) CreateOrder(ctx context.Context, tableID int64, waiter string, items []ItemInput) (*models.Order, error) {
	if waiter == "" {
		return nil, NewValidationError("waiter is required")
	}
	if len(items) == 0 {
		return nil, NewValidationError("order needs at least one item")
	}

	expanded, err := ExpandItems(items)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	var queued int
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.DiningTable
		if err := tx.First(&table, tableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewValidationError("table %d does not exist", tableID)
			}
			return err
		}

		order = &models.Order{
			TableId:     table.ID,
			Waiter:      waiter,
			Status:      models.OrderStatusCreated,
			TotalAmount: "0.00",
		}
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		if queued, err = e.appendItems(tx, order, &table, expanded); err != nil {
			return err
		}
		return e.recalculateTotal(tx, order)
	})
	if err != nil {
		return nil, err
	}

	e.afterOrderChange(ctx, events.EventOrderCreated, order.ID)
	e.notifyQueued(ctx, order.ID, queued)
	return order, nil
}

// FindOpenOrder returns the table's current unpaid order, or nil when the
// table is free. It is the explicit merge point AddItems builds on.
func (e *Engine) FindOpenOrder(ctx context.Context, tableID int64) (*models.Order, error) {
	var order models.Order
	err := e.db.WithContext(ctx).
		Where("table_id = ? AND status = ?", tableID, models.OrderStatusCreated).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// AddItems appends units to the table's open order instead of creating a
// duplicate; when the table has no open order one is created.
func (e *Engine) AddItems(ctx context.Context, tableID int64, waiter string, items []ItemInput) (*models.Order, error) {
	open, err := e.FindOpenOrder(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return e.CreateOrder(ctx, tableID, waiter, items)
	}

	expanded, err := ExpandItems(items)
	if err != nil {
		return nil, err
	}

	var queued int
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(open, open.ID).Error; err != nil {
			return err
		}
		if open.Status != models.OrderStatusCreated {
			return NewValidationError("order %d is already paid", open.ID)
		}

		var table models.DiningTable
		if err := tx.First(&table, open.TableId).Error; err != nil {
			return err
		}

		if queued, err = e.appendItems(tx, open, &table, expanded); err != nil {
			return err
		}
		return e.recalculateTotal(tx, open)
	})
	if err != nil {
		return nil, err
	}

	e.afterOrderChange(ctx, events.EventOrderUpdated, open.ID)
	e.notifyQueued(ctx, open.ID, queued)
	return open, nil
}

// UpdateItemStatus walks the item state machine. Re-requesting the current
// status is an idempotent no-op because concurrent stations resubmit; any
// other illegal move fails with InvalidTransitionError. Cancellation needs a
// reason and, for items the kitchen has not picked up, puts the stock back.
func (e *Engine) UpdateItemStatus(ctx context.Context, itemID int64, newStatus models.ItemStatus, reason string) (*models.OrderItem, error) {
	var item models.OrderItem
	var plan transitionPlan
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, itemID).Error; err != nil {
			return err
		}

		var err error
		if plan, err = planStatusChange(item.ID, item.Status, newStatus, reason); err != nil {
			return err
		}

		switch plan {
		case planNoop:
			return nil
		case planCancel:
			if err := e.cancelItem(tx, &item, reason); err != nil {
				return err
			}
		default:
			item.Status = newStatus
			if err := tx.Save(&item).Error; err != nil {
				return err
			}
		}

		var order models.Order
		if err := tx.First(&order, item.OrderId).Error; err != nil {
			return err
		}
		return e.recalculateTotal(tx, &order)
	})
	if err != nil {
		return nil, err
	}

	if plan != planNoop {
		e.afterOrderChange(ctx, events.EventItemStatusChanged, item.OrderId)
	}
	return &item, nil
}

// DeleteItem removes an item that the kitchen has not touched. The stock
// restore itself happens in the OrderItem BeforeDelete hook, so cascaded and
// bulk deletions are covered by the same path.
func (e *Engine) DeleteItem(ctx context.Context, itemID int64) error {
	var orderID int64
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.OrderItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&item, itemID).Error; err != nil {
			return err
		}
		if item.Status != models.ItemStatusCreated {
			return NewValidationError("only items in CREATED can be removed; item %d is %s", item.ID, item.Status)
		}
		orderID = item.OrderId

		if err := e.dispatcher.CancelForOrderItem(tx, item.ID); err != nil {
			return err
		}
		if err := tx.Delete(&item).Error; err != nil {
			return err
		}

		var order models.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			return err
		}
		return e.recalculateTotal(tx, &order)
	})
	if err != nil {
		return err
	}

	e.afterOrderChange(ctx, events.EventOrderUpdated, orderID)
	return nil
}

// CancelOrder cancels every non-terminal item on the order. Paid orders never
// reverse; canceling one item elsewhere never touches its siblings, this is
// the only operation that fans out.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64, reason string) error {
	if reason == "" {
		return NewValidationError("cancellation requires a reason")
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status == models.OrderStatusPaid {
			return NewValidationError("order %d is already paid", order.ID)
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}
		for i := range items {
			if IsTerminal(items[i].Status) {
				continue
			}
			if err := e.cancelItem(tx, &items[i], reason); err != nil {
				return err
			}
		}
		return e.recalculateTotal(tx, &order)
	})
	if err != nil {
		return err
	}

	e.afterOrderChange(ctx, events.EventOrderCanceled, orderID)
	return nil
}

// GetOrder loads the order aggregate with its computed grand total.
func (e *Engine) GetOrder(ctx context.Context, orderID int64) (*models.Order, decimal.Decimal, error) {
	var order models.Order
	err := e.db.WithContext(ctx).
		Preload("Table").
		Preload("OrderItems.Recipe").
		Preload("OrderItems.Container").
		Preload("ContainerSales").
		Preload("Payments").
		First(&order, orderID).Error
	if err != nil {
		return nil, decimal.Zero, err
	}

	grand, err := GrandTotal(&order)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &order, grand, nil
}

// appendItems reserves stock, writes the per-unit rows and enqueues one
// kitchen ticket per unit, all inside the caller's transaction and in that
// explicit order. Returns the number of tickets enqueued.
func (e *Engine) appendItems(tx *gorm.DB, order *models.Order, table *models.DiningTable, expanded []ItemInput) (int, error) {
	queued := 0
	printer, err := e.defaultPrinter(tx)
	if err != nil {
		return 0, err
	}
	reference := fmt.Sprintf("order:%d", order.ID)

	for _, in := range expanded {
		var recipe models.Recipe
		if err := tx.First(&recipe, in.RecipeId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, NewValidationError("recipe %d does not exist", in.RecipeId)
			}
			return 0, err
		}
		if !recipe.IsActive || !recipe.IsAvailable {
			return 0, NewValidationError("recipe %q is not available", recipe.Name)
		}

		if err := e.ledger.ReserveRecipe(tx, recipe.ID, 1, reference); err != nil {
			return 0, err
		}

		var container *models.Container
		if in.ContainerId != nil {
			container = &models.Container{}
			if err := tx.First(container, *in.ContainerId).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return 0, NewValidationError("container %d does not exist", *in.ContainerId)
				}
				return 0, err
			}
			if err := e.ledger.ReserveContainer(tx, container.ID, 1, reference); err != nil {
				return 0, err
			}
		}

		item := models.OrderItem{
			OrderId:    order.ID,
			RecipeId:   recipe.ID,
			Quantity:   1,
			UnitPrice:  recipe.BasePrice,
			TotalPrice: recipe.BasePrice,
			Status:     models.ItemStatusCreated,
			IsTakeaway: in.IsTakeaway,
		}
		if in.Notes != "" {
			notes := in.Notes
			item.Notes = &notes
		}
		if container != nil {
			item.ContainerId = &container.ID
		}
		if err := tx.Create(&item).Error; err != nil {
			return 0, err
		}

		if container != nil {
			sale := models.ContainerSale{
				OrderId:     order.ID,
				ContainerId: container.ID,
				OrderItemId: item.ID,
				Quantity:    1,
				UnitPrice:   container.Price,
				TotalPrice:  container.Price,
			}
			if err := tx.Create(&sale).Error; err != nil {
				return 0, err
			}
		}

		if printer == nil {
			if e.log != nil {
				e.log.Warn("no active printer, skipping ticket", zap.Int64("order_item_id", item.ID))
			}
			continue
		}

		content := printing.RenderTicket(printing.TicketData{
			OrderId:     order.ID,
			OrderItemId: item.ID,
			TableNumber: table.Number,
			Zone:        table.Zone,
			Waiter:      order.Waiter,
			Recipe:      recipe.Name,
			Notes:       in.Notes,
			IsTakeaway:  in.IsTakeaway,
			CreatedAt:   item.CreatedAt,
		})
		if _, err := e.dispatcher.Enqueue(tx, item.ID, printer.ID, content); err != nil {
			return 0, err
		}
		queued++
	}
	return queued, nil
}

// cancelItem flips one item to CANCELED and, while it is still in CREATED,
// returns its ingredients and container to stock and voids its tickets.
// Items the kitchen already started keep their consumption.
func (e *Engine) cancelItem(tx *gorm.DB, item *models.OrderItem, reason string) error {
	reference := fmt.Sprintf("order_item:%d", item.ID)

	if item.Status == models.ItemStatusCreated {
		if err := e.ledger.ReleaseRecipe(tx, item.RecipeId, 1, reference); err != nil {
			return err
		}
		if item.ContainerId != nil {
			if err := e.ledger.ReleaseContainer(tx, *item.ContainerId, 1, reference); err != nil {
				return err
			}
			if err := tx.Where("order_item_id = ?", item.ID).
				Delete(&models.ContainerSale{}).Error; err != nil {
				return err
			}
		}
	}

	if err := e.dispatcher.CancelForOrderItem(tx, item.ID); err != nil {
		return err
	}

	item.Status = models.ItemStatusCanceled
	item.CancelReason = &reason
	return tx.Save(item).Error
}

// recalculateTotal is always the last step of any item mutation: the total is
// rebuilt from the persisted children, never incremented.
func (e *Engine) recalculateTotal(tx *gorm.DB, order *models.Order) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}

	total, err := RecomputeTotal(items)
	if err != nil {
		return err
	}

	order.TotalAmount = total.StringFixed(2)
	return tx.Model(order).Update("total_amount", order.TotalAmount).Error
}

func (e *Engine) defaultPrinter(tx *gorm.DB) (*models.Printer, error) {
	var printer models.Printer
	err := tx.Where("is_active = ?", true).Order("id").First(&printer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &printer, nil
}

func (e *Engine) afterOrderChange(ctx context.Context, event string, orderID int64) {
	e.events.Publish(ctx, event, map[string]int64{"order_id": orderID})
	e.events.InvalidateOrder(ctx, orderID)
	e.events.InvalidateAvailability(ctx)
}

func (e *Engine) notifyQueued(ctx context.Context, orderID int64, queued int) {
	if queued == 0 {
		return
	}
	e.events.Publish(ctx, events.EventPrintJobQueued,
		map[string]int64{"order_id": orderID, "count": int64(queued)})
}
