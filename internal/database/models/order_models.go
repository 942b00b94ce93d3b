package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "CREATED"
	OrderStatusPaid    OrderStatus = "PAID"
)

type ItemStatus string

const (
	ItemStatusCreated   ItemStatus = "CREATED"
	ItemStatusPreparing ItemStatus = "PREPARING"
	ItemStatusServed    ItemStatus = "SERVED"
	ItemStatusPaid      ItemStatus = "PAID"
	ItemStatusCanceled  ItemStatus = "CANCELED"
)

type Order struct {
	ID          int64       `gorm:"primaryKey;autoIncrement"`
	TableId     int64       `gorm:"index;not null"`
	Waiter      string      `gorm:"type:varchar(64);not null"`
	Status      OrderStatus `gorm:"type:varchar(16);not null"`
	TotalAmount string      `gorm:"type:varchar(32);not null;default:'0.00'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Table          *DiningTable    `gorm:"foreignKey:TableId"`
	OrderItems     []OrderItem     `gorm:"foreignKey:OrderId"`
	ContainerSales []ContainerSale `gorm:"foreignKey:OrderId"`
	Payments       []Payment       `gorm:"foreignKey:OrderId"`
}

// OrderItem is always a single unit: a requested quantity of N is expanded
// into N rows so the kitchen and billing can track each unit independently.
type OrderItem struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	OrderId      int64      `gorm:"index;not null"`
	RecipeId     int64      `gorm:"not null"`
	Quantity     int32      `gorm:"not null;default:1"`
	UnitPrice    string     `gorm:"type:varchar(32);not null"`
	TotalPrice   string     `gorm:"type:varchar(32);not null"`
	Status       ItemStatus `gorm:"type:varchar(16);not null;index"`
	CancelReason *string    `gorm:"type:text"`
	IsTakeaway   bool       `gorm:"not null"`
	ContainerId  *int64
	Notes        *string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Recipe    *Recipe    `gorm:"foreignKey:RecipeId"`
	Container *Container `gorm:"foreignKey:ContainerId"`
}

type ContainerSale struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	OrderId     int64  `gorm:"index;not null"`
	ContainerId int64  `gorm:"not null"`
	OrderItemId int64  `gorm:"index;not null"`
	Quantity    int32  `gorm:"not null"`
	UnitPrice   string `gorm:"type:varchar(32);not null"`
	TotalPrice  string `gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time

	Container *Container `gorm:"foreignKey:ContainerId"`
}

type Payment struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	OrderId        int64   `gorm:"index;not null"`
	Amount         string  `gorm:"type:varchar(32);not null"`
	Method         string  `gorm:"type:varchar(32);not null"`
	Payer          string  `gorm:"type:varchar(64)"`
	SplitGroup     *string `gorm:"type:varchar(64);index"`
	ReceiptPrinted bool    `gorm:"not null"`
	CreatedAt      time.Time

	PaymentItems []PaymentItem `gorm:"foreignKey:PaymentId"`
}

type PaymentItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	PaymentId   int64  `gorm:"index;not null"`
	OrderItemId int64  `gorm:"index;not null"`
	Amount      string `gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time
}

// BeforeDelete restores the ingredient and container stock held by an item
// that is still in CREATED. Running as a gorm hook makes it the single choke
// point for every deletion path: direct item deletes, cascaded order deletes
// and bulk cleanup all pass through here, so reserved stock cannot leak.
// Items past CREATED release their stock at cancellation time instead, which
// keeps the restore exactly-once.
func (i *OrderItem) BeforeDelete(tx *gorm.DB) error {
	item := *i
	if item.ID != 0 && item.RecipeId == 0 {
		if err := tx.First(&item, item.ID).Error; err != nil {
			return err
		}
	}
	if item.Status != ItemStatusCreated {
		return nil
	}
	return RestoreItemStock(tx, &item)
}

// AddStock credits qty to the ingredient's counter and rederives the active
// flag. Shared by the delete-restore hook and the stock ledger's release path
// so both sides of a reserve/release pair use the same arithmetic.
func AddStock(ingredient *Ingredient, qty decimal.Decimal) error {
	stock, err := decimal.NewFromString(ingredient.CurrentStock)
	if err != nil {
		return fmt.Errorf("invalid stock for ingredient %d: %w", ingredient.ID, err)
	}
	stock = stock.Add(qty)
	ingredient.CurrentStock = stock.String()
	ingredient.IsActive = stock.IsPositive()
	return nil
}

// RestoreItemStock puts back one unit's worth of BOM ingredients and, if the
// item reserved a container, the container itself. Callers must run it inside
// the same transaction that removes or cancels the item.
func RestoreItemStock(tx *gorm.DB, item *OrderItem) error {
	var bom []RecipeIngredient
	if err := tx.Where("recipe_id = ?", item.RecipeId).Find(&bom).Error; err != nil {
		return err
	}

	for _, row := range bom {
		perUnit, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return fmt.Errorf("invalid BOM quantity for ingredient %d: %w", row.IngredientId, err)
		}

		var ingredient Ingredient
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ingredient, row.IngredientId).Error; err != nil {
			return err
		}

		if err := AddStock(&ingredient, perUnit); err != nil {
			return err
		}

		if err := tx.Save(&ingredient).Error; err != nil {
			return err
		}
	}

	if item.ContainerId != nil {
		var container Container
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&container, *item.ContainerId).Error; err != nil {
			return err
		}

		container.Stock += 1
		container.IsActive = container.Stock > 0
		if err := tx.Save(&container).Error; err != nil {
			return err
		}

		if err := tx.Where("order_item_id = ?", item.ID).
			Delete(&ContainerSale{}).Error; err != nil {
			return err
		}
	}

	return nil
}
