package models

import "time"

// Menu records are written by the external menu configuration service and
// are read-only to the order/stock core, except for the stock counters owned
// by the stock ledger.

type Ingredient struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"type:varchar(128);not null"`
	Unit         string `gorm:"type:varchar(32);not null"`
	UnitPrice    string `gorm:"type:varchar(32);not null"`
	CurrentStock string `gorm:"type:varchar(32);not null;default:'0'"`
	IsActive     bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Container struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(128);not null"`
	Price     string `gorm:"type:varchar(32);not null"`
	Stock     int32  `gorm:"not null;default:0"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Recipe struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"type:varchar(128);not null"`
	Version     int32  `gorm:"not null;default:1"`
	BasePrice   string `gorm:"type:varchar(32);not null"`
	IsActive    bool   `gorm:"not null"`
	IsAvailable bool   `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeId"`
}

// RecipeIngredient is one BOM row: the quantity of an ingredient consumed
// per single unit of the recipe.
type RecipeIngredient struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	RecipeId     int64  `gorm:"index;not null"`
	IngredientId int64  `gorm:"not null"`
	Quantity     string `gorm:"type:varchar(32);not null"`
	Position     int32  `gorm:"not null;default:0"`

	Ingredient *Ingredient `gorm:"foreignKey:IngredientId"`
}

type DiningTable struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Number    int32  `gorm:"not null;uniqueIndex"`
	Zone      string `gorm:"type:varchar(64)"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Printer struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(64);not null"`
	Port      string `gorm:"type:varchar(128);not null"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockMovement is the audit trail for every stock mutation performed by the
// ledger (reservations, releases and manual corrections).
type StockMovement struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	IngredientId *int64  `gorm:"index"`
	ContainerId  *int64  `gorm:"index"`
	MovementType int32   `gorm:"not null"`
	Quantity     string  `gorm:"type:varchar(32);not null"`
	Reference    *string `gorm:"type:varchar(128)"`
	Notes        *string `gorm:"type:text"`
	CreatedAt    time.Time
}

const (
	MovementReserve int32 = iota + 1
	MovementRelease
	MovementCorrection
)
