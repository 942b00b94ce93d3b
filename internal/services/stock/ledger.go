package stock

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"comanda-system/internal/database/models"
)

// InsufficientStockError is an expected business rejection, not a fault: the
// caller asked for more of an ingredient than the ledger holds.
type InsufficientStockError struct {
	IngredientId int64
	Ingredient   string
	Remaining    decimal.Decimal
	Requested    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %q: available %s, requested %s",
		e.Ingredient, e.Remaining.String(), e.Requested.String())
}

type InsufficientContainerStockError struct {
	ContainerId int64
	Container   string
	Remaining   int32
	Requested   int32
}

func (e *InsufficientContainerStockError) Error() string {
	return fmt.Sprintf("insufficient stock for container %q: available %d, requested %d",
		e.Container, e.Remaining, e.Requested)
}

// Ledger is the sole owner of ingredient and container stock counters. Every
// mutation runs a locked read-check-mutate sequence and leaves a movement row
// behind, so concurrent reservations on the same ingredient serialize instead
// of oversubscribing.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Reserve decrements an ingredient's stock inside the caller's transaction.
func (l *Ledger) Reserve(tx *gorm.DB, ingredientID int64, qty decimal.Decimal, reference string) error {
	if !qty.IsPositive() {
		return fmt.Errorf("reserve quantity must be positive")
	}

	var ingredient models.Ingredient
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ingredient, ingredientID).Error; err != nil {
		return err
	}

	if err := debitStock(&ingredient, qty); err != nil {
		return err
	}

	if err := tx.Save(&ingredient).Error; err != nil {
		return err
	}

	return recordMovement(tx, &ingredient.ID, nil, models.MovementReserve, qty.String(), reference)
}

// Release increments an ingredient's stock inside the caller's transaction.
func (l *Ledger) Release(tx *gorm.DB, ingredientID int64, qty decimal.Decimal, reference string) error {
	if !qty.IsPositive() {
		return fmt.Errorf("release quantity must be positive")
	}

	var ingredient models.Ingredient
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ingredient, ingredientID).Error; err != nil {
		return err
	}

	if err := models.AddStock(&ingredient, qty); err != nil {
		return err
	}

	if err := tx.Save(&ingredient).Error; err != nil {
		return err
	}

	return recordMovement(tx, &ingredient.ID, nil, models.MovementRelease, qty.String(), reference)
}

// debitStock checks and subtracts qty from the ingredient's counter; the
// counter never goes negative. Inverse of models.AddStock.
func debitStock(ingredient *models.Ingredient, qty decimal.Decimal) error {
	current, err := decimal.NewFromString(ingredient.CurrentStock)
	if err != nil {
		return fmt.Errorf("invalid stock for ingredient %d: %w", ingredient.ID, err)
	}

	if current.LessThan(qty) {
		return &InsufficientStockError{
			IngredientId: ingredient.ID,
			Ingredient:   ingredient.Name,
			Remaining:    current,
			Requested:    qty,
		}
	}

	current = current.Sub(qty)
	ingredient.CurrentStock = current.String()
	ingredient.IsActive = current.IsPositive()
	return nil
}

func (l *Ledger) ReserveContainer(tx *gorm.DB, containerID int64, qty int32, reference string) error {
	if qty <= 0 {
		return fmt.Errorf("reserve quantity must be positive")
	}

	var container models.Container
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&container, containerID).Error; err != nil {
		return err
	}

	if container.Stock < qty {
		return &InsufficientContainerStockError{
			ContainerId: container.ID,
			Container:   container.Name,
			Remaining:   container.Stock,
			Requested:   qty,
		}
	}

	container.Stock -= qty
	container.IsActive = container.Stock > 0

	if err := tx.Save(&container).Error; err != nil {
		return err
	}

	return recordMovement(tx, nil, &container.ID, models.MovementReserve,
		fmt.Sprintf("%d", qty), reference)
}

func (l *Ledger) ReleaseContainer(tx *gorm.DB, containerID int64, qty int32, reference string) error {
	if qty <= 0 {
		return fmt.Errorf("release quantity must be positive")
	}

	var container models.Container
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&container, containerID).Error; err != nil {
		return err
	}

	container.Stock += qty
	container.IsActive = container.Stock > 0

	if err := tx.Save(&container).Error; err != nil {
		return err
	}

	return recordMovement(tx, nil, &container.ID, models.MovementRelease,
		fmt.Sprintf("%d", qty), reference)
}

// ReserveRecipe reserves the full BOM for the given number of recipe units.
// Any shortfall aborts the caller's transaction with the offending ingredient
// named, so the whole request stays all-or-nothing.
func (l *Ledger) ReserveRecipe(tx *gorm.DB, recipeID int64, units int32, reference string) error {
	var bom []models.RecipeIngredient
	if err := tx.Where("recipe_id = ?", recipeID).
		Order("position").Find(&bom).Error; err != nil {
		return err
	}

	requirements, err := BOMRequirements(bom, units)
	if err != nil {
		return err
	}

	for _, req := range requirements {
		if err := l.Reserve(tx, req.IngredientId, req.Quantity, reference); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseRecipe is the inverse of ReserveRecipe.
func (l *Ledger) ReleaseRecipe(tx *gorm.DB, recipeID int64, units int32, reference string) error {
	var bom []models.RecipeIngredient
	if err := tx.Where("recipe_id = ?", recipeID).
		Order("position").Find(&bom).Error; err != nil {
		return err
	}

	requirements, err := BOMRequirements(bom, units)
	if err != nil {
		return err
	}

	for _, req := range requirements {
		if err := l.Release(tx, req.IngredientId, req.Quantity, reference); err != nil {
			return err
		}
	}
	return nil
}

type Requirement struct {
	IngredientId int64
	Quantity     decimal.Decimal
}

// BOMRequirements expands a recipe's BOM into per-ingredient totals for the
// requested number of units.
func BOMRequirements(bom []models.RecipeIngredient, units int32) ([]Requirement, error) {
	if units <= 0 {
		return nil, fmt.Errorf("units must be positive")
	}

	multiplier := decimal.NewFromInt32(units)
	totals := make(map[int64]decimal.Decimal, len(bom))
	order := make([]int64, 0, len(bom))

	for _, row := range bom {
		perUnit, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return nil, fmt.Errorf("invalid BOM quantity for ingredient %d: %w", row.IngredientId, err)
		}
		if _, seen := totals[row.IngredientId]; !seen {
			order = append(order, row.IngredientId)
		}
		totals[row.IngredientId] = totals[row.IngredientId].Add(perUnit.Mul(multiplier))
	}

	requirements := make([]Requirement, 0, len(order))
	for _, id := range order {
		requirements = append(requirements, Requirement{IngredientId: id, Quantity: totals[id]})
	}
	return requirements, nil
}

type Availability struct {
	RecipeId  int64  `json:"recipe_id"`
	Recipe    string `json:"recipe"`
	Available bool   `json:"available"`
	MaxUnits  int64  `json:"max_units"`
	LimitedBy string `json:"limited_by,omitempty"`
}

// CheckAvailability is a non-authoritative read used for listing: it tells
// whether the recipe's BOM can currently cover the requested multiplier.
// Admission re-checks under the reservation row lock, so a stale answer here
// can only cause a rejected request, never oversubscription.
func (l *Ledger) CheckAvailability(ctx context.Context, recipeID int64, multiplier int32) (Availability, error) {
	var recipe models.Recipe
	if err := l.db.WithContext(ctx).Preload("Ingredients.Ingredient").
		First(&recipe, recipeID).Error; err != nil {
		return Availability{}, err
	}
	return availabilityFor(&recipe, multiplier)
}

// ListAvailability reports availability for every active recipe.
func (l *Ledger) ListAvailability(ctx context.Context) ([]Availability, error) {
	var recipes []models.Recipe
	if err := l.db.WithContext(ctx).Preload("Ingredients.Ingredient").
		Where("is_active = ?", true).Order("name").Find(&recipes).Error; err != nil {
		return nil, err
	}

	out := make([]Availability, 0, len(recipes))
	for i := range recipes {
		a, err := availabilityFor(&recipes[i], 1)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func availabilityFor(recipe *models.Recipe, multiplier int32) (Availability, error) {
	a := Availability{RecipeId: recipe.ID, Recipe: recipe.Name}

	if !recipe.IsActive || !recipe.IsAvailable {
		return a, nil
	}
	if len(recipe.Ingredients) == 0 {
		a.Available = true
		a.MaxUnits = -1 // nothing to run out of
		return a, nil
	}

	maxUnits := int64(-1)
	for _, row := range recipe.Ingredients {
		if row.Ingredient == nil {
			return a, fmt.Errorf("BOM row %d has no ingredient loaded", row.ID)
		}
		perUnit, err := decimal.NewFromString(row.Quantity)
		if err != nil {
			return a, fmt.Errorf("invalid BOM quantity for ingredient %d: %w", row.IngredientId, err)
		}
		if !perUnit.IsPositive() {
			continue
		}
		stock, err := decimal.NewFromString(row.Ingredient.CurrentStock)
		if err != nil {
			return a, fmt.Errorf("invalid stock for ingredient %d: %w", row.IngredientId, err)
		}

		units := stock.Div(perUnit).Floor().IntPart()
		if maxUnits < 0 || units < maxUnits {
			maxUnits = units
			a.LimitedBy = row.Ingredient.Name
		}
	}

	a.MaxUnits = maxUnits
	a.Available = maxUnits < 0 || maxUnits >= int64(multiplier)
	if a.Available {
		a.LimitedBy = ""
	}
	return a, nil
}

// SetIngredientStock is a manual operator correction.
func (l *Ledger) SetIngredientStock(ctx context.Context, ingredientID int64, qty decimal.Decimal, notes string) error {
	if qty.IsNegative() {
		return fmt.Errorf("stock cannot be negative")
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ingredient models.Ingredient
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ingredient, ingredientID).Error; err != nil {
			return err
		}

		ingredient.CurrentStock = qty.String()
		ingredient.IsActive = qty.IsPositive()
		if err := tx.Save(&ingredient).Error; err != nil {
			return err
		}

		return recordMovement(tx, &ingredient.ID, nil, models.MovementCorrection, qty.String(), notes)
	})
}

// SetContainerStock is a manual operator correction.
func (l *Ledger) SetContainerStock(ctx context.Context, containerID int64, qty int32, notes string) error {
	if qty < 0 {
		return fmt.Errorf("stock cannot be negative")
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var container models.Container
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&container, containerID).Error; err != nil {
			return err
		}

		container.Stock = qty
		container.IsActive = qty > 0
		if err := tx.Save(&container).Error; err != nil {
			return err
		}

		return recordMovement(tx, nil, &container.ID, models.MovementCorrection,
			fmt.Sprintf("%d", qty), notes)
	})
}

func recordMovement(tx *gorm.DB, ingredientID, containerID *int64, movementType int32, qty, reference string) error {
	movement := models.StockMovement{
		IngredientId: ingredientID,
		ContainerId:  containerID,
		MovementType: movementType,
		Quantity:     qty,
	}
	if reference != "" {
		movement.Reference = &reference
	}
	return tx.Create(&movement).Error
}
