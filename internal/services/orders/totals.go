package orders

import (
	"fmt"

	"github.com/shopspring/decimal"

	"comanda-system/internal/database/models"
)

// RecomputeTotal sums the total price of every non-canceled item. The order
// total is always rebuilt from live rows, never incremented, so it tolerates
// concurrent out-of-order edits.
func RecomputeTotal(items []models.OrderItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range items {
		if item.Status == models.ItemStatusCanceled {
			continue
		}
		price, err := decimal.NewFromString(item.TotalPrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid total price on item %d: %w", item.ID, err)
		}
		total = total.Add(price)
	}
	return total, nil
}

// GrandTotal is the food total plus all container sales for the order. The
// order must be loaded with its ContainerSales association.
func GrandTotal(order *models.Order) (decimal.Decimal, error) {
	total, err := decimal.NewFromString(order.TotalAmount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid total amount on order %d: %w", order.ID, err)
	}
	for _, sale := range order.ContainerSales {
		price, err := decimal.NewFromString(sale.TotalPrice)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid total price on container sale %d: %w", sale.ID, err)
		}
		total = total.Add(price)
	}
	return total, nil
}

// ExpandItems turns requested quantities into per-unit lines: a request for
// quantity N becomes N entries of one unit each, so the kitchen and billing
// can track, serve and pay every unit independently.
func ExpandItems(inputs []ItemInput) ([]ItemInput, error) {
	expanded := make([]ItemInput, 0, len(inputs))
	for _, in := range inputs {
		if in.RecipeId == 0 {
			return nil, NewValidationError("recipe is required on every item")
		}
		if in.Quantity <= 0 {
			return nil, NewValidationError("quantity must be positive for recipe %d", in.RecipeId)
		}
		for u := int32(0); u < in.Quantity; u++ {
			unit := in
			unit.Quantity = 1
			expanded = append(expanded, unit)
		}
	}
	return expanded, nil
}
