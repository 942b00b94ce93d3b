package orders

import (
	"testing"

	"github.com/shopspring/decimal"

	"comanda-system/internal/database/models"
)

func TestRecomputeTotalSkipsCanceledItems(t *testing.T) {
	items := []models.OrderItem{
		{ID: 1, TotalPrice: "10.50", Status: models.ItemStatusCreated},
		{ID: 2, TotalPrice: "4.00", Status: models.ItemStatusCanceled},
		{ID: 3, TotalPrice: "7.25", Status: models.ItemStatusServed},
	}

	total, err := RecomputeTotal(items)
	if err != nil {
		t.Fatalf("RecomputeTotal: %v", err)
	}
	if !total.Equal(decimal.RequireFromString("17.75")) {
		t.Errorf("expected 17.75, got %s", total)
	}
}

func TestRecomputeTotalEmpty(t *testing.T) {
	total, err := RecomputeTotal(nil)
	if err != nil {
		t.Fatalf("RecomputeTotal: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("expected zero, got %s", total)
	}
}

func TestRecomputeTotalBadPrice(t *testing.T) {
	items := []models.OrderItem{{ID: 1, TotalPrice: "oops", Status: models.ItemStatusCreated}}
	if _, err := RecomputeTotal(items); err == nil {
		t.Error("expected error for malformed price")
	}
}

func TestGrandTotalIncludesContainerSales(t *testing.T) {
	order := &models.Order{
		ID:          1,
		TotalAmount: "20.00",
		ContainerSales: []models.ContainerSale{
			{ID: 1, TotalPrice: "0.50"},
			{ID: 2, TotalPrice: "0.50"},
		},
	}

	grand, err := GrandTotal(order)
	if err != nil {
		t.Fatalf("GrandTotal: %v", err)
	}
	if !grand.Equal(decimal.RequireFromString("21.00")) {
		t.Errorf("expected 21.00, got %s", grand)
	}
}

func TestExpandItems(t *testing.T) {
	container := int64(5)
	inputs := []ItemInput{
		{RecipeId: 1, Quantity: 3, Notes: "no onions"},
		{RecipeId: 2, Quantity: 1, IsTakeaway: true, ContainerId: &container},
	}

	expanded, err := ExpandItems(inputs)
	if err != nil {
		t.Fatalf("ExpandItems: %v", err)
	}
	if len(expanded) != 4 {
		t.Fatalf("expected 4 units, got %d", len(expanded))
	}
	for i := 0; i < 3; i++ {
		if expanded[i].RecipeId != 1 || expanded[i].Quantity != 1 || expanded[i].Notes != "no onions" {
			t.Errorf("unit %d: %+v", i, expanded[i])
		}
	}
	last := expanded[3]
	if last.RecipeId != 2 || last.Quantity != 1 || !last.IsTakeaway || last.ContainerId == nil {
		t.Errorf("takeaway unit: %+v", last)
	}
}

func TestExpandItemsRejectsBadInput(t *testing.T) {
	if _, err := ExpandItems([]ItemInput{{RecipeId: 0, Quantity: 1}}); err == nil {
		t.Error("expected error for missing recipe")
	}
	if _, err := ExpandItems([]ItemInput{{RecipeId: 1, Quantity: 0}}); err == nil {
		t.Error("expected error for zero quantity")
	}
	if _, err := ExpandItems([]ItemInput{{RecipeId: 1, Quantity: -2}}); err == nil {
		t.Error("expected error for negative quantity")
	}
}
