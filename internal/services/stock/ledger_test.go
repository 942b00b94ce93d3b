package stock

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"comanda-system/internal/database/models"
)

func TestBOMRequirements(t *testing.T) {
	bom := []models.RecipeIngredient{
		{IngredientId: 1, Quantity: "0.25"},
		{IngredientId: 2, Quantity: "2"},
		{IngredientId: 1, Quantity: "0.5"},
	}

	reqs, err := BOMRequirements(bom, 4)
	if err != nil {
		t.Fatalf("BOMRequirements: %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(reqs))
	}

	// Duplicate BOM rows for ingredient 1 collapse: (0.25 + 0.5) * 4 = 3.
	if reqs[0].IngredientId != 1 || !reqs[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Errorf("ingredient 1: got %d/%s", reqs[0].IngredientId, reqs[0].Quantity)
	}
	if reqs[1].IngredientId != 2 || !reqs[1].Quantity.Equal(decimal.NewFromInt(8)) {
		t.Errorf("ingredient 2: got %d/%s", reqs[1].IngredientId, reqs[1].Quantity)
	}
}

func TestBOMRequirementsRejectsBadInput(t *testing.T) {
	if _, err := BOMRequirements(nil, 0); err == nil {
		t.Error("expected error for zero units")
	}
	if _, err := BOMRequirements(nil, -2); err == nil {
		t.Error("expected error for negative units")
	}

	bad := []models.RecipeIngredient{{IngredientId: 7, Quantity: "not-a-number"}}
	if _, err := BOMRequirements(bad, 1); err == nil {
		t.Error("expected error for malformed quantity")
	}
}

func TestReserveRestoreRoundTrip(t *testing.T) {
	// Quantity 3 expands to three single-unit items. Reserving all three and
	// then restoring one unit's worth must leave exactly two units reserved;
	// restoring the rest returns the counters to their starting values.
	bom := []models.RecipeIngredient{
		{IngredientId: 1, Quantity: "0.3"},
		{IngredientId: 2, Quantity: "1"},
	}
	ingredients := map[int64]*models.Ingredient{
		1: {ID: 1, Name: "rice", CurrentStock: "10", IsActive: true},
		2: {ID: 2, Name: "egg", CurrentStock: "10", IsActive: true},
	}

	all, err := BOMRequirements(bom, 3)
	if err != nil {
		t.Fatalf("BOMRequirements: %v", err)
	}
	for _, req := range all {
		if err := debitStock(ingredients[req.IngredientId], req.Quantity); err != nil {
			t.Fatalf("debitStock(%d): %v", req.IngredientId, err)
		}
	}
	if ingredients[1].CurrentStock != "9.1" || ingredients[2].CurrentStock != "7" {
		t.Fatalf("after reserving 3 units: rice=%s egg=%s",
			ingredients[1].CurrentStock, ingredients[2].CurrentStock)
	}

	oneUnit, err := BOMRequirements(bom, 1)
	if err != nil {
		t.Fatalf("BOMRequirements: %v", err)
	}
	for _, req := range oneUnit {
		if err := models.AddStock(ingredients[req.IngredientId], req.Quantity); err != nil {
			t.Fatalf("AddStock(%d): %v", req.IngredientId, err)
		}
	}
	if ingredients[1].CurrentStock != "9.4" || ingredients[2].CurrentStock != "8" {
		t.Errorf("after restoring 1 of 3 units: rice=%s egg=%s",
			ingredients[1].CurrentStock, ingredients[2].CurrentStock)
	}

	twoUnits, err := BOMRequirements(bom, 2)
	if err != nil {
		t.Fatalf("BOMRequirements: %v", err)
	}
	for _, req := range twoUnits {
		if err := models.AddStock(ingredients[req.IngredientId], req.Quantity); err != nil {
			t.Fatalf("AddStock(%d): %v", req.IngredientId, err)
		}
	}
	if ingredients[1].CurrentStock != "10" || ingredients[2].CurrentStock != "10" {
		t.Errorf("full restore must match the original counters: rice=%s egg=%s",
			ingredients[1].CurrentStock, ingredients[2].CurrentStock)
	}
}

func TestDebitStockNeverNegative(t *testing.T) {
	ingredient := &models.Ingredient{ID: 1, Name: "rice", CurrentStock: "1", IsActive: true}

	err := debitStock(ingredient, decimal.RequireFromString("1.5"))
	var shortfall *InsufficientStockError
	if !errors.As(err, &shortfall) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ingredient.CurrentStock != "1" {
		t.Errorf("a rejected debit must not touch the counter, got %s", ingredient.CurrentStock)
	}

	if err := debitStock(ingredient, decimal.RequireFromString("1")); err != nil {
		t.Fatalf("debitStock: %v", err)
	}
	if ingredient.CurrentStock != "0" || ingredient.IsActive {
		t.Errorf("draining to zero must deactivate: stock=%s active=%v",
			ingredient.CurrentStock, ingredient.IsActive)
	}
}

func TestInsufficientStockErrorMessage(t *testing.T) {
	err := &InsufficientStockError{
		IngredientId: 3,
		Ingredient:   "tomato",
		Remaining:    decimal.RequireFromString("1.5"),
		Requested:    decimal.RequireFromString("2"),
	}
	msg := err.Error()
	for _, want := range []string{"tomato", "1.5", "2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestAvailabilityFor(t *testing.T) {
	recipe := &models.Recipe{
		ID:          1,
		Name:        "margherita",
		IsActive:    true,
		IsAvailable: true,
		Ingredients: []models.RecipeIngredient{
			{IngredientId: 1, Quantity: "0.2",
				Ingredient: &models.Ingredient{ID: 1, Name: "dough", CurrentStock: "1.1"}},
			{IngredientId: 2, Quantity: "0.1",
				Ingredient: &models.Ingredient{ID: 2, Name: "mozzarella", CurrentStock: "2"}},
		},
	}

	a, err := availabilityFor(recipe, 1)
	if err != nil {
		t.Fatalf("availabilityFor: %v", err)
	}
	// dough allows floor(1.1/0.2)=5 units, mozzarella 20; dough binds.
	if !a.Available {
		t.Error("expected recipe to be available")
	}
	if a.MaxUnits != 5 {
		t.Errorf("expected max 5 units, got %d", a.MaxUnits)
	}
	if a.LimitedBy != "" {
		t.Errorf("available recipe should not name a limiter, got %q", a.LimitedBy)
	}

	a, err = availabilityFor(recipe, 6)
	if err != nil {
		t.Fatalf("availabilityFor: %v", err)
	}
	if a.Available {
		t.Error("6 units should exceed availability")
	}
	if a.LimitedBy != "dough" {
		t.Errorf("expected dough to limit, got %q", a.LimitedBy)
	}
}

func TestAvailabilityForInactiveRecipe(t *testing.T) {
	recipe := &models.Recipe{ID: 2, Name: "off-menu", IsActive: false, IsAvailable: true}
	a, err := availabilityFor(recipe, 1)
	if err != nil {
		t.Fatalf("availabilityFor: %v", err)
	}
	if a.Available {
		t.Error("inactive recipe must never be available")
	}
}

func TestAvailabilityForEmptyBOM(t *testing.T) {
	recipe := &models.Recipe{ID: 3, Name: "tap water", IsActive: true, IsAvailable: true}
	a, err := availabilityFor(recipe, 1)
	if err != nil {
		t.Fatalf("availabilityFor: %v", err)
	}
	if !a.Available {
		t.Error("recipe with no BOM is always available")
	}
	if a.MaxUnits != -1 {
		t.Errorf("expected unbounded units, got %d", a.MaxUnits)
	}
}

func TestAvailabilityForZeroStock(t *testing.T) {
	recipe := &models.Recipe{
		ID:          4,
		Name:        "espresso",
		IsActive:    true,
		IsAvailable: true,
		Ingredients: []models.RecipeIngredient{
			{IngredientId: 9, Quantity: "0.02",
				Ingredient: &models.Ingredient{ID: 9, Name: "coffee", CurrentStock: "0"}},
		},
	}
	a, err := availabilityFor(recipe, 1)
	if err != nil {
		t.Fatalf("availabilityFor: %v", err)
	}
	if a.Available || a.MaxUnits != 0 {
		t.Errorf("expected unavailable with 0 units, got available=%v units=%d", a.Available, a.MaxUnits)
	}
}
