package entities

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEvaluateStockHealth(t *testing.T) {
	car := func(stock Quantity) *Car {
		return &Car{
			ID:               "C0001",
			Brand:            "Toyota",
			Model:            "Corolla",
			Price:            decimal.NewFromInt(25000),
			QuantityInStock:  stock,
			ReorderPoint:     5,
			EconomicOrderQty: 20,
		}
	}

	tests := []struct {
		name          string
		stock         Quantity
		wantLevel     AlertLevel
		wantSuggested Quantity
	}{
		{name: "warning_within_reorder_band", stock: 6, wantLevel: AlertWarning, wantSuggested: 20},
		{name: "warning_at_reorder_point", stock: 5, wantLevel: AlertWarning, wantSuggested: 20},
		{name: "ok_just_above_reorder_band", stock: 8, wantLevel: AlertOk, wantSuggested: 0},
		{name: "warning_just_above_zero", stock: 1, wantLevel: AlertWarning, wantSuggested: 20},
		{name: "critical_at_zero", stock: 0, wantLevel: AlertCritical, wantSuggested: 20},
		{name: "ok_above_reorder_point", stock: 10, wantLevel: AlertOk, wantSuggested: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := EvaluateStockHealth(car(tt.stock), 0)
			if alert.Level != tt.wantLevel {
				t.Errorf("Expected level %v for stock %d, got %v", tt.wantLevel, tt.stock, alert.Level)
			}
			if alert.SuggestedReorder != tt.wantSuggested {
				t.Errorf("Expected suggested reorder %d, got %d", tt.wantSuggested, alert.SuggestedReorder)
			}
		})
	}
}

func TestEvaluateStockHealthReorderBand(t *testing.T) {
	car := &Car{ID: "C0001", QuantityInStock: 6, ReorderPoint: 5, EconomicOrderQty: 12}

	if got := EvaluateStockHealth(car, 0).Level; got != AlertWarning {
		t.Errorf("stock=6 reorder=5: expected Warning, got %v", got)
	}

	car.QuantityInStock = 0
	if got := EvaluateStockHealth(car, 0).Level; got != AlertCritical {
		t.Errorf("stock=0: expected Critical, got %v", got)
	}

	car.QuantityInStock = 10
	if got := EvaluateStockHealth(car, 0).Level; got != AlertOk {
		t.Errorf("stock=10: expected Ok, got %v", got)
	}
}

func TestStockLocation_Available(t *testing.T) {
	loc := &StockLocation{WarehouseID: "W0001", CarID: "C0001", Quantity: 10, ReservedQuantity: 4, Version: 1}
	if loc.Available() != 6 {
		t.Errorf("Expected 6 available, got %d", loc.Available())
	}
	if err := loc.CheckInvariant(); err != nil {
		t.Errorf("Valid row failed invariant check: %v", err)
	}

	loc.ReservedQuantity = 11
	if err := loc.CheckInvariant(); err == nil {
		t.Error("Expected invariant violation when reserved exceeds quantity")
	}
}
