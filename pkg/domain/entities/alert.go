package entities

// AlertLevel classifies a car's stock health
type AlertLevel int

const (
	AlertOk AlertLevel = iota
	AlertWarning
	AlertCritical
)

func (l AlertLevel) String() string {
	switch l {
	case AlertOk:
		return "Ok"
	case AlertWarning:
		return "Warning"
	case AlertCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// StockAlert is the advisory stock-health report for one car
type StockAlert struct {
	CarID            CarID
	Brand            string
	Model            string
	CurrentStock     Quantity
	ReservedStock    Quantity
	AvailableStock   Quantity
	ReorderPoint     Quantity
	EconomicOrderQty Quantity
	Level            AlertLevel
	SuggestedReorder Quantity
}

// EvaluateStockHealth derives the alert level from a car's aggregate stock
// and reorder policy: Critical at zero, Warning while stock sits within
// 1.5x the reorder point, Ok above. Non-Ok alerts suggest a reorder of
// the economic order quantity. Pure; tolerates slightly stale reads.
func EvaluateStockHealth(car *Car, reserved Quantity) StockAlert {
	alert := StockAlert{
		CarID:            car.ID,
		Brand:            car.Brand,
		Model:            car.Model,
		CurrentStock:     car.QuantityInStock,
		ReservedStock:    reserved,
		AvailableStock:   car.QuantityInStock - reserved,
		ReorderPoint:     car.ReorderPoint,
		EconomicOrderQty: car.EconomicOrderQty,
	}

	// 2*stock <= 3*reorder is the integer form of stock <= 1.5*reorder.
	switch {
	case car.QuantityInStock == 0:
		alert.Level = AlertCritical
	case 2*car.QuantityInStock <= 3*car.ReorderPoint:
		alert.Level = AlertWarning
	default:
		alert.Level = AlertOk
	}

	if alert.Level != AlertOk {
		alert.SuggestedReorder = car.EconomicOrderQty
	}
	return alert
}
