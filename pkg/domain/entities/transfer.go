package entities

import (
	"time"

	"github.com/google/uuid"
)

// TransferStatus represents the pipeline state of an inter-warehouse move
type TransferStatus int

const (
	TransferPending TransferStatus = iota
	TransferInTransit
	TransferCompleted
	TransferCancelled
	TransferFailed
)

func (s TransferStatus) String() string {
	switch s {
	case TransferPending:
		return "Pending"
	case TransferInTransit:
		return "InTransit"
	case TransferCompleted:
		return "Completed"
	case TransferCancelled:
		return "Cancelled"
	case TransferFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is permitted
func (s TransferStatus) Terminal() bool {
	switch s {
	case TransferCompleted, TransferCancelled, TransferFailed:
		return true
	default:
		return false
	}
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferPending:   {TransferInTransit, TransferCancelled},
	TransferInTransit: {TransferCompleted, TransferCancelled, TransferFailed},
}

// CanTransitionTo reports whether moving to next is legal
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	for _, allowed := range transferTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransferOrder moves stock between two distinct warehouses through an
// explicit pending -> in-transit -> completed pipeline. A Failed order
// records a destination receive that failed after the source commit
// succeeded and requires manual reconciliation.
type TransferOrder struct {
	ID            uuid.UUID
	FromWarehouse WarehouseID
	ToWarehouse   WarehouseID
	CarID         CarID
	Quantity      Quantity
	Status        TransferStatus
	FailureReason string
	RequestedAt   time.Time
	CompletedAt   *time.Time
}

// NewTransferOrder creates a validated Pending transfer order
func NewTransferOrder(from, to WarehouseID, carID CarID, quantity Quantity) (*TransferOrder, error) {
	if from == to {
		return nil, &ValidationError{Field: "to_warehouse_id", Reason: "source and destination warehouses must differ"}
	}
	if quantity <= 0 {
		return nil, &ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}

	return &TransferOrder{
		ID:            uuid.New(),
		FromWarehouse: from,
		ToWarehouse:   to,
		CarID:         carID,
		Quantity:      quantity,
		Status:        TransferPending,
		RequestedAt:   time.Now().UTC(),
	}, nil
}

// Transition moves the order to next, enforcing the legal-transition table
func (t *TransferOrder) Transition(next TransferStatus) error {
	if !t.Status.CanTransitionTo(next) {
		return &StateTransitionError{Entity: "transfer", From: t.Status.String(), To: next.String()}
	}
	t.Status = next
	if next.Terminal() {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return nil
}
