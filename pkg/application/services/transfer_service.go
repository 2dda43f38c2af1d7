package services

import (
	"context"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/carstock/carstock/pkg/domain/entities"
	"github.com/carstock/carstock/pkg/domain/repositories"
)

// TransferOrchestrator moves stock between warehouses. Units are held
// at the source for the whole life of the order, committed out of the
// source and received at the destination on completion.
type TransferOrchestrator struct {
	ledger     *StockLedger
	transfers  repositories.TransferRepository
	warehouses repositories.WarehouseRepository
	cars       repositories.CarRepository
	log        zerolog.Logger
}

// NewTransferOrchestrator creates a transfer orchestrator
func NewTransferOrchestrator(ledger *StockLedger, transfers repositories.TransferRepository, warehouses repositories.WarehouseRepository, cars repositories.CarRepository, log zerolog.Logger) *TransferOrchestrator {
	return &TransferOrchestrator{
		ledger:     ledger,
		transfers:  transfers,
		warehouses: warehouses,
		cars:       cars,
		log:        log.With().Str("component", "transfer_orchestrator").Logger(),
	}
}

// Create opens a Pending transfer order and places a hold on the source
// warehouse so the units cannot be sold out from under the order.
func (o *TransferOrchestrator) Create(ctx context.Context, carID entities.CarID, from, to entities.WarehouseID, qty entities.Quantity) (*entities.TransferOrder, error) {
	if _, err := o.cars.Find(ctx, carID); err != nil {
		return nil, err
	}
	for _, id := range []entities.WarehouseID{from, to} {
		warehouse, err := o.warehouses.Find(ctx, id)
		if err != nil {
			return nil, err
		}
		if !warehouse.Active {
			return nil, &entities.ValidationError{Field: "warehouse_id", Reason: "warehouse " + string(id) + " is not active"}
		}
	}

	order, err := entities.NewTransferOrder(from, to, carID, qty)
	if err != nil {
		return nil, err
	}

	if err := o.ledger.Reserve(ctx, from, carID, qty); err != nil {
		return nil, err
	}
	if err := o.transfers.Create(ctx, order); err != nil {
		if rerr := o.ledger.Release(ctx, from, carID, qty); rerr != nil {
			o.log.Error().Err(rerr).
				Str("car_id", string(carID)).
				Str("warehouse_id", string(from)).
				Msg("failed to release source hold after transfer insert failure")
		}
		return nil, err
	}

	o.log.Info().
		Str("transfer_id", order.ID.String()).
		Str("car_id", string(carID)).
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("quantity", int64(qty)).
		Msg("transfer created")
	return order, nil
}

// Advance marks a Pending order InTransit. The source hold is
// unchanged.
func (o *TransferOrchestrator) Advance(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error) {
	order, err := o.transfers.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.claimStatus(ctx, order, entities.TransferInTransit); err != nil {
		return nil, err
	}
	return order, nil
}

// Complete lands an InTransit order: the held units are committed out
// of the source, then received at the destination. If the destination
// rejects the receipt the units are already gone from the source; the
// order is marked Failed with the reason recorded, and reconciling the
// stranded units is a manual operation.
func (o *TransferOrchestrator) Complete(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error) {
	order, err := o.transfers.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entities.TransferInTransit {
		return nil, &entities.StateTransitionError{Entity: "transfer", From: order.Status.String(), To: entities.TransferCompleted.String()}
	}

	// The claim must precede any ledger movement: only the actor that
	// wins the transition may spend the source hold, or a complete
	// racing a cancel would commit and release the same units.
	if err := o.claimStatus(ctx, order, entities.TransferCompleted); err != nil {
		return nil, err
	}

	if err := o.ledger.Commit(ctx, order.FromWarehouse, order.CarID, order.Quantity); err != nil {
		// Nothing has moved; hand the claim back so the order can be
		// retried or cancelled.
		if rerr := o.transfers.UpdateStatus(ctx, order.ID, entities.TransferCompleted, entities.TransferInTransit); rerr != nil {
			o.log.Error().Err(rerr).Str("transfer_id", id.String()).Msg("failed to return transfer to in-transit after commit failure")
		}
		return nil, err
	}

	if err := o.ledger.Receive(ctx, order.ToWarehouse, order.CarID, order.Quantity); err != nil {
		// The claim excludes every other writer, so the failed landing
		// is recorded directly.
		order.Status = entities.TransferFailed
		order.FailureReason = err.Error()
		if uerr := o.transfers.Update(ctx, order); uerr != nil {
			o.log.Error().Err(uerr).Str("transfer_id", id.String()).Msg("failed to persist failed transfer")
		}
		o.log.Error().Err(err).
			Str("transfer_id", id.String()).
			Str("to", string(order.ToWarehouse)).
			Int64("quantity", int64(order.Quantity)).
			Msg("destination receipt failed, units need manual reconciliation")
		return nil, pkgerrors.Wrapf(err, "receiving transfer %s at %s", id, order.ToWarehouse)
	}

	o.log.Info().
		Str("transfer_id", id.String()).
		Str("from", string(order.FromWarehouse)).
		Str("to", string(order.ToWarehouse)).
		Int64("quantity", int64(order.Quantity)).
		Msg("transfer completed")
	return order, nil
}

// Cancel aborts a Pending or InTransit order and releases the source
// hold.
func (o *TransferOrchestrator) Cancel(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error) {
	order, err := o.transfers.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	// Claim first so a cancel racing a complete cannot release units
	// the complete already committed.
	if err := o.claimStatus(ctx, order, entities.TransferCancelled); err != nil {
		return nil, err
	}
	if err := o.ledger.Release(ctx, order.FromWarehouse, order.CarID, order.Quantity); err != nil {
		return nil, err
	}

	o.log.Info().Str("transfer_id", id.String()).Msg("transfer cancelled")
	return order, nil
}

// Find returns a transfer order by id
func (o *TransferOrchestrator) Find(ctx context.Context, id uuid.UUID) (*entities.TransferOrder, error) {
	return o.transfers.Find(ctx, id)
}

// claimStatus wins the transition to next or reports why it could not.
// An illegal transition is rejected against the entity's table; losing
// the conditional write to another actor surfaces the status the
// winner left behind.
func (o *TransferOrchestrator) claimStatus(ctx context.Context, order *entities.TransferOrder, next entities.TransferStatus) error {
	from := order.Status
	if err := order.Transition(next); err != nil {
		return err
	}
	if err := o.transfers.UpdateStatus(ctx, order.ID, from, next); err != nil {
		order.Status = from
		if pkgerrors.Is(err, entities.ErrConflict) {
			current, ferr := o.transfers.Find(ctx, order.ID)
			if ferr != nil {
				return ferr
			}
			return &entities.StateTransitionError{Entity: "transfer", From: current.Status.String(), To: next.String()}
		}
		return err
	}
	return nil
}
