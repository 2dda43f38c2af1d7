package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/carstock/carstock/pkg/domain/entities"
)

func TestReservationRepositoryConditionalStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()

	reservation := entities.NewReservation("C0001", "W001", 2, "alice", time.Now().UTC().Add(time.Hour))
	if err := repo.Create(ctx, reservation); err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("matching status wins the transition", func(t *testing.T) {
		if err := repo.UpdateStatus(ctx, reservation.ID, entities.ReservationPending, entities.ReservationCancelled); err != nil {
			t.Fatalf("UpdateStatus: %v", err)
		}
		got, err := repo.Find(ctx, reservation.ID)
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		if got.Status != entities.ReservationCancelled {
			t.Errorf("status = %s, want Cancelled", got.Status)
		}
	})

	t.Run("stale status conflicts and keeps row", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, reservation.ID, entities.ReservationPending, entities.ReservationExpired)
		if !errors.Is(err, entities.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		got, _ := repo.Find(ctx, reservation.ID)
		if got.Status != entities.ReservationCancelled {
			t.Errorf("row mutated on conflict: status = %s", got.Status)
		}
	})

	t.Run("unknown reservation is not found", func(t *testing.T) {
		other := entities.NewReservation("C0001", "W001", 1, "bob", time.Now().UTC().Add(time.Hour))
		err := repo.UpdateStatus(ctx, other.ID, entities.ReservationPending, entities.ReservationCancelled)
		if !errors.Is(err, entities.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTransferRepositoryConditionalStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewTransferRepository()

	order, err := entities.NewTransferOrder("W001", "W002", "C0001", 3)
	if err != nil {
		t.Fatalf("NewTransferOrder: %v", err)
	}
	if err := repo.Create(ctx, order); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.UpdateStatus(ctx, order.ID, entities.TransferPending, entities.TransferInTransit); err != nil {
		t.Fatalf("UpdateStatus to InTransit: %v", err)
	}
	err = repo.UpdateStatus(ctx, order.ID, entities.TransferPending, entities.TransferCancelled)
	if !errors.Is(err, entities.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := repo.UpdateStatus(ctx, order.ID, entities.TransferInTransit, entities.TransferCompleted); err != nil {
		t.Fatalf("UpdateStatus to Completed: %v", err)
	}
	got, err := repo.Find(ctx, order.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got.Status != entities.TransferCompleted {
		t.Errorf("status = %s, want Completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("terminal transition left CompletedAt unset")
	}
}
