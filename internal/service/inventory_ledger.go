package service

import (
	"context"
	"errors"
	"fmt"

	"healconnect/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrItemNotFound      = errors.New("inventory item not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError carries what was asked for and what was there.
// errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	ItemName  string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.ItemName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InventoryLedger owns every change to an item's quantity counter.
type InventoryLedger struct {
	repo repository.InventoryRepository
	log  *logrus.Logger
}

func NewInventoryLedger(repo repository.InventoryRepository, log *logrus.Logger) *InventoryLedger {
	return &InventoryLedger{repo: repo, log: log}
}

// ReserveAndDeduct removes qty units in one conditional update. When the
// update matches nothing the item is re-read only to explain why.
func (l *InventoryLedger) ReserveAndDeduct(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	rows, err := l.repo.DecrementIfAvailable(ctx, itemID, qty)
	if err != nil {
		l.log.Warnf("Failed to deduct %d from item %s: %+v", qty, itemID, err)
		return err
	}
	if rows == 1 {
		return nil
	}

	item, err := l.repo.FindByID(ctx, itemID)
	if err != nil {
		l.log.Warnf("Failed to find item %s: %+v", itemID, err)
		return err
	}
	if item == nil {
		return ErrItemNotFound
	}

	return &InsufficientStockError{
		ItemName:  item.Name,
		Available: item.Quantity,
		Requested: qty,
	}
}

// Credit returns qty units to the item.
func (l *InventoryLedger) Credit(ctx context.Context, itemID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	rows, err := l.repo.Increment(ctx, itemID, qty)
	if err != nil {
		l.log.Warnf("Failed to credit %d to item %s: %+v", qty, itemID, err)
		return err
	}
	if rows == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (l *InventoryLedger) Available(ctx context.Context, itemID uuid.UUID) (int, error) {
	item, err := l.repo.FindByID(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if item == nil {
		return 0, ErrItemNotFound
	}
	return item.Quantity, nil
}

// Adjust applies a signed delta. Negative deltas obey the same floor as
// ReserveAndDeduct.
func (l *InventoryLedger) Adjust(ctx context.Context, itemID uuid.UUID, delta int) error {
	switch {
	case delta > 0:
		return l.Credit(ctx, itemID, delta)
	case delta < 0:
		return l.ReserveAndDeduct(ctx, itemID, -delta)
	default:
		return ErrInvalidQuantity
	}
}
