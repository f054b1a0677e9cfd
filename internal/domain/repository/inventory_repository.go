package repository

import (
	"context"
	"time"

	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *entity.InventoryItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.InventoryItem, error)
	FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]entity.InventoryItem, int64, error)
	FindLowStock(ctx context.Context) ([]entity.InventoryItem, error)
	FindExpiringBefore(ctx context.Context, t time.Time) ([]entity.InventoryItem, error)
	Update(ctx context.Context, item *entity.InventoryItem) error

	// DecrementIfAvailable subtracts qty only when quantity >= qty.
	// Returns affected rows: 1 = deducted, 0 = missing or not enough stock.
	DecrementIfAvailable(ctx context.Context, id uuid.UUID, qty int) (int64, error)
	Increment(ctx context.Context, id uuid.UUID, qty int) (int64, error)
}
