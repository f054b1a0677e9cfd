package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
)

type InventoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]entity.InventoryItem
}

func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{items: make(map[uuid.UUID]entity.InventoryItem)}
}

var _ domainRepo.InventoryRepository = (*InventoryRepository)(nil)

func (r *InventoryRepository) Create(ctx context.Context, item *entity.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	r.items[item.ID] = *item
	return nil
}

func (r *InventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *InventoryRepository) filter(keep func(entity.InventoryItem) bool) []entity.InventoryItem {
	var out []entity.InventoryItem
	for _, item := range r.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *InventoryRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]entity.InventoryItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := r.filter(func(i entity.InventoryItem) bool { return i.OwnerID == ownerID && i.IsActive })
	return paginate(matched, limit, offset), int64(len(matched)), nil
}

func (r *InventoryRepository) FindLowStock(ctx context.Context) ([]entity.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filter(func(i entity.InventoryItem) bool { return i.IsActive && i.IsLowStock() }), nil
}

func (r *InventoryRepository) FindExpiringBefore(ctx context.Context, t time.Time) ([]entity.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.filter(func(i entity.InventoryItem) bool { return i.IsActive && i.ExpiresBefore(t) }), nil
}

func (r *InventoryRepository) Update(ctx context.Context, item *entity.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.items[item.ID]; ok {
		item.Quantity = current.Quantity
		item.OwnerID = current.OwnerID
	}
	item.UpdatedAt = time.Now()
	r.items[item.ID] = *item
	return nil
}

func (r *InventoryRepository) DecrementIfAvailable(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok || item.Quantity < qty {
		return 0, nil
	}
	item.Quantity -= qty
	r.items[id] = item
	return 1, nil
}

func (r *InventoryRepository) Increment(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return 0, nil
	}
	item.Quantity += qty
	r.items[id] = item
	return 1, nil
}

// Quantities snapshots every item's quantity.
func (r *InventoryRepository) Quantities() map[uuid.UUID]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[uuid.UUID]int, len(r.items))
	for id, item := range r.items {
		out[id] = item.Quantity
	}
	return out
}
