package repository

import (
	"context"
	"errors"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type inventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) domainRepo.InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Create(ctx context.Context, item *entity.InventoryItem) error {
	return conn(ctx, r.db).Create(item).Error
}

func (r *inventoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.InventoryItem, error) {
	var item entity.InventoryItem
	err := conn(ctx, r.db).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *inventoryRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]entity.InventoryItem, int64, error) {
	var items []entity.InventoryItem
	var total int64

	query := conn(ctx, r.db).Model(&entity.InventoryItem{}).Where("owner_id = ? AND is_active = ?", ownerID, true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("name ASC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *inventoryRepository) FindLowStock(ctx context.Context) ([]entity.InventoryItem, error) {
	var items []entity.InventoryItem
	err := conn(ctx, r.db).
		Where("is_active = ? AND quantity <= low_stock_threshold", true).
		Order("quantity ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *inventoryRepository) FindExpiringBefore(ctx context.Context, t time.Time) ([]entity.InventoryItem, error) {
	var items []entity.InventoryItem
	err := conn(ctx, r.db).
		Where("is_active = ? AND expiry_date IS NOT NULL AND expiry_date < ?", true, t).
		Order("expiry_date ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Update writes the descriptive fields. Quantity is owned by the conditional
// updates below and never written here.
func (r *inventoryRepository) Update(ctx context.Context, item *entity.InventoryItem) error {
	return conn(ctx, r.db).Omit("quantity", "owner_id", "created_at").Save(item).Error
}

// DecrementIfAvailable is a single conditional UPDATE. Two concurrent
// deductions cannot both pass the quantity check.
func (r *inventoryRepository) DecrementIfAvailable(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.InventoryItem{}).
		Where("id = ? AND quantity >= ?", id, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	return result.RowsAffected, result.Error
}

func (r *inventoryRepository) Increment(ctx context.Context, id uuid.UUID, qty int) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.InventoryItem{}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty))
	return result.RowsAffected, result.Error
}
