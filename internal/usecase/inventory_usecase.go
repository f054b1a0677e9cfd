package usecase

import (
	"context"
	"time"

	"healconnect/internal/converter"
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
	"healconnect/internal/domain/repository"
	"healconnect/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type InventoryUsecase interface {
	Create(ctx context.Context, req *dto.CreateInventoryItemRequest) (*dto.InventoryItemResponse, error)
	List(ctx context.Context, page, limit int) (*dto.InventoryListResponse, int, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.InventoryItemResponse, error)
	Update(ctx context.Context, id uuid.UUID, req *dto.UpdateInventoryItemRequest) (*dto.InventoryItemResponse, error)
	Adjust(ctx context.Context, id uuid.UUID, req *dto.AdjustStockRequest) (*dto.InventoryItemResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type inventoryUsecase struct {
	log           *logrus.Logger
	inventoryRepo repository.InventoryRepository
	ledger        *service.InventoryLedger
	auditService  service.AuditService
}

func NewInventoryUsecase(
	log *logrus.Logger,
	inventoryRepo repository.InventoryRepository,
	ledger *service.InventoryLedger,
	auditService service.AuditService,
) InventoryUsecase {
	return &inventoryUsecase{
		log:           log,
		inventoryRepo: inventoryRepo,
		ledger:        ledger,
		auditService:  auditService,
	}
}

func (u *inventoryUsecase) Create(ctx context.Context, req *dto.CreateInventoryItemRequest) (*dto.InventoryItemResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	if req.Quantity < 0 {
		return nil, service.ErrInvalidQuantity
	}
	expiry, err := parseOptionalDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}

	item := &entity.InventoryItem{
		OwnerID:           caller.UserID,
		Name:              req.Name,
		Batch:             req.Batch,
		Quantity:          req.Quantity,
		UnitPrice:         req.UnitPrice,
		LowStockThreshold: req.LowStockThreshold,
		ExpiryDate:        expiry,
		IsActive:          true,
	}

	if err := u.inventoryRepo.Create(ctx, item); err != nil {
		u.log.Warnf("Failed to create inventory item: %+v", err)
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, &caller.UserID, entity.AuditActionInventoryCreate, "inventory_item", item.ID.String(), item); err != nil {
		u.log.Warnf("Failed to audit inventory item %s: %+v", item.ID, err)
	}

	u.log.Infof("Inventory item created: id=%s, name=%s, quantity=%d", item.ID, item.Name, item.Quantity)
	return converter.InventoryItemToResponse(item), nil
}

// List returns the caller's items along with the normalized paging values.
func (u *inventoryUsecase) List(ctx context.Context, page, limit int) (*dto.InventoryListResponse, int, int, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	page, limit = normalizePage(page, limit)
	items, total, err := u.inventoryRepo.FindByOwner(ctx, caller.UserID, limit, (page-1)*limit)
	if err != nil {
		u.log.Warnf("Failed to list inventory for %s: %+v", caller.UserID, err)
		return nil, 0, 0, err
	}

	return &dto.InventoryListResponse{
		Items: converter.InventoryItemsToResponses(items),
		Total: total,
	}, page, limit, nil
}

func (u *inventoryUsecase) GetByID(ctx context.Context, id uuid.UUID) (*dto.InventoryItemResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	item, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}
	return converter.InventoryItemToResponse(item), nil
}

// Update changes descriptive fields only. Quantity moves through Adjust.
func (u *inventoryUsecase) Update(ctx context.Context, id uuid.UUID, req *dto.UpdateInventoryItemRequest) (*dto.InventoryItemResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	item, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}

	expiry, err := parseOptionalDate(req.ExpiryDate)
	if err != nil {
		return nil, err
	}

	item.Name = req.Name
	item.Batch = req.Batch
	item.UnitPrice = req.UnitPrice
	item.LowStockThreshold = req.LowStockThreshold
	item.ExpiryDate = expiry

	if err := u.inventoryRepo.Update(ctx, item); err != nil {
		u.log.Warnf("Failed to update inventory item %s: %+v", id, err)
		return nil, err
	}

	return u.GetByID(ctx, id)
}

func (u *inventoryUsecase) Adjust(ctx context.Context, id uuid.UUID, req *dto.AdjustStockRequest) (*dto.InventoryItemResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	item, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}

	if err := u.ledger.Adjust(ctx, id, req.Delta); err != nil {
		return nil, err
	}

	updated, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}

	if err := u.auditService.LogUpdate(ctx, &caller.UserID, entity.AuditActionInventoryAdjust, "inventory_item", id.String(),
		map[string]interface{}{"quantity": item.Quantity},
		map[string]interface{}{"quantity": updated.Quantity, "delta": req.Delta, "reason": req.Reason},
	); err != nil {
		u.log.Warnf("Failed to audit inventory item %s: %+v", id, err)
	}

	u.log.Infof("Inventory adjusted: id=%s, delta=%d, quantity=%d", id, req.Delta, updated.Quantity)
	return converter.InventoryItemToResponse(updated), nil
}

// Delete hides the item. Issued prescriptions keep their snapshot of it.
func (u *inventoryUsecase) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return err
	}

	item, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return err
	}

	item.IsActive = false
	item.UpdatedAt = time.Now()
	if err := u.inventoryRepo.Update(ctx, item); err != nil {
		u.log.Warnf("Failed to deactivate inventory item %s: %+v", id, err)
		return err
	}

	u.log.Infof("Inventory item deactivated: id=%s", id)
	return nil
}

func (u *inventoryUsecase) findOwned(ctx context.Context, id, ownerID uuid.UUID) (*entity.InventoryItem, error) {
	item, err := u.inventoryRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to find inventory item %s: %+v", id, err)
		return nil, err
	}
	if item == nil || !item.IsActive {
		return nil, service.ErrItemNotFound
	}
	if item.OwnerID != ownerID {
		return nil, ErrUnauthorizedOwner
	}
	return item, nil
}
