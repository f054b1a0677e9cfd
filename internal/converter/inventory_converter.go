package converter

import (
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
)

func InventoryItemToResponse(item *entity.InventoryItem) *dto.InventoryItemResponse {
	if item == nil {
		return nil
	}

	return &dto.InventoryItemResponse{
		ID:                item.ID,
		OwnerID:           item.OwnerID,
		Name:              item.Name,
		Batch:             item.Batch,
		Quantity:          item.Quantity,
		UnitPrice:         item.UnitPrice,
		LowStockThreshold: item.LowStockThreshold,
		LowStock:          item.IsLowStock(),
		ExpiryDate:        item.ExpiryDate,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}

func InventoryItemsToResponses(items []entity.InventoryItem) []dto.InventoryItemResponse {
	responses := make([]dto.InventoryItemResponse, len(items))
	for i := range items {
		responses[i] = *InventoryItemToResponse(&items[i])
	}
	return responses
}
