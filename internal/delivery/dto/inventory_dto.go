package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Request DTOs

type CreateInventoryItemRequest struct {
	Name              string          `json:"name" validate:"required,min=2"`
	Batch             string          `json:"batch"`
	Quantity          int             `json:"quantity" validate:"gte=0"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
	ExpiryDate        string          `json:"expiry_date" validate:"omitempty,date_only"`
}

type UpdateInventoryItemRequest struct {
	Name              string          `json:"name" validate:"required,min=2"`
	Batch             string          `json:"batch"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
	ExpiryDate        string          `json:"expiry_date" validate:"omitempty,date_only"`
}

// AdjustStockRequest applies a signed delta; restocks are positive.
type AdjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required,ne=0"`
	Reason string `json:"reason"`
}

// Response DTOs

type InventoryItemResponse struct {
	ID                uuid.UUID       `json:"id"`
	OwnerID           uuid.UUID       `json:"owner_id"`
	Name              string          `json:"name"`
	Batch             string          `json:"batch,omitempty"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	LowStock          bool            `json:"low_stock"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type InventoryListResponse struct {
	Items []InventoryItemResponse `json:"items"`
	Total int64                   `json:"total"`
}
