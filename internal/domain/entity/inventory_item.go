package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is a practitioner-owned medicine counter. Quantity never goes
// below zero, the database enforces it with a CHECK constraint as well.
type InventoryItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OwnerID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"owner_id"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Batch             string          `gorm:"type:varchar(100)" json:"batch,omitempty"`
	Quantity          int             `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"unit_price"`
	LowStockThreshold int             `gorm:"not null;default:10" json:"low_stock_threshold"`
	ExpiryDate        *time.Time      `gorm:"type:date;index" json:"expiry_date,omitempty"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InventoryItem) TableName() string {
	return "inventory_items"
}

func (i *InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.LowStockThreshold
}

// ExpiresBefore reports whether the item has an expiry date before t.
func (i *InventoryItem) ExpiresBefore(t time.Time) bool {
	return i.ExpiryDate != nil && i.ExpiryDate.Before(t)
}
