package service

import (
	"context"
	"time"

	"healconnect/internal/domain/entity"
	"healconnect/internal/domain/repository"

	"github.com/sirupsen/logrus"
)

const (
	alertKindLowStock = "low_stock"
	alertKindExpiry   = "expiry"
)

// InventoryAlerts notifies item owners about low and expiring stock, at most
// once per item per day.
type InventoryAlerts struct {
	inventoryRepo repository.InventoryRepository
	userRepo      repository.UserRepository
	notifications *NotificationService
	log           *logrus.Logger
	warningDays   int
}

func NewInventoryAlerts(
	inventoryRepo repository.InventoryRepository,
	userRepo repository.UserRepository,
	notifications *NotificationService,
	log *logrus.Logger,
	warningDays int,
) *InventoryAlerts {
	return &InventoryAlerts{
		inventoryRepo: inventoryRepo,
		userRepo:      userRepo,
		notifications: notifications,
		log:           log,
		warningDays:   warningDays,
	}
}

// Jobs returns the low-stock and expiry jobs for the maintenance scheduler.
func (a *InventoryAlerts) Jobs() []MaintenanceJob {
	return []MaintenanceJob{
		{Name: "inventory_low_stock", Run: a.LowStock},
		{Name: "inventory_expiry", Run: a.Expiring},
	}
}

func (a *InventoryAlerts) LowStock(ctx context.Context, run *MaintenanceRun) error {
	items, err := a.inventoryRepo.FindLowStock(ctx)
	if err != nil {
		a.log.Warnf("Failed to find low stock items: %+v", err)
		return err
	}
	return a.alert(ctx, run, alertKindLowStock, NotifyLowStock, items)
}

func (a *InventoryAlerts) Expiring(ctx context.Context, run *MaintenanceRun) error {
	cutoff := run.Day.AddDate(0, 0, a.warningDays)
	items, err := a.inventoryRepo.FindExpiringBefore(ctx, cutoff)
	if err != nil {
		a.log.Warnf("Failed to find expiring items: %+v", err)
		return err
	}
	return a.alert(ctx, run, alertKindExpiry, NotifyExpiringStock, items)
}

func (a *InventoryAlerts) alert(ctx context.Context, run *MaintenanceRun, alertKind, notifyKind string, items []entity.InventoryItem) error {
	sent := 0
	for _, item := range items {
		first, err := run.Alerts.MarkIfFirst(ctx, alertKind, item.ID.String(), run.Day)
		if err != nil {
			return err
		}
		if !first {
			continue
		}

		owner, err := a.userRepo.FindByID(ctx, item.OwnerID)
		if err != nil {
			a.log.Warnf("Failed to find owner %s of item %s: %+v", item.OwnerID, item.ID, err)
			continue
		}
		if owner == nil {
			continue
		}

		payload := map[string]interface{}{
			"item_id":  item.ID.String(),
			"name":     item.Name,
			"batch":    item.Batch,
			"quantity": item.Quantity,
		}
		if item.ExpiryDate != nil {
			payload["expiry_date"] = item.ExpiryDate.Format(time.DateOnly)
		}
		a.notifications.Dispatch(owner.Email, notifyKind, payload)
		sent++
	}

	if sent > 0 {
		a.log.Infof("Inventory alerts sent: kind=%s, count=%d", alertKind, sent)
	}
	return nil
}
