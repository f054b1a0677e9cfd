package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"healconnect/internal/domain/entity"
	"healconnect/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceScheduler_RunOnce(t *testing.T) {
	boom := errors.New("boom")
	var ran []string

	job := func(name string, err error) MaintenanceJob {
		return MaintenanceJob{Name: name, Run: func(ctx context.Context, run *MaintenanceRun) error {
			ran = append(ran, name)
			return err
		}}
	}

	scheduler := NewMaintenanceScheduler(NewMemoryAlertTracker(), time.Hour, newTestLogger(),
		job("ok", nil),
		job("busy", ErrRunInProgress),
		job("broken", boom),
		job("after", nil),
	)

	err := scheduler.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, []string{"ok", "busy", "broken", "after"}, ran)
}

func TestMaintenanceScheduler_StartStop(t *testing.T) {
	scheduler := NewMaintenanceScheduler(NewMemoryAlertTracker(), time.Hour, newTestLogger())
	scheduler.Start()
	scheduler.Start()
	scheduler.Stop()
	scheduler.Stop()
}

func TestInventoryAlerts_OncePerItemPerDay(t *testing.T) {
	ctx := context.Background()
	inventoryRepo := memory.NewInventoryRepository()
	userRepo := memory.NewUserRepository()

	owner := &entity.User{Email: "doc@clinic.test", FullName: "Dr. Rao", RoleID: entity.RoleIDDoctor}
	require.NoError(t, userRepo.Create(ctx, owner))

	expiry := time.Now().AddDate(0, 0, 10)
	low := &entity.InventoryItem{OwnerID: owner.ID, Name: "Paracetamol", Quantity: 2, LowStockThreshold: 5, IsActive: true}
	expiring := &entity.InventoryItem{OwnerID: owner.ID, Name: "Insulin", Quantity: 50, LowStockThreshold: 5, ExpiryDate: &expiry, IsActive: true}
	healthy := &entity.InventoryItem{OwnerID: owner.ID, Name: "Zinc", Quantity: 50, LowStockThreshold: 5, IsActive: true}
	for _, item := range []*entity.InventoryItem{low, expiring, healthy} {
		require.NoError(t, inventoryRepo.Create(ctx, item))
	}

	notifier := &mockNotifier{}
	notifier.On("Notify", "doc@clinic.test", NotifyLowStock, mock.Anything).Return(nil)
	notifier.On("Notify", "doc@clinic.test", NotifyExpiringStock, mock.Anything).Return(nil)

	log := newTestLogger()
	notifications := NewNotificationService(notifier, log, time.Second)
	alerts := NewInventoryAlerts(inventoryRepo, userRepo, notifications, log, 30)
	scheduler := NewMaintenanceScheduler(NewMemoryAlertTracker(), time.Hour, log, alerts.Jobs()...)

	require.NoError(t, scheduler.RunOnce(ctx))
	require.NoError(t, scheduler.RunOnce(ctx))
	notifications.Wait()

	notifier.AssertNumberOfCalls(t, "Notify", 2)
	notifier.AssertCalled(t, "Notify", "doc@clinic.test", NotifyLowStock, mock.MatchedBy(func(p map[string]interface{}) bool {
		return p["name"] == "Paracetamol"
	}))
	notifier.AssertCalled(t, "Notify", "doc@clinic.test", NotifyExpiringStock, mock.MatchedBy(func(p map[string]interface{}) bool {
		return p["name"] == "Insulin"
	}))
}

func TestNotificationService_FailureIsSwallowed(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("Notify", "p@x.test", NotifyAppointmentBooked, mock.Anything).Return(errors.New("smtp down"))

	notifications := NewNotificationService(notifier, newTestLogger(), time.Second)
	notifications.Dispatch("p@x.test", NotifyAppointmentBooked, nil)
	notifications.Dispatch("", NotifyAppointmentBooked, nil)
	notifications.Stop()

	notifier.AssertNumberOfCalls(t, "Notify", 1)

	// Stopped services drop new work
	notifications.Dispatch("p@x.test", NotifyAppointmentBooked, nil)
	notifications.Wait()
	notifier.AssertNumberOfCalls(t, "Notify", 1)
}
