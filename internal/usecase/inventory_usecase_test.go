package usecase

import (
	"testing"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
	"healconnect/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) inventoryUsecase() InventoryUsecase {
	return NewInventoryUsecase(f.log, f.inventory, f.ledger, f.auditService)
}

func TestInventory_CreateAndAdjust(t *testing.T) {
	f := newFixture(t)
	uc := f.inventoryUsecase()
	doctor := f.seedUser(t, entity.RoleIDDoctor, "doctor@clinic.test")
	ctx := asUser(doctor)

	item, err := uc.Create(ctx, &dto.CreateInventoryItemRequest{
		Name:              "Amoxicillin 500mg",
		Quantity:          10,
		UnitPrice:         decimal.RequireFromString("4.50"),
		LowStockThreshold: 5,
		ExpiryDate:        "2026-03-31",
	})
	require.NoError(t, err)
	assert.Equal(t, doctor.ID, item.OwnerID)
	assert.False(t, item.LowStock)
	require.NotNil(t, item.ExpiryDate)

	adjusted, err := uc.Adjust(ctx, item.ID, &dto.AdjustStockRequest{Delta: -6, Reason: "expired strip"})
	require.NoError(t, err)
	assert.Equal(t, 4, adjusted.Quantity)
	assert.True(t, adjusted.LowStock)

	_, err = uc.Adjust(ctx, item.ID, &dto.AdjustStockRequest{Delta: -5})
	var stockErr *service.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Available)
	assert.Equal(t, 4, f.quantity(item.ID))

	restocked, err := uc.Adjust(ctx, item.ID, &dto.AdjustStockRequest{Delta: 20, Reason: "delivery"})
	require.NoError(t, err)
	assert.Equal(t, 24, restocked.Quantity)

	assert.Equal(t, []string{
		entity.AuditActionInventoryCreate,
		entity.AuditActionInventoryAdjust,
		entity.AuditActionInventoryAdjust,
	}, f.audit.Actions())
}

func TestInventory_CreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	uc := f.inventoryUsecase()
	ctx := asUser(f.seedUser(t, entity.RoleIDDoctor, "doctor@clinic.test"))

	_, err := uc.Create(ctx, &dto.CreateInventoryItemRequest{Name: "Cetirizine", Quantity: -1})
	assert.ErrorIs(t, err, service.ErrInvalidQuantity)

	_, err = uc.Create(ctx, &dto.CreateInventoryItemRequest{Name: "Cetirizine", ExpiryDate: "31/03/2026"})
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
}

func TestInventory_UpdateLeavesQuantityAlone(t *testing.T) {
	f := newFixture(t)
	uc := f.inventoryUsecase()
	doctor := f.seedUser(t, entity.RoleIDDoctor, "doctor@clinic.test")
	ctx := asUser(doctor)
	item := f.seedItem(t, doctor.ID, "Paracetamol", 12)

	updated, err := uc.Update(ctx, item.ID, &dto.UpdateInventoryItemRequest{Name: "Paracetamol 650mg", LowStockThreshold: 15})
	require.NoError(t, err)
	assert.Equal(t, "Paracetamol 650mg", updated.Name)
	assert.Equal(t, 12, updated.Quantity)
	assert.True(t, updated.LowStock)
}

func TestInventory_OwnershipAndSoftDelete(t *testing.T) {
	f := newFixture(t)
	uc := f.inventoryUsecase()
	owner := f.seedUser(t, entity.RoleIDDoctor, "owner@clinic.test")
	other := f.seedUser(t, entity.RoleIDDoctor, "other@clinic.test")
	item := f.seedItem(t, owner.ID, "Ibuprofen", 8)
	f.seedItem(t, owner.ID, "ORS", 30)

	_, err := uc.GetByID(asUser(other), item.ID)
	assert.ErrorIs(t, err, ErrUnauthorizedOwner)
	_, err = uc.Adjust(asUser(other), item.ID, &dto.AdjustStockRequest{Delta: 1})
	assert.ErrorIs(t, err, ErrUnauthorizedOwner)
	assert.ErrorIs(t, uc.Delete(asUser(other), item.ID), ErrUnauthorizedOwner)

	list, _, _, err := uc.List(asUser(other), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	require.NoError(t, uc.Delete(asUser(owner), item.ID))
	_, err = uc.GetByID(asUser(owner), item.ID)
	assert.ErrorIs(t, err, service.ErrItemNotFound)
	assert.Equal(t, 8, f.quantity(item.ID))

	list, page, limit, err := uc.List(asUser(owner), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, 1, page)
	assert.Positive(t, limit)
}
