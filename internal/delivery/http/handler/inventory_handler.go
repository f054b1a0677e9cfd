package handler

import (
	"encoding/json"
	"net/http"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/usecase"
	"healconnect/pkg/response"
	"healconnect/pkg/validator"
)

type InventoryHandler struct {
	inventoryUsecase usecase.InventoryUsecase
	validator        *validator.CustomValidator
}

func NewInventoryHandler(inventoryUsecase usecase.InventoryUsecase, validator *validator.CustomValidator) *InventoryHandler {
	return &InventoryHandler{
		inventoryUsecase: inventoryUsecase,
		validator:        validator,
	}
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateInventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	item, err := h.inventoryUsecase.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err, "Failed to create inventory item")
		return
	}

	response.Success(w, http.StatusCreated, "Inventory item created successfully", item)
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	items, page, limit, err := h.inventoryUsecase.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, err, "Failed to get inventory")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Inventory retrieved successfully", items.Items, response.NewMeta(page, limit, items.Total))
}

func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "inventory item")
	if !ok {
		return
	}

	item, err := h.inventoryUsecase.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get inventory item")
		return
	}

	response.Success(w, http.StatusOK, "Inventory item retrieved successfully", item)
}

func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "inventory item")
	if !ok {
		return
	}

	var req dto.UpdateInventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	item, err := h.inventoryUsecase.Update(r.Context(), id, &req)
	if err != nil {
		writeError(w, err, "Failed to update inventory item")
		return
	}

	response.Success(w, http.StatusOK, "Inventory item updated successfully", item)
}

// Adjust applies a signed stock correction. Quantity never goes below zero.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "inventory item")
	if !ok {
		return
	}

	var req dto.AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	item, err := h.inventoryUsecase.Adjust(r.Context(), id, &req)
	if err != nil {
		writeError(w, err, "Failed to adjust stock")
		return
	}

	response.Success(w, http.StatusOK, "Stock adjusted successfully", item)
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "inventory item")
	if !ok {
		return
	}

	if err := h.inventoryUsecase.Delete(r.Context(), id); err != nil {
		writeError(w, err, "Failed to delete inventory item")
		return
	}

	response.Success(w, http.StatusOK, "Inventory item deleted successfully", nil)
}
