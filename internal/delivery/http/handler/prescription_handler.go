package handler

import (
	"encoding/json"
	"net/http"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/usecase"
	"healconnect/pkg/response"
	"healconnect/pkg/validator"
)

type PrescriptionHandler struct {
	prescriptionUsecase usecase.PrescriptionUsecase
	validator           *validator.CustomValidator
}

func NewPrescriptionHandler(prescriptionUsecase usecase.PrescriptionUsecase, validator *validator.CustomValidator) *PrescriptionHandler {
	return &PrescriptionHandler{
		prescriptionUsecase: prescriptionUsecase,
		validator:           validator,
	}
}

// Issue handles prescription issuance
// @Summary Issue a prescription
// @Description Deducts stock for every line and records the visit. All or nothing.
// @Tags Prescriptions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Replays the first result for a repeated key"
// @Param request body dto.IssuePrescriptionRequest true "Prescription Request"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /prescriptions [post]
func (h *PrescriptionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req dto.IssuePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" && req.IdempotencyKey == "" {
		req.IdempotencyKey = key
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	prescription, err := h.prescriptionUsecase.Issue(r.Context(), &req)
	if err != nil {
		writeError(w, err, "Failed to issue prescription")
		return
	}

	response.Success(w, http.StatusCreated, "Prescription issued successfully", prescription)
}

func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "prescription")
	if !ok {
		return
	}

	prescription, err := h.prescriptionUsecase.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get prescription")
		return
	}

	response.Success(w, http.StatusOK, "Prescription retrieved successfully", prescription)
}

func (h *PrescriptionHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	patientID, ok := pathUUID(w, r, "patientId", "patient")
	if !ok {
		return
	}

	prescriptions, err := h.prescriptionUsecase.ListByPatient(r.Context(), patientID)
	if err != nil {
		writeError(w, err, "Failed to get prescriptions")
		return
	}

	response.Success(w, http.StatusOK, "Prescriptions retrieved successfully", prescriptions)
}

func (h *PrescriptionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "prescription")
	if !ok {
		return
	}

	prescription, err := h.prescriptionUsecase.Complete(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to complete prescription")
		return
	}

	response.Success(w, http.StatusOK, "Prescription completed", prescription)
}

func (h *PrescriptionHandler) Discontinue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "prescription")
	if !ok {
		return
	}

	prescription, err := h.prescriptionUsecase.Discontinue(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to discontinue prescription")
		return
	}

	response.Success(w, http.StatusOK, "Prescription discontinued", prescription)
}

// Delete reverses an active prescription: stock is credited back and the
// visit it produced is removed.
func (h *PrescriptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "prescription")
	if !ok {
		return
	}

	if err := h.prescriptionUsecase.Delete(r.Context(), id); err != nil {
		writeError(w, err, "Failed to delete prescription")
		return
	}

	response.Success(w, http.StatusOK, "Prescription deleted successfully", nil)
}
