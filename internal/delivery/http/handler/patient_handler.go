package handler

import (
	"encoding/json"
	"net/http"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/usecase"
	"healconnect/pkg/response"
	"healconnect/pkg/validator"
)

type PatientHandler struct {
	patientUsecase  usecase.PatientUsecase
	identityUsecase usecase.PatientIdentityUsecase
	validator       *validator.CustomValidator
}

func NewPatientHandler(
	patientUsecase usecase.PatientUsecase,
	identityUsecase usecase.PatientIdentityUsecase,
	validator *validator.CustomValidator,
) *PatientHandler {
	return &PatientHandler{
		patientUsecase:  patientUsecase,
		identityUsecase: identityUsecase,
		validator:       validator,
	}
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	patient, err := h.patientUsecase.Create(r.Context(), &req)
	if err != nil {
		writeError(w, err, "Failed to create patient")
		return
	}

	response.Success(w, http.StatusCreated, "Patient created successfully", patient)
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	req := &dto.PatientListRequest{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}

	patients, page, limit, err := h.patientUsecase.List(r.Context(), req)
	if err != nil {
		writeError(w, err, "Failed to get patients")
		return
	}

	response.SuccessWithMeta(w, http.StatusOK, "Patients retrieved successfully", patients.Patients, response.NewMeta(page, limit, patients.Total))
}

func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "patient")
	if !ok {
		return
	}

	patient, err := h.patientUsecase.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to get patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient retrieved successfully", patient)
}

// GetMine returns the record linked to a self-registered patient's account.
func (h *PatientHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	patient, err := h.patientUsecase.GetMine(r.Context())
	if err != nil {
		writeError(w, err, "Failed to get patient record")
		return
	}

	response.Success(w, http.StatusOK, "Patient retrieved successfully", patient)
}

func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "patient")
	if !ok {
		return
	}

	var req dto.UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	patient, err := h.patientUsecase.Update(r.Context(), id, &req)
	if err != nil {
		writeError(w, err, "Failed to update patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient updated successfully", patient)
}

func (h *PatientHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "patient")
	if !ok {
		return
	}

	patient, err := h.patientUsecase.Claim(r.Context(), id)
	if err != nil {
		writeError(w, err, "Failed to claim patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient claimed successfully", patient)
}

func (h *PatientHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "patient")
	if !ok {
		return
	}

	if err := h.patientUsecase.Deactivate(r.Context(), id); err != nil {
		writeError(w, err, "Failed to deactivate patient")
		return
	}

	response.Success(w, http.StatusOK, "Patient deactivated successfully", nil)
}

// Duplicates previews what a deduplication run would merge.
func (h *PatientHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.identityUsecase.FindDuplicates(r.Context())
	if err != nil {
		writeError(w, err, "Failed to find duplicates")
		return
	}

	response.Success(w, http.StatusOK, "Duplicate groups retrieved successfully", groups)
}

func (h *PatientHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req dto.MergePatientsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	result, err := h.identityUsecase.MergePatients(r.Context(), req.PatientIDs)
	if err != nil {
		writeError(w, err, "Failed to merge patients")
		return
	}

	response.Success(w, http.StatusOK, "Patients merged successfully", result)
}

// Deduplicate merges every duplicate group. Partial failures still return
// what was merged.
func (h *PatientHandler) Deduplicate(w http.ResponseWriter, r *http.Request) {
	result, err := h.identityUsecase.RunDeduplication(r.Context())
	if err != nil && result == nil {
		writeError(w, err, "Failed to deduplicate patients")
		return
	}
	if err != nil {
		response.JSON(w, http.StatusMultiStatus, response.Response{
			Success: false,
			Message: "Some duplicate groups could not be merged",
			Data:    result,
			Error:   err.Error(),
		})
		return
	}

	response.Success(w, http.StatusOK, "Deduplication finished", result)
}
