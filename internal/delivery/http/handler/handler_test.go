package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/service"
	"healconnect/internal/usecase"
	"healconnect/pkg/response"
	"healconnect/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPrescriptionUsecase struct {
	mock.Mock
}

func (m *mockPrescriptionUsecase) Issue(ctx context.Context, req *dto.IssuePrescriptionRequest) (*dto.PrescriptionResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*dto.PrescriptionResponse)
	return resp, args.Error(1)
}

func (m *mockPrescriptionUsecase) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPrescriptionUsecase) Complete(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*dto.PrescriptionResponse)
	return resp, args.Error(1)
}

func (m *mockPrescriptionUsecase) Discontinue(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*dto.PrescriptionResponse)
	return resp, args.Error(1)
}

func (m *mockPrescriptionUsecase) GetByID(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*dto.PrescriptionResponse)
	return resp, args.Error(1)
}

func (m *mockPrescriptionUsecase) ListByPatient(ctx context.Context, patientID uuid.UUID) (*dto.PrescriptionListResponse, error) {
	args := m.Called(ctx, patientID)
	resp, _ := args.Get(0).(*dto.PrescriptionListResponse)
	return resp, args.Error(1)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{usecase.ErrSlotTaken, http.StatusConflict},
		{usecase.ErrPatientAlreadyClaimed, http.StatusConflict},
		{usecase.ErrInvalidTransition, http.StatusConflict},
		{usecase.ErrPrescriptionLocked, http.StatusConflict},
		{usecase.ErrDeduplicationRunning, http.StatusConflict},
		{usecase.ErrUnauthorizedOwner, http.StatusForbidden},
		{usecase.ErrPatientNotFound, http.StatusNotFound},
		{service.ErrItemNotFound, http.StatusNotFound},
		{usecase.ErrInvalidSlot, http.StatusBadRequest},
		{usecase.ErrSlotPast, http.StatusBadRequest},
		{usecase.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("allocate: %w", service.ErrAllocationExhausted), http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tc.err, "Failed")
			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, decode(t, rec).Success)
		})
	}
}

func TestWriteError_InsufficientStockCarriesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &service.InsufficientStockError{ItemName: "Paracetamol", Available: 1, Requested: 2}, "Failed")

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decode(t, rec)
	assert.Contains(t, body.Message, "Paracetamol")
	detail, ok := body.Error.(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1, detail["available"])
	assert.EqualValues(t, 2, detail["requested"])
}

func TestPrescriptionHandler_IssueUsesIdempotencyHeader(t *testing.T) {
	uc := new(mockPrescriptionUsecase)
	h := NewPrescriptionHandler(uc, validator.NewValidator())

	patientID, itemID := uuid.New(), uuid.New()
	issued := &dto.PrescriptionResponse{ID: uuid.New(), PrescriptionNumber: "RX20251014001", Status: "active"}
	uc.On("Issue", mock.Anything, mock.MatchedBy(func(req *dto.IssuePrescriptionRequest) bool {
		return req.IdempotencyKey == "visit-42" && req.PatientID == patientID && len(req.LineItems) == 1
	})).Return(issued, nil).Once()

	body := fmt.Sprintf(`{"patient_id":%q,"line_items":[{"inventory_item_id":%q,"quantity":2}]}`, patientID, itemID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/doctor/prescriptions", strings.NewReader(body))
	req.Header.Set("Idempotency-Key", "visit-42")
	rec := httptest.NewRecorder()

	h.Issue(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode(t, rec).Success)
	uc.AssertExpectations(t)
}

func TestPrescriptionHandler_IssueValidation(t *testing.T) {
	uc := new(mockPrescriptionUsecase)
	h := NewPrescriptionHandler(uc, validator.NewValidator())

	body := fmt.Sprintf(`{"patient_id":%q,"line_items":[]}`, uuid.New())
	rec := httptest.NewRecorder()
	h.Issue(rec, httptest.NewRequest(http.MethodPost, "/api/v1/doctor/prescriptions", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	uc.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
}

func TestPrescriptionHandler_DeleteLocked(t *testing.T) {
	uc := new(mockPrescriptionUsecase)
	h := NewPrescriptionHandler(uc, validator.NewValidator())
	id := uuid.New()
	uc.On("Delete", mock.Anything, id).Return(usecase.ErrPrescriptionLocked).Once()

	req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/api/v1/doctor/prescriptions/"+id.String(), nil), map[string]string{"id": id.String()})
	rec := httptest.NewRecorder()
	h.Delete(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	bad := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/api/v1/doctor/prescriptions/x", nil), map[string]string{"id": "x"})
	rec = httptest.NewRecorder()
	h.Delete(rec, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	uc.AssertExpectations(t)
}
