package handler

import (
	"errors"
	"net/http"
	"strconv"

	"healconnect/internal/service"
	"healconnect/internal/usecase"
	"healconnect/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// writeError maps usecase and service errors onto HTTP statuses. Anything it
// does not recognise is a 500 carrying fallback as the message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		response.Conflict(w, stockErr.Error(), map[string]interface{}{
			"item":      stockErr.ItemName,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, usecase.ErrUnauthenticated):
		response.Unauthorized(w, "")
	case errors.Is(err, usecase.ErrUnauthorizedOwner):
		response.Forbidden(w, err.Error())

	case errors.Is(err, usecase.ErrPatientNotFound),
		errors.Is(err, usecase.ErrAppointmentNotFound),
		errors.Is(err, usecase.ErrPractitionerNotFound),
		errors.Is(err, usecase.ErrPrescriptionNotFound),
		errors.Is(err, usecase.ErrUserNotFound),
		errors.Is(err, usecase.ErrAuditLogNotFound),
		errors.Is(err, service.ErrItemNotFound):
		response.NotFound(w, err.Error())

	case errors.Is(err, usecase.ErrSlotTaken),
		errors.Is(err, usecase.ErrPatientAlreadyClaimed),
		errors.Is(err, usecase.ErrEmailAlreadyExists),
		errors.Is(err, usecase.ErrDeduplicationRunning),
		errors.Is(err, usecase.ErrInvalidTransition),
		errors.Is(err, usecase.ErrPrescriptionLocked),
		errors.Is(err, service.ErrInsufficientStock):
		response.Conflict(w, err.Error(), nil)

	case errors.Is(err, usecase.ErrInvalidSlot),
		errors.Is(err, usecase.ErrSlotPast),
		errors.Is(err, usecase.ErrInvalidDateFormat),
		errors.Is(err, usecase.ErrDuplicateLineItem),
		errors.Is(err, usecase.ErrNotDuplicates),
		errors.Is(err, usecase.ErrMergeTooFewPatients),
		errors.Is(err, service.ErrInvalidQuantity):
		response.BadRequest(w, err.Error())

	case errors.Is(err, usecase.ErrInvalidCredentials),
		errors.Is(err, usecase.ErrInvalidToken),
		errors.Is(err, usecase.ErrTokenRevoked):
		response.Unauthorized(w, err.Error())
	case errors.Is(err, usecase.ErrAccountDisabled):
		response.Forbidden(w, err.Error())

	case errors.Is(err, service.ErrAllocationExhausted):
		response.ServiceUnavailable(w, err.Error())
	default:
		response.InternalServerError(w, fallback)
	}
}

func pathUUID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// pageParams reads ?page= and ?limit=. Bad values fall back to defaults.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
