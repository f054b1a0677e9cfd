package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type LineItemRequest struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id" validate:"required"`
	Quantity        int       `json:"quantity" validate:"required,gte=1"`
	Dosage          string    `json:"dosage" validate:"omitempty,max=255"`
	Duration        string    `json:"duration" validate:"omitempty,max=100"`
}

type IssuePrescriptionRequest struct {
	PatientID    uuid.UUID         `json:"patient_id" validate:"required"`
	LineItems    []LineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	Symptoms     string            `json:"symptoms"`
	Diagnosis    string            `json:"diagnosis"`
	FollowUpDate string            `json:"follow_up_date" validate:"omitempty,date_only"`
	// IdempotencyKey makes retries of the same request return the first result.
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// Response DTOs

type LineItemResponse struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	ItemName        string    `json:"item_name"`
	QuantityGiven   int       `json:"quantity_given"`
	Dosage          string    `json:"dosage,omitempty"`
	Duration        string    `json:"duration,omitempty"`
}

type PrescriptionResponse struct {
	ID                 uuid.UUID          `json:"id"`
	PrescriptionNumber string             `json:"prescription_number"`
	PatientID          uuid.UUID          `json:"patient_id"`
	PractitionerID     uuid.UUID          `json:"practitioner_id"`
	LineItems          []LineItemResponse `json:"line_items"`
	Symptoms           string             `json:"symptoms,omitempty"`
	Diagnosis          string             `json:"diagnosis,omitempty"`
	FollowUpDate       *time.Time         `json:"follow_up_date,omitempty"`
	Status             string             `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type PrescriptionListResponse struct {
	Prescriptions []PrescriptionResponse `json:"prescriptions"`
	Total         int                    `json:"total"`
}
