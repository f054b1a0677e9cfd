package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type BookAppointmentRequest struct {
	PractitionerID uuid.UUID `json:"practitioner_id" validate:"required"`
	// PatientID is taken from the caller's account when a patient books.
	PatientID uuid.UUID `json:"patient_id"`
	Date      string    `json:"date" validate:"required,date_only"`
	SlotLabel string    `json:"slot_label" validate:"required,slot_label"`
	Reason    string    `json:"reason" validate:"omitempty,max=500"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected completed"`
	Note   string `json:"note" validate:"omitempty,max=500"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// Response DTOs

type AppointmentResponse struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	PatientName     string    `json:"patient_name,omitempty"`
	PractitionerID  uuid.UUID `json:"practitioner_id"`
	AppointmentDate string    `json:"appointment_date"`
	SlotLabel       string    `json:"slot_label"`
	Reason          string    `json:"reason,omitempty"`
	Status          string    `json:"status"`
	StatusNote      string    `json:"status_note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

type SlotAvailability struct {
	SlotLabel string `json:"slot_label"`
	Available bool   `json:"available"`
}

type AvailabilityResponse struct {
	PractitionerID uuid.UUID          `json:"practitioner_id"`
	Date           string             `json:"date"`
	Slots          []SlotAvailability `json:"slots"`
}
