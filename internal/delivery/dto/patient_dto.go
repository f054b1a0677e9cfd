package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreatePatientRequest struct {
	Name           string `json:"name" validate:"required,min=2"`
	Mobile         string `json:"mobile" validate:"required,min=7,max=20"`
	Email          string `json:"email" validate:"omitempty,email"`
	Age            int    `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender         string `json:"gender" validate:"omitempty,oneof=M F O"`
	Address        string `json:"address" validate:"omitempty"`
	MedicalHistory string `json:"medical_history" validate:"omitempty"`
	Source         string `json:"source" validate:"omitempty,oneof=walk_in camp"`
	CampName       string `json:"camp_name" validate:"required_if=Source camp"`
}

type UpdatePatientRequest struct {
	Name           string `json:"name" validate:"required,min=2"`
	Mobile         string `json:"mobile" validate:"required,min=7,max=20"`
	Email          string `json:"email" validate:"omitempty,email"`
	Age            int    `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender         string `json:"gender" validate:"omitempty,oneof=M F O"`
	Address        string `json:"address" validate:"omitempty"`
	MedicalHistory string `json:"medical_history" validate:"omitempty"`
}

// MergePatientsRequest names records an admin has confirmed are one person.
type MergePatientsRequest struct {
	PatientIDs []uuid.UUID `json:"patient_ids" validate:"required,min=2,dive,required"`
}

type PatientListRequest struct {
	Search string
	Page   int
	Limit  int
}

// Response DTOs

type MedicineGivenResponse struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Name            string    `json:"name"`
	Dosage          string    `json:"dosage"`
	Quantity        int       `json:"quantity"`
}

type VisitResponse struct {
	Timestamp      time.Time               `json:"timestamp"`
	PractitionerID uuid.UUID               `json:"practitioner_id"`
	Symptoms       string                  `json:"symptoms,omitempty"`
	Diagnosis      string                  `json:"diagnosis,omitempty"`
	PrescriptionID uuid.UUID               `json:"prescription_id"`
	MedicinesGiven []MedicineGivenResponse `json:"medicines_given"`
	FollowUpDate   *time.Time              `json:"follow_up_date,omitempty"`
}

type PatientResponse struct {
	ID                     uuid.UUID       `json:"id"`
	PatientCode            string          `json:"patient_code"`
	AccountID              *uuid.UUID      `json:"account_id,omitempty"`
	Name                   string          `json:"name"`
	Mobile                 string          `json:"mobile"`
	Email                  string          `json:"email,omitempty"`
	Age                    int             `json:"age,omitempty"`
	Gender                 string          `json:"gender,omitempty"`
	Address                string          `json:"address,omitempty"`
	MedicalHistory         string          `json:"medical_history,omitempty"`
	Source                 string          `json:"source"`
	CampName               string          `json:"camp_name,omitempty"`
	AssignedPractitionerID *uuid.UUID      `json:"assigned_practitioner_id,omitempty"`
	VisitHistory           []VisitResponse `json:"visit_history"`
	LastVisit              *time.Time      `json:"last_visit,omitempty"`
	NextAppointment        *time.Time      `json:"next_appointment,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

type PatientListResponse struct {
	Patients []PatientResponse `json:"patients"`
	Total    int64             `json:"total"`
}

type DuplicateGroupResponse struct {
	Key        string      `json:"key"`
	PatientIDs []uuid.UUID `json:"patient_ids"`
	SurvivorID uuid.UUID   `json:"survivor_id"`
}

type MergeResultResponse struct {
	SurvivorID uuid.UUID   `json:"survivor_id"`
	MergedIDs  []uuid.UUID `json:"merged_ids"`
}

type DeduplicationResponse struct {
	Groups  int                   `json:"groups"`
	Merged  int                   `json:"merged"`
	Results []MergeResultResponse `json:"results"`
}
