package entity

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PatientSource records the entry path that created the record.
type PatientSource string

const (
	PatientSourceSelfRegistration PatientSource = "self_registration"
	PatientSourceWalkIn           PatientSource = "walk_in"
	PatientSourceCamp             PatientSource = "camp"
)

// Patient is the clinical identity of a person. PatientCode is allocated once
// and never changes; VisitHistory only grows, except when the prescription
// that produced a visit is deleted.
type Patient struct {
	ID                     uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PatientCode            string        `gorm:"type:varchar(16);uniqueIndex;not null" json:"patient_code"`
	AccountID              *uuid.UUID    `gorm:"type:uuid;uniqueIndex" json:"account_id,omitempty"`
	Name                   string        `gorm:"type:varchar(255);not null;index" json:"name"`
	Mobile                 string        `gorm:"type:varchar(20);not null;index" json:"mobile"`
	Email                  string        `gorm:"type:varchar(255)" json:"email,omitempty"`
	Age                    int           `gorm:"not null;default:0" json:"age,omitempty"`
	Gender                 string        `gorm:"type:varchar(10)" json:"gender,omitempty"`
	Address                string        `gorm:"type:text" json:"address,omitempty"`
	MedicalHistory         string        `gorm:"type:text" json:"medical_history,omitempty"`
	Source                 PatientSource `gorm:"type:varchar(32);not null;default:'walk_in'" json:"source"`
	CampName               string        `gorm:"type:varchar(255)" json:"camp_name,omitempty"`
	AssignedPractitionerID *uuid.UUID    `gorm:"type:uuid;index" json:"assigned_practitioner_id,omitempty"`
	VisitHistory           VisitHistory  `gorm:"type:jsonb;not null;default:'[]'" json:"visit_history"`
	LastVisit              *time.Time    `json:"last_visit,omitempty"`
	NextAppointment        *time.Time    `json:"next_appointment,omitempty"`
	IsActive               bool          `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt              time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Patient) TableName() string {
	return "patients"
}

// Gender constants
const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// IsAssignedTo reports whether practitionerID owns this patient.
func (p *Patient) IsAssignedTo(practitionerID uuid.UUID) bool {
	return p.AssignedPractitionerID != nil && *p.AssignedPractitionerID == practitionerID
}

// IsUnassigned reports whether any practitioner may still claim the patient.
func (p *Patient) IsUnassigned() bool {
	return p.AssignedPractitionerID == nil || *p.AssignedPractitionerID == uuid.Nil
}

// IdentityKey is the duplicate-grouping key: lower-cased trimmed name plus the
// exact mobile number.
func (p *Patient) IdentityKey() string {
	return strings.ToLower(strings.TrimSpace(p.Name)) + "|" + p.Mobile
}

// MedicineGiven is the snapshot of a dispensed line, copied at issuance time.
type MedicineGiven struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Name            string    `json:"name"`
	Dosage          string    `json:"dosage"`
	Quantity        int       `json:"quantity"`
}

// Visit is an immutable entry in a patient's visit history.
type Visit struct {
	Timestamp      time.Time       `json:"timestamp"`
	PractitionerID uuid.UUID       `json:"practitioner_id"`
	Symptoms       string          `json:"symptoms,omitempty"`
	Diagnosis      string          `json:"diagnosis,omitempty"`
	PrescriptionID uuid.UUID       `json:"prescription_id"`
	MedicinesGiven []MedicineGiven `json:"medicines_given"`
	FollowUpDate   *time.Time      `json:"follow_up_date,omitempty"`
}

// VisitHistory is stored as a jsonb array.
type VisitHistory []Visit

func (v VisitHistory) Value() (driver.Value, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(v)
}

func (v *VisitHistory) Scan(value interface{}) error {
	return scanJSONB(value, v)
}

// Without returns the history minus the visit produced by prescriptionID.
func (v VisitHistory) Without(prescriptionID uuid.UUID) VisitHistory {
	out := make(VisitHistory, 0, len(v))
	for _, visit := range v {
		if visit.PrescriptionID != prescriptionID {
			out = append(out, visit)
		}
	}
	return out
}

func (v VisitHistory) HasVisitBy(practitionerID uuid.UUID) bool {
	for _, visit := range v {
		if visit.PractitionerID == practitionerID {
			return true
		}
	}
	return false
}

// HasPrescription reports whether a visit was produced by prescriptionID.
func (v VisitHistory) HasPrescription(prescriptionID uuid.UUID) bool {
	for _, visit := range v {
		if visit.PrescriptionID == prescriptionID {
			return true
		}
	}
	return false
}
