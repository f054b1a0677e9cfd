package entity

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PrescriptionStatus represents the status of a prescription
type PrescriptionStatus string

const (
	PrescriptionStatusActive       PrescriptionStatus = "active"
	PrescriptionStatusCompleted    PrescriptionStatus = "completed"
	PrescriptionStatusDiscontinued PrescriptionStatus = "discontinued"
)

// Prescription is issued once and only moves forward in status.
type Prescription struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PrescriptionNumber string             `gorm:"type:varchar(20);uniqueIndex;not null" json:"prescription_number"`
	PatientID          uuid.UUID          `gorm:"type:uuid;not null;index" json:"patient_id"`
	PractitionerID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"practitioner_id"`
	LineItems          LineItems          `gorm:"type:jsonb;not null" json:"line_items"`
	Symptoms           string             `gorm:"type:text" json:"symptoms,omitempty"`
	Diagnosis          string             `gorm:"type:text" json:"diagnosis,omitempty"`
	FollowUpDate       *time.Time         `gorm:"type:date" json:"follow_up_date,omitempty"`
	Status             PrescriptionStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	IsActive           bool               `gorm:"not null;default:true;index" json:"is_active"`
	IdempotencyKey     *string            `gorm:"type:varchar(100)" json:"-"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Prescription) TableName() string {
	return "prescriptions"
}

// IsDeletable checks if the prescription can still be deleted or transitioned
func (p *Prescription) IsDeletable() bool {
	return p.IsActive && p.Status == PrescriptionStatusActive
}

// LineItem is one dispensed medicine on a prescription.
type LineItem struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	ItemName        string    `json:"item_name"`
	QuantityGiven   int       `json:"quantity_given"`
	Dosage          string    `json:"dosage"`
	Duration        string    `json:"duration"`
}

// LineItems is stored as a jsonb array.
type LineItems []LineItem

func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *LineItems) Scan(value interface{}) error {
	return scanJSONB(value, l)
}

// Snapshot copies the lines into the visit representation.
func (l LineItems) Snapshot() []MedicineGiven {
	out := make([]MedicineGiven, 0, len(l))
	for _, item := range l {
		out = append(out, MedicineGiven{
			InventoryItemID: item.InventoryItemID,
			Name:            item.ItemName,
			Dosage:          item.Dosage,
			Quantity:        item.QuantityGiven,
		})
	}
	return out
}
