package entity

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusApproved  AppointmentStatus = "approved"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// SlotHoldingStatuses are the statuses that occupy a slot. At most one
// appointment per (practitioner, date, slot) may be in one of them.
var SlotHoldingStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusApproved,
}

// Appointment represents a booked slot with a practitioner
type Appointment struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PatientID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"patient_id"`
	PractitionerID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"practitioner_id"`
	AppointmentDate time.Time         `gorm:"type:date;not null;index" json:"appointment_date"`
	SlotLabel       string            `gorm:"type:varchar(16);not null" json:"slot_label"`
	Reason          string            `gorm:"type:text" json:"reason,omitempty"`
	Status          AppointmentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	StatusNote      string            `gorm:"type:text" json:"status_note,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Patient *Patient `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// HoldsSlot checks if the appointment currently occupies its slot
func (a *Appointment) HoldsSlot() bool {
	return a.Status == AppointmentStatusPending || a.Status == AppointmentStatusApproved
}

// IsTerminal checks if no further transition is possible
func (a *Appointment) IsTerminal() bool {
	return a.Status == AppointmentStatusCompleted || a.Status == AppointmentStatusCancelled
}

// appointmentTransitions lists, per target status, the statuses it may be
// entered from. approved and rejected may be toggled by the practitioner.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusApproved:  {AppointmentStatusPending, AppointmentStatusRejected},
	AppointmentStatusRejected:  {AppointmentStatusPending, AppointmentStatusApproved},
	AppointmentStatusCompleted: {AppointmentStatusApproved},
	AppointmentStatusCancelled: {AppointmentStatusPending, AppointmentStatusApproved},
}

// AllowedFrom returns the statuses from which target can be reached.
func AllowedFrom(target AppointmentStatus) []AppointmentStatus {
	return appointmentTransitions[target]
}

// CanTransition checks if the appointment may move to target
func (a *Appointment) CanTransition(target AppointmentStatus) bool {
	for _, from := range appointmentTransitions[target] {
		if a.Status == from {
			return true
		}
	}
	return false
}

// SlotLabels is the fixed list of bookable half-hour slots.
var SlotLabels = []string{
	"09:00 AM", "09:30 AM", "10:00 AM", "10:30 AM",
	"11:00 AM", "11:30 AM", "12:00 PM", "12:30 PM",
	"02:00 PM", "02:30 PM", "03:00 PM", "03:30 PM",
	"04:00 PM", "04:30 PM", "05:00 PM", "05:30 PM",
}

// IsValidSlot checks the label against SlotLabels
func IsValidSlot(label string) bool {
	return SlotIndex(label) >= 0
}

// SlotIndex is the label's position in the clinic day, -1 when unknown.
func SlotIndex(label string) int {
	for i, s := range SlotLabels {
		if s == label {
			return i
		}
	}
	return -1
}
