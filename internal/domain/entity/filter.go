package entity

import "github.com/google/uuid"

// PatientFilter is a domain-level filter for listing patients.
// Used by repository layer to avoid coupling with delivery DTOs.
type PatientFilter struct {
	Search         string // name or mobile (ILIKE)
	PractitionerID *uuid.UUID
	IncludeUnowned bool
}

// AuditLogFilter narrows audit log listings.
type AuditLogFilter struct {
	Action   string
	EntityID string
}
