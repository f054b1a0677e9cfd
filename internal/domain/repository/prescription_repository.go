package repository

import (
	"context"

	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, prescription *entity.Prescription) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error)
	FindByIdempotencyKey(ctx context.Context, practitionerID uuid.UUID, key string) (*entity.Prescription, error)
	FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Prescription, error)
	HardDelete(ctx context.Context, id uuid.UUID) error

	// Deactivate flips is_active off for an active prescription.
	// Returns affected rows: 1 = deactivated, 0 = already inactive or finished.
	Deactivate(ctx context.Context, id uuid.UUID) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.PrescriptionStatus) (int64, error)

	ReassignPatient(ctx context.Context, fromPatientIDs []uuid.UUID, toPatientID uuid.UUID) error
}
