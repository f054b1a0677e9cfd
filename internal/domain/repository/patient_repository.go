package repository

import (
	"context"
	"time"

	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, patient *entity.Patient) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Patient, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Patient, error)
	FindAll(ctx context.Context, filter entity.PatientFilter, limit, offset int) ([]entity.Patient, int64, error)
	FindAllActive(ctx context.Context) ([]entity.Patient, error)
	// FindByIDsForUpdate row-locks the records until the surrounding
	// transaction ends. Missing ids are skipped.
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]entity.Patient, error)
	// Update writes demographic fields. Code, owner and visit columns are
	// left alone so concurrent visit appends are never lost.
	Update(ctx context.Context, patient *entity.Patient) error
	// SaveMerged writes every column. Only the duplicate merge uses it, on
	// rows it locked with FindByIDsForUpdate.
	SaveMerged(ctx context.Context, patient *entity.Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) (int64, error)

	// AssignPractitionerIfUnset sets the practitioner only when none is set.
	// Returns affected rows: 1 = assigned, 0 = already owned by someone.
	AssignPractitionerIfUnset(ctx context.Context, id, practitionerID uuid.UUID) (int64, error)
	// ClearPractitioner undoes an assignment made by practitionerID.
	ClearPractitioner(ctx context.Context, id, practitionerID uuid.UUID) error

	// AppendVisit atomically appends to visit_history and refreshes the
	// last_visit and next_appointment columns.
	AppendVisit(ctx context.Context, id uuid.UUID, visit entity.Visit, nextAppointment *time.Time) (int64, error)
	RemoveVisit(ctx context.Context, id uuid.UUID, prescriptionID uuid.UUID) error

	// DeleteByIDs hard-deletes records, used only by duplicate merging.
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) error
}
