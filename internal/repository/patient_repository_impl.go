package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type patientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) domainRepo.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *entity.Patient) error {
	return translateError(conn(ctx, r.db).Create(patient).Error)
}

func (r *patientRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Patient, error) {
	var patient entity.Patient
	err := conn(ctx, r.db).Where("id = ?", id).First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Patient, error) {
	var patient entity.Patient
	err := conn(ctx, r.db).Where("account_id = ? AND is_active = ?", accountID, true).First(&patient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) FindAll(ctx context.Context, filter entity.PatientFilter, limit, offset int) ([]entity.Patient, int64, error) {
	var patients []entity.Patient
	var total int64

	query := conn(ctx, r.db).Model(&entity.Patient{}).Where("is_active = ?", true)
	if filter.Search != "" {
		like := "%" + escapeLike(filter.Search) + "%"
		query = query.Where("name ILIKE ? OR mobile ILIKE ? OR patient_code ILIKE ?", like, like, like)
	}
	if filter.PractitionerID != nil {
		if filter.IncludeUnowned {
			query = query.Where("assigned_practitioner_id = ? OR assigned_practitioner_id IS NULL", *filter.PractitionerID)
		} else {
			query = query.Where("assigned_practitioner_id = ?", *filter.PractitionerID)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&patients).Error; err != nil {
		return nil, 0, err
	}

	return patients, total, nil
}

func (r *patientRepository) FindAllActive(ctx context.Context) ([]entity.Patient, error) {
	var patients []entity.Patient
	err := conn(ctx, r.db).Where("is_active = ?", true).Order("created_at ASC").Find(&patients).Error
	if err != nil {
		return nil, err
	}
	return patients, nil
}

// FindByIDsForUpdate takes the locks in id order so two merges over
// overlapping groups cannot deadlock.
func (r *patientRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]entity.Patient, error) {
	var patients []entity.Patient
	if len(ids) == 0 {
		return patients, nil
	}
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&patients).Error
	if err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *entity.Patient) error {
	return translateError(conn(ctx, r.db).
		Omit("patient_code", "assigned_practitioner_id", "visit_history", "last_visit", "next_appointment", "created_at").
		Save(patient).Error)
}

func (r *patientRepository) SaveMerged(ctx context.Context, patient *entity.Patient) error {
	return translateError(conn(ctx, r.db).Save(patient).Error)
}

func (r *patientRepository) Deactivate(ctx context.Context, id uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Patient{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

// AssignPractitionerIfUnset atomically claims an unassigned patient.
func (r *patientRepository) AssignPractitionerIfUnset(ctx context.Context, id, practitionerID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Patient{}).
		Where("id = ? AND assigned_practitioner_id IS NULL", id).
		Update("assigned_practitioner_id", practitionerID)
	return result.RowsAffected, result.Error
}

func (r *patientRepository) ClearPractitioner(ctx context.Context, id, practitionerID uuid.UUID) error {
	return conn(ctx, r.db).Model(&entity.Patient{}).
		Where("id = ? AND assigned_practitioner_id = ?", id, practitionerID).
		Update("assigned_practitioner_id", nil).Error
}

// AppendVisit concatenates onto the jsonb array in a single statement so
// concurrent appends for the same patient never lose each other.
func (r *patientRepository) AppendVisit(ctx context.Context, id uuid.UUID, visit entity.Visit, nextAppointment *time.Time) (int64, error) {
	payload, err := json.Marshal([]entity.Visit{visit})
	if err != nil {
		return 0, err
	}

	updates := map[string]interface{}{
		"visit_history": gorm.Expr("COALESCE(visit_history, '[]'::jsonb) || ?::jsonb", string(payload)),
		"last_visit":    visit.Timestamp,
		"updated_at":    time.Now(),
	}
	if nextAppointment != nil {
		updates["next_appointment"] = *nextAppointment
	}

	result := conn(ctx, r.db).Model(&entity.Patient{}).
		Where("id = ? AND is_active = ?", id, true).
		UpdateColumns(updates)
	return result.RowsAffected, result.Error
}

func (r *patientRepository) RemoveVisit(ctx context.Context, id uuid.UUID, prescriptionID uuid.UUID) error {
	return conn(ctx, r.db).Model(&entity.Patient{}).
		Where("id = ?", id).
		UpdateColumn("visit_history", gorm.Expr(
			"COALESCE((SELECT jsonb_agg(v) FROM jsonb_array_elements(visit_history) AS v WHERE v->>'prescription_id' <> ?), '[]'::jsonb)",
			prescriptionID.String(),
		)).Error
}

func (r *patientRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db).Where("id IN ?", ids).Delete(&entity.Patient{}).Error
}
