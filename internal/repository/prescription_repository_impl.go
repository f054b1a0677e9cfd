package repository

import (
	"context"
	"errors"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type prescriptionRepository struct {
	db *gorm.DB
}

func NewPrescriptionRepository(db *gorm.DB) domainRepo.PrescriptionRepository {
	return &prescriptionRepository{db: db}
}

func (r *prescriptionRepository) Create(ctx context.Context, prescription *entity.Prescription) error {
	return translateError(conn(ctx, r.db).Create(prescription).Error)
}

func (r *prescriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error) {
	var prescription entity.Prescription
	err := conn(ctx, r.db).Where("id = ?", id).First(&prescription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prescription, nil
}

func (r *prescriptionRepository) FindByIdempotencyKey(ctx context.Context, practitionerID uuid.UUID, key string) (*entity.Prescription, error) {
	var prescription entity.Prescription
	err := conn(ctx, r.db).
		Where("practitioner_id = ? AND idempotency_key = ?", practitionerID, key).
		First(&prescription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prescription, nil
}

func (r *prescriptionRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Prescription, error) {
	var prescriptions []entity.Prescription
	err := conn(ctx, r.db).
		Where("patient_id = ? AND is_active = ?", patientID, true).
		Order("created_at DESC").
		Find(&prescriptions).Error
	if err != nil {
		return nil, err
	}
	return prescriptions, nil
}

func (r *prescriptionRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Where("id = ?", id).Delete(&entity.Prescription{}).Error
}

// Deactivate soft-deletes only while the prescription is still active, so a
// concurrent completion and deletion cannot both win.
func (r *prescriptionRepository) Deactivate(ctx context.Context, id uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Prescription{}).
		Where("id = ? AND is_active = ? AND status = ?", id, true, entity.PrescriptionStatusActive).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}

func (r *prescriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.PrescriptionStatus) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Prescription{}).
		Where("id = ? AND is_active = ? AND status = ?", id, true, from).
		Update("status", to)
	return result.RowsAffected, result.Error
}

func (r *prescriptionRepository) ReassignPatient(ctx context.Context, fromPatientIDs []uuid.UUID, toPatientID uuid.UUID) error {
	if len(fromPatientIDs) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&entity.Prescription{}).
		Where("patient_id IN ?", fromPatientIDs).
		Update("patient_id", toPatientID).Error
}
