package repository

import (
	"context"
	"errors"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type appointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) domainRepo.AppointmentRepository {
	return &appointmentRepository{db: db}
}

// Create maps a violation of uq_appointments_active_slot to ErrDuplicateKey.
func (r *appointmentRepository) Create(ctx context.Context, appointment *entity.Appointment) error {
	return translateError(conn(ctx, r.db).Create(appointment).Error)
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := conn(ctx, r.db).Where("id = ?", id).First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindActiveBySlot(ctx context.Context, practitionerID uuid.UUID, date time.Time, slotLabel string) (*entity.Appointment, error) {
	var appointment entity.Appointment
	err := conn(ctx, r.db).
		Where("practitioner_id = ? AND appointment_date = ? AND slot_label = ? AND status IN ?",
			practitionerID, date.Format("2006-01-02"), slotLabel, entity.SlotHoldingStatuses).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appointment, nil
}

func (r *appointmentRepository) FindByPractitioner(ctx context.Context, practitionerID uuid.UUID, date *time.Time) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	query := conn(ctx, r.db).Preload("Patient").Where("practitioner_id = ?", practitionerID)
	if date != nil {
		query = query.Where("appointment_date = ?", date.Format("2006-01-02"))
	}
	// Labels sort by their place in the day, not as text
	err := query.
		Order("appointment_date ASC").
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "array_position(ARRAY[?]::text[], slot_label) ASC",
			Vars:               []interface{}{entity.SlotLabels},
			WithoutParentheses: true,
		}}).
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Appointment, error) {
	var appointments []entity.Appointment
	err := conn(ctx, r.db).
		Where("patient_id = ?", patientID).
		Order("appointment_date DESC").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return conn(ctx, r.db).Where("id = ?", id).Delete(&entity.Appointment{}).Error
}

// UpdateStatus is a compare-and-set on status. Re-entering a slot-holding
// status can collide with a newer booking, which surfaces as ErrDuplicateKey.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []entity.AppointmentStatus, to entity.AppointmentStatus, note string) (int64, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if note != "" {
		updates["status_note"] = note
	}
	result := conn(ctx, r.db).Model(&entity.Appointment{}).
		Where("id = ? AND status IN ?", id, from).
		UpdateColumns(updates)
	return result.RowsAffected, translateError(result.Error)
}

func (r *appointmentRepository) ReassignPatient(ctx context.Context, fromPatientIDs []uuid.UUID, toPatientID uuid.UUID) error {
	if len(fromPatientIDs) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&entity.Appointment{}).
		Where("patient_id IN ?", fromPatientIDs).
		Update("patient_id", toPatientID).Error
}
