package repository

import (
	"context"
	"time"

	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	// Create inserts a pending appointment. ErrDuplicateKey means another
	// appointment already holds the slot.
	Create(ctx context.Context, appointment *entity.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	FindActiveBySlot(ctx context.Context, practitionerID uuid.UUID, date time.Time, slotLabel string) (*entity.Appointment, error)
	FindByPractitioner(ctx context.Context, practitionerID uuid.UUID, date *time.Time) ([]entity.Appointment, error)
	FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateStatus moves the appointment to `to` only if it is currently in
	// one of `from`. Returns affected rows.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []entity.AppointmentStatus, to entity.AppointmentStatus, note string) (int64, error)

	ReassignPatient(ctx context.Context, fromPatientIDs []uuid.UUID, toPatientID uuid.UUID) error
}
