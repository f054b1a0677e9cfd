package usecase

import (
	"context"
	"errors"
	"time"

	"healconnect/internal/converter"
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
	"healconnect/internal/domain/repository"
	"healconnect/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSlotTaken            = errors.New("slot is already booked")
	ErrInvalidSlot          = errors.New("invalid slot label")
	ErrSlotPast             = errors.New("cannot book a date in the past")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrInvalidTransition    = errors.New("appointment status transition not allowed")
	ErrPractitionerNotFound = errors.New("practitioner not found")
)

type AppointmentUsecase interface {
	Book(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error)
	Cancel(ctx context.Context, id uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.AppointmentResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error)
	ListForPractitioner(ctx context.Context, date string) (*dto.AppointmentListResponse, error)
	ListMine(ctx context.Context) (*dto.AppointmentListResponse, error)
	Availability(ctx context.Context, practitionerID uuid.UUID, date string) (*dto.AvailabilityResponse, error)
}

type appointmentUsecase struct {
	log             *logrus.Logger
	appointmentRepo repository.AppointmentRepository
	patientRepo     repository.PatientRepository
	userRepo        repository.UserRepository
	auditService    service.AuditService
	notifications   *service.NotificationService
	now             func() time.Time
}

func NewAppointmentUsecase(
	log *logrus.Logger,
	appointmentRepo repository.AppointmentRepository,
	patientRepo repository.PatientRepository,
	userRepo repository.UserRepository,
	auditService service.AuditService,
	notifications *service.NotificationService,
) AppointmentUsecase {
	return &appointmentUsecase{
		log:             log,
		appointmentRepo: appointmentRepo,
		patientRepo:     patientRepo,
		userRepo:        userRepo,
		auditService:    auditService,
		notifications:   notifications,
		now:             time.Now,
	}
}

// Book reserves a slot for a patient.
//
// Flow:
// 1. Validate slot label and date (no past dates)
// 2. Resolve the patient (own record for patients, req.PatientID otherwise)
// 3. Re-query the slot for a pending/approved appointment
// 4. Insert as pending; the partial unique index rejects a concurrent winner
func (u *appointmentUsecase) Book(ctx context.Context, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	// Step 1: Validate slot and date
	if !entity.IsValidSlot(req.SlotLabel) {
		return nil, ErrInvalidSlot
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if date.Before(startOfDay(u.now())) {
		return nil, ErrSlotPast
	}

	practitioner, err := u.userRepo.FindByID(ctx, req.PractitionerID)
	if err != nil {
		u.log.Warnf("Failed to find practitioner %s: %+v", req.PractitionerID, err)
		return nil, err
	}
	if practitioner == nil || !practitioner.IsDoctor() {
		return nil, ErrPractitionerNotFound
	}

	// Step 2: Resolve patient
	patient, err := u.resolvePatient(ctx, caller, req.PatientID)
	if err != nil {
		return nil, err
	}

	// Step 3: Check the slot is free
	existing, err := u.appointmentRepo.FindActiveBySlot(ctx, req.PractitionerID, date, req.SlotLabel)
	if err != nil {
		u.log.Warnf("Failed to check slot %s on %s: %+v", req.SlotLabel, req.Date, err)
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlotTaken
	}

	// Step 4: Insert
	appointment := &entity.Appointment{
		PatientID:       patient.ID,
		PractitionerID:  req.PractitionerID,
		AppointmentDate: date,
		SlotLabel:       req.SlotLabel,
		Reason:          req.Reason,
		Status:          entity.AppointmentStatusPending,
	}
	if err := u.appointmentRepo.Create(ctx, appointment); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrSlotTaken
		}
		u.log.Warnf("Failed to create appointment: %+v", err)
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, &caller.UserID, entity.AuditActionAppointmentCreate, "appointment", appointment.ID.String(), appointment); err != nil {
		u.log.Warnf("Failed to audit appointment %s: %+v", appointment.ID, err)
	}

	u.notifications.Dispatch(patient.Email, service.NotifyAppointmentBooked, map[string]interface{}{
		"appointment_id": appointment.ID.String(),
		"date":           req.Date,
		"slot":           req.SlotLabel,
		"practitioner":   practitioner.FullName,
	})

	u.log.Infof("Appointment booked: id=%s, practitioner=%s, date=%s, slot=%s", appointment.ID, req.PractitionerID, req.Date, req.SlotLabel)
	appointment.Patient = patient
	return converter.AppointmentToResponse(appointment), nil
}

// UpdateStatus applies a practitioner transition: approve, reject, complete,
// or the approved/rejected reversal.
func (u *appointmentUsecase) UpdateStatus(ctx context.Context, id uuid.UUID, req *dto.UpdateAppointmentStatusRequest) (*dto.AppointmentResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.PractitionerID != caller.UserID {
		return nil, ErrUnauthorizedOwner
	}

	target := entity.AppointmentStatus(req.Status)
	if target == entity.AppointmentStatusCancelled || target == entity.AppointmentStatusPending {
		return nil, ErrInvalidTransition
	}

	return u.transition(ctx, caller, appointment, target, req.Note)
}

// Cancel is the patient's own cancellation, it keeps the record with the reason.
func (u *appointmentUsecase) Cancel(ctx context.Context, id uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.AppointmentResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	patient, err := u.patientRepo.FindByAccountID(ctx, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to find patient for account %s: %+v", caller.UserID, err)
		return nil, err
	}
	if patient == nil || appointment.PatientID != patient.ID {
		return nil, ErrUnauthorizedOwner
	}

	return u.transition(ctx, caller, appointment, entity.AppointmentStatusCancelled, req.Reason)
}

func (u *appointmentUsecase) transition(ctx context.Context, caller principal, appointment *entity.Appointment, target entity.AppointmentStatus, note string) (*dto.AppointmentResponse, error) {
	if !appointment.CanTransition(target) {
		return nil, ErrInvalidTransition
	}

	rows, err := u.appointmentRepo.UpdateStatus(ctx, appointment.ID, entity.AllowedFrom(target), target, note)
	if err != nil {
		// A reversal back to approved collides with a newer booking of the slot
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrSlotTaken
		}
		u.log.Warnf("Failed to update appointment %s to %s: %+v", appointment.ID, target, err)
		return nil, err
	}
	if rows == 0 {
		// Status changed underneath us
		return nil, ErrInvalidTransition
	}

	previous := appointment.Status
	updated, err := u.findAppointment(ctx, appointment.ID)
	if err != nil {
		return nil, err
	}

	if err := u.auditService.LogUpdate(ctx, &caller.UserID, entity.AuditActionAppointmentStatus, "appointment", appointment.ID.String(),
		map[string]interface{}{"status": previous},
		map[string]interface{}{"status": target, "note": note},
	); err != nil {
		u.log.Warnf("Failed to audit appointment %s: %+v", appointment.ID, err)
	}

	u.notifyPatient(ctx, updated)

	u.log.Infof("Appointment status changed: id=%s, %s -> %s", appointment.ID, previous, target)
	return converter.AppointmentToResponse(updated), nil
}

// Delete removes the appointment outright, whatever its status.
func (u *appointmentUsecase) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return err
	}

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return err
	}
	if caller.RoleID != entity.RoleIDAdmin && appointment.PractitionerID != caller.UserID {
		return ErrUnauthorizedOwner
	}

	if err := u.appointmentRepo.Delete(ctx, id); err != nil {
		u.log.Warnf("Failed to delete appointment %s: %+v", id, err)
		return err
	}

	if err := u.auditService.LogDelete(ctx, &caller.UserID, entity.AuditActionAppointmentDelete, "appointment", id.String(), appointment); err != nil {
		u.log.Warnf("Failed to audit appointment %s: %+v", id, err)
	}

	u.log.Infof("Appointment deleted: id=%s", id)
	return nil
}

func (u *appointmentUsecase) GetByID(ctx context.Context, id uuid.UUID) (*dto.AppointmentResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	appointment, err := u.findAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	switch caller.RoleID {
	case entity.RoleIDAdmin:
	case entity.RoleIDDoctor:
		if appointment.PractitionerID != caller.UserID {
			return nil, ErrUnauthorizedOwner
		}
	default:
		patient, err := u.patientRepo.FindByAccountID(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if patient == nil || patient.ID != appointment.PatientID {
			return nil, ErrUnauthorizedOwner
		}
	}

	return converter.AppointmentToResponse(appointment), nil
}

func (u *appointmentUsecase) ListForPractitioner(ctx context.Context, date string) (*dto.AppointmentListResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	day, err := parseOptionalDate(date)
	if err != nil {
		return nil, err
	}

	appointments, err := u.appointmentRepo.FindByPractitioner(ctx, caller.UserID, day)
	if err != nil {
		u.log.Warnf("Failed to list appointments for practitioner %s: %+v", caller.UserID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// ListMine returns the calling patient's appointments.
func (u *appointmentUsecase) ListMine(ctx context.Context) (*dto.AppointmentListResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	patient, err := u.patientRepo.FindByAccountID(ctx, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to find patient for account %s: %+v", caller.UserID, err)
		return nil, err
	}
	if patient == nil {
		return nil, ErrPatientNotFound
	}

	appointments, err := u.appointmentRepo.FindByPatientID(ctx, patient.ID)
	if err != nil {
		u.log.Warnf("Failed to list appointments for patient %s: %+v", patient.ID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appointments),
		Total:        len(appointments),
	}, nil
}

// Availability lists every slot of the day and whether it can still be booked.
func (u *appointmentUsecase) Availability(ctx context.Context, practitionerID uuid.UUID, date string) (*dto.AvailabilityResponse, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}

	appointments, err := u.appointmentRepo.FindByPractitioner(ctx, practitionerID, &day)
	if err != nil {
		u.log.Warnf("Failed to load appointments for availability: %+v", err)
		return nil, err
	}

	taken := make(map[string]bool, len(appointments))
	for _, a := range appointments {
		if a.HoldsSlot() {
			taken[a.SlotLabel] = true
		}
	}

	past := day.Before(startOfDay(u.now()))
	slots := make([]dto.SlotAvailability, 0, len(entity.SlotLabels))
	for _, label := range entity.SlotLabels {
		slots = append(slots, dto.SlotAvailability{
			SlotLabel: label,
			Available: !past && !taken[label],
		})
	}

	return &dto.AvailabilityResponse{
		PractitionerID: practitionerID,
		Date:           date,
		Slots:          slots,
	}, nil
}

func (u *appointmentUsecase) findAppointment(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	appointment, err := u.appointmentRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", id, err)
		return nil, err
	}
	if appointment == nil {
		return nil, ErrAppointmentNotFound
	}
	return appointment, nil
}

// resolvePatient returns the caller's own record for patients. Staff book on
// behalf of the patient named in the request.
func (u *appointmentUsecase) resolvePatient(ctx context.Context, caller principal, requested uuid.UUID) (*entity.Patient, error) {
	var patient *entity.Patient
	var err error

	if caller.RoleID == entity.RoleIDPatient {
		patient, err = u.patientRepo.FindByAccountID(ctx, caller.UserID)
	} else {
		patient, err = u.patientRepo.FindByID(ctx, requested)
	}
	if err != nil {
		u.log.Warnf("Failed to resolve patient: %+v", err)
		return nil, err
	}
	if patient == nil || !patient.IsActive {
		return nil, ErrPatientNotFound
	}
	return patient, nil
}

func (u *appointmentUsecase) notifyPatient(ctx context.Context, appointment *entity.Appointment) {
	patient, err := u.patientRepo.FindByID(ctx, appointment.PatientID)
	if err != nil || patient == nil {
		u.log.Warnf("Failed to load patient %s for notification: %+v", appointment.PatientID, err)
		return
	}

	u.notifications.Dispatch(patient.Email, service.NotifyAppointmentStatus, map[string]interface{}{
		"appointment_id": appointment.ID.String(),
		"date":           appointment.AppointmentDate.Format(time.DateOnly),
		"slot":           appointment.SlotLabel,
		"status":         string(appointment.Status),
		"note":           appointment.StatusNote,
	})
}
