package usecase

import (
	"context"
	"errors"
	"strings"

	"healconnect/internal/converter"
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
	"healconnect/internal/domain/repository"
	"healconnect/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrPatientNotFound       = errors.New("patient not found")
	ErrPatientAlreadyClaimed = errors.New("patient is already assigned to a practitioner")
)

type PatientUsecase interface {
	Create(ctx context.Context, req *dto.CreatePatientRequest) (*dto.PatientResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.PatientResponse, error)
	GetMine(ctx context.Context) (*dto.PatientResponse, error)
	List(ctx context.Context, req *dto.PatientListRequest) (*dto.PatientListResponse, int, int, error)
	Update(ctx context.Context, id uuid.UUID, req *dto.UpdatePatientRequest) (*dto.PatientResponse, error)
	Claim(ctx context.Context, id uuid.UUID) (*dto.PatientResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type patientUsecase struct {
	log          *logrus.Logger
	patientRepo  repository.PatientRepository
	allocator    *service.SequenceAllocator
	auditService service.AuditService
}

func NewPatientUsecase(
	log *logrus.Logger,
	patientRepo repository.PatientRepository,
	allocator *service.SequenceAllocator,
	auditService service.AuditService,
) PatientUsecase {
	return &patientUsecase{
		log:          log,
		patientRepo:  patientRepo,
		allocator:    allocator,
		auditService: auditService,
	}
}

// Create registers a walk-in patient owned by the calling practitioner, or a
// camp patient left unassigned for whoever treats them first.
func (u *patientUsecase) Create(ctx context.Context, req *dto.CreatePatientRequest) (*dto.PatientResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	source := entity.PatientSource(req.Source)
	if source == "" {
		source = entity.PatientSourceWalkIn
	}

	code, err := u.allocator.AllocatePatientCode(ctx)
	if err != nil {
		return nil, err
	}

	patient := &entity.Patient{
		PatientCode:    code,
		Name:           strings.TrimSpace(req.Name),
		Mobile:         strings.TrimSpace(req.Mobile),
		Email:          req.Email,
		Age:            req.Age,
		Gender:         req.Gender,
		Address:        req.Address,
		MedicalHistory: req.MedicalHistory,
		Source:         source,
		VisitHistory:   entity.VisitHistory{},
		IsActive:       true,
	}

	switch source {
	case entity.PatientSourceCamp:
		patient.CampName = req.CampName
	default:
		if caller.RoleID == entity.RoleIDDoctor {
			owner := caller.UserID
			patient.AssignedPractitionerID = &owner
		}
	}

	if err := u.patientRepo.Create(ctx, patient); err != nil {
		u.log.Warnf("Failed to create patient: %+v", err)
		if releaseErr := u.allocator.Release(ctx, code); releaseErr != nil {
			u.log.Errorf("CRITICAL: Failed to release patient code %s: %+v", code, releaseErr)
		}
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, &caller.UserID, entity.AuditActionPatientCreate, "patient", patient.ID.String(), patient); err != nil {
		u.log.Warnf("Failed to audit patient %s: %+v", patient.ID, err)
	}

	u.log.Infof("Patient created: code=%s, source=%s", patient.PatientCode, patient.Source)
	return converter.PatientToResponse(patient), nil
}

func (u *patientUsecase) GetByID(ctx context.Context, id uuid.UUID) (*dto.PatientResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	patient, err := u.findVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return converter.PatientToResponse(patient), nil
}

// GetMine returns the patient record linked to the caller's account.
func (u *patientUsecase) GetMine(ctx context.Context) (*dto.PatientResponse, error) {
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
	return converter.PatientToResponse(patient), nil
}

// List shows a practitioner their own patients plus the unclaimed ones.
// Admins see everyone.
func (u *patientUsecase) List(ctx context.Context, req *dto.PatientListRequest) (*dto.PatientListResponse, int, int, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, 0, 0, err
	}

	page, limit := normalizePage(req.Page, req.Limit)
	filter := entity.PatientFilter{Search: strings.TrimSpace(req.Search)}
	if caller.RoleID != entity.RoleIDAdmin {
		practitionerID := caller.UserID
		filter.PractitionerID = &practitionerID
		filter.IncludeUnowned = true
	}

	patients, total, err := u.patientRepo.FindAll(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		u.log.Warnf("Failed to list patients: %+v", err)
		return nil, 0, 0, err
	}

	return &dto.PatientListResponse{
		Patients: converter.PatientsToResponses(patients),
		Total:    total,
	}, page, limit, nil
}

// Update edits demographics. Code, owner and visits are never touched here.
func (u *patientUsecase) Update(ctx context.Context, id uuid.UUID, req *dto.UpdatePatientRequest) (*dto.PatientResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	patient, err := u.findVisible(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if caller.RoleID == entity.RoleIDDoctor && !patient.IsAssignedTo(caller.UserID) {
		return nil, ErrUnauthorizedOwner
	}

	before := *patient
	patient.Name = strings.TrimSpace(req.Name)
	patient.Mobile = strings.TrimSpace(req.Mobile)
	patient.Email = req.Email
	patient.Age = req.Age
	patient.Gender = req.Gender
	patient.Address = req.Address
	patient.MedicalHistory = req.MedicalHistory

	if err := u.patientRepo.Update(ctx, patient); err != nil {
		u.log.Warnf("Failed to update patient %s: %+v", id, err)
		return nil, err
	}

	if err := u.auditService.LogUpdate(ctx, &caller.UserID, entity.AuditActionPatientUpdate, "patient", id.String(), before, patient); err != nil {
		u.log.Warnf("Failed to audit patient %s: %+v", id, err)
	}

	return converter.PatientToResponse(patient), nil
}

// Claim assigns an unowned patient to the calling practitioner.
func (u *patientUsecase) Claim(ctx context.Context, id uuid.UUID) (*dto.PatientResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	patient, err := u.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if patient.IsAssignedTo(caller.UserID) {
		return converter.PatientToResponse(patient), nil
	}

	rows, err := u.patientRepo.AssignPractitionerIfUnset(ctx, id, caller.UserID)
	if err != nil {
		u.log.Warnf("Failed to claim patient %s: %+v", id, err)
		return nil, err
	}
	if rows == 0 {
		return nil, ErrPatientAlreadyClaimed
	}

	if err := u.auditService.LogUpdate(ctx, &caller.UserID, entity.AuditActionPatientClaim, "patient", id.String(),
		map[string]interface{}{"assigned_practitioner_id": nil},
		map[string]interface{}{"assigned_practitioner_id": caller.UserID},
	); err != nil {
		u.log.Warnf("Failed to audit patient %s: %+v", id, err)
	}

	owner := caller.UserID
	patient.AssignedPractitionerID = &owner
	u.log.Infof("Patient claimed: code=%s, practitioner=%s", patient.PatientCode, caller.UserID)
	return converter.PatientToResponse(patient), nil
}

// Deactivate soft-deletes the patient. History stays readable to admins.
func (u *patientUsecase) Deactivate(ctx context.Context, id uuid.UUID) error {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return err
	}

	patient, err := u.findActive(ctx, id)
	if err != nil {
		return err
	}
	if caller.RoleID != entity.RoleIDAdmin && !patient.IsAssignedTo(caller.UserID) {
		return ErrUnauthorizedOwner
	}

	rows, err := u.patientRepo.Deactivate(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to deactivate patient %s: %+v", id, err)
		return err
	}
	if rows == 0 {
		return ErrPatientNotFound
	}

	if err := u.auditService.LogDelete(ctx, &caller.UserID, entity.AuditActionPatientDeactivate, "patient", id.String(), patient); err != nil {
		u.log.Warnf("Failed to audit patient %s: %+v", id, err)
	}

	u.log.Infof("Patient deactivated: code=%s", patient.PatientCode)
	return nil
}

func (u *patientUsecase) findActive(ctx context.Context, id uuid.UUID) (*entity.Patient, error) {
	patient, err := u.patientRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to find patient %s: %+v", id, err)
		return nil, err
	}
	if patient == nil || !patient.IsActive {
		return nil, ErrPatientNotFound
	}
	return patient, nil
}

// findVisible applies read access: admins see all, practitioners see their
// own and unclaimed patients, patients see only themselves.
func (u *patientUsecase) findVisible(ctx context.Context, caller principal, id uuid.UUID) (*entity.Patient, error) {
	patient, err := u.findActive(ctx, id)
	if err != nil {
		return nil, err
	}

	switch caller.RoleID {
	case entity.RoleIDAdmin:
		return patient, nil
	case entity.RoleIDDoctor:
		if patient.IsUnassigned() || patient.IsAssignedTo(caller.UserID) {
			return patient, nil
		}
	default:
		if patient.AccountID != nil && *patient.AccountID == caller.UserID {
			return patient, nil
		}
	}
	return nil, ErrUnauthorizedOwner
}
