package usecase

import (
	"context"
	"errors"
	"sync"
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
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrPrescriptionLocked   = errors.New("prescription is no longer active")
	ErrDuplicateLineItem    = errors.New("inventory item listed more than once")
)

type PrescriptionUsecase interface {
	Issue(ctx context.Context, req *dto.IssuePrescriptionRequest) (*dto.PrescriptionResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error)
	Discontinue(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) (*dto.PrescriptionListResponse, error)
}

type prescriptionUsecase struct {
	log              *logrus.Logger
	prescriptionRepo repository.PrescriptionRepository
	patientRepo      repository.PatientRepository
	inventoryRepo    repository.InventoryRepository
	ledger           *service.InventoryLedger
	allocator        *service.SequenceAllocator
	auditService     service.AuditService
	notifications    *service.NotificationService
	inflight         *issuanceTracker
	now              func() time.Time
}

type issuanceKey struct {
	patientID      uuid.UUID
	practitionerID uuid.UUID
}

// issuanceTracker counts issuances in progress per patient and practitioner
// within this process.
type issuanceTracker struct {
	mu     sync.Mutex
	counts map[issuanceKey]int
}

func newIssuanceTracker() *issuanceTracker {
	return &issuanceTracker{counts: make(map[issuanceKey]int)}
}

// enter registers an issuance and returns the func that ends it.
func (t *issuanceTracker) enter(patientID, practitionerID uuid.UUID) func() {
	key := issuanceKey{patientID: patientID, practitionerID: practitionerID}
	t.mu.Lock()
	t.counts[key]++
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if t.counts[key]--; t.counts[key] <= 0 {
				delete(t.counts, key)
			}
		})
	}
}

func (t *issuanceTracker) active(patientID, practitionerID uuid.UUID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[issuanceKey{patientID: patientID, practitionerID: practitionerID}]
}

func NewPrescriptionUsecase(
	log *logrus.Logger,
	prescriptionRepo repository.PrescriptionRepository,
	patientRepo repository.PatientRepository,
	inventoryRepo repository.InventoryRepository,
	ledger *service.InventoryLedger,
	allocator *service.SequenceAllocator,
	auditService service.AuditService,
	notifications *service.NotificationService,
) PrescriptionUsecase {
	return &prescriptionUsecase{
		log:              log,
		prescriptionRepo: prescriptionRepo,
		patientRepo:      patientRepo,
		inventoryRepo:    inventoryRepo,
		ledger:           ledger,
		allocator:        allocator,
		auditService:     auditService,
		notifications:    notifications,
		inflight:         newIssuanceTracker(),
		now:              time.Now,
	}
}

// Issue dispenses medicines and records the visit as one logical unit.
//
// Flow:
// 1. Replay a stored result for a known idempotency key
// 2. Claim the patient if nobody owns it yet
// 3. Deduct every line with a conditional update
// 4. Allocate the RX number, insert the prescription, append the visit
//
// Each successful step pushes its inverse. Any failure unwinds them newest
// first, so stock, ownership and the RX number are restored.
func (u *prescriptionUsecase) Issue(ctx context.Context, req *dto.IssuePrescriptionRequest) (*dto.PrescriptionResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	// Step 1: Idempotent replay
	if req.IdempotencyKey != "" {
		existing, err := u.prescriptionRepo.FindByIdempotencyKey(ctx, caller.UserID, req.IdempotencyKey)
		if err != nil {
			u.log.Warnf("Failed to look up idempotency key: %+v", err)
			return nil, err
		}
		if existing != nil {
			u.log.Infof("Replaying prescription %s for idempotency key", existing.PrescriptionNumber)
			return converter.PrescriptionToResponse(existing), nil
		}
	}

	followUp, err := parseOptionalDate(req.FollowUpDate)
	if err != nil {
		return nil, err
	}
	if err := checkDistinctItems(req.LineItems); err != nil {
		return nil, err
	}

	patient, err := u.patientRepo.FindByID(ctx, req.PatientID)
	if err != nil {
		u.log.Warnf("Failed to find patient %s: %+v", req.PatientID, err)
		return nil, err
	}
	if patient == nil || !patient.IsActive {
		return nil, ErrPatientNotFound
	}

	leave := u.inflight.enter(patient.ID, caller.UserID)
	defer leave()

	comp := service.NewCompensation(u.log)
	fail := func(err error) (*dto.PrescriptionResponse, error) {
		if unwindErr := comp.Unwind(); unwindErr != nil {
			u.log.Errorf("CRITICAL: Prescription rollback incomplete for patient %s: %+v", patient.ID, unwindErr)
		}
		return nil, err
	}

	// Step 2: Ownership
	if err := u.claimPatient(ctx, comp, patient, caller.UserID); err != nil {
		return fail(err)
	}

	// Step 3: Stock
	lines := make(entity.LineItems, 0, len(req.LineItems))
	for _, line := range req.LineItems {
		item, err := u.inventoryRepo.FindByID(ctx, line.InventoryItemID)
		if err != nil {
			u.log.Warnf("Failed to find inventory item %s: %+v", line.InventoryItemID, err)
			return fail(err)
		}
		if item == nil || !item.IsActive {
			return fail(service.ErrItemNotFound)
		}
		if item.OwnerID != caller.UserID {
			return fail(ErrUnauthorizedOwner)
		}

		if err := u.ledger.ReserveAndDeduct(ctx, item.ID, line.Quantity); err != nil {
			return fail(err)
		}
		itemID, qty := item.ID, line.Quantity
		comp.Push("credit "+item.Name, func(ctx context.Context) error {
			return u.ledger.Credit(ctx, itemID, qty)
		})

		lines = append(lines, entity.LineItem{
			InventoryItemID: item.ID,
			ItemName:        item.Name,
			QuantityGiven:   line.Quantity,
			Dosage:          line.Dosage,
			Duration:        line.Duration,
		})
	}

	// Step 4: Number, record, visit
	issuedAt := u.now()
	number, err := u.allocator.AllocatePrescriptionNumber(ctx, issuedAt)
	if err != nil {
		return fail(err)
	}
	comp.Push("release "+number, func(ctx context.Context) error {
		return u.allocator.Release(ctx, number)
	})

	prescription := &entity.Prescription{
		PrescriptionNumber: number,
		PatientID:          patient.ID,
		PractitionerID:     caller.UserID,
		LineItems:          lines,
		Symptoms:           req.Symptoms,
		Diagnosis:          req.Diagnosis,
		FollowUpDate:       followUp,
		Status:             entity.PrescriptionStatusActive,
		IsActive:           true,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		prescription.IdempotencyKey = &key
	}

	if err := u.prescriptionRepo.Create(ctx, prescription); err != nil {
		// A concurrent retry with the same key won the insert
		if errors.Is(err, repository.ErrDuplicateKey) && req.IdempotencyKey != "" {
			if unwindErr := comp.Unwind(); unwindErr != nil {
				u.log.Errorf("CRITICAL: Prescription rollback incomplete for patient %s: %+v", patient.ID, unwindErr)
			}
			winner, findErr := u.prescriptionRepo.FindByIdempotencyKey(ctx, caller.UserID, req.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				return converter.PrescriptionToResponse(winner), nil
			}
			return nil, err
		}
		u.log.Warnf("Failed to create prescription: %+v", err)
		return fail(err)
	}
	prescriptionID := prescription.ID
	comp.Push("delete prescription "+number, func(ctx context.Context) error {
		return u.prescriptionRepo.HardDelete(ctx, prescriptionID)
	})

	visit := entity.Visit{
		Timestamp:      issuedAt,
		PractitionerID: caller.UserID,
		Symptoms:       req.Symptoms,
		Diagnosis:      req.Diagnosis,
		PrescriptionID: prescription.ID,
		MedicinesGiven: lines.Snapshot(),
		FollowUpDate:   followUp,
	}
	rows, err := u.patientRepo.AppendVisit(ctx, patient.ID, visit, followUp)
	if err != nil {
		u.log.Warnf("Failed to append visit for patient %s: %+v", patient.ID, err)
		return fail(err)
	}
	if rows == 0 {
		return fail(ErrPatientNotFound)
	}

	if err := u.auditService.LogCreate(ctx, &caller.UserID, entity.AuditActionPrescriptionIssue, "prescription", prescription.ID.String(), prescription); err != nil {
		u.log.Warnf("Failed to audit prescription %s: %+v", number, err)
	}

	u.notifications.Dispatch(patient.Email, service.NotifyPrescriptionIssued, map[string]interface{}{
		"prescription_number": number,
		"patient_code":        patient.PatientCode,
		"items":               len(lines),
	})

	u.log.Infof("Prescription issued: number=%s, patient=%s, practitioner=%s", number, patient.PatientCode, caller.UserID)
	return converter.PrescriptionToResponse(prescription), nil
}

// claimPatient makes caller the owner of an unassigned patient. A patient
// owned by another practitioner is refused.
func (u *prescriptionUsecase) claimPatient(ctx context.Context, comp *service.Compensation, patient *entity.Patient, practitionerID uuid.UUID) error {
	if patient.IsAssignedTo(practitionerID) {
		return nil
	}
	if !patient.IsUnassigned() {
		return ErrUnauthorizedOwner
	}

	for {
		rows, err := u.patientRepo.AssignPractitionerIfUnset(ctx, patient.ID, practitionerID)
		if err != nil {
			u.log.Warnf("Failed to assign patient %s: %+v", patient.ID, err)
			return err
		}
		if rows > 0 {
			break
		}
		// Someone claimed it between our read and write, or a failed claim was
		// just undone
		current, err := u.patientRepo.FindByID(ctx, patient.ID)
		if err != nil {
			return err
		}
		if current == nil || !current.IsActive {
			return ErrPatientNotFound
		}
		if current.IsAssignedTo(practitionerID) {
			return nil
		}
		if !current.IsUnassigned() {
			return ErrUnauthorizedOwner
		}
	}

	patientID := patient.ID
	comp.Push("unassign patient "+patient.PatientCode, func(ctx context.Context) error {
		current, err := u.patientRepo.FindByID(ctx, patientID)
		if err != nil {
			return err
		}
		// Another issuance by the same practitioner relies on the claim,
		// either finished (its visit is recorded) or still running here
		if current != nil && current.VisitHistory.HasVisitBy(practitionerID) {
			return nil
		}
		if u.inflight.active(patientID, practitionerID) > 1 {
			return nil
		}
		return u.patientRepo.ClearPractitioner(ctx, patientID, practitionerID)
	})
	return nil
}

// Delete soft-deletes an active prescription, credits every line back and
// drops the visit it produced.
func (u *prescriptionUsecase) Delete(ctx context.Context, id uuid.UUID) error {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return err
	}

	prescription, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return err
	}
	if !prescription.IsDeletable() {
		return ErrPrescriptionLocked
	}

	rows, err := u.prescriptionRepo.Deactivate(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to deactivate prescription %s: %+v", id, err)
		return err
	}
	if rows == 0 {
		return ErrPrescriptionLocked
	}

	for _, line := range prescription.LineItems {
		if err := u.ledger.Credit(ctx, line.InventoryItemID, line.QuantityGiven); err != nil {
			u.log.Errorf("CRITICAL: Failed to restock %d of %s for prescription %s: %+v", line.QuantityGiven, line.ItemName, prescription.PrescriptionNumber, err)
		}
	}

	if err := u.patientRepo.RemoveVisit(ctx, prescription.PatientID, prescription.ID); err != nil {
		u.log.Warnf("Failed to remove visit for prescription %s: %+v", prescription.PrescriptionNumber, err)
	}

	if err := u.auditService.LogDelete(ctx, &caller.UserID, entity.AuditActionPrescriptionDelete, "prescription", id.String(), prescription); err != nil {
		u.log.Warnf("Failed to audit prescription %s: %+v", id, err)
	}

	u.log.Infof("Prescription deleted: number=%s", prescription.PrescriptionNumber)
	return nil
}

func (u *prescriptionUsecase) Complete(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error) {
	return u.finish(ctx, id, entity.PrescriptionStatusCompleted)
}

func (u *prescriptionUsecase) Discontinue(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error) {
	return u.finish(ctx, id, entity.PrescriptionStatusDiscontinued)
}

func (u *prescriptionUsecase) finish(ctx context.Context, id uuid.UUID, to entity.PrescriptionStatus) (*dto.PrescriptionResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	prescription, err := u.findOwned(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}
	if !prescription.IsDeletable() {
		return nil, ErrPrescriptionLocked
	}

	rows, err := u.prescriptionRepo.UpdateStatus(ctx, id, entity.PrescriptionStatusActive, to)
	if err != nil {
		u.log.Warnf("Failed to update prescription %s: %+v", id, err)
		return nil, err
	}
	if rows == 0 {
		return nil, ErrPrescriptionLocked
	}

	if err := u.auditService.LogUpdate(ctx, &caller.UserID, entity.AuditActionPrescriptionStatus, "prescription", id.String(),
		map[string]interface{}{"status": prescription.Status},
		map[string]interface{}{"status": to},
	); err != nil {
		u.log.Warnf("Failed to audit prescription %s: %+v", id, err)
	}

	prescription.Status = to
	return converter.PrescriptionToResponse(prescription), nil
}

func (u *prescriptionUsecase) GetByID(ctx context.Context, id uuid.UUID) (*dto.PrescriptionResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	prescription, err := u.prescriptionRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to find prescription %s: %+v", id, err)
		return nil, err
	}
	if prescription == nil {
		return nil, ErrPrescriptionNotFound
	}

	switch caller.RoleID {
	case entity.RoleIDAdmin:
	case entity.RoleIDDoctor:
		if prescription.PractitionerID != caller.UserID {
			return nil, ErrUnauthorizedOwner
		}
	default:
		patient, err := u.patientRepo.FindByAccountID(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		if patient == nil || patient.ID != prescription.PatientID {
			return nil, ErrUnauthorizedOwner
		}
	}

	return converter.PrescriptionToResponse(prescription), nil
}

func (u *prescriptionUsecase) ListByPatient(ctx context.Context, patientID uuid.UUID) (*dto.PrescriptionListResponse, error) {
	caller, err := currentPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	patient, err := u.patientRepo.FindByID(ctx, patientID)
	if err != nil {
		u.log.Warnf("Failed to find patient %s: %+v", patientID, err)
		return nil, err
	}
	if patient == nil {
		return nil, ErrPatientNotFound
	}
	if caller.RoleID == entity.RoleIDDoctor && !patient.IsAssignedTo(caller.UserID) {
		return nil, ErrUnauthorizedOwner
	}

	prescriptions, err := u.prescriptionRepo.FindByPatientID(ctx, patientID)
	if err != nil {
		u.log.Warnf("Failed to list prescriptions for patient %s: %+v", patientID, err)
		return nil, err
	}

	return &dto.PrescriptionListResponse{
		Prescriptions: converter.PrescriptionsToResponses(prescriptions),
		Total:         len(prescriptions),
	}, nil
}

func (u *prescriptionUsecase) findOwned(ctx context.Context, id, practitionerID uuid.UUID) (*entity.Prescription, error) {
	prescription, err := u.prescriptionRepo.FindByID(ctx, id)
	if err != nil {
		u.log.Warnf("Failed to find prescription %s: %+v", id, err)
		return nil, err
	}
	if prescription == nil {
		return nil, ErrPrescriptionNotFound
	}
	if prescription.PractitionerID != practitionerID {
		return nil, ErrUnauthorizedOwner
	}
	return prescription, nil
}

func checkDistinctItems(lines []dto.LineItemRequest) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.InventoryItemID]; ok {
			return ErrDuplicateLineItem
		}
		seen[line.InventoryItemID] = struct{}{}
	}
	return nil
}
