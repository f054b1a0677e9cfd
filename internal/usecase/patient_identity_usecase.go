package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/delivery/http/middleware"
	"healconnect/internal/domain/entity"
	"healconnect/internal/domain/repository"
	"healconnect/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrDeduplicationRunning = errors.New("duplicate resolution is already running")
	ErrNotDuplicates        = errors.New("patients do not share the same name and mobile")
	ErrMergeTooFewPatients  = errors.New("merge needs at least two patients")
)

const (
	dedupeGuardName      = "patient-dedupe"
	defaultDedupeLockTTL = 10 * time.Minute
)

// DuplicateGroup is a set of active records that share an identity key.
type DuplicateGroup struct {
	Key      string
	Patients []entity.Patient
}

// FindDuplicateGroups groups patients by lower-cased trimmed name plus exact
// mobile. Records missing either part never group. Groups come back sorted by
// key, members by creation time then id.
func FindDuplicateGroups(patients []entity.Patient) []DuplicateGroup {
	byKey := make(map[string][]entity.Patient)
	for _, p := range patients {
		if strings.TrimSpace(p.Name) == "" || p.Mobile == "" {
			continue
		}
		key := p.IdentityKey()
		byKey[key] = append(byKey[key], p)
	}

	groups := make([]DuplicateGroup, 0)
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool {
			if !members[i].CreatedAt.Equal(members[j].CreatedAt) {
				return members[i].CreatedAt.Before(members[j].CreatedAt)
			}
			return members[i].ID.String() < members[j].ID.String()
		})
		groups = append(groups, DuplicateGroup{Key: key, Patients: members})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// SelectSurvivor folds the group pairwise. A record with an email beats one
// without; otherwise the more recently created record wins, ties going to
// the smaller id.
func SelectSurvivor(group []entity.Patient) entity.Patient {
	best := group[0]
	for _, candidate := range group[1:] {
		if preferOver(candidate, best) {
			best = candidate
		}
	}
	return best
}

func preferOver(a, b entity.Patient) bool {
	aEmail, bEmail := a.Email != "", b.Email != ""
	if aEmail != bEmail {
		return aEmail
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// fillEmpty copies fields that are empty on survivor from donor. Populated
// survivor fields are never replaced.
func fillEmpty(survivor *entity.Patient, donor entity.Patient) {
	if survivor.Email == "" {
		survivor.Email = donor.Email
	}
	if survivor.Age == 0 {
		survivor.Age = donor.Age
	}
	if survivor.Gender == "" {
		survivor.Gender = donor.Gender
	}
	if survivor.Address == "" {
		survivor.Address = donor.Address
	}
	if survivor.MedicalHistory == "" {
		survivor.MedicalHistory = donor.MedicalHistory
	}
	if survivor.AccountID == nil && donor.AccountID != nil {
		account := *donor.AccountID
		survivor.AccountID = &account
	}
	if survivor.IsUnassigned() && !donor.IsUnassigned() {
		owner := *donor.AssignedPractitionerID
		survivor.AssignedPractitionerID = &owner
	}
	if survivor.NextAppointment == nil && donor.NextAppointment != nil {
		next := *donor.NextAppointment
		survivor.NextAppointment = &next
	}
}

type PatientIdentityUsecase interface {
	FindDuplicates(ctx context.Context) ([]dto.DuplicateGroupResponse, error)
	MergeGroup(ctx context.Context, group []entity.Patient) (*dto.MergeResultResponse, error)
	MergePatients(ctx context.Context, ids []uuid.UUID) (*dto.MergeResultResponse, error)
	RunDeduplication(ctx context.Context) (*dto.DeduplicationResponse, error)
}

type patientIdentityUsecase struct {
	log              *logrus.Logger
	transactor       repository.Transactor
	patientRepo      repository.PatientRepository
	prescriptionRepo repository.PrescriptionRepository
	appointmentRepo  repository.AppointmentRepository
	auditService     service.AuditService
	guard            service.RunGuard
	lockTTL          time.Duration
}

func NewPatientIdentityUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	patientRepo repository.PatientRepository,
	prescriptionRepo repository.PrescriptionRepository,
	appointmentRepo repository.AppointmentRepository,
	auditService service.AuditService,
	guard service.RunGuard,
	lockTTL time.Duration,
) PatientIdentityUsecase {
	if lockTTL <= 0 {
		lockTTL = defaultDedupeLockTTL
	}
	return &patientIdentityUsecase{
		log:              log,
		transactor:       transactor,
		patientRepo:      patientRepo,
		prescriptionRepo: prescriptionRepo,
		appointmentRepo:  appointmentRepo,
		auditService:     auditService,
		guard:            guard,
		lockTTL:          lockTTL,
	}
}

// FindDuplicates previews the groups a deduplication run would merge.
func (u *patientIdentityUsecase) FindDuplicates(ctx context.Context) ([]dto.DuplicateGroupResponse, error) {
	patients, err := u.patientRepo.FindAllActive(ctx)
	if err != nil {
		u.log.Warnf("Failed to load patients: %+v", err)
		return nil, err
	}

	groups := FindDuplicateGroups(patients)
	out := make([]dto.DuplicateGroupResponse, 0, len(groups))
	for _, g := range groups {
		ids := make([]uuid.UUID, 0, len(g.Patients))
		for _, p := range g.Patients {
			ids = append(ids, p.ID)
		}
		out = append(out, dto.DuplicateGroupResponse{
			Key:        g.Key,
			PatientIDs: ids,
			SurvivorID: SelectSurvivor(g.Patients).ID,
		})
	}
	return out, nil
}

// MergeGroup folds the group into its survivor inside one transaction:
// fill empty fields, carry visits, re-point prescriptions and appointments,
// then delete the others.
//
// group only names the members. They are re-read under row locks, so visits
// appended after the group was loaded are carried too. Members that were
// deactivated or no longer share the identity key are left out; if fewer than
// two remain the merge is refused with ErrMergeTooFewPatients.
func (u *patientIdentityUsecase) MergeGroup(ctx context.Context, group []entity.Patient) (*dto.MergeResultResponse, error) {
	if len(group) < 2 {
		return nil, ErrMergeTooFewPatients
	}

	key := group[0].IdentityKey()
	ids := make([]uuid.UUID, 0, len(group))
	for _, p := range group {
		ids = append(ids, p.ID)
	}

	var (
		before    entity.Patient
		survivor  entity.Patient
		members   []entity.Patient
		mergedIDs []uuid.UUID
	)
	err := u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		locked, err := u.patientRepo.FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return err
		}

		members = members[:0]
		for _, p := range locked {
			if p.IsActive && p.IdentityKey() == key {
				members = append(members, p)
			}
		}
		if len(members) < 2 {
			return ErrMergeTooFewPatients
		}

		survivor, mergedIDs = foldGroup(members)
		for _, p := range members {
			if p.ID == survivor.ID {
				before = p
			}
		}

		if err := u.prescriptionRepo.ReassignPatient(ctx, mergedIDs, survivor.ID); err != nil {
			return err
		}
		if err := u.appointmentRepo.ReassignPatient(ctx, mergedIDs, survivor.ID); err != nil {
			return err
		}
		// Delete first so the survivor can take over a unique account link
		if err := u.patientRepo.DeleteByIDs(ctx, mergedIDs); err != nil {
			return err
		}
		return u.patientRepo.SaveMerged(ctx, &survivor)
	})
	if err != nil {
		if !errors.Is(err, ErrMergeTooFewPatients) {
			u.log.Warnf("Failed to merge patients %v: %+v", ids, err)
		}
		return nil, err
	}

	var actor *uuid.UUID
	if userID, ok := middleware.GetUserIDFromContext(ctx); ok {
		actor = &userID
	}
	if err := u.auditService.LogUpdate(ctx, actor, entity.AuditActionPatientMerge, "patient", survivor.ID.String(),
		map[string]interface{}{"survivor": before, "merged": members},
		map[string]interface{}{"survivor": survivor, "merged_ids": mergedIDs},
	); err != nil {
		u.log.Warnf("Failed to audit merge into %s: %+v", survivor.ID, err)
	}

	u.log.Infof("Patients merged: survivor=%s, merged=%d", survivor.PatientCode, len(mergedIDs))
	return &dto.MergeResultResponse{SurvivorID: survivor.ID, MergedIDs: mergedIDs}, nil
}

// foldGroup picks the survivor and folds every other member into it.
func foldGroup(members []entity.Patient) (entity.Patient, []uuid.UUID) {
	survivor := SelectSurvivor(members)
	visits := append(entity.VisitHistory{}, survivor.VisitHistory...)

	var mergedIDs []uuid.UUID
	for _, p := range members {
		if p.ID == survivor.ID {
			continue
		}
		mergedIDs = append(mergedIDs, p.ID)
		fillEmpty(&survivor, p)
		visits = append(visits, p.VisitHistory...)
	}

	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].Timestamp.Before(visits[j].Timestamp)
	})
	survivor.VisitHistory = visits
	if len(visits) > 0 {
		last := visits[len(visits)-1].Timestamp
		survivor.LastVisit = &last
	}
	return survivor, mergedIDs
}

// MergePatients merges an explicit set of records that share an identity key.
func (u *patientIdentityUsecase) MergePatients(ctx context.Context, ids []uuid.UUID) (*dto.MergeResultResponse, error) {
	if len(ids) < 2 {
		return nil, ErrMergeTooFewPatients
	}

	group := make([]entity.Patient, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		patient, err := u.patientRepo.FindByID(ctx, id)
		if err != nil {
			u.log.Warnf("Failed to find patient %s: %+v", id, err)
			return nil, err
		}
		if patient == nil || !patient.IsActive {
			return nil, ErrPatientNotFound
		}
		if len(group) > 0 && patient.IdentityKey() != group[0].IdentityKey() {
			return nil, ErrNotDuplicates
		}
		group = append(group, *patient)
	}

	return u.MergeGroup(ctx, group)
}

// RunDeduplication merges every duplicate group. Only one run may be in
// flight across all instances.
func (u *patientIdentityUsecase) RunDeduplication(ctx context.Context) (*dto.DeduplicationResponse, error) {
	release, err := u.guard.Acquire(ctx, dedupeGuardName, u.lockTTL)
	if err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			return nil, ErrDeduplicationRunning
		}
		return nil, err
	}
	defer release()

	patients, err := u.patientRepo.FindAllActive(ctx)
	if err != nil {
		u.log.Warnf("Failed to load patients: %+v", err)
		return nil, err
	}

	groups := FindDuplicateGroups(patients)
	result := &dto.DeduplicationResponse{
		Groups:  len(groups),
		Results: make([]dto.MergeResultResponse, 0, len(groups)),
	}

	var errs []error
	for _, g := range groups {
		merged, err := u.MergeGroup(ctx, g.Patients)
		if errors.Is(err, ErrMergeTooFewPatients) {
			// Edited or deactivated since the scan
			u.log.Infof("Duplicate group %q dissolved before merge, skipped", g.Key)
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Merged += len(merged.MergedIDs)
		result.Results = append(result.Results, *merged)
	}

	u.log.Infof("Deduplication finished: groups=%d, merged=%d, failed=%d", result.Groups, result.Merged, len(errs))
	return result, errors.Join(errs...)
}

// DeduplicationJob wraps RunDeduplication for the maintenance scheduler. A
// run already in flight elsewhere is not an error.
func DeduplicationJob(identity PatientIdentityUsecase) service.MaintenanceJob {
	return service.MaintenanceJob{
		Name: dedupeGuardName,
		Run: func(ctx context.Context, _ *service.MaintenanceRun) error {
			_, err := identity.RunDeduplication(ctx)
			if errors.Is(err, ErrDeduplicationRunning) {
				return nil
			}
			return err
		},
	}
}
