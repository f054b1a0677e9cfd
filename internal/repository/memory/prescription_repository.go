package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
)

type PrescriptionRepository struct {
	mu            sync.Mutex
	prescriptions map[uuid.UUID]entity.Prescription

	// FailCreate, when set, is returned by Create.
	FailCreate error
}

func NewPrescriptionRepository() *PrescriptionRepository {
	return &PrescriptionRepository{prescriptions: make(map[uuid.UUID]entity.Prescription)}
}

var _ domainRepo.PrescriptionRepository = (*PrescriptionRepository)(nil)

func (r *PrescriptionRepository) Create(ctx context.Context, prescription *entity.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreate != nil {
		return r.FailCreate
	}
	for _, p := range r.prescriptions {
		if p.PrescriptionNumber == prescription.PrescriptionNumber {
			return domainRepo.ErrDuplicateKey
		}
		if prescription.IdempotencyKey != nil && p.IdempotencyKey != nil &&
			p.PractitionerID == prescription.PractitionerID && *p.IdempotencyKey == *prescription.IdempotencyKey {
			return domainRepo.ErrDuplicateKey
		}
	}
	if prescription.ID == uuid.Nil {
		prescription.ID = uuid.New()
	}
	prescription.CreatedAt = time.Now()
	prescription.UpdatedAt = prescription.CreatedAt
	r.prescriptions[prescription.ID] = *prescription
	return nil
}

func (r *PrescriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prescriptions[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *PrescriptionRepository) FindByIdempotencyKey(ctx context.Context, practitionerID uuid.UUID, key string) (*entity.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.prescriptions {
		if p.PractitionerID == practitionerID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *PrescriptionRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Prescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.Prescription
	for _, p := range r.prescriptions {
		if p.PatientID == patientID && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *PrescriptionRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prescriptions, id)
	return nil
}

func (r *PrescriptionRepository) Deactivate(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prescriptions[id]
	if !ok || !p.IsActive || p.Status != entity.PrescriptionStatusActive {
		return 0, nil
	}
	p.IsActive = false
	r.prescriptions[id] = p
	return 1, nil
}

func (r *PrescriptionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.PrescriptionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.prescriptions[id]
	if !ok || !p.IsActive || p.Status != from {
		return 0, nil
	}
	p.Status = to
	r.prescriptions[id] = p
	return 1, nil
}

func (r *PrescriptionRepository) ReassignPatient(ctx context.Context, fromPatientIDs []uuid.UUID, toPatientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := make(map[uuid.UUID]bool, len(fromPatientIDs))
	for _, id := range fromPatientIDs {
		from[id] = true
	}
	for id, p := range r.prescriptions {
		if from[p.PatientID] {
			p.PatientID = toPatientID
			r.prescriptions[id] = p
		}
	}
	return nil
}

// Count returns the number of stored prescriptions.
func (r *PrescriptionRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.prescriptions)
}
