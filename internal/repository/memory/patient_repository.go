package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"healconnect/internal/domain/entity"
	domainRepo "healconnect/internal/domain/repository"

	"github.com/google/uuid"
)

// PatientRepository emulates row locks: rows locked by FindByIDsForUpdate
// make writes from other transactions wait until the locking one ends.
type PatientRepository struct {
	mu       sync.Mutex
	released *sync.Cond
	patients map[uuid.UUID]entity.Patient
	lockedBy map[uuid.UUID]*txScope

	// FailAppendVisit, when set, is returned by AppendVisit.
	FailAppendVisit error
}

func NewPatientRepository() *PatientRepository {
	r := &PatientRepository{
		patients: make(map[uuid.UUID]entity.Patient),
		lockedBy: make(map[uuid.UUID]*txScope),
	}
	r.released = sync.NewCond(&r.mu)
	return r
}

var errLockOutsideTx = errors.New("memory: row locks need a transaction")

// waitRow blocks while another transaction holds id. Callers hold r.mu.
func (r *PatientRepository) waitRow(ctx context.Context, id uuid.UUID) {
	tx := txFrom(ctx)
	for {
		owner, locked := r.lockedBy[id]
		if !locked || owner == tx {
			return
		}
		r.released.Wait()
	}
}

func (r *PatientRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]entity.Patient, error) {
	tx := txFrom(ctx)
	if tx == nil {
		return nil, errLockOutsideTx
	}

	ordered := append([]uuid.UUID{}, ids...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].String() < ordered[j].String() })

	r.mu.Lock()
	defer r.mu.Unlock()

	var locked []uuid.UUID
	out := make([]entity.Patient, 0, len(ordered))
	for _, id := range ordered {
		r.waitRow(ctx, id)
		p, ok := r.patients[id]
		if !ok {
			continue
		}
		if r.lockedBy[id] != tx {
			r.lockedBy[id] = tx
			locked = append(locked, id)
		}
		out = append(out, clonePatient(p))
	}

	tx.atEnd(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, id := range locked {
			delete(r.lockedBy, id)
		}
		r.released.Broadcast()
	})
	return out, nil
}

var _ domainRepo.PatientRepository = (*PatientRepository)(nil)

func clonePatient(p entity.Patient) entity.Patient {
	p.VisitHistory = append(entity.VisitHistory{}, p.VisitHistory...)
	return p
}

func (r *PatientRepository) checkUnique(p *entity.Patient) error {
	for id, other := range r.patients {
		if id == p.ID {
			continue
		}
		if other.PatientCode == p.PatientCode {
			return domainRepo.ErrDuplicateKey
		}
		if p.AccountID != nil && other.AccountID != nil && *p.AccountID == *other.AccountID {
			return domainRepo.ErrDuplicateKey
		}
	}
	return nil
}

func (r *PatientRepository) Create(ctx context.Context, patient *entity.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	if err := r.checkUnique(patient); err != nil {
		return err
	}
	if patient.CreatedAt.IsZero() {
		patient.CreatedAt = time.Now()
	}
	patient.UpdatedAt = time.Now()
	if patient.VisitHistory == nil {
		patient.VisitHistory = entity.VisitHistory{}
	}
	r.patients[patient.ID] = clonePatient(*patient)
	return nil
}

func (r *PatientRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, nil
	}
	found := clonePatient(p)
	return &found, nil
}

func (r *PatientRepository) FindByAccountID(ctx context.Context, accountID uuid.UUID) (*entity.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.patients {
		if p.IsActive && p.AccountID != nil && *p.AccountID == accountID {
			found := clonePatient(p)
			return &found, nil
		}
	}
	return nil, nil
}

func (r *PatientRepository) sorted(keep func(entity.Patient) bool) []entity.Patient {
	out := make([]entity.Patient, 0, len(r.patients))
	for _, p := range r.patients {
		if keep(p) {
			out = append(out, clonePatient(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *PatientRepository) FindAll(ctx context.Context, filter entity.PatientFilter, limit, offset int) ([]entity.Patient, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	search := strings.ToLower(filter.Search)
	matched := r.sorted(func(p entity.Patient) bool {
		if !p.IsActive {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(p.Mobile, search) &&
			!strings.Contains(strings.ToLower(p.PatientCode), search) {
			return false
		}
		if filter.PractitionerID != nil {
			if p.IsAssignedTo(*filter.PractitionerID) {
				return true
			}
			return filter.IncludeUnowned && p.IsUnassigned()
		}
		return true
	})
	return paginate(matched, limit, offset), int64(len(matched)), nil
}

func (r *PatientRepository) FindAllActive(ctx context.Context) ([]entity.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sorted(func(p entity.Patient) bool { return p.IsActive }), nil
}

func (r *PatientRepository) Update(ctx context.Context, patient *entity.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitRow(ctx, patient.ID)
	current, ok := r.patients[patient.ID]
	if !ok {
		return nil
	}
	current.AccountID = patient.AccountID
	current.Name = patient.Name
	current.Mobile = patient.Mobile
	current.Email = patient.Email
	current.Age = patient.Age
	current.Gender = patient.Gender
	current.Address = patient.Address
	current.MedicalHistory = patient.MedicalHistory
	current.Source = patient.Source
	current.CampName = patient.CampName
	current.IsActive = patient.IsActive
	if err := r.checkUnique(&current); err != nil {
		return err
	}
	current.UpdatedAt = time.Now()
	patient.UpdatedAt = current.UpdatedAt
	r.patients[patient.ID] = current
	return nil
}

func (r *PatientRepository) SaveMerged(ctx context.Context, patient *entity.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitRow(ctx, patient.ID)
	if err := r.checkUnique(patient); err != nil {
		return err
	}
	patient.UpdatedAt = time.Now()
	r.patients[patient.ID] = clonePatient(*patient)
	return nil
}

func (r *PatientRepository) Deactivate(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitRow(ctx, id)
	p, ok := r.patients[id]
	if !ok || !p.IsActive {
		return 0, nil
	}
	p.IsActive = false
	r.patients[id] = p
	return 1, nil
}

func (r *PatientRepository) AssignPractitionerIfUnset(ctx context.Context, id, practitionerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitRow(ctx, id)
	p, ok := r.patients[id]
	if !ok || p.AssignedPractitionerID != nil {
		return 0, nil
	}
	assigned := practitionerID
	p.AssignedPractitionerID = &assigned
	r.patients[id] = p
	return 1, nil
}

func (r *PatientRepository) ClearPractitioner(ctx context.Context, id, practitionerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitRow(ctx, id)
	p, ok := r.patients[id]
	if ok && p.IsAssignedTo(practitionerID) {
		p.AssignedPractitionerID = nil
		r.patients[id] = p
	}
	return nil
}

func (r *PatientRepository) AppendVisit(ctx context.Context, id uuid.UUID, visit entity.Visit, nextAppointment *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailAppendVisit != nil {
		return 0, r.FailAppendVisit
	}
	r.waitRow(ctx, id)
	p, ok := r.patients[id]
	if !ok || !p.IsActive {
		return 0, nil
	}
	p.VisitHistory = append(append(entity.VisitHistory{}, p.VisitHistory...), visit)
	ts := visit.Timestamp
	p.LastVisit = &ts
	if nextAppointment != nil {
		next := *nextAppointment
		p.NextAppointment = &next
	}
	r.patients[id] = p
	return 1, nil
}

func (r *PatientRepository) RemoveVisit(ctx context.Context, id uuid.UUID, prescriptionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.waitRow(ctx, id)
	p, ok := r.patients[id]
	if !ok {
		return nil
	}
	p.VisitHistory = p.VisitHistory.Without(prescriptionID)
	r.patients[id] = p
	return nil
}

func (r *PatientRepository) DeleteByIDs(ctx context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		r.waitRow(ctx, id)
		delete(r.patients, id)
	}
	return nil
}

// Count returns the number of stored records, active or not.
func (r *PatientRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patients)
}
