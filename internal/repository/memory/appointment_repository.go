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

// AppointmentRepository enforces the partial unique index on
// (practitioner_id, appointment_date, slot_label) for pending and approved rows.
type AppointmentRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]entity.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[uuid.UUID]entity.Appointment)}
}

var _ domainRepo.AppointmentRepository = (*AppointmentRepository)(nil)

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (r *AppointmentRepository) slotHeld(except uuid.UUID, a entity.Appointment) bool {
	for id, other := range r.appointments {
		if id == except || !other.HoldsSlot() {
			continue
		}
		if other.PractitionerID == a.PractitionerID && other.SlotLabel == a.SlotLabel && sameDay(other.AppointmentDate, a.AppointmentDate) {
			return true
		}
	}
	return false
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *entity.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appointment.HoldsSlot() && r.slotHeld(uuid.Nil, *appointment) {
		return domainRepo.ErrDuplicateKey
	}
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = appointment.CreatedAt
	r.appointments[appointment.ID] = *appointment
	return nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *AppointmentRepository) FindActiveBySlot(ctx context.Context, practitionerID uuid.UUID, date time.Time, slotLabel string) (*entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.HoldsSlot() && a.PractitionerID == practitionerID && a.SlotLabel == slotLabel && sameDay(a.AppointmentDate, date) {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (r *AppointmentRepository) collect(keep func(entity.Appointment) bool) []entity.Appointment {
	var out []entity.Appointment
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !sameDay(out[i].AppointmentDate, out[j].AppointmentDate) {
			return out[i].AppointmentDate.Before(out[j].AppointmentDate)
		}
		return entity.SlotIndex(out[i].SlotLabel) < entity.SlotIndex(out[j].SlotLabel)
	})
	return out
}

func (r *AppointmentRepository) FindByPractitioner(ctx context.Context, practitionerID uuid.UUID, date *time.Time) ([]entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.collect(func(a entity.Appointment) bool {
		return a.PractitionerID == practitionerID && (date == nil || sameDay(a.AppointmentDate, *date))
	}), nil
}

func (r *AppointmentRepository) FindByPatientID(ctx context.Context, patientID uuid.UUID) ([]entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.collect(func(a entity.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.appointments, id)
	return nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []entity.AppointmentStatus, to entity.AppointmentStatus, note string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return 0, nil
	}
	matched := false
	for _, s := range from {
		if a.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return 0, nil
	}

	next := a
	next.Status = to
	if next.HoldsSlot() && !a.HoldsSlot() && r.slotHeld(id, next) {
		return 0, domainRepo.ErrDuplicateKey
	}
	if note != "" {
		next.StatusNote = note
	}
	next.UpdatedAt = time.Now()
	r.appointments[id] = next
	return 1, nil
}

func (r *AppointmentRepository) ReassignPatient(ctx context.Context, fromPatientIDs []uuid.UUID, toPatientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	from := make(map[uuid.UUID]bool, len(fromPatientIDs))
	for _, id := range fromPatientIDs {
		from[id] = true
	}
	for id, a := range r.appointments {
		if from[a.PatientID] {
			a.PatientID = toPatientID
			r.appointments[id] = a
		}
	}
	return nil
}
