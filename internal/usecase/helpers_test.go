package usecase

import (
	"context"
	"io"
	"testing"
	"time"

	"healconnect/internal/delivery/http/middleware"
	"healconnect/internal/domain/entity"
	"healconnect/internal/repository/memory"
	"healconnect/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// clinicClock is "today" for every test that cares about dates.
var clinicClock = time.Date(2025, 10, 14, 10, 0, 0, 0, time.Local)

type fixture struct {
	log           *logrus.Logger
	users         *memory.UserRepository
	patients      *memory.PatientRepository
	inventory     *memory.InventoryRepository
	prescriptions *memory.PrescriptionRepository
	appointments  *memory.AppointmentRepository
	sequences     *memory.SequenceRepository
	audit         *memory.AuditLogRepository

	allocator     *service.SequenceAllocator
	ledger        *service.InventoryLedger
	auditService  service.AuditService
	notifications *service.NotificationService
	guard         *service.LocalRunGuard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		log:           log,
		users:         memory.NewUserRepository(),
		patients:      memory.NewPatientRepository(),
		inventory:     memory.NewInventoryRepository(),
		prescriptions: memory.NewPrescriptionRepository(),
		appointments:  memory.NewAppointmentRepository(),
		sequences:     memory.NewSequenceRepository(),
		audit:         memory.NewAuditLogRepository(),
		guard:         service.NewLocalRunGuard(log),
	}
	f.allocator = service.NewSequenceAllocator(f.sequences, log, 50)
	f.ledger = service.NewInventoryLedger(f.inventory, log)
	f.auditService = service.NewAuditService(log, f.audit)
	f.notifications = service.NewNotificationService(service.NewLogNotifier(log), log, time.Second)

	t.Cleanup(func() {
		f.notifications.Stop()
		f.guard.Stop()
	})
	return f
}

func (f *fixture) appointmentUsecase() *appointmentUsecase {
	uc := NewAppointmentUsecase(f.log, f.appointments, f.patients, f.users, f.auditService, f.notifications).(*appointmentUsecase)
	uc.now = func() time.Time { return clinicClock }
	return uc
}

func (f *fixture) prescriptionUsecase() *prescriptionUsecase {
	uc := NewPrescriptionUsecase(f.log, f.prescriptions, f.patients, f.inventory, f.ledger, f.allocator, f.auditService, f.notifications).(*prescriptionUsecase)
	uc.now = func() time.Time { return clinicClock }
	return uc
}

func (f *fixture) identityUsecase() PatientIdentityUsecase {
	return NewPatientIdentityUsecase(f.log, memory.NewTransactor(), f.patients, f.prescriptions, f.appointments, f.auditService, f.guard, time.Minute)
}

func (f *fixture) seedUser(t *testing.T, roleID int, email string) *entity.User {
	t.Helper()
	active := true
	user := &entity.User{Email: email, FullName: email, RoleID: roleID, IsActive: &active}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) seedPatient(t *testing.T, p entity.Patient) *entity.Patient {
	t.Helper()
	ctx := context.Background()
	if p.PatientCode == "" {
		code, err := f.allocator.AllocatePatientCode(ctx)
		require.NoError(t, err)
		p.PatientCode = code
	}
	if p.Source == "" {
		p.Source = entity.PatientSourceWalkIn
	}
	p.IsActive = true
	require.NoError(t, f.patients.Create(ctx, &p))
	return &p
}

func (f *fixture) seedItem(t *testing.T, ownerID uuid.UUID, name string, qty int) *entity.InventoryItem {
	t.Helper()
	item := &entity.InventoryItem{OwnerID: ownerID, Name: name, Quantity: qty, LowStockThreshold: 5, IsActive: true}
	require.NoError(t, f.inventory.Create(context.Background(), item))
	return item
}

func (f *fixture) quantity(id uuid.UUID) int {
	return f.inventory.Quantities()[id]
}

func asUser(user *entity.User) context.Context {
	return middleware.WithPrincipal(context.Background(), user.ID, user.RoleID)
}
