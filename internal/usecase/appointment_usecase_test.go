package usecase

import (
	"sync"
	"testing"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingSetup struct {
	f        *fixture
	uc       *appointmentUsecase
	doctor   *entity.User
	patientA *entity.User
	patientB *entity.User
}

func newBookingSetup(t *testing.T) *bookingSetup {
	f := newFixture(t)
	s := &bookingSetup{
		f:        f,
		uc:       f.appointmentUsecase(),
		doctor:   f.seedUser(t, entity.RoleIDDoctor, "doctor@clinic.test"),
		patientA: f.seedUser(t, entity.RoleIDPatient, "asha@mail.test"),
		patientB: f.seedUser(t, entity.RoleIDPatient, "bala@mail.test"),
	}
	for _, u := range []*entity.User{s.patientA, s.patientB} {
		account := u.ID
		f.seedPatient(t, entity.Patient{Name: u.Email, Mobile: "90000" + u.ID.String()[:5], Email: u.Email, AccountID: &account})
	}
	return s
}

func (s *bookingSetup) book(t *testing.T, who *entity.User, slot string) (*dto.AppointmentResponse, error) {
	t.Helper()
	return s.uc.Book(asUser(who), &dto.BookAppointmentRequest{
		PractitionerID: s.doctor.ID,
		Date:           "2025-10-15",
		SlotLabel:      slot,
		Reason:         "fever",
	})
}

func TestBook_ConcurrentSameSlotOnlyOneWins(t *testing.T) {
	s := newBookingSetup(t)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, who := range []*entity.User{s.patientA, s.patientB} {
		wg.Add(1)
		go func(i int, who *entity.User) {
			defer wg.Done()
			_, results[i] = s.book(t, who, "10:00 AM")
		}(i, who)
	}
	wg.Wait()

	var won, taken int
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, ErrSlotTaken):
			taken++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, taken)

	day := clinicClock.AddDate(0, 0, 1)
	list, err := s.f.appointments.FindByPractitioner(asUser(s.doctor), s.doctor.ID, &day)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.AppointmentStatusPending, list[0].Status)
}

func TestBook_Validation(t *testing.T) {
	s := newBookingSetup(t)

	_, err := s.book(t, s.patientA, "10:15 AM")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	_, err = s.uc.Book(asUser(s.patientA), &dto.BookAppointmentRequest{
		PractitionerID: s.doctor.ID,
		Date:           "2025-10-13",
		SlotLabel:      "10:00 AM",
	})
	assert.ErrorIs(t, err, ErrSlotPast)

	_, err = s.uc.Book(asUser(s.patientA), &dto.BookAppointmentRequest{
		PractitionerID: s.patientB.ID,
		Date:           "2025-10-15",
		SlotLabel:      "10:00 AM",
	})
	assert.ErrorIs(t, err, ErrPractitionerNotFound)

	_, err = s.uc.Book(asUser(s.patientA), &dto.BookAppointmentRequest{
		PractitionerID: s.doctor.ID,
		Date:           "15-10-2025",
		SlotLabel:      "10:00 AM",
	})
	assert.ErrorIs(t, err, ErrInvalidDateFormat)
}

func TestAppointmentLifecycle(t *testing.T) {
	s := newBookingSetup(t)
	doctorCtx := asUser(s.doctor)

	booked, err := s.book(t, s.patientA, "09:00 AM")
	require.NoError(t, err)

	// completed is only reachable from approved
	_, err = s.uc.UpdateStatus(doctorCtx, booked.ID, &dto.UpdateAppointmentStatusRequest{Status: "completed"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved, err := s.uc.UpdateStatus(doctorCtx, booked.ID, &dto.UpdateAppointmentStatusRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, "approved", approved.Status)

	completed, err := s.uc.UpdateStatus(doctorCtx, booked.ID, &dto.UpdateAppointmentStatusRequest{Status: "completed", Note: "follow up in a week"})
	require.NoError(t, err)
	assert.Equal(t, "completed", completed.Status)
	assert.Equal(t, "follow up in a week", completed.StatusNote)

	_, err = s.uc.UpdateStatus(doctorCtx, booked.ID, &dto.UpdateAppointmentStatusRequest{Status: "rejected"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAppointment_OnlyOwnerPractitionerTransitions(t *testing.T) {
	s := newBookingSetup(t)
	other := s.f.seedUser(t, entity.RoleIDDoctor, "other@clinic.test")

	booked, err := s.book(t, s.patientA, "09:00 AM")
	require.NoError(t, err)

	_, err = s.uc.UpdateStatus(asUser(other), booked.ID, &dto.UpdateAppointmentStatusRequest{Status: "approved"})
	assert.ErrorIs(t, err, ErrUnauthorizedOwner)

	_, err = s.uc.UpdateStatus(asUser(s.doctor), uuid.New(), &dto.UpdateAppointmentStatusRequest{Status: "approved"})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestAppointment_RejectFreesSlotAndReversalNeedsIt(t *testing.T) {
	s := newBookingSetup(t)
	doctorCtx := asUser(s.doctor)

	first, err := s.book(t, s.patientA, "11:00 AM")
	require.NoError(t, err)

	_, err = s.uc.UpdateStatus(doctorCtx, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "rejected", Note: "unavailable"})
	require.NoError(t, err)

	// Rejected bookings release the slot
	second, err := s.book(t, s.patientB, "11:00 AM")
	require.NoError(t, err)

	_, err = s.uc.UpdateStatus(doctorCtx, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "approved"})
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Once the slot is free again the reversal goes through
	_, err = s.uc.UpdateStatus(doctorCtx, second.ID, &dto.UpdateAppointmentStatusRequest{Status: "rejected"})
	require.NoError(t, err)
	reversed, err := s.uc.UpdateStatus(doctorCtx, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "approved"})
	require.NoError(t, err)
	assert.Equal(t, "approved", reversed.Status)

	// approved -> rejected is the other half of the reversal
	_, err = s.uc.UpdateStatus(doctorCtx, first.ID, &dto.UpdateAppointmentStatusRequest{Status: "rejected"})
	require.NoError(t, err)
}

func TestAppointment_PatientCancel(t *testing.T) {
	s := newBookingSetup(t)

	booked, err := s.book(t, s.patientA, "02:00 PM")
	require.NoError(t, err)

	_, err = s.uc.Cancel(asUser(s.patientB), booked.ID, &dto.CancelAppointmentRequest{Reason: "not mine"})
	assert.ErrorIs(t, err, ErrUnauthorizedOwner)

	cancelled, err := s.uc.Cancel(asUser(s.patientA), booked.ID, &dto.CancelAppointmentRequest{Reason: "travelling"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "travelling", cancelled.StatusNote)

	// Cancelled is terminal
	_, err = s.uc.UpdateStatus(asUser(s.doctor), booked.ID, &dto.UpdateAppointmentStatusRequest{Status: "approved"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.uc.Cancel(asUser(s.patientA), booked.ID, &dto.CancelAppointmentRequest{Reason: "again"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// and the slot is free
	_, err = s.book(t, s.patientB, "02:00 PM")
	assert.NoError(t, err)
}

func TestAppointment_AvailabilityAndDelete(t *testing.T) {
	s := newBookingSetup(t)

	booked, err := s.book(t, s.patientA, "09:30 AM")
	require.NoError(t, err)

	availability, err := s.uc.Availability(asUser(s.patientB), s.doctor.ID, "2025-10-15")
	require.NoError(t, err)
	require.Len(t, availability.Slots, len(entity.SlotLabels))
	for _, slot := range availability.Slots {
		assert.Equal(t, slot.SlotLabel != "09:30 AM", slot.Available, slot.SlotLabel)
	}

	require.NoError(t, s.uc.Delete(asUser(s.doctor), booked.ID))
	_, err = s.uc.GetByID(asUser(s.doctor), booked.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	mine, err := s.uc.ListMine(asUser(s.patientA))
	require.NoError(t, err)
	assert.Equal(t, 0, mine.Total)

	assert.Contains(t, s.f.audit.Actions(), entity.AuditActionAppointmentDelete)
}

func TestAppointment_PractitionerListFollowsClinicDay(t *testing.T) {
	s := newBookingSetup(t)

	_, err := s.book(t, s.patientA, "02:00 PM")
	require.NoError(t, err)
	_, err = s.book(t, s.patientB, "09:30 AM")
	require.NoError(t, err)
	_, err = s.book(t, s.patientA, "12:30 PM")
	require.NoError(t, err)

	list, err := s.uc.ListForPractitioner(asUser(s.doctor), "2025-10-15")
	require.NoError(t, err)

	var labels []string
	for _, a := range list.Appointments {
		labels = append(labels, a.SlotLabel)
	}
	assert.Equal(t, []string{"09:30 AM", "12:30 PM", "02:00 PM"}, labels)
}
