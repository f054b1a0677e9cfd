package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDuplicateGroups(t *testing.T) {
	t1 := clinicClock
	patients := []entity.Patient{
		{ID: uuid.New(), Name: "Raj ", Mobile: "999", CreatedAt: t1},
		{ID: uuid.New(), Name: "raj", Mobile: "999", CreatedAt: t1.Add(-time.Hour)},
		{ID: uuid.New(), Name: "Raj", Mobile: "998", CreatedAt: t1},
		{ID: uuid.New(), Name: "", Mobile: "999", CreatedAt: t1},
		{ID: uuid.New(), Name: "Anita", Mobile: "", CreatedAt: t1},
		{ID: uuid.New(), Name: "Anita", Mobile: "", CreatedAt: t1},
	}

	groups := FindDuplicateGroups(patients)
	require.Len(t, groups, 1)
	assert.Equal(t, "raj|999", groups[0].Key)
	require.Len(t, groups[0].Patients, 2)
	assert.Equal(t, patients[1].ID, groups[0].Patients[0].ID, "members are ordered oldest first")
}

func TestSelectSurvivor_EmailBeatsRecency(t *testing.T) {
	t1 := clinicClock
	withoutEmail := entity.Patient{ID: uuid.New(), Name: "Raj", Mobile: "999", CreatedAt: t1}
	withEmail := entity.Patient{ID: uuid.New(), Name: "Raj", Mobile: "999", Email: "raj@x.com", CreatedAt: t1.Add(-48 * time.Hour)}

	assert.Equal(t, withEmail.ID, SelectSurvivor([]entity.Patient{withoutEmail, withEmail}).ID)
	assert.Equal(t, withEmail.ID, SelectSurvivor([]entity.Patient{withEmail, withoutEmail}).ID)
}

func TestSelectSurvivor_NewestWinsWithoutEmail(t *testing.T) {
	older := entity.Patient{ID: uuid.New(), Name: "Raj", Mobile: "999", CreatedAt: clinicClock.Add(-time.Hour)}
	newer := entity.Patient{ID: uuid.New(), Name: "Raj", Mobile: "999", CreatedAt: clinicClock}

	assert.Equal(t, newer.ID, SelectSurvivor([]entity.Patient{older, newer}).ID)

	// Full tie falls back to the smaller id so the choice is stable
	a := entity.Patient{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), CreatedAt: clinicClock}
	b := entity.Patient{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), CreatedAt: clinicClock}
	assert.Equal(t, a.ID, SelectSurvivor([]entity.Patient{b, a}).ID)
	assert.Equal(t, a.ID, SelectSurvivor([]entity.Patient{a, b}).ID)
}

func TestFillEmpty_NeverOverwritesPopulatedFields(t *testing.T) {
	survivor := entity.Patient{Email: "raj@x.com", Age: 40, Address: "12 MG Road"}
	donor := entity.Patient{Email: "other@x.com", Age: 41, Gender: "M", Address: "Elsewhere", MedicalHistory: "asthma"}

	fillEmpty(&survivor, donor)

	assert.Equal(t, "raj@x.com", survivor.Email)
	assert.Equal(t, 40, survivor.Age)
	assert.Equal(t, "12 MG Road", survivor.Address)
	assert.Equal(t, "M", survivor.Gender)
	assert.Equal(t, "asthma", survivor.MedicalHistory)
}

func TestMergeGroup_RajScenario(t *testing.T) {
	f := newFixture(t)
	doctor := f.seedUser(t, entity.RoleIDDoctor, "doctor@clinic.test")
	identity := f.identityUsecase()

	t1 := clinicClock
	visitAt := t1.Add(-24 * time.Hour)
	rxID := uuid.New()
	newest := f.seedPatient(t, entity.Patient{
		Name: "Raj", Mobile: "999", Age: 35, Gender: "M", CreatedAt: t1,
		VisitHistory: entity.VisitHistory{{Timestamp: visitAt, PractitionerID: doctor.ID, PrescriptionID: rxID, Diagnosis: "flu"}},
	})
	withEmail := f.seedPatient(t, entity.Patient{
		Name: "Raj", Mobile: "999", Email: "raj@x.com", Address: "Pune", CreatedAt: t1.Add(-72 * time.Hour),
	})

	require.NoError(t, f.prescriptions.Create(context.Background(), &entity.Prescription{
		ID: rxID, PrescriptionNumber: "RX20251013001", PatientID: newest.ID, PractitionerID: doctor.ID,
		Status: entity.PrescriptionStatusActive, IsActive: true,
	}))
	appointment := &entity.Appointment{
		PatientID: newest.ID, PractitionerID: doctor.ID, AppointmentDate: t1.AddDate(0, 0, 1),
		SlotLabel: "10:00 AM", Status: entity.AppointmentStatusPending,
	}
	require.NoError(t, f.appointments.Create(context.Background(), appointment))

	merged, err := identity.MergeGroup(context.Background(), []entity.Patient{*newest, *withEmail})
	require.NoError(t, err)
	survivorID := merged.SurvivorID
	assert.Equal(t, withEmail.ID, survivorID)
	assert.Equal(t, []uuid.UUID{newest.ID}, merged.MergedIDs)

	ctx := context.Background()
	gone, err := f.patients.FindByID(ctx, newest.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	survivor, err := f.patients.FindByID(ctx, survivorID)
	require.NoError(t, err)
	require.NotNil(t, survivor)
	assert.Equal(t, "raj@x.com", survivor.Email)
	assert.Equal(t, "Pune", survivor.Address)
	assert.Equal(t, 35, survivor.Age, "empty field filled from the merged record")
	assert.Equal(t, "M", survivor.Gender)
	require.Len(t, survivor.VisitHistory, 1)
	require.NotNil(t, survivor.LastVisit)
	assert.True(t, survivor.LastVisit.Equal(visitAt))

	rx, err := f.prescriptions.FindByID(ctx, rxID)
	require.NoError(t, err)
	assert.Equal(t, survivorID, rx.PatientID)

	moved, err := f.appointments.FindByID(ctx, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, survivorID, moved.PatientID)

	assert.Contains(t, f.audit.Actions(), entity.AuditActionPatientMerge)
}

func TestMergePatients_Validation(t *testing.T) {
	f := newFixture(t)
	identity := f.identityUsecase()
	ctx := context.Background()

	raj := f.seedPatient(t, entity.Patient{Name: "Raj", Mobile: "999"})
	other := f.seedPatient(t, entity.Patient{Name: "Raj", Mobile: "111"})

	_, err := identity.MergePatients(ctx, []uuid.UUID{raj.ID})
	assert.ErrorIs(t, err, ErrMergeTooFewPatients)

	_, err = identity.MergePatients(ctx, []uuid.UUID{raj.ID, other.ID})
	assert.ErrorIs(t, err, ErrNotDuplicates)

	_, err = identity.MergePatients(ctx, []uuid.UUID{raj.ID, uuid.New()})
	assert.ErrorIs(t, err, ErrPatientNotFound)

	twin := f.seedPatient(t, entity.Patient{Name: "RAJ", Mobile: "999"})
	result, err := identity.MergePatients(ctx, []uuid.UUID{raj.ID, twin.ID})
	require.NoError(t, err)
	assert.Len(t, result.MergedIDs, 1)
	assert.Equal(t, 2, f.patients.Count())
}

func TestRunDeduplication(t *testing.T) {
	f := newFixture(t)
	identity := f.identityUsecase()
	ctx := context.Background()

	f.seedPatient(t, entity.Patient{Name: "Raj", Mobile: "999"})
	f.seedPatient(t, entity.Patient{Name: "raj", Mobile: "999"})
	f.seedPatient(t, entity.Patient{Name: "Meena", Mobile: "555"})
	f.seedPatient(t, entity.Patient{Name: "Meena", Mobile: "555"})
	f.seedPatient(t, entity.Patient{Name: "Meena", Mobile: "555"})
	f.seedPatient(t, entity.Patient{Name: "Solo", Mobile: "123"})

	preview, err := identity.FindDuplicates(ctx)
	require.NoError(t, err)
	assert.Len(t, preview, 2)

	release, err := f.guard.Acquire(ctx, dedupeGuardName, time.Minute)
	require.NoError(t, err)
	_, err = identity.RunDeduplication(ctx)
	assert.ErrorIs(t, err, ErrDeduplicationRunning)

	// The scheduler treats a concurrent run as a skip
	assert.NoError(t, DeduplicationJob(identity).Run(ctx, nil))
	assert.Equal(t, 6, f.patients.Count())
	release()

	result, err := identity.RunDeduplication(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Groups)
	assert.Equal(t, 3, result.Merged)
	assert.Equal(t, 3, f.patients.Count())

	again, err := identity.RunDeduplication(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Groups)
}

type mergeRaceSetup struct {
	f        *fixture
	identity PatientIdentityUsecase
	issuer   *prescriptionUsecase
	doctor   *entity.User
	survivor *entity.Patient
	donor    *entity.Patient
	item     *entity.InventoryItem
}

func newMergeRaceSetup(t *testing.T) *mergeRaceSetup {
	f := newFixture(t)
	doctor := f.seedUser(t, entity.RoleIDDoctor, "doctor@clinic.test")
	owner := doctor.ID
	return &mergeRaceSetup{
		f:        f,
		identity: f.identityUsecase(),
		issuer:   f.prescriptionUsecase(),
		doctor:   doctor,
		donor: f.seedPatient(t, entity.Patient{
			Name: "Raj", Mobile: "999", AssignedPractitionerID: &owner, CreatedAt: clinicClock,
		}),
		survivor: f.seedPatient(t, entity.Patient{
			Name: "Raj", Mobile: "999", Email: "raj@x.com", AssignedPractitionerID: &owner, CreatedAt: clinicClock.Add(-72 * time.Hour),
		}),
		item: f.seedItem(t, doctor.ID, "Paracetamol", 100),
	}
}

func (s *mergeRaceSetup) issue(patientID uuid.UUID) (*dto.PrescriptionResponse, error) {
	return s.issuer.Issue(asUser(s.doctor), &dto.IssuePrescriptionRequest{
		PatientID: patientID,
		LineItems: []dto.LineItemRequest{{InventoryItemID: s.item.ID, Quantity: 2}},
		Diagnosis: "fever",
	})
}

func (s *mergeRaceSetup) survivorRecord(t *testing.T) *entity.Patient {
	t.Helper()
	p, err := s.f.patients.FindByID(context.Background(), s.survivor.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestMergeGroup_KeepsVisitsRecordedAfterGroupWasLoaded(t *testing.T) {
	s := newMergeRaceSetup(t)
	ctx := context.Background()

	groups := FindDuplicateGroups([]entity.Patient{*s.survivor, *s.donor})
	require.Len(t, groups, 1)

	// Both records gain a visit after the scan
	onSurvivor, err := s.issue(s.survivor.ID)
	require.NoError(t, err)
	onDonor, err := s.issue(s.donor.ID)
	require.NoError(t, err)
	require.Equal(t, 96, s.f.quantity(s.item.ID))

	merged, err := s.identity.MergeGroup(ctx, groups[0].Patients)
	require.NoError(t, err)
	assert.Equal(t, s.survivor.ID, merged.SurvivorID)

	survivor := s.survivorRecord(t)
	require.Len(t, survivor.VisitHistory, 2)
	for _, rx := range []*dto.PrescriptionResponse{onSurvivor, onDonor} {
		assert.True(t, survivor.VisitHistory.HasPrescription(rx.ID), "visit for %s carried to survivor", rx.PrescriptionNumber)

		stored, err := s.f.prescriptions.FindByID(ctx, rx.ID)
		require.NoError(t, err)
		assert.Equal(t, s.survivor.ID, stored.PatientID)
	}
	assert.Equal(t, 96, s.f.quantity(s.item.ID))
}

func TestMergeGroup_DissolvedGroupIsLeftAlone(t *testing.T) {
	s := newMergeRaceSetup(t)
	ctx := context.Background()
	snapshot := []entity.Patient{*s.survivor, *s.donor}

	_, err := s.f.patients.Deactivate(ctx, s.donor.ID)
	require.NoError(t, err)

	_, err = s.identity.MergeGroup(ctx, snapshot)
	assert.ErrorIs(t, err, ErrMergeTooFewPatients)
	assert.Equal(t, 2, s.f.patients.Count())
	assert.NotContains(t, s.f.audit.Actions(), entity.AuditActionPatientMerge)
}

func TestMergeGroup_ConcurrentIssuanceLosesNoVisit(t *testing.T) {
	for round := 0; round < 20; round++ {
		s := newMergeRaceSetup(t)
		ctx := context.Background()
		snapshot := []entity.Patient{*s.survivor, *s.donor}

		const workers = 6
		var (
			wg       sync.WaitGroup
			start    = make(chan struct{})
			issued   = make([]*dto.PrescriptionResponse, workers)
			errs     = make([]error, workers)
			mergeErr error
		)
		for i := 0; i < workers; i++ {
			target := s.survivor.ID
			if i%2 == 1 {
				target = s.donor.ID
			}
			wg.Add(1)
			go func(i int, target uuid.UUID) {
				defer wg.Done()
				<-start
				issued[i], errs[i] = s.issue(target)
			}(i, target)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, mergeErr = s.identity.MergeGroup(ctx, snapshot)
		}()
		close(start)
		wg.Wait()

		require.NoError(t, mergeErr)
		gone, err := s.f.patients.FindByID(ctx, s.donor.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		survivor := s.survivorRecord(t)
		successes := 0
		for i := 0; i < workers; i++ {
			if errs[i] != nil {
				// Only issuances that raced the donor's removal may fail
				assert.ErrorIs(t, errs[i], ErrPatientNotFound)
				continue
			}
			successes++
			assert.True(t, survivor.VisitHistory.HasPrescription(issued[i].ID), "round %d: visit for %s lost", round, issued[i].PrescriptionNumber)

			stored, err := s.f.prescriptions.FindByID(ctx, issued[i].ID)
			require.NoError(t, err)
			assert.Equal(t, s.survivor.ID, stored.PatientID)
		}

		assert.Len(t, survivor.VisitHistory, successes)
		assert.Equal(t, successes, s.f.prescriptions.Count())
		assert.Equal(t, 100-2*successes, s.f.quantity(s.item.ID))
	}
}
