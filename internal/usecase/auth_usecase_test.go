package usecase

import (
	"context"
	"testing"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
	"healconnect/internal/repository/memory"
	"healconnect/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Token issuance needs Redis and a signer; these tests stop before it.
func (f *fixture) authUsecase() AuthUsecase {
	return NewAuthUsecase(f.log, memory.NewTransactor(), f.users, f.patients, f.allocator, f.auditService, nil, nil)
}

func TestRegisterPatient_CreatesLinkedRecord(t *testing.T) {
	f := newFixture(t)
	uc := f.authUsecase()

	resp, err := uc.RegisterPatient(context.Background(), &dto.RegisterPatientRequest{
		Email:    " Asha@Mail.test ",
		Password: "secret123",
		FullName: "Asha Rao",
		Mobile:   "9876500001",
		Age:      29,
		Gender:   "F",
	})
	require.NoError(t, err)
	assert.Equal(t, "asha@mail.test", resp.Email)
	assert.Equal(t, entity.RolePatient, resp.Role)
	require.NotNil(t, resp.Patient)
	assert.Equal(t, "PAT0001", resp.Patient.PatientCode)
	assert.Equal(t, "Asha Rao", resp.Patient.Name)
	assert.Equal(t, "9876500001", resp.Patient.Mobile)
	assert.Equal(t, "asha@mail.test", resp.Patient.Email)
	assert.Equal(t, "self_registration", resp.Patient.Source)
	require.NotNil(t, resp.Patient.AccountID)
	assert.Equal(t, resp.ID, *resp.Patient.AccountID)

	linked, err := f.patients.FindByAccountID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.NotNil(t, linked)
	assert.Equal(t, 29, linked.Age)
}

func TestRegisterPatient_DuplicateEmailReleasesCode(t *testing.T) {
	f := newFixture(t)
	uc := f.authUsecase()
	f.seedUser(t, entity.RoleIDPatient, "taken@mail.test")

	_, err := uc.RegisterPatient(context.Background(), &dto.RegisterPatientRequest{
		Email: "taken@mail.test", Password: "secret123", FullName: "Someone", Mobile: "9876500001",
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
	assert.Empty(t, f.sequences.Claimed(service.PatientScope))
	assert.Equal(t, 0, f.patients.Count())
}

func TestLogin_RejectsBadCredentialsAndDisabledAccounts(t *testing.T) {
	f := newFixture(t)
	uc := f.authUsecase()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	disabled := false
	require.NoError(t, f.users.Create(context.Background(), &entity.User{
		Email: "off@clinic.test", Password: string(hash), RoleID: entity.RoleIDDoctor, IsActive: &disabled,
	}))

	_, err = uc.Login(context.Background(), &dto.LoginRequest{Email: "nobody@clinic.test", Password: "secret123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = uc.Login(context.Background(), &dto.LoginRequest{Email: "off@clinic.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = uc.Login(context.Background(), &dto.LoginRequest{Email: "OFF@clinic.test", Password: "secret123"})
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRegisterPractitioner(t *testing.T) {
	f := newFixture(t)
	uc := f.authUsecase()
	admin := f.seedUser(t, entity.RoleIDAdmin, "admin@clinic.test")

	resp, err := uc.RegisterPractitioner(asUser(admin), &dto.RegisterPractitionerRequest{
		Email: "dr.iyer@clinic.test", Password: "secret123", FullName: "Dr Iyer",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleDoctor, resp.Role)
	assert.Nil(t, resp.Patient)

	_, err = uc.RegisterPractitioner(asUser(admin), &dto.RegisterPractitionerRequest{
		Email: "dr.iyer@clinic.test", Password: "secret123", FullName: "Dr Iyer",
	})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}
