package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"healconnect/internal/converter"
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
	"healconnect/internal/domain/repository"
	"healconnect/internal/service"
	"healconnect/pkg/jwt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenRevoked       = errors.New("token has been revoked")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountDisabled    = errors.New("account is disabled")
)

type AuthUsecase interface {
	RegisterPatient(ctx context.Context, req *dto.RegisterPatientRequest) (*dto.UserResponse, error)
	RegisterPractitioner(ctx context.Context, req *dto.RegisterPractitionerRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	Logout(ctx context.Context, userID uuid.UUID, accessTokenID string) error
	RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error)
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error)
}

type authUsecase struct {
	log          *logrus.Logger
	transactor   repository.Transactor
	userRepo     repository.UserRepository
	patientRepo  repository.PatientRepository
	allocator    *service.SequenceAllocator
	auditService service.AuditService
	jwtService   *jwt.JWTService
	redisClient  *redis.Client
}

func NewAuthUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	userRepo repository.UserRepository,
	patientRepo repository.PatientRepository,
	allocator *service.SequenceAllocator,
	auditService service.AuditService,
	jwtService *jwt.JWTService,
	redisClient *redis.Client,
) AuthUsecase {
	return &authUsecase{
		log:          log,
		transactor:   transactor,
		userRepo:     userRepo,
		patientRepo:  patientRepo,
		allocator:    allocator,
		auditService: auditService,
		jwtService:   jwtService,
		redisClient:  redisClient,
	}
}

// RegisterPatient creates the login account and the linked patient record in
// one transaction. Contact fields are copied onto the patient.
func (u *authUsecase) RegisterPatient(ctx context.Context, req *dto.RegisterPatientRequest) (*dto.UserResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return nil, err
	}

	// The code is claimed outside the transaction, release it if we roll back
	code, err := u.allocator.AllocatePatientCode(ctx)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	active := true
	user := &entity.User{
		Email:    email,
		Password: string(hashedPassword),
		FullName: strings.TrimSpace(req.FullName),
		Mobile:   strings.TrimSpace(req.Mobile),
		RoleID:   entity.RoleIDPatient,
		IsActive: &active,
	}
	var patient *entity.Patient

	err = u.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := u.userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				return ErrEmailAlreadyExists
			}
			return err
		}

		accountID := user.ID
		patient = &entity.Patient{
			PatientCode:    code,
			AccountID:      &accountID,
			Name:           user.FullName,
			Mobile:         user.Mobile,
			Email:          user.Email,
			Age:            req.Age,
			Gender:         req.Gender,
			Address:        req.Address,
			MedicalHistory: req.MedicalHistory,
			Source:         entity.PatientSourceSelfRegistration,
			VisitHistory:   entity.VisitHistory{},
			IsActive:       true,
		}
		return u.patientRepo.Create(ctx, patient)
	})
	if err != nil {
		if !errors.Is(err, ErrEmailAlreadyExists) {
			u.log.Warnf("Failed to register patient: %+v", err)
		}
		if releaseErr := u.allocator.Release(ctx, code); releaseErr != nil {
			u.log.Errorf("CRITICAL: Failed to release patient code %s: %+v", code, releaseErr)
		}
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, &user.ID, entity.AuditActionUserRegister, "user", user.ID.String(),
		map[string]interface{}{"email": user.Email, "patient_code": patient.PatientCode},
	); err != nil {
		u.log.Warnf("Failed to audit registration %s: %+v", user.ID, err)
	}

	u.log.Infof("Patient registered: user=%s, code=%s", user.ID, patient.PatientCode)
	resp := converter.UserToResponse(user)
	resp.Patient = converter.PatientToResponse(patient)
	return resp, nil
}

func (u *authUsecase) RegisterPractitioner(ctx context.Context, req *dto.RegisterPractitionerRequest) (*dto.UserResponse, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		u.log.Warnf("Failed to hash password: %+v", err)
		return nil, err
	}

	active := true
	user := &entity.User{
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashedPassword),
		FullName: strings.TrimSpace(req.FullName),
		Mobile:   strings.TrimSpace(req.Mobile),
		RoleID:   entity.RoleIDDoctor,
		IsActive: &active,
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEmailAlreadyExists
		}
		u.log.Warnf("Failed to create practitioner: %+v", err)
		return nil, err
	}

	var actor *uuid.UUID
	if caller, err := currentPrincipal(ctx); err == nil {
		actor = &caller.UserID
	}
	if err := u.auditService.LogCreate(ctx, actor, entity.AuditActionUserRegister, "user", user.ID.String(),
		map[string]interface{}{"email": user.Email, "role": entity.RoleDoctor},
	); err != nil {
		u.log.Warnf("Failed to audit registration %s: %+v", user.ID, err)
	}

	resp := converter.UserToResponse(user)
	return resp, nil
}

func (u *authUsecase) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		u.log.Warnf("Failed to find user by email: %+v", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, ErrAccountDisabled
	}

	tokens, err := u.issueTokens(ctx, user.ID, user.Email, user.RoleID)
	if err != nil {
		return nil, err
	}

	if err := u.auditService.LogCreate(ctx, &user.ID, entity.AuditActionUserLogin, "user", user.ID.String(), nil); err != nil {
		u.log.Warnf("Failed to audit login %s: %+v", user.ID, err)
	}
	return tokens, nil
}

// Logout revokes the presented access token and every refresh token of the
// user, so the session cannot be silently renewed.
func (u *authUsecase) Logout(ctx context.Context, userID uuid.UUID, accessTokenID string) error {
	accessKey := fmt.Sprintf("access_token:%s:%s", userID.String(), accessTokenID)
	if err := u.redisClient.Del(ctx, accessKey).Err(); err != nil {
		u.log.Warnf("Failed to delete access token: %+v", err)
		return err
	}

	refreshPattern := fmt.Sprintf("refresh_token:%s:*", userID.String())
	refreshKeys, err := u.redisClient.Keys(ctx, refreshPattern).Result()
	if err != nil {
		u.log.Warnf("Failed to get refresh token keys: %+v", err)
		return err
	}
	if len(refreshKeys) > 0 {
		if err := u.redisClient.Del(ctx, refreshKeys...).Err(); err != nil {
			u.log.Warnf("Failed to delete refresh tokens: %+v", err)
			return err
		}
	}

	if err := u.auditService.LogCreate(ctx, &userID, entity.AuditActionUserLogout, "user", userID.String(), nil); err != nil {
		u.log.Warnf("Failed to audit logout %s: %+v", userID, err)
	}
	return nil
}

func (u *authUsecase) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.TokenResponse, error) {
	claims, err := u.jwtService.ValidateToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != jwt.RefreshToken {
		return nil, ErrInvalidToken
	}

	refreshKey := fmt.Sprintf("refresh_token:%s:%s", claims.UserID.String(), claims.TokenID)
	deleted, err := u.redisClient.Del(ctx, refreshKey).Result()
	if err != nil {
		u.log.Warnf("Failed to delete old refresh token: %+v", err)
		return nil, err
	}
	// Del doubles as the existence check, a token can be rotated only once
	if deleted == 0 {
		return nil, ErrTokenRevoked
	}

	return u.issueTokens(ctx, claims.UserID, claims.Email, claims.RoleID)
}

func (u *authUsecase) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*dto.UserResponse, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if err != nil {
		u.log.Warnf("Failed to find user by ID: %+v", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	resp := converter.UserToResponse(user)

	if user.RoleID == entity.RoleIDPatient {
		patient, err := u.patientRepo.FindByAccountID(ctx, user.ID)
		if err != nil {
			u.log.Warnf("Failed to find patient for account %s: %+v", user.ID, err)
			return nil, err
		}
		resp.Patient = converter.PatientToResponse(patient)
	}
	return resp, nil
}

func (u *authUsecase) issueTokens(ctx context.Context, userID uuid.UUID, email string, roleID int) (*dto.TokenResponse, error) {
	accessToken, accessTokenID, err := u.jwtService.GenerateAccessToken(userID, email, roleID)
	if err != nil {
		u.log.Warnf("Failed to generate access token: %+v", err)
		return nil, err
	}

	refreshToken, refreshTokenID, err := u.jwtService.GenerateRefreshToken(userID, email, roleID)
	if err != nil {
		u.log.Warnf("Failed to generate refresh token: %+v", err)
		return nil, err
	}

	accessKey := fmt.Sprintf("access_token:%s:%s", userID.String(), accessTokenID)
	refreshKey := fmt.Sprintf("refresh_token:%s:%s", userID.String(), refreshTokenID)

	pipe := u.redisClient.TxPipeline()
	pipe.Set(ctx, accessKey, "valid", u.jwtService.GetAccessExpiry())
	pipe.Set(ctx, refreshKey, "valid", u.jwtService.GetRefreshExpiry())
	if _, err := pipe.Exec(ctx); err != nil {
		u.log.Warnf("Failed to store tokens in Redis: %+v", err)
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(u.jwtService.GetAccessExpiry().Seconds()),
	}, nil
}
