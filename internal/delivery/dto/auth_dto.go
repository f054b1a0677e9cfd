package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RegisterPatientRequest creates a login account and its linked patient record.
type RegisterPatientRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required,min=6"`
	FullName       string `json:"full_name" validate:"required,min=2"`
	Mobile         string `json:"mobile" validate:"required,min=7,max=20"`
	Age            int    `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender         string `json:"gender" validate:"omitempty,oneof=M F O"`
	Address        string `json:"address" validate:"omitempty"`
	MedicalHistory string `json:"medical_history" validate:"omitempty"`
}

// RegisterPractitionerRequest creates a doctor account. Admin only.
type RegisterPractitionerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,min=2"`
	Mobile   string `json:"mobile" validate:"omitempty,min=7,max=20"`
}

// Response DTOs

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type UserResponse struct {
	ID        uuid.UUID        `json:"id"`
	Email     string           `json:"email"`
	FullName  string           `json:"full_name"`
	Mobile    string           `json:"mobile,omitempty"`
	Role      string           `json:"role"`
	Patient   *PatientResponse `json:"patient,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
