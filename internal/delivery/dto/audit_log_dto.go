package dto

import (
	"time"

	"healconnect/internal/domain/entity"

	"github.com/google/uuid"
)

// Request DTOs

type AuditLogFilterRequest struct {
	Action   string `json:"action"`
	EntityID string `json:"entity_id"`
	Page     int    `json:"page"`
	Limit    int    `json:"limit"`
}

// Response DTOs

type AuditLogResponse struct {
	ID        int64       `json:"id"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
	UserEmail string      `json:"user_email,omitempty"`
	Action    string      `json:"action"`
	Metadata  entity.JSON `json:"metadata"`
	CreatedAt time.Time   `json:"created_at"`
}

type AuditLogListResponse struct {
	Logs  []AuditLogResponse `json:"logs"`
	Total int64              `json:"total"`
}
