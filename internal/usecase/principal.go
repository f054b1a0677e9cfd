package usecase

import (
	"context"
	"errors"
	"time"

	"healconnect/internal/delivery/http/middleware"

	"github.com/google/uuid"
)

var (
	ErrUnauthenticated   = errors.New("user not found in context")
	ErrUnauthorizedOwner = errors.New("you do not own this resource")
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// principal is the authenticated caller.
type principal struct {
	UserID uuid.UUID
	RoleID int
}

func currentPrincipal(ctx context.Context) (principal, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return principal{}, ErrUnauthenticated
	}
	roleID, _ := middleware.GetRoleIDFromContext(ctx)
	return principal{UserID: userID, RoleID: roleID}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// parseDate parses YYYY-MM-DD in the server's local zone.
func parseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, value, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDateFormat
	}
	return t, nil
}

func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
