package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"healconnect/internal/domain/repository"

	"github.com/sirupsen/logrus"
)

// ErrAllocationExhausted is returned when the retry budget runs out or the
// next number no longer fits the identifier's fixed width.
var ErrAllocationExhausted = errors.New("identifier allocation exhausted, try again later")

const (
	DefaultSequenceMaxAttempts = 10

	PatientScope       = "patients"
	PatientCodePrefix  = "PAT"
	PatientCodeWidth   = 4
	PrescriptionWidth  = 3
	prescriptionLayout = "20060102"
)

// PrescriptionScope returns the per-day scope and prefix for prescription
// numbers issued on day, e.g. ("prescriptions:20251015", "RX20251015").
func PrescriptionScope(day time.Time) (scope, prefix string) {
	date := day.Format(prescriptionLayout)
	return "prescriptions:" + date, "RX" + date
}

// SequenceAllocator hands out human-readable sequential identifiers.
//
// It never locks: each attempt reads the current maximum, proposes the next
// number and tries to claim it. Losing the claim to a concurrent writer just
// means reading the maximum again. The allocator keeps no state, so any number
// of instances can share one database.
type SequenceAllocator struct {
	repo        repository.SequenceRepository
	log         *logrus.Logger
	maxAttempts int
}

func NewSequenceAllocator(repo repository.SequenceRepository, log *logrus.Logger, maxAttempts int) *SequenceAllocator {
	if maxAttempts < 1 {
		maxAttempts = DefaultSequenceMaxAttempts
	}
	return &SequenceAllocator{
		repo:        repo,
		log:         log,
		maxAttempts: maxAttempts,
	}
}

// Allocate claims the next identifier in scope. The first identifier of an
// empty scope is number 1.
func (a *SequenceAllocator) Allocate(ctx context.Context, scope, prefix string, padWidth int) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		current, err := a.repo.FindMaxIdentifier(ctx, scope, prefix)
		if err != nil {
			a.log.Warnf("Failed to read max identifier for scope %s: %+v", scope, err)
			return "", err
		}

		next := 1
		if current != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(current, prefix))
			if err != nil {
				return "", fmt.Errorf("parse identifier %q: %w", current, err)
			}
			next = n + 1
		}

		candidate := fmt.Sprintf("%s%0*d", prefix, padWidth, next)
		if len(candidate) > len(prefix)+padWidth {
			a.log.Errorf("Scope %s has outgrown %d digits at %s", scope, padWidth, candidate)
			return "", ErrAllocationExhausted
		}

		claimed, err := a.repo.InsertIfAbsent(ctx, scope, candidate)
		if err != nil {
			a.log.Warnf("Failed to claim identifier %s: %+v", candidate, err)
			return "", err
		}
		if claimed {
			a.log.Debugf("Allocated %s in scope %s after %d attempt(s)", candidate, scope, attempt)
			return candidate, nil
		}

		a.log.Debugf("Identifier %s already claimed, retrying (attempt %d/%d)", candidate, attempt, a.maxAttempts)
	}

	a.log.Warnf("Allocation exhausted for scope %s after %d attempts", scope, a.maxAttempts)
	return "", ErrAllocationExhausted
}

// Release gives back an identifier that was allocated but never used.
func (a *SequenceAllocator) Release(ctx context.Context, identifier string) error {
	if err := a.repo.Delete(ctx, identifier); err != nil {
		a.log.Warnf("Failed to release identifier %s: %+v", identifier, err)
		return err
	}
	return nil
}

// AllocatePatientCode returns the next PAT#### code.
func (a *SequenceAllocator) AllocatePatientCode(ctx context.Context) (string, error) {
	return a.Allocate(ctx, PatientScope, PatientCodePrefix, PatientCodeWidth)
}

// AllocatePrescriptionNumber returns the next RX<YYYYMMDD><###> for day.
func (a *SequenceAllocator) AllocatePrescriptionNumber(ctx context.Context, day time.Time) (string, error) {
	scope, prefix := PrescriptionScope(day)
	return a.Allocate(ctx, scope, prefix, PrescriptionWidth)
}
