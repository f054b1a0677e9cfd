package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"healconnect/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysTakenRepo loses every claim, as if another writer always got there first.
type alwaysTakenRepo struct {
	attempts int
}

func (r *alwaysTakenRepo) FindMaxIdentifier(ctx context.Context, scope, prefix string) (string, error) {
	return "", nil
}

func (r *alwaysTakenRepo) InsertIfAbsent(ctx context.Context, scope, identifier string) (bool, error) {
	r.attempts++
	return false, nil
}

func (r *alwaysTakenRepo) Delete(ctx context.Context, identifier string) error {
	return nil
}

func TestAllocate_EmptyScopeStartsAtOne(t *testing.T) {
	allocator := NewSequenceAllocator(memory.NewSequenceRepository(), newTestLogger(), 5)

	code, err := allocator.AllocatePatientCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PAT0001", code)

	code, err = allocator.AllocatePatientCode(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PAT0002", code)
}

func TestAllocatePrescriptionNumber_ScopedPerDay(t *testing.T) {
	allocator := NewSequenceAllocator(memory.NewSequenceRepository(), newTestLogger(), 5)
	ctx := context.Background()
	day := time.Date(2025, 10, 15, 9, 30, 0, 0, time.UTC)

	first, err := allocator.AllocatePrescriptionNumber(ctx, day)
	require.NoError(t, err)
	second, err := allocator.AllocatePrescriptionNumber(ctx, day)
	require.NoError(t, err)
	nextDay, err := allocator.AllocatePrescriptionNumber(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)

	assert.Equal(t, "RX20251015001", first)
	assert.Equal(t, "RX20251015002", second)
	assert.Equal(t, "RX20251016001", nextDay)
}

func TestAllocate_ConcurrentCallersGetDistinctContiguousCodes(t *testing.T) {
	const workers = 40

	repo := memory.NewSequenceRepository()
	// Each lost claim means another worker won a distinct number, so a budget
	// equal to the worker count always suffices.
	allocator := NewSequenceAllocator(repo, newTestLogger(), workers)

	var wg sync.WaitGroup
	codes := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = allocator.AllocatePatientCode(context.Background())
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	sort.Strings(codes)
	for i, code := range codes {
		assert.Equal(t, fmt.Sprintf("PAT%04d", i+1), code)
	}
	assert.Len(t, repo.Claimed(PatientScope), workers)
}

func TestAllocate_ExhaustsRetryBudget(t *testing.T) {
	repo := &alwaysTakenRepo{}
	allocator := NewSequenceAllocator(repo, newTestLogger(), 3)

	_, err := allocator.AllocatePatientCode(context.Background())
	assert.ErrorIs(t, err, ErrAllocationExhausted)
	assert.Equal(t, 3, repo.attempts)
}

func TestAllocate_WidthOverflowIsExhaustion(t *testing.T) {
	repo := memory.NewSequenceRepository()
	_, err := repo.InsertIfAbsent(context.Background(), PatientScope, "PAT9999")
	require.NoError(t, err)

	allocator := NewSequenceAllocator(repo, newTestLogger(), 5)
	_, err = allocator.AllocatePatientCode(context.Background())
	assert.ErrorIs(t, err, ErrAllocationExhausted)
}

func TestAllocate_StoreErrorIsReturned(t *testing.T) {
	repo := memory.NewSequenceRepository()
	repo.FailInsert = errors.New("connection reset")

	allocator := NewSequenceAllocator(repo, newTestLogger(), 5)
	_, err := allocator.AllocatePatientCode(context.Background())
	assert.EqualError(t, err, "connection reset")
}

func TestRelease_MakesNumberAvailableAgain(t *testing.T) {
	repo := memory.NewSequenceRepository()
	allocator := NewSequenceAllocator(repo, newTestLogger(), 5)
	ctx := context.Background()

	_, err := allocator.AllocatePatientCode(ctx)
	require.NoError(t, err)
	second, err := allocator.AllocatePatientCode(ctx)
	require.NoError(t, err)

	require.NoError(t, allocator.Release(ctx, second))

	again, err := allocator.AllocatePatientCode(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, again)
}

func TestAllocate_CancelledContext(t *testing.T) {
	allocator := NewSequenceAllocator(memory.NewSequenceRepository(), newTestLogger(), 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := allocator.AllocatePatientCode(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
