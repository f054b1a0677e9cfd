package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompensation_UnwindsNewestFirst(t *testing.T) {
	comp := NewCompensation(newTestLogger())

	var order []string
	for _, name := range []string{"unassign", "credit", "release"} {
		name := name
		comp.Push(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	require.Equal(t, 3, comp.Len())

	require.NoError(t, comp.Unwind())
	assert.Equal(t, []string{"release", "credit", "unassign"}, order)
	assert.Equal(t, 0, comp.Len())
}

func TestCompensation_FailureDoesNotStopRemainingSteps(t *testing.T) {
	comp := NewCompensation(newTestLogger())
	boom := errors.New("boom")

	ran := 0
	comp.Push("first", func(ctx context.Context) error {
		ran++
		return nil
	})
	comp.Push("second", func(ctx context.Context) error {
		ran++
		return boom
	})

	err := comp.Unwind()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, 2, ran)
}

func TestCompensation_RunsOnLiveContext(t *testing.T) {
	comp := NewCompensation(newTestLogger())

	var ctxErr error
	comp.Push("check", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	})

	require.NoError(t, comp.Unwind())
	assert.NoError(t, ctxErr)
}
