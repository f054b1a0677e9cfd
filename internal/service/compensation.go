package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const compensationTimeout = 5 * time.Second

type compensationStep struct {
	name string
	undo func(ctx context.Context) error
}

// Compensation is a stack of inverse actions for a multi-step operation.
// Every forward step that succeeds pushes its inverse; on failure Unwind runs
// them newest first.
type Compensation struct {
	log   *logrus.Logger
	steps []compensationStep
}

func NewCompensation(log *logrus.Logger) *Compensation {
	return &Compensation{log: log}
}

func (c *Compensation) Push(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

func (c *Compensation) Len() int {
	return len(c.steps)
}

// Unwind runs on a detached context so an aborted request still restores
// state. A failing inverse does not stop the remaining ones.
func (c *Compensation) Unwind() error {
	ctx, cancel := context.WithTimeout(context.Background(), compensationTimeout)
	defer cancel()

	var errs []error
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.undo(ctx); err != nil {
			c.log.Errorf("CRITICAL: Failed to compensate %s: %+v", step.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	c.steps = nil
	return errors.Join(errs...)
}
