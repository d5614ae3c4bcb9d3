// Package saga coordinates multi-step operations that must be undone in
// reverse order when a later step fails. It is synchronous: steps run in the
// caller's goroutine and compensation happens before Execute returns.
package saga

import (
	"context"
	"fmt"
)

// ExecuteFunc is the function signature for step execution
type ExecuteFunc func(ctx context.Context) error

// CompensateFunc is the function signature for step compensation
type CompensateFunc func(ctx context.Context) error

// Step represents a single step in a saga
type Step struct {
	Name       string
	Execute    ExecuteFunc
	Compensate CompensateFunc
}

// Logger interface for saga logging
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NoOpLogger is a no-op logger implementation
type NoOpLogger struct{}

func (l *NoOpLogger) Info(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Error(msg string, fields ...interface{}) {}

// CompensationError reports a saga failure. Cause is the error that triggered
// the unwind; StepErrors holds any failures from the compensation functions
// themselves. A non-empty StepErrors means state was left behind that needs
// manual cleanup.
type CompensationError struct {
	Saga       string
	Cause      error
	StepErrors []error
}

func (e *CompensationError) Error() string {
	msg := fmt.Sprintf("saga %s failed: %v", e.Saga, e.Cause)
	if len(e.StepErrors) > 0 {
		msg = fmt.Sprintf("%s (compensation incomplete: %d step(s) failed)", msg, len(e.StepErrors))
	}
	return msg
}

// Unwrap exposes the cause and every compensation failure to errors.Is/As.
func (e *CompensationError) Unwrap() []error {
	errs := make([]error, 0, 1+len(e.StepErrors))
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return append(errs, e.StepErrors...)
}

// Saga is an ordered list of steps executed front to back. On the first
// failure, the compensation functions of all completed steps run back to
// front.
type Saga struct {
	name   string
	steps  []*Step
	logger Logger
}

// New creates a new saga with the given name
func New(name string, logger Logger) *Saga {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &Saga{
		name:   name,
		steps:  make([]*Step, 0),
		logger: logger,
	}
}

// AddStep appends a step to the saga
func (s *Saga) AddStep(step *Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Len returns the number of registered steps
func (s *Saga) Len() int {
	return len(s.steps)
}

// Execute runs all steps in order. If a step fails, completed steps are
// compensated in reverse order and a *CompensationError is returned. A nil
// return means every step completed.
func (s *Saga) Execute(ctx context.Context) error {
	completed := make([]*Step, 0, len(s.steps))

	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("saga cancelled", "saga", s.name, "step", step.Name)
			return s.compensate(ctx, completed, err)
		}

		if err := step.Execute(ctx); err != nil {
			s.logger.Error("saga step failed", "saga", s.name, "step", step.Name, "error", err)
			return s.compensate(ctx, completed, err)
		}

		s.logger.Info("saga step completed", "saga", s.name, "step", step.Name)
		completed = append(completed, step)
	}

	return nil
}

// compensate unwinds completed steps in reverse order. It runs on a context
// detached from the caller's so that cleanup still happens when the request
// context is already cancelled.
func (s *Saga) compensate(ctx context.Context, completed []*Step, cause error) error {
	compErr := &CompensationError{
		Saga:  s.name,
		Cause: cause,
	}

	compCtx := context.WithoutCancel(ctx)

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Compensate == nil {
			s.logger.Warn("no compensation function for step", "saga", s.name, "step", step.Name)
			continue
		}

		if err := step.Compensate(compCtx); err != nil {
			s.logger.Error("saga compensation failed", "saga", s.name, "step", step.Name, "error", err)
			compErr.StepErrors = append(compErr.StepErrors, fmt.Errorf("compensate %s: %w", step.Name, err))
			continue
		}

		s.logger.Info("saga step compensated", "saga", s.name, "step", step.Name)
	}

	return compErr
}
