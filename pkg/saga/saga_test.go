package saga

import (
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	s := New("test-saga", nil)

	if s.name != "test-saga" {
		t.Errorf("expected name 'test-saga', got '%s'", s.name)
	}
	if s.Len() != 0 {
		t.Errorf("expected 0 steps, got %d", s.Len())
	}
	if s.logger == nil {
		t.Error("expected nil logger to be replaced with NoOpLogger")
	}
}

func TestAddStep(t *testing.T) {
	s := New("test-saga", nil).
		AddStep(&Step{Name: "step1"}).
		AddStep(&Step{Name: "step2"})

	if s.Len() != 2 {
		t.Errorf("expected 2 steps, got %d", s.Len())
	}
	if s.steps[0].Name != "step1" {
		t.Errorf("expected first step 'step1', got '%s'", s.steps[0].Name)
	}
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	var order []string

	s := New("test-saga", nil).
		AddStep(&Step{
			Name:    "step1",
			Execute: func(ctx context.Context) error { order = append(order, "step1"); return nil },
			Compensate: func(ctx context.Context) error {
				t.Error("compensation should not run on success")
				return nil
			},
		}).
		AddStep(&Step{
			Name:    "step2",
			Execute: func(ctx context.Context) error { order = append(order, "step2"); return nil },
		})

	if err := s.Execute(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(order) != 2 || order[0] != "step1" || order[1] != "step2" {
		t.Errorf("expected execution order [step1 step2], got %v", order)
	}
}

func TestExecute_FailureCompensatesInReverseOrder(t *testing.T) {
	var compensated []string
	stepErr := errors.New("step3 failed")

	s := New("test-saga", nil).
		AddStep(&Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = append(compensated, "step1"); return nil },
		}).
		AddStep(&Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = append(compensated, "step2"); return nil },
		}).
		AddStep(&Step{
			Name:    "step3",
			Execute: func(ctx context.Context) error { return stepErr },
			Compensate: func(ctx context.Context) error {
				t.Error("failed step must not be compensated")
				return nil
			},
		})

	err := s.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if len(compensated) != 2 || compensated[0] != "step2" || compensated[1] != "step1" {
		t.Errorf("expected compensation order [step2 step1], got %v", compensated)
	}

	var compErr *CompensationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected *CompensationError, got %T", err)
	}
	if !errors.Is(compErr.Cause, stepErr) {
		t.Errorf("expected cause %v, got %v", stepErr, compErr.Cause)
	}
	if len(compErr.StepErrors) != 0 {
		t.Errorf("expected no compensation errors, got %v", compErr.StepErrors)
	}
	if !errors.Is(err, stepErr) {
		t.Error("expected errors.Is to find the cause through the saga error")
	}
}

func TestExecute_CompensationFailureIsCollected(t *testing.T) {
	stepErr := errors.New("step2 failed")
	undoErr := errors.New("undo failed")

	s := New("test-saga", nil).
		AddStep(&Step{
			Name:       "step1",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { return undoErr },
		}).
		AddStep(&Step{
			Name:    "step2",
			Execute: func(ctx context.Context) error { return stepErr },
		})

	err := s.Execute(context.Background())

	var compErr *CompensationError
	if !errors.As(err, &compErr) {
		t.Fatalf("expected *CompensationError, got %T", err)
	}
	if len(compErr.StepErrors) != 1 {
		t.Fatalf("expected 1 compensation error, got %d", len(compErr.StepErrors))
	}
	if !errors.Is(compErr.StepErrors[0], undoErr) {
		t.Errorf("expected step error to wrap %v, got %v", undoErr, compErr.StepErrors[0])
	}
	// Both the cause and the undo failure are reachable via errors.Is
	if !errors.Is(err, stepErr) {
		t.Error("expected errors.Is to find the cause")
	}
	if !errors.Is(err, undoErr) {
		t.Error("expected errors.Is to find the compensation failure")
	}
}

func TestExecute_StepWithoutCompensateIsSkipped(t *testing.T) {
	compensated := false

	s := New("test-saga", nil).
		AddStep(&Step{
			Name:    "step1",
			Execute: func(ctx context.Context) error { return nil },
		}).
		AddStep(&Step{
			Name:       "step2",
			Execute:    func(ctx context.Context) error { return nil },
			Compensate: func(ctx context.Context) error { compensated = true; return nil },
		}).
		AddStep(&Step{
			Name:    "step3",
			Execute: func(ctx context.Context) error { return errors.New("boom") },
		})

	err := s.Execute(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !compensated {
		t.Error("expected step2 to be compensated")
	}
}

func TestExecute_CancelledContextTriggersCompensation(t *testing.T) {
	compensated := false
	ctx, cancel := context.WithCancel(context.Background())

	s := New("test-saga", nil).
		AddStep(&Step{
			Name: "step1",
			Execute: func(ctx context.Context) error {
				cancel() // cancelled while the saga is mid-flight
				return nil
			},
			Compensate: func(ctx context.Context) error {
				// Compensation context must survive the cancellation
				if ctx.Err() != nil {
					t.Errorf("expected live compensation context, got %v", ctx.Err())
				}
				compensated = true
				return nil
			},
		}).
		AddStep(&Step{
			Name: "step2",
			Execute: func(ctx context.Context) error {
				t.Error("step2 must not execute after cancellation")
				return nil
			},
		})

	err := s.Execute(ctx)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled cause, got %v", err)
	}
	if !compensated {
		t.Error("expected step1 to be compensated")
	}
}

func TestCompensationError_Error(t *testing.T) {
	err := &CompensationError{
		Saga:  "booking",
		Cause: errors.New("seat taken"),
	}

	if err.Error() != "saga booking failed: seat taken" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	err.StepErrors = append(err.StepErrors, errors.New("undo failed"))
	want := "saga booking failed: seat taken (compensation incomplete: 1 step(s) failed)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
