package entity

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout          = errors.New("timed out")
	ErrBusy             = errors.New("a workflow is already running")
	ErrNotFound         = errors.New("element not found")
	ErrNestingTooDeep   = errors.New("workflow nesting too deep")
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownCondition = errors.New("unknown condition")
	ErrUnknownFunc      = errors.New("unknown execute function")
	ErrRequiredCapture  = errors.New("required capture value missing")
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrWorkflowDisabled = errors.New("workflow is not enabled on this page")
	ErrPageNotDetected  = errors.New("no known page detected")
	ErrInvalidProfile   = errors.New("invalid profile slot")
)

// TimeoutError reports a wait that exceeded its bound.
type TimeoutError struct {
	What  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.After, e.What)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// StepError is a failed step. It always aborts the run it belongs to.
type StepError struct {
	Workflow string
	Index    int
	Kind     ActionKind
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step %d (%s): %v", e.Workflow, e.Index+1, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// AuthoredError is raised by an explicit error step.
type AuthoredError struct {
	Message string
}

func (e *AuthoredError) Error() string {
	if e.Message == "" {
		return "workflow aborted"
	}
	return e.Message
}

// FailureMessage returns the innermost step failure's message, which is
// what the operator needs to see for nested runs.
func FailureMessage(err error) string {
	for {
		var step *StepError
		if !errors.As(err, &step) {
			return err.Error()
		}
		err = step.Err
	}
}
