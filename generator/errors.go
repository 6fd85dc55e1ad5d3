package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Step names a stage of the pipeline.
type Step string

const (
	StepResearch Step = "research"
	StepPlanning Step = "planning"
	StepReview   Step = "review"
	// StepExplore is the standalone discovery call made before any planning.
	StepExplore Step = "explore"
)

// retryable upstream statuses: too-many-requests, internal-server-error,
// service-unavailable, gateway-timeout.
var retryableStatus = map[int]bool{429: true, 500: true, 503: true, 504: true}

// RetryableStatus reports whether an upstream HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return retryableStatus[code]
}

// TransientUpstreamError marks a failure the Invoker retries.
type TransientUpstreamError struct {
	StatusCode int
	Err        error
}

func (e *TransientUpstreamError) Error() string {
	return fmt.Sprintf("transient upstream error (status %d): %v", e.StatusCode, e.Err)
}

func (e *TransientUpstreamError) Unwrap() error { return e.Err }

// UpstreamStatusError wraps an upstream failure with its HTTP status. LLM
// clients should return it so the retryable/fatal split stays in one place.
func UpstreamStatusError(code int, err error) error {
	if RetryableStatus(code) {
		return &TransientUpstreamError{StatusCode: code, Err: err}
	}
	return fmt.Errorf("upstream status %d: %w", code, err)
}

// FatalUpstreamError ends a model call for good: a non-retryable failure, an
// exhausted attempt budget, or cancellation during backoff.
type FatalUpstreamError struct {
	Attempts  int
	Backoff   time.Duration
	Exhausted bool
	Err       error
}

func (e *FatalUpstreamError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("upstream failed after %d attempts (%s backoff): %v", e.Attempts, e.Backoff, e.Err)
	}
	return fmt.Sprintf("upstream failed on attempt %d: %v", e.Attempts, e.Err)
}

func (e *FatalUpstreamError) Unwrap() error { return e.Err }

// MalformedResponseError means the model answered but the answer could not be
// shaped into the step's structure.
type MalformedResponseError struct {
	Step Step
	Raw  string
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Step, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func malformed(step Step, raw string, format string, args ...any) error {
	return &MalformedResponseError{Step: step, Raw: raw, Err: fmt.Errorf(format, args...)}
}

// StepError is how the Session reports which stage of a run failed.
type StepError struct {
	Step      Step
	Iteration int
	Err       error
}

func (e *StepError) Error() string {
	if e.Step == StepResearch {
		return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s step failed (iteration %d): %v", e.Step, e.Iteration, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ErrorClass names the taxonomy class of err for reports and storage.
func ErrorClass(err error) string {
	var (
		fatal     *FatalUpstreamError
		bad       *MalformedResponseError
		transient *TransientUpstreamError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	case errors.As(err, &bad):
		return "MalformedResponseError"
	case errors.As(err, &fatal):
		return "FatalUpstreamError"
	case errors.As(err, &transient):
		return "TransientUpstreamError"
	case errors.Is(err, ErrInvalidRequest):
		return "InvalidRequest"
	default:
		return "Error"
	}
}

// Report renders a run failure for the user: failing step, error class and,
// for an exhausted attempt budget, the attempts and total backoff.
func Report(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	var se *StepError
	if errors.As(err, &se) {
		fmt.Fprintf(&b, "step: %s", se.Step)
		if se.Step != StepResearch {
			fmt.Fprintf(&b, " (iteration %d)", se.Iteration)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "error class: %s\n", ErrorClass(err))
	var fatal *FatalUpstreamError
	if errors.As(err, &fatal) && fatal.Exhausted {
		fmt.Fprintf(&b, "attempts: %d\nbackoff elapsed: %s\n", fatal.Attempts, fatal.Backoff)
	}
	fmt.Fprintf(&b, "detail: %v", err)
	return b.String()
}
