package generator

import (
	"log/slog"
	"sync"
	"time"
)

// Outcome labels of a single model attempt.
const (
	AttemptSuccess   = "success"
	AttemptTransient = "transient"
	AttemptFatal     = "fatal"
)

// Attempt describes one call to the upstream model.
type Attempt struct {
	Step    Step
	Number  int
	Latency time.Duration
	Outcome string
	Err     error
}

// Observer receives every attempt the Invoker makes. Implementations must be
// safe for concurrent use.
type Observer interface {
	ObserveAttempt(Attempt)
}

// Observers fans an attempt out to several observers.
type Observers []Observer

func (obs Observers) ObserveAttempt(a Attempt) {
	for _, o := range obs {
		if o != nil {
			o.ObserveAttempt(a)
		}
	}
}

// LogObserver logs attempts with slog.
type LogObserver struct {
	Logger *slog.Logger
}

func (l LogObserver) ObserveAttempt(a Attempt) {
	if l.Logger == nil {
		return
	}
	args := []any{"step", string(a.Step), "attempt", a.Number, "latency", a.Latency, "outcome", a.Outcome}
	switch a.Outcome {
	case AttemptSuccess:
		l.Logger.Debug("model call", args...)
	case AttemptTransient:
		l.Logger.Warn("model call throttled", append(args, "error", a.Err)...)
	default:
		l.Logger.Error("model call failed", append(args, "error", a.Err)...)
	}
}

// StepStats aggregates attempts of one step.
type StepStats struct {
	Calls     int           `json:"calls"`
	Successes int           `json:"successes"`
	Transient int           `json:"transient"`
	Fatal     int           `json:"fatal"`
	Latency   time.Duration `json:"latency"`
}

// Stats counts attempts per step. The zero value is ready to use.
type Stats struct {
	mu    sync.Mutex
	steps map[Step]StepStats
}

func (s *Stats) ObserveAttempt(a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps == nil {
		s.steps = make(map[Step]StepStats)
	}
	st := s.steps[a.Step]
	st.Calls++
	st.Latency += a.Latency
	switch a.Outcome {
	case AttemptSuccess:
		st.Successes++
	case AttemptTransient:
		st.Transient++
	default:
		st.Fatal++
	}
	s.steps[a.Step] = st
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() map[Step]StepStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Step]StepStats, len(s.steps))
	for k, v := range s.steps {
		out[k] = v
	}
	return out
}

// Calls is the total number of attempts seen.
func (s *Stats) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.steps {
		n += v.Calls
	}
	return n
}
