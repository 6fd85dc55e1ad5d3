package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Steps is what a Session drives. *Agent implements it; tests script it.
type Steps interface {
	Research(ctx context.Context, req TripRequest) (ResearchNotes, error)
	Plan(ctx context.Context, req TripRequest, notes ResearchNotes, prior *ItineraryDraft, feedback *ReviewResult) (ItineraryDraft, error)
	Review(ctx context.Context, draft ItineraryDraft, req TripRequest) (ReviewResult, error)
}

// State is the position of a Session in its refinement loop.
type State string

const (
	StateIdle        State = "idle"
	StateResearching State = "researching"
	StatePlanning    State = "planning"
	StateReviewing   State = "reviewing"
	StateApproved    State = "approved"
	StateExhausted   State = "exhausted"
	StateFailed      State = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateApproved || s == StateExhausted || s == StateFailed
}

// DefaultMaxIterations bounds Planning+Review rounds when none is configured.
const DefaultMaxIterations = 3

// SessionConfig holds the loop parameters. MaxIterations and Threshold are
// independent of each other.
type SessionConfig struct {
	MaxIterations int
	Threshold     float64
	Logger        *slog.Logger
	// OnTransition, if set, is called on every state change.
	OnTransition func(state State, iteration int)
	Now          func() time.Time
}

// Session 持有一次行程规划的完整上下文：研究笔记、每轮草稿与评审。
// A Session runs once.
type Session struct {
	ID      string
	Request TripRequest

	steps Steps
	cfg   SessionConfig

	mu        sync.Mutex
	state     State
	iteration int
	history   []Turn
}

// NewSession creates an idle session; call Run to execute it.
func NewSession(id string, req TripRequest, steps Steps, cfg SessionConfig) (*Session, error) {
	if steps == nil {
		return nil, errors.New("steps are required")
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be >= 1, got %d", cfg.MaxIterations)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 10 {
		return nil, fmt.Errorf("approval threshold must be within 0..10, got %v", cfg.Threshold)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{ID: id, Request: req, steps: steps, cfg: cfg, state: StateIdle}, nil
}

// State returns the current state and iteration. Safe to call while Run is
// in progress.
func (s *Session) State() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.iteration
}

// History copies the turns recorded so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.history...)
}

func (s *Session) transition(state State, iteration int) {
	s.mu.Lock()
	s.state = state
	s.iteration = iteration
	s.mu.Unlock()
	s.cfg.Logger.Debug("session state", "run_id", s.ID, "state", string(state), "iteration", iteration)
	if s.cfg.OnTransition != nil {
		s.cfg.OnTransition(state, iteration)
	}
}

func (s *Session) record(t Turn) {
	s.mu.Lock()
	s.history = append(s.history, t)
	s.mu.Unlock()
}

// Run executes Researching -> Planning(i) -> Reviewing(i) until a review
// meets the threshold (Approved) or the iteration budget is spent
// (Exhausted, returning the best-scoring draft, earliest on ties). Any step
// error aborts the run with a *StepError; there is no partial outcome.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("session %s already started", s.ID)
	}
	s.state = StateResearching
	s.mu.Unlock()

	started := s.cfg.Now()
	log := s.cfg.Logger.With("run_id", s.ID)

	var (
		notes    ResearchNotes
		draft    ItineraryDraft
		prior    *ItineraryDraft
		feedback *ReviewResult
		turns    []Turn
		best     = -1
		iter     int
	)
	fail := func(step Step, err error) (Outcome, error) {
		s.transition(StateFailed, iter)
		log.Error("run failed", "step", string(step), "iteration", iter, "error_class", ErrorClass(err), "error", err)
		return Outcome{}, &StepError{Step: step, Iteration: iter, Err: err}
	}

	s.transition(StateResearching, 0)
	for {
		state, _ := s.State()
		switch state {
		case StateResearching:
			if err := ctx.Err(); err != nil {
				return fail(StepResearch, err)
			}
			n, err := s.steps.Research(ctx, s.Request)
			if err != nil {
				return fail(StepResearch, err)
			}
			notes = n
			log.Info("research done", "weather", len(notes.Weather), "transit", notes.Transit != "")
			s.transition(StatePlanning, iter)

		case StatePlanning:
			if err := ctx.Err(); err != nil {
				return fail(StepPlanning, err)
			}
			d, err := s.steps.Plan(ctx, s.Request, notes, prior, feedback)
			if err != nil {
				return fail(StepPlanning, err)
			}
			draft = d
			log.Info("draft planned", "iteration", iter, "days", len(draft.Days), "total", draft.Total)
			s.transition(StateReviewing, iter)

		case StateReviewing:
			if err := ctx.Err(); err != nil {
				return fail(StepReview, err)
			}
			r, err := s.steps.Review(ctx, draft, s.Request)
			if err != nil {
				return fail(StepReview, err)
			}
			turn := Turn{Iteration: iter, Draft: draft, Review: r, CreatedAt: s.cfg.Now()}
			turns = append(turns, turn)
			s.record(turn)
			if best < 0 || r.Score > turns[best].Review.Score {
				best = iter
			}
			log.Info("draft reviewed", "iteration", iter, "score", r.Score, "threshold", s.cfg.Threshold, "feedback", len(r.Feedback))

			switch {
			case r.Score >= s.cfg.Threshold:
				s.transition(StateApproved, iter)
			case iter+1 < s.cfg.MaxIterations:
				d, fb := draft, r
				prior, feedback = &d, &fb
				iter++
				s.transition(StatePlanning, iter)
			default:
				s.transition(StateExhausted, iter)
			}

		case StateApproved, StateExhausted:
			chosen := best
			if state == StateApproved {
				chosen = iter
			}
			out := Outcome{
				RunID:      s.ID,
				Request:    s.Request,
				Research:   notes,
				Draft:      turns[chosen].Draft,
				Review:     turns[chosen].Review,
				Iterations: len(turns),
				Approved:   state == StateApproved,
				BestIndex:  chosen,
				History:    turns,
				StartedAt:  started,
				Elapsed:    s.cfg.Now().Sub(started),
			}
			log.Info("run finished", "state", string(state), "iterations", out.Iterations, "best_index", chosen, "score", out.Review.Score)
			return out, nil

		default:
			return fail(StepResearch, fmt.Errorf("unexpected session state %q", state))
		}
	}
}
