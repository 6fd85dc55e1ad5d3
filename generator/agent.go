package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ModelInvoker performs one logical model call. *Invoker is the production
// implementation.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt Prompt) (string, error)
}

// WeatherProvider looks up weather for a trip. A failing provider never fails
// a run; Research falls back to seasonal knowledge.
type WeatherProvider interface {
	Forecast(ctx context.Context, city string, start, end time.Time) (*WeatherSummary, error)
}

// TransitGuide describes local passes and inter-city options for a route.
// An empty guide leaves transport advice to the model.
type TransitGuide interface {
	Guide(cities []string, days int) string
}

// AgentOptions configures an Agent.
type AgentOptions struct {
	Tier Tier
	// Threshold is the approval score; nil means the tier default.
	Threshold *float64
	Weights   Weights
	Weather   WeatherProvider
	Transit   TransitGuide
	// RepairAttempts bounds correction re-prompts after a malformed answer.
	RepairAttempts int
	Logger         *slog.Logger
}

// Agent 负责 Research/Planning/Review 三个步骤，每一步都是一次模型调用。
type Agent struct {
	model     ModelInvoker
	tier      Tier
	threshold float64
	weights   Weights
	weather   WeatherProvider
	transit   TransitGuide
	repairs   int
	logger    *slog.Logger
}

func NewAgent(model ModelInvoker, opts AgentOptions) (*Agent, error) {
	if model == nil {
		return nil, errors.New("model invoker is required")
	}
	if opts.Tier == "" {
		opts.Tier = TierStandard
	}
	threshold := opts.Tier.DefaultThreshold()
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if threshold < 0 || threshold > 10 {
		return nil, fmt.Errorf("approval threshold must be within 0..10, got %v", threshold)
	}
	if opts.RepairAttempts < 0 {
		return nil, fmt.Errorf("repair attempts must be >= 0, got %d", opts.RepairAttempts)
	}
	if opts.Weights == nil {
		opts.Weights = DefaultWeights()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Agent{
		model:     model,
		tier:      opts.Tier,
		threshold: threshold,
		weights:   opts.Weights,
		weather:   opts.Weather,
		transit:   opts.Transit,
		repairs:   opts.RepairAttempts,
		logger:    opts.Logger,
	}, nil
}

// Threshold is the approval score this agent reviews against.
func (a *Agent) Threshold() float64 { return a.threshold }

// Research gathers destination notes with exactly one model call. Weather is
// looked up for every city over the whole trip window. Upstream errors are
// returned unchanged.
func (a *Agent) Research(ctx context.Context, req TripRequest) (ResearchNotes, error) {
	var weather []WeatherSummary
	if a.weather != nil {
		for _, city := range req.Cities() {
			w, err := a.weather.Forecast(ctx, city, req.StartDate, req.EndDate)
			switch {
			case err != nil && ctx.Err() != nil:
				return ResearchNotes{}, ctx.Err()
			case err != nil:
				a.logger.Warn("weather lookup failed, using seasonal knowledge", "city", city, "error", err)
			case w != nil:
				s := *w
				s.City = city
				weather = append(weather, s)
			}
		}
	}

	raw, err := a.model.Invoke(ctx, BuildResearchPrompt(a.tier, req, weather))
	if err != nil {
		return ResearchNotes{}, err
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return ResearchNotes{}, malformed(StepResearch, raw, "empty research notes")
	}
	notes := ResearchNotes{Text: text, Weather: weather}
	if a.transit != nil {
		notes.Transit = a.transit.Guide(req.Cities(), req.Duration())
	}
	return notes, nil
}

// Plan builds a draft. prior nil means the first pass; otherwise feedback is
// required and the new draft is generation prior.Generation+1.
func (a *Agent) Plan(ctx context.Context, req TripRequest, notes ResearchNotes, prior *ItineraryDraft, feedback *ReviewResult) (ItineraryDraft, error) {
	generation := 0
	if prior != nil {
		if feedback == nil {
			return ItineraryDraft{}, errors.New("revising a draft requires review feedback")
		}
		generation = prior.Generation + 1
	}
	p := BuildPlanningPrompt(a.tier, req, notes, prior, feedback)
	return complete(ctx, a, p, func(raw string) (ItineraryDraft, error) {
		return ParseDraft(raw, req, generation)
	})
}

// Review scores a draft. The model's dimension scores are combined with the
// deterministic checks before the weighted aggregate is taken.
func (a *Agent) Review(ctx context.Context, draft ItineraryDraft, req TripRequest) (ReviewResult, error) {
	p := BuildReviewPrompt(a.tier, draft, req, a.threshold)
	res, err := complete(ctx, a, p, ParseReview)
	if err != nil {
		return ReviewResult{}, err
	}
	return a.grade(res, lintDraft(draft, req)), nil
}

// grade folds findings into res: one point off the finding's dimension each,
// then the aggregate and verdict.
func (a *Agent) grade(res ReviewResult, findings []FeedbackItem) ReviewResult {
	dims := make(map[Category]float64, len(res.Dimensions))
	for k, v := range res.Dimensions {
		dims[k] = v
	}
	for _, f := range findings {
		dims[f.Category] = max(dims[f.Category]-1, 0)
	}
	out := ReviewResult{
		Dimensions: dims,
		Feedback:   append(append([]FeedbackItem(nil), res.Feedback...), findings...),
		Summary:    res.Summary,
		Threshold:  a.threshold,
	}
	out.Score = a.weights.Aggregate(dims)
	out.Passed = out.Score >= a.threshold
	return out
}

// complete invokes the model and parses the answer, re-prompting up to
// a.repairs times when the answer is malformed.
func complete[T any](ctx context.Context, a *Agent, p Prompt, parse func(string) (T, error)) (T, error) {
	var zero T
	raw, err := a.model.Invoke(ctx, p)
	if err != nil {
		return zero, err
	}
	for repair := 0; ; repair++ {
		out, perr := parse(raw)
		if perr == nil {
			return out, nil
		}
		var bad *MalformedResponseError
		if !errors.As(perr, &bad) || repair >= a.repairs {
			return zero, perr
		}
		a.logger.Warn("malformed model answer, asking for a correction", "step", string(p.Step), "repair", repair+1, "error", perr)
		p = BuildCorrectionPrompt(p, raw, perr)
		if raw, err = a.model.Invoke(ctx, p); err != nil {
			return zero, err
		}
	}
}
