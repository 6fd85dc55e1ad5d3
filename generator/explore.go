package generator

import (
	"context"
	"fmt"
	"strings"
)

// ExploreRequest asks for a destination overview before the cities and dates
// of a trip are fixed.
type ExploreRequest struct {
	Destination string
	Days        int
	Interests   []string
	Budget      BudgetTier
}

// NewExploreRequest validates and normalises an exploration request.
func NewExploreRequest(destination string, days int, interests []string, budget BudgetTier) (ExploreRequest, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return ExploreRequest{}, fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if days < 1 || days > maxTripDays {
		return ExploreRequest{}, fmt.Errorf("%w: days must be within 1..%d (got %d)", ErrInvalidRequest, maxTripDays, days)
	}
	if budget == "" {
		budget = BudgetMid
	}
	if _, ok := baselines[budget]; !ok {
		return ExploreRequest{}, fmt.Errorf("%w: budget must be one of budget, mid-range, luxury (got %q)", ErrInvalidRequest, budget)
	}
	return ExploreRequest{Destination: destination, Days: days, Interests: dedupe(interests), Budget: budget}, nil
}

// BuildExplorePrompt asks for regions worth visiting and a few ways to split
// the days between them.
func BuildExplorePrompt(req ExploreRequest) Prompt {
	var sb strings.Builder
	sb.WriteString("You help travellers who know little about a destination decide how to structure a trip. Cover:\n")
	sb.WriteString("1. What makes the destination special and who it suits.\n")
	sb.WriteString("2. Top regions or cities: why go, days needed, three to five highlights, ease of access.\n")
	sb.WriteString("3. Two or three trip structures for the stated length, trading depth against breadth.\n")
	sb.WriteString("4. Seasonal considerations, crowds and peak periods.\n")
	sb.WriteString("5. Practical notes: cost level, language, transport between cities, visas.\n")
	sb.WriteString("6. Which cities to carry into detailed planning and how many days each.\n")
	sb.WriteString("Be honest about trade-offs. Answer in Markdown.\n")

	interests := "general travel"
	if len(req.Interests) > 0 {
		interests = strings.Join(req.Interests, ", ")
	}
	var user strings.Builder
	fmt.Fprintf(&user, "Destination: %s\n", req.Destination)
	fmt.Fprintf(&user, "Trip length: %d days\n", req.Days)
	fmt.Fprintf(&user, "Interests: %s\n", interests)
	fmt.Fprintf(&user, "Budget: %s\n", req.Budget)
	return Prompt{Step: StepExplore, System: sb.String(), User: user.String()}
}

// Explore makes one model call and returns the overview as Markdown.
func (a *Agent) Explore(ctx context.Context, req ExploreRequest) (string, error) {
	raw, err := a.model.Invoke(ctx, BuildExplorePrompt(req))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", malformed(StepExplore, raw, "empty exploration report")
	}
	return text, nil
}
