package generator

import (
	"fmt"
	"strings"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	Step    Step
	System  string
	User    string
	History []Message
}

// Message 用于少量历史（可选）。
type Message struct {
	Role    string
	Content string
}

const planSchema = `{"days":[{"date":"YYYY-MM-DD","city":"...","area":"...","activities":[{"time":"09:00","description":"...","location":"...","estimated_cost":0}]}],"packing_list":["..."],"notes":["..."]}`

const reviewSchema = `{"dimensions":{"geography":0,"timing":0,"budget":0,"personalization":0},"feedback":[{"category":"geography|timing|budget|personalization","day":1,"issue":"...","fix":"..."}],"summary":"..."}`

// BuildResearchPrompt asks for destination knowledge. Reference material is
// appended verbatim.
func BuildResearchPrompt(tier Tier, req TripRequest, weather []WeatherSummary) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a destination researcher. Write concise notes a trip planner can rely on: ")
	sb.WriteString("neighbourhoods, top attractions matching the interests, local food, transport between areas, ")
	sb.WriteString("opening-hour caveats and typical prices.\n")
	if tier == TierLite {
		sb.WriteString("Answer as short bullet lists, one section per city.\n")
	}

	var user strings.Builder
	writeTripSummary(&user, req)
	known := make(map[string]bool, len(weather))
	for _, w := range weather {
		known[w.City] = true
		fmt.Fprintf(&user, "Weather in %s (%s): %.0f-%.0f°C, %.0f%% chance of precipitation", w.City, w.Source, w.MinTempC, w.MaxTempC, w.PrecipProbability*100)
		if w.Conditions != "" {
			fmt.Fprintf(&user, ", %s", w.Conditions)
		}
		user.WriteString(".\n")
	}
	for _, c := range req.Cities() {
		if !known[c] {
			fmt.Fprintf(&user, "No forecast is available for %s; describe the typical seasonal weather for these dates.\n", c)
		}
	}
	for i, ref := range req.References {
		fmt.Fprintf(&user, "\nReference material %d:\n%s\n", i+1, ref)
	}

	return Prompt{Step: StepResearch, System: sb.String(), User: user.String()}
}

// BuildPlanningPrompt builds the first pass when prior is nil, otherwise a
// revision that must address every flagged feedback item.
func BuildPlanningPrompt(tier Tier, req TripRequest, notes ResearchNotes, prior *ItineraryDraft, feedback *ReviewResult) Prompt {
	rates := BaselineRates(req.Preferences.Budget)

	var sb strings.Builder
	sb.WriteString("You are a trip planner. Reply with JSON only, no prose, matching:\n")
	sb.WriteString(planSchema)
	sb.WriteString("\nRules:\n")
	fmt.Fprintf(&sb, "- Exactly one entry per day, %d days, dates in order.\n", req.Duration())
	sb.WriteString("- Each city gets one contiguous block of days, in the order given; never return to an earlier city.\n")
	sb.WriteString("- Cluster each day's activities in one area; include realistic travel time.\n")
	fmt.Fprintf(&sb, "- At most %d major activities per day for a %s pace.\n", maxActivities(req.Preferences.Pace), req.Preferences.Pace)
	fmt.Fprintf(&sb, "- Price activities in USD for a %s budget (baseline per day: lodging %.0f, food %.0f, activities %.0f, transport %.0f).\n",
		req.Preferences.Budget, rates.Accommodation, rates.Food, rates.Activities, rates.Transport)
	if len(req.Preferences.DietaryRestrictions) > 0 {
		fmt.Fprintf(&sb, "- Every meal must respect: %s.\n", strings.Join(req.Preferences.DietaryRestrictions, ", "))
	}
	if tier == TierLite {
		sb.WriteString("- Keep descriptions under 20 words.\n")
	}

	var user strings.Builder
	writeTripSummary(&user, req)
	user.WriteString("\nResearch notes:\n")
	user.WriteString(notes.Text)
	user.WriteString("\n")
	if notes.Transit != "" {
		user.WriteString("\nTransit guide (use it for transport between areas and cities, and mention the passes worth buying in notes):\n")
		user.WriteString(notes.Transit)
		user.WriteString("\n")
	}

	p := Prompt{Step: StepPlanning, System: sb.String()}
	if prior == nil || feedback == nil {
		user.WriteString("\nProduce the full itinerary.")
		p.User = user.String()
		return p
	}

	// 修订：先给出上一稿，再逐条列出需要处理的反馈。
	p.History = []Message{{Role: "assistant", Content: prior.Raw}}
	fmt.Fprintf(&user, "\nYour previous draft scored %.1f/10 (needs %.1f). Reviewer summary: %s\n", feedback.Score, feedback.Threshold, feedback.Summary)
	user.WriteString("Fix every item below, keep what was not criticised, and return the complete revised JSON:\n")
	for i, f := range feedback.Feedback {
		fmt.Fprintf(&user, "%d. [%s]", i+1, f.Category)
		if f.Day > 0 {
			fmt.Fprintf(&user, " day %d:", f.Day)
		}
		fmt.Fprintf(&user, " %s", f.Issue)
		if f.Fix != "" {
			fmt.Fprintf(&user, " -> %s", f.Fix)
		}
		user.WriteString("\n")
	}
	p.User = user.String()
	return p
}

// BuildReviewPrompt asks for a per-dimension score of one draft.
func BuildReviewPrompt(tier Tier, draft ItineraryDraft, req TripRequest, threshold float64) Prompt {
	var sb strings.Builder
	sb.WriteString("You are a strict itinerary reviewer. Reply with JSON only, matching:\n")
	sb.WriteString(reviewSchema)
	sb.WriteString("\nScore each dimension 0-10:\n")
	sb.WriteString("- geography: days stay in one area, no backtracking, cities visited in contiguous blocks\n")
	sb.WriteString("- timing: sane activity density, travel time and meals accounted for\n")
	sb.WriteString("- budget: stated costs match the budget level\n")
	sb.WriteString("- personalization: interests, dietary restrictions and special requests reflected\n")
	if tier == TierLite {
		sb.WriteString("Use the checklist: start each dimension at 10 and subtract one per problem found.\n")
	}
	fmt.Fprintf(&sb, "Approval needs %.1f overall. Every feedback item must name the day and say exactly what to change.\n", threshold)

	var user strings.Builder
	writeTripSummary(&user, req)
	fmt.Fprintf(&user, "\nItinerary (estimated total %.0f USD):\n", draft.Total)
	for i, d := range draft.Days {
		fmt.Fprintf(&user, "Day %d %s - %s", i+1, d.Date.Format(dateLayout), d.City)
		if d.Area != "" {
			fmt.Fprintf(&user, " (%s)", d.Area)
		}
		fmt.Fprintf(&user, ", subtotal %.0f\n", d.Subtotal)
		for _, a := range d.Activities {
			fmt.Fprintf(&user, "  %s %s @ %s (%.0f)\n", a.Time, a.Description, a.Location, a.Cost)
		}
	}
	return Prompt{Step: StepReview, System: sb.String(), User: user.String()}
}

// BuildCorrectionPrompt re-asks after an unusable answer, keeping the failed
// answer in the history so the model can see what to fix.
func BuildCorrectionPrompt(p Prompt, raw string, cause error) Prompt {
	history := append([]Message(nil), p.History...)
	history = append(history,
		Message{Role: "user", Content: p.User},
		Message{Role: "assistant", Content: raw},
	)
	return Prompt{
		Step:    p.Step,
		System:  p.System,
		History: history,
		User:    fmt.Sprintf("That answer could not be used (%v). Reply again with only valid JSON in the required structure.", cause),
	}
}

func writeTripSummary(b *strings.Builder, req TripRequest) {
	fmt.Fprintf(b, "Cities (in order): %s\n", strings.Join(req.Cities(), " -> "))
	fmt.Fprintf(b, "Dates: %s to %s (%d days)\n", req.StartDate.Format(dateLayout), req.EndDate.Format(dateLayout), req.Duration())
	p := req.Preferences
	fmt.Fprintf(b, "Budget: %s, pace: %s\n", p.Budget, p.Pace)
	if len(p.Interests) > 0 {
		fmt.Fprintf(b, "Interests: %s\n", strings.Join(p.Interests, ", "))
	}
	if len(p.DietaryRestrictions) > 0 {
		fmt.Fprintf(b, "Dietary restrictions: %s\n", strings.Join(p.DietaryRestrictions, ", "))
	}
	if p.SpecialRequests != "" {
		fmt.Fprintf(b, "Special requests: %s\n", p.SpecialRequests)
	}
}
