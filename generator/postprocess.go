package generator

import (
	"math"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

var codeBlockRe = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// extractJSON finds the JSON object in a model answer: a ```json fenced
// block first, then the outermost {...} span.
func extractJSON(raw string) (string, bool) {
	for _, m := range codeBlockRe.FindAllStringSubmatch(raw, -1) {
		lang := strings.ToLower(m[1])
		if lang != "" && lang != "json" {
			continue
		}
		body := strings.TrimSpace(m[2])
		if strings.HasPrefix(body, "{") && gjson.Valid(body) {
			return body, true
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	body := raw[start : end+1]
	if !gjson.Valid(body) {
		return "", false
	}
	return body, true
}

// ParseDraft shapes a planning answer into a draft. The trip calendar is
// authoritative for dates; the model supplies cities, areas and activities.
// Costs are recomputed from the request's budget tier.
func ParseDraft(raw string, req TripRequest, generation int) (ItineraryDraft, error) {
	js, ok := extractJSON(raw)
	if !ok {
		return ItineraryDraft{}, malformed(StepPlanning, raw, "no JSON object found")
	}
	days := gjson.Get(js, "days")
	if !days.IsArray() || len(days.Array()) == 0 {
		return ItineraryDraft{}, malformed(StepPlanning, raw, "missing days")
	}
	dates := req.Dates()
	if n := len(days.Array()); n != len(dates) {
		return ItineraryDraft{}, malformed(StepPlanning, raw, "got %d days, want %d", n, len(dates))
	}

	tier := req.Preferences.Budget
	draft := ItineraryDraft{
		Generation: generation,
		Budget:     EstimateBudget(tier, len(dates)),
		Raw:        js,
	}
	for i, d := range days.Array() {
		city := strings.TrimSpace(d.Get("city").String())
		if city == "" {
			return ItineraryDraft{}, malformed(StepPlanning, raw, "day %d: missing city", i+1)
		}
		acts := d.Get("activities")
		if !acts.IsArray() {
			return ItineraryDraft{}, malformed(StepPlanning, raw, "day %d: missing activities", i+1)
		}
		day := Day{
			Date: dates[i],
			City: city,
			Area: strings.TrimSpace(d.Get("area").String()),
		}
		for j, a := range acts.Array() {
			desc := strings.TrimSpace(a.Get("description").String())
			if desc == "" {
				return ItineraryDraft{}, malformed(StepPlanning, raw, "day %d activity %d: missing description", i+1, j+1)
			}
			cost := a.Get("estimated_cost")
			if !cost.Exists() {
				cost = a.Get("cost")
			}
			if cost.Float() < 0 {
				return ItineraryDraft{}, malformed(StepPlanning, raw, "day %d activity %d: negative cost", i+1, j+1)
			}
			day.Activities = append(day.Activities, Activity{
				Time:        strings.TrimSpace(a.Get("time").String()),
				Description: desc,
				Cost:        cost.Float(),
				Location:    strings.TrimSpace(a.Get("location").String()),
			})
		}
		day.Subtotal = DaySubtotal(tier, day)
		draft.Total += day.Subtotal
		draft.Days = append(draft.Days, day)
	}
	draft.Total += draft.Budget.Flights
	draft.PackingList = stringList(gjson.Get(js, "packing_list"))
	draft.Notes = stringList(gjson.Get(js, "notes"))
	return draft, nil
}

// ParseReview reads per-dimension scores, feedback and summary. The aggregate
// score and verdict are filled in by the Agent after its own checks.
func ParseReview(raw string) (ReviewResult, error) {
	js, ok := extractJSON(raw)
	if !ok {
		return ReviewResult{}, malformed(StepReview, raw, "no JSON object found")
	}
	res := ReviewResult{Dimensions: make(map[Category]float64, len(Categories))}
	dims := gjson.Get(js, "dimensions")
	for _, c := range Categories {
		v := dims.Get(string(c))
		if !v.Exists() {
			return ReviewResult{}, malformed(StepReview, raw, "missing %s score", c)
		}
		if f := v.Float(); f < 0 || f > 10 {
			return ReviewResult{}, malformed(StepReview, raw, "%s score %.2f out of range", c, f)
		}
		res.Dimensions[c] = v.Float()
	}
	for i, f := range gjson.Get(js, "feedback").Array() {
		cat := Category(strings.ToLower(strings.TrimSpace(f.Get("category").String())))
		if !validCategory(cat) {
			return ReviewResult{}, malformed(StepReview, raw, "feedback %d: unknown category %q", i+1, cat)
		}
		issue := strings.TrimSpace(f.Get("issue").String())
		if issue == "" {
			return ReviewResult{}, malformed(StepReview, raw, "feedback %d: empty issue", i+1)
		}
		res.Feedback = append(res.Feedback, FeedbackItem{
			Category: cat,
			Day:      int(f.Get("day").Int()),
			Issue:    issue,
			Fix:      strings.TrimSpace(f.Get("fix").String()),
		})
	}
	res.Summary = strings.TrimSpace(gjson.Get(js, "summary").String())
	return res, nil
}

// Weights balances the review dimensions in the aggregate score.
type Weights map[Category]float64

// DefaultWeights favour geography and timing, the dimensions drafts most
// often fail.
func DefaultWeights() Weights {
	return Weights{
		CategoryGeography:       0.3,
		CategoryTiming:          0.3,
		CategoryBudget:          0.2,
		CategoryPersonalization: 0.2,
	}
}

// Aggregate is the weighted mean of the dimension scores, rounded to 0.01.
func (w Weights) Aggregate(dims map[Category]float64) float64 {
	var sum, total float64
	for _, c := range Categories {
		weight := w[c]
		if weight <= 0 {
			continue
		}
		sum += weight * dims[c]
		total += weight
	}
	if total == 0 {
		return 0
	}
	return math.Round(sum/total*100) / 100
}

func validCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func stringList(r gjson.Result) []string {
	var out []string
	for _, v := range r.Array() {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
