package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	mockCitiesRe = regexp.MustCompile(`Cities \(in order\): (.+)`)
	mockDatesRe  = regexp.MustCompile(`Dates: (\d{4}-\d{2}-\d{2}) to \d{4}-\d{2}-\d{2} \((\d+) days\)`)
)

// MockLLM 一个离线实现，便于本地调试，不调用外部模型。
// It answers every step with a well-formed payload; each review of a trip
// scores a little higher than the last so the refinement loop is visible.
// Review counts are kept per trip and restart when the trip is researched.
type MockLLM struct {
	mu      sync.Mutex
	reviews map[string]int
}

func (m *MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	switch prompt.Step {
	case StepResearch:
		return m.research(prompt), nil
	case StepPlanning:
		return m.plan(prompt)
	case StepReview:
		return m.review(prompt)
	case StepExplore:
		return m.explore(prompt), nil
	default:
		return "", fmt.Errorf("mock llm: unknown step %q", prompt.Step)
	}
}

// mockTripKey identifies a trip by the city and date lines of its summary.
func mockTripKey(text string) string {
	return mockCitiesRe.FindString(text) + "|" + mockDatesRe.FindString(text)
}

func (m *MockLLM) research(p Prompt) string {
	m.mu.Lock()
	delete(m.reviews, mockTripKey(p.User))
	m.mu.Unlock()

	cities := mockCities(p.User)
	var sb strings.Builder
	for _, c := range cities {
		fmt.Fprintf(&sb, "## %s\n- Stay central, near the main station.\n- Try the local market for lunch.\n- Public transport day passes pay off after three rides.\n\n", c)
	}
	return sb.String()
}

func (m *MockLLM) plan(p Prompt) (string, error) {
	// correction prompts carry the trip summary in the history
	text := p.User
	for _, h := range p.History {
		text += "\n" + h.Content
	}
	cities := mockCities(text)
	match := mockDatesRe.FindStringSubmatch(text)
	if match == nil {
		return "", fmt.Errorf("mock llm: no trip dates in planning prompt")
	}
	start, err := time.Parse(dateLayout, match[1])
	if err != nil {
		return "", err
	}
	days, _ := strconv.Atoi(match[2])
	if len(cities) == 0 {
		cities = []string{"City"}
	}

	type act struct {
		Time        string  `json:"time"`
		Description string  `json:"description"`
		Location    string  `json:"location"`
		Cost        float64 `json:"estimated_cost"`
	}
	type day struct {
		Date       string `json:"date"`
		City       string `json:"city"`
		Area       string `json:"area"`
		Activities []act  `json:"activities"`
	}
	var plan struct {
		Days        []day    `json:"days"`
		PackingList []string `json:"packing_list"`
		Notes       []string `json:"notes"`
	}
	interests := mockListLine(text, "Interests: ")
	lunch := "Lunch at a local market"
	if diets := mockListLine(text, "Dietary restrictions: "); len(diets) > 0 {
		lunch += " with " + strings.Join(diets, " and ") + " options"
	}
	for i := 0; i < days; i++ {
		// contiguous blocks: spread days evenly across cities in order
		city := cities[i*len(cities)/days]
		focus := "sights"
		if len(interests) > 0 {
			focus = interests[i%len(interests)]
		}
		plan.Days = append(plan.Days, day{
			Date: start.AddDate(0, 0, i).Format(dateLayout),
			City: city,
			Area: "Centre",
			Activities: []act{
				{Time: "09:00", Description: fmt.Sprintf("Morning %s walk", focus), Location: city + " old town", Cost: 15},
				{Time: "13:00", Description: lunch, Location: city + " market", Cost: 20},
				{Time: "16:00", Description: fmt.Sprintf("Afternoon %s visit", focus), Location: city + " museum quarter", Cost: 25},
			},
		})
	}
	plan.PackingList = []string{"Comfortable shoes", "Rain jacket", "Power adapter"}
	plan.Notes = []string{"Book popular museums a day ahead."}
	b, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	return "```json\n" + string(b) + "\n```", nil
}

func (m *MockLLM) review(p Prompt) (string, error) {
	key := mockTripKey(p.User)
	m.mu.Lock()
	if m.reviews == nil {
		m.reviews = make(map[string]int)
	}
	n := m.reviews[key]
	m.reviews[key]++
	m.mu.Unlock()

	score := min(6.5+1.5*float64(n), 9.5)
	out := map[string]any{
		"dimensions": map[string]float64{
			"geography":       score,
			"timing":          score,
			"budget":          score,
			"personalization": score,
		},
		"summary": fmt.Sprintf("Mock review pass %d.", n+1),
	}
	if score < 8 {
		out["feedback"] = []map[string]any{{
			"category": "timing",
			"day":      1,
			"issue":    "Day 1 starts too early after arrival",
			"fix":      "start day 1 after noon",
		}}
	}
	b, err := json.Marshal(out)
	return string(b), err
}

func mockCities(text string) []string {
	m := mockCitiesRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	var out []string
	for _, c := range strings.Split(m[1], "->") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockLLM) explore(p Prompt) string {
	dest := "the destination"
	for _, line := range strings.Split(p.User, "\n") {
		if rest, ok := strings.CutPrefix(line, "Destination: "); ok {
			dest = rest
		}
	}
	return fmt.Sprintf("## %s at a glance\n\n- Option A (depth): one base city for the whole stay.\n- Option B (breadth): two cities, split the days evenly.\n\nStart detailed planning with the main city of %s.", dest, dest)
}

func mockListLine(text, prefix string) []string {
	for _, line := range strings.Split(text, "\n") {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			var out []string
			for _, s := range strings.Split(rest, ",") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out
		}
	}
	return nil
}
