package generator

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// lintDraft runs the checks that need no model: city contiguity, activity
// density, pricing, interest coverage and dietary fit. Findings become review
// feedback.
func lintDraft(d ItineraryDraft, req TripRequest) []FeedbackItem {
	var out []FeedbackItem
	out = append(out, lintCities(d, req)...)
	out = append(out, lintDensity(d, req)...)
	out = append(out, lintPricing(d, req)...)
	out = append(out, lintInterests(d, req)...)
	out = append(out, lintDietary(d, req)...)
	return out
}

// cityKey reduces "Kyoto, Japan" and "kyoto" to the same key.
func cityKey(s string) string {
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func lintCities(d ItineraryDraft, req TripRequest) []FeedbackItem {
	var out []FeedbackItem
	order := make(map[string]int)
	for i, c := range req.Cities() {
		if _, ok := order[cityKey(c)]; !ok {
			order[cityKey(c)] = i
		}
	}

	left := make(map[string]int) // city -> last day of its closed block
	prev := ""
	highest := -1
	seen := make(map[string]bool)
	for i, day := range d.Days {
		key := cityKey(day.City)
		seen[key] = true
		if key != prev {
			if last, ok := left[key]; ok {
				out = append(out, FeedbackItem{
					Category: CategoryGeography,
					Day:      i + 1,
					Issue:    fmt.Sprintf("Day %d returns to %s after leaving it on day %d", i+1, day.City, last),
					Fix:      fmt.Sprintf("keep all %s days in one contiguous block", day.City),
				})
			} else if idx, ok := order[key]; ok && idx < highest {
				out = append(out, FeedbackItem{
					Category: CategoryGeography,
					Day:      i + 1,
					Issue:    fmt.Sprintf("Day %d visits %s out of the requested city order", i+1, day.City),
					Fix:      fmt.Sprintf("follow the order %s", strings.Join(req.Cities(), " -> ")),
				})
			}
			if prev != "" {
				left[prev] = i
			}
			prev = key
		}
		if idx, ok := order[key]; ok && idx > highest {
			highest = idx
		}
	}
	for _, c := range req.Cities() {
		if !seen[cityKey(c)] {
			out = append(out, FeedbackItem{
				Category: CategoryGeography,
				Issue:    fmt.Sprintf("No day is spent in %s", c),
				Fix:      fmt.Sprintf("give %s its own block of days", c),
			})
		}
	}
	return out
}

func lintDensity(d ItineraryDraft, req TripRequest) []FeedbackItem {
	var out []FeedbackItem
	limit := maxActivities(req.Preferences.Pace)
	for i, day := range d.Days {
		if n := len(day.Activities); n > limit {
			out = append(out, FeedbackItem{
				Category: CategoryTiming,
				Day:      i + 1,
				Issue:    fmt.Sprintf("Day %d has %d activities; a %s pace allows at most %d", i+1, n, req.Preferences.Pace, limit),
				Fix:      fmt.Sprintf("drop or move %d activities from day %d", n-limit, i+1),
			})
		}
	}
	return out
}

func lintPricing(d ItineraryDraft, req TripRequest) []FeedbackItem {
	var out []FeedbackItem
	rates := BaselineRates(req.Preferences.Budget)
	for i, day := range d.Days {
		if len(day.Activities) == 0 {
			continue
		}
		var sum float64
		for _, a := range day.Activities {
			sum += a.Cost
		}
		switch {
		case sum == 0:
			out = append(out, FeedbackItem{
				Category: CategoryBudget,
				Day:      i + 1,
				Issue:    fmt.Sprintf("Day %d has no priced activities", i+1),
				Fix:      fmt.Sprintf("add cost estimates near the %s baseline of %.0f USD for activities", req.Preferences.Budget, rates.Activities),
			})
		case sum > 3*rates.Activities:
			out = append(out, FeedbackItem{
				Category: CategoryBudget,
				Day:      i + 1,
				Issue:    fmt.Sprintf("Day %d activities cost %.0f USD, over three times the %s baseline of %.0f", i+1, sum, req.Preferences.Budget, rates.Activities),
				Fix:      "swap in cheaper alternatives or move a paid activity to a lighter day",
			})
		}
	}
	return out
}

func lintInterests(d ItineraryDraft, req TripRequest) []FeedbackItem {
	var text strings.Builder
	for _, day := range d.Days {
		for _, a := range day.Activities {
			text.WriteString(strings.ToLower(a.Description))
			text.WriteString(" ")
			text.WriteString(strings.ToLower(a.Location))
			text.WriteString(" ")
		}
	}
	all := text.String()
	var out []FeedbackItem
	for _, interest := range req.Preferences.Interests {
		if !strings.Contains(all, strings.ToLower(interest)) {
			out = append(out, FeedbackItem{
				Category: CategoryPersonalization,
				Issue:    fmt.Sprintf("No activity covers the stated interest %q", interest),
				Fix:      fmt.Sprintf("add at least one %s activity", interest),
			})
		}
	}
	return out
}

var mealWords = []string{"breakfast", "brunch", "lunch", "dinner", "supper", "meal", "restaurant", "cafe", "café", "izakaya", "food"}

var (
	meatWords    = []string{"beef", "pork", "chicken", "steak", "wagyu", "yakitori", "tonkatsu", "bacon", "ham", "lamb", "duck", "sausage", "barbecue", "bbq"}
	seafoodWords = []string{"fish", "sushi", "sashimi", "seafood", "shrimp", "prawn", "tuna", "salmon", "crab", "oyster", "eel"}
	dairyWords   = []string{"cheese", "dairy", "butter", "cream", "gelato", "milk", "egg"}
	glutenWords  = []string{"ramen", "udon", "soba", "bread", "pasta", "pizza", "bakery", "tempura", "dumpling", "croissant"}
)

// dietConflicts lists words that contradict a restriction when an activity
// does not name the restriction itself.
var dietConflicts = map[string][]string{
	"vegetarian":  slices.Concat(meatWords, seafoodWords),
	"vegan":       slices.Concat(meatWords, seafoodWords, dairyWords),
	"pescatarian": meatWords,
	"halal":       {"pork", "bacon", "ham", "tonkatsu", "wine", "beer", "sake"},
	"gluten-free": glutenWords,
	"dairy-free":  dairyWords,
}

func dietKey(r string) string {
	return strings.Join(strings.Fields(strings.ToLower(r)), "-")
}

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) }) {
		out[w] = true
		out[strings.TrimSuffix(w, "s")] = true
	}
	return out
}

// lintDietary flags meal activities that contradict a restriction, and days
// whose meals never say how a restriction is handled.
func lintDietary(d ItineraryDraft, req TripRequest) []FeedbackItem {
	var out []FeedbackItem
	for _, r := range req.Preferences.DietaryRestrictions {
		key := dietKey(r)
		names := []string{strings.ToLower(r), key, strings.ReplaceAll(key, "-", " ")}
		var uncovered []int
		for i, day := range d.Days {
			hasMeal, covered := false, false
			for _, a := range day.Activities {
				text := strings.ToLower(a.Description + " " + a.Location)
				w := words(text)
				if !slices.ContainsFunc(mealWords, func(m string) bool { return w[m] }) {
					continue
				}
				hasMeal = true
				if slices.ContainsFunc(names, func(n string) bool { return strings.Contains(text, n) }) {
					covered = true
					continue
				}
				if hit := slices.IndexFunc(dietConflicts[key], func(c string) bool { return w[c] }); hit >= 0 {
					out = append(out, FeedbackItem{
						Category: CategoryPersonalization,
						Day:      i + 1,
						Issue:    fmt.Sprintf("Day %d %q conflicts with the %s restriction (%s)", i+1, a.Description, r, dietConflicts[key][hit]),
						Fix:      fmt.Sprintf("replace it with a %s option and say so in the description", r),
					})
				}
			}
			if hasMeal && !covered {
				uncovered = append(uncovered, i+1)
			}
		}
		if len(uncovered) > 0 {
			days := make([]string, len(uncovered))
			for i, n := range uncovered {
				days[i] = fmt.Sprint(n)
			}
			out = append(out, FeedbackItem{
				Category: CategoryPersonalization,
				Day:      uncovered[0],
				Issue:    fmt.Sprintf("Meals on day %s do not say how the %s restriction is met", strings.Join(days, ", "), r),
				Fix:      fmt.Sprintf("name a %s option for each meal", r),
			})
		}
	}
	return out
}
