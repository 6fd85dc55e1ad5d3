package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dayIn(city string, costs ...float64) Day {
	d := Day{City: city}
	for _, c := range costs {
		d.Activities = append(d.Activities, Activity{Description: "visit", Cost: c})
	}
	return d
}

func categories(items []FeedbackItem) []Category {
	var out []Category
	for _, f := range items {
		out = append(out, f.Category)
	}
	return out
}

func TestLintCitiesBacktracking(t *testing.T) {
	req := mustRequest(t, "Tokyo", []string{"Kyoto"}, "2025-04-01", "2025-04-03", Preferences{})
	d := ItineraryDraft{Days: []Day{dayIn("Tokyo", 20), dayIn("Kyoto, Japan", 20), dayIn("tokyo", 20)}}

	got := lintCities(d, req)
	require.Len(t, got, 1)
	assert.Equal(t, CategoryGeography, got[0].Category)
	assert.Equal(t, 3, got[0].Day)
	assert.Contains(t, got[0].Issue, "returns to tokyo")
}

func TestLintCitiesOrderAndCoverage(t *testing.T) {
	req := mustRequest(t, "Tokyo", []string{"Kyoto", "Osaka"}, "2025-04-01", "2025-04-02", Preferences{})
	d := ItineraryDraft{Days: []Day{dayIn("Kyoto", 20), dayIn("Tokyo", 20)}}

	got := lintCities(d, req)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Day)
	assert.Contains(t, got[0].Issue, "out of the requested city order")
	assert.Contains(t, got[1].Issue, "No day is spent in Osaka")
}

func TestLintCitiesContiguousIsClean(t *testing.T) {
	req := mustRequest(t, "Tokyo", []string{"Kyoto"}, "2025-04-01", "2025-04-04", Preferences{})
	d := ItineraryDraft{Days: []Day{dayIn("Tokyo"), dayIn("Tokyo"), dayIn("Nara"), dayIn("Kyoto")}}
	assert.Empty(t, lintCities(d, req))
}

func TestLintDensityByPace(t *testing.T) {
	relaxed := mustRequest(t, "Rome", nil, "2025-05-01", "2025-05-01", Preferences{Pace: PaceRelaxed})
	fast := mustRequest(t, "Rome", nil, "2025-05-01", "2025-05-01", Preferences{Pace: PaceFast})
	d := ItineraryDraft{Days: []Day{dayIn("Rome", 10, 10, 10, 10)}}

	got := lintDensity(d, relaxed)
	require.Len(t, got, 1)
	assert.Equal(t, CategoryTiming, got[0].Category)
	assert.Contains(t, got[0].Issue, "at most 3")
	assert.Empty(t, lintDensity(d, fast))
}

func TestLintPricing(t *testing.T) {
	req := mustRequest(t, "Rome", nil, "2025-05-01", "2025-05-03", Preferences{Budget: BudgetLow})
	d := ItineraryDraft{Days: []Day{dayIn("Rome", 0, 0), dayIn("Rome", 40, 30), dayIn("Rome", 10)}}

	got := lintPricing(d, req)
	assert.Equal(t, []Category{CategoryBudget, CategoryBudget}, categories(got))
	assert.Equal(t, 1, got[0].Day)
	assert.Equal(t, 2, got[1].Day)
}

func TestLintInterests(t *testing.T) {
	req := mustRequest(t, "Rome", nil, "2025-05-01", "2025-05-01", Preferences{Interests: []string{"Art", "wine"}})
	d := ItineraryDraft{Days: []Day{{City: "Rome", Activities: []Activity{{Description: "Vatican art museums", Cost: 20}}}}}

	got := lintInterests(d, req)
	require.Len(t, got, 1)
	assert.Equal(t, CategoryPersonalization, got[0].Category)
	assert.Contains(t, got[0].Issue, "wine")
}

func meal(desc string) Activity { return Activity{Time: "12:00", Description: desc, Cost: 15} }

func TestLintDietaryConflictsAndCoverage(t *testing.T) {
	req := mustRequest(t, "Tokyo", nil, "2025-04-01", "2025-04-03", Preferences{DietaryRestrictions: []string{"Vegetarian"}})
	d := ItineraryDraft{Days: []Day{
		{City: "Tokyo", Activities: []Activity{meal("Lunch at a vegetarian ramen shop"), meal("Temple visit")}},
		{City: "Tokyo", Activities: []Activity{meal("Dinner: wagyu yakitori izakaya")}},
		{City: "Tokyo", Activities: []Activity{meal("Museum morning")}},
	}}

	got := lintDietary(d, req)
	require.Len(t, got, 2)
	assert.Equal(t, []Category{CategoryPersonalization, CategoryPersonalization}, categories(got))
	assert.Equal(t, 2, got[0].Day)
	assert.Contains(t, got[0].Issue, "conflicts with the Vegetarian restriction (wagyu)")
	assert.Equal(t, 2, got[1].Day)
	assert.Contains(t, got[1].Issue, "Meals on day 2 do not say how the Vegetarian restriction is met")
}

func TestLintDietaryMultiWordRestriction(t *testing.T) {
	req := mustRequest(t, "Rome", nil, "2025-05-01", "2025-05-02", Preferences{DietaryRestrictions: []string{"gluten free"}})
	d := ItineraryDraft{Days: []Day{
		{City: "Rome", Activities: []Activity{meal("Gluten-free pizza dinner in Trastevere")}},
		{City: "Rome", Activities: []Activity{meal("Lunch: fresh pasta at a trattoria")}},
	}}

	got := lintDietary(d, req)
	require.Len(t, got, 2)
	assert.Contains(t, got[0].Issue, "(pasta)")
	assert.Contains(t, got[1].Issue, "Meals on day 2")
}

func TestLintDietaryUnknownRestrictionOnlyChecksCoverage(t *testing.T) {
	req := mustRequest(t, "Lima", nil, "2025-05-01", "2025-05-01", Preferences{DietaryRestrictions: []string{"low FODMAP"}})
	d := ItineraryDraft{Days: []Day{{City: "Lima", Activities: []Activity{meal("Ceviche lunch with low fodmap sides")}}}}
	assert.Empty(t, lintDietary(d, req))

	d.Days[0].Activities = []Activity{meal("Ceviche lunch in Miraflores")}
	got := lintDietary(d, req)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Issue, "low FODMAP")
}

func TestLintDietaryNoRestrictions(t *testing.T) {
	req := mustRequest(t, "Tokyo", nil, "2025-04-01", "2025-04-01", Preferences{})
	d := ItineraryDraft{Days: []Day{{City: "Tokyo", Activities: []Activity{meal("Steak dinner")}}}}
	assert.Empty(t, lintDietary(d, req))
}
