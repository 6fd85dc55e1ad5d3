package generator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requestYAML = `
destination: Tokyo, Japan
additional_destinations: [Kyoto, "  ", Osaka]
dates:
  start_date: "2025-04-01"
  end_date: "2025-04-07"
preferences:
  interests: [food, temples, Food]
  pace: relaxed
  budget: luxury
  dietary_restrictions: [vegetarian]
  special_requests: " One day for a cooking class "
reference_files: [notes.md]
`

func TestParseRequestYAMLAndBuild(t *testing.T) {
	rf, err := ParseRequestYAML([]byte(requestYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.md"}, rf.ReferenceFiles)

	req, err := rf.Build([]string{"blob"})
	require.NoError(t, err)
	assert.Equal(t, "Tokyo, Japan", req.Destination)
	assert.Equal(t, []string{"Kyoto", "Osaka"}, req.AdditionalDestinations)
	assert.Equal(t, []string{"Tokyo, Japan", "Kyoto", "Osaka"}, req.Cities())
	assert.Equal(t, 7, req.Duration())
	assert.Len(t, req.Dates(), 7)
	assert.Equal(t, []string{"food", "temples"}, req.Preferences.Interests)
	assert.Equal(t, PaceRelaxed, req.Preferences.Pace)
	assert.Equal(t, BudgetLuxury, req.Preferences.Budget)
	assert.Equal(t, "One day for a cooking class", req.Preferences.SpecialRequests)
	assert.Equal(t, []string{"blob"}, req.References)
}

func TestNewTripRequestDefaults(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	req, err := NewTripRequest("Lisbon", nil, day, day, Preferences{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, req.Duration())
	assert.Equal(t, PaceModerate, req.Preferences.Pace)
	assert.Equal(t, BudgetMid, req.Preferences.Budget)
}

func TestNewTripRequestCopiesInputs(t *testing.T) {
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	refs := []string{"a"}
	req, err := NewTripRequest("Lisbon", nil, day, day, Preferences{}, refs)
	require.NoError(t, err)
	refs[0] = "changed"
	assert.Equal(t, "a", req.References[0])
}

func TestNewTripRequestRejects(t *testing.T) {
	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		dest  string
		end   time.Time
		prefs Preferences
	}{
		{"empty destination", " ", start, Preferences{}},
		{"end before start", "Rome", start.AddDate(0, 0, -1), Preferences{}},
		{"too long", "Rome", start.AddDate(0, 0, 365), Preferences{}},
		{"bad pace", "Rome", start, Preferences{Pace: "frantic"}},
		{"bad budget", "Rome", start, Preferences{Budget: "cheap"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTripRequest(tt.dest, nil, start, tt.end, tt.prefs, nil)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	_, err := NewTripRequest("Rome", nil, start, start.AddDate(0, 0, 364), Preferences{}, nil)
	assert.NoError(t, err, "365 days is allowed")
}

func TestBuildRejectsBadDates(t *testing.T) {
	rf := RequestFile{Destination: "Rome"}
	rf.Dates.Start = "10/06/2025"
	rf.Dates.End = "2025-06-12"
	_, err := rf.Build(nil)
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = ParseRequestYAML([]byte("destination: [unclosed"))
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestEstimateBudget(t *testing.T) {
	est := EstimateBudget(BudgetMid, 5)
	assert.Equal(t, 260.0, est.PerDay.Sum())
	assert.Equal(t, 600.0, est.Breakdown.Accommodation)
	assert.Equal(t, 1300.0, est.Subtotal)
	assert.Equal(t, 2100.0, est.Total)

	low := EstimateBudget(BudgetLow, 2)
	assert.Equal(t, 230.0, low.Subtotal)
	assert.Equal(t, 730.0, low.Total)

	lux := EstimateBudget(BudgetLuxury, 1)
	assert.Equal(t, 680.0, lux.Subtotal)
	assert.Equal(t, 2180.0, lux.Total)
}

func TestDaySubtotalFallsBackToActivityBaseline(t *testing.T) {
	assert.Equal(t, 115.0, DaySubtotal(BudgetLow, Day{}))
	assert.Equal(t, 145.0, DaySubtotal(BudgetLow, Day{Activities: []Activity{{Cost: 40}, {Cost: 10}}}))
}

func TestTier(t *testing.T) {
	tier, err := ParseTier("")
	require.NoError(t, err)
	assert.Equal(t, TierStandard, tier)

	tier, err = ParseTier(" LITE ")
	require.NoError(t, err)
	assert.Equal(t, TierLite, tier)
	assert.Equal(t, 7.0, tier.DefaultThreshold())
	assert.Equal(t, 8.0, TierStandard.DefaultThreshold())

	_, err = ParseTier("gpt-4o-mini")
	require.Error(t, err)
}
