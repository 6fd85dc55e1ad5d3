package weather

import (
	"strings"
	"time"

	"trip_itinerary_planner/generator"
)

type season struct {
	min, max float64
	precip   float64
	cond     string
}

// seasonal holds typical monthly conditions for cities the planner sees most.
var seasonal = map[string]map[time.Month]season{
	"tokyo": {
		time.January:   {5, 10, 0.2, "cold, clear skies"},
		time.February:  {5, 12, 0.25, "cold, occasional snow"},
		time.March:     {10, 15, 0.35, "mild, cherry blossom season begins"},
		time.April:     {14, 20, 0.35, "pleasant spring weather, cherry blossoms"},
		time.May:       {18, 24, 0.4, "warm, occasional rain"},
		time.June:      {21, 27, 0.6, "humid, rainy season begins"},
		time.July:      {25, 31, 0.5, "hot and humid"},
		time.August:    {26, 31, 0.4, "very hot and humid"},
		time.September: {22, 27, 0.5, "warm, typhoon season"},
		time.October:   {17, 22, 0.35, "pleasant, clear skies"},
		time.November:  {12, 17, 0.25, "cool, fall foliage"},
		time.December:  {7, 12, 0.2, "cold, dry"},
	},
	"kyoto": {
		time.March:    {8, 14, 0.35, "mild, cherry blossom season"},
		time.April:    {13, 20, 0.35, "pleasant, peak cherry blossoms"},
		time.November: {10, 17, 0.25, "cool, stunning fall foliage"},
	},
	"osaka": {
		time.March: {9, 15, 0.35, "mild spring weather"},
		time.April: {14, 21, 0.35, "pleasant, cherry blossoms"},
	},
}

// Seasonal estimates the weather for a city and month from the built-in
// table. Unknown cities in Japan use Tokyo; anything else returns nil so the
// research step relies on the model's own seasonal knowledge.
func Seasonal(city string, month time.Month) *generator.WeatherSummary {
	key := strings.ToLower(strings.TrimSpace(city))
	name, _, _ := strings.Cut(key, ",")
	s, ok := seasonal[strings.TrimSpace(name)][month]
	if !ok && strings.Contains(key, "japan") {
		s, ok = seasonal["tokyo"][month]
	}
	if !ok {
		return nil
	}
	return &generator.WeatherSummary{
		MinTempC:          s.min,
		MaxTempC:          s.max,
		PrecipProbability: s.precip,
		Conditions:        s.cond,
		Source:            generator.WeatherSeasonalEstimate,
	}
}
