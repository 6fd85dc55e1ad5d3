package generator

// Rates are per-day baseline costs in USD.
type Rates struct {
	Accommodation float64 `json:"accommodation" yaml:"accommodation"`
	Food          float64 `json:"food" yaml:"food"`
	Activities    float64 `json:"activities" yaml:"activities"`
	Transport     float64 `json:"transport" yaml:"transport"`
}

// Sum is the daily total of all categories.
func (r Rates) Sum() float64 {
	return r.Accommodation + r.Food + r.Activities + r.Transport
}

var baselines = map[BudgetTier]Rates{
	BudgetLow:    {Accommodation: 50, Food: 30, Activities: 20, Transport: 15},
	BudgetMid:    {Accommodation: 120, Food: 60, Activities: 50, Transport: 30},
	BudgetLuxury: {Accommodation: 300, Food: 150, Activities: 150, Transport: 80},
}

var flightEstimates = map[BudgetTier]float64{
	BudgetLow:    500,
	BudgetMid:    800,
	BudgetLuxury: 1500,
}

// BaselineRates returns the per-day rates for a budget tier, falling back to
// mid-range for unknown tiers.
func BaselineRates(tier BudgetTier) Rates {
	if r, ok := baselines[tier]; ok {
		return r
	}
	return baselines[BudgetMid]
}

// BudgetEstimate is the baseline cost envelope of a trip.
type BudgetEstimate struct {
	Tier      BudgetTier `json:"tier" yaml:"tier"`
	Days      int        `json:"days" yaml:"days"`
	PerDay    Rates      `json:"per_day" yaml:"per_day"`
	Breakdown Rates      `json:"breakdown" yaml:"breakdown"`
	Flights   float64    `json:"flights" yaml:"flights"`
	Subtotal  float64    `json:"subtotal" yaml:"subtotal"`
	Total     float64    `json:"total" yaml:"total"`
}

// EstimateBudget scales the tier's baseline rates by day count and adds the
// flight estimate.
func EstimateBudget(tier BudgetTier, days int) BudgetEstimate {
	r := BaselineRates(tier)
	n := float64(days)
	flights, ok := flightEstimates[tier]
	if !ok {
		flights = flightEstimates[BudgetMid]
	}
	est := BudgetEstimate{
		Tier:   tier,
		Days:   days,
		PerDay: r,
		Breakdown: Rates{
			Accommodation: r.Accommodation * n,
			Food:          r.Food * n,
			Activities:    r.Activities * n,
			Transport:     r.Transport * n,
		},
		Flights:  flights,
		Subtotal: r.Sum() * n,
	}
	est.Total = est.Subtotal + est.Flights
	return est
}

// DaySubtotal prices a day: fixed accommodation, food and transport baselines
// plus the itemised activity costs, or the activity baseline when the model
// priced nothing.
func DaySubtotal(tier BudgetTier, d Day) float64 {
	r := BaselineRates(tier)
	var activities float64
	for _, a := range d.Activities {
		activities += a.Cost
	}
	if activities <= 0 {
		activities = r.Activities
	}
	return r.Accommodation + r.Food + r.Transport + activities
}
