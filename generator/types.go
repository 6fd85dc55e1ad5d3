package generator

import (
	"time"
)

// Pace is how densely the traveller wants days packed.
type Pace string

const (
	PaceRelaxed  Pace = "relaxed"
	PaceModerate Pace = "moderate"
	PaceFast     Pace = "fast"
)

// BudgetTier selects the per-category baseline rates used for cost estimates.
type BudgetTier string

const (
	BudgetLow    BudgetTier = "budget"
	BudgetMid    BudgetTier = "mid-range"
	BudgetLuxury BudgetTier = "luxury"
)

// Preferences 描述旅行者的偏好。
type Preferences struct {
	Interests           []string   `json:"interests,omitempty" yaml:"interests,omitempty"`
	Pace                Pace       `json:"pace" yaml:"pace"`
	Budget              BudgetTier `json:"budget" yaml:"budget"`
	DietaryRestrictions []string   `json:"dietary_restrictions,omitempty" yaml:"dietary_restrictions,omitempty"`
	SpecialRequests     string     `json:"special_requests,omitempty" yaml:"special_requests,omitempty"`
}

// TripRequest is the validated input of one planning run. Build it with
// RequestFile.Build or NewTripRequest; the constructors copy every slice so
// callers cannot mutate a request after handing it over.
type TripRequest struct {
	Destination            string      `json:"destination" yaml:"destination"`
	AdditionalDestinations []string    `json:"additional_destinations,omitempty" yaml:"additional_destinations,omitempty"`
	StartDate              time.Time   `json:"start_date" yaml:"start_date"`
	EndDate                time.Time   `json:"end_date" yaml:"end_date"`
	Preferences            Preferences `json:"preferences" yaml:"preferences"`
	References             []string    `json:"-" yaml:"-"`
}

// WeatherSource tags where a WeatherSummary came from.
type WeatherSource string

const (
	WeatherFromAPI          WeatherSource = "api"
	WeatherSeasonalEstimate WeatherSource = "seasonal-estimate"
)

// WeatherSummary is the structured forecast attached to research notes.
type WeatherSummary struct {
	City              string        `json:"city,omitempty" yaml:"city,omitempty"`
	MinTempC          float64       `json:"min_temp_c" yaml:"min_temp_c"`
	MaxTempC          float64       `json:"max_temp_c" yaml:"max_temp_c"`
	PrecipProbability float64       `json:"precip_probability" yaml:"precip_probability"`
	Conditions        string        `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Source            WeatherSource `json:"source" yaml:"source"`
}

// ResearchNotes is produced once per run by the research step.
type ResearchNotes struct {
	Text string `json:"text" yaml:"text"`
	// Weather holds one entry per city that had a forecast or an estimate.
	Weather []WeatherSummary `json:"weather,omitempty" yaml:"weather,omitempty"`
	// Transit is the local pass and inter-city guide handed to planning.
	Transit string `json:"transit,omitempty" yaml:"transit,omitempty"`
}

// Activity is one scheduled item inside a day.
type Activity struct {
	Time        string  `json:"time" yaml:"time"`
	Description string  `json:"description" yaml:"description"`
	Cost        float64 `json:"estimated_cost" yaml:"estimated_cost"`
	Location    string  `json:"location" yaml:"location"`
}

// Day is one calendar day of an itinerary.
type Day struct {
	Date       time.Time  `json:"date" yaml:"date"`
	City       string     `json:"city" yaml:"city"`
	Area       string     `json:"area,omitempty" yaml:"area,omitempty"`
	Activities []Activity `json:"activities" yaml:"activities"`
	Subtotal   float64    `json:"subtotal" yaml:"subtotal"`
}

// ItineraryDraft is the output of one planning pass. Drafts are never edited
// after construction; every refinement pass builds a new one.
type ItineraryDraft struct {
	Generation  int            `json:"generation" yaml:"generation"`
	Days        []Day          `json:"days" yaml:"days"`
	Budget      BudgetEstimate `json:"budget" yaml:"budget"`
	Total       float64        `json:"total" yaml:"total"`
	PackingList []string       `json:"packing_list,omitempty" yaml:"packing_list,omitempty"`
	Notes       []string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	Raw         string         `json:"-" yaml:"-"`
}

// Category tags a review feedback item.
type Category string

const (
	CategoryGeography       Category = "geography"
	CategoryTiming          Category = "timing"
	CategoryBudget          Category = "budget"
	CategoryPersonalization Category = "personalization"
)

// Categories lists the review dimensions in report order.
var Categories = []Category{CategoryGeography, CategoryTiming, CategoryBudget, CategoryPersonalization}

// FeedbackItem is one actionable finding of a review.
type FeedbackItem struct {
	Category Category `json:"category" yaml:"category"`
	Day      int      `json:"day,omitempty" yaml:"day,omitempty"`
	Issue    string   `json:"issue" yaml:"issue"`
	Fix      string   `json:"fix,omitempty" yaml:"fix,omitempty"`
}

// ReviewResult scores one draft.
type ReviewResult struct {
	Score      float64              `json:"score" yaml:"score"`
	Dimensions map[Category]float64 `json:"dimensions" yaml:"dimensions"`
	Passed     bool                 `json:"passed" yaml:"passed"`
	Threshold  float64              `json:"threshold" yaml:"threshold"`
	Feedback   []FeedbackItem       `json:"feedback,omitempty" yaml:"feedback,omitempty"`
	Summary    string               `json:"summary" yaml:"summary"`
}

// Flagged reports the categories that carry at least one feedback item.
func (r ReviewResult) Flagged() []Category {
	var out []Category
	for _, c := range Categories {
		for _, f := range r.Feedback {
			if f.Category == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Turn 记录一次 Planning+Review 循环。
type Turn struct {
	Iteration int            `json:"iteration" yaml:"iteration"`
	Draft     ItineraryDraft `json:"draft" yaml:"draft"`
	Review    ReviewResult   `json:"review" yaml:"review"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}

// Outcome is the terminal result of a successful run.
type Outcome struct {
	RunID      string         `json:"run_id" yaml:"run_id"`
	Request    TripRequest    `json:"request" yaml:"request"`
	Research   ResearchNotes  `json:"research" yaml:"research"`
	Draft      ItineraryDraft `json:"draft" yaml:"draft"`
	Review     ReviewResult   `json:"review" yaml:"review"`
	Iterations int            `json:"iterations" yaml:"iterations"`
	Approved   bool           `json:"approved" yaml:"approved"`
	BestIndex  int            `json:"best_index" yaml:"best_index"`
	History    []Turn         `json:"history" yaml:"history"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	Elapsed    time.Duration  `json:"elapsed" yaml:"elapsed"`
}
