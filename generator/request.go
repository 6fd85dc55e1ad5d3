package generator

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// maxTripDays caps a single request; longer stays are relocations, not trips.
const maxTripDays = 365

// ErrInvalidRequest is wrapped by every validation failure of a trip request.
var ErrInvalidRequest = errors.New("invalid trip request")

// RequestFile is the wire shape of a trip request (YAML files, JSON bodies).
type RequestFile struct {
	Destination            string   `json:"destination" yaml:"destination"`
	AdditionalDestinations []string `json:"additional_destinations,omitempty" yaml:"additional_destinations,omitempty"`
	Dates                  struct {
		Start string `json:"start_date" yaml:"start_date"`
		End   string `json:"end_date" yaml:"end_date"`
	} `json:"dates" yaml:"dates"`
	Preferences    Preferences `json:"preferences" yaml:"preferences"`
	ReferenceFiles []string    `json:"reference_files,omitempty" yaml:"reference_files,omitempty"`
}

// ParseRequestYAML decodes a request file. It does not validate; call Build.
func ParseRequestYAML(data []byte) (RequestFile, error) {
	var rf RequestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return RequestFile{}, fmt.Errorf("%w: decode yaml: %v", ErrInvalidRequest, err)
	}
	return rf, nil
}

// Build validates the wire request and attaches already-extracted reference
// material.
func (rf RequestFile) Build(references []string) (TripRequest, error) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(rf.Dates.Start))
	if err != nil {
		return TripRequest{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(rf.Dates.End))
	if err != nil {
		return TripRequest{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return NewTripRequest(rf.Destination, rf.AdditionalDestinations, start, end, rf.Preferences, references)
}

// NewTripRequest validates and copies its inputs.
func NewTripRequest(destination string, additional []string, start, end time.Time, prefs Preferences, references []string) (TripRequest, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return TripRequest{}, fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	}
	if end.Before(start) {
		return TripRequest{}, fmt.Errorf("%w: end date %s is before start date %s", ErrInvalidRequest, end.Format(dateLayout), start.Format(dateLayout))
	}
	if prefs.Pace == "" {
		prefs.Pace = PaceModerate
	}
	if prefs.Budget == "" {
		prefs.Budget = BudgetMid
	}
	switch prefs.Pace {
	case PaceRelaxed, PaceModerate, PaceFast:
	default:
		return TripRequest{}, fmt.Errorf("%w: pace must be one of relaxed, moderate, fast (got %q)", ErrInvalidRequest, prefs.Pace)
	}
	if _, ok := baselines[prefs.Budget]; !ok {
		return TripRequest{}, fmt.Errorf("%w: budget must be one of budget, mid-range, luxury (got %q)", ErrInvalidRequest, prefs.Budget)
	}

	req := TripRequest{
		Destination: destination,
		StartDate:   start,
		EndDate:     end,
		Preferences: Preferences{
			Interests:           dedupe(prefs.Interests),
			Pace:                prefs.Pace,
			Budget:              prefs.Budget,
			DietaryRestrictions: dedupe(prefs.DietaryRestrictions),
			SpecialRequests:     strings.TrimSpace(prefs.SpecialRequests),
		},
		References: slices.Clone(references),
	}
	for _, d := range additional {
		if d = strings.TrimSpace(d); d != "" {
			req.AdditionalDestinations = append(req.AdditionalDestinations, d)
		}
	}
	if n := req.Duration(); n > maxTripDays {
		return TripRequest{}, fmt.Errorf("%w: trip of %d days exceeds %d", ErrInvalidRequest, n, maxTripDays)
	}
	return req, nil
}

// Duration is the inclusive day count.
func (r TripRequest) Duration() int {
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}

// Cities returns the destination sequence, primary destination first.
func (r TripRequest) Cities() []string {
	return append([]string{r.Destination}, r.AdditionalDestinations...)
}

// Dates lists every calendar day of the trip.
func (r TripRequest) Dates() []time.Time {
	out := make([]time.Time, 0, r.Duration())
	for d := r.StartDate; !d.After(r.EndDate); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// interests and dietary restrictions are sets; keep first-seen order.
func dedupe(in []string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
