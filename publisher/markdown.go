package publisher

import (
	"fmt"
	"strings"

	"trip_itinerary_planner/generator"
)

func tripTitle(req generator.TripRequest) string {
	return "Trip to " + strings.Join(req.Cities(), " → ")
}

func status(o generator.Outcome) string {
	if o.Approved {
		return "approved"
	}
	return "best effort (threshold not met)"
}

func money(v float64) string {
	return fmt.Sprintf("$%.0f", v)
}

// markdown renders the itinerary. Links are added only when maps is set.
func markdown(o generator.Outcome, maps bool) string {
	req, d, r := o.Request, o.Draft, o.Review
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", tripTitle(req))
	fmt.Fprintf(&b, "*%s to %s · %d days · %s budget · %s pace*\n\n",
		req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"), req.Duration(), req.Preferences.Budget, req.Preferences.Pace)
	fmt.Fprintf(&b, "**Status:** %s, score %.1f/10 (threshold %.1f) after %d iteration(s)\n\n", status(o), r.Score, r.Threshold, o.Iterations)
	if p := req.Preferences; len(p.Interests) > 0 || len(p.DietaryRestrictions) > 0 || p.SpecialRequests != "" {
		b.WriteString("## Preferences\n\n")
		if len(p.Interests) > 0 {
			fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(p.Interests, ", "))
		}
		if len(p.DietaryRestrictions) > 0 {
			fmt.Fprintf(&b, "- Dietary restrictions: %s\n", strings.Join(p.DietaryRestrictions, ", "))
		}
		if p.SpecialRequests != "" {
			fmt.Fprintf(&b, "- Special requests: %s\n", p.SpecialRequests)
		}
		b.WriteString("\n")
	}

	if len(o.Research.Weather) > 0 {
		b.WriteString("## Weather\n\n")
		for _, w := range o.Research.Weather {
			fmt.Fprintf(&b, "- **%s**: %.0f–%.0f°C, %.0f%% chance of precipitation", w.City, w.MinTempC, w.MaxTempC, w.PrecipProbability*100)
			if w.Conditions != "" {
				fmt.Fprintf(&b, ", %s", w.Conditions)
			}
			fmt.Fprintf(&b, " (%s)\n", w.Source)
		}
		b.WriteString("\n")
	}

	for i, day := range d.Days {
		fmt.Fprintf(&b, "## Day %d · %s · %s", i+1, day.Date.Format("Mon 2 Jan"), day.City)
		if day.Area != "" {
			fmt.Fprintf(&b, " (%s)", day.Area)
		}
		b.WriteString("\n\n")
		if maps && i > 0 && d.Days[i-1].City != day.City {
			fmt.Fprintf(&b, "Travel: [%s to %s](%s)\n\n", d.Days[i-1].City, day.City, MapsDirectionsURL(d.Days[i-1].City, day.City, ""))
		}
		for _, a := range day.Activities {
			fmt.Fprintf(&b, "- **%s** %s", a.Time, a.Description)
			if a.Location != "" {
				if maps {
					fmt.Fprintf(&b, " @ [%s](%s)", a.Location, MapsSearchURL(a.Location, day.City))
				} else {
					fmt.Fprintf(&b, " @ %s", a.Location)
				}
			}
			if a.Cost > 0 {
				fmt.Fprintf(&b, " (%s)", money(a.Cost))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "\nDay subtotal: %s\n\n", money(day.Subtotal))
	}

	est := d.Budget
	b.WriteString("## Budget\n\n")
	b.WriteString("| Category | Per day | Total |\n|---|---:|---:|\n")
	fmt.Fprintf(&b, "| Accommodation | %s | %s |\n", money(est.PerDay.Accommodation), money(est.Breakdown.Accommodation))
	fmt.Fprintf(&b, "| Food | %s | %s |\n", money(est.PerDay.Food), money(est.Breakdown.Food))
	fmt.Fprintf(&b, "| Activities | %s | %s |\n", money(est.PerDay.Activities), money(est.Breakdown.Activities))
	fmt.Fprintf(&b, "| Transport | %s | %s |\n", money(est.PerDay.Transport), money(est.Breakdown.Transport))
	fmt.Fprintf(&b, "| Flights | | %s |\n", money(est.Flights))
	fmt.Fprintf(&b, "| **Itinerary total** | | **%s** |\n\n", money(d.Total))

	writeList(&b, "Packing list", d.PackingList)
	writeList(&b, "Notes", d.Notes)

	b.WriteString("## Review\n\n")
	for _, c := range generator.Categories {
		fmt.Fprintf(&b, "- %s: %.1f\n", c, r.Dimensions[c])
	}
	if r.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Summary)
	}
	if len(r.Feedback) > 0 {
		b.WriteString("\nOpen feedback:\n\n")
		for _, f := range r.Feedback {
			fmt.Fprintf(&b, "- [%s]", f.Category)
			if f.Day > 0 {
				fmt.Fprintf(&b, " day %d:", f.Day)
			}
			fmt.Fprintf(&b, " %s\n", f.Issue)
		}
	}
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// text is the plain-text export: no markup, one line per activity.
func text(o generator.Outcome) string {
	req, d := o.Request, o.Draft
	var b strings.Builder
	title := strings.ToUpper(tripTitle(req))
	fmt.Fprintf(&b, "%s\n%s\n", title, strings.Repeat("=", len([]rune(title))))
	fmt.Fprintf(&b, "%s to %s (%d days), %s budget, %s pace\n",
		req.StartDate.Format("2006-01-02"), req.EndDate.Format("2006-01-02"), req.Duration(), req.Preferences.Budget, req.Preferences.Pace)
	fmt.Fprintf(&b, "Status: %s, score %.1f/10\n\n", status(o), o.Review.Score)

	for i, day := range d.Days {
		fmt.Fprintf(&b, "DAY %d - %s - %s\n", i+1, day.Date.Format("Mon 2 Jan 2006"), day.City)
		for _, a := range day.Activities {
			fmt.Fprintf(&b, "  %-6s %s", a.Time, a.Description)
			if a.Location != "" {
				fmt.Fprintf(&b, " at %s", a.Location)
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "  Subtotal: %s\n\n", money(day.Subtotal))
	}
	fmt.Fprintf(&b, "Estimated total incl. flights: %s\n", money(d.Total))
	if len(d.PackingList) > 0 {
		fmt.Fprintf(&b, "Packing: %s\n", strings.Join(d.PackingList, ", "))
	}
	for _, n := range d.Notes {
		fmt.Fprintf(&b, "Note: %s\n", n)
	}
	return b.String()
}
