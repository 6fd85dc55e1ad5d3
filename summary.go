package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"trip_itinerary_planner/generator"
	"trip_itinerary_planner/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	statusApproved  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusExhausted = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case storage.StatusApproved:
		return statusApproved
	case storage.StatusExhausted:
		return statusExhausted
	case storage.StatusFailed:
		return statusFailed
	default:
		return statusRunning
	}
}

func progressLine(state generator.State, iteration, maxIter int) string {
	switch state {
	case generator.StateResearching:
		return labelStyle.Render("• researching destinations")
	case generator.StatePlanning:
		return labelStyle.Render(fmt.Sprintf("• planning draft %d/%d", iteration+1, maxIter))
	case generator.StateReviewing:
		return labelStyle.Render(fmt.Sprintf("• reviewing draft %d/%d", iteration+1, maxIter))
	default:
		return labelStyle.Render("• " + string(state))
	}
}

func row(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-11s", label)) + " " + value
}

func renderSummary(out generator.Outcome, paths []string, stats map[generator.Step]generator.StepStats) string {
	status := storage.StatusExhausted
	verdict := "best effort, threshold not met"
	if out.Approved {
		status = storage.StatusApproved
		verdict = "approved"
	}
	lines := []string{
		titleStyle.Render("Trip to " + strings.Join(out.Request.Cities(), " → ")),
		row("run", out.RunID),
		row("status", statusStyle(status).Render(verdict)),
		row("score", fmt.Sprintf("%.1f / %.1f", out.Review.Score, out.Review.Threshold)),
		row("iterations", fmt.Sprintf("%d (best #%d)", out.Iterations, out.BestIndex+1)),
		row("days", fmt.Sprintf("%d", len(out.Draft.Days))),
		row("total", fmt.Sprintf("$%.0f incl. flights", out.Draft.Total)),
	}
	calls, retries := 0, 0
	for _, s := range stats {
		calls += s.Calls
		retries += s.Transient
	}
	if calls > 0 {
		lines = append(lines, row("model", fmt.Sprintf("%d calls, %d retried", calls, retries)))
	}
	for _, p := range paths {
		lines = append(lines, row("written", p))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderFailure(err error) string {
	lines := []string{statusFailed.Bold(true).Render("Planning failed")}
	for _, l := range strings.Split(generator.Report(err), "\n") {
		if label, value, ok := strings.Cut(l, ": "); ok {
			lines = append(lines, row(label, value))
		} else {
			lines = append(lines, l)
		}
	}
	return panelStyle.BorderForeground(lipgloss.Color("196")).Render(strings.Join(lines, "\n"))
}

func renderHistory(runs []*storage.Run) string {
	if len(runs) == 0 {
		return labelStyle.Render("no runs yet")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%-36s  %-16s  %-22s  %-9s  %5s  %s", "RUN", "STARTED", "DESTINATION", "STATUS", "SCORE", "ITER")))
	for _, r := range runs {
		dest := r.Destination
		if len([]rune(dest)) > 22 {
			dest = string([]rune(dest)[:21]) + "…"
		}
		fmt.Fprintf(&b, "\n%-36s  %-16s  %-22s  %s  %5.1f  %d",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), dest,
			statusStyle(r.Status).Render(fmt.Sprintf("%-9s", r.Status)), r.Score, r.Iterations)
	}
	return b.String()
}

func renderExplore(req generator.ExploreRequest, report string) string {
	interests := "general"
	if len(req.Interests) > 0 {
		interests = strings.Join(req.Interests, ", ")
	}
	head := []string{
		titleStyle.Render("Exploring " + req.Destination),
		row("days", fmt.Sprintf("%d", req.Days)),
		row("budget", string(req.Budget)),
		row("interests", interests),
	}
	next := []string{
		labelStyle.Render("next steps"),
		"1. pick the cities and days from a structure above",
		"2. write them into a request file",
		"3. run: tripplanner plan <request.yaml>",
	}
	return panelStyle.Render(strings.Join(head, "\n")) + "\n\n" + report + "\n\n" + strings.Join(next, "\n")
}
