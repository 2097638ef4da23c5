package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/clustertools/certauth/internal/mutate"
	"github.com/clustertools/certauth/internal/orchestrator"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")

	titleStyle   = lipgloss.NewStyle().Bold(true)
	stageStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorBlue)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle  = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	skipMark  = "[--]"
	warnMark  = "[??]"
)

// renderSummary formats a run summary for the terminal: one line per
// record grouped by stage, then follow-ups, outcome counts and the final
// verdict.
func renderSummary(sum *orchestrator.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("certauthctl %s", sum.Mode)))
	b.WriteString("\n")

	currentStage := ""
	for _, r := range sum.Records {
		if r.Stage != currentStage {
			currentStage = r.Stage
			b.WriteString("\n")
			b.WriteString(stageStyle.Render(currentStage))
			b.WriteString("\n")
		}
		b.WriteString("  ")
		b.WriteString(recordLine(r))
		b.WriteString("\n")
	}

	if len(sum.FollowUp) > 0 {
		b.WriteString("\n")
		b.WriteString(stageStyle.Render("follow-up"))
		b.WriteString("\n")
		for _, msg := range sum.FollowUp {
			b.WriteString(fmt.Sprintf("  %s %s\n", warningStyle.Render(warnMark), msg))
		}
	}

	b.WriteString("\n")
	b.WriteString(countsLine(sum))
	b.WriteString("\n")

	if err := sum.Err(); err != nil {
		b.WriteString(failedStyle.Render(fmt.Sprintf("%s %v", crossMark, err)))
	} else {
		b.WriteString(okStyle.Render(fmt.Sprintf("%s run completed", checkMark)))
	}
	b.WriteString("\n")

	return b.String()
}

func recordLine(r orchestrator.Record) string {
	subject := r.Target
	if r.Directive != "" {
		subject = fmt.Sprintf("%s %s", r.Target, r.Directive)
	}

	detail := r.Outcome
	if r.Detail != "" {
		detail = fmt.Sprintf("%s (%s)", r.Outcome, r.Detail)
	}
	if r.Err != nil {
		detail = fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	}

	switch {
	case r.Err != nil || r.Outcome == string(mutate.Failed):
		return fmt.Sprintf("%s %s %s", failedStyle.Render(crossMark), subject, detail)
	case r.Outcome == string(mutate.SkippedMissingFile):
		return dimStyle.Render(fmt.Sprintf("%s %s %s", skipMark, subject, detail))
	case r.Outcome == "absent" || r.Outcome == "foreign":
		return fmt.Sprintf("%s %s %s", dimStyle.Render(skipMark), subject, detail)
	default:
		return fmt.Sprintf("%s %s %s", okStyle.Render(checkMark), subject, detail)
	}
}

func countsLine(sum *orchestrator.Summary) string {
	counts := sum.Counts()
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return dimStyle.Render(strings.Join(parts, "  "))
}
