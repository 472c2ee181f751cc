package color

import (
	"fmt"
	"hash/fnv"
	"strings"

	fcolor "github.com/fatih/color"
)

// Health score bands.
const (
	HealthyScore = 80
	AtRiskScore  = 50
)

var palette = []fcolor.Attribute{
	fcolor.FgHiRed,
	fcolor.FgHiGreen,
	fcolor.FgHiYellow,
	fcolor.FgHiBlue,
	fcolor.FgHiMagenta,
	fcolor.FgHiCyan,
	fcolor.FgRed,
	fcolor.FgGreen,
	fcolor.FgYellow,
	fcolor.FgBlue,
	fcolor.FgMagenta,
	fcolor.FgCyan,
}

// SetEnabled forces color output on or off. By default color follows the
// terminal and NO_COLOR.
func SetEnabled(on bool) {
	fcolor.NoColor = !on
}

// ForID returns a color that is stable for id across runs.
func ForID(id string) *fcolor.Color {
	h := fnv.New32a()
	h.Write([]byte(id))
	return fcolor.New(palette[h.Sum32()%uint32(len(palette))])
}

// Prefix renders "[label]" in the color assigned to id.
func Prefix(id, label string) string {
	return ForID(id).Sprintf("[%s]", label)
}

func Health(score int) string {
	text := fmt.Sprintf("%3d", score)
	switch {
	case score >= HealthyScore:
		return fcolor.GreenString(text)
	case score >= AtRiskScore:
		return fcolor.YellowString(text)
	}
	return fcolor.New(fcolor.FgRed, fcolor.Bold).Sprint(text)
}

func Severity(severity string) string {
	switch strings.ToLower(severity) {
	case "high":
		return fcolor.New(fcolor.FgRed, fcolor.Bold).Sprint(severity)
	case "medium":
		return fcolor.YellowString(severity)
	}
	return severity
}

func Status(status string) string {
	switch status {
	case "completed", "done":
		return fcolor.GreenString(status)
	case "blocked":
		return fcolor.RedString(status)
	case "pending_approval":
		return fcolor.YellowString(status)
	case "approved", "sent_to_slack":
		return fcolor.CyanString(status)
	}
	return status
}

func Faint(s string) string {
	return fcolor.New(fcolor.Faint).Sprint(s)
}

func Bold(s string) string {
	return fcolor.New(fcolor.Bold).Sprint(s)
}

// Diff colors the lines of a unified diff.
func Diff(diff string) string {
	var b strings.Builder
	for line := range strings.Lines(diff) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(Bold(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(fcolor.GreenString(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(fcolor.RedString(line))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(fcolor.CyanString(line))
		default:
			b.WriteString(line)
		}
	}
	return b.String()
}
