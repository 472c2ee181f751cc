package task

import "strings"

// All disables a filter criterion.
const All = "all"

type PriorityBucket string

const (
	PriorityCritical PriorityBucket = "critical"
	PriorityMedium   PriorityBucket = "medium"
	PriorityEasy     PriorityBucket = "easy"
)

// Bucket maps a free-text priority onto its bucket, ignoring case.
func Bucket(priority string) (PriorityBucket, bool) {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "critical", "high":
		return PriorityCritical, true
	case "medium":
		return PriorityMedium, true
	case "easy", "low":
		return PriorityEasy, true
	}
	return "", false
}

// Criteria selects tasks. Empty fields behave like All.
type Criteria struct {
	Status    string
	ProjectID string
	Priority  string
	Search    string
}

func disabled(v string) bool {
	return v == "" || v == All
}

func (c Criteria) Match(t Task) bool {
	if !disabled(c.Status) && string(t.Status) != c.Status {
		return false
	}
	if !disabled(c.ProjectID) && t.ProjectID != c.ProjectID {
		return false
	}
	if !disabled(c.Priority) {
		b, ok := Bucket(t.Priority)
		if !ok || string(b) != strings.ToLower(c.Priority) {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(c.Search)); q != "" {
		if !strings.Contains(strings.ToLower(t.AssignedTo), q) {
			return false
		}
	}
	return true
}

// Filter returns the tasks matching every active criterion, in input order.
func Filter(tasks []Task, c Criteria) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if c.Match(t) {
			out = append(out, t)
		}
	}
	return out
}
