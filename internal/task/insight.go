package task

import (
	"math"
	"sort"
	"time"
)

const (
	overduePenalty       = 10
	blockedPenalty       = 15
	lowConfidencePenalty = 5

	// unassignedRiskThreshold is the count that must be exceeded before
	// unassigned work is reported as a risk.
	unassignedRiskThreshold = 3
)

// HealthScore rates a task list from 0 to 100. An empty list scores 100.
func HealthScore(tasks []Task, now time.Time) int {
	score := 100
	for _, t := range tasks {
		if t.IsOverdue(now) {
			score -= overduePenalty
		}
		if t.Status == StatusBlocked {
			score -= blockedPenalty
		}
		if t.LowConfidence() {
			score -= lowConfidencePenalty
		}
	}
	return max(0, min(100, score))
}

type RiskType string

const (
	RiskOverdue    RiskType = "overdue"
	RiskBlocked    RiskType = "blocked"
	RiskUnassigned RiskType = "unassigned"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

type Risk struct {
	Type     RiskType `json:"type" yaml:"type"`
	Count    int      `json:"count" yaml:"count"`
	Severity Severity `json:"severity" yaml:"severity"`
}

// DetectRisks returns overdue, blocked and unassigned risks in that order,
// omitting categories below their threshold.
func DetectRisks(tasks []Task, now time.Time) []Risk {
	var overdue, blocked, unassigned int
	for _, t := range tasks {
		if t.IsOverdue(now) {
			overdue++
		}
		if t.Status == StatusBlocked {
			blocked++
		}
		if t.IsUnassigned() {
			unassigned++
		}
	}

	var risks []Risk
	if overdue > 0 {
		risks = append(risks, Risk{Type: RiskOverdue, Count: overdue, Severity: SeverityHigh})
	}
	if blocked > 0 {
		risks = append(risks, Risk{Type: RiskBlocked, Count: blocked, Severity: SeverityHigh})
	}
	if unassigned > unassignedRiskThreshold {
		risks = append(risks, Risk{Type: RiskUnassigned, Count: unassigned, Severity: SeverityMedium})
	}
	return risks
}

// Progress is the rounded percentage of completed or done tasks. An empty
// list is 0.
func Progress(tasks []Task) int {
	if len(tasks) == 0 {
		return 0
	}
	var finished int
	for _, t := range tasks {
		if t.IsFinished() {
			finished++
		}
	}
	return int(math.Floor(float64(finished)*100/float64(len(tasks)) + 0.5))
}

func PendingClarifications(tasks []Task) int {
	var n int
	for _, t := range tasks {
		if t.NeedsClarification {
			n++
		}
	}
	return n
}

// UpcomingDeadlines returns up to limit tasks whose deadline is after now,
// earliest first.
func UpcomingDeadlines(tasks []Task, now time.Time, limit int) []Task {
	type dated struct {
		task Task
		at   time.Time
	}
	var upcoming []dated
	for _, t := range tasks {
		if d, ok := t.DeadlineTime(); ok && d.After(now) {
			upcoming = append(upcoming, dated{task: t, at: d})
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].at.Before(upcoming[j].at)
	})
	if limit >= 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	out := make([]Task, len(upcoming))
	for i, u := range upcoming {
		out[i] = u.task
	}
	return out
}
