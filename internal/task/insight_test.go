package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func score(v float64) *float64 { return &v }

func TestHealthScore(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  int
	}{
		{"empty", nil, 100},
		{"healthy", []Task{{Status: StatusCompleted, Deadline: "2026-01-01"}, {Deadline: "2026-12-01"}}, 100},
		{"overdue", []Task{{Deadline: "2026-03-01"}}, 90},
		{"done but overdue still counts", []Task{{Status: StatusDone, Deadline: "2026-03-01"}}, 90},
		{"blocked", []Task{{Status: StatusBlocked}}, 85},
		{"overdue and blocked", []Task{{Status: StatusBlocked, Deadline: "2026-03-01"}}, 75},
		{"low confidence", []Task{{ConfidenceScore: score(59)}, {ConfidenceScore: score(60)}}, 95},
		{"zero confidence counts", []Task{{ConfidenceScore: score(0)}}, 95},
		{"clamped", []Task{
			{Status: StatusBlocked, Deadline: "2026-01-01"},
			{Status: StatusBlocked, Deadline: "2026-01-01"},
			{Status: StatusBlocked, Deadline: "2026-01-01"},
			{Status: StatusBlocked, Deadline: "2026-01-01"},
			{Status: StatusBlocked, Deadline: "2026-01-01"},
		}, 0},
		{"unparseable deadline ignored", []Task{{Deadline: "soon"}}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HealthScore(tt.tasks, now)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

func TestDetectRisks(t *testing.T) {
	t.Run("no risks", func(t *testing.T) {
		tasks := []Task{
			{AssignedTo: "alice"}, {}, {AssignedTo: Unassigned}, {AssignedTo: ""},
			{AssignedTo: "bob", Deadline: "2027-01-01"},
		}
		assert.Empty(t, DetectRisks(tasks, now))
	})

	t.Run("four of five unassigned", func(t *testing.T) {
		tasks := []Task{{}, {AssignedTo: Unassigned}, {}, {AssignedTo: Unassigned}, {AssignedTo: "alice"}}
		assert.Equal(t, []Risk{{Type: RiskUnassigned, Count: 4, Severity: SeverityMedium}}, DetectRisks(tasks, now))
	})

	t.Run("fixed order and overlap", func(t *testing.T) {
		tasks := []Task{
			{Status: StatusBlocked, Deadline: "2026-03-09"},
			{Status: StatusBlocked},
			{Deadline: "2026-02-01", AssignedTo: "carol"},
			{}, {},
		}
		assert.Equal(t, []Risk{
			{Type: RiskOverdue, Count: 2, Severity: SeverityHigh},
			{Type: RiskBlocked, Count: 2, Severity: SeverityHigh},
			{Type: RiskUnassigned, Count: 4, Severity: SeverityMedium},
		}, DetectRisks(tasks, now))
	})
}

func TestProgress(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
		want  int
	}{
		{"empty", nil, 0},
		{"none", []Task{{Status: StatusApproved}}, 0},
		{"all", []Task{{Status: StatusCompleted}, {Status: StatusDone}}, 100},
		{"one third", []Task{{Status: StatusDone}, {}, {}}, 33},
		{"two thirds", []Task{{Status: StatusDone}, {Status: StatusCompleted}, {}}, 67},
		{"half up", []Task{
			{Status: StatusDone}, {}, {}, {}, {}, {}, {}, {},
		}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Progress(tt.tasks))
		})
	}
}

func TestPendingClarifications(t *testing.T) {
	assert.Equal(t, 2, PendingClarifications([]Task{{NeedsClarification: true}, {}, {NeedsClarification: true}}))
	assert.Zero(t, PendingClarifications(nil))
}

func TestUpcomingDeadlines(t *testing.T) {
	tasks := []Task{
		{ID: "past", Deadline: "2026-03-01"},
		{ID: "d", Deadline: "2026-06-01"},
		{ID: "none"},
		{ID: "a", Deadline: "2026-03-11"},
		{ID: "c", Deadline: "2026-04-01T09:00:00Z"},
		{ID: "b", Deadline: "2026-03-20"},
	}
	got := UpcomingDeadlines(tasks, now, 3)
	ids := make([]string, len(got))
	for i, tk := range got {
		ids[i] = tk.ID
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Empty(t, UpcomingDeadlines(nil, now, 3))
}
