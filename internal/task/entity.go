package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusCompleted       Status = "completed"
	StatusDone            Status = "done"
	StatusBlocked         Status = "blocked"
	StatusSentToSlack     Status = "sent_to_slack"
)

// Unassigned is the assignee sentinel the API uses for tasks without an owner.
const Unassigned = "Unassigned"

type Task struct {
	ID                 string       `json:"id" yaml:"id"`
	Title              string       `json:"title" yaml:"title"`
	Description        string       `json:"description,omitempty" yaml:"description,omitempty"`
	Status             Status       `json:"status,omitempty" yaml:"status,omitempty"`
	Priority           string       `json:"priority,omitempty" yaml:"priority,omitempty"`
	AssignedTo         string       `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`
	AssignedEmail      string       `json:"assigned_member_email,omitempty" yaml:"assigned_member_email,omitempty"`
	Deadline           string       `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	EstimatedHours     *float64     `json:"estimated_hours,omitempty" yaml:"estimated_hours,omitempty"`
	ProjectID          string       `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	ConfidenceScore    *float64     `json:"confidence_score,omitempty" yaml:"confidence_score,omitempty"`
	NeedsClarification bool         `json:"needs_clarification,omitempty" yaml:"needs_clarification,omitempty"`
	SuggestedMembers   []TeamMember `json:"suggested_members,omitempty" yaml:"suggested_members,omitempty"`
}

type TeamMember struct {
	Name            string   `json:"name" yaml:"name"`
	Email           string   `json:"email,omitempty" yaml:"email,omitempty"`
	Role            string   `json:"role,omitempty" yaml:"role,omitempty"`
	Skills          []string `json:"skills,omitempty" yaml:"skills,omitempty"`
	ExperienceYears float64  `json:"experience_years,omitempty" yaml:"experience_years,omitempty"`
	Status          string   `json:"status,omitempty" yaml:"status,omitempty"`
	IdlePercentage  float64  `json:"idle_percentage,omitempty" yaml:"idle_percentage,omitempty"`
}

// UnmarshalJSON accepts the shapes seen from upstream: a legacy _id, a
// numeric project_id or a nested project object, and numbers sent as strings.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	aux := struct {
		*plain
		LegacyID        json.RawMessage `json:"_id"`
		ID              json.RawMessage `json:"id"`
		ProjectID       json.RawMessage `json:"project_id"`
		EstimatedHours  json.RawMessage `json:"estimated_hours"`
		ConfidenceScore json.RawMessage `json:"confidence_score"`
		Project         *struct {
			ID json.RawMessage `json:"id"`
		} `json:"project"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if t.ID, err = flexString(aux.ID); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if t.ID == "" {
		if t.ID, err = flexString(aux.LegacyID); err != nil {
			return fmt.Errorf("_id: %w", err)
		}
	}
	if t.ProjectID, err = flexString(aux.ProjectID); err != nil {
		return fmt.Errorf("project_id: %w", err)
	}
	if t.ProjectID == "" && aux.Project != nil {
		if t.ProjectID, err = flexString(aux.Project.ID); err != nil {
			return fmt.Errorf("project.id: %w", err)
		}
	}
	t.EstimatedHours = flexFloat(aux.EstimatedHours)
	t.ConfidenceScore = flexFloat(aux.ConfidenceScore)
	return nil
}

// DeadlineTime parses Deadline as a date or an RFC 3339 timestamp.
func (t Task) DeadlineTime() (time.Time, bool) {
	d := strings.TrimSpace(t.Deadline)
	if d == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04:05"} {
		if v, err := time.Parse(layout, d); err == nil {
			return v, true
		}
	}
	return time.Time{}, false
}

// IsOverdue reports whether the deadline has passed and the task is not
// completed. A task marked done still counts.
func (t Task) IsOverdue(now time.Time) bool {
	d, ok := t.DeadlineTime()
	return ok && d.Before(now) && t.Status != StatusCompleted
}

func (t Task) IsFinished() bool {
	return t.Status == StatusCompleted || t.Status == StatusDone
}

func (t Task) IsUnassigned() bool {
	return t.AssignedTo == "" || t.AssignedTo == Unassigned
}

func (t Task) LowConfidence() bool {
	return t.ConfidenceScore != nil && *t.ConfidenceScore < 60
}

func flexString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("unexpected %s", raw)
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// flexFloat returns nil for missing, null, or unparseable values.
func flexFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
