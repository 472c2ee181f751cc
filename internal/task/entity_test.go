package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantID    string
		wantProj  string
		wantHours *float64
	}{
		{"plain", `{"id":"t1","project_id":"p1","estimated_hours":4}`, "t1", "p1", score(4)},
		{"legacy id and numeric project", `{"_id":"abc","project_id":42}`, "abc", "42", nil},
		{"nested project", `{"id":"t2","project":{"id":7}}`, "t2", "7", nil},
		{"hours as string", `{"id":"t3","estimated_hours":" 2.5 "}`, "t3", "", score(2.5)},
		{"hours garbage", `{"id":"t4","estimated_hours":"a few"}`, "t4", "", nil},
		{"numeric id", `{"id":5}`, "5", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Task
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, tt.wantProj, got.ProjectID)
			assert.Equal(t, tt.wantHours, got.EstimatedHours)
		})
	}
}

func TestTask_UnmarshalJSON_KeepsOtherFields(t *testing.T) {
	in := `{"id":"t1","title":"Login","status":"blocked","assigned_to":"Alice","confidence_score":"55",
		"needs_clarification":true,"suggested_members":[{"name":"Bob","email":"bob@example.com","skills":["go"]}]}`
	var got Task
	require.NoError(t, json.Unmarshal([]byte(in), &got))
	assert.Equal(t, "Login", got.Title)
	assert.Equal(t, StatusBlocked, got.Status)
	assert.True(t, got.LowConfidence())
	assert.True(t, got.NeedsClarification)
	require.Len(t, got.SuggestedMembers, 1)
	assert.Equal(t, "bob@example.com", got.SuggestedMembers[0].Email)
}

func TestTask_UnmarshalJSON_RejectsObjectID(t *testing.T) {
	var got Task
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"$oid":"x"}}`), &got))
}

func TestTask_DeadlineTime(t *testing.T) {
	d, ok := Task{Deadline: "2026-03-10"}.DeadlineTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), d)

	_, ok = Task{Deadline: "2026-03-10T08:00:00+09:00"}.DeadlineTime()
	assert.True(t, ok)

	_, ok = Task{}.DeadlineTime()
	assert.False(t, ok)
}
