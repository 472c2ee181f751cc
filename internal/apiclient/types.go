package apiclient

import (
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
)

type AnalysisStatus string

const (
	AnalysisClear        AnalysisStatus = "clear"
	AnalysisNeedsContext AnalysisStatus = "needs_context"
	AnalysisAmbiguous    AnalysisStatus = "ambiguous"
)

type AnalyzeRequest struct {
	Task         string                   `json:"task"`
	SessionID    string                   `json:"session_id,omitempty"`
	Repositories []project.AnalysisTarget `json:"repositories"`
}

type Question struct {
	Question    string   `json:"question" yaml:"question"`
	Explanation string   `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Impact      string   `json:"impact,omitempty" yaml:"impact,omitempty"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
}

type Analysis struct {
	Status    AnalysisStatus `json:"status"`
	SessionID string         `json:"session_id"`
	Questions []Question     `json:"questions,omitempty"`
}

type PlanRequest struct {
	Task      string            `json:"task"`
	SessionID string            `json:"session_id,omitempty"`
	Answers   map[string]string `json:"answers"`
}

type Plan struct {
	MainTask          string      `json:"main_task,omitempty" yaml:"main_task,omitempty"`
	Goal              string      `json:"goal,omitempty" yaml:"goal,omitempty"`
	Complexity        string      `json:"complexity,omitempty" yaml:"complexity,omitempty"`
	EstimatedDuration string      `json:"estimated_duration,omitempty" yaml:"estimated_duration,omitempty"`
	Subtasks          []task.Task `json:"subtasks" yaml:"subtasks"`
}

type SaveSubtasksRequest struct {
	Subtasks  []task.Task `json:"subtasks"`
	SessionID string      `json:"session_id,omitempty"`
}

// Assignment names the member a pending task is approved for.
type Assignment struct {
	MemberName  string `json:"assigned_member_name"`
	MemberEmail string `json:"assigned_member_email"`
}

type ApprovalRequest struct {
	TaskIDs         []string              `json:"task_ids"`
	ChannelID       string                `json:"channel_id,omitempty"`
	TaskAssignments map[string]Assignment `json:"task_assignments"`
}

type Channel struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type MessageData struct {
	Plan      *Plan      `json:"plan,omitempty" yaml:"plan,omitempty"`
	Questions []Question `json:"questions,omitempty" yaml:"questions,omitempty"`
}

type Message struct {
	Role      Role         `json:"role" yaml:"role"`
	Content   string       `json:"content" yaml:"content"`
	Timestamp string       `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Data      *MessageData `json:"data,omitempty" yaml:"data,omitempty"`
}

type UpdateReposRequest struct {
	Repos []project.RepoRef `json:"repos"`
	Repo  *project.RepoRef  `json:"repo"`
}
