package workflow

import (
	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
)

type State int

const (
	Idle State = iota
	SubmittingIntent
	AwaitingClarification
	SubmittingAnswers
	PlanReady
	ReviewingApproval
	SubmittingApproval
)

var stateNames = map[State]string{
	Idle:                  "idle",
	SubmittingIntent:      "submitting_intent",
	AwaitingClarification: "awaiting_clarification",
	SubmittingAnswers:     "submitting_answers",
	PlanReady:             "plan_ready",
	ReviewingApproval:     "reviewing_approval",
	SubmittingApproval:    "submitting_approval",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

type (
	Message    = apiclient.Message
	Assignment = apiclient.Assignment
)

// Outcome is what a planning step produced. Questions and Plan are never
// both set.
type Outcome struct {
	State     State
	Questions []apiclient.Question
	Plan      *apiclient.Plan
	// PersistErr reports that the plan could not be saved to the project.
	// The plan itself is still kept.
	PersistErr error
}

// Snapshot is a copy of the planner state for rendering.
type Snapshot struct {
	State              State
	Busy               bool
	Project            *project.Project
	MessagingConnected bool
	SessionID          string
	Conversation       []Message
	Questions          []apiclient.Question
	Plan               *apiclient.Plan
	Pending            []task.Task
	Channels           []apiclient.Channel
	Assignments        map[string]Assignment
	ChannelID          string
}
