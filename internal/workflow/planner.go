package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/pkg/cerr"
)

// API is the subset of the dashboard API the planner drives.
type API interface {
	AnalyzeIntent(ctx context.Context, req apiclient.AnalyzeRequest) (*apiclient.Analysis, error)
	GeneratePlan(ctx context.Context, req apiclient.PlanRequest) (*apiclient.Plan, error)
	SaveSubtasks(ctx context.Context, projectID, sessionID string, subtasks []task.Task) error
	ListMessages(ctx context.Context, projectID string) ([]apiclient.Message, error)
	SaveMessage(ctx context.Context, projectID string, msg apiclient.Message) error
	ListPendingApproval(ctx context.Context, projectID string) ([]task.Task, error)
	ListChannels(ctx context.Context) ([]apiclient.Channel, error)
	ApproveTasks(ctx context.Context, projectID string, req apiclient.ApprovalRequest) (int, error)
}

var (
	ErrBusy               = cerr.NewError(cerr.FailedPrecondition, "another request is still in progress", nil)
	ErrNoProject          = cerr.NewError(cerr.FailedPrecondition, "select a project first", nil)
	ErrEmptyIntent        = cerr.NewError(cerr.InvalidArgument, "describe what you want to build", nil)
	ErrApprovalInProgress = cerr.NewError(cerr.FailedPrecondition, "finish or cancel the approval first", nil)
	ErrNoQuestions        = cerr.NewError(cerr.FailedPrecondition, "there are no questions waiting for answers", nil)
	ErrNoOriginalIntent   = cerr.NewError(cerr.FailedPrecondition, "could not find the original task, please describe it again", nil)
	ErrNotReviewing       = cerr.NewError(cerr.FailedPrecondition, "start an approval first", nil)
	ErrNoPendingTasks     = cerr.NewError(cerr.FailedPrecondition, "no tasks are pending approval", nil)
	ErrNoChannel          = cerr.NewError(cerr.FailedPrecondition, "select a Slack channel before approving", nil)
)

// Planner runs the intent, clarification, plan and approval sequence for one
// project view. All methods are safe for concurrent use; a call made while
// another is talking to the API fails with ErrBusy.
type Planner struct {
	api API
	now func() time.Time

	mu                 sync.Mutex
	busy               bool
	state              State
	project            *project.Project
	messagingConnected bool
	sessionID          string
	conversation       []Message
	originalIntent     string
	questions          []apiclient.Question
	plan               *apiclient.Plan
	pending            []task.Task
	channels           []apiclient.Channel
	assignments        map[string]Assignment
	channelID          string
	// beforeApproval is where CancelApproval returns to.
	beforeApproval State
}

type Option func(*Planner)

func WithClock(now func() time.Time) Option {
	return func(p *Planner) {
		p.now = now
	}
}

func New(api API, opts ...Option) *Planner {
	p := &Planner{api: api, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// checkpoint is what a failed transition rolls back to.
type checkpoint struct {
	state        State
	sessionID    string
	conversation int
}

// begin takes the busy flag when check passes. check runs under the lock and
// may move the planner into a transitional state. The returned checkpoint is
// taken before check runs.
func (p *Planner) begin(check func() error) (checkpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return checkpoint{}, ErrBusy
	}
	cp := checkpoint{state: p.state, sessionID: p.sessionID, conversation: len(p.conversation)}
	if err := check(); err != nil {
		p.state = cp.state
		return checkpoint{}, err
	}
	p.busy = true
	return cp, nil
}

func (p *Planner) finish(commit func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = false
	commit()
}

// fail rolls local state back to cp. Messages already saved to the API stay
// saved.
func (p *Planner) fail(cp checkpoint) {
	p.finish(func() {
		p.state = cp.state
		p.sessionID = cp.sessionID
		p.conversation = p.conversation[:min(cp.conversation, len(p.conversation))]
	})
}

// SelectProject makes proj the active project and starts a fresh
// conversation for it.
func (p *Planner) SelectProject(proj project.Project, messagingConnected bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return ErrBusy
	}
	p.project = &proj
	p.messagingConnected = messagingConnected
	p.state = Idle
	p.sessionID = ""
	p.conversation = nil
	p.resetPlanning()
	p.resetApproval()
	return nil
}

func (p *Planner) resetPlanning() {
	p.originalIntent = ""
	p.questions = nil
	p.plan = nil
}

func (p *Planner) resetApproval() {
	p.pending = nil
	p.channels = nil
	p.assignments = nil
	p.channelID = ""
}

// LoadHistory replaces the conversation with the project's stored messages.
// When the last stored message asked questions the planner resumes waiting
// for their answers.
func (p *Planner) LoadHistory(ctx context.Context) error {
	var projectID string
	prev, err := p.begin(func() error {
		if p.project == nil {
			return ErrNoProject
		}
		if p.state == ReviewingApproval {
			return ErrApprovalInProgress
		}
		projectID = p.project.ID
		return nil
	})
	if err != nil {
		return err
	}

	msgs, err := p.api.ListMessages(ctx, projectID)
	if err != nil {
		p.fail(prev)
		return err
	}

	p.finish(func() {
		p.conversation = msgs
		p.resetPlanning()
		p.state = Idle
		if n := len(msgs); n > 0 {
			last := msgs[n-1]
			if last.Role == apiclient.RoleAssistant && last.Data != nil {
				switch {
				case len(last.Data.Questions) > 0:
					p.questions = last.Data.Questions
					p.state = AwaitingClarification
				case last.Data.Plan != nil:
					p.plan = last.Data.Plan
					p.state = PlanReady
				}
			}
		}
	})
	return nil
}

// SubmitIntent sends a free-text request for analysis. An ambiguous request
// leaves the planner awaiting answers; anything else is turned into a plan
// straight away and saved to the project.
func (p *Planner) SubmitIntent(ctx context.Context, text string) (*Outcome, error) {
	var (
		projectID string
		sessionID string
		targets   []project.AnalysisTarget
		userMsg   = Message{Role: apiclient.RoleUser, Content: text, Timestamp: p.timestamp()}
	)
	prev, err := p.begin(func() error {
		if strings.TrimSpace(text) == "" {
			return ErrEmptyIntent
		}
		if p.project == nil {
			return ErrNoProject
		}
		if p.state == ReviewingApproval {
			return ErrApprovalInProgress
		}
		projectID = p.project.ID
		sessionID = p.sessionID
		targets = p.project.AnalysisTargets()
		p.conversation = append(p.conversation, userMsg)
		p.state = SubmittingIntent
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.saveMessage(ctx, projectID, userMsg)

	analysis, err := p.api.AnalyzeIntent(ctx, apiclient.AnalyzeRequest{
		Task:         text,
		SessionID:    sessionID,
		Repositories: targets,
	})
	if err != nil {
		p.fail(prev)
		return nil, err
	}
	sessionID = analysis.SessionID
	p.mu.Lock()
	p.sessionID = sessionID
	p.mu.Unlock()

	switch analysis.Status {
	case apiclient.AnalysisAmbiguous:
		reply := Message{
			Role:      apiclient.RoleAssistant,
			Content:   "I need some clarification before proceeding:",
			Timestamp: p.timestamp(),
			Data:      &apiclient.MessageData{Questions: analysis.Questions},
		}
		p.finish(func() {
			p.resetPlanning()
			p.originalIntent = text
			p.questions = analysis.Questions
			p.state = AwaitingClarification
			p.conversation = append(p.conversation, reply)
		})
		p.saveMessage(ctx, projectID, reply)
		return &Outcome{State: AwaitingClarification, Questions: analysis.Questions}, nil

	case apiclient.AnalysisClear, apiclient.AnalysisNeedsContext:
		out, err := p.planAndPersist(ctx, projectID, apiclient.PlanRequest{
			Task:      text,
			SessionID: sessionID,
			Answers:   map[string]string{},
		})
		if err != nil {
			p.fail(prev)
			return nil, err
		}
		plan := out.Plan
		reply := Message{
			Role:      apiclient.RoleAssistant,
			Content:   fmt.Sprintf("I've analyzed your request: %q\n\nI've created an implementation plan with %d subtasks.", text, len(plan.Subtasks)),
			Timestamp: p.timestamp(),
			Data:      &apiclient.MessageData{Plan: plan},
		}
		p.finish(func() {
			p.resetPlanning()
			p.plan = plan
			p.state = PlanReady
			p.conversation = append(p.conversation, reply)
		})
		p.saveMessage(ctx, projectID, reply)
		return out, nil

	default:
		p.fail(prev)
		return nil, cerr.NewError(cerr.Unknown, "analysis failed",
			fmt.Errorf("unexpected analysis status %q", analysis.Status))
	}
}

// SubmitAnswers answers the pending questions in order and generates the
// plan for the original request.
func (p *Planner) SubmitAnswers(ctx context.Context, answers []string) (*Outcome, error) {
	var (
		projectID string
		sessionID string
		intent    string
	)
	prev, err := p.begin(func() error {
		if p.state != AwaitingClarification {
			return ErrNoQuestions
		}
		intent = p.originalIntent
		if intent == "" {
			intent = lastUserMessage(p.conversation)
		}
		if intent == "" {
			return ErrNoOriginalIntent
		}
		projectID = p.project.ID
		sessionID = p.sessionID
		p.state = SubmittingAnswers
		return nil
	})
	if err != nil {
		return nil, err
	}

	keyed := make(map[string]string, len(answers))
	for i, a := range answers {
		keyed[fmt.Sprintf("q%d", i)] = a
	}

	out, err := p.planAndPersist(ctx, projectID, apiclient.PlanRequest{
		Task:      intent,
		SessionID: sessionID,
		Answers:   keyed,
	})
	if err != nil {
		p.fail(prev)
		return nil, err
	}
	plan := out.Plan

	reply := Message{
		Role:      apiclient.RoleAssistant,
		Content:   fmt.Sprintf("Thanks for the clarification! I've created a detailed plan with %d subtasks.", len(plan.Subtasks)),
		Timestamp: p.timestamp(),
		Data:      &apiclient.MessageData{Plan: plan},
	}
	p.finish(func() {
		p.resetPlanning()
		p.plan = plan
		p.state = PlanReady
		p.conversation = append(p.conversation, reply)
	})
	p.saveMessage(ctx, projectID, reply)
	return out, nil
}

// lastUserMessage walks the conversation backward for the most recent
// message the user wrote.
func lastUserMessage(conv []Message) string {
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == apiclient.RoleUser && strings.TrimSpace(conv[i].Content) != "" {
			return conv[i].Content
		}
	}
	return ""
}

// planAndPersist generates a plan and saves its subtasks. A save failure is
// reported on the outcome so the caller keeps the plan.
func (p *Planner) planAndPersist(ctx context.Context, projectID string, req apiclient.PlanRequest) (*Outcome, error) {
	plan, err := p.api.GeneratePlan(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &Outcome{State: PlanReady, Plan: plan}
	if len(plan.Subtasks) == 0 {
		return out, nil
	}
	if err := p.api.SaveSubtasks(ctx, projectID, req.SessionID, plan.Subtasks); err != nil {
		slog.WarnContext(ctx, "failed to save generated subtasks", "project_id", projectID, "count", len(plan.Subtasks), "error", err)
		out.PersistErr = err
	}
	return out, nil
}

func (p *Planner) saveMessage(ctx context.Context, projectID string, msg Message) {
	if err := p.api.SaveMessage(ctx, projectID, msg); err != nil {
		slog.WarnContext(ctx, "failed to save chat message", "project_id", projectID, "role", msg.Role, "error", err)
	}
}

func (p *Planner) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}

// BeginApproval loads the project's pending tasks, and the Slack channels
// when Slack is connected. Each task starts assigned to its first suggested
// member.
func (p *Planner) BeginApproval(ctx context.Context) (*Snapshot, error) {
	var (
		projectID string
		connected bool
	)
	prev, err := p.begin(func() error {
		if p.project == nil {
			return ErrNoProject
		}
		switch p.state {
		case Idle, PlanReady:
		case ReviewingApproval:
			return ErrApprovalInProgress
		default:
			return cerr.NewError(cerr.FailedPrecondition, "answer the open questions first", nil)
		}
		projectID = p.project.ID
		connected = p.messagingConnected
		return nil
	})
	if err != nil {
		return nil, err
	}

	pending, err := p.api.ListPendingApproval(ctx, projectID)
	if err != nil {
		p.fail(prev)
		return nil, err
	}

	var channels []apiclient.Channel
	if connected {
		if channels, err = p.api.ListChannels(ctx); err != nil {
			slog.WarnContext(ctx, "failed to load Slack channels", "error", err)
			channels = nil
		}
	}

	assignments := make(map[string]Assignment, len(pending))
	for _, t := range pending {
		if len(t.SuggestedMembers) > 0 {
			m := t.SuggestedMembers[0]
			assignments[t.ID] = Assignment{MemberName: m.Name, MemberEmail: m.Email}
		}
	}

	p.finish(func() {
		p.beforeApproval = prev.state
		p.pending = pending
		p.channels = channels
		p.assignments = assignments
		p.channelID = ""
		p.state = ReviewingApproval
	})
	snap := p.Snapshot()
	return &snap, nil
}

// Assign sets the member a pending task will be approved for. An empty
// member name clears the assignment.
func (p *Planner) Assign(taskID string, a Assignment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return ErrBusy
	}
	if p.state != ReviewingApproval {
		return ErrNotReviewing
	}
	if !slices.ContainsFunc(p.pending, func(t task.Task) bool { return t.ID == taskID }) {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("task %s is not pending approval", taskID), nil)
	}
	if a.MemberName == "" {
		delete(p.assignments, taskID)
		return nil
	}
	p.assignments[taskID] = a
	return nil
}

// SelectChannel picks the Slack channel approved tasks are posted to.
func (p *Planner) SelectChannel(channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return ErrBusy
	}
	if p.state != ReviewingApproval {
		return ErrNotReviewing
	}
	if len(p.channels) > 0 && !slices.ContainsFunc(p.channels, func(c apiclient.Channel) bool { return c.ID == channelID }) {
		return cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown channel %s", channelID), nil)
	}
	p.channelID = channelID
	return nil
}

func (p *Planner) CancelApproval() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return ErrBusy
	}
	if p.state != ReviewingApproval {
		return ErrNotReviewing
	}
	p.resetApproval()
	p.state = p.beforeApproval
	return nil
}

// SubmitApproval approves every pending task with the chosen assignments
// and returns the number the server approved. Missing tasks or a missing
// channel are rejected before anything is sent.
func (p *Planner) SubmitApproval(ctx context.Context) (int, error) {
	var (
		projectID string
		req       apiclient.ApprovalRequest
	)
	prev, err := p.begin(func() error {
		if p.state != ReviewingApproval {
			return ErrNotReviewing
		}
		if len(p.pending) == 0 {
			return ErrNoPendingTasks
		}
		if p.messagingConnected && p.channelID == "" {
			return ErrNoChannel
		}
		projectID = p.project.ID
		req = apiclient.ApprovalRequest{
			TaskIDs:         make([]string, 0, len(p.pending)),
			ChannelID:       p.channelID,
			TaskAssignments: maps.Clone(p.assignments),
		}
		for _, t := range p.pending {
			req.TaskIDs = append(req.TaskIDs, t.ID)
		}
		if req.TaskAssignments == nil {
			req.TaskAssignments = map[string]Assignment{}
		}
		p.state = SubmittingApproval
		return nil
	})
	if err != nil {
		return 0, err
	}

	count, err := p.api.ApproveTasks(ctx, projectID, req)
	if err != nil {
		p.fail(prev)
		return 0, err
	}

	p.finish(func() {
		p.resetApproval()
		p.resetPlanning()
		p.state = Idle
	})
	slog.InfoContext(ctx, "tasks approved", "project_id", projectID, "count", count)
	return count, nil
}

func (p *Planner) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Planner) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		State:              p.state,
		Busy:               p.busy,
		MessagingConnected: p.messagingConnected,
		SessionID:          p.sessionID,
		Conversation:       slices.Clone(p.conversation),
		Questions:          slices.Clone(p.questions),
		Plan:               p.plan,
		Pending:            slices.Clone(p.pending),
		Channels:           slices.Clone(p.channels),
		Assignments:        maps.Clone(p.assignments),
		ChannelID:          p.channelID,
	}
	if p.project != nil {
		proj := *p.project
		s.Project = &proj
	}
	return s
}
