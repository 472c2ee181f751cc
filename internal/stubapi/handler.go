package stubapi

import (
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/clog"
)

const suggestedMemberLimit = 3

type handler struct {
	repo     *Repository
	channels []apiclient.Channel
	now      func() time.Time

	// taskMu serializes task writes so an approval sees a stable status.
	taskMu sync.Mutex
}

func (h *handler) routes(r chi.Router) {
	r.Get("/projects", h.listProjects)
	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Put("/", h.updateRepos)
		r.Get("/tasks", h.listTasks)
		r.Post("/tasks", h.saveSubtasks)
		r.Get("/tasks/pending-approval", h.pendingApproval)
		r.Post("/tasks/approve", h.approve)
		r.Get("/messages", h.listMessages)
		r.Post("/messages", h.saveMessage)
	})
	r.Post("/analyze", h.analyze)
	r.Post("/generate_plan", h.generatePlan)
	r.Get("/teams/members", h.listMembers)
}

func (h *handler) slackRoutes(r chi.Router) {
	r.Get("/status", h.messagingStatus)
	r.Get("/list_conversations", h.listChannels)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}

// project loads the project named in the URL.
func (h *handler) project(r *http.Request) (*project.Project, error) {
	id := chi.URLParam(r, "projectID")
	clog.AddAttribute(r.Context(), "project_id", id)
	return h.repo.GetProject(r.Context(), id)
}

func (h *handler) listProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projects, err := h.repo.ListProjects(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"projects": projects})
}

func (h *handler) updateRepos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req apiclient.UpdateReposRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	repos := req.Repos
	if len(repos) == 0 && req.Repo != nil {
		repos = []project.RepoRef{*req.Repo}
	}
	updated := p.WithRepositories(repos)
	if err := h.repo.SaveProject(ctx, &updated); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"ok": true, "project": updated})
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := h.repo.ListTasks(ctx, p.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"tasks": tasks})
}

// saveSubtasks stores a generated plan's subtasks as new tasks awaiting
// approval.
func (h *handler) saveSubtasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req apiclient.SaveSubtasksRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(req.Subtasks) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "subtasks required", nil)
		return
	}
	clog.AddAttributes(ctx, "session_id", req.SessionID, "subtasks", len(req.Subtasks))

	h.taskMu.Lock()
	defer h.taskMu.Unlock()
	ids := make([]string, 0, len(req.Subtasks))
	for _, t := range req.Subtasks {
		t.ID = ""
		t.ProjectID = p.ID
		t.Status = task.StatusPendingApproval
		t.SuggestedMembers = nil
		if t.AssignedTo == "" {
			t.AssignedTo = task.Unassigned
		}
		if err := h.repo.SaveTask(ctx, &t); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		ids = append(ids, t.ID)
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, map[string]any{"ok": true, "task_ids": ids})
}

func (h *handler) pendingApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := h.repo.ListTasks(ctx, p.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	members, err := h.repo.ListMembers(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	suggested := suggestMembers(members, suggestedMemberLimit)

	pending := make([]task.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.Status != task.StatusPendingApproval {
			continue
		}
		t.SuggestedMembers = suggested
		pending = append(pending, t)
	}
	cerr.SetJSONResponse(ctx, map[string]any{"ok": true, "tasks": pending, "count": len(pending)})
}

// approve moves the requested pending tasks to approved and records their
// assignees. Tasks that are missing or no longer pending are reported back
// as failed.
func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var req apiclient.ApprovalRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if len(req.TaskIDs) == 0 {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "task_ids required", nil)
		return
	}
	if len(h.channels) > 0 && req.ChannelID == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "channel_id required", nil)
		return
	}
	if req.ChannelID != "" && !slices.ContainsFunc(h.channels, func(c apiclient.Channel) bool { return c.ID == req.ChannelID }) {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unknown channel", nil)
		return
	}
	clog.AddAttributes(ctx, "channel_id", req.ChannelID, "requested", len(req.TaskIDs))

	h.taskMu.Lock()
	defer h.taskMu.Unlock()
	tasks, err := h.repo.ListTasks(ctx, p.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	byID := make(map[string]task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	approved := 0
	failed := []string{}
	for _, id := range req.TaskIDs {
		t, ok := byID[id]
		if !ok || t.Status != task.StatusPendingApproval {
			failed = append(failed, id)
			continue
		}
		t.Status = task.StatusApproved
		if a, ok := req.TaskAssignments[id]; ok && a.MemberName != "" {
			t.AssignedTo = a.MemberName
			t.AssignedEmail = a.MemberEmail
		}
		if err := h.repo.SaveTask(ctx, &t); err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
		approved++
	}
	cerr.SetJSONResponse(ctx, map[string]any{
		"ok":             true,
		"approved_count": approved,
		"failed_tasks":   failed,
	})
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	msgs, err := h.repo.ListMessages(ctx, p.ID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"messages": msgs})
}

func (h *handler) saveMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.project(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var msg apiclient.Message
	if err := decode(r, &msg); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if msg.Role != apiclient.RoleUser && msg.Role != apiclient.RoleAssistant {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid role", nil)
		return
	}
	if msg.Timestamp == "" {
		msg.Timestamp = h.now().UTC().Format(time.RFC3339)
	}
	if err := h.repo.AppendMessage(ctx, p.ID, msg); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponseWithStatus(ctx, http.StatusCreated, map[string]any{"ok": true})
}

func (h *handler) analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req apiclient.AnalyzeRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Task == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "task required", nil)
		return
	}
	res := analyze(req)
	clog.AddAttributes(ctx, "session_id", res.SessionID, "status", res.Status)
	cerr.SetJSONResponse(ctx, res)
}

func (h *handler) generatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req apiclient.PlanRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Task == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "task required", nil)
		return
	}
	members, err := h.repo.ListMembers(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	clog.AddAttributes(ctx, "session_id", req.SessionID, "answers", len(req.Answers))
	cerr.SetJSONResponse(ctx, plan(req, members, h.now()))
}

func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := h.repo.ListMembers(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if members == nil {
		members = []task.TeamMember{}
	}
	cerr.SetJSONResponse(ctx, map[string]any{"members": members})
}

func (h *handler) messagingStatus(w http.ResponseWriter, r *http.Request) {
	cerr.SetJSONResponse(r.Context(), map[string]any{"connected": len(h.channels) > 0})
}

func (h *handler) listChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if len(h.channels) == 0 {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "Slack not connected", nil)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"channels": h.channels})
}
