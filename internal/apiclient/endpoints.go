package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
)

func projectPath(projectID, suffix string) string {
	return "/api/projects/" + url.PathEscape(projectID) + suffix
}

func (c *Client) ListProjects(ctx context.Context) ([]project.Project, error) {
	var resp struct {
		Projects []project.Project `json:"projects"`
	}
	if err := c.do(ctx, "loading projects", http.MethodGet, "/api/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// UpdateProjectRepos connects repos to a project. The first repository is
// also sent in the legacy single-repo field.
func (c *Client) UpdateProjectRepos(ctx context.Context, projectID string, repos []project.RepoRef) error {
	body := UpdateReposRequest{Repos: repos}
	if len(repos) > 0 {
		first := repos[0]
		body.Repo = &first
	}
	return c.do(ctx, "connecting repositories", http.MethodPut, projectPath(projectID, ""), body, nil)
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	var resp struct {
		Tasks []task.Task `json:"tasks"`
	}
	if err := c.do(ctx, "loading tasks", http.MethodGet, projectPath(projectID, "/tasks"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) SaveSubtasks(ctx context.Context, projectID, sessionID string, subtasks []task.Task) error {
	body := SaveSubtasksRequest{Subtasks: subtasks, SessionID: sessionID}
	return c.do(ctx, "saving tasks", http.MethodPost, projectPath(projectID, "/tasks"), body, nil)
}

func (c *Client) ListPendingApproval(ctx context.Context, projectID string) ([]task.Task, error) {
	var resp struct {
		Tasks []task.Task `json:"tasks"`
	}
	if err := c.do(ctx, "loading pending tasks", http.MethodGet, projectPath(projectID, "/tasks/pending-approval"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// ApproveTasks returns the number of tasks the server approved.
func (c *Client) ApproveTasks(ctx context.Context, projectID string, req ApprovalRequest) (int, error) {
	var resp struct {
		ApprovedCount int `json:"approved_count"`
	}
	if err := c.do(ctx, "approving tasks", http.MethodPost, projectPath(projectID, "/tasks/approve"), req, &resp); err != nil {
		return 0, err
	}
	return resp.ApprovedCount, nil
}

func (c *Client) ListMessages(ctx context.Context, projectID string) ([]Message, error) {
	var resp struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, "loading messages", http.MethodGet, projectPath(projectID, "/messages"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

func (c *Client) SaveMessage(ctx context.Context, projectID string, msg Message) error {
	return c.do(ctx, "saving message", http.MethodPost, projectPath(projectID, "/messages"), msg, nil)
}

func (c *Client) AnalyzeIntent(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	if req.Repositories == nil {
		req.Repositories = []project.AnalysisTarget{}
	}
	var resp Analysis
	if err := c.do(ctx, "analysis", http.MethodPost, "/api/analyze", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) (*Plan, error) {
	if req.Answers == nil {
		req.Answers = map[string]string{}
	}
	var resp Plan
	if err := c.do(ctx, "plan generation", http.MethodPost, "/api/generate_plan", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MessagingConnected reports whether the workspace has a Slack integration.
func (c *Client) MessagingConnected(ctx context.Context) (bool, error) {
	var resp struct {
		Connected bool `json:"connected"`
	}
	if err := c.do(ctx, "checking messaging status", http.MethodGet, "/slack/api/status", nil, &resp); err != nil {
		return false, err
	}
	return resp.Connected, nil
}

func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	var resp struct {
		Channels []Channel `json:"channels"`
	}
	if err := c.do(ctx, "loading channels", http.MethodGet, "/slack/api/list_conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

func (c *Client) ListTeamMembers(ctx context.Context) ([]task.TeamMember, error) {
	var resp struct {
		Members []task.TeamMember `json:"members"`
	}
	if err := c.do(ctx, "loading team members", http.MethodGet, "/api/teams/members", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}
