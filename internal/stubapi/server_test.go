package stubapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/internal/credential"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/internal/workflow"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/storage"
)

const testKey = "secret"

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo   *Repository
	client *apiclient.Client
	url    string
}

func newFixture(t *testing.T, channels string) *fixture {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(s)
	require.NoError(t, Seed(context.Background(), repo, now))

	srv, err := NewServer(&config.StubEnv{APIKey: testKey, SlackChannels: channels}, repo, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{
		repo:   repo,
		client: apiclient.New(ts.URL, credential.Static(testKey)),
		url:    ts.URL,
	}
}

func TestServer_Auth(t *testing.T) {
	f := newFixture(t, "")

	resp, err := http.Get(f.url + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = apiclient.New(f.url, nil).ListProjects(context.Background())
	assert.Equal(t, cerr.Unauthenticated, cerr.CodeOf(err))
	assert.Equal(t, "unauthorized", cerr.Message(err, ""))

	_, err = apiclient.New(f.url, credential.Static("wrong")).ListProjects(context.Background())
	assert.Equal(t, cerr.Unauthenticated, cerr.CodeOf(err))

	req, err := http.NewRequest(http.MethodGet, f.url+"/api/projects", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", testKey)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	f := newFixture(t, "")

	req, err := http.NewRequest(http.MethodGet, f.url+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://other.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestServer_Seed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")
	require.NoError(t, Seed(ctx, f.repo, now))

	projects, err := f.client.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, DemoProjectID, projects[0].ID)

	tasks, err := f.client.ListTasks(ctx, DemoProjectID)
	require.NoError(t, err)
	require.Len(t, tasks, 8)

	risks := task.DetectRisks(tasks, now)
	types := make([]task.RiskType, len(risks))
	for i, r := range risks {
		types[i] = r.Type
	}
	assert.ElementsMatch(t, []task.RiskType{task.RiskOverdue, task.RiskBlocked, task.RiskUnassigned}, types)

	members, err := f.client.ListTeamMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 4)
}

func TestServer_UnknownProject(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.client.ListTasks(context.Background(), "missing")
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
	assert.Equal(t, "project not found", cerr.Message(err, ""))
}

func TestServer_Analyze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	tests := []struct {
		name   string
		intent string
		want   apiclient.AnalysisStatus
	}{
		{name: "short", intent: "fix login", want: apiclient.AnalysisAmbiguous},
		{name: "question", intent: "should we add CSV export?", want: apiclient.AnalysisAmbiguous},
		{name: "clear", intent: "add CSV export to reports", want: apiclient.AnalysisClear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.client.AnalyzeIntent(ctx, apiclient.AnalyzeRequest{Task: tt.intent, SessionID: "s1"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, "s1", got.SessionID)
			if tt.want == apiclient.AnalysisAmbiguous {
				assert.Len(t, got.Questions, 2)
			} else {
				assert.Empty(t, got.Questions)
			}
		})
	}

	got, err := f.client.AnalyzeIntent(ctx, apiclient.AnalyzeRequest{Task: "add CSV export to reports"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.SessionID)

	_, err = f.client.AnalyzeIntent(ctx, apiclient.AnalyzeRequest{})
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
	assert.Equal(t, "task required", cerr.Message(err, ""))
}

func TestServer_ApproveValidation(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, "C1:general")
	_, err := f.client.ApproveTasks(ctx, DemoProjectID, apiclient.ApprovalRequest{})
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
	assert.Equal(t, "task_ids required", cerr.Message(err, ""))

	_, err = f.client.ApproveTasks(ctx, DemoProjectID, apiclient.ApprovalRequest{TaskIDs: []string{"x"}})
	assert.Equal(t, "channel_id required", cerr.Message(err, ""))

	n, err := f.client.ApproveTasks(ctx, DemoProjectID, apiclient.ApprovalRequest{TaskIDs: []string{"x"}, ChannelID: "C1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServer_ConcurrentApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	pending, err := f.client.ListPendingApproval(ctx, DemoProjectID)
	require.NoError(t, err)
	require.Len(t, pending, 4)
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}

	const workers = 8
	counts := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counts[i], errs[i] = f.client.ApproveTasks(ctx, DemoProjectID, apiclient.ApprovalRequest{TaskIDs: ids})
		}()
	}
	wg.Wait()

	total := 0
	for i := range workers {
		require.NoError(t, errs[i])
		total += counts[i]
	}
	assert.Equal(t, len(ids), total)
}

func TestServer_Messaging(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t, "")
	connected, err := f.client.MessagingConnected(ctx)
	require.NoError(t, err)
	assert.False(t, connected)
	_, err = f.client.ListChannels(ctx)
	assert.Equal(t, cerr.FailedPrecondition, cerr.CodeOf(err))

	f = newFixture(t, "C1:general,C2")
	connected, err = f.client.MessagingConnected(ctx)
	require.NoError(t, err)
	assert.True(t, connected)
	channels, err := f.client.ListChannels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []apiclient.Channel{{ID: "C1", Name: "general"}, {ID: "C2", Name: "C2"}}, channels)
}

func TestServer_UpdateRepos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	repos := []project.RepoRef{
		{Name: "web", FullName: "acme/web", Type: project.RepoFrontend},
		{Name: "api", FullName: "acme/api", Type: project.RepoBackend},
	}
	require.NoError(t, f.client.UpdateProjectRepos(ctx, DemoProjectID, repos))

	projects, err := f.client.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, repos, projects[0].Repositories())
	require.NotNil(t, projects[0].Repo)
	assert.Equal(t, "acme/web", projects[0].Repo.FullName)
}

func TestRoundTrip_PlanAndApprove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "C1:general")

	projects, err := f.client.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := workflow.New(f.client, workflow.WithClock(func() time.Time { return now }))
	require.NoError(t, p.SelectProject(projects[0], true))

	out, err := p.SubmitIntent(ctx, "fix login")
	require.NoError(t, err)
	assert.Equal(t, workflow.AwaitingClarification, out.State)
	require.Len(t, out.Questions, 2)

	out, err = p.SubmitAnswers(ctx, []string{"users land on the dashboard", "frontend"})
	require.NoError(t, err)
	require.NoError(t, out.PersistErr)
	assert.Equal(t, workflow.PlanReady, out.State)
	require.NotNil(t, out.Plan)
	require.Len(t, out.Plan.Subtasks, 3)

	// Persisted subtasks keep what the plan said about them.
	pending, err := f.client.ListPendingApproval(ctx, DemoProjectID)
	require.NoError(t, err)
	require.Len(t, pending, 4+3)
	saved := pending[4:]
	for i, want := range out.Plan.Subtasks {
		assert.Equal(t, want.Title, saved[i].Title)
		assert.Equal(t, want.Description, saved[i].Description)
		assert.Equal(t, want.AssignedTo, saved[i].AssignedTo)
		assert.Equal(t, want.Deadline, saved[i].Deadline)
		assert.Equal(t, task.StatusPendingApproval, saved[i].Status)
	}
	assert.Contains(t, saved[0].Description, "users land on the dashboard")

	// History resumes at the generated plan.
	p2 := workflow.New(f.client)
	require.NoError(t, p2.SelectProject(projects[0], true))
	require.NoError(t, p2.LoadHistory(ctx))
	assert.Equal(t, workflow.PlanReady, p2.State())
	assert.Len(t, p2.Snapshot().Conversation, 3)

	snap, err := p.BeginApproval(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Pending, 7)
	for _, tk := range snap.Pending {
		assert.Equal(t, "Dev Patel", snap.Assignments[tk.ID].MemberName)
	}

	_, err = p.SubmitApproval(ctx)
	assert.ErrorIs(t, err, workflow.ErrNoChannel)

	require.NoError(t, p.Assign(saved[1].ID, workflow.Assignment{MemberName: "Aiko Tanaka", MemberEmail: "aiko@example.com"}))
	require.NoError(t, p.SelectChannel("C1"))
	n, err := p.SubmitApproval(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, workflow.Idle, p.State())

	pending, err = f.client.ListPendingApproval(ctx, DemoProjectID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	tasks, err := f.client.ListTasks(ctx, DemoProjectID)
	require.NoError(t, err)
	for _, tk := range tasks {
		if tk.ID == saved[1].ID {
			assert.Equal(t, task.StatusApproved, tk.Status)
			assert.Equal(t, "Aiko Tanaka", tk.AssignedTo)
			assert.Equal(t, "aiko@example.com", tk.AssignedEmail)
		}
	}

	// Approving twice only fails the already approved tasks.
	n, err = f.client.ApproveTasks(ctx, DemoProjectID, apiclient.ApprovalRequest{TaskIDs: []string{saved[0].ID}, ChannelID: "C1"})
	require.NoError(t, err)
	assert.Zero(t, n)
}
