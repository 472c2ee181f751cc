package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/stubapi"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/internal/workflow"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/color"
	"github.com/feeta/feeta/pkg/storage"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestCLI(t *testing.T, input string) (*cli, *bytes.Buffer) {
	t.Helper()
	color.SetEnabled(false)
	ctx := context.Background()

	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := stubapi.NewRepository(s)
	require.NoError(t, stubapi.Seed(ctx, repo, now))
	srv, err := stubapi.NewServer(&config.StubEnv{APIKey: "k", SlackChannels: "C1:general"}, repo,
		stubapi.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	env := &config.ClientConfig{}
	env.APIURL = ts.URL
	env.Token = "k"
	env.HTTPTimeout = 5 * time.Second
	env.RefreshInterval = time.Minute
	env.SubscriptionsFile = filepath.Join(t.TempDir(), "subs.yaml")

	out := &bytes.Buffer{}
	c, err := newCLI(ctx, env, strings.NewReader(input), out)
	require.NoError(t, err)
	c.now = func() time.Time { return now }
	return c, out
}

func TestOverview(t *testing.T) {
	c, out := newTestCLI(t, "")
	require.NoError(t, c.overview(context.Background(), ""))
	assert.Contains(t, out.String(), "[Demo] health  75  progress  13%  clarifications 1  tasks 8")
	assert.Contains(t, out.String(), "risks: overdue 1 (high), blocked 1 (high), unassigned 4 (medium)")
	assert.Contains(t, out.String(), "due 2026-03-13  Migrate user table (Aiko Tanaka)")

	err := c.overview(context.Background(), "missing")
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(err))
}

func TestMembers(t *testing.T) {
	c, out := newTestCLI(t, "")
	require.NoError(t, c.members(context.Background()))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Ben Ortiz     Frontend Engineer     idle     70% idle", lines[1])
	assert.Contains(t, lines[3], "Dev Patel")
	assert.Contains(t, lines[3], "QA Engineer")
}

func TestTasks(t *testing.T) {
	c, out := newTestCLI(t, "")
	require.NoError(t, c.tasks(context.Background(), task.All, string(task.StatusPendingApproval), task.All, ""))
	assert.Equal(t, 4, strings.Count(out.String(), "Triage bug report"))
	assert.Contains(t, out.String(), "4 tasks")

	out.Reset()
	require.NoError(t, c.tasks(context.Background(), stubapi.DemoProjectID, task.All, "critical", "AIKO"))
	assert.Contains(t, out.String(), "Migrate user table")
	assert.Contains(t, out.String(), "1 tasks")

	out.Reset()
	require.NoError(t, c.tasks(context.Background(), task.All, task.All, task.All, "nobody"))
	assert.Equal(t, "No matching tasks.\n", out.String())
}

func TestPlan_AnswersQuestions(t *testing.T) {
	c, out := newTestCLI(t, "users land on the dashboard\n1\n")
	require.NoError(t, c.plan(context.Background(), stubapi.DemoProjectID, false, []string{"fix", "login"}))

	got := out.String()
	assert.Contains(t, got, "1. What should be true when this is done?")
	assert.Contains(t, got, "[1] frontend")
	assert.Contains(t, got, "1. Design: fix login (Aiko Tanaka, due 2026-03-12, 4h, medium)")
	assert.Contains(t, got, "3. Test: fix login (Chloe Martin, due 2026-03-17, 6h, low)")
	assert.NotContains(t, got, "Warning")

	out.Reset()
	require.NoError(t, c.plan(context.Background(), stubapi.DemoProjectID, true, nil))
	assert.Contains(t, out.String(), "you: fix login")
	assert.Contains(t, out.String(), "assistant: Thanks for the clarification!")
}

func TestPlan_ClosedInput(t *testing.T) {
	c, _ := newTestCLI(t, "")
	err := c.plan(context.Background(), stubapi.DemoProjectID, false, []string{"fix", "login"})
	assert.Equal(t, cerr.Canceled, cerr.CodeOf(err))
}

func TestApprove(t *testing.T) {
	ctx := context.Background()

	c, out := newTestCLI(t, "1\nn\n")
	require.NoError(t, c.approve(ctx, stubapi.DemoProjectID, "", nil, false))
	assert.Contains(t, out.String(), "[1] #general (C1)")
	assert.Contains(t, out.String(), "Channel: #general")
	assert.Contains(t, out.String(), "assign: Dev Patel <dev@example.com>")
	assert.Contains(t, out.String(), "Approval cancelled.")

	pending, err := c.api.ListPendingApproval(ctx, stubapi.DemoProjectID)
	require.NoError(t, err)
	require.Len(t, pending, 4)

	c.in.Reset(strings.NewReader("y\n"))
	out.Reset()
	assign := []string{pending[0].ID + "=Ben Ortiz <ben@example.com>"}
	require.NoError(t, c.approve(ctx, stubapi.DemoProjectID, "C1", assign, false))
	assert.Contains(t, out.String(), "assign: Ben Ortiz <ben@example.com>")
	assert.Contains(t, out.String(), "Approved 4 of 4 tasks.")

	tasks, err := c.api.ListTasks(ctx, stubapi.DemoProjectID)
	require.NoError(t, err)
	for _, tk := range tasks {
		if tk.ID == pending[0].ID {
			assert.Equal(t, "Ben Ortiz", tk.AssignedTo)
			assert.Equal(t, task.StatusApproved, tk.Status)
		}
	}

	out.Reset()
	require.NoError(t, c.approve(ctx, stubapi.DemoProjectID, "C1", nil, true))
	assert.Equal(t, "No tasks pending approval.\n", out.String())
}

func TestApprove_RequiresChannel(t *testing.T) {
	c, _ := newTestCLI(t, "")
	err := c.approve(context.Background(), stubapi.DemoProjectID, "", nil, true)
	assert.ErrorIs(t, err, workflow.ErrNoChannel)
}

func TestConnectRepos(t *testing.T) {
	ctx := context.Background()
	c, out := newTestCLI(t, "")
	require.NoError(t, c.connectRepos(ctx, stubapi.DemoProjectID, []string{"acme/web=React dashboard", "acme/api", "acme/docs"}))
	assert.Equal(t, "connected acme/web (frontend)\nconnected acme/api (backend)\nconnected acme/docs (unknown)\n", out.String())

	p, err := c.findProject(ctx, stubapi.DemoProjectID)
	require.NoError(t, err)
	require.Len(t, p.Repositories(), 3)
	assert.Equal(t, project.RepoFrontend, p.Repositories()[0].Type)

	err = c.connectRepos(ctx, stubapi.DemoProjectID, []string{"not-a-repo"})
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	c, out := newTestCLI(t, "")

	require.NoError(t, c.listSubscriptions(ctx))
	assert.Equal(t, "No subscriptions.\n", out.String())

	out.Reset()
	require.NoError(t, c.subscribe(ctx, "https://push.example/1", "key", "auth"))
	assert.Contains(t, out.String(), "FEETA_VAPID_PUBLIC_KEY")
	id := strings.TrimPrefix(strings.SplitN(out.String(), "\n", 2)[0], "subscribed ")

	out.Reset()
	require.NoError(t, c.listSubscriptions(ctx))
	assert.Contains(t, out.String(), "https://push.example/1")

	require.NoError(t, c.unsubscribe(ctx, id))
	assert.Equal(t, cerr.NotFound, cerr.CodeOf(c.unsubscribe(ctx, id)))
}

func TestWatch_StopsOnCancel(t *testing.T) {
	c, out := newTestCLI(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, c.watch(ctx, 50*time.Millisecond))
	assert.Contains(t, out.String(), "[Demo] health  75")
	assert.Contains(t, out.String(), "no changes")
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in   string
		id   string
		want workflow.Assignment
		err  bool
	}{
		{in: "t1=Aiko Tanaka <aiko@example.com>", id: "t1", want: workflow.Assignment{MemberName: "Aiko Tanaka", MemberEmail: "aiko@example.com"}},
		{in: "t1=Aiko", id: "t1", want: workflow.Assignment{MemberName: "Aiko"}},
		{in: "t1=", id: "t1", want: workflow.Assignment{}},
		{in: "=Aiko", err: true},
		{in: "t1", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, got, err := parseAssignment(tt.in)
			if tt.err {
				assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSnapshotText(t *testing.T) {
	ok := project.BuildOverview(project.Project{ID: "a", Name: "A"}, []task.Task{{Status: task.StatusBlocked}}, now)
	failed := project.Overview{Project: project.Project{ID: "b", Name: "B"}, Err: cerr.NewError(cerr.Unavailable, "down", nil)}
	assert.Equal(t,
		"A: health=85 progress=0% clarifications=0 tasks=1\nA: risks=blocked 1 (high)\nB: unavailable (unavailable)\n",
		snapshotText([]project.Overview{ok, failed}))
}
