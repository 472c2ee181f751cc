package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/feeta/feeta/internal/alert"
	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/internal/credential"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/refresh"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/internal/workflow"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/color"
)

type cli struct {
	env *config.ClientConfig
	api *apiclient.Client
	in  *bufio.Reader
	out io.Writer
	now func() time.Time
}

func newCLI(ctx context.Context, env *config.ClientConfig, in io.Reader, out io.Writer) (*cli, error) {
	tokens, err := credential.FromConfig(ctx, env.Token, env.TokenFile)
	if err != nil {
		return nil, err
	}
	return &cli{
		env: env,
		api: apiclient.New(env.APIURL, tokens, apiclient.WithTimeout(env.HTTPTimeout)),
		in:  bufio.NewReader(in),
		out: out,
		now: time.Now,
	}, nil
}

// errorText is the message shown for a failed command.
func errorText(err error) string {
	return cerr.Message(err, err.Error())
}

func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", cerr.NewError(cerr.Canceled, "input closed", err)
	}
	return strings.TrimSpace(line), nil
}

func (c *cli) findProject(ctx context.Context, id string) (project.Project, error) {
	projects, err := c.api.ListProjects(ctx)
	if err != nil {
		return project.Project{}, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return project.Project{}, cerr.NewError(cerr.NotFound, fmt.Sprintf("project %s not found", id), nil)
}

func (c *cli) messagingConnected(ctx context.Context) bool {
	ok, err := c.api.MessagingConnected(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to check Slack status", "error", err)
		return false
	}
	return ok
}

func (c *cli) projects(ctx context.Context) error {
	projects, err := c.api.ListProjects(ctx)
	if err != nil {
		return err
	}
	renderProjects(c.out, projects)
	return nil
}

func (c *cli) members(ctx context.Context) error {
	members, err := c.api.ListTeamMembers(ctx)
	if err != nil {
		return err
	}
	renderMembers(c.out, members)
	return nil
}

func (c *cli) loadOverviews(ctx context.Context, only string) ([]project.Overview, error) {
	projects, err := c.api.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if only != "" && only != task.All {
		var filtered []project.Project
		for _, p := range projects {
			if p.ID == only {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			return nil, cerr.NewError(cerr.NotFound, fmt.Sprintf("project %s not found", only), nil)
		}
		projects = filtered
	}
	return project.NewLoader(c.api, project.WithClock(c.now)).LoadAll(ctx, projects), nil
}

func (c *cli) overview(ctx context.Context, only string) error {
	overviews, err := c.loadOverviews(ctx, only)
	if err != nil {
		return err
	}
	renderOverviews(c.out, overviews)
	return nil
}

func (c *cli) tasks(ctx context.Context, projectID, status, priority, search string) error {
	overviews, err := c.loadOverviews(ctx, projectID)
	if err != nil {
		return err
	}
	var all []task.Task
	for _, ov := range overviews {
		if ov.Err != nil {
			fmt.Fprintf(c.out, "%s %s\n", color.Prefix(ov.Project.ID, ov.Project.Name), errorText(ov.Err))
			continue
		}
		for _, t := range ov.Tasks {
			if t.ProjectID == "" {
				t.ProjectID = ov.Project.ID
			}
			all = append(all, t)
		}
	}
	matched := task.Filter(all, task.Criteria{
		Status:    status,
		ProjectID: projectID,
		Priority:  priority,
		Search:    search,
	})
	renderTasks(c.out, matched, c.now())
	return nil
}

func (c *cli) newPlanner(ctx context.Context, projectID string) (*workflow.Planner, error) {
	proj, err := c.findProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p := workflow.New(c.api, workflow.WithClock(c.now))
	if err := p.SelectProject(proj, c.messagingConnected(ctx)); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *cli) plan(ctx context.Context, projectID string, resume bool, words []string) error {
	p, err := c.newPlanner(ctx, projectID)
	if err != nil {
		return err
	}

	var out *workflow.Outcome
	if resume {
		if err := p.LoadHistory(ctx); err != nil {
			return err
		}
		snap := p.Snapshot()
		renderConversation(c.out, snap.Conversation)
		switch snap.State {
		case workflow.AwaitingClarification:
			out = &workflow.Outcome{State: snap.State, Questions: snap.Questions}
		case workflow.PlanReady:
			if len(words) == 0 {
				return nil
			}
		}
	}

	if out == nil {
		intent := strings.Join(words, " ")
		if intent == "" {
			if intent, err = c.prompt("What needs to be done? "); err != nil {
				return err
			}
		}
		if out, err = p.SubmitIntent(ctx, intent); err != nil {
			return err
		}
	}

	for out.State == workflow.AwaitingClarification {
		answers, err := c.askQuestions(out.Questions)
		if err != nil {
			return err
		}
		if out, err = p.SubmitAnswers(ctx, answers); err != nil {
			return err
		}
	}

	if out.Plan != nil {
		renderPlan(c.out, out.Plan)
	}
	if out.PersistErr != nil {
		fmt.Fprintf(c.out, "Warning: the plan was not saved: %s\n", errorText(out.PersistErr))
	}
	return nil
}

// askQuestions prompts for one answer per question. A number picks the
// matching option.
func (c *cli) askQuestions(questions []apiclient.Question) ([]string, error) {
	fmt.Fprintln(c.out, "I need some clarification before proceeding:")
	answers := make([]string, 0, len(questions))
	for i, q := range questions {
		renderQuestion(c.out, i, q)
		answer, err := c.prompt("> ")
		if err != nil {
			return nil, err
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(q.Options) {
			answer = q.Options[n-1]
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

func (c *cli) approve(ctx context.Context, projectID, channelID string, assigns []string, yes bool) error {
	p, err := c.newPlanner(ctx, projectID)
	if err != nil {
		return err
	}
	snap, err := p.BeginApproval(ctx)
	if err != nil {
		return err
	}
	if len(snap.Pending) == 0 {
		fmt.Fprintln(c.out, "No tasks pending approval.")
		return p.CancelApproval()
	}

	for _, raw := range assigns {
		id, a, err := parseAssignment(raw)
		if err != nil {
			return err
		}
		if err := p.Assign(id, a); err != nil {
			return err
		}
	}

	if channelID == "" && snap.MessagingConnected && len(snap.Channels) > 0 && !yes {
		renderChannels(c.out, snap.Channels)
		choice, err := c.prompt("Channel: ")
		if err != nil {
			return err
		}
		channelID = choice
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(snap.Channels) {
			channelID = snap.Channels[n-1].ID
		}
	}
	if channelID != "" {
		if err := p.SelectChannel(channelID); err != nil {
			return err
		}
	}

	renderApproval(c.out, p.Snapshot())
	if !yes {
		answer, err := c.prompt(fmt.Sprintf("Approve %d tasks? [y/N] ", len(snap.Pending)))
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
			fmt.Fprintln(c.out, "Approval cancelled.")
			return p.CancelApproval()
		}
	}

	n, err := p.SubmitApproval(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Approved %d of %d tasks.\n", n, len(snap.Pending))
	return nil
}

func (c *cli) watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.env.RefreshInterval
	}
	store, err := alert.OpenSubscriptionFile(c.env.SubscriptionsFile)
	if err != nil {
		return err
	}
	sender := alert.NewSender(&c.env.AlertEnv, store)
	detector := alert.NewDetector()

	var latest []project.Overview
	s := refresh.NewScheduler(interval, func(ctx context.Context) (string, error) {
		overviews, err := c.loadOverviews(ctx, "")
		if err != nil {
			return "", err
		}
		latest = overviews
		sender.Notify(ctx, detector.Observe(overviews))
		return snapshotText(overviews), nil
	})

	first := true
	s.Run(ctx, func(t refresh.Tick) {
		stamp := color.Faint(t.At.Format(time.TimeOnly))
		switch {
		case t.Err != nil:
			fmt.Fprintf(c.out, "%s refresh failed: %s\n", stamp, errorText(t.Err))
		case first:
			first = false
			renderOverviews(c.out, latest)
		case t.Diff != "":
			fmt.Fprintf(c.out, "%s changes:\n%s", stamp, color.Diff(t.Diff))
		default:
			fmt.Fprintf(c.out, "%s no changes\n", stamp)
		}
	})
	return nil
}

func (c *cli) connectRepos(ctx context.Context, projectID string, raw []string) error {
	if _, err := c.findProject(ctx, projectID); err != nil {
		return err
	}
	classifier, err := project.LoadClassifier(c.env.ClassifierFile)
	if err != nil {
		return err
	}
	refs := make([]project.RepoRef, 0, len(raw))
	for _, r := range raw {
		ref, err := parseRepoRef(r)
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}
	tagged := classifier.Tag(refs)
	if err := c.api.UpdateProjectRepos(ctx, projectID, tagged); err != nil {
		return err
	}
	for _, r := range tagged {
		fmt.Fprintf(c.out, "connected %s (%s)\n", r.FullName, r.Type)
	}
	return nil
}

func (c *cli) listSubscriptions(ctx context.Context) error {
	store, err := alert.OpenSubscriptionFile(c.env.SubscriptionsFile)
	if err != nil {
		return err
	}
	subs, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Fprintln(c.out, "No subscriptions.")
		return nil
	}
	for _, s := range subs {
		fmt.Fprintf(c.out, "%s  %s  %s\n", s.ID, s.CreatedAt.Format(time.DateOnly), s.Endpoint)
	}
	return nil
}

func (c *cli) subscribe(ctx context.Context, endpoint, p256dh, auth string) error {
	store, err := alert.OpenSubscriptionFile(c.env.SubscriptionsFile)
	if err != nil {
		return err
	}
	sub := &alert.Subscription{Endpoint: endpoint, P256dhKey: p256dh, AuthKey: auth}
	if err := store.Add(ctx, sub); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "subscribed %s\n", sub.ID)
	if !c.env.AlertEnv.Enabled() {
		fmt.Fprintln(c.out, "Note: set FEETA_VAPID_PUBLIC_KEY and FEETA_VAPID_PRIVATE_KEY to deliver alerts.")
	}
	return nil
}

func (c *cli) unsubscribe(ctx context.Context, id string) error {
	store, err := alert.OpenSubscriptionFile(c.env.SubscriptionsFile)
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}
