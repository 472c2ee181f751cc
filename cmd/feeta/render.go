package main

import (
	"fmt"
	"io"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/internal/workflow"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/color"
)

// pad fills colored text out to width, given its plain length n.
func pad(colored string, n, width int) string {
	if n >= width {
		return colored
	}
	return colored + strings.Repeat(" ", width-n)
}

func renderProjects(w io.Writer, projects []project.Project) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects.")
		return
	}
	for _, p := range projects {
		fmt.Fprintf(w, "%s %s\n", color.Prefix(p.ID, p.ID), p.Name)
		for _, r := range p.Repositories() {
			typ := r.Type
			if typ == "" {
				typ = project.RepoUnknown
			}
			fmt.Fprintf(w, "    %s (%s)\n", r.FullName, typ)
		}
	}
}

func riskSummary(risks []task.Risk, styled bool) string {
	if len(risks) == 0 {
		return "none"
	}
	parts := make([]string, len(risks))
	for i, r := range risks {
		sev := string(r.Severity)
		if styled {
			sev = color.Severity(sev)
		}
		parts[i] = fmt.Sprintf("%s %d (%s)", r.Type, r.Count, sev)
	}
	return strings.Join(parts, ", ")
}

func renderOverviews(w io.Writer, overviews []project.Overview) {
	if len(overviews) == 0 {
		fmt.Fprintln(w, "No projects.")
		return
	}
	for _, ov := range overviews {
		prefix := color.Prefix(ov.Project.ID, ov.Project.Name)
		if ov.Err != nil {
			fmt.Fprintf(w, "%s unavailable: %s\n", prefix, errorText(ov.Err))
			continue
		}
		fmt.Fprintf(w, "%s health %s  progress %3d%%  clarifications %d  tasks %d\n",
			prefix, color.Health(ov.HealthScore), ov.Progress, ov.PendingClarifications, len(ov.Tasks))
		fmt.Fprintf(w, "    risks: %s\n", riskSummary(ov.Risks, true))
		for _, t := range ov.UpcomingDeadlines {
			fmt.Fprintf(w, "    due %s  %s (%s)\n", t.Deadline, t.Title, assignee(t))
		}
	}
}

// snapshotText is the plain rendering watch mode diffs between refreshes.
func snapshotText(overviews []project.Overview) string {
	var b strings.Builder
	for _, ov := range overviews {
		if ov.Err != nil {
			fmt.Fprintf(&b, "%s: unavailable (%s)\n", ov.Project.Name, cerr.CodeOf(ov.Err))
			continue
		}
		fmt.Fprintf(&b, "%s: health=%d progress=%d%% clarifications=%d tasks=%d\n",
			ov.Project.Name, ov.HealthScore, ov.Progress, ov.PendingClarifications, len(ov.Tasks))
		fmt.Fprintf(&b, "%s: risks=%s\n", ov.Project.Name, riskSummary(ov.Risks, false))
	}
	return b.String()
}

func assignee(t task.Task) string {
	if t.IsUnassigned() {
		return task.Unassigned
	}
	return t.AssignedTo
}

func renderTasks(w io.Writer, tasks []task.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No matching tasks.")
		return
	}
	statusWidth := 0
	for _, t := range tasks {
		statusWidth = max(statusWidth, len(t.Status))
	}
	for _, t := range tasks {
		deadline := t.Deadline
		if deadline == "" {
			deadline = "-"
		}
		if t.IsOverdue(now) {
			deadline += "!"
		}
		priority := t.Priority
		if b, ok := task.Bucket(priority); ok {
			priority = string(b)
		}
		fmt.Fprintf(w, "%s  %-8s  %-11s  %-16s  %s\n",
			pad(color.Status(string(t.Status)), len(t.Status), statusWidth),
			priority, deadline, assignee(t), t.Title)
	}
	fmt.Fprintln(w, color.Faint(fmt.Sprintf("%d tasks", len(tasks))))
}

func renderMembers(w io.Writer, members []task.TeamMember) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No team members.")
		return
	}
	nameWidth := 0
	for _, m := range members {
		nameWidth = max(nameWidth, len(m.Name))
	}
	for _, m := range members {
		status := m.Status
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(w, "%-*s  %-20s  %-6s  %3.0f%% idle\n", nameWidth, m.Name, m.Role, status, m.IdlePercentage)
	}
}

func renderQuestion(w io.Writer, i int, q apiclient.Question) {
	fmt.Fprintf(w, "%d. %s\n", i+1, color.Bold(q.Question))
	if q.Explanation != "" {
		fmt.Fprintf(w, "   %s\n", q.Explanation)
	}
	if q.Impact != "" {
		fmt.Fprintf(w, "   %s\n", color.Faint("Impact: "+q.Impact))
	}
	for j, opt := range q.Options {
		fmt.Fprintf(w, "   [%d] %s\n", j+1, opt)
	}
}

func renderPlan(w io.Writer, plan *apiclient.Plan) {
	title := plan.MainTask
	if title == "" {
		title = "Plan"
	}
	fmt.Fprintln(w, color.Bold(title))
	if plan.Goal != "" && plan.Goal != plan.MainTask {
		fmt.Fprintf(w, "Goal: %s\n", plan.Goal)
	}
	if plan.Complexity != "" || plan.EstimatedDuration != "" {
		fmt.Fprintf(w, "Complexity: %s  Estimate: %s\n", plan.Complexity, plan.EstimatedDuration)
	}
	for i, t := range plan.Subtasks {
		details := []string{assignee(t)}
		if t.Deadline != "" {
			details = append(details, "due "+t.Deadline)
		}
		if t.EstimatedHours != nil {
			details = append(details, fmt.Sprintf("%gh", *t.EstimatedHours))
		}
		if t.Priority != "" {
			details = append(details, t.Priority)
		}
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, t.Title, strings.Join(details, ", "))
	}
}

func renderConversation(w io.Writer, msgs []workflow.Message) {
	for _, m := range msgs {
		who := "you"
		if m.Role == apiclient.RoleAssistant {
			who = "assistant"
		}
		fmt.Fprintf(w, "%s %s\n", color.Faint(who+":"), m.Content)
	}
}

func renderChannels(w io.Writer, channels []apiclient.Channel) {
	for i, ch := range channels {
		fmt.Fprintf(w, "[%d] #%s (%s)\n", i+1, ch.Name, ch.ID)
	}
}

func renderApproval(w io.Writer, snap workflow.Snapshot) {
	for i, t := range snap.Pending {
		a, ok := snap.Assignments[t.ID]
		who := "unassigned"
		if ok {
			who = a.MemberName
			if a.MemberEmail != "" {
				who = fmt.Sprintf("%s <%s>", a.MemberName, a.MemberEmail)
			}
		}
		fmt.Fprintf(w, "%d. %s  %s\n", i+1, color.Faint(t.ID), t.Title)
		fmt.Fprintf(w, "   assign: %s\n", who)
		if len(t.SuggestedMembers) > 0 {
			names := make([]string, len(t.SuggestedMembers))
			for j, m := range t.SuggestedMembers {
				names[j] = fmt.Sprintf("%s (%.0f%% idle)", m.Name, m.IdlePercentage)
			}
			fmt.Fprintf(w, "   %s\n", color.Faint("suggested: "+strings.Join(names, ", ")))
		}
	}
	if snap.ChannelID != "" {
		name := snap.ChannelID
		if i := slices.IndexFunc(snap.Channels, func(c apiclient.Channel) bool { return c.ID == snap.ChannelID }); i >= 0 {
			name = "#" + snap.Channels[i].Name
		}
		fmt.Fprintf(w, "Channel: %s\n", name)
	}
}

// parseAssignment reads TASK_ID=Name <email>. The email part is optional and
// an empty name clears the assignment.
func parseAssignment(s string) (string, workflow.Assignment, error) {
	id, who, ok := strings.Cut(s, "=")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", workflow.Assignment{}, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid assignment %q, want TASK_ID=Name <email>", s), nil)
	}
	who = strings.TrimSpace(who)
	if addr, err := mail.ParseAddress(who); err == nil && addr.Name != "" {
		return id, workflow.Assignment{MemberName: addr.Name, MemberEmail: addr.Address}, nil
	}
	return id, workflow.Assignment{MemberName: who}, nil
}

// parseRepoRef reads owner/name with an optional =description suffix.
func parseRepoRef(s string) (project.RepoRef, error) {
	full, desc, _ := strings.Cut(s, "=")
	full = strings.TrimSpace(full)
	owner, name, ok := strings.Cut(full, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return project.RepoRef{}, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid repository %q, want owner/name", s), nil)
	}
	return project.RepoRef{Name: name, FullName: full, Description: strings.TrimSpace(desc)}, nil
}
