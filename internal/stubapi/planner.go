package stubapi

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
)

// minClearWords is the shortest intent that is planned without questions.
const minClearWords = 3

type step struct {
	verb     string
	offset   int
	hours    float64
	priority string
}

var planSteps = []step{
	{verb: "Design", offset: 2, hours: 4, priority: "medium"},
	{verb: "Implement", offset: 5, hours: 12, priority: "high"},
	{verb: "Test", offset: 7, hours: 6, priority: "low"},
}

// analyze classifies an intent. Short intents and questions are ambiguous.
func analyze(req apiclient.AnalyzeRequest) apiclient.Analysis {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}
	text := strings.TrimSpace(req.Task)
	if len(strings.Fields(text)) >= minClearWords && !strings.HasSuffix(text, "?") {
		return apiclient.Analysis{Status: apiclient.AnalysisClear, SessionID: sessionID}
	}
	return apiclient.Analysis{
		Status:    apiclient.AnalysisAmbiguous,
		SessionID: sessionID,
		Questions: []apiclient.Question{
			{
				Question:    "What should be true when this is done?",
				Explanation: "The request does not describe an outcome.",
				Impact:      "Determines the acceptance criteria of every subtask.",
			},
			{
				Question: "Which part of the system does this touch?",
				Impact:   "Determines which repository the work lands in.",
				Options:  areaOptions(req.Repositories),
			},
		},
	}
}

func areaOptions(repos []project.AnalysisTarget) []string {
	var opts []string
	for _, r := range repos {
		if r.Type == project.RepoUnknown || slices.Contains(opts, string(r.Type)) {
			continue
		}
		opts = append(opts, string(r.Type))
	}
	if len(opts) == 0 {
		return []string{string(project.RepoFrontend), string(project.RepoBackend), string(project.RepoFullstack)}
	}
	return opts
}

// plan breaks an intent into design, implementation and test subtasks.
// Members are assigned round-robin and deadlines count from now.
func plan(req apiclient.PlanRequest, members []task.TeamMember, now time.Time) apiclient.Plan {
	intent := strings.TrimSpace(req.Task)
	description := intent
	if len(req.Answers) > 0 {
		var answers []string
		for _, k := range slices.Sorted(maps.Keys(req.Answers)) {
			if a := strings.TrimSpace(req.Answers[k]); a != "" {
				answers = append(answers, a)
			}
		}
		if len(answers) > 0 {
			description = fmt.Sprintf("%s\n\nContext: %s", intent, strings.Join(answers, "; "))
		}
	}

	subtasks := make([]task.Task, 0, len(planSteps))
	var total float64
	for i, s := range planSteps {
		hours := s.hours
		total += hours
		t := task.Task{
			Title:          fmt.Sprintf("%s: %s", s.verb, intent),
			Description:    description,
			Priority:       s.priority,
			AssignedTo:     task.Unassigned,
			Deadline:       now.AddDate(0, 0, s.offset).Format(time.DateOnly),
			EstimatedHours: &hours,
		}
		if len(members) > 0 {
			m := members[i%len(members)]
			t.AssignedTo = m.Name
			t.AssignedEmail = m.Email
		}
		subtasks = append(subtasks, t)
	}

	complexity := "medium"
	if len(strings.Fields(intent)) > 12 {
		complexity = "high"
	}
	return apiclient.Plan{
		MainTask:          intent,
		Goal:              intent,
		Complexity:        complexity,
		EstimatedDuration: fmt.Sprintf("%g hours", total),
		Subtasks:          subtasks,
	}
}

// suggestMembers ranks idle members first, then by idle percentage.
func suggestMembers(members []task.TeamMember, limit int) []task.TeamMember {
	ranked := slices.Clone(members)
	slices.SortStableFunc(ranked, func(a, b task.TeamMember) int {
		ai, bi := a.Status == "idle", b.Status == "idle"
		switch {
		case ai && !bi:
			return -1
		case bi && !ai:
			return 1
		case a.IdlePercentage > b.IdlePercentage:
			return -1
		case a.IdlePercentage < b.IdlePercentage:
			return 1
		}
		return 0
	})
	return ranked[:min(limit, len(ranked))]
}
