package stubapi

import (
	"context"
	"fmt"
	"time"

	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
)

const DemoProjectID = "demo"

func hours(h float64) *float64 { return &h }

// Seed fills an empty store with a demo project, a small team and a task
// list that exercises every risk type. It does nothing when projects exist.
func Seed(ctx context.Context, repo *Repository, now time.Time) error {
	existing, err := repo.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	members := []task.TeamMember{
		{Name: "Aiko Tanaka", Email: "aiko@example.com", Role: "Backend Engineer", Skills: []string{"go", "postgres"}, ExperienceYears: 6, Status: "busy", IdlePercentage: 20},
		{Name: "Ben Ortiz", Email: "ben@example.com", Role: "Frontend Engineer", Skills: []string{"react", "css"}, ExperienceYears: 3, Status: "idle", IdlePercentage: 70},
		{Name: "Chloe Martin", Email: "chloe@example.com", Role: "Fullstack Engineer", Skills: []string{"typescript", "go"}, ExperienceYears: 4, Status: "busy", IdlePercentage: 45},
		{Name: "Dev Patel", Email: "dev@example.com", Role: "QA Engineer", Skills: []string{"playwright"}, ExperienceYears: 2, Status: "idle", IdlePercentage: 90},
	}
	if err := repo.SaveMembers(ctx, members); err != nil {
		return err
	}

	p := project.Project{ID: DemoProjectID, Name: "Demo", Description: "Sample project for local development"}
	if err := repo.SaveProject(ctx, &p); err != nil {
		return err
	}

	day := func(offset int) string { return now.AddDate(0, 0, offset).Format(time.DateOnly) }
	tasks := []task.Task{
		{Title: "Set up CI pipeline", Status: task.StatusCompleted, Priority: "medium", AssignedTo: "Aiko Tanaka", Deadline: day(-10), EstimatedHours: hours(6)},
		{Title: "Fix login redirect", Status: task.StatusApproved, Priority: "high", AssignedTo: "Ben Ortiz", Deadline: day(-2), EstimatedHours: hours(3)},
		{Title: "Migrate user table", Status: task.StatusBlocked, Priority: "critical", AssignedTo: "Aiko Tanaka", Deadline: day(3), EstimatedHours: hours(10)},
		{Title: "Dashboard empty states", Status: task.StatusApproved, Priority: "low", AssignedTo: "Chloe Martin", Deadline: day(5), EstimatedHours: hours(4)},
	}
	for i := range 4 {
		tasks = append(tasks, task.Task{
			Title:              fmt.Sprintf("Triage bug report #%d", 100+i),
			Status:             task.StatusPendingApproval,
			Priority:           "easy",
			AssignedTo:         task.Unassigned,
			Deadline:           day(7 + i),
			NeedsClarification: i == 0,
		})
	}
	for _, t := range tasks {
		t.ProjectID = p.ID
		if err := repo.SaveTask(ctx, &t); err != nil {
			return err
		}
	}
	return nil
}
