package project

import (
	"context"
	"log/slog"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/pkg/panicerr"
)

const upcomingDeadlineLimit = 3

// Overview holds the values derived from one project's current task list.
// It is rebuilt on every load and never updated in place.
type Overview struct {
	Project               Project
	Tasks                 []task.Task
	HealthScore           int
	Risks                 []task.Risk
	Progress              int
	PendingClarifications int
	UpcomingDeadlines     []task.Task
	// Err is set when the project's tasks could not be loaded.
	Err error
}

func BuildOverview(p Project, tasks []task.Task, now time.Time) Overview {
	return Overview{
		Project:               p,
		Tasks:                 tasks,
		HealthScore:           task.HealthScore(tasks, now),
		Risks:                 task.DetectRisks(tasks, now),
		Progress:              task.Progress(tasks),
		PendingClarifications: task.PendingClarifications(tasks),
		UpcomingDeadlines:     task.UpcomingDeadlines(tasks, now, upcomingDeadlineLimit),
	}
}

// failedOverview reports a project whose tasks could not be fetched. Health
// is 0 rather than the empty-list 100 so the failure is visible.
func failedOverview(p Project, err error) Overview {
	return Overview{Project: p, Err: err}
}

type TaskLister interface {
	ListTasks(ctx context.Context, projectID string) ([]task.Task, error)
}

type Loader struct {
	api            TaskLister
	maxConcurrency int
	now            func() time.Time
}

type LoaderOption func(*Loader)

func WithMaxConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxConcurrency = n
		}
	}
}

func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

func NewLoader(api TaskLister, opts ...LoaderOption) *Loader {
	l := &Loader{api: api, maxConcurrency: 4, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll fetches every project's tasks concurrently and returns the
// overviews in input order. A failed project does not fail the batch.
func (l *Loader) LoadAll(ctx context.Context, projects []Project) []Overview {
	out := make([]Overview, len(projects))
	now := l.now()
	p := pool.New().WithMaxGoroutines(l.maxConcurrency)
	for i, proj := range projects {
		p.Go(func() {
			tasks, err := panicerr.Call(func() ([]task.Task, error) {
				return l.api.ListTasks(ctx, proj.ID)
			})
			if err != nil {
				slog.WarnContext(ctx, "failed to load project tasks", "project_id", proj.ID, "error", err)
				out[i] = failedOverview(proj, err)
				return
			}
			out[i] = BuildOverview(proj, tasks, now)
		})
	}
	p.Wait()
	return out
}
