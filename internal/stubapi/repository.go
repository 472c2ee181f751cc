package stubapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/feeta/feeta/internal/apiclient"
	"github.com/feeta/feeta/internal/project"
	"github.com/feeta/feeta/internal/task"
	"github.com/feeta/feeta/pkg/cerr"
	"github.com/feeta/feeta/pkg/storage"
)

const (
	projectsPrefix = "projects"
	tasksPrefix    = "tasks"
	messagesPrefix = "messages"
	membersPath    = "team/members.yaml"
)

type teamFile struct {
	Members []task.TeamMember `yaml:"members"`
}

// Repository keeps the stub's records as YAML documents, one file per
// project, task and message.
type Repository struct {
	storage storage.Storage
}

func NewRepository(s storage.Storage) *Repository {
	return &Repository{storage: s}
}

func projectPath(id string) string {
	return fmt.Sprintf("%s/%s.yaml", projectsPrefix, id)
}

func taskDir(projectID string) string {
	return fmt.Sprintf("%s/%s", tasksPrefix, projectID)
}

func taskPath(projectID, id string) string {
	return fmt.Sprintf("%s/%s.yaml", taskDir(projectID), id)
}

func messageDir(projectID string) string {
	return fmt.Sprintf("%s/%s", messagesPrefix, projectID)
}

// listYAML decodes every document under prefix. Unreadable documents are
// logged and skipped.
func listYAML[T any](ctx context.Context, s storage.Storage, prefix string) ([]T, error) {
	paths, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(paths))
	for _, p := range paths {
		v, err := storage.ReadYAML[T](ctx, s, p)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable record", "path", p, "error", err)
			continue
		}
		out = append(out, *v)
	}
	return out, nil
}

func (r *Repository) ListProjects(ctx context.Context) ([]project.Project, error) {
	projects, err := listYAML[project.Project](ctx, r.storage, projectsPrefix)
	if err != nil {
		return nil, cerr.FromStorage(cerr.StorageRead, "projects", err)
	}
	return projects, nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (*project.Project, error) {
	p, err := storage.ReadYAML[project.Project](ctx, r.storage, projectPath(id))
	if err != nil {
		return nil, cerr.FromStorage(cerr.StorageRead, "project", err)
	}
	return p, nil
}

func (r *Repository) SaveProject(ctx context.Context, p *project.Project) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	if err := storage.WriteYAML(ctx, r.storage, projectPath(p.ID), p); err != nil {
		return cerr.FromStorage(cerr.StorageWrite, "project", err)
	}
	return nil
}

// ListTasks returns a project's tasks in creation order.
func (r *Repository) ListTasks(ctx context.Context, projectID string) ([]task.Task, error) {
	tasks, err := listYAML[task.Task](ctx, r.storage, taskDir(projectID))
	if err != nil {
		return nil, cerr.FromStorage(cerr.StorageRead, "tasks", err)
	}
	return tasks, nil
}

// SaveTask writes t under its project, assigning an id to new tasks.
func (r *Repository) SaveTask(ctx context.Context, t *task.Task) error {
	if t.ProjectID == "" {
		return cerr.NewError(cerr.InvalidArgument, "project_id required", nil)
	}
	if t.ID == "" {
		t.ID = ulid.Make().String()
	}
	if err := storage.WriteYAML(ctx, r.storage, taskPath(t.ProjectID, t.ID), t); err != nil {
		return cerr.FromStorage(cerr.StorageWrite, "task", err)
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, projectID string) ([]apiclient.Message, error) {
	msgs, err := listYAML[apiclient.Message](ctx, r.storage, messageDir(projectID))
	if err != nil {
		return nil, cerr.FromStorage(cerr.StorageRead, "messages", err)
	}
	return msgs, nil
}

// AppendMessage stores msg after every message already saved for the
// project. File names are monotonic ULIDs, so listing preserves order.
func (r *Repository) AppendMessage(ctx context.Context, projectID string, msg apiclient.Message) error {
	path := fmt.Sprintf("%s/%s.yaml", messageDir(projectID), ulid.Make().String())
	if err := storage.WriteYAML(ctx, r.storage, path, msg); err != nil {
		return cerr.FromStorage(cerr.StorageWrite, "message", err)
	}
	return nil
}

func (r *Repository) ListMembers(ctx context.Context) ([]task.TeamMember, error) {
	doc, err := storage.ReadYAML[teamFile](ctx, r.storage, membersPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, cerr.FromStorage(cerr.StorageRead, "team", err)
	}
	return doc.Members, nil
}

func (r *Repository) SaveMembers(ctx context.Context, members []task.TeamMember) error {
	if err := storage.WriteYAML(ctx, r.storage, membersPath, teamFile{Members: members}); err != nil {
		return cerr.FromStorage(cerr.StorageWrite, "team", err)
	}
	return nil
}
