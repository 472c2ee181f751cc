package credential

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/oauth2"

	"github.com/feeta/feeta/pkg/cerr"
)

// DebounceInterval is how long FileSource waits after a filesystem event
// before re-reading the token file.
var DebounceInterval = 200 * time.Millisecond

// Static returns a source that always yields token.
func Static(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// FileSource serves the bearer token stored in a file and picks up changes
// while Watch is running.
type FileSource struct {
	path string

	mu    sync.RWMutex
	token string
}

func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}
	s.mu.Lock()
	s.token = strings.TrimSpace(string(data))
	s.mu.Unlock()
	return nil
}

func (s *FileSource) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok == "" {
		return nil, cerr.NewError(cerr.Unauthenticated, "token file is empty", nil)
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// Watch reloads the token whenever the file is written or replaced. It
// watches the parent directory so atomic renames are seen, and blocks until
// ctx is done.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dir, name := filepath.Dir(s.path), filepath.Base(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(DebounceInterval, func() {
				if err := s.Reload(); err != nil {
					slog.Warn("failed to reload token file", "path", s.path, "error", err)
					return
				}
				slog.Debug("reloaded token file", "path", s.path)
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("token file watcher error", "error", err)
		}
	}
}

// FromConfig picks the credential for a run. A token file wins over an
// inline token and is watched until ctx is done. It returns nil when neither
// is set, in which case requests go out without authorization.
func FromConfig(ctx context.Context, token, tokenFile string) (oauth2.TokenSource, error) {
	if tokenFile != "" {
		fs, err := NewFileSource(tokenFile)
		if err != nil {
			return nil, err
		}
		go func() {
			if err := fs.Watch(ctx); err != nil {
				slog.Warn("token file watch stopped", "error", err)
			}
		}()
		return fs, nil
	}
	if token != "" {
		return Static(token), nil
	}
	return nil, nil
}
