package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feeta/feeta/pkg/cerr"
)

func TestStatic(t *testing.T) {
	tok, err := Static("abc").Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o600))

	s, err := NewFileSource(path)
	require.NoError(t, err)
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "first", tok.AccessToken)

	require.NoError(t, os.WriteFile(path, []byte("  "), 0o600))
	require.NoError(t, s.Reload())
	_, err = s.Token()
	assert.True(t, cerr.IsCode(err, cerr.Unauthenticated))

	_, err = NewFileSource(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFileSource_Watch(t *testing.T) {
	prev := DebounceInterval
	DebounceInterval = 10 * time.Millisecond
	t.Cleanup(func() { DebounceInterval = prev })

	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, err := FromConfig(ctx, "inline", path)
	require.NoError(t, err)

	// Give the watcher a moment to register before writing.
	time.Sleep(50 * time.Millisecond)
	tmp := filepath.Join(dir, "token.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("new"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	assert.Eventually(t, func() bool {
		tok, err := src.Token()
		return err == nil && tok.AccessToken == "new"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestFromConfig(t *testing.T) {
	src, err := FromConfig(context.Background(), "", "")
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = FromConfig(context.Background(), "inline", "")
	require.NoError(t, err)
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "inline", tok.AccessToken)
}
