package walk_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/bbservices/bbservices/internal/walk"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	t.Parallel()
	root := fstest.MapFS{
		"release.yaml":        {Data: []byte("name: release")},
		"nightly.yml":         {Data: []byte("name: nightly")},
		"README.md":           {Data: []byte("# docs")},
		".hidden.yaml":        {Data: []byte("name: hidden")},
		".git/config.yaml":    {Data: []byte("name: git")},
		"team/deploy.yaml":    {Data: []byte("name: deploy")},
		"team/notes/todo.txt": {Data: []byte("todo")},
	}

	var paths []string
	for entry, err := range walk.FS(t.Context(), root, "/workflows") {
		require.NoError(t, err)
		paths = append(paths, entry.Path())
	}
	require.ElementsMatch(t, []string{
		"/workflows/release.yaml",
		"/workflows/nightly.yml",
		"/workflows/team/deploy.yaml",
	}, paths)

	t.Run("open", func(t *testing.T) {
		for entry, err := range walk.FS(t.Context(), root, "x") {
			require.NoError(t, err)
			if entry.Path() != filepath.Join("x", "release.yaml") {
				continue
			}
			f, err := entry.Open()
			require.NoError(t, err)
			b, err := io.ReadAll(f)
			require.NoError(t, err)
			require.NoError(t, f.Close())
			require.Equal(t, "name: release", string(b))
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		for range walk.FS(ctx, root, "x") {
			t.Fatal("no entry expected")
		}
	})
}

func TestIsWorkflow(t *testing.T) {
	t.Parallel()
	require.True(t, walk.IsWorkflow("a/b.yaml"))
	require.True(t, walk.IsWorkflow("b.yml"))
	require.False(t, walk.IsWorkflow(".b.yml"))
	require.False(t, walk.IsWorkflow("b.json"))
}

func TestExpand(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	for _, name := range []string{"b.yaml", "a.yml", "sub/c.yaml", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	got, err := walk.Expand(t.Context(), []string{"first.yaml", dir, "missing.yaml"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"first.yaml",
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "sub", "c.yaml"),
		"missing.yaml",
	}, got)
}
