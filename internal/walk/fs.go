// Package walk finds workflow files in directory trees.
package walk

import (
	"context"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Entry is a workflow file found by a walk.
type Entry interface {
	Path() string
	Open() (io.ReadCloser, error)
}

// IsWorkflow reports whether name looks like a workflow file.
func IsWorkflow(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}

// Roots is a convenience wrapper around FS for os.Root. See FS for details.
func Roots(ctx context.Context, roots ...*os.Root) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, root := range roots {
			for entry, err := range FS(ctx, root.FS(), root.Name()) {
				if !yield(entry, err) {
					return
				}
			}
		}
	}
}

// FS recursively walks root and returns a handle for every regular workflow
// file found, or an error when a directory can't be read. Hidden directories
// are skipped. Each Entry's Path() is prefixed with name. It does not follow
// symlinks.
func FS(ctx context.Context, root fs.FS, name string) iter.Seq2[Entry, error] {
	if root == nil {
		panic("root is nil")
	}

	return func(yield func(Entry, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			entry := fsEntry{
				root:    root,
				abspath: filepath.Join(name, path),
				path:    path,
			}
			if err != nil {
				if !yield(entry, err) {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if path != "." && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !IsWorkflow(path) {
				return nil
			}
			if !yield(entry, nil) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

// Expand replaces every directory in paths by the sorted workflow files it
// contains. Other paths are kept as given.
func Expand(ctx context.Context, paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			out = append(out, path)
			continue
		}

		root, err := os.OpenRoot(path)
		if err != nil {
			return nil, err
		}
		var found []string
		for entry, err := range Roots(ctx, root) {
			if err != nil {
				_ = root.Close()
				return nil, err
			}
			found = append(found, entry.Path())
		}
		if err := root.Close(); err != nil {
			return nil, err
		}
		slices.Sort(found)
		out = append(out, found...)
	}
	return out, ctx.Err()
}

// fsEntry implements Entry for a filesystem
// it uses root.Open to open the file
type fsEntry struct {
	root    fs.FS
	abspath string
	path    string
}

// returns the path to the file prefixed with the name of the walked root
func (e fsEntry) Path() string {
	return e.abspath
}

func (e fsEntry) Open() (io.ReadCloser, error) {
	return e.root.Open(e.path)
}
