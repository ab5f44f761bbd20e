package walker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/match"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files relative to root. Parent directories are created
// as needed.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// walkFunc is the shared signature of Walk and FastWalk.
type walkFunc func(context.Context, string, Options, func(types.FileEntry) error) error

var strategies = map[string]walkFunc{
	"stack":    Walk,
	"fastwalk": FastWalk,
}

// collect runs a walk and returns root-relative slash paths, sorted.
func collect(t *testing.T, walk walkFunc, root string, opts Options) ([]string, []types.Warning) {
	t.Helper()

	var warnings []types.Warning
	userWarn := opts.OnWarning
	opts.OnWarning = func(w types.Warning) {
		warnings = append(warnings, w)
		if userWarn != nil {
			userWarn(w)
		}
	}

	var paths []string
	err := walk(context.Background(), root, opts, func(e types.FileEntry) error {
		rel, err := filepath.Rel(root, e.Path)
		require.NoError(t, err)
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)

	sort.Strings(paths)
	return paths, warnings
}

func TestNewRootErrors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(filepath.Join(root, "missing"), Options{})
	assert.ErrorIs(t, err, ErrPathNotFound)

	_, err = New(file, Options{})
	assert.ErrorIs(t, err, ErrNotADirectory)

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			err := walk(context.Background(), filepath.Join(root, "missing"), Options{}, func(types.FileEntry) error { return nil })
			assert.ErrorIs(t, err, ErrPathNotFound)

			err = walk(context.Background(), file, Options{}, func(types.FileEntry) error { return nil })
			assert.ErrorIs(t, err, ErrNotADirectory)
		})
	}
}

func TestWalkCompleteness(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":             "hello",
		"b.txt":             "hello",
		"sub/c.txt":         "world",
		"sub/deeper/d.bin":  "",
		"other/e.txt":       "e",
		"other/x/y/z/f.txt": "f",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "dir"), 0o755))

	want := []string{"a.txt", "b.txt", "other/e.txt", "other/x/y/z/f.txt", "sub/c.txt", "sub/deeper/d.bin"}

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, warnings := collect(t, walk, root, Options{})
			assert.Equal(t, want, got)
			assert.Empty(t, warnings)
		})
	}
}

func TestNextIsLazyAndFinite(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"one": "1", "dir/two": "2"})

	w, err := New(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, root, w.Root())

	seen := map[int64]bool{}
	count := 0
	for {
		e, ok := w.Next()
		if !ok {
			break
		}
		assert.False(t, seen[e.Seq], "sequence numbers must be unique")
		seen[e.Seq] = true
		count++
	}
	assert.Equal(t, 2, count)

	// Exhausted walkers stay exhausted.
	_, ok := w.Next()
	assert.False(t, ok)
}

func TestWalkDeepTree(t *testing.T) {
	root := t.TempDir()

	const depth = 200
	parts := make([]string, depth)
	for i := range parts {
		parts[i] = "d"
	}
	deep := filepath.Join(append([]string{root}, parts...)...)
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "leaf.txt"), []byte("leaf"), 0o644))

	got, _ := collect(t, Walk, root, Options{})
	require.Len(t, got, 1)
	assert.True(t, strings.HasSuffix(got[0], "d/leaf.txt"))
}

func TestHiddenAndExcluded(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":        "k",
		".hidden":         "h",
		".git/config":     "c",
		"cache/blob.tmp":  "t",
		"build/out.o":     "o",
		"build/keep.json": "j",
	})

	m, err := match.New([]string{"*.tmp", filepath.Join(root, "build")})
	require.NoError(t, err)

	noHidden, err := match.New([]string{"*.tmp", filepath.Join(root, "build")}, match.WithExcludeHidden(true))
	require.NoError(t, err)

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, _ := collect(t, walk, root, Options{Matcher: m})
			assert.Equal(t, []string{".git/config", ".hidden", "keep.txt"}, got)

			got, _ = collect(t, walk, root, Options{Matcher: noHidden})
			assert.Equal(t, []string{"keep.txt"}, got)
		})
	}
}

func TestNoRecurse(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"top.txt": "t", "sub/nested.txt": "n"})

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, _ := collect(t, walk, root, Options{NoRecurse: true})
			assert.Equal(t, []string{"top.txt"}, got)
		})
	}
}

func TestMinSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"small": "ab", "large": "abcdefgh"})

	got, _ := collect(t, Walk, root, Options{MinSize: 4})
	assert.Equal(t, []string{"large"}, got)
}

func TestSymlinkPolicy(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeTree(t, root, map[string]string{"real.txt": "real"})
	writeTree(t, outside, map[string]string{"inner.txt": "inner"})

	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linkdir")))
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "broken")))

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, warnings := collect(t, walk, root, Options{})

			// The file link resolves to a regular file; the directory link is
			// not descended.
			assert.Equal(t, []string{"link.txt", "real.txt"}, got)

			require.Len(t, warnings, 1)
			assert.Equal(t, types.KindBrokenSymlink, warnings[0].Kind)
			assert.Equal(t, filepath.Join(root, "broken"), warnings[0].Path)
		})
	}
}

func TestFollowDirLinksDetectsCycles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "a", "sub/b.txt": "b"})
	require.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop")))

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, warnings := collect(t, walk, root, Options{FollowDirLinks: true})
			assert.Equal(t, []string{"a.txt", "sub/b.txt"}, got)

			require.Len(t, warnings, 1)
			assert.Equal(t, types.KindSymlinkCycle, warnings[0].Kind)
			assert.Equal(t, filepath.Join(root, "sub", "loop"), warnings[0].Path)
		})
	}
}

func TestFollowDirLinksVisitsSiblingOnce(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real/x": "only one copy"})
	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "real", "loop")))

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, warnings := collect(t, walk, root, Options{FollowDirLinks: true})

			// Whichever route is listed first wins; the file is yielded once.
			require.Len(t, got, 1)
			assert.Contains(t, []string{"real/x", "link/x"}, got[0])

			kinds := make([]types.ErrorKind, 0, len(warnings))
			for _, w := range warnings {
				kinds = append(kinds, w.Kind)
			}
			assert.ElementsMatch(t, []types.ErrorKind{types.KindAlreadyVisited, types.KindSymlinkCycle}, kinds)
		})
	}
}

func TestPermissionDeniedSubtree(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":        "hello",
		"b.txt":        "hello",
		"locked/c.txt": "hidden away",
		"open/d.txt":   "visible",
	})

	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			got, warnings := collect(t, walk, root, Options{})
			assert.Equal(t, []string{"a.txt", "b.txt", "open/d.txt"}, got)

			require.Len(t, warnings, 1)
			assert.Equal(t, locked, warnings[0].Path)
			assert.Equal(t, types.KindPermissionDenied, warnings[0].Kind)
		})
	}
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"1": "1", "2": "2", "3": "3"})

	stop := errors.New("stop")
	calls := 0
	err := Walk(context.Background(), root, Options{}, func(types.FileEntry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"1": "1", "2": "2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, walk := range strategies {
		t.Run(name, func(t *testing.T) {
			err := walk(ctx, root, Options{}, func(types.FileEntry) error { return nil })
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestOnDirCountsListedDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"x/1": "1", "y/z/2": "2"})

	dirs := 0
	_, _ = collect(t, Walk, root, Options{OnDir: func(string) { dirs++ }})
	assert.Equal(t, 4, dirs) // root, x, y, y/z
}
