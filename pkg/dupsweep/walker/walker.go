// Package walker enumerates the regular files below a root directory.
//
// The default Walker is a pull-based iterator driven by an explicit stack
// of pending directories, so hashing can start before the tree has been
// listed and deep trees never grow the goroutine stack. FastWalk offers
// the same contract on top of fastwalk's parallel directory reads.
//
// Symlink policy: symlinked directories are not descended unless
// FollowDirLinks is set, in which case every directory is canonicalized and
// visited at most once. A link back to an ancestor is reported as a cycle;
// any other second route to a directory is reported as already visited.
// Symlinked files are yielded only when they resolve to a regular file.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/match"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// Fatal root errors. They abort a run before any report is produced.
var (
	ErrPathNotFound   = errors.New("path not found")
	ErrNotADirectory  = errors.New("not a directory")
	ErrRootUnreadable = errors.New("root directory unreadable")
)

// Options configures traversal.
type Options struct {
	// Matcher decides which entries are skipped. Nil skips nothing.
	Matcher *match.Matcher

	// NoRecurse limits the walk to the root's immediate entries.
	NoRecurse bool

	// FollowDirLinks descends into symlinked directories with cycle detection.
	FollowDirLinks bool

	// MinSize skips files smaller than this many bytes.
	MinSize int64

	// OnWarning receives every recoverable error. It is called from the
	// goroutine driving the walk.
	OnWarning func(types.Warning)

	// OnDir is called after each directory has been listed.
	OnDir func(path string)
}

// Walker is a lazy, finite, non-restartable sequence of regular files.
// It is not safe for concurrent use.
type Walker struct {
	root string
	opts Options

	stack   []string
	curDir  string
	entries []os.DirEntry
	idx     int

	visited visitedDirs
	seq     int64
}

// New validates root and lists it. Failures are fatal and wrap
// ErrPathNotFound, ErrNotADirectory or ErrRootUnreadable.
func New(root string, opts Options) (*Walker, error) {
	abs, err := ValidateRoot(root)
	if err != nil {
		return nil, err
	}

	w := &Walker{
		root: abs,
		opts: opts,
	}

	if opts.FollowDirLinks {
		w.visited = visitedDirs{}
		w.visited.mark(abs)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRootUnreadable, abs, err)
	}
	w.curDir = abs
	w.entries = entries
	w.dirListed(abs)

	return w, nil
}

// ValidateRoot resolves root to an absolute path and checks that it is an
// existing directory.
func ValidateRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrPathNotFound, abs)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrRootUnreadable, abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, abs)
	}

	return abs, nil
}

// CheckRoot validates root like ValidateRoot and also checks that it can be
// listed.
func CheckRoot(root string) (string, error) {
	abs, err := ValidateRoot(root)
	if err != nil {
		return "", err
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRootUnreadable, abs, err)
	}
	defer f.Close()
	if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %s: %w", ErrRootUnreadable, abs, err)
	}
	return abs, nil
}

// Root returns the absolute root path.
func (w *Walker) Root() string {
	return w.root
}

// Next returns the next regular file. The second result is false once the
// tree is exhausted.
func (w *Walker) Next() (types.FileEntry, bool) {
	for {
		if w.idx < len(w.entries) {
			entry := w.entries[w.idx]
			w.idx++

			if fe, ok := w.visit(entry); ok {
				return fe, true
			}
			continue
		}

		if !w.advance() {
			return types.FileEntry{}, false
		}
	}
}

// advance pops the next pending directory and lists it.
func (w *Walker) advance() bool {
	for len(w.stack) > 0 {
		dir := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]

		if !w.markVisited(dir) {
			continue
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			w.warn(types.NewWarning(dir, err, types.KindWalkError))
			// os.ReadDir returns what it managed to read before failing.
			if len(entries) == 0 {
				continue
			}
		}

		w.curDir = dir
		w.entries = entries
		w.idx = 0
		w.dirListed(dir)
		return true
	}

	w.entries = nil
	w.idx = 0
	return false
}

// visit classifies one directory entry, queueing directories and returning
// regular files.
func (w *Walker) visit(entry os.DirEntry) (types.FileEntry, bool) {
	path := filepath.Join(w.curDir, entry.Name())
	if w.opts.Matcher.Excluded(path) {
		return types.FileEntry{}, false
	}

	mode := entry.Type()
	switch {
	case mode.IsDir():
		if !w.opts.NoRecurse {
			w.stack = append(w.stack, path)
		}
		return types.FileEntry{}, false

	case mode&fs.ModeSymlink != 0:
		return w.visitLink(path)

	case mode.IsRegular():
		info, err := entry.Info()
		if err != nil {
			w.warn(types.NewWarning(path, err, types.KindWalkError))
			return types.FileEntry{}, false
		}
		return w.emit(path, info)
	}

	// Devices, sockets and pipes have no content to compare.
	return types.FileEntry{}, false
}

// visitLink resolves a symlink according to the symlink policy.
func (w *Walker) visitLink(path string) (types.FileEntry, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w.warn(types.Warning{Path: path, Kind: types.KindBrokenSymlink, Error: err.Error()})
		} else {
			w.warn(types.NewWarning(path, err, types.KindWalkError))
		}
		return types.FileEntry{}, false
	}

	switch {
	case info.IsDir():
		if w.opts.FollowDirLinks && !w.opts.NoRecurse {
			w.stack = append(w.stack, path)
		}
		return types.FileEntry{}, false
	case info.Mode().IsRegular():
		return w.emit(path, info)
	}

	return types.FileEntry{}, false
}

// emit applies the size filter and assigns the discovery sequence.
func (w *Walker) emit(path string, info fs.FileInfo) (types.FileEntry, bool) {
	if info.Size() < w.opts.MinSize {
		return types.FileEntry{}, false
	}

	w.seq++
	return types.FileEntry{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Seq:     w.seq,
	}, true
}

// markVisited records the canonical form of dir when following directory
// links. It returns false if the directory was already seen.
func (w *Walker) markVisited(dir string) bool {
	if w.visited == nil {
		return true
	}

	warning, ok := w.visited.mark(dir)
	if !ok {
		w.warn(warning)
	}
	return ok
}

// visitedDirs is the set of canonical directories seen while following
// directory links.
type visitedDirs map[string]struct{}

// mark records dir under its canonical path. It returns false, with the
// warning to report, if dir cannot be resolved or was seen before.
func (v visitedDirs) mark(dir string) (types.Warning, bool) {
	canonical, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return types.NewWarning(dir, err, types.KindWalkError), false
	}

	if _, seen := v[canonical]; !seen {
		v[canonical] = struct{}{}
		return types.Warning{}, true
	}

	if parent, err := filepath.EvalSymlinks(filepath.Dir(dir)); err == nil && within(parent, canonical) {
		return types.Warning{
			Path:  dir,
			Kind:  types.KindSymlinkCycle,
			Error: fmt.Sprintf("link back to ancestor %s", canonical),
		}, false
	}

	return types.Warning{
		Path:  dir,
		Kind:  types.KindAlreadyVisited,
		Error: fmt.Sprintf("directory already visited as %s", canonical),
	}, false
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}

func (w *Walker) warn(warning types.Warning) {
	if w.opts.OnWarning != nil {
		w.opts.OnWarning(warning)
	}
}

func (w *Walker) dirListed(dir string) {
	if w.opts.OnDir != nil {
		w.opts.OnDir(dir)
	}
}

// Walk drives a Walker to completion, calling fn for every file.
// It stops early when ctx is cancelled or fn returns an error.
func Walk(ctx context.Context, root string, opts Options, fn func(types.FileEntry) error) error {
	w, err := New(root, opts)
	if err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, ok := w.Next()
		if !ok {
			return nil
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}
