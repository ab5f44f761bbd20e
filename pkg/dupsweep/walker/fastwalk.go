package walker

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// FastWalk walks root with fastwalk, reading directories in parallel.
// Calls to fn, OnWarning and OnDir are serialized, so callers see the same
// single-goroutine contract as Walk. Symlinked directories follow the same
// policy, including the canonical visited set. Discovery order is not stable
// between runs.
func FastWalk(ctx context.Context, root string, opts Options, fn func(types.FileEntry) error) error {
	abs, err := CheckRoot(root)
	if err != nil {
		return err
	}

	conf := fastwalk.Config{
		Follow: opts.FollowDirLinks && !opts.NoRecurse,
	}

	var (
		mu      sync.Mutex
		seq     int64
		visited visitedDirs
	)
	if conf.Follow {
		visited = visitedDirs{}
		visited.mark(abs)
	}

	emit := func(path string, info fs.FileInfo) error {
		if info.Size() < opts.MinSize {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fn(types.FileEntry{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Seq:     seq,
		})
	}

	warn := func(w types.Warning) {
		if opts.OnWarning == nil {
			return
		}
		mu.Lock()
		opts.OnWarning(w)
		mu.Unlock()
	}

	dirListed := func(path string) {
		if opts.OnDir != nil {
			mu.Lock()
			opts.OnDir(path)
			mu.Unlock()
		}
	}

	// enter reports whether the directory at path should be descended.
	enter := func(path string) bool {
		if visited == nil {
			return true
		}
		mu.Lock()
		warning, ok := visited.mark(path)
		mu.Unlock()
		if !ok {
			warn(warning)
		}
		return ok
	}

	walkErr := fastwalk.Walk(&conf, abs, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			warn(types.NewWarning(path, err, types.KindWalkError))
			if d != nil && d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if path == abs {
			dirListed(path)
			return nil
		}

		if opts.Matcher.Excluded(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		mode := d.Type()
		switch {
		case mode.IsDir():
			if opts.NoRecurse || !enter(path) {
				return fastwalk.SkipDir
			}
			dirListed(path)
			return nil

		case mode&fs.ModeSymlink != 0:
			info, statErr := os.Stat(path)
			if statErr != nil {
				if errors.Is(statErr, fs.ErrNotExist) {
					warn(types.Warning{Path: path, Kind: types.KindBrokenSymlink, Error: statErr.Error()})
				} else {
					warn(types.NewWarning(path, statErr, types.KindWalkError))
				}
				return nil
			}
			if info.IsDir() {
				// fastwalk descends a followed link without calling back for
				// it as a directory.
				if !conf.Follow || !enter(path) {
					return fastwalk.SkipDir
				}
				dirListed(path)
				return nil
			}
			if info.Mode().IsRegular() {
				return emit(path, info)
			}
			return nil

		case mode.IsRegular():
			info, infoErr := d.Info()
			if infoErr != nil {
				warn(types.NewWarning(path, infoErr, types.KindWalkError))
				return nil
			}
			return emit(path, info)
		}

		return nil
	})

	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		return walkErr
	}
	return nil
}
