package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/grouper"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/hasher"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/logging"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/match"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/walker"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Scanner finds groups of files with identical content.
type Scanner struct {
	opts    Options
	optsErr error

	// Atomic counters for thread-safe progress reporting.
	dirsScanned atomic.Int64
	filesSeen   atomic.Int64
	filesHashed atomic.Int64
	bytesHashed atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64

	// currentPath is the path most recently handed to a hash worker.
	currentPath atomic.Value

	// warnings collects recoverable errors in arrival order.
	warnings   []types.Warning
	warningsMu sync.Mutex
	warnCount  atomic.Int64

	// lastProgress throttles OnProgress calls.
	lastProgress atomic.Int64

	walkComplete atomic.Bool
}

// hashed is a worker result on its way to the collector.
type hashed struct {
	digest types.Digest
	entry  types.FileEntry
}

// New creates a Scanner. Options are validated and defaults are applied;
// invalid options are reported by Scan.
func New(opts Options) *Scanner {
	s := &Scanner{opts: opts}
	s.optsErr = s.opts.Validate()
	s.currentPath.Store("")
	return s
}

// Options returns the validated options.
func (s *Scanner) Options() Options {
	return s.opts
}

// Scan walks the root, hashes every regular file and returns the duplicate
// groups. Fatal errors (invalid options, a missing or unreadable root) are
// returned before any file is read. Unreadable files and subdirectories are
// recorded as warnings and the scan continues.
//
// If ctx is cancelled the partial report is returned, marked Interrupted,
// together with the context's error.
func (s *Scanner) Scan(ctx context.Context) (*types.DuplicateReport, error) {
	start := time.Now()
	s.reset()

	if s.optsErr != nil {
		return nil, s.optsErr
	}

	matcher, err := match.New(s.opts.Exclude, match.WithExcludeHidden(s.opts.ExcludeHidden))
	if err != nil {
		return nil, err
	}

	wopts := walker.Options{
		Matcher:        matcher,
		NoRecurse:      s.opts.NoRecurse,
		FollowDirLinks: s.opts.FollowDirLinks,
		MinSize:        s.opts.MinSize,
		OnWarning:      s.addWarning,
		OnDir:          s.handleDirectory,
	}

	var (
		root string
		w    *walker.Walker
	)
	if s.opts.FastWalk {
		root, err = walker.CheckRoot(s.opts.Root)
	} else {
		w, err = walker.New(s.opts.Root, wopts)
		if w != nil {
			root = w.Root()
		}
	}
	if err != nil {
		return nil, err
	}

	runID := uuid.New()
	logger := logging.Get("scanner").With("run", runID.String())
	logger.Info("scan started",
		"root", root,
		"algorithm", s.opts.Algorithm,
		"workers", s.opts.HashWorkers,
		"queue", s.opts.QueueSize,
		"fast_walk", s.opts.FastWalk,
		"prefilter", s.opts.SizePrefilter,
		"cache", s.opts.Cache != nil)

	s.currentPath.Store(root)
	s.reportProgressForce()

	hashers := make([]*hasher.Hasher, s.opts.HashWorkers)
	for i := range hashers {
		if hashers[i], err = hasher.New(s.opts.Algorithm, s.opts.ChunkSize); err != nil {
			return nil, err
		}
	}

	groups := grouper.New(s.opts.Algorithm)
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan types.FileEntry, s.opts.QueueSize)
	results := make(chan hashed, s.opts.QueueSize)

	g.Go(func() error {
		defer close(jobs)
		defer s.walkComplete.Store(true)
		return s.produce(gctx, root, w, wopts, jobs)
	})

	var workers sync.WaitGroup
	for _, h := range hashers {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			return s.hashWorker(gctx, h, jobs, results)
		})
	}

	g.Go(func() error {
		workers.Wait()
		close(results)
		return nil
	})

	// The collector is the only goroutine touching groups. It drains results
	// until every worker has exited, so partial results survive cancellation.
	g.Go(func() error {
		for r := range results {
			groups.Add(r.digest, r.entry)
		}
		return nil
	})

	runErr := g.Wait()
	interrupted := false
	if runErr != nil {
		if ctx.Err() == nil || !isContextErr(runErr) {
			logger.Error("scan failed", "error", runErr)
			return nil, runErr
		}
		interrupted = true
		runErr = ctx.Err()
	}

	s.walkComplete.Store(true)
	s.reportProgressForce()

	report := s.buildReport(runID, root, groups, time.Since(start))
	report.Interrupted = interrupted

	logger.Info("scan finished",
		"files", report.Stats.FilesHashed,
		"groups", len(report.Groups),
		"reclaimable", types.FormatSize(report.Stats.Reclaimable),
		"warnings", len(report.Warnings),
		"interrupted", interrupted,
		"elapsed", report.Stats.Elapsed)

	return report, runErr
}

// produce feeds discovered files into jobs.
func (s *Scanner) produce(ctx context.Context, root string, w *walker.Walker, wopts walker.Options, jobs chan<- types.FileEntry) error {
	if s.opts.SizePrefilter {
		return s.producePrefiltered(ctx, root, w, wopts, jobs)
	}

	return s.walk(ctx, root, w, wopts, func(entry types.FileEntry) error {
		return send(ctx, jobs, entry)
	})
}

// producePrefiltered enumerates everything first and only queues files
// whose size is not unique.
func (s *Scanner) producePrefiltered(ctx context.Context, root string, w *walker.Walker, wopts walker.Options, jobs chan<- types.FileEntry) error {
	var entries []types.FileEntry
	sizes := make(map[int64]int)

	err := s.walk(ctx, root, w, wopts, func(entry types.FileEntry) error {
		entries = append(entries, entry)
		sizes[entry.Size]++
		return nil
	})
	if err != nil {
		return err
	}

	candidates := lo.Filter(entries, func(e types.FileEntry, _ int) bool {
		return sizes[e.Size] > 1
	})
	logging.Get("scanner").Debug("size prefilter",
		"files", len(entries),
		"candidates", len(candidates))

	for _, entry := range candidates {
		if err := send(ctx, jobs, entry); err != nil {
			return err
		}
	}
	return nil
}

// walk drives the configured traversal strategy. fn is called from a single
// goroutine in both strategies.
func (s *Scanner) walk(ctx context.Context, root string, w *walker.Walker, wopts walker.Options, fn func(types.FileEntry) error) error {
	visit := func(entry types.FileEntry) error {
		s.filesSeen.Add(1)
		if s.opts.OnFile != nil {
			s.opts.OnFile(entry)
		}
		return fn(entry)
	}

	if s.opts.FastWalk {
		return walker.FastWalk(ctx, root, wopts, visit)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, ok := w.Next()
		if !ok {
			return nil
		}
		if err := visit(entry); err != nil {
			return err
		}
	}
}

// hashWorker digests queued files until jobs is closed or ctx is done.
func (s *Scanner) hashWorker(ctx context.Context, h *hasher.Hasher, jobs <-chan types.FileEntry, results chan<- hashed) error {
	for entry := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		digest, err := s.digest(ctx, h, entry)
		if err != nil {
			if isContextErr(err) && ctx.Err() != nil {
				return err
			}
			s.addWarning(types.Warning{
				Path:  entry.Path,
				Kind:  hasher.Classify(err),
				Error: err.Error(),
			})
			continue
		}

		s.filesHashed.Add(1)
		s.reportProgress()

		select {
		case results <- hashed{digest: digest, entry: entry}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// digest returns the file's digest from the cache or by hashing it.
func (s *Scanner) digest(ctx context.Context, h *hasher.Hasher, entry types.FileEntry) (types.Digest, error) {
	s.currentPath.Store(entry.Path)

	if s.opts.Cache != nil {
		if d, ok := s.opts.Cache.Lookup(s.opts.Algorithm, entry.Path, entry.Size, entry.ModTime); ok {
			s.cacheHits.Add(1)
			return d, nil
		}
		s.cacheMisses.Add(1)
	}

	d, n, err := h.HashFile(ctx, entry.Path)
	s.bytesHashed.Add(n)
	if err != nil {
		if s.opts.Cache != nil && !isContextErr(err) {
			if ferr := s.opts.Cache.Forget(s.opts.Algorithm, entry.Path); ferr != nil {
				logging.Get("scanner").Debug("cache forget failed", "path", entry.Path, "error", ferr)
			}
		}
		return nil, err
	}

	if s.opts.Cache != nil {
		if err := s.opts.Cache.Store(s.opts.Algorithm, entry.Path, entry.Size, entry.ModTime, d); err != nil {
			logging.Get("scanner").Debug("cache store failed", "path", entry.Path, "error", err)
		}
	}

	return d, nil
}

func (s *Scanner) buildReport(runID uuid.UUID, root string, groups *grouper.Grouper, elapsed time.Duration) *types.DuplicateReport {
	dups := groups.Report()

	s.warningsMu.Lock()
	warnings := make([]types.Warning, len(s.warnings))
	copy(warnings, s.warnings)
	s.warningsMu.Unlock()

	return &types.DuplicateReport{
		RunID:     runID,
		Root:      root,
		Algorithm: s.opts.Algorithm,
		Groups:    dups,
		Warnings:  warnings,
		Stats: types.ScanStats{
			DirsScanned:   s.dirsScanned.Load(),
			FilesSeen:     s.filesSeen.Load(),
			FilesHashed:   groups.Files(),
			BytesHashed:   s.bytesHashed.Load(),
			UniqueDigests: int64(groups.Len()),
			DuplicateFiles: lo.SumBy(dups, func(g types.HashGroup) int64 {
				return int64(g.Count())
			}),
			Reclaimable: lo.SumBy(dups, func(g types.HashGroup) int64 {
				return g.Reclaimable()
			}),
			CacheHits:   s.cacheHits.Load(),
			CacheMisses: s.cacheMisses.Load(),
			Elapsed:     elapsed,
		},
	}
}

// handleDirectory is called by the walker after each directory is listed.
func (s *Scanner) handleDirectory(path string) {
	s.dirsScanned.Add(1)
	s.currentPath.Store(path)
	s.reportProgress()
}

// addWarning records a recoverable error thread-safely.
func (s *Scanner) addWarning(w types.Warning) {
	s.warningsMu.Lock()
	s.warnings = append(s.warnings, w)
	s.warningsMu.Unlock()
	s.warnCount.Add(1)

	logging.Get("scanner").Warn("skipped", "path", w.Path, "kind", w.Kind, "error", w.Error)

	if s.opts.OnWarning != nil {
		s.opts.OnWarning(w)
	}
}

func (s *Scanner) reset() {
	s.dirsScanned.Store(0)
	s.filesSeen.Store(0)
	s.filesHashed.Store(0)
	s.bytesHashed.Store(0)
	s.cacheHits.Store(0)
	s.cacheMisses.Store(0)
	s.warnCount.Store(0)
	s.lastProgress.Store(0)
	s.walkComplete.Store(false)
	s.currentPath.Store("")

	s.warningsMu.Lock()
	s.warnings = nil
	s.warningsMu.Unlock()
}

// Progress returns a snapshot of the current progress.
func (s *Scanner) Progress() types.ScanProgress {
	currentPath, _ := s.currentPath.Load().(string)

	return types.ScanProgress{
		DirsScanned:  s.dirsScanned.Load(),
		FilesSeen:    s.filesSeen.Load(),
		FilesHashed:  s.filesHashed.Load(),
		BytesHashed:  s.bytesHashed.Load(),
		Warnings:     s.warnCount.Load(),
		CurrentPath:  currentPath,
		WalkComplete: s.walkComplete.Load(),
	}
}

// reportProgress calls the progress callback if configured.
// Calls are throttled to one every 10ms.
func (s *Scanner) reportProgress() {
	if s.opts.OnProgress == nil {
		return
	}

	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return
	}

	s.opts.OnProgress(s.Progress())
}

// reportProgressForce bypasses the throttle. Use for state changes such as
// scan start and end.
func (s *Scanner) reportProgressForce() {
	if s.opts.OnProgress == nil {
		return
	}
	s.lastProgress.Store(time.Now().UnixMilli())
	s.opts.OnProgress(s.Progress())
}

func send(ctx context.Context, jobs chan<- types.FileEntry, entry types.FileEntry) error {
	select {
	case jobs <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
