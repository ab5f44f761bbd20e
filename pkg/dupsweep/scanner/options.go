// Package scanner finds duplicate files below a root directory. It streams
// files from the walker through a bounded queue to a fixed pool of hash
// workers, and a single collector goroutine groups the resulting digests.
package scanner

import (
	"fmt"
	"time"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/config"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/hasher"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/tuner"
	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// DigestCache stores digests between runs. *cache.Cache implements it.
// Implementations must be safe for concurrent use.
type DigestCache interface {
	Lookup(algorithm, path string, size int64, mtime time.Time) (types.Digest, bool)
	Store(algorithm, path string, size int64, mtime time.Time, digest types.Digest) error
	Forget(algorithm, path string) error
}

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Algorithm names the digest algorithm (see hasher.Names).
	Algorithm string

	// ChunkSize is the read buffer size per hash worker.
	ChunkSize int

	// MinSize skips files smaller than this many bytes.
	MinSize int64

	// Exclude contains glob patterns and absolute path prefixes to skip.
	Exclude []string

	// ExcludeHidden skips dotfiles and dot-directories.
	ExcludeHidden bool

	// NoRecurse limits the scan to the root's immediate files.
	NoRecurse bool

	// FollowDirLinks descends into symlinked directories.
	FollowDirLinks bool

	// FastWalk lists directories in parallel. Paths inside a group are then
	// ordered by a discovery sequence that can differ between runs.
	FastWalk bool

	// SizePrefilter enumerates the whole tree first and hashes only files
	// whose size is shared with another file. Memory then grows with the
	// number of files instead of the queue size.
	SizePrefilter bool

	// HashWorkers is the number of concurrent hash workers.
	HashWorkers int

	// QueueSize bounds the walker to worker and worker to collector
	// channels.
	QueueSize int

	// Cache, when set, is consulted before hashing and updated after.
	Cache DigestCache

	// OnProgress is called periodically with scan progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(types.ScanProgress)

	// OnWarning is called for every recoverable error as it happens.
	// It must be safe to call from multiple goroutines.
	OnWarning func(types.Warning)

	// OnFile is called for every file as it is discovered, before it is
	// queued for hashing.
	OnFile func(types.FileEntry)
}

// DefaultOptions returns options with defaults sized for this machine.
func DefaultOptions() Options {
	opts := Options{
		Root:    config.DefaultPath,
		Exclude: config.DefaultExclusions,
	}
	_ = opts.Validate()
	return opts
}

// Validate fills defaults for unset fields and rejects invalid values.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = config.DefaultPath
	}
	if o.Algorithm == "" {
		o.Algorithm = hasher.DefaultAlgorithm
	}
	alg, err := hasher.Lookup(o.Algorithm)
	if err != nil {
		return err
	}
	o.Algorithm = alg.Name

	if o.ChunkSize <= 0 {
		o.ChunkSize = hasher.DefaultChunkSize
	}
	if o.MinSize < 0 {
		return fmt.Errorf("minimum size: %w", types.ErrNegativeSize)
	}

	if o.HashWorkers < 1 || o.QueueSize < 1 {
		tuned := tuner.Auto(o.HashWorkers, o.QueueSize)
		o.HashWorkers = tuned.HashWorkers
		o.QueueSize = tuned.QueueSize
	}

	return nil
}
