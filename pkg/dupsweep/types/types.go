// Package types provides core data types for the dupsweep duplicate finder.
// It includes structures for discovered files, digest groups, the final
// duplicate report and the warnings side channel, along with utility
// functions for parsing and formatting file sizes.
package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// FileEntry is a discovered path known to be a regular file.
// Entries are created during traversal and discarded once hashed.
type FileEntry struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Size is the file size in bytes at enumeration time.
	Size int64 `json:"size"`

	// ModTime is the modification time at enumeration time.
	ModTime time.Time `json:"mod_time"`

	// Seq is the discovery index assigned by the traverser.
	Seq int64 `json:"-"`
}

// Digest is the fixed-width output of a hash function over a file's content.
type Digest []byte

// String returns the lowercase hex form of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// Key returns the digest as a comparable map key.
func (d Digest) Key() string {
	return string(d)
}

// HashGroup is the set of files sharing one digest value.
// Two paths in the same group are byte-identical up to the collision
// resistance of the algorithm.
type HashGroup struct {
	// Digest is the content digest shared by every path in the group.
	Digest Digest `json:"digest"`

	// Size is the size of each member in bytes.
	Size int64 `json:"size"`

	// Paths lists the members in discovery order.
	Paths []string `json:"paths"`
}

// Count returns the number of members.
func (g *HashGroup) Count() int {
	return len(g.Paths)
}

// Reclaimable returns the bytes held by every copy beyond the first.
func (g *HashGroup) Reclaimable() int64 {
	if len(g.Paths) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Paths)-1)
}

// ErrorKind classifies a recoverable per-item error.
type ErrorKind string

// Recoverable error kinds surfaced on the warnings channel.
const (
	KindPermissionDenied ErrorKind = "permission_denied"
	KindVanished         ErrorKind = "vanished"
	KindReadError        ErrorKind = "read_error"
	KindBrokenSymlink    ErrorKind = "broken_symlink"
	KindSymlinkCycle     ErrorKind = "symlink_cycle"
	KindAlreadyVisited   ErrorKind = "already_visited"
	KindWalkError        ErrorKind = "walk_error"
)

// Warning is a non-fatal error tied to one path. The affected item is
// excluded from the results and the run continues.
type Warning struct {
	// Path is the file or directory where the error occurred.
	Path string `json:"path"`

	// Kind classifies the error.
	Kind ErrorKind `json:"kind"`

	// Error is the error message.
	Error string `json:"error"`
}

// KindOf classifies err, returning fallback when it is neither a
// permission nor a not-exist error.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return KindPermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return KindVanished
	default:
		return fallback
	}
}

// NewWarning builds a warning for path from err.
func NewWarning(path string, err error, fallback ErrorKind) Warning {
	return Warning{
		Path:  path,
		Kind:  KindOf(err, fallback),
		Error: err.Error(),
	}
}

// String renders the warning as a single line.
func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (%s)", w.Path, w.Error, w.Kind)
}

// ScanStats summarizes a run.
type ScanStats struct {
	DirsScanned    int64         `json:"dirs_scanned"`
	FilesSeen      int64         `json:"files_seen"`
	FilesHashed    int64         `json:"files_hashed"`
	BytesHashed    int64         `json:"bytes_hashed"`
	UniqueDigests  int64         `json:"unique_digests"`
	DuplicateFiles int64         `json:"duplicate_files"`
	Reclaimable    int64         `json:"reclaimable"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	Elapsed        time.Duration `json:"elapsed"`
}

// DuplicateReport is the subset of hash groups with two or more members.
// It is computed once at the end of a run.
type DuplicateReport struct {
	// RunID identifies the run in logs and structured output.
	RunID uuid.UUID `json:"run_id"`

	// Root is the absolute path that was scanned.
	Root string `json:"root"`

	// Algorithm is the digest algorithm used.
	Algorithm string `json:"algorithm"`

	// Groups holds every digest shared by at least two files.
	Groups []HashGroup `json:"groups"`

	// Stats contains run statistics.
	Stats ScanStats `json:"stats"`

	// Warnings lists every recoverable error in arrival order.
	Warnings []Warning `json:"warnings,omitempty"`

	// Interrupted is set when the run was cancelled before completion.
	Interrupted bool `json:"interrupted"`
}

// ScanProgress reports real-time scan progress.
type ScanProgress struct {
	DirsScanned  int64  `json:"dirs_scanned"`
	FilesSeen    int64  `json:"files_seen"`
	FilesHashed  int64  `json:"files_hashed"`
	BytesHashed  int64  `json:"bytes_hashed"`
	Warnings     int64  `json:"warnings"`
	CurrentPath  string `json:"current_path"`
	WalkComplete bool   `json:"walk_complete,omitempty"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// Plain byte counts and K/M/G/T suffixes (with optional B or iB) are
// accepted, all as binary units. Decimal values are truncated to the byte.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
