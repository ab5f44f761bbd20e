// Package output renders a duplicate report in various formats (pretty,
// plain, json, yaml, etc.).
//
// Formatters are registered by name and selected at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/samber/lo"
)

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the rendered report to the buffer.
	Format(w *bytes.Buffer, r *types.DuplicateReport) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered formatter names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.factories)
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// document is the structured form shared by the json and yaml formatters.
type document struct {
	RunID       string       `json:"run_id" yaml:"run_id"`
	Root        string       `json:"root" yaml:"root"`
	Algorithm   string       `json:"algorithm" yaml:"algorithm"`
	Groups      []groupDoc   `json:"groups" yaml:"groups"`
	Stats       statsDoc     `json:"stats" yaml:"stats"`
	Warnings    []warningDoc `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool         `json:"interrupted" yaml:"interrupted"`
}

type groupDoc struct {
	Digest      string   `json:"digest" yaml:"digest"`
	Size        int64    `json:"size" yaml:"size"`
	SizeHuman   string   `json:"size_human" yaml:"size_human"`
	Reclaimable int64    `json:"reclaimable" yaml:"reclaimable"`
	Paths       []string `json:"paths" yaml:"paths"`
}

type statsDoc struct {
	DirsScanned    int64  `json:"dirs_scanned" yaml:"dirs_scanned"`
	FilesSeen      int64  `json:"files_seen" yaml:"files_seen"`
	FilesHashed    int64  `json:"files_hashed" yaml:"files_hashed"`
	BytesHashed    int64  `json:"bytes_hashed" yaml:"bytes_hashed"`
	UniqueDigests  int64  `json:"unique_digests" yaml:"unique_digests"`
	DuplicateFiles int64  `json:"duplicate_files" yaml:"duplicate_files"`
	Reclaimable    int64  `json:"reclaimable" yaml:"reclaimable"`
	CacheHits      int64  `json:"cache_hits,omitempty" yaml:"cache_hits,omitempty"`
	CacheMisses    int64  `json:"cache_misses,omitempty" yaml:"cache_misses,omitempty"`
	Duration       string `json:"duration" yaml:"duration"`
}

type warningDoc struct {
	Path  string `json:"path" yaml:"path"`
	Kind  string `json:"kind" yaml:"kind"`
	Error string `json:"error" yaml:"error"`
}

func newGroupDoc(g types.HashGroup) groupDoc {
	return groupDoc{
		Digest:      g.Digest.String(),
		Size:        g.Size,
		SizeHuman:   types.FormatSize(g.Size),
		Reclaimable: g.Reclaimable(),
		Paths:       g.Paths,
	}
}

func newWarningDoc(w types.Warning) warningDoc {
	return warningDoc{Path: w.Path, Kind: string(w.Kind), Error: w.Error}
}

func newDocument(r *types.DuplicateReport) document {
	groups := lo.Map(r.Groups, func(g types.HashGroup, _ int) groupDoc {
		return newGroupDoc(g)
	})
	warnings := lo.Map(r.Warnings, func(w types.Warning, _ int) warningDoc {
		return newWarningDoc(w)
	})

	return document{
		RunID:     r.RunID.String(),
		Root:      r.Root,
		Algorithm: r.Algorithm,
		Groups:    groups,
		Stats: statsDoc{
			DirsScanned:    r.Stats.DirsScanned,
			FilesSeen:      r.Stats.FilesSeen,
			FilesHashed:    r.Stats.FilesHashed,
			BytesHashed:    r.Stats.BytesHashed,
			UniqueDigests:  r.Stats.UniqueDigests,
			DuplicateFiles: r.Stats.DuplicateFiles,
			Reclaimable:    r.Stats.Reclaimable,
			CacheHits:      r.Stats.CacheHits,
			CacheMisses:    r.Stats.CacheMisses,
			Duration:       formatDurationString(r.Stats.Elapsed),
		},
		Warnings:    warnings,
		Interrupted: r.Interrupted,
	}
}

// formatDurationString formats a duration for structured output.
func formatDurationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}

// shortDigest abbreviates a hex digest for human-facing output.
func shortDigest(d types.Digest) string {
	s := d.String()
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
