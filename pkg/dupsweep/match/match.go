// Package match decides which directory entries the traverser skips.
// Exclusion patterns are compiled once with gobwas/glob and checked
// against both the base name and the full path of every entry.
package match

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Matcher holds compiled exclusion rules.
type Matcher struct {
	prefixes      []string
	globs         []glob.Glob
	excludeHidden bool
}

// Option is a functional option for configuring a Matcher.
type Option func(*Matcher)

// WithExcludeHidden skips dot-prefixed files and directories. Hidden
// entries are visited by default.
func WithExcludeHidden(exclude bool) Option {
	return func(m *Matcher) {
		m.excludeHidden = exclude
	}
}

// New compiles the exclusion patterns.
// Absolute patterns without glob metacharacters also exclude everything
// below them. An invalid glob is reported as an error.
func New(patterns []string, opts ...Option) (*Matcher, error) {
	m := &Matcher{}
	for _, opt := range opts {
		opt(m)
	}

	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if filepath.IsAbs(pattern) && !hasMeta(pattern) {
			m.prefixes = append(m.prefixes, filepath.Clean(pattern))
			continue
		}

		g, err := glob.Compile(pattern, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("compiling exclude pattern %q: %w", pattern, err)
		}
		m.globs = append(m.globs, g)
	}

	return m, nil
}

// Excluded reports whether the entry at path should be skipped.
func (m *Matcher) Excluded(path string) bool {
	if m == nil {
		return false
	}

	name := filepath.Base(path)
	if m.excludeHidden && IsHidden(name) {
		return true
	}

	for _, prefix := range m.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}

	for _, g := range m.globs {
		if g.Match(name) || g.Match(path) {
			return true
		}
	}

	return false
}

// IsHidden reports whether a base name is a dot file.
// "." and ".." are not considered hidden.
func IsHidden(name string) bool {
	return len(name) > 1 && name[0] == '.' && name != ".."
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, `*?[{\`)
}
