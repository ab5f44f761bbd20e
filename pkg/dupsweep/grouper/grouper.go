// Package grouper accumulates hashed files into groups keyed by digest.
package grouper

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"github.com/samber/lo"
)

type member struct {
	path string
	seq  int64
}

type group struct {
	digest  types.Digest
	size    int64
	members []member
}

// Grouper maps digests to the files that produced them.
// It has a single writer: only one goroutine may call Add.
type Grouper struct {
	algorithm string
	groups    map[string]*group
	files     int64
}

// New returns an empty Grouper for digests produced by algorithm.
func New(algorithm string) *Grouper {
	return &Grouper{
		algorithm: algorithm,
		groups:    make(map[string]*group),
	}
}

// Algorithm returns the algorithm the digests were produced with.
func (g *Grouper) Algorithm() string {
	return g.algorithm
}

// Add records that entry hashed to digest. An unseen digest starts a
// singleton group; a known one gains a member.
func (g *Grouper) Add(digest types.Digest, entry types.FileEntry) {
	g.files++

	key := digest.Key()
	grp, ok := g.groups[key]
	if !ok {
		grp = &group{
			digest: bytes.Clone(digest),
			size:   entry.Size,
		}
		g.groups[key] = grp
	}
	grp.members = append(grp.members, member{path: entry.Path, seq: entry.Seq})
}

// Len returns the number of distinct digests.
func (g *Grouper) Len() int {
	return len(g.groups)
}

// Files returns the number of files added.
func (g *Grouper) Files() int64 {
	return g.files
}

// Report returns the groups with at least two members. Paths within a group
// are in discovery order. Groups are ordered by reclaimable bytes, largest
// first, then by digest.
func (g *Grouper) Report() []types.HashGroup {
	dups := lo.Filter(lo.Values(g.groups), func(grp *group, _ int) bool {
		return len(grp.members) >= 2
	})

	out := make([]types.HashGroup, 0, len(dups))
	for _, grp := range dups {
		members := slices.Clone(grp.members)
		slices.SortStableFunc(members, func(a, b member) int {
			return cmp.Compare(a.seq, b.seq)
		})

		out = append(out, types.HashGroup{
			Digest: grp.digest,
			Size:   grp.size,
			Paths: lo.Map(members, func(m member, _ int) string {
				return m.path
			}),
		})
	}

	slices.SortFunc(out, func(a, b types.HashGroup) int {
		if c := cmp.Compare(b.Reclaimable(), a.Reclaimable()); c != 0 {
			return c
		}
		return bytes.Compare(a.Digest, b.Digest)
	})

	return out
}
