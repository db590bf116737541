// Package pathcmp compares filesystem paths the way the underlying
// filesystem would: byte-exact on case-sensitive filesystems and case-folded
// on case-insensitive ones. Every exclusion and intersection of candidate
// files against tracked files goes through a Comparer so the rule is applied
// consistently.
package pathcmp

import (
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type Comparer struct {
	fold bool
}

// New returns a Comparer. When fold is true paths that differ only in case
// are equal.
func New(fold bool) *Comparer {
	return &Comparer{fold: fold}
}

// Key returns the normalized form of p used for comparisons: cleaned,
// NFC-normalized and, when folding, case-folded.
func (c *Comparer) Key(p string) string {
	if p == "" {
		return ""
	}
	k := norm.NFC.String(filepath.Clean(p))
	if c.fold {
		// cases.Caser is stateful and not safe for concurrent use.
		k = cases.Fold().String(k)
	}
	return k
}

// Equal reports whether a and b name the same file.
func (c *Comparer) Equal(a, b string) bool {
	return c.Key(a) == c.Key(b)
}

// Except returns the paths in files that are not equal to any path in
// remove, preserving the order of files.
func (c *Comparer) Except(files, remove []string) []string {
	if len(remove) == 0 {
		return files
	}

	exclude := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		exclude[c.Key(r)] = struct{}{}
	}

	kept := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := exclude[c.Key(f)]; ok {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

// Set is a membership set of paths under a Comparer.
type Set struct {
	c     *Comparer
	items map[string]struct{}
}

func (c *Comparer) NewSet(paths ...string) *Set {
	s := &Set{c: c, items: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

func (s *Set) Add(p string) {
	s.items[s.c.Key(p)] = struct{}{}
}

func (s *Set) Contains(p string) bool {
	_, ok := s.items[s.c.Key(p)]
	return ok
}

func (s *Set) Len() int {
	return len(s.items)
}
