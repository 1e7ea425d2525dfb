// Package identity assigns dense surrogate keys to dimension members.
//
// Keys are deterministic: natural keys are sorted lexicographically and
// numbered 1..n. Map iteration order is never used for assignment, so
// re-running the pipeline over identical input reproduces identical keys.
package identity

import (
	"fmt"
	"sort"

	"github.com/camonet/amrgold/internal/star"
)

// ConflictError reports a natural key that appeared more than once in a
// supposedly deduplicated member set. This indicates an upstream
// deduplication defect and is never resolved silently.
type ConflictError struct {
	Dimension  string
	NaturalKey string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identity conflict in %s: natural key %q assigned twice", e.Dimension, e.NaturalKey)
}

// Assignment maps one dimension's natural keys to surrogate keys.
type Assignment struct {
	dimension string
	keys      map[string]int64
	ordered   []string
}

// Assign numbers the deduplicated natural keys of one dimension. The input
// order is irrelevant; assignment order is the sorted key order. A duplicate
// natural key is a fatal ConflictError.
func Assign(dimension string, naturalKeys []string) (*Assignment, error) {
	ordered := make([]string, len(naturalKeys))
	copy(ordered, naturalKeys)
	sort.Strings(ordered)

	keys := make(map[string]int64, len(ordered))
	for i, nk := range ordered {
		if _, dup := keys[nk]; dup {
			return nil, &ConflictError{Dimension: dimension, NaturalKey: nk}
		}
		keys[nk] = int64(i + 1)
	}

	return &Assignment{dimension: dimension, keys: keys, ordered: ordered}, nil
}

// Key resolves a natural key to its surrogate key, or the sentinel when the
// natural key is unknown or blank.
func (a *Assignment) Key(naturalKey string) int64 {
	if sk, ok := a.keys[naturalKey]; ok {
		return sk
	}
	return star.SentinelKey
}

// Has reports whether the natural key belongs to the dimension.
func (a *Assignment) Has(naturalKey string) bool {
	_, ok := a.keys[naturalKey]
	return ok
}

// Ordered returns the natural keys in assignment order (surrogate key 1
// first).
func (a *Assignment) Ordered() []string {
	return a.ordered
}

// Len is the number of non-sentinel members.
func (a *Assignment) Len() int {
	return len(a.keys)
}

// Dimension names the dimension this assignment belongs to.
func (a *Assignment) Dimension() string {
	return a.dimension
}
