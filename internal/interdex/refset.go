package interdex

import (
	"github.com/interdex-project/interdex/pkg/alg/mapx"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// ReferenceSet is a deduplicated collection of references, partitioned by
// kind, with the set-union and cardinality operations the container and
// minimizer need. It never retains ownership of the dexmodel.Class that
// produced a reference, only the reference values themselves.
type ReferenceSet struct {
	byKind map[dexmodel.Kind]map[dexmodel.Reference]struct{}
}

// NewReferenceSet returns an empty ReferenceSet.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{byKind: make(map[dexmodel.Kind]map[dexmodel.Reference]struct{})}
}

// InsertMany adds every reference in refs to the set, deduplicating by
// (kind, descriptor).
func (rs *ReferenceSet) InsertMany(refs []dexmodel.Reference) {
	for _, ref := range refs {
		bucket, ok := rs.byKind[ref.Kind]
		if !ok {
			bucket = make(map[dexmodel.Reference]struct{})
			rs.byKind[ref.Kind] = bucket
		}

		bucket[ref] = struct{}{}
	}
}

// Has reports whether ref is already present.
func (rs *ReferenceSet) Has(ref dexmodel.Reference) bool {
	bucket, ok := rs.byKind[ref.Kind]
	if !ok {
		return false
	}

	_, present := bucket[ref]

	return present
}

// Cardinality returns the number of distinct references of the given kind.
func (rs *ReferenceSet) Cardinality(kind dexmodel.Kind) int {
	return len(rs.byKind[kind])
}

// UnionSizeWith returns, per kind, the cardinality the set would have after
// adding every reference in refs that is not already present — i.e. the
// *new* reference count each kind would gain. It does not mutate rs.
func (rs *ReferenceSet) UnionSizeWith(refs []dexmodel.Reference) map[dexmodel.Kind]int {
	additions := make(map[dexmodel.Kind]int)

	seen := make(map[dexmodel.Reference]struct{}, len(refs))

	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}

		seen[ref] = struct{}{}

		if rs.Has(ref) {
			continue
		}

		additions[ref.Kind]++
	}

	return additions
}

// NewInSet partitions refs into those already present in rs and those that
// are not (deduplicated against each other), which the minimizer's applied
// and unapplied weighting needs.
func (rs *ReferenceSet) NewInSet(refs []dexmodel.Reference) (applied, unapplied []dexmodel.Reference) {
	seen := make(map[dexmodel.Reference]struct{}, len(refs))

	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}

		seen[ref] = struct{}{}

		if rs.Has(ref) {
			applied = append(applied, ref)
		} else {
			unapplied = append(unapplied, ref)
		}
	}

	return applied, unapplied
}

// Kinds returns the reference kinds present in rs in a stable order, useful
// for deterministic iteration in diagnostics and tests.
func (rs *ReferenceSet) Kinds() []dexmodel.Kind {
	return mapx.SortedKeys(rs.byKind)
}

// Reset discards every reference, leaving rs as if newly constructed.
func (rs *ReferenceSet) Reset() {
	rs.byKind = make(map[dexmodel.Kind]map[dexmodel.Reference]struct{})
}
