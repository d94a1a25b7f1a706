package interdex

import (
	"sort"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// MinimizerWeights carries the eight configurable scoring weights: an
// applied ("ref") weight and an unapplied ("seed") penalty per reference
// kind.
type MinimizerWeights struct {
	MethodRef, FieldRef, TypeRef, StringRef     float64
	MethodSeed, FieldSeed, TypeSeed, StringSeed float64
}

// WeightsFromConfig adapts a config.MinimizerConfig into MinimizerWeights.
func WeightsFromConfig(mc config.MinimizerConfig) MinimizerWeights {
	return MinimizerWeights{
		MethodRef:  mc.MethodRefWeight,
		FieldRef:   mc.FieldRefWeight,
		TypeRef:    mc.TypeRefWeight,
		StringRef:  mc.StringRefWeight,
		MethodSeed: mc.MethodSeedWeight,
		FieldSeed:  mc.FieldSeedWeight,
		TypeSeed:   mc.TypeSeedWeight,
		StringSeed: mc.StringSeedWeight,
	}
}

func (w MinimizerWeights) refWeight(kind dexmodel.Kind) float64 {
	switch kind {
	case dexmodel.MethodRef:
		return w.MethodRef
	case dexmodel.FieldRef:
		return w.FieldRef
	case dexmodel.TypeRef:
		return w.TypeRef
	case dexmodel.StringRef:
		return w.StringRef
	default:
		return 0
	}
}

func (w MinimizerWeights) seedWeight(kind dexmodel.Kind) float64 {
	switch kind {
	case dexmodel.MethodRef:
		return w.MethodSeed
	case dexmodel.FieldRef:
		return w.FieldSeed
	case dexmodel.TypeRef:
		return w.TypeSeed
	case dexmodel.StringRef:
		return w.StringSeed
	default:
		return 0
	}
}

// candidate is a pending class tracked by the minimizer, together with its
// own reference list and its current priority.
type candidate struct {
	cls      *dexmodel.Class
	refs     []dexmodel.Reference
	priority float64
}

// CrossDexRefMinimizer ranks candidate classes by how many references they
// share with the currently-open container versus how many new references
// they would introduce, maintaining priorities incrementally as classes
// are erased from the pool.
type CrossDexRefMinimizer struct {
	weights MinimizerWeights

	applied *ReferenceSet

	pending map[*dexmodel.Class]*candidate

	// frequency counts, seeded by sample and decremented as sharers leave
	// the pool, used for the sharing bonus: introducing a reference many
	// other pending candidates also need is cheaper than a singleton.
	frequency map[dexmodel.Reference]int

	// reverse index: which pending candidates carry each reference, so
	// erase(emitted=true) only reprices candidates that actually share a
	// newly-applied reference.
	carriers map[dexmodel.Reference]map[*dexmodel.Class]struct{}
}

// NewCrossDexRefMinimizer returns an empty minimizer scoring with weights.
// The minimizer keeps its own applied set, separate from the
// ContainerStructure's accumulated refs; Erase with overflowed=true resets it.
func NewCrossDexRefMinimizer(weights MinimizerWeights) *CrossDexRefMinimizer {
	return &CrossDexRefMinimizer{
		weights:   weights,
		applied:   NewReferenceSet(),
		pending:   make(map[*dexmodel.Class]*candidate),
		frequency: make(map[dexmodel.Reference]int),
		carriers:  make(map[dexmodel.Reference]map[*dexmodel.Class]struct{}),
	}
}

// Sample updates the reference-frequency histogram for cls's references
// without adding it as a candidate. Sample calls that should influence the
// initial priority computation must precede the corresponding Insert.
func (m *CrossDexRefMinimizer) Sample(refs []dexmodel.Reference) {
	seen := make(map[dexmodel.Reference]struct{}, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}

		seen[ref] = struct{}{}
		m.frequency[ref]++
	}
}

// Insert records cls as a candidate with refs and computes its initial
// priority.
func (m *CrossDexRefMinimizer) Insert(cls *dexmodel.Class, refs []dexmodel.Reference) {
	cand := &candidate{cls: cls, refs: dedupRefs(refs)}
	m.pending[cls] = cand

	for _, ref := range cand.refs {
		bucket, ok := m.carriers[ref]
		if !ok {
			bucket = make(map[*dexmodel.Class]struct{})
			m.carriers[ref] = bucket
		}

		bucket[cls] = struct{}{}
	}

	m.reprice(cand)
}

func dedupRefs(refs []dexmodel.Reference) []dexmodel.Reference {
	seen := make(map[dexmodel.Reference]struct{}, len(refs))
	out := make([]dexmodel.Reference, 0, len(refs))

	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}

		seen[ref] = struct{}{}
		out = append(out, ref)
	}

	return out
}

// reprice recomputes cand's priority from the current applied set and
// frequency histogram.
func (m *CrossDexRefMinimizer) reprice(cand *candidate) {
	applied, unapplied := m.applied.NewInSet(cand.refs)

	var score float64

	for _, ref := range applied {
		score += m.weights.refWeight(ref.Kind)
	}

	for _, ref := range unapplied {
		score -= m.weights.seedWeight(ref.Kind)

		sharers := m.frequency[ref]
		if sharers > 1 {
			score += m.weights.seedWeight(ref.Kind) * float64(sharers-1) / float64(sharers)
		}
	}

	cand.priority = score
}

// Front returns the pending candidate with maximum priority, the best
// class to emit next. Ties break on class name for determinism. Reports
// false if no candidates remain.
func (m *CrossDexRefMinimizer) Front() (*dexmodel.Class, bool) {
	return m.extreme(func(best, cur *candidate) bool {
		if cur.priority != best.priority {
			return cur.priority > best.priority
		}

		return cur.cls.Name < best.cls.Name
	})
}

// Worst returns the pending candidate whose unapplied reference count is
// maximal, useful for seeding a fresh container. Ties break on class name.
func (m *CrossDexRefMinimizer) Worst() (*dexmodel.Class, bool) {
	return m.extreme(func(best, cur *candidate) bool {
		bu := m.unappliedCount(best)
		cu := m.unappliedCount(cur)

		if cu != bu {
			return cu > bu
		}

		return cur.cls.Name < best.cls.Name
	})
}

func (m *CrossDexRefMinimizer) extreme(better func(best, cur *candidate) bool) (*dexmodel.Class, bool) {
	var best *candidate

	for _, cand := range m.pending {
		if best == nil || better(best, cand) {
			best = cand
		}
	}

	if best == nil {
		return nil, false
	}

	return best.cls, true
}

func (m *CrossDexRefMinimizer) unappliedCount(cand *candidate) int {
	_, unapplied := m.applied.NewInSet(cand.refs)

	return len(unapplied)
}

// GetUnappliedRefs returns the count of refs cls would newly introduce
// against the current applied set. Returns 0 if cls is not pending.
func (m *CrossDexRefMinimizer) GetUnappliedRefs(cls *dexmodel.Class) int {
	cand, ok := m.pending[cls]
	if !ok {
		return 0
	}

	return m.unappliedCount(cand)
}

// GetAppliedRefsSize returns the total number of distinct references
// currently marked applied, across all kinds.
func (m *CrossDexRefMinimizer) GetAppliedRefsSize() int {
	total := 0
	for _, kind := range m.applied.Kinds() {
		total += m.applied.Cardinality(kind)
	}

	return total
}

// Erase removes cls from the candidate pool. If emitted, its references
// are folded into the applied set and every remaining candidate sharing
// any of those references has its priority recomputed. overflowed reports
// that emitting cls flushed the previously-open container and opened a
// fresh one holding only cls: per §3, applied refs are those already
// present in the *currently-open* container, so the applied set is reset
// to empty and re-seeded with only cls's own refs — otherwise applied
// would keep accumulating refs from every closed container for the life
// of the remainder phase, permanently defeating the pickWorst re-arm
// check and rewarding refs that no longer belong to the open container.
// A reset changes every pending candidate's applied/unapplied split, so
// all of them are repriced, not just cls's direct sharers.
func (m *CrossDexRefMinimizer) Erase(cls *dexmodel.Class, emitted, overflowed bool) {
	cand, ok := m.pending[cls]
	if !ok {
		return
	}

	m.removeFromCarriers(cand)
	delete(m.pending, cls)

	if !emitted {
		return
	}

	if overflowed {
		m.applied.Reset()
	}

	toReprice := make(map[*dexmodel.Class]struct{})

	for _, ref := range cand.refs {
		if !m.applied.Has(ref) {
			m.applied.InsertMany([]dexmodel.Reference{ref})

			for sharer := range m.carriers[ref] {
				toReprice[sharer] = struct{}{}
			}
		}
	}

	if overflowed {
		for other := range m.pending {
			toReprice[other] = struct{}{}
		}
	}

	for sharer := range toReprice {
		if other, ok := m.pending[sharer]; ok {
			m.reprice(other)
		}
	}
}

// Ignore removes cls from the pool without charging its references as
// applied, used for classes pre-owned by the cross-dex relocator.
func (m *CrossDexRefMinimizer) Ignore(cls *dexmodel.Class) {
	cand, ok := m.pending[cls]
	if !ok {
		return
	}

	m.removeFromCarriers(cand)
	delete(m.pending, cls)
}

func (m *CrossDexRefMinimizer) removeFromCarriers(cand *candidate) {
	for _, ref := range cand.refs {
		bucket := m.carriers[ref]

		delete(bucket, cand.cls)

		if len(bucket) == 0 {
			delete(m.carriers, ref)
		}

		if m.frequency[ref] > 0 {
			m.frequency[ref]--
		}

		if m.frequency[ref] == 0 {
			delete(m.frequency, ref)
		}
	}
}

// Len reports how many candidates remain pending.
func (m *CrossDexRefMinimizer) Len() int { return len(m.pending) }

// PendingNames returns the names of all pending candidates, sorted, for
// diagnostics and deterministic test assertions.
func (m *CrossDexRefMinimizer) PendingNames() []string {
	names := make([]string, 0, len(m.pending))
	for cls := range m.pending {
		names = append(names, cls.Name)
	}

	sort.Strings(names)

	return names
}
