package interdex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interdex-project/interdex/internal/interdex"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

func refs(descs ...string) []dexmodel.Reference {
	out := make([]dexmodel.Reference, 0, len(descs))
	for _, d := range descs {
		out = append(out, dexmodel.Reference{Kind: dexmodel.MethodRef, Descriptor: d})
	}

	return out
}

func defaultWeights() interdex.MinimizerWeights {
	return interdex.MinimizerWeights{
		MethodRef: 100, FieldRef: 30, TypeRef: 30, StringRef: 30,
		MethodSeed: 30, FieldSeed: 10, TypeSeed: 10, StringSeed: 10,
	}
}

func TestMinimizerFrontPrefersSharedRefsOverSingleton(t *testing.T) {
	reg := dexmodel.NewRegistry()
	x := reg.NewClass("Lx;")
	y := reg.NewClass("Ly;")
	z := reg.NewClass("Lz;")

	m := interdex.NewCrossDexRefMinimizer(defaultWeights())

	xRefs := refs("r1", "r2")
	yRefs := refs("r1", "r2")
	zRefs := refs("r3", "r4")

	m.Sample(xRefs)
	m.Sample(yRefs)
	m.Sample(zRefs)

	m.Insert(x, xRefs)
	m.Insert(y, yRefs)
	m.Insert(z, zRefs)

	front, ok := m.Front()
	require.True(t, ok)
	assert.Contains(t, []string{x.Name, y.Name}, front.Name)

	m.Erase(front, true, false)

	// After emitting one of X/Y, the other should now look strictly better
	// than Z since r1/r2 are applied.
	next, ok := m.Front()
	require.True(t, ok)

	other := x
	if front == x {
		other = y
	}

	assert.Equal(t, other.Name, next.Name)
}

func TestMinimizerWorstReturnsMaxUnapplied(t *testing.T) {
	reg := dexmodel.NewRegistry()
	small := reg.NewClass("Lsmall;")
	big := reg.NewClass("Lbig;")

	m := interdex.NewCrossDexRefMinimizer(defaultWeights())

	smallRefs := refs("a")
	bigRefs := refs("b", "c", "d")

	m.Sample(smallRefs)
	m.Sample(bigRefs)
	m.Insert(small, smallRefs)
	m.Insert(big, bigRefs)

	worst, ok := m.Worst()
	require.True(t, ok)
	assert.Equal(t, big.Name, worst.Name)
}

func TestMinimizerIgnoreDoesNotChargeApplied(t *testing.T) {
	reg := dexmodel.NewRegistry()
	cls := reg.NewClass("Lc;")

	m := interdex.NewCrossDexRefMinimizer(defaultWeights())
	r := refs("only")
	m.Sample(r)
	m.Insert(cls, r)
	m.Ignore(cls)

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.GetAppliedRefsSize())
}

func TestMinimizerEraseEmittedChargesApplied(t *testing.T) {
	reg := dexmodel.NewRegistry()
	cls := reg.NewClass("Lc;")

	m := interdex.NewCrossDexRefMinimizer(defaultWeights())
	r := refs("only")
	m.Sample(r)
	m.Insert(cls, r)
	m.Erase(cls, true, false)

	assert.Equal(t, 1, m.GetAppliedRefsSize())
}

// A run spanning three containers must reset applied at every overflow, not
// just the first one: applied tracks refs in the currently-open container
// per §3, so it must never keep growing across containers already flushed.
func TestMinimizerEraseOverflowResetsAppliedAcrossMultipleContainers(t *testing.T) {
	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")
	b := reg.NewClass("Lb;")
	c := reg.NewClass("Lc;")

	m := interdex.NewCrossDexRefMinimizer(defaultWeights())

	aRefs := refs("r1")
	bRefs := refs("r2")
	cRefs := refs("r3")

	m.Sample(aRefs)
	m.Sample(bRefs)
	m.Sample(cRefs)

	m.Insert(a, aRefs)
	m.Insert(b, bRefs)
	m.Insert(c, cRefs)

	// First container: a is emitted without overflow, seeding applied.
	m.Erase(a, true, false)
	assert.Equal(t, 1, m.GetAppliedRefsSize())

	// Second container: b overflows the first, so applied must reset to
	// hold only b's own refs, not a's plus b's.
	m.Erase(b, true, true)
	assert.Equal(t, 1, m.GetAppliedRefsSize())

	// Third container: c overflows the second, same reset must apply again.
	m.Erase(c, true, true)
	assert.Equal(t, 1, m.GetAppliedRefsSize())
}

// A candidate sharing a reference with a class already flushed into a
// closed container must not keep receiving the applied bonus for it: once
// the container overflows, that reference is no longer "in the currently
// open container" and repricing must reflect the reset.
func TestMinimizerEraseOverflowRepricesStaleSharers(t *testing.T) {
	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")
	b := reg.NewClass("Lb;")
	d := reg.NewClass("Ld;")

	m := interdex.NewCrossDexRefMinimizer(defaultWeights())

	// a and d share ref r1; b is unrelated, seeded with r2.
	aRefs := refs("r1")
	bRefs := refs("r2")
	dRefs := refs("r1")

	m.Sample(aRefs)
	m.Sample(bRefs)
	m.Sample(dRefs)

	m.Insert(a, aRefs)
	m.Insert(b, bRefs)
	m.Insert(d, dRefs)

	// a is emitted into the first container: applied={r1}, and d (which
	// shares r1) is repriced with the applied bonus.
	m.Erase(a, true, false)
	assert.Equal(t, 0, m.GetUnappliedRefs(d))

	// b overflows into a fresh container. r1 no longer belongs to the
	// currently-open container, so d's r1 must go back to being unapplied.
	m.Erase(b, true, true)
	assert.Equal(t, 1, m.GetUnappliedRefs(d))
}
