package dexmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/interdex-project/interdex/pkg/dexmodel"
)

func TestRegistryInternsByName(t *testing.T) {
	reg := dexmodel.NewRegistry()

	a := reg.NewClass("Lfoo/Bar;")
	b := reg.NewClass("Lfoo/Bar;")

	assert.Same(t, a, b)
}

func TestRegistryCanaryIsStableAndUnrenameable(t *testing.T) {
	reg := dexmodel.NewRegistry()

	c1 := reg.Canary(3)
	c2 := reg.Canary(3)

	assert.Same(t, c1, c2)
	assert.Equal(t, "Lsecondary/dex03/Canary;", c1.Name)
	assert.False(t, c1.Renameable)
	assert.True(t, c1.IsInterface)
}

func TestClassIsSubtypeOfWalksHierarchy(t *testing.T) {
	reg := dexmodel.NewRegistry()

	base := reg.NewClass("Lfoo/Base;")
	iface := reg.NewClass("Lfoo/Iface;")
	mid := reg.NewClass("Lfoo/Mid;")
	mid.Super = base
	mid.Interfaces = []*dexmodel.Class{iface}
	leaf := reg.NewClass("Lfoo/Leaf;")
	leaf.Super = mid

	assert.True(t, leaf.IsSubtypeOf(base))
	assert.True(t, leaf.IsSubtypeOf(iface))
	assert.False(t, base.IsSubtypeOf(leaf))
}

func TestClassIsSubtypeOfToleratesInterfaceCycles(t *testing.T) {
	reg := dexmodel.NewRegistry()

	leaf := reg.NewClass("Lfoo/Leaf;")
	ifaceA := reg.NewClass("Lfoo/IfaceA;")
	ifaceB := reg.NewClass("Lfoo/IfaceB;")

	// A cyclical interface graph: A implements B and B implements A. A
	// malformed universe could produce this; IsSubtypeOf must not recurse
	// forever chasing it.
	ifaceA.Interfaces = []*dexmodel.Class{ifaceB}
	ifaceB.Interfaces = []*dexmodel.Class{ifaceA}
	leaf.Interfaces = []*dexmodel.Class{ifaceA}

	other := reg.NewClass("Lfoo/Unrelated;")

	assert.True(t, leaf.IsSubtypeOf(ifaceA))
	assert.True(t, leaf.IsSubtypeOf(ifaceB))
	assert.False(t, leaf.IsSubtypeOf(other))
}

func TestClassIsSubtypeOfToleratesSuperCycles(t *testing.T) {
	reg := dexmodel.NewRegistry()

	a := reg.NewClass("Lfoo/A;")
	b := reg.NewClass("Lfoo/B;")

	// A malformed universe could produce a supertype cycle; IsSubtypeOf must
	// not recurse forever chasing it.
	a.Super = b
	b.Super = a

	other := reg.NewClass("Lfoo/Unrelated;")

	assert.True(t, a.IsSubtypeOf(b))
	assert.True(t, b.IsSubtypeOf(a))
	assert.False(t, a.IsSubtypeOf(other))
}
