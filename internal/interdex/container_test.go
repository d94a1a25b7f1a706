package interdex_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interdex-project/interdex/internal/interdex"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

func TestContainerAddClassIfFitsRespectsSharedRefs(t *testing.T) {
	c := interdex.NewContainerStructure(interdex.Limits{
		MaxMethodRefs: 2,
		MaxFieldRefs:  10,
		MaxTypeRefs:   10,
		MaxClasses:    10,
	})

	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")
	b := reg.NewClass("Lb;")

	shared := []dexmodel.Reference{{Kind: dexmodel.MethodRef, Descriptor: "m1"}, {Kind: dexmodel.MethodRef, Descriptor: "m2"}}

	assert.True(t, c.AddClassIfFits(a, shared, nil, nil))
	// b introduces the same two refs — no new method refs, so it still fits
	// even though the limit is exactly 2.
	assert.True(t, c.AddClassIfFits(b, shared, nil, nil))
	assert.Equal(t, 2, c.MethodRefCount())
	assert.Equal(t, 2, c.ClassCount())
}

func TestContainerAddClassIfFitsRejectsOverflow(t *testing.T) {
	c := interdex.NewContainerStructure(interdex.Limits{
		MaxMethodRefs: 1,
		MaxFieldRefs:  10,
		MaxTypeRefs:   10,
		MaxClasses:    10,
	})

	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")

	ok := c.AddClassIfFits(a, []dexmodel.Reference{
		{Kind: dexmodel.MethodRef, Descriptor: "m1"},
		{Kind: dexmodel.MethodRef, Descriptor: "m2"},
	}, nil, nil)

	assert.False(t, ok)
	assert.Equal(t, 0, c.ClassCount())
}

func TestContainerAddClassIfFitsRejectsDuplicateClass(t *testing.T) {
	c := interdex.NewContainerStructure(interdex.Limits{MaxMethodRefs: 10, MaxFieldRefs: 10, MaxTypeRefs: 10, MaxClasses: 10})

	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")

	require.True(t, c.AddClassIfFits(a, nil, nil, nil))
	assert.False(t, c.AddClassIfFits(a, nil, nil, nil))
	assert.Equal(t, 1, c.ClassCount())
}

func TestContainerEndContainerResetsState(t *testing.T) {
	c := interdex.NewContainerStructure(interdex.Limits{MaxMethodRefs: 10, MaxFieldRefs: 10, MaxTypeRefs: 10, MaxClasses: 10})

	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")
	require.True(t, c.AddClassIfFits(a, []dexmodel.Reference{{Kind: dexmodel.MethodRef, Descriptor: "m"}}, nil, nil))

	out := c.EndContainer()
	assert.Equal(t, []*dexmodel.Class{a}, out)
	assert.Equal(t, 0, c.ClassCount())
	assert.Equal(t, 0, c.MethodRefCount())
}

func TestContainerMaxClassesEnforced(t *testing.T) {
	c := interdex.NewContainerStructure(interdex.Limits{MaxMethodRefs: 100, MaxFieldRefs: 100, MaxTypeRefs: 100, MaxClasses: 1})

	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")
	b := reg.NewClass("Lb;")

	require.True(t, c.AddClassIfFits(a, nil, nil, nil))
	assert.False(t, c.AddClassIfFits(b, nil, nil, nil))
}
