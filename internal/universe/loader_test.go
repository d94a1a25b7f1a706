package universe_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interdex-project/interdex/internal/universe"
)

func TestLoad_ResolvesHierarchy(t *testing.T) {
	t.Parallel()

	doc := `[
		{"name": "LBase;", "is_interface": false},
		{"name": "LIface;", "is_interface": true},
		{"name": "LChild;", "super": "LBase;", "interfaces": ["LIface;"],
		 "references": [{"kind": "method", "descriptor": "LChild;.foo:()V"}]}
	]`

	reg, _, err := universe.Load(strings.NewReader(doc))
	require.NoError(t, err)

	child, ok := reg.Lookup("LChild;")
	require.True(t, ok)

	base, ok := reg.Lookup("LBase;")
	require.True(t, ok)

	assert.Same(t, base, child.Super)
	require.Len(t, child.Interfaces, 1)
	assert.Equal(t, "LIface;", child.Interfaces[0].Name)
	require.Len(t, child.References, 1)
	assert.Equal(t, "LChild;.foo:()V", child.References[0].Descriptor)
}

func TestLoad_DefaultsRenameableTrue(t *testing.T) {
	t.Parallel()

	reg, _, err := universe.Load(strings.NewReader(`[{"name": "LA;"}]`))
	require.NoError(t, err)

	cls, ok := reg.Lookup("LA;")
	require.True(t, ok)
	assert.True(t, cls.Renameable)
}

func TestLoad_RenameableFalseOverride(t *testing.T) {
	t.Parallel()

	reg, _, err := universe.Load(strings.NewReader(`[{"name": "LA;", "renameable": false}]`))
	require.NoError(t, err)

	cls, ok := reg.Lookup("LA;")
	require.True(t, ok)
	assert.False(t, cls.Renameable)
}

func TestLoad_ForwardReferenceToUndeclaredSuper(t *testing.T) {
	t.Parallel()

	// "super" is never itself listed as a top-level record; Load should
	// still intern it so IsSubtypeOf walks resolve.
	reg, _, err := universe.Load(strings.NewReader(`[{"name": "LChild;", "super": "Ljava/lang/Object;"}]`))
	require.NoError(t, err)

	obj, ok := reg.Lookup("Ljava/lang/Object;")
	require.True(t, ok)
	assert.True(t, obj.Renameable, "undeclared super should still be default-constructed")
}

func TestLoad_OrderedSliceMatchesDocumentOrderAndSkipsForwardRefs(t *testing.T) {
	t.Parallel()

	doc := `[
		{"name": "LB;"},
		{"name": "LA;", "super": "Ljava/lang/Object;"}
	]`

	_, ordered, err := universe.Load(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, ordered, 2)
	assert.Equal(t, "LB;", ordered[0].Name)
	assert.Equal(t, "LA;", ordered[1].Name)
}

func TestLoad_PrimaryFlag(t *testing.T) {
	t.Parallel()

	reg, _, err := universe.Load(strings.NewReader(`[{"name": "LA;", "primary": true}, {"name": "LB;"}]`))
	require.NoError(t, err)

	a, _ := reg.Lookup("LA;")
	b, _ := reg.Lookup("LB;")
	assert.True(t, a.Primary)
	assert.False(t, b.Primary)
}

func TestLoad_UnknownReferenceKind(t *testing.T) {
	t.Parallel()

	_, _, err := universe.Load(strings.NewReader(`[{"name": "LA;", "references": [{"kind": "bogus", "descriptor": "x"}]}]`))
	require.Error(t, err)
}

func TestLoad_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, _, err := universe.Load(strings.NewReader(`not json`))
	require.Error(t, err)
}
