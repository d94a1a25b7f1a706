package interdex_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/internal/interdex"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

func looseContainerConfig() config.ContainerConfig {
	return config.ContainerConfig{
		MethodRefsLimit:      1000,
		FieldRefsLimit:       1000,
		TypeRefsLimit:        1000,
		EmitCanaries:         true,
		SortRemainingClasses: true,
	}
}

func disabledMinimizerConfig() config.MinimizerConfig {
	return config.MinimizerConfig{Enabled: false}
}

func enabledMinimizerConfig() config.MinimizerConfig {
	return config.MinimizerConfig{
		Enabled:          true,
		MethodRefWeight:  100,
		FieldRefWeight:   30,
		TypeRefWeight:    30,
		StringRefWeight:  30,
		MethodSeedWeight: 30,
		FieldSeedWeight:  10,
		TypeSeedWeight:   10,
		StringSeedWeight: 10,
	}
}

// S1: an empty universe produces an empty sequence — no container is ever
// opened, so Finish has nothing to flush.
func TestOrchestratorEmptyUniverseProducesNoContainers(t *testing.T) {
	reg := dexmodel.NewRegistry()
	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, looseContainerConfig(), disabledMinimizerConfig(), nil)

	seq, err := o.Finish()
	require.NoError(t, err)
	assert.Empty(t, seq.Containers)
}

// S2: a single class whose own references exceed the container's capacity
// can never be packed, and the driver reports it as a fatal oversize
// rather than looping forever trying to flush into a smaller container.
func TestOrchestratorOversizedSingleClassErrors(t *testing.T) {
	reg := dexmodel.NewRegistry()
	cls := reg.NewClass("Lhuge;")

	for i := 0; i < 5; i++ {
		cls.References = append(cls.References, dexmodel.Reference{Kind: dexmodel.MethodRef, Descriptor: strings.Repeat("m", i+1)})
	}

	cfg := looseContainerConfig()
	cfg.MethodRefsLimit = 2

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, cfg, disabledMinimizerConfig(), nil)

	_, _, _, err := o.EmitClass(cls, false, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, interdex.ErrOversizedClass)
}

// S3: a universe that exactly saturates one container's method-ref budget
// overflows cleanly into a second container rather than erroring.
func TestOrchestratorOverflowFlushesIntoFreshContainer(t *testing.T) {
	reg := dexmodel.NewRegistry()

	a := reg.NewClass("La;")
	a.References = []dexmodel.Reference{{Kind: dexmodel.MethodRef, Descriptor: "ma"}}

	b := reg.NewClass("Lb;")
	b.References = []dexmodel.Reference{{Kind: dexmodel.MethodRef, Descriptor: "mb"}}

	cfg := looseContainerConfig()
	cfg.MethodRefsLimit = 1
	cfg.EmitCanaries = false
	cfg.SortRemainingClasses = false

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, cfg, disabledMinimizerConfig(), nil)

	err := o.EmitRemainder([]*dexmodel.Class{a, b}, nil)
	require.NoError(t, err)

	seq, err := o.Finish()
	require.NoError(t, err)
	require.Len(t, seq.Containers, 2)
	assert.Equal(t, []*dexmodel.Class{a}, seq.Containers[0].Classes)
	assert.Equal(t, []*dexmodel.Class{b}, seq.Containers[1].Classes)
}

// S4: walking END_OF_COLDSTART_DEX markers flushes the coldstart container
// and clears the Coldstart flag once the last such marker has passed.
func TestOrchestratorMarkerWalkTogglesColdstart(t *testing.T) {
	reg := dexmodel.NewRegistry()
	main := reg.NewClass("Lmain;")
	a := reg.NewClass("La;")
	b := reg.NewClass("Lb;")

	order := "La;\nLDexEndMarker;\nLb;\n"
	loader := interdex.NewInterdexOrderLoader(reg, nil)

	loaded, err := loader.Load(strings.NewReader(order))
	require.NoError(t, err)

	cfg := looseContainerConfig()
	cfg.EmitCanaries = false

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, cfg, disabledMinimizerConfig(), nil)

	require.NoError(t, o.EmitPrimary([]*dexmodel.Class{main}, loaded))
	require.NoError(t, o.EmitPrefix(loaded, nil))

	seq, err := o.Finish()
	require.NoError(t, err)
	require.Len(t, seq.Containers, 3)

	assert.True(t, seq.Containers[0].Info.Primary)
	assert.Equal(t, []*dexmodel.Class{main}, seq.Containers[0].Classes)

	assert.True(t, seq.Containers[1].Info.Coldstart)
	assert.Equal(t, []*dexmodel.Class{a}, seq.Containers[1].Classes)

	assert.False(t, seq.Containers[2].Info.Coldstart)
	assert.Equal(t, []*dexmodel.Class{b}, seq.Containers[2].Classes)
}

// S5: given two classes that share a reference and a third that shares
// nothing, the minimizer-driven remainder phase packs the sharing pair
// into the same container ahead of the singleton once capacity forces a
// choice.
func TestOrchestratorMinimizerPrefersSharedReferences(t *testing.T) {
	reg := dexmodel.NewRegistry()

	shared := dexmodel.Reference{Kind: dexmodel.MethodRef, Descriptor: "shared"}
	lonely := dexmodel.Reference{Kind: dexmodel.MethodRef, Descriptor: "lonely"}

	a := reg.NewClass("La;")
	a.References = []dexmodel.Reference{shared}

	b := reg.NewClass("Lb;")
	b.References = []dexmodel.Reference{shared}

	c := reg.NewClass("Lc;")
	c.References = []dexmodel.Reference{lonely}

	cfg := looseContainerConfig()
	cfg.MethodRefsLimit = 1
	cfg.EmitCanaries = false
	cfg.SortRemainingClasses = false

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, cfg, enabledMinimizerConfig(), nil)

	require.NoError(t, o.EmitRemainder([]*dexmodel.Class{c, a, b}, nil))

	seq, err := o.Finish()
	require.NoError(t, err)
	require.Len(t, seq.Containers, 2)

	first := seq.Containers[0].Classes
	assert.ElementsMatch(t, []*dexmodel.Class{a, b}, first)
}

// S6: a scroll region opened but never closed is a structural violation,
// not a silently-accepted tail.
func TestOrchestratorUnterminatedScrollErrors(t *testing.T) {
	reg := dexmodel.NewRegistry()
	reg.NewClass("La;")

	order := "LScrollSetStart;\nLa;\n"
	loader := interdex.NewInterdexOrderLoader(reg, nil)

	loaded, err := loader.Load(strings.NewReader(order))
	require.NoError(t, err)

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, looseContainerConfig(), disabledMinimizerConfig(), nil)

	require.NoError(t, o.EmitPrimary(nil, loaded))

	err = o.EmitPrefix(loaded, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, interdex.ErrStructuralViolation))
}

func TestOrchestratorCanariesAreMintedPerContainer(t *testing.T) {
	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, looseContainerConfig(), disabledMinimizerConfig(), nil)

	require.NoError(t, o.EmitRemainder([]*dexmodel.Class{a}, nil))

	seq, err := o.Finish()
	require.NoError(t, err)
	require.Len(t, seq.Containers, 1)
	assert.Equal(t, "Lsecondary/dex00/Canary;", seq.Containers[0].CanaryName())

	names := make([]string, 0, len(seq.Containers[0].Classes))
	for _, cls := range seq.Containers[0].Classes {
		names = append(names, cls.Name)
	}

	assert.Contains(t, names, "Lsecondary/dex00/Canary;")
	assert.Contains(t, names, "La;")
}

// The primary container never gets a canary, even with canaries enabled:
// only non-primary containers need one to detect missing-dex bugs, per
// spec invariant 5.
func TestOrchestratorPrimaryContainerNeverGetsCanary(t *testing.T) {
	reg := dexmodel.NewRegistry()
	main := reg.NewClass("Lmain;")
	a := reg.NewClass("La;")

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, looseContainerConfig(), disabledMinimizerConfig(), nil)

	require.NoError(t, o.EmitPrimary([]*dexmodel.Class{main}, &interdex.LoadedOrder{}))
	require.NoError(t, o.EmitRemainder([]*dexmodel.Class{a}, nil))

	seq, err := o.Finish()
	require.NoError(t, err)
	require.Len(t, seq.Containers, 2)

	assert.True(t, seq.Containers[0].Info.Primary)
	assert.Equal(t, []*dexmodel.Class{main}, seq.Containers[0].Classes)

	assert.False(t, seq.Containers[1].Info.Primary)

	names := make([]string, 0, len(seq.Containers[1].Classes))
	for _, cls := range seq.Containers[1].Classes {
		names = append(names, cls.Name)
	}

	assert.Contains(t, names, "Lsecondary/dex01/Canary;")
}

// An empty primary set produces no primary container at all, matching S1's
// "zero containers if primary is empty" — a leftover empty flush would
// otherwise inject a canary-only container ahead of the real work.
func TestOrchestratorEmptyPrimaryFlushesNothing(t *testing.T) {
	reg := dexmodel.NewRegistry()
	a := reg.NewClass("La;")

	host := interdex.NewPluginHost()
	o := interdex.New(reg, host, looseContainerConfig(), disabledMinimizerConfig(), nil)

	require.NoError(t, o.EmitPrimary(nil, &interdex.LoadedOrder{}))
	require.NoError(t, o.EmitRemainder([]*dexmodel.Class{a}, nil))

	seq, err := o.Finish()
	require.NoError(t, err)
	require.Len(t, seq.Containers, 1)
	assert.False(t, seq.Containers[0].Info.Primary)
}
