package interdex_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/internal/interdex"
	"github.com/interdex-project/interdex/internal/observability"
	"github.com/interdex-project/interdex/internal/universe"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

func baseConfig() *config.Config {
	return &config.Config{
		Container: looseContainerConfig(),
		Minimizer: disabledMinimizerConfig(),
	}
}

func loadSmallUniverse(t *testing.T) (*dexmodel.Registry, []*dexmodel.Class) {
	t.Helper()

	doc := `[
		{"name": "LMain;", "primary": true, "references": [{"kind": "method", "descriptor": "LMain;.run:()V"}]},
		{"name": "LHelper;", "references": [{"kind": "method", "descriptor": "LHelper;.help:()V"}]},
		{"name": "LOther;", "references": [{"kind": "type", "descriptor": "LOther;"}]}
	]`

	reg, ordered, err := universe.Load(strings.NewReader(doc))
	require.NoError(t, err)

	return reg, ordered
}

func TestRun_ProducesPrimaryAndRemainderContainers(t *testing.T) {
	reg, ordered := loadSmallUniverse(t)

	result, err := interdex.Run(context.Background(), baseConfig(), interdex.RunInputs{
		Registry: reg,
		Universe: ordered,
	}, observability.Providers{})
	require.NoError(t, err)
	require.NotNil(t, result.Sequence)

	require.NotEmpty(t, result.Sequence.Containers)
	assert.True(t, result.Sequence.Containers[0].Info.Primary)

	main, _ := reg.Lookup("LMain;")
	assert.Contains(t, result.Sequence.Containers[0].Classes, main)
	assert.False(t, result.CacheHit)
}

// An empty universe must flush to an empty sequence through the real
// Run/compute/EmitPrimary path, not merely a bare Finish() call: an empty
// primary still has to pass through the primary-flush machinery cleanly.
func TestRun_EmptyUniverseProducesNoContainers(t *testing.T) {
	reg := dexmodel.NewRegistry()

	result, err := interdex.Run(context.Background(), baseConfig(), interdex.RunInputs{
		Registry: reg,
		Universe: nil,
	}, observability.Providers{})
	require.NoError(t, err)
	require.NotNil(t, result.Sequence)
	assert.Empty(t, result.Sequence.Containers)
}

func TestRun_RunCacheHitOnSecondCall(t *testing.T) {
	reg, ordered := loadSmallUniverse(t)

	cfg := baseConfig()
	cfg.Checkpoint.Enabled = true
	cfg.Runtime.CacheDir = t.TempDir()

	in := interdex.RunInputs{Registry: reg, Universe: ordered}

	first, err := interdex.Run(context.Background(), cfg, in, observability.Providers{})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	reg2, ordered2 := loadSmallUniverse(t)
	second, err := interdex.Run(context.Background(), cfg, interdex.RunInputs{Registry: reg2, Universe: ordered2}, observability.Providers{})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.RunKey, second.RunKey)
	assert.Len(t, second.Sequence.Containers, len(first.Sequence.Containers))
}

func TestRun_ClearPrevForcesRecompute(t *testing.T) {
	reg, ordered := loadSmallUniverse(t)

	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	cfg := baseConfig()
	cfg.Checkpoint.Enabled = true
	cfg.Checkpoint.ClearPrev = true
	cfg.Runtime.CacheDir = dir

	in := interdex.RunInputs{Registry: reg, Universe: ordered}

	_, err := interdex.Run(context.Background(), cfg, in, observability.Providers{})
	require.NoError(t, err)

	reg2, ordered2 := loadSmallUniverse(t)
	second, err := interdex.Run(context.Background(), cfg, interdex.RunInputs{Registry: reg2, Universe: ordered2}, observability.Providers{})
	require.NoError(t, err)
	assert.False(t, second.CacheHit, "clear_prev should force recomputation every run")
}
