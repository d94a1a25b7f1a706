package interdex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/interdex-project/interdex/internal/checkpoint"
	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/internal/observability"
	"github.com/interdex-project/interdex/pkg/alg/stats"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// RunInputs bundles everything one pack run needs beyond the config
// itself. Order is optional: nil means no prescribed prefix (everything
// goes through the remainder phase).
type RunInputs struct {
	Registry *dexmodel.Registry
	Universe []*dexmodel.Class // document order, from universe.Load
	Order    []byte            // raw prescribed-order text, or nil
	Plugins  *PluginHost
}

// RunResult is what a pack run hands back to its caller (the CLI command
// or the MCP tool): the finalized sequence plus whether it was served
// from the run cache.
type RunResult struct {
	Sequence *ContainerSequence
	CacheHit bool
	RunKey   string
	Stats    checkpoint.RunState
}

// Run drives one complete pack: load the prescribed order (if any), prune
// unreferenced coldstart classes (if configured), consult the run cache,
// and on a miss drive an Orchestrator through every emission phase. It is
// the single entry point both cmd/interdex and the MCP tool call into, so
// the CLI and the server expose identical semantics.
func Run(ctx context.Context, cfg *config.Config, in RunInputs, obs observability.Providers) (*RunResult, error) {
	tracer := obs.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("interdex")
	}

	ctx, span := tracer.Start(ctx, "interdex.pack.run")
	defer span.End()

	logger := obs.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var packMetrics *observability.PackMetrics
	if obs.Meter != nil {
		pm, err := observability.NewPackMetrics(obs.Meter)
		if err != nil {
			logger.Warn("pack metrics unavailable", "error", err)
		} else {
			packMetrics = pm
		}
	}

	tuning, err := ApplyRuntimeTuning(cfg.Runtime, in.Registry.Len())
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeValidation, "")
		return nil, fmt.Errorf("apply runtime tuning: %w", err)
	}
	defer tuning.Release()

	loaded, err := loadOrder(in.Registry, in.Order, logger)
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeValidation, "")
		return nil, fmt.Errorf("load prescribed order: %w", err)
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config for run key: %w", err)
	}

	runKey := RunKey(in.Registry, loaded, cfgJSON)

	stats := observability.PackStats{}

	var cache *RunCache
	if cfg.Checkpoint.Enabled && cfg.Runtime.CacheDir != "" {
		cache = NewRunCache(cfg.Runtime.CacheDir, runKey)

		if cfg.Checkpoint.ClearPrev {
			_ = cache.Clear()
		}

		seq, state, loadErr := cache.Load(runKey, in.Registry)
		if loadErr != nil {
			logger.Warn("run cache load failed, recomputing", "error", loadErr)
		} else if seq != nil {
			stats.RunCacheHits = 1
			packMetrics.RecordRun(ctx, stats)
			span.SetStatus(codes.Ok, "")

			result := &RunResult{Sequence: seq, CacheHit: true, RunKey: runKey}
			if state != nil {
				result.Stats = *state
			}

			return result, nil
		}

		stats.RunCacheMisses = 1
	}

	seq, runState, err := compute(in, loaded, cfg, logger)
	if err != nil {
		observability.RecordSpanError(span, err, observability.ErrTypeValidation, "")
		return nil, err
	}

	if cache != nil {
		if saveErr := cache.Save(runKey, seq, runState); saveErr != nil {
			logger.Warn("run cache save failed", "error", saveErr)
		}
	}

	logContainerSizeStats(logger, seq)

	stats.Classes = int64(runState.ClassesEmitted)
	stats.Containers = runState.ContainersEmitted
	packMetrics.RecordRun(ctx, stats)

	span.SetStatus(codes.Ok, "")

	return &RunResult{Sequence: seq, CacheHit: false, RunKey: runKey, Stats: runState}, nil
}

// logContainerSizeStats reports the class-count distribution across the
// finished sequence, useful for spotting a run skewed by a few oversized
// containers well before it shows up as a manifest-size regression.
func logContainerSizeStats(logger *slog.Logger, seq *ContainerSequence) {
	if len(seq.Containers) == 0 {
		return
	}

	sizes := make([]float64, len(seq.Containers))
	for i, c := range seq.Containers {
		sizes[i] = float64(len(c.Classes))
	}

	mean, stddev := stats.MeanStdDev(sizes)
	p95 := stats.Percentile(sizes, stats.PercentileP95)

	logger.Debug("container size distribution",
		"containers", len(seq.Containers), "mean_classes", mean, "stddev_classes", stddev, "p95_classes", p95)
}

func loadOrder(reg *dexmodel.Registry, raw []byte, logger *slog.Logger) (*LoadedOrder, error) {
	if len(raw) == 0 {
		return &LoadedOrder{}, nil
	}

	loader := NewInterdexOrderLoader(reg, logger)

	return loader.Load(bytes.NewReader(raw))
}

func compute(in RunInputs, loaded *LoadedOrder, cfg *config.Config, logger *slog.Logger) (*ContainerSequence, checkpoint.RunState, error) {
	plugins := in.Plugins
	if plugins == nil {
		plugins = NewPluginHost()
	}

	orch := New(in.Registry, plugins, cfg.Container, cfg.Minimizer, logger)

	primaryClasses := primarySetOf(in.Universe)

	if cfg.Container.NormalPrimaryDex && cfg.Container.KeepPrimaryOrder {
		loaded = prependPrimary(loaded, primaryClasses)
	}

	err := orch.EmitPrimary(primaryClasses, loaded)
	if err != nil {
		return nil, checkpoint.RunState{}, fmt.Errorf("emit primary: %w", err)
	}

	unreferenced := pruneIfConfigured(cfg, loaded)

	err = orch.EmitPrefix(loaded, unreferenced)
	if err != nil {
		return nil, checkpoint.RunState{}, fmt.Errorf("emit prefix: %w", err)
	}

	var relocator *Relocator
	if cfg.Relocator.Enabled {
		relocator = NewRelocator(in.Registry, cfg.Relocator)
	}

	err = orch.EmitRemainder(in.Universe, relocator)
	if err != nil {
		return nil, checkpoint.RunState{}, fmt.Errorf("emit remainder: %w", err)
	}

	err = orch.EmitLeftovers()
	if err != nil {
		return nil, checkpoint.RunState{}, fmt.Errorf("emit leftovers: %w", err)
	}

	seq, err := orch.Finish()
	if err != nil {
		return nil, checkpoint.RunState{}, fmt.Errorf("finish: %w", err)
	}

	state := checkpoint.RunState{
		ClassesTotal:      len(in.Universe),
		ClassesEmitted:    countEmitted(seq),
		ContainersEmitted: len(seq.Containers),
	}

	if len(seq.Containers) > 0 {
		last := seq.Containers[len(seq.Containers)-1]
		state.LastContainer = last.Ordinal

		if len(last.Classes) > 0 {
			state.LastClassName = last.Classes[len(last.Classes)-1].Name
		}
	}

	return seq, state, nil
}

func primarySetOf(universe []*dexmodel.Class) []*dexmodel.Class {
	var out []*dexmodel.Class

	for _, cls := range universe {
		if cls.Primary {
			out = append(out, cls)
		}
	}

	return out
}

// prependPrimary implements the "keep primary order" mode: when the
// primary container is treated as modifiable rather than pre-validated,
// its classes are folded into the interdex order ahead of everything else
// so EmitPrimary's no-op path still preserves their leading position.
func prependPrimary(loaded *LoadedOrder, primary []*dexmodel.Class) *LoadedOrder {
	if len(primary) == 0 {
		return loaded
	}

	prefix := make([]OrderEntry, 0, len(primary))
	for _, cls := range primary {
		prefix = append(prefix, OrderEntry{Class: cls})
	}

	return &LoadedOrder{Entries: append(prefix, loaded.Entries...)}
}

func pruneIfConfigured(cfg *config.Config, loaded *LoadedOrder) map[*dexmodel.Class]struct{} {
	if !cfg.Container.StaticPruneClasses {
		return nil
	}

	coldstart := make([]*dexmodel.Class, 0, len(loaded.Entries))
	for _, entry := range loaded.Entries {
		if entry.Class != nil {
			coldstart = append(coldstart, entry.Class)
		}
	}

	pruned, _ := PruneUnreferencedColdstart(coldstart)

	out := make(map[*dexmodel.Class]struct{}, len(pruned))
	for _, cls := range pruned {
		out[cls] = struct{}{}
	}

	return out
}

func countEmitted(seq *ContainerSequence) int {
	n := 0
	for _, c := range seq.Containers {
		n += len(c.Classes)
	}

	return n
}
