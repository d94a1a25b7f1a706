package interdex

import (
	"bytes"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/interdex-project/interdex/internal/config"
	"github.com/interdex-project/interdex/pkg/safeconv"
	"github.com/interdex-project/interdex/pkg/units"
)

// defaultMemoryBudgetRatio is the fraction of system memory used as the
// default budget when RuntimeConfig.MemoryBudget is unset.
const defaultMemoryBudgetRatio = 50

// percentDivisor converts a percentage ratio to a fraction.
const percentDivisor = 100

// defaultMemoryBudgetCap bounds the auto-detected budget (2 GiB) so a
// packer run on a large build host doesn't size its ballast off headroom
// it will never actually use.
const defaultMemoryBudgetCap = int64(2 * units.GiB)

// largeUniverseThreshold is the class-count above which the universe is
// considered large enough to warrant a bigger GC percent by default —
// the minimizer's per-kind reference sets otherwise churn the GC hard on
// builds with hundreds of thousands of classes.
const largeUniverseThreshold = 50000

// largeUniverseGCPercent is applied when RuntimeConfig.GOGC is unset and
// the universe exceeds largeUniverseThreshold.
const largeUniverseGCPercent = 400

const (
	procMemInfoPath  = "/proc/meminfo"
	memTotalPrefix   = "MemTotal:"
	minMemInfoFields = 2
)

// RuntimeTuning holds the resolved GC percent and ballast allocation for a
// single orchestrator run, plus the func that restores the prior GOGC
// setting when Release is called.
type RuntimeTuning struct {
	GCPercent int
	Ballast   []byte

	restore func()
}

// ApplyRuntimeTuning sizes GOGC and an optional memory ballast off
// cfg.Runtime and the class-universe size, then applies them to the Go
// runtime. Call Release when the run completes to restore the prior GOGC.
//
// A larger universe pushes more live reference data onto the heap during
// EmitRemainder's repricing passes; left at GOGC's default of 100 this
// can double the packer's wall-clock time to GC churn alone.
func ApplyRuntimeTuning(cfg config.RuntimeConfig, universeSize int) (*RuntimeTuning, error) {
	gcPercent := cfg.GOGC
	if gcPercent == 0 {
		gcPercent = config.DefaultGOGC
		if universeSize > largeUniverseThreshold {
			gcPercent = largeUniverseGCPercent
		}
	}

	ballastBytes, err := resolveBallastBytes(cfg)
	if err != nil {
		return nil, err
	}

	prevGCPercent := debug.SetGCPercent(gcPercent)

	tuning := &RuntimeTuning{
		GCPercent: gcPercent,
		Ballast:   applyBallast(ballastBytes),
		restore: func() {
			debug.SetGCPercent(prevGCPercent)
		},
	}

	return tuning, nil
}

// Release restores the GOGC setting that was active before ApplyRuntimeTuning.
func (t *RuntimeTuning) Release() {
	if t == nil || t.restore == nil {
		return
	}

	t.restore()
}

func resolveBallastBytes(cfg config.RuntimeConfig) (int64, error) {
	if cfg.MemoryBudget == "" {
		return defaultBallastFromSystemMemory(), nil
	}

	parsed, err := humanize.ParseBytes(cfg.MemoryBudget)
	if err != nil {
		return 0, fmt.Errorf("parse runtime.memory_budget %q: %w", cfg.MemoryBudget, err)
	}

	bytesBudget, ok := safeconv.Uint64ToInt64(parsed)
	if !ok {
		return 0, fmt.Errorf("runtime.memory_budget %q overflows int64", cfg.MemoryBudget)
	}

	return bytesBudget, nil
}

func defaultBallastFromSystemMemory() int64 {
	total := detectTotalMemoryBytes()
	if total == 0 {
		return 0
	}

	budget, ok := safeconv.Uint64ToInt64(total * defaultMemoryBudgetRatio / percentDivisor)
	if !ok {
		return defaultMemoryBudgetCap
	}

	return min(budget/2, defaultMemoryBudgetCap)
}

func applyBallast(size int64) []byte {
	if size <= 0 {
		return nil
	}

	return make([]byte, size)
}

func detectTotalMemoryBytes() uint64 {
	if runtime.GOOS != "linux" {
		return 0
	}

	memInfoBytes, err := os.ReadFile(procMemInfoPath)
	if err != nil {
		return 0
	}

	return parseMemTotalBytes(memInfoBytes)
}

func parseMemTotalBytes(memInfo []byte) uint64 {
	for line := range bytes.SplitSeq(memInfo, []byte{'\n'}) {
		if !bytes.HasPrefix(line, []byte(memTotalPrefix)) {
			continue
		}

		fields := bytes.Fields(line)
		if len(fields) < minMemInfoFields {
			return 0
		}

		memTotal, err := strconv.ParseUint(string(fields[1]), 10, 64)
		if err != nil {
			return 0
		}

		// /proc/meminfo reports MemTotal in kB.
		return memTotal * units.KiB
	}

	return 0
}
