package interdex

import (
	"bufio"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/interdex-project/interdex/pkg/alg/lru"
	"github.com/interdex-project/interdex/pkg/dexmodel"
	"github.com/interdex-project/interdex/pkg/safeconv"
)

// resolveCacheBudget bounds the order loader's name-resolution cache.
// Order files rarely reference more classes than this; a loader for a
// larger universe simply falls back to Registry.Lookup past the cap.
const resolveCacheBudget = 1 << 20

// Marker identifies a recognized section marker in a prescribed-order
// input. Markers are retained in the loaded sequence even though they do
// not resolve to a class; the driver interprets them during the prefix
// walk.
type Marker int

// The recognized marker kinds, matching the textual prefixes of the
// prescribed-order input format.
const (
	MarkerNone Marker = iota
	MarkerEndOfColdstartDex
	MarkerScrollStart
	MarkerScrollEnd
	MarkerBackgroundStart
	MarkerBackgroundEnd
)

const (
	endOfColdstartPrefix = "LDexEndMarker"
	scrollStartPrefix    = "LScrollSetStart"
	scrollEndPrefix      = "LScrollSetEnd"
	bgStartPrefix        = "LBackgroundSetStart"
	bgEndPrefix          = "LBackgroundSetEnd"
)

// OrderEntry is one element of a loaded prescribed order: either a marker
// (Class is nil) or a resolved class reference (Marker is MarkerNone).
type OrderEntry struct {
	Marker        Marker
	SubgroupIndex int // valid only for MarkerEndOfColdstartDex
	Class         *dexmodel.Class
}

// LoadedOrder is the structured result of parsing a prescribed-order
// input: class names and markers resolved against a class universe.
type LoadedOrder struct {
	Entries []OrderEntry
}

// InterdexOrderLoader parses a flat, textual prescribed order into a
// LoadedOrder, resolving class-name entries against a Registry and
// deferring interdex-subgroup-tagged classes to their matching
// END_OF_COLDSTART_DEX marker.
type InterdexOrderLoader struct {
	reg    *dexmodel.Registry
	logger *slog.Logger

	// resolved caches Registry.Lookup hits, with a Bloom pre-filter that
	// short-circuits the cache probe for names never cached; every cache
	// miss still falls through to Registry.Lookup.
	resolved *lru.Cache[string, *dexmodel.Class]
}

// NewInterdexOrderLoader returns a loader resolving names against reg. A
// nil logger uses slog's default.
func NewInterdexOrderLoader(reg *dexmodel.Registry, logger *slog.Logger) *InterdexOrderLoader {
	if logger == nil {
		logger = slog.Default()
	}

	keyToBytes := func(name string) []byte { return []byte(name) }

	resolved := lru.New(
		lru.WithMaxEntries[string, *dexmodel.Class](resolveCacheBudget),
		lru.WithBloomFilter[string, *dexmodel.Class](keyToBytes, safeconv.MustIntToUint(max(reg.Len(), 1))),
	)

	for _, cls := range reg.All() {
		resolved.Put(cls.Name, cls)
	}

	return &InterdexOrderLoader{reg: reg, logger: logger, resolved: resolved}
}

// resolve looks up name, preferring the Bloom-prefiltered cache over a
// direct Registry probe.
func (l *InterdexOrderLoader) resolve(name string) (*dexmodel.Class, bool) {
	if cls, ok := l.resolved.Get(name); ok {
		return cls, true
	}

	cls, ok := l.reg.Lookup(name)
	if ok {
		l.resolved.Put(name, cls)
	}

	return cls, ok
}

// Load reads one textual entry per line from r and resolves it into a
// LoadedOrder. Entries that are neither a resolvable class name nor a
// recognized marker are dropped and logged at debug level, matching the
// historical silent-drop behavior of this format.
func (l *InterdexOrderLoader) Load(r io.Reader) (*LoadedOrder, error) {
	pending := make(map[int][]*dexmodel.Class)

	var entries []OrderEntry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		marker, subgroup, isMarker := classifyMarker(line)
		if isMarker {
			entries = append(entries, OrderEntry{Marker: marker, SubgroupIndex: subgroup})

			if marker == MarkerEndOfColdstartDex {
				entries = appendPendingGroup(entries, pending, subgroup)
			}

			continue
		}

		cls, ok := l.resolve(line)
		if !ok {
			l.logger.Debug("interdex order entry not found", "entry", line)

			continue
		}

		if cls.InterdexSubgroup != dexmodel.NoSubgroup {
			pending[cls.InterdexSubgroup] = append(pending[cls.InterdexSubgroup], cls)

			continue
		}

		entries = append(entries, OrderEntry{Class: cls})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &LoadedOrder{Entries: entries}, nil
}

func appendPendingGroup(entries []OrderEntry, pending map[int][]*dexmodel.Class, subgroup int) []OrderEntry {
	classes, ok := pending[subgroup]
	if !ok {
		return entries
	}

	for _, cls := range classes {
		entries = append(entries, OrderEntry{Class: cls})
	}

	delete(pending, subgroup)

	return entries
}

// classifyMarker recognizes the five textual marker prefixes. A numeric
// suffix on the coldstart end marker selects the interdex subgroup whose
// buffered classes should be spliced in immediately after it.
func classifyMarker(line string) (marker Marker, subgroup int, isMarker bool) {
	switch {
	case strings.HasPrefix(line, endOfColdstartPrefix):
		idx := parseNumericSuffix(line, endOfColdstartPrefix)

		return MarkerEndOfColdstartDex, idx, true
	case strings.HasPrefix(line, scrollStartPrefix):
		return MarkerScrollStart, 0, true
	case strings.HasPrefix(line, scrollEndPrefix):
		return MarkerScrollEnd, 0, true
	case strings.HasPrefix(line, bgStartPrefix):
		return MarkerBackgroundStart, 0, true
	case strings.HasPrefix(line, bgEndPrefix):
		return MarkerBackgroundEnd, 0, true
	default:
		return MarkerNone, 0, false
	}
}

func parseNumericSuffix(line, prefix string) int {
	suffix := strings.TrimPrefix(line, prefix)
	suffix = strings.TrimSuffix(suffix, ";")
	suffix = strings.TrimSpace(suffix)

	if suffix == "" {
		return 0
	}

	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0
	}

	return n
}

// SubgroupIndices returns the distinct non-default interdex-subgroup
// indices present among reg's classes, sorted ascending — useful for
// diagnostics when an order file never references a given group's marker.
func SubgroupIndices(reg *dexmodel.Registry) []int {
	seen := make(map[int]struct{})

	for _, cls := range reg.All() {
		if cls.InterdexSubgroup != dexmodel.NoSubgroup {
			seen[cls.InterdexSubgroup] = struct{}{}
		}
	}

	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}

	sort.Ints(out)

	return out
}
