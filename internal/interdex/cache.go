package interdex

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/interdex-project/interdex/internal/checkpoint"
	"github.com/interdex-project/interdex/pkg/dexmodel"
)

// ErrCacheClassNotFound marks a cached container sequence as stale against
// the current universe: a cached entry names a class the freshly-loaded
// registry no longer has. Run keys are supposed to prevent this, but a
// truncated sha256 collision or a hand-edited cache directory can still
// produce it, and serving a sequence with silently dropped classes would
// be worse than a cache miss.
var ErrCacheClassNotFound = errors.New("cached container references unknown class")

// containerSnapshot is the wire form of a FinalizedContainer: class names
// only, not full Class graphs. Classes carry Super/Interfaces pointers that
// form a shared object graph; marshalling that graph directly would
// duplicate most of the universe per container and, on load, mint fresh
// Class pointers that break identity with the Registry the rest of the
// orchestrator depends on. Resolving names against the Registry on load
// keeps pointer identity intact.
type containerSnapshot struct {
	Ordinal    int      `json:"ordinal"`
	ClassNames []string `json:"class_names"`
	Info       DexInfo  `json:"info"`
}

type sequenceSnapshot struct {
	Containers []containerSnapshot `json:"containers"`
}

// RunCache memoizes a complete ContainerSequence for a run, keyed by a
// content hash of its inputs (universe, loaded order, config). The plugin
// set is not part of the key. Packing has no partial-progress resume, so what's cached is
// always a finished run: a hit serves the whole sequence, never a prefix.
type RunCache struct {
	mgr *checkpoint.Manager
}

// NewRunCache creates a run cache rooted at baseDir, scoped to runKey.
func NewRunCache(baseDir, runKey string) *RunCache {
	return &RunCache{mgr: checkpoint.NewManager(baseDir, checkpoint.RunHash(runKey))}
}

// RunKey builds the content-addressing key for a run from its inputs. Two
// runs with identical universe, loaded order, and config hash to the same
// key; the registered plugins are not hashed.
func RunKey(reg *dexmodel.Registry, loadedOrder *LoadedOrder, cfgJSON []byte) string {
	h := sha256.New()

	classes := reg.All()
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	for _, cls := range classes {
		fmt.Fprintf(h, "%s|%v|%t|%d\n", cls.Name, cls.References, cls.Renameable, cls.InterdexSubgroup)
	}

	if loadedOrder != nil {
		for _, entry := range loadedOrder.Entries {
			className := ""
			if entry.Class != nil {
				className = entry.Class.Name
			}

			fmt.Fprintf(h, "order:%d|%d|%s\n", entry.Marker, entry.SubgroupIndex, className)
		}
	}

	h.Write(cfgJSON)

	return hex.EncodeToString(h.Sum(nil))
}

// Exists reports whether a cached entry exists for this run key.
func (c *RunCache) Exists() bool {
	return c.mgr.Exists()
}

// Clear removes the cached entry.
func (c *RunCache) Clear() error {
	return c.mgr.Clear()
}

// Save persists seq under this cache's run key.
func (c *RunCache) Save(runKey string, seq *ContainerSequence, state checkpoint.RunState) error {
	snap := toSnapshot(seq)

	persister := checkpoint.NewPersister[sequenceSnapshot]("containers", checkpoint.NewLZ4JSONCodec())

	cp := &snapshotCheckpoint{persister: persister, snapshot: snap}

	err := c.mgr.Save([]checkpoint.Checkpointable{cp}, state, runKey, []string{"containers"})
	if err != nil {
		return fmt.Errorf("save run cache: %w", err)
	}

	return nil
}

// Load restores a ContainerSequence from the cached entry, resolving class
// names against reg. Returns (nil, nil, nil) if no entry exists for this
// run key.
func (c *RunCache) Load(runKey string, reg *dexmodel.Registry) (*ContainerSequence, *checkpoint.RunState, error) {
	if !c.mgr.Exists() {
		return nil, nil, nil
	}

	validateErr := c.mgr.Validate(runKey, []string{"containers"})
	if validateErr != nil {
		return nil, nil, fmt.Errorf("validate run cache: %w", validateErr)
	}

	persister := checkpoint.NewPersister[sequenceSnapshot]("containers", checkpoint.NewLZ4JSONCodec())
	cp := &snapshotCheckpoint{persister: persister}

	state, err := c.mgr.Load([]checkpoint.Checkpointable{cp})
	if err != nil {
		return nil, nil, fmt.Errorf("load run cache: %w", err)
	}

	seq, err := fromSnapshot(cp.snapshot, reg)
	if err != nil {
		return nil, nil, err
	}

	return seq, state, nil
}

// snapshotCheckpoint adapts a sequenceSnapshot to checkpoint.Checkpointable.
type snapshotCheckpoint struct {
	persister *checkpoint.Persister[sequenceSnapshot]
	snapshot  sequenceSnapshot
}

func (s *snapshotCheckpoint) SaveCheckpoint(dir string) error {
	return s.persister.Save(dir, func() *sequenceSnapshot { return &s.snapshot })
}

func (s *snapshotCheckpoint) LoadCheckpoint(dir string) error {
	return s.persister.Load(dir, func(snap *sequenceSnapshot) { s.snapshot = *snap })
}

func (s *snapshotCheckpoint) CheckpointSize() int64 {
	raw, err := json.Marshal(s.snapshot)
	if err != nil {
		return 0
	}

	return int64(len(raw))
}

func toSnapshot(seq *ContainerSequence) sequenceSnapshot {
	snap := sequenceSnapshot{Containers: make([]containerSnapshot, 0, len(seq.Containers))}

	for _, c := range seq.Containers {
		names := make([]string, 0, len(c.Classes))
		for _, cls := range c.Classes {
			names = append(names, cls.Name)
		}

		snap.Containers = append(snap.Containers, containerSnapshot{
			Ordinal:    c.Ordinal,
			ClassNames: names,
			Info:       c.Info,
		})
	}

	return snap
}

func fromSnapshot(snap sequenceSnapshot, reg *dexmodel.Registry) (*ContainerSequence, error) {
	seq := &ContainerSequence{Containers: make([]*FinalizedContainer, 0, len(snap.Containers))}

	for _, c := range snap.Containers {
		classes := make([]*dexmodel.Class, 0, len(c.ClassNames))

		for _, name := range c.ClassNames {
			cls, ok := reg.Lookup(name)
			if !ok && name == fmt.Sprintf(dexmodel.CanaryClassFormat, c.Ordinal) {
				cls, ok = reg.Canary(c.Ordinal), true
			}

			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrCacheClassNotFound, name)
			}

			classes = append(classes, cls)
		}

		seq.Containers = append(seq.Containers, &FinalizedContainer{
			Ordinal: c.Ordinal,
			Classes: classes,
			Info:    c.Info,
		})
	}

	return seq, nil
}
