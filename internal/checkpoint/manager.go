package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MetadataVersion is the current run-cache metadata format version.
const MetadataVersion = 1

// Sentinel errors for run-cache validation.
var (
	// ErrRunKeyMismatch indicates the cached entry was produced by different
	// inputs (universe, config, or loaded order) than the current run.
	ErrRunKeyMismatch = errors.New("run key mismatch")
	// ErrComponentMismatch indicates the set of cached components (which
	// parts of a run were persisted) does not match what the caller expects
	// to restore.
	ErrComponentMismatch = errors.New("component mismatch")
)

// DefaultDir returns the default run-cache directory (~/.interdex/cache).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".interdex", "cache")
}

// RunHash computes a short, stable hash of a run key (typically a content
// hash of the class universe, config, and loaded order) for use as a cache
// directory name.
func RunHash(runKey string) string {
	h := sha256.Sum256([]byte(runKey))

	return hex.EncodeToString(h[:8]) // first 8 bytes = 16 hex chars.
}

// Default retention values.
const (
	DefaultMaxAge  = 7 * 24 * time.Hour // 7 days.
	DefaultMaxSize = 1 << 30            // 1GB.
)

// Directory permissions for cache entries.
const dirPerm = 0o750

// Manager coordinates a content-addressed run-cache directory on disk: one
// subdirectory per run hash, holding a JSON metadata file plus whatever
// Checkpointable components were asked to persist (e.g. a compressed
// ContainerSequence snapshot).
type Manager struct {
	BaseDir string
	RunHash string
	MaxAge  time.Duration
	MaxSize int64
}

// NewManager creates a new run-cache manager rooted at baseDir, scoped to
// the entry named by runHash (see RunHash).
func NewManager(baseDir, runHash string) *Manager {
	return &Manager{
		BaseDir: baseDir,
		RunHash: runHash,
		MaxAge:  DefaultMaxAge,
		MaxSize: DefaultMaxSize,
	}
}

// CacheDir returns the directory holding this run's cached entry.
func (m *Manager) CacheDir() string {
	return filepath.Join(m.BaseDir, m.RunHash)
}

// MetadataPath returns the path to the metadata file.
func (m *Manager) MetadataPath() string {
	return filepath.Join(m.CacheDir(), "run.json")
}

// Exists returns true if a cached entry exists for this run hash.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.MetadataPath())

	return err == nil
}

// Clear removes the cached entry for this run hash.
func (m *Manager) Clear() error {
	cacheDir := m.CacheDir()

	_, statErr := os.Stat(cacheDir)
	if os.IsNotExist(statErr) {
		return nil
	}

	err := os.RemoveAll(cacheDir)
	if err != nil {
		return fmt.Errorf("remove cache dir: %w", err)
	}

	return nil
}

// Save persists every Checkpointable component plus run metadata.
func (m *Manager) Save(
	checkpointables []Checkpointable,
	state RunState,
	runKey string,
	componentNames []string,
) error {
	cacheDir := m.CacheDir()

	err := os.MkdirAll(cacheDir, dirPerm)
	if err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	checksums := make(map[string]string)

	for i, cp := range checkpointables {
		componentDir := filepath.Join(cacheDir, fmt.Sprintf("component_%d", i))

		mkdirErr := os.MkdirAll(componentDir, dirPerm)
		if mkdirErr != nil {
			return fmt.Errorf("create component dir: %w", mkdirErr)
		}

		saveErr := cp.SaveCheckpoint(componentDir)
		if saveErr != nil {
			return fmt.Errorf("save component %d: %w", i, saveErr)
		}
	}

	meta := Metadata{
		Version:    MetadataVersion,
		RunKey:     runKey,
		RunHash:    m.RunHash,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
		Components: componentNames,
		RunState:   state,
		Checksums:  checksums,
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	writeErr := os.WriteFile(m.MetadataPath(), metaData, 0o600)
	if writeErr != nil {
		return fmt.Errorf("write metadata: %w", writeErr)
	}

	return nil
}

// LoadMetadata loads the cached entry's metadata.
func (m *Manager) LoadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(m.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata

	unmarshalErr := json.Unmarshal(data, &meta)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", unmarshalErr)
	}

	return &meta, nil
}

// Load restores every Checkpointable component in order and returns the
// run state recorded at Save time.
func (m *Manager) Load(checkpointables []Checkpointable) (*RunState, error) {
	meta, err := m.LoadMetadata()
	if err != nil {
		return nil, err
	}

	cacheDir := m.CacheDir()

	for i, cp := range checkpointables {
		componentDir := filepath.Join(cacheDir, fmt.Sprintf("component_%d", i))

		loadErr := cp.LoadCheckpoint(componentDir)
		if loadErr != nil {
			return nil, fmt.Errorf("load component %d: %w", i, loadErr)
		}
	}

	return &meta.RunState, nil
}

// Validate checks whether the cached entry was produced by runKey and
// componentNames, returning ErrRunKeyMismatch or ErrComponentMismatch if
// not — a stale cache entry under the same hash (e.g. from a truncated
// sha256 collision) must never be served silently.
func (m *Manager) Validate(runKey string, componentNames []string) error {
	meta, err := m.LoadMetadata()
	if err != nil {
		return err
	}

	if meta.RunKey != runKey {
		return fmt.Errorf("%w: cache has %q, got %q", ErrRunKeyMismatch, meta.RunKey, runKey)
	}

	if !stringSlicesEqual(meta.Components, componentNames) {
		return fmt.Errorf("%w: cache has %v, got %v", ErrComponentMismatch, meta.Components, componentNames)
	}

	return nil
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
