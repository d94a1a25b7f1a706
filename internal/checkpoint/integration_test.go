package checkpoint_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interdex-project/interdex/internal/checkpoint"
)

const testRunKey = "universe:abcd1234;config:efgh5678;order:ijkl9012"

// mockComponent simulates a pack-run component that can be checkpointed,
// e.g. a partially built ContainerSequence or minimizer histogram.
type mockComponent struct {
	name       string
	counter    int
	processLog []int // Records which class indices were emitted.
}

func (m *mockComponent) SaveCheckpoint(dir string) error {
	data := make([]byte, 0, len(m.processLog))
	for _, v := range m.processLog {
		data = append(data, byte(v))
	}

	err := os.WriteFile(filepath.Join(dir, m.name+".bin"), data, 0o600)
	if err != nil {
		return fmt.Errorf("writing component checkpoint %s: %w", m.name, err)
	}

	return nil
}

func (m *mockComponent) LoadCheckpoint(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, m.name+".bin"))
	if err != nil {
		return fmt.Errorf("reading component checkpoint %s: %w", m.name, err)
	}

	m.processLog = make([]int, len(data))
	for i, v := range data {
		m.processLog[i] = int(v)
	}

	m.counter = len(m.processLog)

	return nil
}

func (m *mockComponent) CheckpointSize() int64 {
	return int64(len(m.processLog))
}

func (m *mockComponent) Emit(classIndex int) {
	m.processLog = append(m.processLog, classIndex)
	m.counter++
}

// TestCheckpoint_CacheHitRestoresComponents verifies that a cached run can
// be fully restored into fresh component instances.
func TestCheckpoint_CacheHitRestoresComponents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runKey := testRunKey
	runHash := checkpoint.RunHash(runKey)

	component1 := &mockComponent{name: "sequence"}

	for i := range 20 {
		component1.Emit(i)
	}

	mgr := checkpoint.NewManager(dir, runHash)
	state := checkpoint.RunState{
		ClassesTotal:      20,
		ClassesEmitted:    20,
		ContainersEmitted: 2,
		LastContainer:     1,
		LastClassName:     "Lfoo/Bar;",
	}

	checkpointables := []checkpoint.Checkpointable{component1}
	err := mgr.Save(checkpointables, state, runKey, []string{"sequence"})
	require.NoError(t, err)

	require.True(t, mgr.Exists())

	component2 := &mockComponent{name: "sequence"}

	err = mgr.Validate(runKey, []string{"sequence"})
	require.NoError(t, err)

	restoredCheckpointables := []checkpoint.Checkpointable{component2}
	loadedState, err := mgr.Load(restoredCheckpointables)
	require.NoError(t, err)

	assert.Len(t, component2.processLog, 20)
	assert.Equal(t, 20, component2.counter)
	assert.Equal(t, 1, loadedState.LastContainer)
	assert.Equal(t, 20, loadedState.ClassesEmitted)

	for i := range 20 {
		assert.Equal(t, i, component2.processLog[i], "class %d mismatch", i)
	}
}

// TestCheckpoint_ValidateRejectsMismatchedRunKey verifies that validation
// fails when the run key doesn't match (the universe or config changed).
func TestCheckpoint_ValidateRejectsMismatchedRunKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runKey := testRunKey
	runHash := checkpoint.RunHash(runKey)

	mgr := checkpoint.NewManager(dir, runHash)
	state := checkpoint.RunState{ClassesTotal: 100}

	err := mgr.Save(nil, state, runKey, []string{"sequence"})
	require.NoError(t, err)

	err = mgr.Validate("universe:different", []string{"sequence"})
	require.Error(t, err)
	require.ErrorIs(t, err, checkpoint.ErrRunKeyMismatch)
}

// TestCheckpoint_ValidateRejectsMismatchedComponents verifies that
// validation fails when the persisted component set doesn't match.
func TestCheckpoint_ValidateRejectsMismatchedComponents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runKey := testRunKey
	runHash := checkpoint.RunHash(runKey)

	mgr := checkpoint.NewManager(dir, runHash)
	state := checkpoint.RunState{ClassesTotal: 100}

	err := mgr.Save(nil, state, runKey, []string{"sequence"})
	require.NoError(t, err)

	err = mgr.Validate(runKey, []string{"histogram"})
	require.Error(t, err)
	require.ErrorIs(t, err, checkpoint.ErrComponentMismatch)
}

// TestCheckpoint_ClearRemovesEntry verifies that Clear removes a cached
// entry so a subsequent run recomputes rather than serving stale data.
func TestCheckpoint_ClearRemovesEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runHash := checkpoint.RunHash(testRunKey)

	mgr := checkpoint.NewManager(dir, runHash)
	state := checkpoint.RunState{ClassesTotal: 100}

	err := mgr.Save(nil, state, testRunKey, []string{"sequence"})
	require.NoError(t, err)
	require.True(t, mgr.Exists())

	err = mgr.Clear()
	require.NoError(t, err)
	require.False(t, mgr.Exists())
}

// TestCheckpoint_MultipleComponents verifies save/load with more than one
// checkpointable component (e.g. the container sequence and the minimizer
// frequency histogram persisted side by side).
func TestCheckpoint_MultipleComponents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runKey := testRunKey
	runHash := checkpoint.RunHash(runKey)

	component1 := &mockComponent{name: "sequence"}
	component2 := &mockComponent{name: "histogram"}

	for i := range 5 {
		component1.Emit(i)
		component2.Emit(i * 10)
	}

	mgr := checkpoint.NewManager(dir, runHash)
	state := checkpoint.RunState{
		ClassesTotal:      10,
		ClassesEmitted:    5,
		ContainersEmitted: 1,
	}

	checkpointables := []checkpoint.Checkpointable{component1, component2}
	err := mgr.Save(checkpointables, state, runKey, []string{"sequence", "histogram"})
	require.NoError(t, err)

	restored1 := &mockComponent{name: "sequence"}
	restored2 := &mockComponent{name: "histogram"}

	restoredCheckpointables := []checkpoint.Checkpointable{restored1, restored2}
	_, err = mgr.Load(restoredCheckpointables)
	require.NoError(t, err)

	assert.Equal(t, component1.processLog, restored1.processLog)
	assert.Equal(t, component2.processLog, restored2.processLog)
}
