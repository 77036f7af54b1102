package mode

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyonx818/ce-dps/internal/state"
)

// failingStore wraps a FileStore and fails paired writes on demand.
type failingStore struct {
	*state.FileStore
	failSave bool
}

func (f *failingStore) SaveBoth(p *state.ProjectState, l *state.LoopState) error {
	if f.failSave {
		return fmt.Errorf("write ce-dps-state.json: %w", state.ErrStoreUnavailable)
	}
	return f.FileStore.SaveBoth(p, l)
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
}

func newTestController(t *testing.T) (*Controller, *failingStore, *MemoryEnvironment) {
	t.Helper()
	store := &failingStore{FileStore: state.NewFileStore(t.TempDir())}
	require.NoError(t, store.SaveProject(state.NewProjectState("billing", "2026-10-19T08:00:00Z")))

	env := &MemoryEnvironment{}
	c := NewController(store, env)
	c.Now = fixedClock
	c.NewSessionID = func() string { return "session-1" }
	return c, store, env
}

func TestSetMode_EnableCreatesLoop(t *testing.T) {
	c, store, env := newTestController(t)

	tr, err := c.Enable()
	require.NoError(t, err)

	assert.True(t, tr.LoopCreated)
	assert.True(t, tr.Changed())
	assert.Equal(t, state.ModeSupervised, tr.From)
	assert.Equal(t, state.ModeAutonomous, tr.To)
	assert.True(t, env.Active())

	project, err := store.LoadProject()
	require.NoError(t, err)
	assert.Equal(t, state.ModeAutonomous, project.SkynetMode)
	assert.False(t, project.HumanApprovalRequired)
	assert.True(t, project.QualityGatesEnabled)

	loop, err := store.LoadLoop()
	require.NoError(t, err)
	assert.True(t, loop.SkynetActive)
	assert.Equal(t, "session-1", loop.SessionID)
	assert.Equal(t, 1, loop.CurrentSprint)
	assert.Equal(t, "phase1-setup", loop.NextCommand)
	assert.Equal(t, "2026-10-19T09:00:00Z", loop.LastExecution)
	require.Len(t, loop.LoopHistory, 1)
	assert.Equal(t, state.ActionEnabled, loop.LoopHistory[0].Action)
}

func TestSetMode_DisableKeepsLoopAndAudits(t *testing.T) {
	c, store, env := newTestController(t)
	_, err := c.Enable()
	require.NoError(t, err)

	tr, err := c.Disable()
	require.NoError(t, err)
	assert.False(t, tr.LoopCreated)
	assert.False(t, env.Active())

	project, err := store.LoadProject()
	require.NoError(t, err)
	assert.Equal(t, state.ModeSupervised, project.SkynetMode)
	assert.True(t, project.HumanApprovalRequired)

	loop, err := store.LoadLoop()
	require.NoError(t, err)
	assert.False(t, loop.SkynetActive)
	require.Len(t, loop.LoopHistory, 2)
	assert.Equal(t, state.ActionDisabled, loop.LoopHistory[1].Action)
}

func TestSetMode_DisableWithoutLoop(t *testing.T) {
	c, store, _ := newTestController(t)

	tr, err := c.Disable()
	require.NoError(t, err)
	assert.Nil(t, tr.Loop)
	assert.False(t, tr.Changed())

	_, err = store.LoadLoop()
	assert.ErrorIs(t, err, state.ErrNotFound, "disable must not create a loop record")
}

// TestSetMode_QualityGatesUntouched checks every mode sequence leaves
// quality_gates_enabled at true.
func TestSetMode_QualityGatesUntouched(t *testing.T) {
	sequences := [][]bool{
		{true},
		{false},
		{true, false},
		{true, true},
		{false, true, false, true},
	}

	for _, seq := range sequences {
		t.Run(fmt.Sprint(seq), func(t *testing.T) {
			c, store, _ := newTestController(t)
			for _, active := range seq {
				_, err := c.SetMode(active)
				require.NoError(t, err)

				project, err := store.LoadProject()
				require.NoError(t, err)
				assert.True(t, project.QualityGatesEnabled)

				if loop, err := store.LoadLoop(); err == nil && loop.SkynetActive {
					assert.False(t, project.HumanApprovalRequired, "active loop requires approval off")
				}
			}
		})
	}
}

func TestSetMode_StoreFailureRollsBackLiveFlag(t *testing.T) {
	c, store, env := newTestController(t)
	store.failSave = true

	_, err := c.Enable()
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrStoreUnavailable)
	assert.False(t, env.Active(), "live flag must be rolled back")

	project, err := store.LoadProject()
	require.NoError(t, err)
	assert.Equal(t, state.ModeSupervised, project.SkynetMode)

	_, err = store.LoadLoop()
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestSetMode_MissingProject(t *testing.T) {
	env := &MemoryEnvironment{}
	c := NewController(state.NewFileStore(t.TempDir()), env)

	_, err := c.Enable()
	assert.ErrorIs(t, err, state.ErrNotFound)
	assert.False(t, env.Active())
}

func TestSetMode_ResumesFromProjectPhase(t *testing.T) {
	c, store, _ := newTestController(t)

	project, err := store.LoadProject()
	require.NoError(t, err)
	project.MarkCompleted(1, "2026-10-19T08:30:00Z")
	project.CurrentPhase = 2
	require.NoError(t, store.SaveProject(project))

	tr, err := c.Enable()
	require.NoError(t, err)
	assert.Equal(t, "phase2-setup", tr.Loop.NextCommand)
}
