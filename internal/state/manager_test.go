package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLoop() *LoopState {
	return &LoopState{
		SchemaVersion: SchemaVersion,
		SessionID:     "6f1c2b8e-0d55-4c1a-9d1e-2f6f1f0b7c11",
		SkynetActive:  true,
		LoopPosition:  "phase3-validate-complete",
		CurrentSprint: 2,
		NextCommand:   "quality-check",
		LastExecution: "2026-10-19T10:15:00Z",
		LoopHistory: []HistoryEntry{
			{Action: ActionEnabled, Timestamp: "2026-10-19T09:00:00Z", Detail: map[string]string{"sprint": "1"}},
			{Action: ActionAdvance, Timestamp: "2026-10-19T09:30:00Z", Detail: map[string]string{"step": "phase2-complete", "next": "phase3-setup"}},
			{Action: ActionRecovery, Timestamp: "2026-10-19T10:00:00Z", Detail: map[string]string{}},
			{Action: ActionAdvance, Timestamp: "2026-10-19T10:15:00Z", Detail: map[string]string{"step": "phase3-validate-complete", "next": "quality-check"}},
		},
	}
}

// TestSaveLoop_RoundTrip validates that every field, including history order,
// survives a write and a read.
func TestSaveLoop_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	want := sampleLoop()

	require.NoError(t, store.SaveLoop(want))
	assert.Equal(t, int64(1), want.Revision, "save should bump the revision")

	got, err := store.LoadLoop()
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loop state mismatch (-want +got):\n%s", diff)
	}
}

// TestSaveProject_RoundTrip validates the project record round trip.
func TestSaveProject_RoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())
	want := NewProjectState("billing", "2026-10-19T09:00:00Z")
	want.MarkCompleted(1, "2026-10-19T09:10:00Z")
	want.CurrentPhase = 2

	require.NoError(t, store.SaveProject(want))

	got, err := store.LoadProject()
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("project state mismatch (-want +got):\n%s", diff)
	}
}

// TestSaveProject_FileFormat checks the on-disk shape and field names.
func TestSaveProject_FileFormat(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	p := NewProjectState("billing", "2026-10-19T09:00:00Z")
	require.NoError(t, store.SaveProject(p))

	content, err := os.ReadFile(filepath.Join(dir, ProjectFileName))
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(content, &raw))

	assert.Equal(t, "false", raw["skynet_mode"], "mode should serialise as a string")
	assert.Equal(t, true, raw["quality_gates_enabled"])
	assert.Equal(t, true, raw["human_approval_required"])
	assert.Equal(t, float64(0), raw["current_phase"])
	assert.Contains(t, string(content), "    \"project_initialized\":", "Should use 4-space indentation")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should be left behind")
}

func TestLoad_Missing(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.LoadProject()
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.LoadLoop()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LoopFileName), []byte("{not json"), 0644))

	_, err := NewFileStore(dir).LoadLoop()
	assert.ErrorIs(t, err, ErrCorrupt)
}

// TestSave_Conflict simulates two writers that loaded the same revision.
func TestSave_Conflict(t *testing.T) {
	dir := t.TempDir()
	first := NewFileStore(dir)
	second := NewFileStore(dir)

	require.NoError(t, first.SaveLoop(sampleLoop()))

	a, err := first.LoadLoop()
	require.NoError(t, err)
	b, err := second.LoadLoop()
	require.NoError(t, err)

	a.NextCommand = "phase2-setup"
	require.NoError(t, first.SaveLoop(a))

	b.NextCommand = "phase3-setup"
	err = second.SaveLoop(b)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, int64(1), b.Revision, "failed save must not bump the revision")

	got, err := first.LoadLoop()
	require.NoError(t, err)
	assert.Equal(t, "phase2-setup", got.NextCommand, "first writer's update must survive")
}

func TestSave_ConflictOnVanishedRecord(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	l := sampleLoop()
	require.NoError(t, store.SaveLoop(l))
	require.NoError(t, store.DeleteLoop())

	err := store.SaveLoop(l)
	assert.ErrorIs(t, err, ErrConflict)
}

// TestSave_Unavailable points the store at a path that cannot be a directory.
func TestSave_Unavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	store := NewFileStore(filepath.Join(blocker, "state"))
	p := NewProjectState("billing", "2026-10-19T09:00:00Z")

	err := store.SaveProject(p)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, int64(0), p.Revision)
}

func TestSaveBoth(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	p := NewProjectState("billing", "2026-10-19T09:00:00Z")
	l := sampleLoop()

	require.NoError(t, store.SaveBoth(p, l))

	gotP, err := store.LoadProject()
	require.NoError(t, err)
	gotL, err := store.LoadLoop()
	require.NoError(t, err)
	assert.Equal(t, int64(1), gotP.Revision)
	assert.Equal(t, int64(1), gotL.Revision)
}

func TestSaveBoth_NilLoop(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)

	require.NoError(t, store.SaveBoth(NewProjectState("billing", "2026-10-19T09:00:00Z"), nil))

	_, err := store.LoadLoop()
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestSaveBoth_ConflictWritesNothing checks that a stale loop record aborts
// the paired write before the project file changes.
func TestSaveBoth_ConflictWritesNothing(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	p := NewProjectState("billing", "2026-10-19T09:00:00Z")
	require.NoError(t, store.SaveBoth(p, sampleLoop()))

	before, err := os.ReadFile(filepath.Join(dir, ProjectFileName))
	require.NoError(t, err)

	stale := sampleLoop() // revision 0, stored revision is 1
	p.SkynetMode = ModeAutonomous
	err = store.SaveBoth(p, stale)
	assert.ErrorIs(t, err, ErrConflict)

	after, err := os.ReadFile(filepath.Join(dir, ProjectFileName))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.Equal(t, int64(1), p.Revision)
}

func TestDeleteLoop_Missing(t *testing.T) {
	assert.NoError(t, NewFileStore(t.TempDir()).DeleteLoop())
}
