package loop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyonx818/ce-dps/internal/mode"
	"github.com/Cyonx818/ce-dps/internal/state"
)

func TestDetectInterruption(t *testing.T) {
	tests := []struct {
		name string
		loop *state.LoopState
		live bool
		want InterruptionStatus
	}{
		{name: "inactive, live unset", loop: &state.LoopState{SkynetActive: false}, live: false, want: None},
		{name: "inactive, live set", loop: &state.LoopState{SkynetActive: false}, live: true, want: None},
		{name: "active, live unset", loop: &state.LoopState{SkynetActive: true}, live: false, want: Interrupted},
		{name: "active, live set", loop: &state.LoopState{SkynetActive: true}, live: true, want: AlreadyRunning},
		{name: "no loop, live unset", loop: nil, live: false, want: None},
		{name: "no loop, live set", loop: nil, live: true, want: None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectInterruption(tt.loop, tt.live))
		})
	}
}

func TestInterruptionStatus_String(t *testing.T) {
	assert.Equal(t, "None", None.String())
	assert.Equal(t, "Interrupted", Interrupted.String())
	assert.Equal(t, "AlreadyRunning", AlreadyRunning.String())
	assert.Equal(t, "InterruptionStatus(7)", InterruptionStatus(7).String())
}

func TestDetector_Detect(t *testing.T) {
	store := state.NewFileStore(t.TempDir())
	env := &mode.MemoryEnvironment{}
	d := &Detector{Store: store, Env: env}

	status, loop, err := d.Detect()
	require.NoError(t, err)
	assert.Equal(t, None, status)
	assert.Nil(t, loop)

	require.NoError(t, store.SaveLoop(&state.LoopState{SkynetActive: true, CurrentSprint: 1, NextCommand: "phase1-setup"}))

	status, loop, err = d.Detect()
	require.NoError(t, err)
	assert.Equal(t, Interrupted, status)
	require.NotNil(t, loop)

	env.Flag = true
	status, _, err = d.Detect()
	require.NoError(t, err)
	assert.Equal(t, AlreadyRunning, status)
}
