package loop

import (
	"errors"
	"fmt"

	"github.com/Cyonx818/ce-dps/internal/mode"
	"github.com/Cyonx818/ce-dps/internal/state"
)

// InterruptionStatus is the result of comparing the persisted loop flag with
// the live mode flag.
type InterruptionStatus int

const (
	// None means no loop was active; there is nothing to resume.
	None InterruptionStatus = iota
	// Interrupted means the loop was active but its driver lost the live flag.
	Interrupted
	// AlreadyRunning means the loop is active and the live flag is set.
	AlreadyRunning
)

func (s InterruptionStatus) String() string {
	switch s {
	case None:
		return "None"
	case Interrupted:
		return "Interrupted"
	case AlreadyRunning:
		return "AlreadyRunning"
	default:
		return fmt.Sprintf("InterruptionStatus(%d)", int(s))
	}
}

// DetectInterruption classifies the loop record against the live flag.
// A nil loop means the record does not exist.
func DetectInterruption(loop *state.LoopState, live bool) InterruptionStatus {
	if loop == nil || !loop.SkynetActive {
		return None
	}
	if live {
		return AlreadyRunning
	}
	return Interrupted
}

// Detector reads the loop record and the live flag and classifies them.
type Detector struct {
	Store state.Store
	Env   mode.Environment
}

// Detect returns the interruption status together with the loop record it
// was computed from (nil when no record exists).
func (d *Detector) Detect() (InterruptionStatus, *state.LoopState, error) {
	loop, err := d.Store.LoadLoop()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return None, nil, nil
		}
		return None, nil, fmt.Errorf("load loop state: %w", err)
	}
	return DetectInterruption(loop, d.Env.Active()), loop, nil
}
