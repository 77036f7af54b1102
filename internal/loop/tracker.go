// Package loop drives the autonomous sprint loop: it records the loop
// position, detects an interrupted driver and plans the resumption.
package loop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Cyonx818/ce-dps/internal/state"
)

// Loop positions recorded by the CLI commands.
const (
	PositionEnabled              = "skynet-enabled"
	PositionQualityCheckComplete = "quality-check-complete"
)

// SetupPosition is the position after phase setup finished.
func SetupPosition(phase int) string {
	return fmt.Sprintf("phase%d-setup-complete", phase)
}

// CompletePosition is the position after the phase gate passed.
func CompletePosition(phase int) string {
	return fmt.Sprintf("phase%d-complete", phase)
}

// SprintStartedPosition is the position at the start of a sprint.
func SprintStartedPosition(sprint int) string {
	return fmt.Sprintf("sprint-%d-started", sprint)
}

// Tracker records progress through the loop in the LoopState record.
type Tracker struct {
	Store      state.Store
	SprintsDir string
	Now        func() time.Time
}

// Advance overwrites the loop position and next command, refreshes
// last_execution, clears a pending recovery and appends one advance entry
// to the history.
//
// Re-applying the pair already stored is a no-op unless a recovery is
// pending, so a retried step never duplicates history.
func (t *Tracker) Advance(step, next string) error {
	if step == "" || next == "" {
		return fmt.Errorf("advance requires both a step and a next command")
	}

	loop, err := t.load()
	if err != nil {
		return err
	}
	if loop.LoopPosition == step && loop.NextCommand == next && !loop.AutoCompactRecovery {
		return nil
	}

	now := timestamp(t.Now)
	loop.Append(state.ActionAdvance, now, map[string]string{
		"from":         loop.LoopPosition,
		"step":         step,
		"next_command": next,
	})
	loop.LoopPosition = step
	loop.NextCommand = next
	loop.LastExecution = now
	loop.AutoCompactRecovery = false

	if err := t.Store.SaveLoop(loop); err != nil {
		return fmt.Errorf("record loop position: %w", err)
	}
	return nil
}

// NextSprint starts the next sprint: the sprint counter is incremented, the
// sprint directory created and the loop pointed back at phase 2 setup.
// It returns the new sprint number.
func (t *Tracker) NextSprint(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	loop, err := t.load()
	if err != nil {
		return 0, err
	}

	sprint := loop.CurrentSprint + 1
	if t.SprintsDir != "" {
		if _, err := state.EnsureSprintDir(t.SprintsDir, sprint); err != nil {
			return 0, err
		}
	}

	now := timestamp(t.Now)
	loop.Append(state.ActionSprintStarted, now, map[string]string{
		"from":   loop.LoopPosition,
		"sprint": strconv.Itoa(sprint),
	})
	loop.CurrentSprint = sprint
	loop.LoopPosition = SprintStartedPosition(sprint)
	loop.NextCommand = state.SetupCommand(2)
	loop.LastExecution = now
	loop.AutoCompactRecovery = false

	if err := t.Store.SaveLoop(loop); err != nil {
		return 0, fmt.Errorf("record sprint start: %w", err)
	}
	return sprint, nil
}

// Record appends an audit entry without moving the loop position.
func (t *Tracker) Record(action string, detail map[string]string) error {
	loop, err := t.load()
	if err != nil {
		return err
	}
	now := timestamp(t.Now)
	loop.Append(action, now, detail)
	loop.LastExecution = now
	if err := t.Store.SaveLoop(loop); err != nil {
		return fmt.Errorf("record %s: %w", action, err)
	}
	return nil
}

func (t *Tracker) load() (*state.LoopState, error) {
	loop, err := t.Store.LoadLoop()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoLoopState, err)
		}
		return nil, fmt.Errorf("load loop state: %w", err)
	}
	return loop, nil
}

func timestamp(now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}
