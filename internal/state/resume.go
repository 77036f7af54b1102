package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// SprintDir returns the directory holding the artifacts of the given sprint,
// e.g. docs/sprints/sprint-001.
func SprintDir(sprintsDir string, sprint int) string {
	return filepath.Join(sprintsDir, fmt.Sprintf("sprint-%03d", sprint))
}

// EnsureSprintDir creates the sprint directory if it is missing and returns
// its path. A missing directory is never an error on its own.
func EnsureSprintDir(sprintsDir string, sprint int) (string, error) {
	if sprint < 1 {
		return "", fmt.Errorf("invalid sprint number %d", sprint)
	}
	dir := SprintDir(sprintsDir, sprint)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create sprint dir: %w", err)
	}
	return dir, nil
}

// ValidateLoop checks that a loaded loop record is usable for resumption:
// a sprint number of at least 1 and a next command to hand back.
func ValidateLoop(l *LoopState) error {
	if l.CurrentSprint < 1 {
		return fmt.Errorf("loop state has invalid sprint %d: %w", l.CurrentSprint, ErrCorrupt)
	}
	if l.NextCommand == "" {
		return fmt.Errorf("loop state has no next command: %w", ErrCorrupt)
	}
	return nil
}
