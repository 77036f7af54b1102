// Package mode switches a project between supervised and autonomous
// operation and owns the live mode flag of the driving process.
package mode

import (
	"os"
	"strconv"
	"strings"
)

const (
	// DefaultModeVar is the environment variable carrying the live mode flag.
	DefaultModeVar = "SKYNET"
	// DefaultPhaseVar is the environment variable carrying the live phase.
	DefaultPhaseVar = "CE_DPS_PHASE"
)

// Environment is the live context of the driving process: the mode flag it
// runs under and the phase it is working on.
type Environment interface {
	Active() bool
	SetActive(active bool) error
	LivePhase() int
	SetPhase(phase int) error
}

// ParseFlag interprets the textual mode flag.
// "true", "1", "yes" (case-insensitive) return true; everything else,
// including an unset variable, returns false.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// ProcessEnvironment reads and writes the live flag through the process
// environment. Writes are visible to this process and its children only;
// the CLI prints the matching export line for the caller's shell.
type ProcessEnvironment struct {
	ModeVar  string
	PhaseVar string
}

// NewProcessEnvironment returns a ProcessEnvironment using modeVar, falling
// back to DefaultModeVar when empty.
func NewProcessEnvironment(modeVar string) *ProcessEnvironment {
	if modeVar == "" {
		modeVar = DefaultModeVar
	}
	return &ProcessEnvironment{ModeVar: modeVar, PhaseVar: DefaultPhaseVar}
}

func (e *ProcessEnvironment) Active() bool {
	return ParseFlag(os.Getenv(e.ModeVar))
}

func (e *ProcessEnvironment) SetActive(active bool) error {
	return os.Setenv(e.ModeVar, strconv.FormatBool(active))
}

// LivePhase returns the phase in PhaseVar, or 0 when it is unset or not a number.
func (e *ProcessEnvironment) LivePhase() int {
	phase, err := strconv.Atoi(strings.TrimSpace(os.Getenv(e.PhaseVar)))
	if err != nil {
		return 0
	}
	return phase
}

func (e *ProcessEnvironment) SetPhase(phase int) error {
	return os.Setenv(e.PhaseVar, strconv.Itoa(phase))
}

// MemoryEnvironment is an in-process Environment, used by hosts that embed
// the controller and by tests.
type MemoryEnvironment struct {
	Flag  bool
	Phase int
}

func (e *MemoryEnvironment) Active() bool {
	return e.Flag
}

func (e *MemoryEnvironment) SetActive(active bool) error {
	e.Flag = active
	return nil
}

func (e *MemoryEnvironment) LivePhase() int {
	return e.Phase
}

func (e *MemoryEnvironment) SetPhase(phase int) error {
	e.Phase = phase
	return nil
}
