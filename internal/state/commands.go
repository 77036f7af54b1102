package state

import (
	"fmt"
	"strings"
)

// Command identifiers stored in LoopState.NextCommand. They name CLI
// subcommands; nothing in this module dispatches on them.
const (
	CommandQualityCheck = "quality-check"
	CommandEnable       = "enable"
	CommandInit         = "init"
)

// SetupCommand returns the identifier of the setup command for phase.
func SetupCommand(phase int) string {
	return fmt.Sprintf("phase%d-setup", phase)
}

// ValidateCommand returns the identifier of the validate command for phase.
func ValidateCommand(phase int) string {
	return fmt.Sprintf("phase%d-validate", phase)
}

// NextAfterSetup is the command that follows a successful phase setup.
func NextAfterSetup(phase int) string {
	return ValidateCommand(phase)
}

// NextAfterValidate is the command that follows a passed phase gate:
// the next phase's setup, or the quality check after phase 3.
func NextAfterValidate(phase int) string {
	if phase >= 3 {
		return CommandQualityCheck
	}
	return SetupCommand(phase + 1)
}

// NextCommandFor derives a starting command from the project record. It is
// used when a loop record is created for a project that is already part-way
// through the methodology.
func NextCommandFor(p *ProjectState) string {
	if p.CurrentPhase <= 0 {
		return SetupCommand(1)
	}
	if p.HasCompleted(p.CurrentPhase) {
		return NextAfterValidate(p.CurrentPhase)
	}
	return SetupCommand(p.CurrentPhase)
}

// Invocation returns the ce-dps command line for a command identifier.
// Unknown identifiers are returned unchanged.
func Invocation(command string) string {
	var phase int
	switch {
	case command == CommandQualityCheck, command == CommandEnable, command == CommandInit:
		return "ce-dps " + command
	case strings.HasSuffix(command, "-setup"):
		if _, err := fmt.Sscanf(command, "phase%d-setup", &phase); err == nil {
			return fmt.Sprintf("ce-dps setup --phase %d", phase)
		}
	case strings.HasSuffix(command, "-validate"):
		if _, err := fmt.Sscanf(command, "phase%d-validate", &phase); err == nil {
			return fmt.Sprintf("ce-dps validate --phase %d", phase)
		}
	}
	return command
}
