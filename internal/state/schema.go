package state

import (
	"slices"
	"strconv"
)

// SchemaVersion is written into every record produced by this package.
const SchemaVersion = 1

// Mode is the persisted operating mode of a project. It serialises as the
// strings "true" (autonomous) and "false" (supervised).
type Mode string

const (
	ModeAutonomous Mode = "true"
	ModeSupervised Mode = "false"
)

// ModeFor maps the autonomous flag to its Mode.
func ModeFor(autonomous bool) Mode {
	if autonomous {
		return ModeAutonomous
	}
	return ModeSupervised
}

// Autonomous reports whether m is ModeAutonomous.
func (m Mode) Autonomous() bool {
	return m == ModeAutonomous
}

// ProjectState is the per-project phase record.
// Written to <state-dir>/ce-dps-state.json.
type ProjectState struct {
	SchemaVersion         int               `json:"schema_version" yaml:"schema_version"`
	Revision              int64             `json:"revision" yaml:"revision"`
	ProjectInitialized    bool              `json:"project_initialized" yaml:"project_initialized"`
	ProjectName           string            `json:"project_name" yaml:"project_name"`
	CurrentPhase          int               `json:"current_phase" yaml:"current_phase"`
	PhasesCompleted       []int             `json:"phases_completed" yaml:"phases_completed"`
	PhaseCompletedAt      map[string]string `json:"phase_completed_at,omitempty" yaml:"phase_completed_at,omitempty"`
	QualityGatesEnabled   bool              `json:"quality_gates_enabled" yaml:"quality_gates_enabled"`
	HumanApprovalRequired bool              `json:"human_approval_required" yaml:"human_approval_required"`
	SkynetMode            Mode              `json:"skynet_mode" yaml:"skynet_mode"`
	CreatedAt             string            `json:"created_at" yaml:"created_at"`
	LastUpdated           string            `json:"last_updated" yaml:"last_updated"`
}

// NewProjectState returns the record written by first-time initialisation:
// phase 0, supervised mode, quality gates on.
func NewProjectState(name, now string) *ProjectState {
	return &ProjectState{
		SchemaVersion:         SchemaVersion,
		ProjectInitialized:    true,
		ProjectName:           name,
		CurrentPhase:          0,
		PhasesCompleted:       []int{},
		QualityGatesEnabled:   true,
		HumanApprovalRequired: true,
		SkynetMode:            ModeSupervised,
		CreatedAt:             now,
		LastUpdated:           now,
	}
}

// HasCompleted reports whether phase is recorded in PhasesCompleted.
func (p *ProjectState) HasCompleted(phase int) bool {
	return slices.Contains(p.PhasesCompleted, phase)
}

// MarkCompleted appends phase to PhasesCompleted unless already present and
// records the completion time of the first completion. Entries are never
// removed.
func (p *ProjectState) MarkCompleted(phase int, now string) {
	if p.HasCompleted(phase) {
		return
	}
	p.PhasesCompleted = append(p.PhasesCompleted, phase)
	if p.PhaseCompletedAt == nil {
		p.PhaseCompletedAt = make(map[string]string)
	}
	p.PhaseCompletedAt[phaseKey(phase)] = now
}

func phaseKey(phase int) string {
	return "phase_" + strconv.Itoa(phase)
}

// LoopState is the autonomous loop record. It exists only once autonomous
// mode has been enabled at least once.
// Written to <state-dir>/skynet-loop-state.json.
type LoopState struct {
	SchemaVersion       int            `json:"schema_version" yaml:"schema_version"`
	Revision            int64          `json:"revision" yaml:"revision"`
	SessionID           string         `json:"session_id" yaml:"session_id"`
	SkynetActive        bool           `json:"skynet_active" yaml:"skynet_active"`
	LoopPosition        string         `json:"loop_position" yaml:"loop_position"`
	CurrentSprint       int            `json:"current_sprint" yaml:"current_sprint"`
	NextCommand         string         `json:"next_command" yaml:"next_command"`
	LastExecution       string         `json:"last_execution" yaml:"last_execution"`
	AutoCompactRecovery bool           `json:"auto_compact_recovery" yaml:"auto_compact_recovery"`
	LoopHistory         []HistoryEntry `json:"loop_history" yaml:"loop_history"`
}

// HistoryEntry is one audit record in LoopState.LoopHistory.
type HistoryEntry struct {
	Action    string            `json:"action" yaml:"action"`
	Timestamp string            `json:"timestamp" yaml:"timestamp"`
	Detail    map[string]string `json:"detail" yaml:"detail"`
}

// Append adds an entry to the end of the loop history.
func (l *LoopState) Append(action, now string, detail map[string]string) {
	if detail == nil {
		detail = map[string]string{}
	}
	l.LoopHistory = append(l.LoopHistory, HistoryEntry{
		Action:    action,
		Timestamp: now,
		Detail:    detail,
	})
}

// Recent returns up to n of the most recent history entries, oldest first.
func (l *LoopState) Recent(n int) []HistoryEntry {
	if n <= 0 || len(l.LoopHistory) == 0 {
		return nil
	}
	if n > len(l.LoopHistory) {
		n = len(l.LoopHistory)
	}
	return l.LoopHistory[len(l.LoopHistory)-n:]
}

// History actions
const (
	ActionEnabled       = "skynet_enabled"
	ActionDisabled      = "skynet_disabled"
	ActionAdvance       = "advance"
	ActionRecovery      = "recovery"
	ActionSprintStarted = "sprint_started"
	ActionPhasePassed   = "phase_validated"
)
