package loop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Cyonx818/ce-dps/internal/mode"
	"github.com/Cyonx818/ce-dps/internal/state"
	"github.com/Cyonx818/ce-dps/internal/vcs"
)

var (
	// ErrNoLoopState means there is no active loop to resume.
	ErrNoLoopState = errors.New("no active loop to resume")
	// ErrAlreadyActive means the loop is already running under a live flag.
	// Recover returns it together with the current plan.
	ErrAlreadyActive = errors.New("loop is already active")
	// ErrInconsistentProjectState means the project record is missing or
	// unreadable while a loop record exists.
	ErrInconsistentProjectState = errors.New("project state is missing or inconsistent")
)

// IsAlternateOutcome reports whether err is one of the expected non-failure
// outcomes of a resume attempt.
func IsAlternateOutcome(err error) bool {
	return errors.Is(err, ErrNoLoopState) || errors.Is(err, ErrAlreadyActive)
}

// summaryEntries is how many history entries the resume summary shows.
const summaryEntries = 5

// ResumePlan is what a resumed driver needs to pick the loop up again.
type ResumePlan struct {
	NextCommand   string   `json:"next_command" yaml:"next_command"`
	LoopPosition  string   `json:"loop_position" yaml:"loop_position"`
	CurrentSprint int      `json:"current_sprint" yaml:"current_sprint"`
	CurrentPhase  int      `json:"current_phase" yaml:"current_phase"`
	Summary       string   `json:"summary" yaml:"summary"`
	Warnings      []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NextAction returns the plan's command as a NextAction.
func (p *ResumePlan) NextAction() NextAction {
	return NextAction{Command: p.NextCommand, Reason: "resume at " + p.LoopPosition}
}

// Recovery resumes an interrupted loop. It never runs the next command; it
// only hands it back.
type Recovery struct {
	Store      state.Store
	Env        mode.Environment
	Tree       vcs.WorkingTree
	SprintsDir string
	Now        func() time.Time
}

// Recover restores an interrupted loop:
//
//  1. checks the project record, creates the sprint directory if absent and
//     warns about uncommitted changes
//  2. sets the live flag and live phase
//  3. builds a summary of recent history
//  4. marks the loop record as recovered and saves it
//
// If the loop is already running, the current plan is returned with
// ErrAlreadyActive and nothing is changed. If the save fails the live flag is
// restored and no plan is returned.
func (r *Recovery) Recover(ctx context.Context) (*ResumePlan, error) {
	project, err := r.Store.LoadProject()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) || errors.Is(err, state.ErrCorrupt) {
			return nil, fmt.Errorf("%w: %w", ErrInconsistentProjectState, err)
		}
		return nil, fmt.Errorf("load project state: %w", err)
	}

	loop, err := r.Store.LoadLoop()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrNoLoopState, err)
		}
		return nil, fmt.Errorf("load loop state: %w", err)
	}

	switch DetectInterruption(loop, r.Env.Active()) {
	case None:
		return nil, ErrNoLoopState
	case AlreadyRunning:
		return r.plan(ctx, project, loop), ErrAlreadyActive
	}

	if err := state.ValidateLoop(loop); err != nil {
		return nil, err
	}

	// Consistency
	if r.SprintsDir != "" {
		if _, err := state.EnsureSprintDir(r.SprintsDir, loop.CurrentSprint); err != nil {
			return nil, err
		}
	}

	// Summary and working-tree warnings
	plan := r.plan(ctx, project, loop)

	// Live environment
	previous, previousPhase := r.Env.Active(), r.Env.LivePhase()
	rollback := func() {
		_ = r.Env.SetPhase(previousPhase)
		_ = r.Env.SetActive(previous)
	}
	if err := r.Env.SetActive(true); err != nil {
		return nil, fmt.Errorf("restore live mode: %w", err)
	}
	if err := r.Env.SetPhase(project.CurrentPhase); err != nil {
		rollback()
		return nil, fmt.Errorf("restore live phase: %w", err)
	}

	// State update
	now := timestamp(r.Now)
	loop.AutoCompactRecovery = true
	loop.LastExecution = now
	loop.Append(state.ActionRecovery, now, map[string]string{
		"loop_position": loop.LoopPosition,
		"next_command":  loop.NextCommand,
		"sprint":        strconv.Itoa(loop.CurrentSprint),
	})
	if err := r.Store.SaveLoop(loop); err != nil {
		rollback()
		return nil, fmt.Errorf("record recovery: %w", err)
	}

	return plan, nil
}

func (r *Recovery) plan(ctx context.Context, project *state.ProjectState, loop *state.LoopState) *ResumePlan {
	plan := &ResumePlan{
		NextCommand:   loop.NextCommand,
		LoopPosition:  loop.LoopPosition,
		CurrentSprint: loop.CurrentSprint,
		CurrentPhase:  project.CurrentPhase,
		Summary:       summarize(project, loop),
	}

	if r.Tree != nil {
		dirty, err := r.Tree.Dirty(ctx)
		switch {
		case errors.Is(err, vcs.ErrNotRepository):
			// nothing to inspect
		case err != nil:
			plan.Warnings = append(plan.Warnings, fmt.Sprintf("could not inspect working tree: %v", err))
		case dirty:
			plan.Warnings = append(plan.Warnings, "working tree has uncommitted changes")
		}
	}
	return plan
}

// summarize renders the phase, the sprint and the most recent history
// entries. Recovery entries are left out so repeated resumes agree.
func summarize(project *state.ProjectState, loop *state.LoopState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "phase %d, sprint %d, position %s, next %s",
		project.CurrentPhase, loop.CurrentSprint, loop.LoopPosition, loop.NextCommand)

	var recent []state.HistoryEntry
	for i := len(loop.LoopHistory) - 1; i >= 0 && len(recent) < summaryEntries; i-- {
		if loop.LoopHistory[i].Action != state.ActionRecovery {
			recent = append(recent, loop.LoopHistory[i])
		}
	}
	if len(recent) == 0 {
		b.WriteString("\nno recent history available")
		return b.String()
	}
	for i := len(recent) - 1; i >= 0; i-- {
		e := recent[i]
		fmt.Fprintf(&b, "\n  %s %s", e.Timestamp, e.Action)
		if step := e.Detail["step"]; step != "" {
			fmt.Fprintf(&b, " -> %s", step)
		}
	}
	return b.String()
}
