package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Cyonx818/ce-dps/internal/banner"
	"github.com/Cyonx818/ce-dps/internal/exitcode"
	"github.com/Cyonx818/ce-dps/internal/logging"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/mode"
	"github.com/Cyonx818/ce-dps/internal/state"
	"github.com/Cyonx818/ce-dps/internal/vcs"
)

const phase1Doc = `# Phase 1: Strategic Planning
## Business Requirements
## Architecture Analysis
## Technology Evaluation
## Implementation Roadmap
## Risk Assessment
## Human Review
### Architecture Approval
%s
### Roadmap Approval
%s
`

const phase2Doc = `# Phase 2: Sprint Planning
## Selected Features
## Implementation Plan
## Complexity Assessment
## Dependencies
## Human Review
### Sprint Scope Approval
### Implementation Approach Approval
`

const phase3Doc = `# Phase 3: Implementation
## Implementation Summary
## Test Results
## Quality Gate Results
## Security Validation
## Business Validation
`

const passingReport = `{
  "quality_gates": {
    "all_passed": true,
    "coverage_percentage": "97.5%",
    "coverage_target": 95,
    "gates": [{"name": "Unit Tests", "status": "Passed"}]
  }
}`

const failingReport = `{
  "quality_gates": {
    "all_passed": false,
    "coverage_percentage": 97.5,
    "gates": [{"name": "Clippy", "status": "Failed"}]
  }
}`

// harness runs the root command in a temporary project directory with an
// in-memory live flag and a clean working tree.
type harness struct {
	t     *testing.T
	dir   string
	env   *mode.MemoryEnvironment
	app   *App
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)

	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = noColor
		logging.SetOutput(os.Stderr)
		logging.SetVerbose(false)
		banner.SetOutput(os.Stdout)
	})

	h := &harness{
		t:     t,
		dir:   dir,
		env:   &mode.MemoryEnvironment{},
		clock: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
	h.app = &App{
		Env:          h.env,
		Tree:         vcs.StaticTree{},
		Now:          func() time.Time { return h.clock },
		NewSessionID: func() string { return "session-1" },
	}
	return h
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()
	root := NewRootCommand(h.app, "test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	stdout, stderr, err := h.run(args...)
	require.NoError(h.t, err, "ce-dps %s\nstdout:\n%s\nstderr:\n%s", strings.Join(args, " "), stdout, stderr)
	return stdout
}

func (h *harness) write(rel, content string) {
	h.t.Helper()
	path := filepath.Join(h.dir, rel)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0644))
}

func (h *harness) project() *state.ProjectState {
	h.t.Helper()
	p, err := state.NewFileStore(filepath.Join(h.dir, "docs")).LoadProject()
	require.NoError(h.t, err)
	return p
}

func (h *harness) loop() *state.LoopState {
	h.t.Helper()
	l, err := state.NewFileStore(filepath.Join(h.dir, "docs")).LoadLoop()
	require.NoError(h.t, err)
	return l
}

func TestInit(t *testing.T) {
	h := newHarness(t)

	stdout := h.mustRun("init", "--name", "billing")
	assert.Contains(t, stdout, "Next: phase1-setup (ce-dps setup --phase 1)")

	p := h.project()
	assert.Equal(t, "billing", p.ProjectName)
	assert.Equal(t, 0, p.CurrentPhase)
	assert.Equal(t, state.ModeSupervised, p.SkynetMode)
	assert.DirExists(t, filepath.Join(h.dir, "docs", "phases"))

	_, _, err := h.run("init")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInit_DefaultsToDirectoryName(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	assert.Equal(t, filepath.Base(h.dir), h.project().ProjectName)
}

func TestCommands_MissingProject(t *testing.T) {
	for _, args := range [][]string{
		{"status"},
		{"setup", "--phase", "1"},
		{"enable"},
		{"quality-check"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			h := newHarness(t)
			_, _, err := h.run(args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, state.ErrNotFound)
			assert.Equal(t, exitcode.Fatal, ExitCode(err))
			assert.Contains(t, Remediation(err), "ce-dps init")
		})
	}
}

func TestSetup_Ordering(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")

	_, _, err := h.run("setup", "--phase", "2")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, err.Error(), "phase 2 requires phase 1 to be completed")
	assert.Contains(t, Remediation(err), "ce-dps validate --phase 1")

	_, _, err = h.run("setup", "--phase", "4")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))

	stdout := h.mustRun("setup", "--phase", "1")
	assert.Contains(t, stdout, "Next: phase1-validate")
	assert.Equal(t, 1, h.project().CurrentPhase)
	assert.Equal(t, 1, h.env.Phase)

	h.write("docs/phases/phase-1-planning.md", fmt.Sprintf(phase1Doc, "✅ Approved", "✅ Approved"))
	h.mustRun("validate", "--phase", "1")
	assert.Equal(t, 2, h.project().CurrentPhase)

	_, _, err = h.run("setup", "--phase", "1")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, err.Error(), "phase 1 is behind the current phase 2")
	assert.Contains(t, Remediation(err), "ce-dps setup --phase 2")
	assert.Equal(t, 2, h.project().CurrentPhase)
	assert.Equal(t, 1, h.env.Phase)
}

func TestValidate_SupervisedGate(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	h.mustRun("setup", "--phase", "1")

	h.write("docs/phases/phase-1-planning.md", fmt.Sprintf(phase1Doc, "✅ Approved", "- Reviewer: pending"))
	stdout, _, err := h.run("validate", "--phase", "1")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, stdout, "Phase 1 gate FAILED")
	assert.Contains(t, stdout, "Next: phase1-validate")
	assert.Contains(t, Remediation(err), "Roadmap Approval")
	assert.Empty(t, h.project().PhasesCompleted)

	h.write("docs/phases/phase-1-planning.md", fmt.Sprintf(phase1Doc, "✅ Approved", "✅ Approved"))
	stdout = h.mustRun("validate", "--phase", "1")
	assert.Contains(t, stdout, "Phase 1 gate PASSED")
	assert.Contains(t, stdout, "Next: phase2-setup")
	assert.Equal(t, []int{1}, h.project().PhasesCompleted)
}

func TestValidate_ExplicitDocument(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	h.write("elsewhere.md", fmt.Sprintf(phase1Doc, "✅ Approved", "✅ Approved"))

	h.mustRun("validate", "--phase", "1", "--doc", "elsewhere.md")
	assert.True(t, h.project().HasCompleted(1))
}

// TestScenario_AutonomousSprint drives one full sprint, loses the live flag
// and resumes.
func TestScenario_AutonomousSprint(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init", "--name", "billing")

	stdout := h.mustRun("enable")
	assert.Contains(t, stdout, "SKYNET MODE ENABLED")
	assert.Contains(t, stdout, "Next: phase1-setup")
	assert.True(t, h.env.Active())

	h.write("docs/phases/phase-1-planning.md", fmt.Sprintf(phase1Doc, "", ""))
	h.write("docs/phases/phase-2-sprint-planning.md", phase2Doc)
	h.write("docs/phases/phase-3-implementation.md", phase3Doc)
	h.write("target/quality-report.json", passingReport)

	for phase := 1; phase <= 3; phase++ {
		h.mustRun("setup", "--phase", fmt.Sprint(phase))
		l := h.loop()
		assert.Equal(t, loop.SetupPosition(phase), l.LoopPosition)
		assert.Equal(t, state.ValidateCommand(phase), l.NextCommand)

		stdout = h.mustRun("validate", "--phase", fmt.Sprint(phase))
		assert.Contains(t, stdout, "Auto-approved:")
		l = h.loop()
		assert.Equal(t, loop.CompletePosition(phase), l.LoopPosition)
		assert.Equal(t, state.NextAfterValidate(phase), l.NextCommand)
	}
	assert.Equal(t, []int{1, 2, 3}, h.project().PhasesCompleted)
	assert.True(t, h.project().QualityGatesEnabled)

	stdout = h.mustRun("quality-check")
	assert.Contains(t, stdout, "Sprint 2 started")
	l := h.loop()
	assert.Equal(t, 2, l.CurrentSprint)
	assert.Equal(t, "sprint-2-started", l.LoopPosition)
	assert.Equal(t, "phase2-setup", l.NextCommand)
	assert.DirExists(t, state.SprintDir(filepath.Join(h.dir, "docs", "sprints"), 2))

	// Repeating the quality check leaves the started sprint alone.
	history := len(l.LoopHistory)
	stdout = h.mustRun("quality-check")
	assert.NotContains(t, stdout, "Sprint 3")
	assert.Contains(t, stdout, "Next: phase2-setup")
	l = h.loop()
	assert.Equal(t, 2, l.CurrentSprint)
	assert.Equal(t, "sprint-2-started", l.LoopPosition)
	assert.Len(t, l.LoopHistory, history)
	assert.NoDirExists(t, state.SprintDir(filepath.Join(h.dir, "docs", "sprints"), 3))

	// The driver process is replaced and the live flag is lost.
	h.env.Flag = false
	h.env.Phase = 0

	_, stderr, err := h.run("setup", "--phase", "2")
	require.NoError(t, err)
	assert.Contains(t, stderr, "interrupted at sprint-2-started")

	stdout = h.mustRun("status", "-o", "json")
	var report StatusReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "Interrupted", report.Interruption)
	assert.False(t, report.Live)
	require.NotNil(t, report.Next)
	assert.Equal(t, "phase2-validate", report.Next.Command)

	stdout = h.mustRun("resume")
	assert.Contains(t, stdout, "AUTO-COMPACT RECOVERY")
	assert.Contains(t, stdout, "Next: phase2-validate")
	assert.True(t, h.env.Active())
	assert.Equal(t, 2, h.env.Phase)
	l = h.loop()
	assert.True(t, l.AutoCompactRecovery)
	assert.Equal(t, state.ActionRecovery, l.LoopHistory[len(l.LoopHistory)-1].Action)

	// A second resume must not double-resume.
	stdout, _, err = h.run("resume")
	require.Error(t, err)
	assert.ErrorIs(t, err, loop.ErrAlreadyActive)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, stdout, "Next: phase2-validate")
	assert.Len(t, h.loop().LoopHistory, len(l.LoopHistory))

	h.mustRun("validate", "--phase", "2")
	assert.False(t, h.loop().AutoCompactRecovery, "progress clears the recovery marker")
}

func TestValidate_RejectionBlocksAdvance(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	h.mustRun("enable")
	h.mustRun("setup", "--phase", "1")

	h.write("docs/phases/phase-1-planning.md", fmt.Sprintf(phase1Doc, "✅ Approved", "❌ Requires Changes: cut scope"))
	_, _, err := h.run("validate", "--phase", "1")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))

	l := h.loop()
	assert.Equal(t, "phase1-setup-complete", l.LoopPosition)
	assert.Equal(t, "phase1-validate", l.NextCommand)
	assert.Empty(t, h.project().PhasesCompleted)
}

func TestQualityCheck_Failures(t *testing.T) {
	tests := []struct {
		name       string
		completed  []int
		report     string
		wantErr    string
		wantRemedy string
	}{
		{
			name:       "phase 3 not completed",
			completed:  []int{1, 2},
			wantErr:    "requires phase 3",
			wantRemedy: "ce-dps validate --phase 3",
		},
		{
			name:       "report missing",
			completed:  []int{1, 2, 3},
			wantErr:    "quality report not found",
			wantRemedy: "quality-gates runner",
		},
		{
			name:       "gate failed",
			completed:  []int{1, 2, 3},
			report:     failingReport,
			wantErr:    "quality gates failed: Clippy",
			wantRemedy: "fix the failing gates",
		},
		{
			name:       "malformed report",
			completed:  []int{1, 2, 3},
			report:     "{",
			wantErr:    "unmarshal quality report",
			wantRemedy: "regenerate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.mustRun("init")

			store := state.NewFileStore(filepath.Join(h.dir, "docs"))
			p := h.project()
			for _, phase := range tt.completed {
				p.MarkCompleted(phase, "2026-10-19T08:00:00Z")
			}
			p.CurrentPhase = 3
			require.NoError(t, store.SaveProject(p))
			if tt.report != "" {
				h.write("target/quality-report.json", tt.report)
			}

			_, _, err := h.run("quality-check")
			require.Error(t, err)
			assert.Equal(t, exitcode.Failure, ExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, Remediation(err), tt.wantRemedy)
		})
	}
}

func TestQualityCheck_OutsideLoop(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	store := state.NewFileStore(filepath.Join(h.dir, "docs"))
	p := h.project()
	p.MarkCompleted(3, "2026-10-19T08:00:00Z")
	require.NoError(t, store.SaveProject(p))
	h.write("report.json", passingReport)

	stdout := h.mustRun("quality-check", "--report", "report.json")
	assert.Contains(t, stdout, "Next: phase2-setup")
	assert.NotContains(t, stdout, "Sprint")

	_, err := store.LoadLoop()
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestQualityCheck_OutOfSequence(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	store := state.NewFileStore(filepath.Join(h.dir, "docs"))
	p := h.project()
	for phase := 1; phase <= 3; phase++ {
		p.MarkCompleted(phase, "2026-10-19T08:00:00Z")
	}
	p.CurrentPhase = 2
	require.NoError(t, store.SaveProject(p))
	h.write("target/quality-report.json", passingReport)

	h.mustRun("enable")
	h.mustRun("advance", "--step", "phase2-setup-complete", "--next", "phase2-validate")

	_, _, err := h.run("quality-check")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, err.Error(), "loop is at phase2-setup-complete")
	assert.Contains(t, Remediation(err), "ce-dps validate --phase 2")

	l := h.loop()
	assert.Equal(t, 1, l.CurrentSprint)
	assert.Equal(t, "phase2-setup-complete", l.LoopPosition)
}

func TestStatus_Formats(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init", "--name", "billing")
	h.mustRun("enable")

	text := h.mustRun("status")
	assert.Contains(t, text, "Project:     billing")
	assert.Contains(t, text, "Mode:        autonomous (live: true)")
	assert.Contains(t, text, "Detector:    AlreadyRunning")

	var report StatusReport
	require.NoError(t, yaml.Unmarshal([]byte(h.mustRun("status", "-o", "yaml")), &report))
	assert.Equal(t, "AlreadyRunning", report.Interruption)
	assert.Equal(t, "billing", report.Project.ProjectName)
	require.NotNil(t, report.Loop)
	assert.Equal(t, "session-1", report.Loop.SessionID)

	_, _, err := h.run("status", "-o", "xml")
	require.Error(t, err)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
}

func TestStatus_OutputFromConfig(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	h.write(".ce-dps.env", "OUTPUT=json\n")

	var report StatusReport
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("status")), &report))
	assert.Equal(t, "None", report.Interruption)
	assert.Nil(t, report.Loop)
}

func TestResume_NoLoop(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")

	_, _, err := h.run("resume")
	require.Error(t, err)
	assert.ErrorIs(t, err, loop.ErrNoLoopState)
	assert.Equal(t, exitcode.Failure, ExitCode(err))
	assert.Contains(t, Remediation(err), "ce-dps enable")
}

func TestDisable(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	h.mustRun("enable")

	stdout := h.mustRun("disable")
	assert.Contains(t, stdout, "SKYNET MODE DISABLED")
	assert.False(t, h.env.Active())
	assert.True(t, h.project().HumanApprovalRequired)
	assert.False(t, h.loop().SkynetActive)
}

func TestAdvance(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")

	_, _, err := h.run("advance", "--step", "phase1-complete", "--next", "phase2-setup")
	require.Error(t, err)
	assert.ErrorIs(t, err, loop.ErrNoLoopState)

	h.mustRun("enable")
	stdout := h.mustRun("advance", "--step", "phase1-complete", "--next", "phase2-setup")
	assert.Contains(t, stdout, "Next: phase2-setup")

	l := h.loop()
	assert.Equal(t, "phase1-complete", l.LoopPosition)
	assert.Equal(t, "phase2-setup", l.NextCommand)
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.mustRun("init")
	h.mustRun("enable")

	h.mustRun("reset")
	assert.NoFileExists(t, filepath.Join(h.dir, "docs", state.LoopFileName))
	assert.Equal(t, state.ModeSupervised, h.project().SkynetMode)
	assert.False(t, h.env.Active())

	h.mustRun("reset")
}

func TestStateDirFlag(t *testing.T) {
	h := newHarness(t)
	h.mustRun("--state-dir", "custom", "init")
	assert.FileExists(t, filepath.Join(h.dir, "custom", state.ProjectFileName))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitcode.Success},
		{"exit error", &ExitError{Code: exitcode.Fatal, Err: fmt.Errorf("boom")}, exitcode.Fatal},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), exitcode.Interrupted},
		{"no loop", fmt.Errorf("%w: %w", loop.ErrNoLoopState, state.ErrNotFound), exitcode.Failure},
		{"already active", loop.ErrAlreadyActive, exitcode.Failure},
		{"inconsistent", loop.ErrInconsistentProjectState, exitcode.Fatal},
		{"not found", fmt.Errorf("load: %w", state.ErrNotFound), exitcode.Fatal},
		{"corrupt", state.ErrCorrupt, exitcode.Fatal},
		{"conflict", state.ErrConflict, exitcode.Fatal},
		{"unavailable", state.ErrStoreUnavailable, exitcode.Fatal},
		{"other", fmt.Errorf("unexpected"), exitcode.Failure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestRemediation(t *testing.T) {
	assert.Equal(t, "do this", Remediation(failure("do this", "failed")))
	assert.Contains(t, Remediation(state.ErrConflict), "run it again")
	assert.Contains(t, Remediation(state.ErrCorrupt), "ce-dps init")
	assert.Empty(t, Remediation(fmt.Errorf("unexpected")))
}
