// Package banner provides colored banner display functions for the ce-dps CLI.
//
// Banners are written to stdout (see SetOutput) with color-coded headers and
// separators. They render the loop status, mode switches, gate results and
// recovery plans.
package banner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Cyonx818/ce-dps/internal/gate"
	"github.com/Cyonx818/ce-dps/internal/logging"
	"github.com/Cyonx818/ce-dps/internal/loop"
	"github.com/Cyonx818/ce-dps/internal/state"
)

var out io.Writer = os.Stdout

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

// recentEntries is how many history entries the status banner lists.
const recentEntries = 3

const rule = "═══════════════════════════════════════════════════"

// SetOutput redirects banner output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

func writeln(a ...any) {
	fmt.Fprintln(out, a...)
}

func writef(format string, a ...any) {
	fmt.Fprintf(out, format, a...)
}

// PrintModeBanner displays the result of enable or disable.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  🤖 SKYNET MODE ENABLED
//	═══════════════════════════════════════════════════
//	  Human approvals:  bypassed
//	  Quality gates:    enforced
//	  Sprint:           1
//	  Next command:     phase1-setup
//	═══════════════════════════════════════════════════
func PrintModeBanner(p *state.ProjectState, l *state.LoopState) {
	active := p.SkynetMode.Autonomous()
	colorize := successColor
	title := "  🤖 SKYNET MODE ENABLED"
	approvals := "bypassed"
	if !active {
		colorize = headerColor
		title = "  👤 SKYNET MODE DISABLED"
		approvals = "required"
	}

	sep := colorize(rule)
	writeln(sep)
	writeln(colorize(title))
	writeln(sep)
	writef("  Human approvals:  %s\n", approvals)
	writef("  Quality gates:    %s\n", enforced(p.QualityGatesEnabled))
	if l != nil {
		writef("  Sprint:           %d\n", l.CurrentSprint)
		writef("  Next command:     %s\n", l.NextCommand)
	}
	writeln(sep)
}

func enforced(on bool) string {
	if on {
		return "enforced"
	}
	return "disabled"
}

// StatusView is everything the status banner shows.
type StatusView struct {
	Project      *state.ProjectState
	Loop         *state.LoopState
	Interruption loop.InterruptionStatus
	Live         bool
	Now          time.Time
}

// PrintStatusBanner displays both records and the detector result.
//
// Example output:
//
//	──────────────────────────────────────────────────
//	  Project:     billing
//	  Phase:       2 (completed: 1)
//	  Mode:        autonomous (live: true)
//	  Sprint:      1
//	  Position:    phase2-complete
//	  Next:        phase3-setup
//	  Last run:    2026-10-19T11:00:00Z (3m 0s ago)
//	  Detector:    AlreadyRunning
//	──────────────────────────────────────────────────
func PrintStatusBanner(v StatusView) {
	sep := strings.Repeat("─", 50)
	p := v.Project
	writeln(sep)
	writef("  Project:     %s\n", p.ProjectName)
	writef("  Phase:       %d (completed: %s)\n", p.CurrentPhase, joinInts(p.PhasesCompleted))
	mode := "supervised"
	if p.SkynetMode.Autonomous() {
		mode = "autonomous"
	}
	writef("  Mode:        %s (live: %t)\n", mode, v.Live)
	writef("  Quality:     %s\n", enforced(p.QualityGatesEnabled))

	if v.Loop == nil {
		writeln("  Loop:        not started (run `ce-dps enable`)")
	} else {
		l := v.Loop
		writef("  Sprint:      %d\n", l.CurrentSprint)
		writef("  Position:    %s\n", l.LoopPosition)
		writef("  Next:        %s\n", l.NextCommand)
		writef("  Last run:    %s%s\n", l.LastExecution, age(l.LastExecution, v.Now))
		if l.AutoCompactRecovery {
			writeln(warnColor("  Recovered:   resumed after interruption"))
		}
		for i, e := range l.Recent(recentEntries) {
			label := ""
			if i == 0 {
				label = "History:"
			}
			writef("  %-12s %s %s\n", label, e.Timestamp, e.Action)
		}
	}

	detector := v.Interruption.String()
	if v.Interruption == loop.Interrupted {
		detector = warnColor(detector + " (run `ce-dps resume`)")
	}
	writef("  Detector:    %s\n", detector)
	writeln(sep)
}

func age(ts string, now time.Time) string {
	if now.IsZero() {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" (%s ago)", logging.FormatDuration(int(now.Sub(t).Seconds())))
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return "none"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

// PrintGateBanner displays a phase gate result.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ✗ Phase 2 gate FAILED
//	═══════════════════════════════════════════════════
//	  Reason:      section "Sprint Scope Approval" has no ✅ Approved marker
//	  Remediation: review the "Sprint Scope Approval" section and mark it ✅ Approved
//	═══════════════════════════════════════════════════
func PrintGateBanner(r gate.Result) {
	if r.Passed {
		sep := successColor(rule)
		writeln(sep)
		writeln(successColor(fmt.Sprintf("  ✓ Phase %d gate PASSED", r.Phase)))
		if len(r.AutoApproved) > 0 {
			writef("  Auto-approved: %s\n", strings.Join(r.AutoApproved, ", "))
		}
		if r.Coverage > 0 {
			writef("  Coverage:      %.1f%%\n", r.Coverage)
		}
		writeln(sep)
		return
	}

	sep := errorColor(rule)
	writeln(sep)
	writeln(errorColor(fmt.Sprintf("  ✗ Phase %d gate FAILED", r.Phase)))
	writeln(sep)
	writef("  Reason:      %s\n", r.Reason)
	writef("  Remediation: %s\n", r.Remediation)
	writeln(sep)
}

// PrintRecoveryBanner displays a resume plan.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  ⚠ AUTO-COMPACT RECOVERY
//	═══════════════════════════════════════════════════
//	  Sprint:      1
//	  Phase:       2
//	  Position:    phase2-complete
//	  Next:        phase3-setup
//	═══════════════════════════════════════════════════
//	  phase 2, sprint 1, position phase2-complete, next phase3-setup
//	═══════════════════════════════════════════════════
func PrintRecoveryBanner(p *loop.ResumePlan) {
	sep := warnColor(rule)
	writeln(sep)
	writeln(warnColor("  ⚠ AUTO-COMPACT RECOVERY"))
	writeln(sep)
	writef("  Sprint:      %d\n", p.CurrentSprint)
	writef("  Phase:       %d\n", p.CurrentPhase)
	writef("  Position:    %s\n", p.LoopPosition)
	writef("  Next:        %s\n", p.NextCommand)
	for _, w := range p.Warnings {
		writeln(warnColor("  Warning:     " + w))
	}
	if p.Summary != "" {
		writeln(sep)
		for _, line := range strings.Split(p.Summary, "\n") {
			writef("  %s\n", strings.TrimLeft(line, " "))
		}
	}
	writeln(sep)
}

// PrintSprintBanner announces the start of a sprint.
func PrintSprintBanner(sprint int) {
	sep := headerColor(rule)
	writeln(sep)
	writeln(headerColor(fmt.Sprintf("  🔄 Sprint %d started", sprint)))
	writeln(sep)
}

// PrintNextAction prints the command the driver should run next.
//
// Example output:
//
//	Next: phase3-validate (ce-dps validate --phase 3)
//	      gate passed for phase 2
func PrintNextAction(a loop.NextAction) {
	if a.IsZero() {
		return
	}
	line := a.Command
	if inv := state.Invocation(a.Command); inv != a.Command {
		line = fmt.Sprintf("%s (%s)", a.Command, inv)
	}
	writef("%s %s\n", headerColor("Next:"), line)
	if a.Reason != "" {
		writef("      %s\n", a.Reason)
	}
}
