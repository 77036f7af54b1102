package gate

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Cyonx818/ce-dps/internal/state"
)

// DefaultCoverageTarget is used when Validator.CoverageTarget is unset.
const DefaultCoverageTarget = 95.0

// CoverageSource supplies the measured test coverage percentage.
type CoverageSource interface {
	Coverage() (float64, error)
}

// Result is the outcome of a gate check. A failed gate is an expected result,
// not an error, and always carries a remediation hint.
type Result struct {
	Phase        int
	Passed       bool
	Reason       string
	Remediation  string
	AutoApproved []string
	Coverage     float64
}

func pass(phase int) Result {
	return Result{Phase: phase, Passed: true}
}

func fail(phase int, reason, remediation string) Result {
	return Result{Phase: phase, Reason: reason, Remediation: remediation}
}

// Validator checks a phase document against its Definition and records the
// phase as completed when every check passes.
type Validator struct {
	Store          state.Store
	Coverage       CoverageSource
	CoverageTarget float64
	Now            func() time.Time
}

// ValidatePhase runs the gate checks for phase in order, stopping at the
// first failure:
//
//  1. the phase document exists
//  2. every required section header is present
//  3. every approval section is approved; in autonomous mode missing
//     approvals may be synthesized when no section in the document requires
//     changes. Phase 3 also requires coverage at or above the target.
//  4. no section carries a rejection marker
//
// Synthesized approvals are written only after all four checks pass.
//
// On pass the phase is appended to phases_completed and current_phase moves
// to the next phase (capped at 3). The returned error is reserved for state
// store failures and unknown phases; gate failures are reported in Result.
func (v *Validator) ValidatePhase(phase int, doc Oracle) (Result, error) {
	def, err := Lookup(phase)
	if err != nil {
		return Result{}, err
	}

	project, err := v.Store.LoadProject()
	if err != nil {
		return Result{}, fmt.Errorf("load project state: %w", err)
	}

	// 1. Setup artifact
	exists, err := doc.Exists()
	if err != nil {
		return Result{}, err
	}
	if !exists {
		return fail(phase,
			fmt.Sprintf("phase %d document not found: %s", phase, doc.Name()),
			fmt.Sprintf("run `ce-dps setup --phase %d` and write the %s document", phase, def.Name),
		), nil
	}

	// 2. Analysis/planning complete
	for _, header := range def.RequiredHeaders {
		ok, err := doc.HasHeader(header)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return fail(phase,
				fmt.Sprintf("required section %q is missing from %s", header, doc.Name()),
				fmt.Sprintf("complete the %q section of the phase %d document", header, phase),
			), nil
		}
	}

	// 3. Approvals
	rejected, err := doc.Rejections()
	if err != nil {
		return Result{}, err
	}
	autonomous := !project.HumanApprovalRequired
	now := v.timestamp()

	// Pending approvals are only synthesized once every other check has
	// passed, so a failing gate leaves the document untouched.
	var pending []string
	for _, title := range def.ApprovalSections {
		found, approved, err := doc.Approved(title)
		if err != nil {
			return Result{}, err
		}
		if !found {
			return fail(phase,
				fmt.Sprintf("approval section %q is missing from %s", title, doc.Name()),
				fmt.Sprintf("add a %q section to the phase %d document", title, phase),
			), nil
		}
		if approved {
			continue
		}

		sectionRejected, err := doc.Rejected(title)
		if err != nil {
			return Result{}, err
		}
		if autonomous && !sectionRejected && len(rejected) == 0 {
			pending = append(pending, title)
			continue
		}

		remediation := fmt.Sprintf("review the %q section and mark it %s", title, ApprovedMarker)
		switch {
		case sectionRejected:
			remediation = fmt.Sprintf("address the requested changes in %q, then mark it %s", title, ApprovedMarker)
		case autonomous:
			remediation = fmt.Sprintf("address the requested changes in %q; approvals are not synthesized while a section requires changes", rejected[0])
		}
		return fail(phase,
			fmt.Sprintf("section %q has no %s marker", title, ApprovedMarker),
			remediation,
		), nil
	}

	var coverage float64
	if def.RequiresCoverage {
		res, ok := v.checkCoverage(phase)
		if !ok {
			return res, nil
		}
		coverage = res.Coverage
	}

	// 4. Rejections
	if len(rejected) > 0 {
		return fail(phase,
			fmt.Sprintf("section %q requires changes", rejected[0]),
			"address the requested changes and run validation again",
		), nil
	}

	var autoApproved []string
	for _, title := range pending {
		justification := fmt.Sprintf("required sections present and no rejection markers at %s", now)
		if err := doc.Approve(title, justification); err != nil {
			return Result{}, fmt.Errorf("synthesize approval: %w", err)
		}
		_, approved, err := doc.Approved(title)
		if err != nil {
			return Result{}, err
		}
		if !approved {
			return Result{}, fmt.Errorf("synthesized approval for %q not found in %s", title, doc.Name())
		}
		autoApproved = append(autoApproved, title)
	}

	project.MarkCompleted(phase, now)
	project.CurrentPhase = min(phase+1, 3)
	project.LastUpdated = now
	if err := v.Store.SaveProject(project); err != nil {
		return Result{}, fmt.Errorf("record phase completion: %w", err)
	}

	res := pass(phase)
	res.AutoApproved = autoApproved
	res.Coverage = coverage
	return res, nil
}

// checkCoverage compares the supplied coverage with the target. The boolean
// is false when the gate fails.
func (v *Validator) checkCoverage(phase int) (Result, bool) {
	target := v.CoverageTarget
	if target <= 0 {
		target = DefaultCoverageTarget
	}
	if v.Coverage == nil {
		return fail(phase,
			"no quality report configured for the coverage check",
			"run the quality-gates runner and point --report at its output",
		), false
	}

	coverage, err := v.Coverage.Coverage()
	if err != nil {
		return fail(phase,
			fmt.Sprintf("coverage unavailable: %v", err),
			"run the quality-gates runner to produce a quality report",
		), false
	}
	if math.IsNaN(coverage) || coverage < target {
		res := fail(phase,
			fmt.Sprintf("test coverage %.1f%% is below the %.1f%% target", coverage, target),
			"add tests for uncovered code and re-run the quality-gates runner",
		)
		res.Coverage = coverage
		return res, false
	}

	res := pass(phase)
	res.Coverage = coverage
	return res, true
}

func (v *Validator) timestamp() string {
	now := v.Now
	if now == nil {
		now = time.Now
	}
	return now().UTC().Format(time.RFC3339)
}

// Summary renders the result as a single line.
func (r Result) Summary() string {
	if r.Passed {
		s := fmt.Sprintf("phase %d gate passed", r.Phase)
		if len(r.AutoApproved) > 0 {
			s += fmt.Sprintf(" (auto-approved: %s)", strings.Join(r.AutoApproved, ", "))
		}
		return s
	}
	return fmt.Sprintf("phase %d gate failed: %s", r.Phase, r.Reason)
}
