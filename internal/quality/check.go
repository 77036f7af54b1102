package quality

import (
	"fmt"
	"math"
	"strings"
)

// Outcome is the result of evaluating a report against the coverage target.
type Outcome struct {
	Passed      bool
	Coverage    float64
	Target      float64
	FailedGates []string
	Reason      string
	Remediation string
}

// Evaluate checks that every gate passed and that coverage meets target.
// A non-positive target falls back to DefaultCoverageTarget.
func Evaluate(r *Report, target float64) Outcome {
	if target <= 0 {
		target = DefaultCoverageTarget
	}
	out := Outcome{
		Coverage:    r.Coverage(),
		Target:      target,
		FailedGates: r.FailedGates(),
	}

	if len(out.FailedGates) > 0 || !r.QualityGates.AllPassed {
		names := "unknown"
		if len(out.FailedGates) > 0 {
			names = strings.Join(out.FailedGates, ", ")
		}
		out.Reason = fmt.Sprintf("quality gates failed: %s", names)
		out.Remediation = "fix the failing gates and re-run the quality-gates runner"
		return out
	}

	if math.IsNaN(out.Coverage) || out.Coverage < target {
		out.Reason = fmt.Sprintf("test coverage %.1f%% is below the %.1f%% target", out.Coverage, target)
		out.Remediation = "add tests for uncovered code and re-run the quality-gates runner"
		return out
	}

	out.Passed = true
	return out
}
