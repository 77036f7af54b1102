// Package gate decides whether a phase's exit criteria are met before the
// phase transition is recorded.
package gate

import (
	"fmt"
	"path/filepath"
)

// Definition lists the exit criteria of one phase.
type Definition struct {
	Phase            int
	Name             string
	Document         string
	RequiredHeaders  []string
	ApprovalSections []string
	RequiresCoverage bool
}

// Definitions holds the criteria for phases 1 to 3.
var Definitions = map[int]Definition{
	1: {
		Phase:    1,
		Name:     "Strategic Planning",
		Document: "phase-1-planning.md",
		RequiredHeaders: []string{
			"Business Requirements",
			"Architecture Analysis",
			"Technology Evaluation",
			"Implementation Roadmap",
			"Risk Assessment",
		},
		ApprovalSections: []string{
			"Architecture Approval",
			"Roadmap Approval",
		},
	},
	2: {
		Phase:    2,
		Name:     "Sprint Planning",
		Document: "phase-2-sprint-planning.md",
		RequiredHeaders: []string{
			"Selected Features",
			"Implementation Plan",
			"Complexity Assessment",
			"Dependencies",
		},
		ApprovalSections: []string{
			"Sprint Scope Approval",
			"Implementation Approach Approval",
		},
	},
	3: {
		Phase:    3,
		Name:     "Implementation",
		Document: "phase-3-implementation.md",
		RequiredHeaders: []string{
			"Implementation Summary",
			"Test Results",
			"Quality Gate Results",
			"Security Validation",
		},
		ApprovalSections: []string{
			"Business Validation",
		},
		RequiresCoverage: true,
	},
}

// Lookup returns the definition of phase or an error for phases outside 1-3.
func Lookup(phase int) (Definition, error) {
	def, ok := Definitions[phase]
	if !ok {
		return Definition{}, fmt.Errorf("unknown phase %d: must be 1, 2 or 3", phase)
	}
	return def, nil
}

// DocumentPath returns where the phase document lives under docsDir.
func (d Definition) DocumentPath(docsDir string) string {
	return filepath.Join(docsDir, d.Document)
}
