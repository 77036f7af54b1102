// Package quality reads the quality report produced by the external
// quality-gates runner. Nothing in this package runs builds, tests or
// scanners; it only interprets their recorded outcome.
package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// DefaultCoverageTarget is the minimum coverage percentage for phase 3.
const DefaultCoverageTarget = 95.0

// DefaultReportPath is where the quality-gates runner writes its report.
const DefaultReportPath = "target/quality-report.json"

// ErrNoReport reports that no quality report has been written yet.
var ErrNoReport = errors.New("quality report not found")

// Report mirrors the JSON written by the quality-gates runner.
type Report struct {
	Timestamp       string   `json:"timestamp"`
	ProjectPath     string   `json:"project_path"`
	Branch          string   `json:"branch"`
	Commit          string   `json:"commit"`
	QualityGates    Gates    `json:"quality_gates"`
	Recommendations []string `json:"recommendations"`
}

// Gates holds the gate outcomes and the measured coverage.
type Gates struct {
	AllPassed           bool       `json:"all_passed"`
	CoveragePercentage  Percentage `json:"coverage_percentage"`
	CoverageTarget      Percentage `json:"coverage_target"`
	SecurityScanEnabled bool       `json:"security_scan_enabled"`
	TodoComments        int        `json:"todo_comments"`
	PerformanceTarget   int        `json:"performance_target"`
	Gates               []Gate     `json:"gates"`
}

// Gate is one named check in the report.
type Gate struct {
	Name        string  `json:"name"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
	Output      *string `json:"output"`
	Error       *string `json:"error"`
}

// Gate statuses
const (
	StatusPassed  = "Passed"
	StatusFailed  = "Failed"
	StatusSkipped = "Skipped"
)

// Percentage is a coverage figure that may be recorded either as a JSON
// number or as text such as "96.5" or "96.5%".
type Percentage float64

// UnmarshalJSON accepts numbers and percentage strings.
func (p *Percentage) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*p = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	v, err := ParsePercentage(raw)
	if err != nil {
		return err
	}
	*p = Percentage(v)
	return nil
}

// ParsePercentage converts a textual percentage to a number. Surrounding
// whitespace and a trailing percent sign are ignored. The result is compared
// numerically, never as text ("100" < "95" as strings).
func ParsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return 0, fmt.Errorf("empty percentage")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("percentage %q is not a finite number", s)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("percentage %v out of range", v)
	}
	return v, nil
}

// LoadReport reads and parses the report at path.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoReport)
		}
		return nil, fmt.Errorf("read quality report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal quality report: %w", err)
	}
	return &r, nil
}

// FailedGates returns the names of gates with status Failed.
func (r *Report) FailedGates() []string {
	var failed []string
	for _, g := range r.QualityGates.Gates {
		if g.Status == StatusFailed {
			failed = append(failed, g.Name)
		}
	}
	return failed
}

// Coverage returns the recorded coverage percentage.
func (r *Report) Coverage() float64 {
	return float64(r.QualityGates.CoveragePercentage)
}

// FileSource reads coverage from the report file on every call, so a gate
// check always sees the latest run.
type FileSource struct {
	Path string
}

// Coverage loads the report and returns its coverage percentage.
func (s FileSource) Coverage() (float64, error) {
	r, err := LoadReport(s.Path)
	if err != nil {
		return 0, err
	}
	return r.Coverage(), nil
}
