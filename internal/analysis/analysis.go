package analysis

import (
	"errors"
	"fmt"
)

// Severity grades a code violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Violation is a single code finding on a plan.
type Violation struct {
	CodeSection string   `json:"codeSection"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// PlanDetails are facts read off the electrical plan. Any field may be unknown.
type PlanDetails struct {
	CircuitCount              *int     `json:"circuitCount"`
	PanelAmperage             *int     `json:"panelAmperage"`
	ServiceEntranceLocation   *string  `json:"serviceEntranceLocation"`
	SolarInterconnectionPoint *string  `json:"solarInterconnectionPoint"`
	ProposedSolarSystemSize   *float64 `json:"proposedSolarSystemSize"`
}

// Analysis is the result of reviewing one plan.
type Analysis struct {
	Details             *PlanDetails `json:"details"`
	Violations          []Violation  `json:"violations"`
	Recommendations     []string     `json:"recommendations"`
	ComplianceScore     int          `json:"complianceScore"`
	RequiresHumanReview bool         `json:"requiresHumanReview"`
}

// ErrInvalidAnalysis marks an analyzer result that breaks the Analysis contract.
var ErrInvalidAnalysis = errors.New("invalid analysis")

// Validate checks the score bound and every violation's severity. Other
// violation fields are free text and may be empty.
func (a Analysis) Validate() error {
	if a.ComplianceScore < 0 || a.ComplianceScore > 100 {
		return fmt.Errorf("%w: complianceScore %d outside 0-100", ErrInvalidAnalysis, a.ComplianceScore)
	}
	for i, v := range a.Violations {
		if !v.Severity.Valid() {
			return fmt.Errorf("%w: violations[%d] severity %q", ErrInvalidAnalysis, i, v.Severity)
		}
	}
	return nil
}

// Normalize replaces nil slices so the JSON form always carries arrays.
func (a Analysis) Normalize() Analysis {
	if a.Violations == nil {
		a.Violations = []Violation{}
	}
	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	return a
}
