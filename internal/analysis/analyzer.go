package analysis

import (
	"context"
	"time"

	"permit-backend/internal/shared/telemetry"
)

// Input is the plan handed to an Analyzer.
type Input struct {
	Image    []byte
	MimeType string
	City     string
}

// Analyzer reviews a plan. Implementations must honor ctx cancellation.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (Analysis, error)
}

// Func adapts a plain function to Analyzer.
type Func func(ctx context.Context, in Input) (Analysis, error)

func (f Func) Analyze(ctx context.Context, in Input) (Analysis, error) {
	return f(ctx, in)
}

// DefaultMockDelay matches the demo latency of the hosted review service.
const DefaultMockDelay = 3 * time.Second

// Mock returns a fixed analysis after Delay. It ignores the image contents.
type Mock struct {
	Delay time.Duration
}

func (m Mock) Analyze(ctx context.Context, in Input) (Analysis, error) {
	telemetry.Info("analysis.mock.start", map[string]any{"city": cityOrUnspecified(in.City), "bytes": len(in.Image)})
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Analysis{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	result := MockResult()
	telemetry.Info("analysis.mock.complete", map[string]any{"score": result.ComplianceScore})
	return result, nil
}

// MockResult is the canned review returned by Mock.
func MockResult() Analysis {
	circuits, amps := 24, 200
	entrance := "North wall, exterior mount"
	interconnect := "Main panel - load side connection"
	size := 10.0
	return Analysis{
		Details: &PlanDetails{
			CircuitCount:              &circuits,
			PanelAmperage:             &amps,
			ServiceEntranceLocation:   &entrance,
			SolarInterconnectionPoint: &interconnect,
			ProposedSolarSystemSize:   &size,
		},
		Violations: []Violation{
			{
				CodeSection: "NEC 690.12",
				Description: "Rapid shutdown system not clearly indicated on plan",
				Severity:    SeverityHigh,
			},
			{
				CodeSection: "NEC 230.42",
				Description: "Main panel amperage (200A) may be insufficient for proposed 10kW solar system",
				Severity:    SeverityMedium,
			},
		},
		Recommendations: []string{
			"Add rapid shutdown system details per NEC 690.12",
			"Consider panel upgrade to 225A or 250A service",
			"Ensure proper bonding and grounding per NEC 690.35",
			"Add surge protection device (SPD) for solar installation",
		},
		ComplianceScore:     78,
		RequiresHumanReview: true,
	}
}

func cityOrUnspecified(city string) string {
	if city == "" {
		return "unspecified"
	}
	return city
}
