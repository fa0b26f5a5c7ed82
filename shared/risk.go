package shared

import "fmt"

// RiskLevel represents the configured appetite for position risk.
type RiskLevel int

const (
	LowRisk RiskLevel = iota
	MediumRisk
	HighRisk
)

// String stringifies the provided risk level.
func (r RiskLevel) String() string {
	switch r {
	case LowRisk:
		return "low"
	case MediumRisk:
		return "medium"
	case HighRisk:
		return "high"
	default:
		return "unknown"
	}
}

// Multiplier returns the sizing multiplier applied to the kelly fraction for
// the provided risk level.
func (r RiskLevel) Multiplier() (float64, error) {
	switch r {
	case LowRisk:
		return 0.1, nil
	case MediumRisk:
		return 0.25, nil
	case HighRisk:
		return 0.5, nil
	default:
		return 0, fmt.Errorf("%w: unknown risk level %d", ErrInvalidArgument, r)
	}
}

// ParseRiskLevel parses a risk level from the provided string.
func ParseRiskLevel(level string) (RiskLevel, error) {
	switch level {
	case "low":
		return LowRisk, nil
	case "medium":
		return MediumRisk, nil
	case "high":
		return HighRisk, nil
	default:
		return 0, fmt.Errorf("%w: unknown risk level %q", ErrInvalidArgument, level)
	}
}
