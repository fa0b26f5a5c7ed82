package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/blueeye2015/new-okx/shared"
)

func TestSizeFraction(t *testing.T) {
	tests := []struct {
		name    string
		stat    shared.PatternStat
		risk    shared.RiskLevel
		want    float64
		wantErr bool
	}{
		{
			name: "zero return sizes to zero",
			stat: shared.PatternStat{WinRate: 0.9, ReturnRate: 0},
			risk: shared.HighRisk,
			want: 0,
		},
		{
			name: "negative return sizes to zero",
			stat: shared.PatternStat{WinRate: 0.9, ReturnRate: -0.012},
			risk: shared.HighRisk,
			want: 0,
		},
		{
			name: "negative kelly clamps to zero",
			stat: shared.PatternStat{WinRate: 0.4, ReturnRate: 0.005},
			risk: shared.MediumRisk,
			want: 0,
		},
		{
			name: "low risk scales kelly by a tenth",
			stat: shared.PatternStat{WinRate: 0.65, ReturnRate: 0.008},
			risk: shared.LowRisk,
			want: 0.021250,
		},
		{
			name: "medium risk scales kelly by a quarter",
			stat: shared.PatternStat{WinRate: 0.65, ReturnRate: 0.008},
			risk: shared.MediumRisk,
			want: 0.053125,
		},
		{
			name: "high risk scales kelly by a half",
			stat: shared.PatternStat{WinRate: 0.65, ReturnRate: 0.008},
			risk: shared.HighRisk,
			want: 0.106250,
		},
		{
			name: "certain win caps at the maximum fraction",
			stat: shared.PatternStat{WinRate: 1, ReturnRate: 0.01},
			risk: shared.HighRisk,
			want: maxPositionFraction,
		},
		{
			name:    "unknown risk level errors",
			stat:    shared.PatternStat{WinRate: 0.65, ReturnRate: 0.008},
			risk:    shared.RiskLevel(999),
			wantErr: true,
		},
	}

	for _, test := range tests {
		fraction, err := SizeFraction(test.stat, test.risk)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: expected an error, got none", test.name)
			}
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("%s: expected an invalid argument error, got %v", test.name, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
		}
		if math.Abs(fraction-test.want) > 1e-9 {
			t.Errorf("%s: expected fraction %v, got %v", test.name, test.want, fraction)
		}
	}
}

// Ensure position sizing never shrinks as the win rate improves.
func TestSizeFractionMonotonicInWinRate(t *testing.T) {
	stat := shared.PatternStat{ReturnRate: 0.01}
	previous := float64(0)

	for winRate := 0.4; winRate <= 1; winRate += 0.05 {
		stat.WinRate = winRate

		fraction, err := SizeFraction(stat, shared.MediumRisk)
		if err != nil {
			t.Fatalf("sizing with win rate %.2f: %v", winRate, err)
		}
		if fraction < previous {
			t.Errorf("fraction shrank from %v to %v as win rate rose to %.2f",
				previous, fraction, winRate)
		}

		previous = fraction
	}
}
