package policy

import (
	"os"
	"strings"
	"testing"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

func baseInput() Input {
	return Input{
		Analysis: domain.AiAnalysis{
			Direction:  domain.DirectionLong,
			Confidence: 7,
			RiskReward: 2.0,
			Confluence: 2,
		},
		Signal:    domain.Signal{Symbol: "BTCUSDT"},
		Account:   domain.AccountInfo{Balance: 9000, Equity: 10000, UsedMargin: 1000},
		Mode:      domain.ModeFutures,
		RiskLevel: domain.RiskMedium,
	}
}

func TestDecide_Rules(t *testing.T) {
	e := NewEngine(DefaultProfile())

	tests := []struct {
		name       string
		mutate     func(*Input)
		wantAction string
		wantNote   string
	}{
		{
			name:       "hold recommendation",
			mutate:     func(in *Input) { in.Analysis.Direction = domain.DirectionHold },
			wantAction: domain.ActionSkip,
			wantNote:   "holding off",
		},
		{
			name: "extreme risk gates confidence below 9",
			mutate: func(in *Input) {
				in.RiskLevel = domain.RiskExtreme
				in.Analysis.Confidence = 8
			},
			wantAction: domain.ActionSkip,
			wantNote:   "extreme market risk",
		},
		{
			name: "extreme risk passes at confidence 9",
			mutate: func(in *Input) {
				in.RiskLevel = domain.RiskExtreme
				in.Analysis.Confidence = 9
			},
			wantAction: domain.ActionOpen,
		},
		{
			name: "high risk gates confidence below 8",
			mutate: func(in *Input) {
				in.RiskLevel = domain.RiskHigh
				in.Analysis.Confidence = 7
			},
			wantAction: domain.ActionSkip,
			wantNote:   "high market risk",
		},
		{
			name:       "confidence floor",
			mutate:     func(in *Input) { in.Analysis.Confidence = 5 },
			wantAction: domain.ActionSkip,
			wantNote:   "too low",
		},
		{
			name:       "risk reward below minimum",
			mutate:     func(in *Input) { in.Analysis.RiskReward = 1.2 },
			wantAction: domain.ActionSkip,
			wantNote:   "R:R",
		},
		{
			name:       "zero risk reward is not gated",
			mutate:     func(in *Input) { in.Analysis.RiskReward = 0 },
			wantAction: domain.ActionOpen,
		},
		{
			name: "soft margin cap needs confidence 8",
			mutate: func(in *Input) {
				in.Account.UsedMargin = 6500
				in.Analysis.Confidence = 7
			},
			wantAction: domain.ActionSkip,
			wantNote:   "margin already",
		},
		{
			name: "soft margin cap passes at confidence 8",
			mutate: func(in *Input) {
				in.Account.UsedMargin = 6500
				in.Analysis.Confidence = 8
			},
			wantAction: domain.ActionOpen,
		},
		{
			name: "hard margin cap refuses regardless of confidence",
			mutate: func(in *Input) {
				in.Account.UsedMargin = 8500
				in.Analysis.Confidence = 10
			},
			wantAction: domain.ActionSkip,
			wantNote:   "too heavy",
		},
		{
			name: "same direction position skips",
			mutate: func(in *Input) {
				in.Positions = []domain.Position{{
					Symbol: "BTCUSDT", Mode: domain.ModeFutures,
					Direction: domain.DirectionLong, UnrealizedPnl: 42,
				}}
			},
			wantAction: domain.ActionSkip,
			wantNote:   "letting it ride",
		},
		{
			name: "strong reversal flips position",
			mutate: func(in *Input) {
				in.Analysis.Confidence = 9
				in.Analysis.Confluence = 4
				in.Positions = []domain.Position{{
					Symbol: "BTCUSDT", Mode: domain.ModeFutures,
					Direction: domain.DirectionShort,
				}}
			},
			wantAction: domain.ActionCloseAndOpen,
			wantNote:   "reversal",
		},
		{
			name: "weak reversal keeps position",
			mutate: func(in *Input) {
				in.Analysis.Confidence = 8
				in.Analysis.Confluence = 2
				in.Positions = []domain.Position{{
					Symbol: "BTCUSDT", Mode: domain.ModeFutures,
					Direction: domain.DirectionShort,
				}}
			},
			wantAction: domain.ActionSkip,
			wantNote:   "keeping position",
		},
		{
			name: "position in other mode does not block entry",
			mutate: func(in *Input) {
				in.Positions = []domain.Position{{
					Symbol: "BTCUSDT", Mode: domain.ModeSpot,
					Direction: domain.DirectionShort,
				}}
			},
			wantAction: domain.ActionOpen,
		},
		{
			name:       "clean entry",
			mutate:     func(in *Input) {},
			wantAction: domain.ActionOpen,
			wantNote:   "open long",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)

			got := e.Decide(in)
			if got.Action != tt.wantAction {
				t.Errorf("action = %q, want %q (note: %s)", got.Action, tt.wantAction, got.Note)
			}
			if tt.wantNote != "" && !strings.Contains(got.Note, tt.wantNote) {
				t.Errorf("note = %q, want substring %q", got.Note, tt.wantNote)
			}
		})
	}
}

func TestDecide_MissingRiskLevelDefaultsToMedium(t *testing.T) {
	e := NewEngine(DefaultProfile())

	in := baseInput()
	in.RiskLevel = ""
	in.Analysis.Confidence = 7

	// При medium порог 6, вход разрешен
	if got := e.Decide(in); got.Action != domain.ActionOpen {
		t.Errorf("action = %q, want open when risk level missing", got.Action)
	}
}

func TestDecide_RiskGateBeforeFloor(t *testing.T) {
	e := NewEngine(DefaultProfile())

	// Уверенность 5 при экстремальном риске: срабатывает именно рыночное правило
	in := baseInput()
	in.RiskLevel = domain.RiskExtreme
	in.Analysis.Confidence = 5

	got := e.Decide(in)
	if !strings.Contains(got.Note, "extreme market risk") {
		t.Errorf("note = %q, want extreme risk rule to fire first", got.Note)
	}
}

func TestLoadProfile(t *testing.T) {
	path := t.TempDir() + "/risk.yaml"
	content := `risk_profiles:
  moderate:
    confidence_floor: 6
    high_risk_confidence: 8
    extreme_risk_confidence: 9
    min_risk_reward: 1.5
    margin_soft_cap_pct: 60
    soft_cap_confidence: 8
    margin_hard_cap_pct: 80
    reversal_confidence: 8
    reversal_confluence: 3
  conservative:
    confidence_floor: 8
    min_risk_reward: 2.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := LoadProfile(path, "")
	if err != nil {
		t.Fatalf("LoadProfile() error = %v", err)
	}
	if profile.ProfileName != "moderate" {
		t.Errorf("profile name = %q, want moderate", profile.ProfileName)
	}
	if profile != DefaultProfile() {
		t.Errorf("moderate yaml profile = %+v, want defaults", profile)
	}

	conservative, err := LoadProfile(path, "conservative")
	if err != nil {
		t.Fatal(err)
	}
	if conservative.ConfidenceFloor != 8 {
		t.Errorf("conservative floor = %d, want 8", conservative.ConfidenceFloor)
	}

	if _, err := LoadProfile(path, "reckless"); err == nil {
		t.Error("unknown profile must return error")
	}
}
