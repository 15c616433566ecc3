// Package policy реализует decision engine: правила, решающие, превращается
// ли AI-рекомендация в сделку. Правила проверяются строго по порядку,
// первое сработавшее определяет результат.
package policy

import (
	"fmt"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// Input все данные, нужные для принятия решения по одному сигналу
type Input struct {
	Analysis  domain.AiAnalysis
	Signal    domain.Signal
	Account   domain.AccountInfo
	Positions []domain.Position
	Mode      string
	RiskLevel string // из strategy report, medium при отсутствии
}

// Decision результат decision engine
type Decision struct {
	Action string
	Note   string
}

// Engine применяет профиль риска к AI-рекомендациям
type Engine struct {
	profile RiskProfile
}

// NewEngine создает decision engine с заданным профилем
func NewEngine(profile RiskProfile) *Engine {
	return &Engine{profile: profile}
}

// Decide прогоняет рекомендацию через правила профиля в порядке:
// hold, рыночный риск, базовая уверенность, R:R, загрузка маржи,
// существующая позиция (та же сторона или разворот), иначе вход.
func (e *Engine) Decide(in Input) Decision {
	p := e.profile
	a := in.Analysis

	if a.Direction == domain.DirectionHold {
		return Decision{domain.ActionSkip, "AI recommends holding off, no entry"}
	}

	riskLevel := in.RiskLevel
	if riskLevel == "" {
		riskLevel = domain.RiskMedium
	}
	if riskLevel == domain.RiskExtreme && a.Confidence < p.ExtremeRiskConfidence {
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"extreme market risk, confidence %d/10 below required %d", a.Confidence, p.ExtremeRiskConfidence)}
	}
	if riskLevel == domain.RiskHigh && a.Confidence < p.HighRiskConfidence {
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"high market risk, confidence %d/10 below required %d", a.Confidence, p.HighRiskConfidence)}
	}

	if a.Confidence < p.ConfidenceFloor {
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"confidence %d/10 too low, skipping", a.Confidence)}
	}

	if a.RiskReward > 0 && a.RiskReward < p.MinRiskReward {
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"R:R %.1f:1 below minimum %.1f:1, skipping", a.RiskReward, p.MinRiskReward)}
	}

	marginPct := 0.0
	if in.Account.Equity > 0 {
		marginPct = in.Account.UsedMargin / in.Account.Equity * 100
	}
	if marginPct > p.MarginSoftCapPct && a.Confidence < p.SoftCapConfidence {
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"margin already %.0f%% of equity, confidence %d+ required to add", marginPct, p.SoftCapConfidence)}
	}
	if marginPct > p.MarginHardCapPct {
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"margin load %.0f%% too heavy, refusing entry", marginPct)}
	}

	var existing *domain.Position
	for i := range in.Positions {
		if in.Positions[i].Symbol == in.Signal.Symbol && in.Positions[i].Mode == in.Mode {
			existing = &in.Positions[i]
			break
		}
	}

	if existing != nil {
		if existing.Direction == a.Direction {
			return Decision{domain.ActionSkip, fmt.Sprintf(
				"already running %s position (%+.2f USDT), letting it ride",
				existing.Direction, existing.UnrealizedPnl)}
		}
		if a.Confidence >= p.ReversalConfidence && a.Confluence >= p.ReversalConfluence {
			return Decision{domain.ActionCloseAndOpen, fmt.Sprintf(
				"strong reversal signal (%d/10, %d indicators confluent), closing and flipping %s",
				a.Confidence, a.Confluence, a.Direction)}
		}
		return Decision{domain.ActionSkip, fmt.Sprintf(
			"opposite %s signal too weak (confidence %d/10, confluence %d/5), keeping position",
			a.Direction, a.Confidence, a.Confluence)}
	}

	note := fmt.Sprintf("open %s, confidence %d/10", a.Direction, a.Confidence)
	if a.RiskReward > 0 {
		note += fmt.Sprintf(", R:R %.1f", a.RiskReward)
	}
	if a.Confluence > 0 {
		note += fmt.Sprintf(", confluence %d/5", a.Confluence)
	}
	return Decision{domain.ActionOpen, note}
}
