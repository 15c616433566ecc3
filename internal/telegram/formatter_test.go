package telegram

import (
	"strings"
	"testing"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

func TestFormatSignal(t *testing.T) {
	signal := domain.Signal{
		Symbol: "BTCUSDT",
		Type:   domain.SignalGoldenCross,
		Time:   1756700000,
		Price:  50000,
		Indicators: domain.IndicatorSnapshot{
			EMA7: 50100, EMA25: 49900, RSI: 62.5, VolumeRatio: 1.8,
		},
	}
	analysis := domain.AiAnalysis{
		Direction:      domain.DirectionLong,
		Confidence:     8,
		EntryPrice:     50000,
		StopLoss:       49400,
		TakeProfit:     51500,
		Confluence:     4,
		RiskReward:     2.5,
		Timeframe:      "short",
		Reasoning:      "trend and volume agree",
		DecisionAction: domain.ActionOpen,
		DecisionNote:   "open long, confidence 8/10",
	}

	msg := FormatSignal(signal, analysis)

	for _, want := range []string{
		"🟢 *BTCUSDT* — EMA golden cross",
		"💰 Price: `$50000.00`",
		"Confidence: 8/10",
		"R:R 2.5",
		"Confluence 4/5",
		"📈 Entry: `$50000.00`",
		"🛑 Stop: `$49400.00`",
		"🎯 Target: `$51500.00`",
		"RSI: 62.5",
		"Volume: 1.8x",
		"bullish stack",
		"trend and volume agree",
		"✅ Position opened — open long, confidence 8/10",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q\n%s", want, msg)
		}
	}
}

func TestFormatSignal_SkipShort(t *testing.T) {
	signal := domain.Signal{
		Symbol: "ETHUSDT",
		Type:   domain.SignalDeathCross,
		Time:   1756700000,
		Price:  3000,
		Indicators: domain.IndicatorSnapshot{
			EMA7: 2990, EMA25: 3010, RSI: 35,
		},
	}
	analysis := domain.AiAnalysis{
		Direction:      domain.DirectionShort,
		Confidence:     5,
		DecisionAction: domain.ActionSkip,
		DecisionNote:   "confidence 5/10 too low, skipping",
	}

	msg := FormatSignal(signal, analysis)

	if !strings.Contains(msg, "🔴 *ETHUSDT* — EMA death cross") {
		t.Errorf("message = %s", msg)
	}
	if !strings.Contains(msg, "⏸ Skipped — confidence 5/10 too low") {
		t.Errorf("message missing skip note\n%s", msg)
	}
	if !strings.Contains(msg, "bearish stack") {
		t.Errorf("message missing EMA state\n%s", msg)
	}
	if !strings.Contains(msg, "Volume: N/A") {
		t.Errorf("zero volume ratio must render as N/A\n%s", msg)
	}
}

func TestFormatTradeClosed(t *testing.T) {
	trade := domain.Trade{
		Symbol:         "BTCUSDT",
		Direction:      domain.DirectionLong,
		EntryPrice:     50000,
		ExitPrice:      51500,
		RealizedPnl:    300,
		RealizedPnlPct: 30,
		CloseReason:    domain.CloseReasonTakeProfit,
	}

	msg := FormatTradeClosed(trade)

	for _, want := range []string{"🟢", "take profit", "$50000.00", "$51500.00", "+300.00 USDT", "+30.0%"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q\n%s", want, msg)
		}
	}

	trade.RealizedPnl = -50
	trade.RealizedPnlPct = -5
	trade.CloseReason = domain.CloseReasonStopLoss
	msg = FormatTradeClosed(trade)
	if !strings.Contains(msg, "🔴") || !strings.Contains(msg, "stop loss") {
		t.Errorf("loss message = %s", msg)
	}
}
