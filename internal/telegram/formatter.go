package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

var signalTitles = map[string]string{
	domain.SignalGoldenCross:    "EMA golden cross",
	domain.SignalDeathCross:     "EMA death cross",
	domain.SignalRSIOversold:    "RSI oversold",
	domain.SignalRSIOverbought:  "RSI overbought",
	domain.SignalMACDBullish:    "MACD bullish cross",
	domain.SignalMACDBearish:    "MACD bearish cross",
	domain.SignalBBBreakoutUp:   "BB upper breakout",
	domain.SignalBBBreakoutDown: "BB lower breakdown",
	domain.SignalVolumeSurge:    "volume surge",
}

// FormatSignal собирает Markdown-сообщение о сигнале и принятом решении
func FormatSignal(signal domain.Signal, analysis domain.AiAnalysis) string {
	dirEmoji := "🟡"
	switch analysis.Direction {
	case domain.DirectionLong:
		dirEmoji = "🟢"
	case domain.DirectionShort:
		dirEmoji = "🔴"
	}

	var action string
	switch analysis.DecisionAction {
	case domain.ActionOpen:
		action = "✅ Position opened"
	case domain.ActionCloseAndOpen:
		action = "🔄 Reversed position"
	default:
		action = "⏸ Skipped"
	}

	title, ok := signalTitles[signal.Type]
	if !ok {
		title = signal.Type
	}

	meta := fmt.Sprintf("📊 Confidence: %d/10", analysis.Confidence)
	if analysis.RiskReward > 0 {
		meta += fmt.Sprintf(" | R:R %.1f", analysis.RiskReward)
	}
	if analysis.Confluence > 0 {
		meta += fmt.Sprintf(" | Confluence %d/5", analysis.Confluence)
	}
	if analysis.Timeframe != "" {
		meta += " | " + analysis.Timeframe
	}

	ind := signal.Indicators
	emaState := "bearish stack"
	if ind.EMA7 > ind.EMA25 {
		emaState = "bullish stack"
	}
	volStr := "N/A"
	if ind.VolumeRatio > 0 {
		volStr = fmt.Sprintf("%.1fx", ind.VolumeRatio)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* — %s\n\n", dirEmoji, signal.Symbol, title)
	fmt.Fprintf(&b, "💰 Price: `$%.2f`\n", signal.Price)
	b.WriteString(meta + "\n\n")
	fmt.Fprintf(&b, "📈 Entry: `$%.2f`\n", analysis.EntryPrice)
	fmt.Fprintf(&b, "🛑 Stop: `$%.2f`\n", analysis.StopLoss)
	fmt.Fprintf(&b, "🎯 Target: `$%.2f`\n\n", analysis.TakeProfit)
	fmt.Fprintf(&b, "📉 RSI: %.1f | Volume: %s | EMA: %s\n\n", ind.RSI, volStr, emaState)
	if analysis.Reasoning != "" {
		fmt.Fprintf(&b, "🤖 Analysis: %s\n\n", analysis.Reasoning)
	}
	b.WriteString(action)
	if analysis.DecisionNote != "" {
		b.WriteString(" — " + analysis.DecisionNote)
	}
	fmt.Fprintf(&b, "\n\n🕐 %s", time.Unix(signal.Time, 0).UTC().Format("2006-01-02 15:04:05"))

	return b.String()
}

// FormatTradeClosed собирает сообщение о закрытии сделки
func FormatTradeClosed(trade domain.Trade) string {
	emoji := "🟢"
	if trade.RealizedPnl < 0 {
		emoji = "🔴"
	}

	reasons := map[string]string{
		domain.CloseReasonStopLoss:     "stop loss",
		domain.CloseReasonTakeProfit:   "take profit",
		domain.CloseReasonTrailingStop: "trailing stop",
		domain.CloseReasonLiquidation:  "liquidation",
		domain.CloseReasonManual:       "manual close",
	}
	reason, ok := reasons[trade.CloseReason]
	if !ok {
		reason = trade.CloseReason
	}

	return fmt.Sprintf("%s *%s* %s closed (%s)\n\n"+
		"Entry: `$%.2f` → Exit: `$%.2f`\n"+
		"PnL: `%+.2f USDT` (%+.1f%%)",
		emoji, trade.Symbol, trade.Direction, reason,
		trade.EntryPrice, trade.ExitPrice,
		trade.RealizedPnl, trade.RealizedPnlPct)
}
