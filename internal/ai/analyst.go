package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

const analystSystemPrompt = `You are a top-tier crypto futures trader with 10 years of hands-on experience in scalping and swing trading.

Your analysis framework, in order of importance:
1. Trend: EMA alignment (EMA7>EMA25 = bullish, otherwise bearish), price position relative to Bollinger Bands
2. Momentum: MACD direction and RSI zone, volume confirmation (volume ratio >1.5x counts as a valid signal)
3. Volatility: use ATR for stop placement (long stop = entry - 1.5*ATR, short stop = entry + 1.5*ATR)
4. Risk/reward: target at least 1:2 (take-profit distance >= 2x stop distance)
5. Sentiment: adjust position bias using the fear & greed index and macro environment

Confidence scoring (1-10):
- 8-10: multiple indicators confluent, clear trend, volume confirms, enter directly
- 6-7: main indicators support the trade but some uncertainty remains, enter cautiously
- 4-5: weak or conflicting signals, better to wait
- 1-3: counter-trend, extreme risk, stay in cash

Reply strictly in JSON format with no other output.`

var signalLabels = map[string]string{
	domain.SignalGoldenCross:    "EMA7 crossed above EMA25, golden cross (short-term trend turning up)",
	domain.SignalDeathCross:     "EMA7 crossed below EMA25, death cross (short-term trend turning down)",
	domain.SignalRSIOversold:    "RSI in oversold zone (<30), potential oversold bounce",
	domain.SignalRSIOverbought:  "RSI in overbought zone (>70), potential pullback",
	domain.SignalMACDBullish:    "MACD histogram bullish cross, momentum turning long",
	domain.SignalMACDBearish:    "MACD histogram bearish cross, momentum turning short",
	domain.SignalBBBreakoutUp:   "price broke above the upper Bollinger Band on volume, strong bullish signal",
	domain.SignalBBBreakoutDown: "price broke below the lower Bollinger Band on volume, strong bearish signal",
	domain.SignalVolumeSurge:    "abnormal volume spike (>3x average), institutional money stepping in",
}

// Analyst строит промпт по сигналу и разбирает ответ модели
type Analyst struct {
	client *Client
}

// NewAnalyst создает аналитика поверх клиента
func NewAnalyst(client *Client) *Analyst {
	return &Analyst{client: client}
}

// AnalyzeSignal запрашивает у модели торговую рекомендацию по сигналу.
// strategyContext — краткое описание рыночной среды из strategy report,
// пустая строка допустима.
func (a *Analyst) AnalyzeSignal(ctx context.Context, signal domain.Signal, change1h, change24h float64, strategyContext string) (domain.AiAnalysis, error) {
	userPrompt := buildSignalPrompt(signal, change1h, change24h, strategyContext)

	content, err := a.client.Chat(ctx, analystSystemPrompt, userPrompt, 800)
	if err != nil {
		return domain.AiAnalysis{}, err
	}

	return ParseAnalysis(content)
}

func buildSignalPrompt(signal domain.Signal, change1h, change24h float64, strategyContext string) string {
	ind := signal.Indicators

	trend := "bearish alignment (EMA7<EMA25)"
	if ind.EMA7 > ind.EMA25 {
		trend = "bullish alignment (EMA7>EMA25)"
	}

	macdHist := ind.MACD - ind.MACDSignal
	momentum := fmt.Sprintf("bearish momentum (MACD hist %.4f)", macdHist)
	if macdHist > 0 {
		momentum = fmt.Sprintf("bullish momentum (MACD hist %.4f)", macdHist)
	}

	rsiZone := "neutral zone"
	if ind.RSI < 30 {
		rsiZone = "oversold"
	} else if ind.RSI > 70 {
		rsiZone = "overbought"
	}

	label, ok := signalLabels[signal.Type]
	if !ok {
		label = signal.Type
	}

	var b strings.Builder
	fmt.Fprintf(&b, "== Signal analysis request ==\n")
	fmt.Fprintf(&b, "Pair: %s | current price: %.2f USDT\n", signal.Symbol, signal.Price)
	fmt.Fprintf(&b, "Triggered signal: %s\n\n", label)
	fmt.Fprintf(&b, "== Technical overview ==\n")
	fmt.Fprintf(&b, "Trend: %s\n", trend)
	fmt.Fprintf(&b, "  EMA7: %.2f | EMA25: %.2f\n", ind.EMA7, ind.EMA25)
	fmt.Fprintf(&b, "  Bollinger: upper=%.2f | middle=%.2f | lower=%.2f\n", ind.BBUpper, ind.BBMiddle, ind.BBLower)
	fmt.Fprintf(&b, "  Position in bands: %s\n", bbPosition(signal.Price, ind.BBUpper, ind.BBLower))
	fmt.Fprintf(&b, "Momentum:\n")
	fmt.Fprintf(&b, "  RSI(14): %.1f (%s)\n", ind.RSI, rsiZone)
	fmt.Fprintf(&b, "  MACD: %s\n", momentum)
	fmt.Fprintf(&b, "Volume and volatility:\n")
	fmt.Fprintf(&b, "  Volume ratio: %.1fx average\n", ind.VolumeRatio)
	fmt.Fprintf(&b, "  ATR(14): %.2f USDT\n", ind.ATR)
	if ind.ATR > 0 {
		fmt.Fprintf(&b, "  ATR reference stops: long=%.2f | short=%.2f\n",
			signal.Price-ind.ATR*1.5, signal.Price+ind.ATR*1.5)
	}
	fmt.Fprintf(&b, "Price change: 1h %+.2f%% | 24h %+.2f%%\n", change1h, change24h)
	if strategyContext != "" {
		fmt.Fprintf(&b, "\n== Market environment ==\n%s\n", strategyContext)
	}
	b.WriteString(`
== Requirements ==
1. Check whether the signal agrees with the trend direction
2. Confirm volume supports the signal
3. Derive a dynamic stop from ATR (1.5x ATR suggested)
4. Ensure risk/reward >= 1:2
5. Report confluence (number of agreeing indicators, 0-5)

Reply strictly with this JSON shape:
{
  "direction": "long" | "short" | "hold",
  "confidence": 1-10,
  "entryPrice": number,
  "stopLoss": number,
  "takeProfit": number,
  "confluence": 0-5,
  "riskReward": number,
  "timeframe": "short" | "medium" | "long",
  "reasoning": "concise analysis covering trend, volume and risk/reward"
}`)

	return b.String()
}

func bbPosition(price, upper, lower float64) string {
	if upper <= 0 || lower <= 0 {
		return "insufficient data"
	}
	bandwidth := upper - lower
	if bandwidth <= 0 {
		return "bands squeezed"
	}
	pct := (price - lower) / bandwidth * 100
	switch {
	case pct > 90:
		return fmt.Sprintf("near upper band (%.0f%%)", pct)
	case pct > 60:
		return fmt.Sprintf("upper half (%.0f%%)", pct)
	case pct > 40:
		return fmt.Sprintf("near middle band (%.0f%%)", pct)
	case pct > 10:
		return fmt.Sprintf("lower half (%.0f%%)", pct)
	default:
		return fmt.Sprintf("near lower band (%.0f%%)", pct)
	}
}

// ParseAnalysis извлекает JSON из ответа модели и валидирует поля.
// Модель может обернуть JSON в пояснительный текст или code fence.
func ParseAnalysis(content string) (domain.AiAnalysis, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return domain.AiAnalysis{}, err
	}

	var analysis domain.AiAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return domain.AiAnalysis{}, fmt.Errorf("%w: malformed analysis JSON: %v", domain.ErrAdvisoryFailed, err)
	}

	switch analysis.Direction {
	case domain.DirectionLong, domain.DirectionShort, domain.DirectionHold:
	default:
		return domain.AiAnalysis{}, fmt.Errorf("%w: invalid direction %q", domain.ErrAdvisoryFailed, analysis.Direction)
	}
	if analysis.Confidence < 1 || analysis.Confidence > 10 {
		return domain.AiAnalysis{}, fmt.Errorf("%w: confidence %d out of range", domain.ErrAdvisoryFailed, analysis.Confidence)
	}

	return analysis, nil
}

// extractJSON возвращает подстроку от первой { до последней }
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object in response", domain.ErrAdvisoryFailed)
	}
	return content[start : end+1], nil
}
