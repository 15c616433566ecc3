package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

const reportSystemPrompt = `You are a senior crypto portfolio strategist focused on futures trading and macro analysis. You combine market sentiment, price action and the macro environment into actionable strategy guidance. Reply strictly in JSON format with no other output.`

// ReportGenerator строит периодический strategy report: рыночная среда,
// уровень риска и торговый уклон для decision engine
type ReportGenerator struct {
	client *Client
}

// NewReportGenerator создает генератор отчетов поверх клиента
func NewReportGenerator(client *Client) *ReportGenerator {
	return &ReportGenerator{client: client}
}

// Generate запрашивает у модели операционный отчет по текущему сентименту.
// prices — последние mark-цены отслеживаемых символов.
func (g *ReportGenerator) Generate(ctx context.Context, fearGreed domain.FearGreed, prices map[string]float64) (domain.StrategyReport, error) {
	userPrompt := buildReportPrompt(fearGreed, prices)

	content, err := g.client.Chat(ctx, reportSystemPrompt, userPrompt, 1200)
	if err != nil {
		return domain.StrategyReport{}, err
	}

	parsed, err := parseReport(content)
	if err != nil {
		return domain.StrategyReport{}, err
	}

	parsed.ID = "report-" + uuid.New().String()
	parsed.GeneratedAt = time.Now().UnixMilli()
	parsed.FearGreed = fearGreed
	return parsed, nil
}

func interpretFearGreed(value int) string {
	switch {
	case value <= 25:
		return "extreme fear, historically a bottoming zone but wait for stabilization"
	case value <= 45:
		return "fear zone, heavy pessimism, be careful with longs"
	case value <= 55:
		return "neutral zone, no clear direction, wait for a catalyst"
	case value <= 75:
		return "greed zone, market is euphoric, watch for topping risk"
	default:
		return "extreme greed, overheated market, cut exposure or consider shorts"
	}
}

func buildReportPrompt(fearGreed domain.FearGreed, prices map[string]float64) string {
	var b strings.Builder

	b.WriteString("Generate today's trading strategy report from the data below.\n\n")
	fmt.Fprintf(&b, "## Market sentiment\n")
	fmt.Fprintf(&b, "Fear & Greed index: %d/100 (%s)\n", fearGreed.Value, fearGreed.Classification)
	fmt.Fprintf(&b, "Reading: %s\n\n", interpretFearGreed(fearGreed.Value))

	if len(prices) > 0 {
		symbols := make([]string, 0, len(prices))
		for s := range prices {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		b.WriteString("## Tracked market prices\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "%s: %.2f USDT\n", s, prices[s])
		}
		b.WriteString("\n")
	}

	b.WriteString(`Reply strictly with this JSON shape:
{
  "sentiment": "bullish" | "bearish" | "neutral",
  "riskLevel": "low" | "medium" | "high" | "extreme",
  "macroFactors": "macro environment summary, max 120 words",
  "tradingBias": "today's bias, direction and key symbols, max 60 words",
  "summary": "overall market read with risks and concrete strategy, max 250 words"
}`)

	return b.String()
}

func parseReport(content string) (domain.StrategyReport, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return domain.StrategyReport{}, err
	}

	var report domain.StrategyReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return domain.StrategyReport{}, fmt.Errorf("%w: malformed report JSON: %v", domain.ErrAdvisoryFailed, err)
	}

	if report.Sentiment == "" {
		report.Sentiment = domain.SentimentNeutral
	}
	if report.RiskLevel == "" {
		report.RiskLevel = domain.RiskMedium
	}

	return report, nil
}

// StrategyContext сворачивает отчет в короткий контекст для промпта аналитика
func StrategyContext(report *domain.StrategyReport) string {
	if report == nil {
		return ""
	}
	return fmt.Sprintf("Sentiment: %s | Risk level: %s | Bias: %s | Fear&Greed: %d (%s)",
		report.Sentiment, report.RiskLevel, report.TradingBias,
		report.FearGreed.Value, report.FearGreed.Classification)
}
