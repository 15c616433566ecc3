// Package orchestrator связывает рыночные данные, детектор сигналов,
// AI-аналитика, decision engine и ledger в единый торговый пайплайн.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/account"
	"github.com/kirillm/opentrade-bot/internal/ai"
	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/internal/policy"
	"github.com/kirillm/opentrade-bot/internal/signals"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

const (
	maxCandles     = 500
	historyLimit   = 200
	queueSize      = 64
	analysisPause  = 800 * time.Millisecond
	advisoryBudget = 35 * time.Second

	// Размер позиции: 10% свободного баланса, но не больше 500 USDT
	// и не меньше 10 USDT
	sizeBalancePct = 0.10
	maxTradeSize   = 500.0
	minTradeSize   = 10.0
)

// Advisor запрашивает AI-рекомендацию по сигналу
type Advisor interface {
	AnalyzeSignal(ctx context.Context, signal domain.Signal, change1h, change24h float64, strategyContext string) (domain.AiAnalysis, error)
}

// Intel отдает рыночный контекст для промптов и decision engine
type Intel interface {
	Report() *domain.StrategyReport
	RiskLevel() string
}

// Notifier отправляет уведомления о решениях
type Notifier interface {
	NotifySignal(signal domain.Signal, analysis domain.AiAnalysis)
}

// MarketData источник исторических свечей и стримов
type MarketData interface {
	HistoricalCandles(ctx context.Context, symbol string, limit int) ([]domain.Candle, error)
	StreamKlines(ctx context.Context, symbol string, handler func(symbol string, candle domain.Candle, closed bool))
	StreamPrices(ctx context.Context, symbol string, handler func(symbol string, price float64))
}

// Config параметры пайплайна
type Config struct {
	Symbols  []string
	Mode     string
	Leverage int

	// Пауза перед каждым AI-запросом, защита от rate limit
	AnalysisPause time.Duration
}

// Orchestrator владеет кэшем свечей и очередью анализа сигналов
type Orchestrator struct {
	cfg      Config
	ledger   *account.Ledger
	detector *signals.Detector
	policy   *policy.Engine
	advisor  Advisor
	intel    Intel
	notifier Notifier
	market   MarketData

	mu        sync.Mutex
	candles   map[string][]domain.Candle
	processed map[string]struct{}
	autoTrade bool

	queue chan domain.Signal
}

// New создает оркестратор. notifier может быть nil.
func New(cfg Config, ledger *account.Ledger, detector *signals.Detector, pol *policy.Engine, advisor Advisor, intel Intel, notifier Notifier, market MarketData) *Orchestrator {
	if cfg.AnalysisPause == 0 {
		cfg.AnalysisPause = analysisPause
	}
	return &Orchestrator{
		cfg:       cfg,
		ledger:    ledger,
		detector:  detector,
		policy:    pol,
		advisor:   advisor,
		intel:     intel,
		notifier:  notifier,
		market:    market,
		candles:   make(map[string][]domain.Candle),
		processed: make(map[string]struct{}),
		autoTrade: true,
		queue:     make(chan domain.Signal, queueSize),
	}
}

// Run загружает историю, запускает стримы и консьюмер очереди.
// Блокируется до отмены контекста.
func (o *Orchestrator) Run(ctx context.Context) error {
	for _, symbol := range o.cfg.Symbols {
		candles, err := o.market.HistoricalCandles(ctx, symbol, historyLimit)
		if err != nil {
			return fmt.Errorf("load history for %s: %w", symbol, err)
		}
		o.mu.Lock()
		o.candles[symbol] = candles
		o.mu.Unlock()

		logger.Info("history loaded", zap.String("symbol", symbol), zap.Int("candles", len(candles)))
	}

	var wg sync.WaitGroup
	for _, symbol := range o.cfg.Symbols {
		symbol := symbol
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.market.StreamKlines(ctx, symbol, o.handleKline)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.market.StreamPrices(ctx, symbol, o.handlePrice)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.consumeQueue(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// SetAutoTrade включает или выключает исполнение решений.
// При выключенном режиме анализы записываются, но сделки не открываются.
func (o *Orchestrator) SetAutoTrade(enabled bool) {
	o.mu.Lock()
	o.autoTrade = enabled
	o.mu.Unlock()

	logger.Info("auto-trade toggled", zap.Bool("enabled", enabled))
}

// AutoTrade возвращает текущее состояние переключателя
func (o *Orchestrator) AutoTrade() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.autoTrade
}

// handlePrice ценовой тик: ledger сам сериализует мутации
func (o *Orchestrator) handlePrice(symbol string, price float64) {
	o.ledger.Tick(symbol, price)
}

// handleKline обновляет кэш свечей; детекция только по закрытым свечам
func (o *Orchestrator) handleKline(symbol string, candle domain.Candle, closed bool) {
	o.mu.Lock()
	cache := o.candles[symbol]
	if n := len(cache); n > 0 && cache[n-1].Time == candle.Time {
		cache[n-1] = candle
	} else {
		cache = append(cache, candle)
		if len(cache) > maxCandles {
			cache = cache[len(cache)-maxCandles:]
		}
	}
	o.candles[symbol] = cache

	var detected []domain.Signal
	if closed {
		detected = o.detector.Detect(symbol, cache)
	}
	o.mu.Unlock()

	for _, sig := range detected {
		o.ledger.AddSignal(sig)
		o.enqueue(sig)
	}
}

// enqueue ставит сигнал в очередь анализа, подавляя дубликаты по id.
// Переполненная очередь роняет сигнал с предупреждением, пайплайн не ждет.
func (o *Orchestrator) enqueue(sig domain.Signal) {
	o.mu.Lock()
	if _, seen := o.processed[sig.ID]; seen {
		o.mu.Unlock()
		return
	}
	o.processed[sig.ID] = struct{}{}
	o.mu.Unlock()

	select {
	case o.queue <- sig:
		logger.Info("signal queued",
			zap.String("symbol", sig.Symbol),
			zap.String("type", sig.Type),
			zap.Float64("price", sig.Price))
	default:
		logger.Warn("analysis queue full, dropping signal",
			zap.String("id", sig.ID), zap.String("type", sig.Type))
	}
}

// consumeQueue единственный консьюмер: строго FIFO, пауза перед каждым запросом
func (o *Orchestrator) consumeQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-o.queue:
			select {
			case <-ctx.Done():
				return
			case <-time.After(o.cfg.AnalysisPause):
			}
			o.analyzeSignal(ctx, sig)
		}
	}
}

func (o *Orchestrator) analyzeSignal(ctx context.Context, sig domain.Signal) {
	change1h, change24h := o.priceChanges(sig.Symbol, sig.Price)
	strategyContext := o.strategyContext()

	reqCtx, cancel := context.WithTimeout(ctx, advisoryBudget)
	defer cancel()

	analysis, err := o.advisor.AnalyzeSignal(reqCtx, sig, change1h, change24h, strategyContext)
	if err != nil {
		// Сигнал остается без анализа, пайплайн продолжает работу
		logger.Error("signal analysis failed",
			zap.String("id", sig.ID), zap.String("symbol", sig.Symbol), zap.Error(err))
		return
	}

	o.ledger.AttachAnalysis(sig.ID, analysis)

	if !o.AutoTrade() {
		logger.Info("auto-trade disabled, analysis recorded only", zap.String("id", sig.ID))
		return
	}

	o.applyDecision(sig, analysis)
}

// priceChanges процентные изменения цены за 1ч и 24ч по кэшу минутных свечей
func (o *Orchestrator) priceChanges(symbol string, currentPrice float64) (change1h, change24h float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	cache := o.candles[symbol]
	if len(cache) == 0 {
		return 0, 0
	}

	ref := func(back int) float64 {
		idx := len(cache) - back
		if idx < 0 {
			idx = 0
		}
		return cache[idx].Close
	}

	if c := ref(60); c > 0 {
		change1h = (currentPrice - c) / c * 100
	}
	if c := ref(1440); c > 0 {
		change24h = (currentPrice - c) / c * 100
	}
	return change1h, change24h
}

func (o *Orchestrator) strategyContext() string {
	report := o.intel.Report()
	if report == nil {
		return ""
	}

	modeStr := "spot (no leverage)"
	if o.cfg.Mode == domain.ModeFutures {
		modeStr = fmt.Sprintf("futures (%dx leverage)", o.cfg.Leverage)
	}
	return fmt.Sprintf("Trading mode: %s | %s", modeStr, ai.StrategyContext(report))
}

// applyDecision прогоняет анализ через decision engine и исполняет результат
func (o *Orchestrator) applyDecision(sig domain.Signal, analysis domain.AiAnalysis) {
	snap := o.ledger.Snapshot()

	decision := o.policy.Decide(policy.Input{
		Analysis:  analysis,
		Signal:    sig,
		Account:   snap.Account,
		Positions: snap.Positions,
		Mode:      o.cfg.Mode,
		RiskLevel: o.intel.RiskLevel(),
	})

	logger.Info("trade decision",
		zap.String("signal", sig.ID),
		zap.String("action", decision.Action),
		zap.String("note", decision.Note))

	if decision.Action == domain.ActionSkip {
		analysis.DecisionAction = domain.ActionSkip
		analysis.DecisionNote = decision.Note
		o.ledger.AttachAnalysis(sig.ID, analysis)
		return
	}

	if decision.Action == domain.ActionCloseAndOpen {
		for _, pos := range snap.Positions {
			if pos.Symbol == sig.Symbol && pos.Mode == o.cfg.Mode {
				o.ledger.ClosePositionByID(pos.ID, domain.CloseReasonManual)
				break
			}
		}
	}

	o.openFromAnalysis(sig, analysis, decision)
}

func (o *Orchestrator) openFromAnalysis(sig domain.Signal, analysis domain.AiAnalysis, decision policy.Decision) {
	fresh := o.ledger.Snapshot()

	tradeSize := fresh.Account.Balance * sizeBalancePct
	if tradeSize > maxTradeSize {
		tradeSize = maxTradeSize
	}
	if tradeSize < minTradeSize {
		analysis.DecisionAction = domain.ActionSkip
		analysis.DecisionNote = decision.Note + " (trade size below minimum, skipped)"
		o.ledger.AttachAnalysis(sig.ID, analysis)
		return
	}

	leverage := 1
	if o.cfg.Mode == domain.ModeFutures {
		leverage = o.cfg.Leverage
	}

	// Вход по живой цене: цена из анализа могла устареть за время запроса
	entry := o.ledger.MarkPrice(sig.Symbol)
	if entry == 0 {
		entry = analysis.EntryPrice
	}
	if entry == 0 {
		entry = sig.Price
	}

	atr := sig.Indicators.ATR
	if atr <= 0 {
		atr = entry * 0.005
	}
	isLong := analysis.Direction == domain.DirectionLong

	// Стоп должен быть с правильной стороны и не ближе 0.5 ATR от входа,
	// иначе сработает на рыночном шуме
	slDistance := entry - analysis.StopLoss
	if !isLong {
		slDistance = analysis.StopLoss - entry
	}
	validSL := analysis.StopLoss > 0 && slDistance >= atr*0.5

	// Тейк с правильной стороны и не ближе 1 ATR
	tpDistance := analysis.TakeProfit - entry
	if !isLong {
		tpDistance = entry - analysis.TakeProfit
	}
	validTP := analysis.TakeProfit > 0 && tpDistance >= atr

	params := domain.OpenPositionParams{
		Symbol:       sig.Symbol,
		Mode:         o.cfg.Mode,
		Direction:    analysis.Direction,
		Size:         tradeSize,
		Leverage:     leverage,
		EntryPrice:   entry,
		TrailingStop: atr,
	}
	if validSL {
		params.StopLoss = analysis.StopLoss
	}
	if validTP {
		params.TakeProfit = analysis.TakeProfit
	}

	_, err := o.ledger.OpenPosition(params)

	var sanitized []string
	if !validSL && analysis.StopLoss > 0 {
		sanitized = append(sanitized, "SL invalid, discarded")
	}
	if !validTP && analysis.TakeProfit > 0 {
		sanitized = append(sanitized, "TP invalid, discarded")
	}

	// Анализ перезаписывается фактическими значениями сделки
	analysis.EntryPrice = entry
	if !validSL {
		analysis.StopLoss = 0
	}
	if !validTP {
		analysis.TakeProfit = 0
	}
	analysis.AutoTraded = err == nil
	analysis.DecisionAction = decision.Action
	analysis.DecisionNote = decision.Note
	if len(sanitized) > 0 {
		analysis.DecisionNote += " (" + joinNotes(sanitized) + ")"
	}
	if err != nil {
		analysis.DecisionAction = domain.ActionSkip
		logger.Warn("position open rejected", zap.String("signal", sig.ID), zap.Error(err))
	}

	o.ledger.AttachAnalysis(sig.ID, analysis)

	if o.notifier != nil {
		o.notifier.NotifySignal(sig, analysis)
	}
}

func joinNotes(notes []string) string {
	out := notes[0]
	for _, n := range notes[1:] {
		out += ", " + n
	}
	return out
}
