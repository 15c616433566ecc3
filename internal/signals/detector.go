// Package signals реализует детектор технических сигналов по серии свечей.
package signals

import (
	"fmt"
	"math"
	"sync"

	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/internal/indicators"
)

const (
	// MinCandles минимальное количество свечей для детекции
	MinCandles = 35
	// CooldownIndexes один и тот же тип сигнала не срабатывает повторно
	// в пределах 30 индексов для одной пары
	CooldownIndexes = 30
)

// Detector хранит состояние кулдаунов по парам (символ, тип сигнала).
// Состояние живет до перезапуска процесса; владеет им orchestrator.
type Detector struct {
	mu        sync.Mutex
	lastFired map[string]int // ключ: symbol_type -> индекс последнего срабатывания
}

// NewDetector создает новый детектор с пустым состоянием кулдаунов
func NewDetector() *Detector {
	return &Detector{
		lastFired: make(map[string]int),
	}
}

func cooldownKey(symbol, sigType string) string {
	return symbol + "_" + sigType
}

func (d *Detector) onCooldown(symbol, sigType string, index int) bool {
	last, ok := d.lastFired[cooldownKey(symbol, sigType)]
	if !ok {
		return false
	}
	return index-last < CooldownIndexes
}

func (d *Detector) markFired(symbol, sigType string, index int) {
	d.lastFired[cooldownKey(symbol, sigType)] = index
}

// Detect сканирует последнюю свечу серии на предмет сигналов.
// Индикаторы считаются по всей серии, условия проверяются только на индексах
// i и i-1. При недостатке истории возвращает nil без ошибки.
func (d *Detector) Detect(symbol string, candles []domain.Candle) []domain.Signal {
	if len(candles) < MinCandles {
		return nil
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	ema7 := indicators.EMA(closes, 7)
	ema25 := indicators.EMA(closes, 25)
	rsi := indicators.RSI(closes, 14)
	macd, macdSignal, _ := indicators.MACD(closes)
	bbUpper, bbMiddle, bbLower, _ := indicators.BollingerBands(closes, 20, 2)
	atr := indicators.ATR(candles, 14)
	volRatio := indicators.VolumeRatio(volumes, 20)

	i := len(candles) - 1
	prev := i - 1

	// Недостаточный прогрев базовых индикаторов — сигналов нет
	if math.IsNaN(ema7[i]) || math.IsNaN(ema25[i]) || math.IsNaN(ema7[prev]) || math.IsNaN(ema25[prev]) {
		return nil
	}
	if math.IsNaN(rsi[i]) {
		return nil
	}

	price := candles[i].Close
	prevPrice := candles[prev].Close
	now := candles[i].Time

	snapshot := domain.IndicatorSnapshot{
		EMA7:        ema7[i],
		EMA25:       ema25[i],
		RSI:         rsi[i],
		MACD:        nanToZero(macd[i]),
		MACDSignal:  nanToZero(macdSignal[i]),
		BBUpper:     nanToZero(bbUpper[i]),
		BBMiddle:    nanToZero(bbMiddle[i]),
		BBLower:     nanToZero(bbLower[i]),
		ATR:         nanToZero(atr[i]),
		VolumeRatio: nanToOne(volRatio[i]),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var result []domain.Signal

	fire := func(sigType string) {
		d.markFired(symbol, sigType, i)
		result = append(result, domain.Signal{
			ID:         fmt.Sprintf("%s_%s_%d", symbol, sigType, now),
			Symbol:     symbol,
			Type:       sigType,
			Time:       now,
			Price:      price,
			Indicators: snapshot,
		})
	}

	// Золотой крест: EMA7 пересекает EMA25 снизу вверх
	if ema7[prev] < ema25[prev] && ema7[i] > ema25[i] && !d.onCooldown(symbol, domain.SignalGoldenCross, i) {
		fire(domain.SignalGoldenCross)
	}

	// Мертвый крест: EMA7 пересекает EMA25 сверху вниз
	if ema7[prev] > ema25[prev] && ema7[i] < ema25[i] && !d.onCooldown(symbol, domain.SignalDeathCross, i) {
		fire(domain.SignalDeathCross)
	}

	// RSI перепроданность
	if rsi[i] < 30 && !d.onCooldown(symbol, domain.SignalRSIOversold, i) {
		fire(domain.SignalRSIOversold)
	}

	// RSI перекупленность
	if rsi[i] > 70 && !d.onCooldown(symbol, domain.SignalRSIOverbought, i) {
		fire(domain.SignalRSIOverbought)
	}

	macdDefined := !math.IsNaN(macd[prev]) && !math.IsNaN(macdSignal[prev]) &&
		!math.IsNaN(macd[i]) && !math.IsNaN(macdSignal[i])

	// MACD бычий кросс
	if macdDefined && macd[prev] < macdSignal[prev] && macd[i] > macdSignal[i] &&
		!d.onCooldown(symbol, domain.SignalMACDBullish, i) {
		fire(domain.SignalMACDBullish)
	}

	// MACD медвежий кросс
	if macdDefined && macd[prev] > macdSignal[prev] && macd[i] < macdSignal[i] &&
		!d.onCooldown(symbol, domain.SignalMACDBearish, i) {
		fire(domain.SignalMACDBearish)
	}

	volOK := !math.IsNaN(volRatio[i]) && volRatio[i] > 1.5

	// Пробой верхней полосы Боллинджера с объемом
	if !math.IsNaN(bbUpper[i]) && !math.IsNaN(bbUpper[prev]) &&
		prevPrice <= bbUpper[prev] && price > bbUpper[i] && volOK &&
		!d.onCooldown(symbol, domain.SignalBBBreakoutUp, i) {
		fire(domain.SignalBBBreakoutUp)
	}

	// Пробой нижней полосы Боллинджера с объемом
	if !math.IsNaN(bbLower[i]) && !math.IsNaN(bbLower[prev]) &&
		prevPrice >= bbLower[prev] && price < bbLower[i] && volOK &&
		!d.onCooldown(symbol, domain.SignalBBBreakoutDown, i) {
		fire(domain.SignalBBBreakoutDown)
	}

	// Всплеск объема: >3x от среднего, кулдаун независим от других типов
	if !math.IsNaN(volRatio[i]) && volRatio[i] > 3.0 &&
		!d.onCooldown(symbol, domain.SignalVolumeSurge, i) {
		fire(domain.SignalVolumeSurge)
	}

	return result
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func nanToOne(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return v
}
