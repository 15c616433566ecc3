package signals

import (
	"testing"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// makeCandles строит серию свечей по ценам закрытия с единичным объемом
func makeCandles(closes []float64, volume float64) []domain.Candle {
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{
			Time:   int64(1700000000 + i*60),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: volume,
		}
	}
	return candles
}

func hasSignal(signals []domain.Signal, sigType string) bool {
	for _, s := range signals {
		if s.Type == sigType {
			return true
		}
	}
	return false
}

func TestDetect_ShortSeries(t *testing.T) {
	d := NewDetector()

	closes := make([]float64, 34)
	for i := range closes {
		closes[i] = 100
	}

	if got := d.Detect("BTCUSDT", makeCandles(closes, 1)); got != nil {
		t.Errorf("Detect() on %d candles = %v, want nil", len(closes), got)
	}
}

func TestDetect_RSIOversold(t *testing.T) {
	d := NewDetector()

	// Строго падающая серия: RSI уходит в 0
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	candles := makeCandles(closes, 1)

	signals := d.Detect("BTCUSDT", candles)
	if !hasSignal(signals, domain.SignalRSIOversold) {
		t.Fatal("expected rsi_oversold signal")
	}

	count := 0
	for _, s := range signals {
		if s.Type == domain.SignalRSIOversold {
			count++
		}
	}
	if count != 1 {
		t.Errorf("rsi_oversold fired %d times, want exactly 1", count)
	}

	// Повторный вызов со следующей свечой: кулдаун 30 индексов
	candles = append(candles, domain.Candle{
		Time: candles[len(candles)-1].Time + 60, Open: 160, High: 161, Low: 159, Close: 160, Volume: 1,
	})
	again := d.Detect("BTCUSDT", candles)
	if hasSignal(again, domain.SignalRSIOversold) {
		t.Error("rsi_oversold must not re-fire within cooldown window")
	}
}

func TestDetect_CooldownPerSymbol(t *testing.T) {
	d := NewDetector()

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	candles := makeCandles(closes, 1)

	if !hasSignal(d.Detect("BTCUSDT", candles), domain.SignalRSIOversold) {
		t.Fatal("expected rsi_oversold on BTCUSDT")
	}
	// Кулдаун не распространяется на другой символ
	if !hasSignal(d.Detect("ETHUSDT", candles), domain.SignalRSIOversold) {
		t.Error("cooldown must be tracked per symbol")
	}
}

func TestDetect_GoldenCross(t *testing.T) {
	d := NewDetector()

	// Плавное снижение (EMA7 < EMA25), затем резкий скачок на последней свече
	closes := make([]float64, 40)
	for i := 0; i < 39; i++ {
		closes[i] = 120 - float64(i)*0.5
	}
	closes[39] = 160

	signals := d.Detect("BTCUSDT", makeCandles(closes, 1))
	if !hasSignal(signals, domain.SignalGoldenCross) {
		t.Error("expected golden_cross signal after EMA7 crosses above EMA25")
	}
	if hasSignal(signals, domain.SignalDeathCross) {
		t.Error("death_cross must not fire on upward crossover")
	}
}

func TestDetect_DeathCross(t *testing.T) {
	d := NewDetector()

	// Плавный рост, затем обвал на последней свече
	closes := make([]float64, 40)
	for i := 0; i < 39; i++ {
		closes[i] = 100 + float64(i)*0.5
	}
	closes[39] = 60

	signals := d.Detect("BTCUSDT", makeCandles(closes, 1))
	if !hasSignal(signals, domain.SignalDeathCross) {
		t.Error("expected death_cross signal after EMA7 crosses below EMA25")
	}
}

func TestDetect_VolumeSurge(t *testing.T) {
	d := NewDetector()

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	candles := makeCandles(closes, 10)
	// Последняя свеча с объемом сильно выше среднего
	candles[39].Volume = 100

	signals := d.Detect("BTCUSDT", candles)
	if !hasSignal(signals, domain.SignalVolumeSurge) {
		t.Error("expected volume_surge signal on >3x average volume")
	}
}

func TestDetect_SnapshotCaptured(t *testing.T) {
	d := NewDetector()

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}

	signals := d.Detect("BTCUSDT", makeCandles(closes, 1))
	if len(signals) == 0 {
		t.Fatal("expected at least one signal")
	}

	sig := signals[0]
	if sig.Indicators.EMA7 == 0 || sig.Indicators.EMA25 == 0 {
		t.Error("snapshot must capture EMA values")
	}
	if sig.Indicators.VolumeRatio <= 0 {
		t.Error("snapshot volume ratio must be positive")
	}
	if sig.ID == "" || sig.Price == 0 || sig.Time == 0 {
		t.Error("signal identity fields must be populated")
	}
}
