// Package indicators содержит чистые функции расчета технических индикаторов.
// Все функции возвращают срезы той же длины, что и вход; значения до прогрева
// заполняются NaN, чтобы индекс индикатора совпадал с индексом свечи.
package indicators

import (
	"math"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// EMA рассчитывает экспоненциальную скользящую среднюю.
// Затравка — простое среднее первых period значений, далее сглаживание k=2/(period+1).
func EMA(values []float64, period int) []float64 {
	if len(values) < period {
		return nanSlice(len(values))
	}

	result := nanSlice(len(values))
	k := 2.0 / float64(period+1)

	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	result[period-1] = ema

	for i := period; i < len(values); i++ {
		ema = values[i]*k + ema*(1-k)
		result[i] = ema
	}

	return result
}

// RSI рассчитывает индекс относительной силы по сглаживанию Уайлдера.
// Первые period значений не определены; при нулевом среднем убытке RSI = 100.
func RSI(values []float64, period int) []float64 {
	result := nanSlice(len(values))
	if len(values) < period+1 {
		return result
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := values[i] - values[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss += -diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	result[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		diff := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		result[i] = rsiValue(avgGain, avgLoss)
	}

	return result
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}

// MACD рассчитывает MACD(12,26,9): линия MACD = EMA12-EMA26, сигнальная линия —
// 9-периодная EMA по определенному хвосту MACD, выровненная обратно по индексам.
func MACD(values []float64) (macd, signal, histogram []float64) {
	ema12 := EMA(values, 12)
	ema26 := EMA(values, 26)

	macd = nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(ema12[i]) && !math.IsNaN(ema26[i]) {
			macd[i] = ema12[i] - ema26[i]
		}
	}

	// Сигнальная EMA считается только по валидному хвосту
	validStart := len(values)
	for i, v := range macd {
		if !math.IsNaN(v) {
			validStart = i
			break
		}
	}
	validMacd := macd[validStart:]
	signalTail := EMA(validMacd, 9)

	signal = nanSlice(len(values))
	copy(signal[validStart:], signalTail)

	histogram = nanSlice(len(values))
	for i := range values {
		if !math.IsNaN(macd[i]) && !math.IsNaN(signal[i]) {
			histogram[i] = macd[i] - signal[i]
		}
	}

	return macd, signal, histogram
}

// BollingerBands рассчитывает полосы Боллинджера по скользящему среднему и
// популяционному стандартному отклонению. Bandwidth = (upper-lower)/middle*100.
func BollingerBands(values []float64, period int, stdDevs float64) (upper, middle, lower, bandwidth []float64) {
	upper = nanSlice(len(values))
	middle = nanSlice(len(values))
	lower = nanSlice(len(values))
	bandwidth = nanSlice(len(values))

	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]

		sum := 0.0
		for _, v := range window {
			sum += v
		}
		sma := sum / float64(period)

		variance := 0.0
		for _, v := range window {
			variance += (v - sma) * (v - sma)
		}
		std := math.Sqrt(variance / float64(period))

		up := sma + stdDevs*std
		lo := sma - stdDevs*std
		upper[i] = up
		middle[i] = sma
		lower[i] = lo
		if sma > 0 {
			bandwidth[i] = (up - lo) / sma * 100
		} else {
			bandwidth[i] = 0
		}
	}

	return upper, middle, lower, bandwidth
}

// ATR рассчитывает средний истинный диапазон: затравка — простое среднее первых
// period значений TR, далее сглаживание Уайлдера (prev*(period-1)+TR)/period.
func ATR(candles []domain.Candle, period int) []float64 {
	result := nanSlice(len(candles))

	for i := 1; i < len(candles); i++ {
		if i < period {
			continue
		}
		if i == period {
			sumTR := 0.0
			for j := 1; j <= period; j++ {
				sumTR += trueRange(candles[j], candles[j-1])
			}
			result[i] = sumTR / float64(period)
			continue
		}
		tr := trueRange(candles[i], candles[i-1])
		result[i] = (result[i-1]*float64(period-1) + tr) / float64(period)
	}

	return result
}

func trueRange(cur, prev domain.Candle) float64 {
	tr := cur.High - cur.Low
	if hc := math.Abs(cur.High - prev.Close); hc > tr {
		tr = hc
	}
	if lc := math.Abs(cur.Low - prev.Close); lc > tr {
		tr = lc
	}
	return tr
}

// VolumeRatio рассчитывает отношение текущего объема к скользящему среднему.
// При нулевом среднем объеме возвращает 1.
func VolumeRatio(volumes []float64, period int) []float64 {
	result := nanSlice(len(volumes))

	for i := period - 1; i < len(volumes); i++ {
		sum := 0.0
		for j := i - period + 1; j <= i; j++ {
			sum += volumes[j]
		}
		avg := sum / float64(period)
		if avg > 0 {
			result[i] = volumes[i] / avg
		} else {
			result[i] = 1
		}
	}

	return result
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
