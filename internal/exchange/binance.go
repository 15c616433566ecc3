// Package exchange подключает рыночные данные Binance: REST-история свечей
// и вебсокет-стримы свечей и цен. Торговых запросов пакет не делает,
// используются только публичные данные.
package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

const reconnectDelay = 3 * time.Second

// BinanceClient источник рыночных данных для одного режима торговли
type BinanceClient struct {
	spot     *binance.Client
	futures  *futures.Client
	mode     string
	interval string
}

// NewBinanceClient создает клиент. Ключи могут быть пустыми,
// публичные данные доступны без аутентификации.
func NewBinanceClient(apiKey, apiSecret, mode, interval string) *BinanceClient {
	return &BinanceClient{
		spot:     binance.NewClient(apiKey, apiSecret),
		futures:  futures.NewClient(apiKey, apiSecret),
		mode:     mode,
		interval: interval,
	}
}

// HistoricalCandles загружает последние limit свечей по REST
func (c *BinanceClient) HistoricalCandles(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	if c.mode == domain.ModeFutures {
		klines, err := c.futures.NewKlinesService().
			Symbol(symbol).
			Interval(c.interval).
			Limit(limit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: futures klines %s: %v", domain.ErrExchangeAPI, symbol, err)
		}

		candles := make([]domain.Candle, len(klines))
		for i, k := range klines {
			candles[i] = domain.Candle{
				Time:   k.OpenTime / 1000,
				Open:   parseF(k.Open),
				High:   parseF(k.High),
				Low:    parseF(k.Low),
				Close:  parseF(k.Close),
				Volume: parseF(k.Volume),
			}
		}
		return candles, nil
	}

	klines, err := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval(c.interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: spot klines %s: %v", domain.ErrExchangeAPI, symbol, err)
	}

	candles := make([]domain.Candle, len(klines))
	for i, k := range klines {
		candles[i] = domain.Candle{
			Time:   k.OpenTime / 1000,
			Open:   parseF(k.Open),
			High:   parseF(k.High),
			Low:    parseF(k.Low),
			Close:  parseF(k.Close),
			Volume: parseF(k.Volume),
		}
	}
	return candles, nil
}

// StreamKlines держит вебсокет-стрим свечей символа до отмены контекста,
// переподключаясь через 3 секунды после обрыва. closed == true означает,
// что свеча закрылась финально.
func (c *BinanceClient) StreamKlines(ctx context.Context, symbol string, handler func(symbol string, candle domain.Candle, closed bool)) {
	c.streamLoop(ctx, "klines", symbol, func() (chan struct{}, chan struct{}, error) {
		if c.mode == domain.ModeFutures {
			return futures.WsKlineServe(symbol, c.interval,
				func(event *futures.WsKlineEvent) {
					handler(symbol, futuresKlineCandle(event.Kline), event.Kline.IsFinal)
				},
				func(err error) {
					logger.Error("futures kline stream error", zap.String("symbol", symbol), zap.Error(err))
				})
		}
		return binance.WsKlineServe(symbol, c.interval,
			func(event *binance.WsKlineEvent) {
				handler(symbol, spotKlineCandle(event.Kline), event.Kline.IsFinal)
			},
			func(err error) {
				logger.Error("spot kline stream error", zap.String("symbol", symbol), zap.Error(err))
			})
	})
}

// StreamPrices держит стрим цен символа: mark price для фьючерсов,
// 24h-тикер для спота
func (c *BinanceClient) StreamPrices(ctx context.Context, symbol string, handler func(symbol string, price float64)) {
	c.streamLoop(ctx, "prices", symbol, func() (chan struct{}, chan struct{}, error) {
		if c.mode == domain.ModeFutures {
			return futures.WsMarkPriceServe(symbol,
				func(event *futures.WsMarkPriceEvent) {
					if price := parseF(event.MarkPrice); price > 0 {
						handler(symbol, price)
					}
				},
				func(err error) {
					logger.Error("mark price stream error", zap.String("symbol", symbol), zap.Error(err))
				})
		}
		return binance.WsMarketStatServe(symbol,
			func(event *binance.WsMarketStatEvent) {
				if price := parseF(event.LastPrice); price > 0 {
					handler(symbol, price)
				}
			},
			func(err error) {
				logger.Error("ticker stream error", zap.String("symbol", symbol), zap.Error(err))
			})
	})
}

// streamLoop подключает стрим и переподключает его после обрыва,
// пока контекст не отменен
func (c *BinanceClient) streamLoop(ctx context.Context, name, symbol string, connect func() (chan struct{}, chan struct{}, error)) {
	for {
		doneC, stopC, err := connect()
		if err != nil {
			logger.Error("stream connect failed",
				zap.String("stream", name), zap.String("symbol", symbol), zap.Error(err))
		} else {
			logger.Info("stream connected",
				zap.String("stream", name), zap.String("symbol", symbol))
			select {
			case <-ctx.Done():
				close(stopC)
				return
			case <-doneC:
				logger.Warn("stream disconnected",
					zap.String("stream", name), zap.String("symbol", symbol))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func spotKlineCandle(k binance.WsKline) domain.Candle {
	return domain.Candle{
		Time:   k.StartTime / 1000,
		Open:   parseF(k.Open),
		High:   parseF(k.High),
		Low:    parseF(k.Low),
		Close:  parseF(k.Close),
		Volume: parseF(k.Volume),
	}
}

func futuresKlineCandle(k futures.WsKline) domain.Candle {
	return domain.Candle{
		Time:   k.StartTime / 1000,
		Open:   parseF(k.Open),
		High:   parseF(k.High),
		Low:    parseF(k.Low),
		Close:  parseF(k.Close),
		Volume: parseF(k.Volume),
	}
}

func parseF(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
