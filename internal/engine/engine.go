// Package engine содержит чистые функции симуляции торговли: расчет
// ликвидации и PnL, открытие/закрытие позиций и обработка ценовых тиков.
// Функции не владеют состоянием; применение результатов — забота ledger.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

const (
	liquidationFeeBuffer = 0.004

	trailActivateATR  = 2.0
	trailDistanceATR  = 1.5
	breakevenATR      = 1.0
	breakevenShiftATR = 0.1
)

// CalcLiquidationPrice возвращает цену ликвидации. Для спота ликвидации нет,
// возвращается 0.
func CalcLiquidationPrice(entryPrice float64, direction string, leverage int, mode string) float64 {
	if mode == domain.ModeSpot {
		return 0
	}
	if direction == domain.DirectionLong {
		return entryPrice * (1 - 1/float64(leverage) + liquidationFeeBuffer)
	}
	return entryPrice * (1 + 1/float64(leverage) - liquidationFeeBuffer)
}

// CalcUnrealizedPnl возвращает нереализованный PnL в USDT.
// size — маржа позиции, плечо умножает процентное движение цены.
func CalcUnrealizedPnl(direction string, entryPrice, markPrice, size float64, leverage int) float64 {
	if direction == domain.DirectionLong {
		return ((markPrice - entryPrice) / entryPrice) * size * float64(leverage)
	}
	return ((entryPrice - markPrice) / entryPrice) * size * float64(leverage)
}

// OpenPosition создает позицию и резервирует маржу из баланса.
// При недостатке баланса возвращает nil и неизмененный счет.
func OpenPosition(params domain.OpenPositionParams, account domain.AccountInfo) (*domain.Position, domain.AccountInfo) {
	if account.Balance < params.Size {
		return nil, account
	}

	position := &domain.Position{
		ID:               uuid.New().String(),
		Symbol:           params.Symbol,
		Mode:             params.Mode,
		Direction:        params.Direction,
		Size:             params.Size,
		Leverage:         params.Leverage,
		EntryPrice:       params.EntryPrice,
		MarkPrice:        params.EntryPrice,
		LiquidationPrice: CalcLiquidationPrice(params.EntryPrice, params.Direction, params.Leverage, params.Mode),
		StopLoss:         params.StopLoss,
		TakeProfit:       params.TakeProfit,
		TrailingStop:     params.TrailingStop,
		OpenTime:         time.Now().UnixMilli(),
	}

	account.Balance -= params.Size
	account.UsedMargin += params.Size

	return position, account
}

// ClosePosition фиксирует сделку и возвращает маржу с учетом PnL.
// Возврат не может быть отрицательным: убыток ограничен маржой позиции.
func ClosePosition(position domain.Position, exitPrice float64, closeReason string, account domain.AccountInfo) (domain.Trade, domain.AccountInfo) {
	pnl := CalcUnrealizedPnl(position.Direction, position.EntryPrice, exitPrice, position.Size, position.Leverage)
	pnlPct := pnl / position.Size * 100
	now := time.Now().UnixMilli()

	trade := domain.Trade{
		ID:             uuid.New().String(),
		Symbol:         position.Symbol,
		Mode:           position.Mode,
		Direction:      position.Direction,
		EntryPrice:     position.EntryPrice,
		ExitPrice:      exitPrice,
		Size:           position.Size,
		Leverage:       position.Leverage,
		RealizedPnl:    pnl,
		RealizedPnlPct: pnlPct,
		OpenTime:       position.OpenTime,
		CloseTime:      now,
		CloseReason:    closeReason,
	}

	returnedMargin := position.Size + pnl
	if returnedMargin < 0 {
		returnedMargin = 0
	}

	account.Balance += returnedMargin
	account.UsedMargin -= position.Size
	if account.UsedMargin < 0 {
		account.UsedMargin = 0
	}
	account.EquityHistory = append(account.EquityHistory, domain.EquitySample{
		Time:   now,
		Equity: account.Equity + pnl,
	})

	return trade, account
}

// NewOrder создает отложенный ордер в статусе pending
func NewOrder(params domain.PlaceOrderParams) domain.Order {
	return domain.Order{
		ID:           uuid.New().String(),
		Symbol:       params.Symbol,
		Mode:         params.Mode,
		Type:         params.Type,
		Direction:    params.Direction,
		Price:        params.Price,
		TriggerPrice: params.TriggerPrice,
		Size:         params.Size,
		Leverage:     params.Leverage,
		Status:       domain.OrderStatusPending,
		CreatedAt:    time.Now().UnixMilli(),
		PositionID:   params.PositionID,
	}
}

// PositionClose закрытие позиции, запрошенное тиком
type PositionClose struct {
	PositionID string
	ExitPrice  float64
	Reason     string
}

// OrderFill исполнение отложенного ордера
type OrderFill struct {
	OrderID   string
	FillPrice float64
}

// StopLossUpdate перенос стоп-лосса трейлингом
type StopLossUpdate struct {
	PositionID  string
	NewStopLoss float64
}

// TickResult диффы одного ценового тика. Порядок применения: сначала
// обновления стопов, затем исполнения ордеров, затем закрытия.
type TickResult struct {
	PositionsToClose []PositionClose
	OrdersToFill     []OrderFill
	StopLossUpdates  []StopLossUpdate
}

// ProcessTick проверяет отложенные ордера и позиции по новой цене.
// Для каждой позиции проверки идут строго в порядке: ликвидация,
// трейлинг-стоп (перенесенный стоп действует уже на этом тике),
// стоп-лосс, тейк-профит; первое срабатывание закрывает позицию.
func ProcessTick(symbol string, markPrice float64, positions []domain.Position, orders []domain.Order) TickResult {
	var result TickResult

	for _, order := range orders {
		if order.Symbol != symbol || order.Status != domain.OrderStatusPending {
			continue
		}

		if order.Type == domain.OrderTypeLimit && order.Price > 0 {
			triggered := markPrice <= order.Price
			if order.Direction == domain.DirectionShort {
				triggered = markPrice >= order.Price
			}
			if triggered {
				result.OrdersToFill = append(result.OrdersToFill, OrderFill{
					OrderID:   order.ID,
					FillPrice: order.Price,
				})
			}
		}

		if (order.Type == domain.OrderTypeStopMarket || order.Type == domain.OrderTypeTakeProfitMarket) && order.TriggerPrice > 0 {
			var triggered bool
			if order.Type == domain.OrderTypeStopMarket {
				if order.Direction == domain.DirectionLong {
					triggered = markPrice <= order.TriggerPrice
				} else {
					triggered = markPrice >= order.TriggerPrice
				}
			} else {
				if order.Direction == domain.DirectionLong {
					triggered = markPrice >= order.TriggerPrice
				} else {
					triggered = markPrice <= order.TriggerPrice
				}
			}
			if triggered {
				result.OrdersToFill = append(result.OrdersToFill, OrderFill{
					OrderID:   order.ID,
					FillPrice: markPrice,
				})
			}
		}
	}

	for _, pos := range positions {
		if pos.Symbol != symbol {
			continue
		}

		// У спотовых позиций цена ликвидации 0
		if pos.LiquidationPrice > 0 {
			liqTriggered := markPrice <= pos.LiquidationPrice
			if pos.Direction == domain.DirectionShort {
				liqTriggered = markPrice >= pos.LiquidationPrice
			}
			if liqTriggered {
				result.PositionsToClose = append(result.PositionsToClose, PositionClose{
					PositionID: pos.ID,
					ExitPrice:  markPrice,
					Reason:     domain.CloseReasonLiquidation,
				})
				continue
			}
		}

		// Трейлинг по шагам ATR: безубыток от 1×ATR прибыли,
		// сопровождение mark∓1.5×ATR от 2×ATR. Стоп двигается только
		// в сторону прибыли.
		if pos.StopLoss > 0 && pos.TrailingStop > 0 {
			atr := pos.TrailingStop
			isLong := pos.Direction == domain.DirectionLong

			profitDist := markPrice - pos.EntryPrice
			if !isLong {
				profitDist = pos.EntryPrice - markPrice
			}

			var newSL float64
			if profitDist >= atr*trailActivateATR {
				trailSL := markPrice - atr*trailDistanceATR
				if !isLong {
					trailSL = markPrice + atr*trailDistanceATR
				}
				if (isLong && trailSL > pos.StopLoss) || (!isLong && trailSL < pos.StopLoss) {
					newSL = trailSL
				}
			} else if profitDist >= atr*breakevenATR {
				breakevenSL := pos.EntryPrice + atr*breakevenShiftATR
				if !isLong {
					breakevenSL = pos.EntryPrice - atr*breakevenShiftATR
				}
				if (isLong && breakevenSL > pos.StopLoss) || (!isLong && breakevenSL < pos.StopLoss) {
					newSL = breakevenSL
				}
			}

			if newSL > 0 {
				result.StopLossUpdates = append(result.StopLossUpdates, StopLossUpdate{
					PositionID:  pos.ID,
					NewStopLoss: newSL,
				})
				pos.StopLoss = newSL
			}
		}

		if pos.StopLoss > 0 {
			slTriggered := markPrice <= pos.StopLoss
			if pos.Direction == domain.DirectionShort {
				slTriggered = markPrice >= pos.StopLoss
			}
			if slTriggered {
				result.PositionsToClose = append(result.PositionsToClose, PositionClose{
					PositionID: pos.ID,
					ExitPrice:  markPrice,
					Reason:     domain.CloseReasonStopLoss,
				})
				continue
			}
		}

		if pos.TakeProfit > 0 {
			tpTriggered := markPrice >= pos.TakeProfit
			if pos.Direction == domain.DirectionShort {
				tpTriggered = markPrice <= pos.TakeProfit
			}
			if tpTriggered {
				result.PositionsToClose = append(result.PositionsToClose, PositionClose{
					PositionID: pos.ID,
					ExitPrice:  markPrice,
					Reason:     domain.CloseReasonTakeProfit,
				})
			}
		}
	}

	return result
}
