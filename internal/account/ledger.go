// Package account содержит Ledger — единственного владельца состояния
// симулируемого портфеля: счет, позиции, ордера, сделки и лента сигналов.
// Все мутации сериализуются мьютексом; расчеты делегируются пакету engine.
package account

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/internal/engine"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

const (
	maxSignals       = 50
	maxEquityHistory = 200
)

// State сериализуемый срез состояния портфеля. Используется для
// персистентности и как read-only снимок для decision engine.
type State struct {
	Account   domain.AccountInfo `json:"account"`
	Positions []domain.Position  `json:"positions"`
	Orders    []domain.Order     `json:"orders"`
	Trades    []domain.Trade     `json:"trades"`
	Signals   []domain.Signal    `json:"signals"`
}

// Ledger управляет состоянием портфеля. Потокобезопасен.
type Ledger struct {
	mu sync.Mutex

	account    domain.AccountInfo
	positions  []domain.Position
	orders     []domain.Order
	trades     []domain.Trade
	signals    []domain.Signal
	markPrices map[string]float64

	onTradeClosed func(domain.Trade)
}

// OnTradeClosed регистрирует колбэк на закрытие сделки.
// Вызывается вне мьютекса, порядок вызовов не гарантируется.
func (l *Ledger) OnTradeClosed(fn func(domain.Trade)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onTradeClosed = fn
}

// NewLedger создает ledger с начальным балансом
func NewLedger(initialBalance float64) *Ledger {
	return &Ledger{
		account: domain.AccountInfo{
			Balance:        initialBalance,
			Equity:         initialBalance,
			TotalDeposited: initialBalance,
			EquityHistory: []domain.EquitySample{
				{Time: time.Now().UnixMilli(), Equity: initialBalance},
			},
		},
		markPrices: make(map[string]float64),
	}
}

// Restore восстанавливает ledger из сохраненного состояния
func Restore(state State) *Ledger {
	return &Ledger{
		account:    state.Account,
		positions:  state.Positions,
		orders:     state.Orders,
		trades:     state.Trades,
		signals:    state.Signals,
		markPrices: make(map[string]float64),
	}
}

// recalcEquity пересчитывает агрегаты счета по открытым позициям.
// Инвариант: equity == balance + usedMargin + unrealizedPnl.
func (l *Ledger) recalcEquity() {
	total := 0.0
	for _, p := range l.positions {
		total += p.UnrealizedPnl
	}
	l.account.UnrealizedPnl = total
	l.account.Equity = l.account.Balance + l.account.UsedMargin + total
}

func (l *Ledger) appendEquitySample() {
	l.account.EquityHistory = append(l.account.EquityHistory, domain.EquitySample{
		Time:   time.Now().UnixMilli(),
		Equity: l.account.Equity,
	})
	if n := len(l.account.EquityHistory); n > maxEquityHistory {
		l.account.EquityHistory = l.account.EquityHistory[n-maxEquityHistory:]
	}
}

// OpenPosition открывает позицию, резервируя маржу.
// Возвращает id позиции или ErrInsufficientBalance.
func (l *Ledger) OpenPosition(params domain.OpenPositionParams) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openPositionLocked(params)
}

func (l *Ledger) openPositionLocked(params domain.OpenPositionParams) (string, error) {
	pos, updated := engine.OpenPosition(params, l.account)
	if pos == nil {
		return "", domain.ErrInsufficientBalance
	}
	l.account = updated
	l.positions = append(l.positions, *pos)
	l.recalcEquity()

	logger.Info("position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("direction", pos.Direction),
		zap.Float64("size", pos.Size),
		zap.Int("leverage", pos.Leverage),
		zap.Float64("entry", pos.EntryPrice))

	return pos.ID, nil
}

// ClosePositionByID закрывает позицию по текущей mark-цене.
// Неизвестный id игнорируется. Связанные pending-ордера отменяются.
func (l *Ledger) ClosePositionByID(positionID, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closePositionLocked(positionID, reason)
}

func (l *Ledger) closePositionLocked(positionID, reason string) {
	idx := -1
	for i, p := range l.positions {
		if p.ID == positionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	pos := l.positions[idx]

	exitPrice := l.markPrices[pos.Symbol]
	if exitPrice == 0 {
		exitPrice = pos.EntryPrice
	}

	trade, updated := engine.ClosePosition(pos, exitPrice, reason, l.account)
	l.account = updated
	l.positions = append(l.positions[:idx], l.positions[idx+1:]...)
	l.trades = append(l.trades, trade)

	for i := range l.orders {
		if l.orders[i].PositionID == positionID && l.orders[i].Status == domain.OrderStatusPending {
			l.orders[i].Status = domain.OrderStatusCancelled
		}
	}

	l.recalcEquity()
	l.appendEquitySample()

	logger.Info("position closed",
		zap.String("id", positionID),
		zap.String("symbol", pos.Symbol),
		zap.String("reason", reason),
		zap.Float64("exit", exitPrice),
		zap.Float64("pnl", trade.RealizedPnl))

	if l.onTradeClosed != nil {
		go l.onTradeClosed(trade)
	}
}

// PlaceOrder размещает отложенный ордер и возвращает его id
func (l *Ledger) PlaceOrder(params domain.PlaceOrderParams) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	order := engine.NewOrder(params)
	l.orders = append(l.orders, order)
	return order.ID
}

// CancelOrder отменяет ордер. Действует только на pending.
func (l *Ledger) CancelOrder(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.orders {
		if l.orders[i].ID == orderID && l.orders[i].Status == domain.OrderStatusPending {
			l.orders[i].Status = domain.OrderStatusCancelled
			return
		}
	}
}

// Tick применяет ценовой тик: обновляет mark-цены и PnL позиций по символу,
// затем исполняет диффы движка. Порядок: переносы стопов, исполнения ордеров
// (лимитный ордер без привязки к позиции открывает новую), закрытия.
func (l *Ledger) Tick(symbol string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.markPrices[symbol] = price

	for i := range l.positions {
		p := &l.positions[i]
		if p.Symbol != symbol {
			continue
		}
		p.MarkPrice = price
		p.UnrealizedPnl = engine.CalcUnrealizedPnl(p.Direction, p.EntryPrice, price, p.Size, p.Leverage)
		p.UnrealizedPnlPct = p.UnrealizedPnl / p.Size * 100
	}
	l.recalcEquity()

	result := engine.ProcessTick(symbol, price, l.positions, l.orders)

	for _, upd := range result.StopLossUpdates {
		for i := range l.positions {
			if l.positions[i].ID == upd.PositionID {
				l.positions[i].StopLoss = upd.NewStopLoss
			}
		}
	}

	for _, fill := range result.OrdersToFill {
		idx := -1
		for i := range l.orders {
			if l.orders[i].ID == fill.OrderID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		order := l.orders[idx]

		if order.Type == domain.OrderTypeLimit && order.PositionID == "" {
			if _, err := l.openPositionLocked(domain.OpenPositionParams{
				Symbol:     order.Symbol,
				Mode:       order.Mode,
				Direction:  order.Direction,
				Size:       order.Size,
				Leverage:   order.Leverage,
				EntryPrice: fill.FillPrice,
			}); err != nil {
				logger.Warn("limit order fill rejected",
					zap.String("order", order.ID), zap.Error(err))
			}
		}

		l.orders[idx].Status = domain.OrderStatusFilled
		l.orders[idx].FilledAt = time.Now().UnixMilli()
		l.orders[idx].FilledPrice = fill.FillPrice
	}

	for _, close := range result.PositionsToClose {
		l.closePositionLocked(close.PositionID, close.Reason)
	}
}

// AddSignal добавляет сигнал в начало ленты, самые свежие первыми
func (l *Ledger) AddSignal(signal domain.Signal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.signals = append([]domain.Signal{signal}, l.signals...)
	if len(l.signals) > maxSignals {
		l.signals = l.signals[:maxSignals]
	}
}

// AttachAnalysis прикрепляет AI-анализ к сигналу по id
func (l *Ledger) AttachAnalysis(signalID string, analysis domain.AiAnalysis) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.signals {
		if l.signals[i].ID == signalID {
			l.signals[i].Analysis = &analysis
			return
		}
	}
}

// Deposit пополняет счет
func (l *Ledger) Deposit(amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.account.Balance += amount
	l.account.TotalDeposited += amount
	l.recalcEquity()
}

// Withdraw выводит средства. Вывод больше свободного баланса отклоняется.
func (l *Ledger) Withdraw(amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.account.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	l.account.Balance -= amount
	l.account.TotalWithdrawn += amount
	l.recalcEquity()
	return nil
}

// MarkPrice возвращает последнюю известную цену символа, 0 если тиков не было
func (l *Ledger) MarkPrice(symbol string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.markPrices[symbol]
}

// Snapshot возвращает глубокую копию состояния портфеля
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	account := l.account
	account.EquityHistory = append([]domain.EquitySample(nil), l.account.EquityHistory...)

	return State{
		Account:   account,
		Positions: append([]domain.Position(nil), l.positions...),
		Orders:    append([]domain.Order(nil), l.orders...),
		Trades:    append([]domain.Trade(nil), l.trades...),
		Signals:   append([]domain.Signal(nil), l.signals...),
	}
}
