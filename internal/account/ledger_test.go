package account

import (
	"fmt"
	"math"
	"testing"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

const eps = 1e-9

func checkInvariant(t *testing.T, l *Ledger) {
	t.Helper()
	snap := l.Snapshot()
	a := snap.Account
	want := a.Balance + a.UsedMargin + a.UnrealizedPnl
	if math.Abs(a.Equity-want) > eps {
		t.Errorf("equity invariant broken: equity = %v, balance+margin+pnl = %v", a.Equity, want)
	}
}

func TestLedger_OpenClose(t *testing.T) {
	l := NewLedger(10000)

	id, err := l.OpenPosition(domain.OpenPositionParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Direction: domain.DirectionLong,
		Size: 100, Leverage: 10, EntryPrice: 100,
	})
	if err != nil {
		t.Fatalf("OpenPosition() error = %v", err)
	}
	checkInvariant(t, l)

	snap := l.Snapshot()
	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(snap.Positions))
	}
	if math.Abs(snap.Account.Balance-9900) > eps {
		t.Errorf("balance = %v, want 9900", snap.Account.Balance)
	}
	if math.Abs(snap.Account.UsedMargin-100) > eps {
		t.Errorf("used margin = %v, want 100", snap.Account.UsedMargin)
	}

	// Тик двигает цену на +10%, PnL с плечом 10 равен марже
	l.Tick("BTCUSDT", 110)
	checkInvariant(t, l)

	snap = l.Snapshot()
	if math.Abs(snap.Account.UnrealizedPnl-100) > eps {
		t.Errorf("unrealized pnl = %v, want 100", snap.Account.UnrealizedPnl)
	}
	if math.Abs(snap.Account.Equity-10100) > eps {
		t.Errorf("equity = %v, want 10100", snap.Account.Equity)
	}

	l.ClosePositionByID(id, domain.CloseReasonManual)
	checkInvariant(t, l)

	snap = l.Snapshot()
	if len(snap.Positions) != 0 {
		t.Errorf("positions = %d, want 0", len(snap.Positions))
	}
	if len(snap.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(snap.Trades))
	}
	if math.Abs(snap.Trades[0].RealizedPnl-100) > eps {
		t.Errorf("realized pnl = %v, want 100", snap.Trades[0].RealizedPnl)
	}
	if math.Abs(snap.Account.Balance-10100) > eps {
		t.Errorf("balance = %v, want 10100", snap.Account.Balance)
	}
}

func TestLedger_OpenInsufficientBalance(t *testing.T) {
	l := NewLedger(50)

	_, err := l.OpenPosition(domain.OpenPositionParams{
		Symbol: "BTCUSDT", Mode: domain.ModeSpot, Direction: domain.DirectionLong,
		Size: 100, Leverage: 1, EntryPrice: 100,
	})
	if err != domain.ErrInsufficientBalance {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}
	checkInvariant(t, l)
}

func TestLedger_CloseUnknownIsNoop(t *testing.T) {
	l := NewLedger(10000)
	before := l.Snapshot()

	l.ClosePositionByID("no-such-id", domain.CloseReasonManual)

	after := l.Snapshot()
	if len(after.Trades) != len(before.Trades) {
		t.Error("closing unknown position must not record a trade")
	}
	if math.Abs(after.Account.Balance-before.Account.Balance) > eps {
		t.Error("closing unknown position must not touch balance")
	}
}

func TestLedger_CancelOrder(t *testing.T) {
	l := NewLedger(10000)

	id := l.PlaceOrder(domain.PlaceOrderParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Type: domain.OrderTypeLimit,
		Direction: domain.DirectionLong, Price: 90, Size: 100, Leverage: 5,
	})

	l.CancelOrder(id)
	snap := l.Snapshot()
	if snap.Orders[0].Status != domain.OrderStatusCancelled {
		t.Errorf("status = %q, want cancelled", snap.Orders[0].Status)
	}

	// Повторная отмена и отмена неизвестного id — no-op
	l.CancelOrder(id)
	l.CancelOrder("no-such-id")
	snap = l.Snapshot()
	if snap.Orders[0].Status != domain.OrderStatusCancelled {
		t.Errorf("status changed on repeated cancel: %q", snap.Orders[0].Status)
	}
}

func TestLedger_LimitFillOpensPosition(t *testing.T) {
	l := NewLedger(10000)

	l.PlaceOrder(domain.PlaceOrderParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Type: domain.OrderTypeLimit,
		Direction: domain.DirectionLong, Price: 95, Size: 100, Leverage: 10,
	})

	// Цена выше лимита: ордер ждет
	l.Tick("BTCUSDT", 100)
	snap := l.Snapshot()
	if len(snap.Positions) != 0 {
		t.Fatal("order must not fill above limit price")
	}

	// Цена касается лимита: ордер исполняется по лимитной цене, позиция открыта
	l.Tick("BTCUSDT", 94)
	checkInvariant(t, l)

	snap = l.Snapshot()
	if len(snap.Positions) != 1 {
		t.Fatalf("positions = %d, want 1", len(snap.Positions))
	}
	if math.Abs(snap.Positions[0].EntryPrice-95) > eps {
		t.Errorf("entry = %v, want limit price 95", snap.Positions[0].EntryPrice)
	}
	if snap.Orders[0].Status != domain.OrderStatusFilled {
		t.Errorf("order status = %q, want filled", snap.Orders[0].Status)
	}
	if math.Abs(snap.Orders[0].FilledPrice-95) > eps {
		t.Errorf("filled price = %v, want 95", snap.Orders[0].FilledPrice)
	}
}

func TestLedger_StopLossClosesThroughTick(t *testing.T) {
	l := NewLedger(10000)

	id, err := l.OpenPosition(domain.OpenPositionParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Direction: domain.DirectionLong,
		Size: 100, Leverage: 5, EntryPrice: 100, StopLoss: 95,
	})
	if err != nil {
		t.Fatal(err)
	}

	l.Tick("BTCUSDT", 94)
	checkInvariant(t, l)

	snap := l.Snapshot()
	if len(snap.Positions) != 0 {
		t.Fatalf("position %s must be closed by stop loss", id)
	}
	if len(snap.Trades) != 1 || snap.Trades[0].CloseReason != domain.CloseReasonStopLoss {
		t.Fatalf("trades = %+v, want one stop_loss close", snap.Trades)
	}
	// Закрытие по mark-цене тика
	if math.Abs(snap.Trades[0].ExitPrice-94) > eps {
		t.Errorf("exit = %v, want 94", snap.Trades[0].ExitPrice)
	}
}

func TestLedger_CloseCancelsLinkedOrders(t *testing.T) {
	l := NewLedger(10000)

	id, _ := l.OpenPosition(domain.OpenPositionParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Direction: domain.DirectionLong,
		Size: 100, Leverage: 5, EntryPrice: 100,
	})
	l.PlaceOrder(domain.PlaceOrderParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Type: domain.OrderTypeStopMarket,
		Direction: domain.DirectionLong, TriggerPrice: 90, Size: 100, Leverage: 5,
		PositionID: id,
	})

	l.Tick("BTCUSDT", 101)
	l.ClosePositionByID(id, domain.CloseReasonManual)

	snap := l.Snapshot()
	if snap.Orders[0].Status != domain.OrderStatusCancelled {
		t.Errorf("linked order status = %q, want cancelled", snap.Orders[0].Status)
	}
}

func TestLedger_DepositWithdraw(t *testing.T) {
	l := NewLedger(1000)

	l.Deposit(500)
	checkInvariant(t, l)
	snap := l.Snapshot()
	if math.Abs(snap.Account.Balance-1500) > eps || math.Abs(snap.Account.TotalDeposited-1500) > eps {
		t.Errorf("after deposit: balance = %v, deposited = %v", snap.Account.Balance, snap.Account.TotalDeposited)
	}

	if err := l.Withdraw(2000); err != domain.ErrInsufficientBalance {
		t.Errorf("over-balance withdraw error = %v, want ErrInsufficientBalance", err)
	}

	if err := l.Withdraw(300); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	checkInvariant(t, l)
	snap = l.Snapshot()
	if math.Abs(snap.Account.Balance-1200) > eps || math.Abs(snap.Account.TotalWithdrawn-300) > eps {
		t.Errorf("after withdraw: balance = %v, withdrawn = %v", snap.Account.Balance, snap.Account.TotalWithdrawn)
	}
}

func TestLedger_SignalFeedCap(t *testing.T) {
	l := NewLedger(10000)

	for i := 0; i < 60; i++ {
		l.AddSignal(domain.Signal{ID: fmt.Sprintf("s%d", i), Symbol: "BTCUSDT"})
	}

	snap := l.Snapshot()
	if len(snap.Signals) != 50 {
		t.Fatalf("signals = %d, want 50", len(snap.Signals))
	}
	// Самые свежие первыми
	if snap.Signals[0].ID != "s59" {
		t.Errorf("first signal = %q, want s59", snap.Signals[0].ID)
	}
}

func TestLedger_AttachAnalysis(t *testing.T) {
	l := NewLedger(10000)
	l.AddSignal(domain.Signal{ID: "s1", Symbol: "BTCUSDT"})

	l.AttachAnalysis("s1", domain.AiAnalysis{Direction: domain.DirectionLong, Confidence: 7})
	l.AttachAnalysis("missing", domain.AiAnalysis{Direction: domain.DirectionShort})

	snap := l.Snapshot()
	if snap.Signals[0].Analysis == nil || snap.Signals[0].Analysis.Confidence != 7 {
		t.Errorf("analysis not attached: %+v", snap.Signals[0].Analysis)
	}
}

func TestLedger_EquityHistoryCap(t *testing.T) {
	l := NewLedger(10000)

	// Каждая пара открытие+закрытие добавляет точки истории
	for i := 0; i < 250; i++ {
		id, err := l.OpenPosition(domain.OpenPositionParams{
			Symbol: "BTCUSDT", Mode: domain.ModeSpot, Direction: domain.DirectionLong,
			Size: 10, Leverage: 1, EntryPrice: 100,
		})
		if err != nil {
			t.Fatal(err)
		}
		l.ClosePositionByID(id, domain.CloseReasonManual)
	}

	snap := l.Snapshot()
	if len(snap.Account.EquityHistory) > 200 {
		t.Errorf("equity history = %d samples, want <= 200", len(snap.Account.EquityHistory))
	}
}

func TestLedger_Restore(t *testing.T) {
	l := NewLedger(10000)
	l.OpenPosition(domain.OpenPositionParams{
		Symbol: "BTCUSDT", Mode: domain.ModeFutures, Direction: domain.DirectionLong,
		Size: 100, Leverage: 10, EntryPrice: 100,
	})
	l.Tick("BTCUSDT", 105)

	restored := Restore(l.Snapshot())
	checkInvariant(t, restored)

	a, b := l.Snapshot(), restored.Snapshot()
	if len(a.Positions) != len(b.Positions) || len(a.Trades) != len(b.Trades) {
		t.Error("restored state differs from original")
	}
	if math.Abs(a.Account.Equity-b.Account.Equity) > eps {
		t.Errorf("restored equity = %v, want %v", b.Account.Equity, a.Account.Equity)
	}
}
