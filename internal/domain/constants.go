package domain

// Trading modes
const (
	ModeSpot    = "spot"
	ModeFutures = "futures"
)

// Position directions
const (
	DirectionLong  = "long"
	DirectionShort = "short"
	DirectionHold  = "hold" // только в AI-рекомендациях
)

// Order types
const (
	OrderTypeMarket           = "market"
	OrderTypeLimit            = "limit"
	OrderTypeStopMarket       = "stop_market"
	OrderTypeTakeProfitMarket = "take_profit_market"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// Signal types
const (
	SignalGoldenCross    = "golden_cross"
	SignalDeathCross     = "death_cross"
	SignalRSIOversold    = "rsi_oversold"
	SignalRSIOverbought  = "rsi_overbought"
	SignalMACDBullish    = "macd_bullish"
	SignalMACDBearish    = "macd_bearish"
	SignalBBBreakoutUp   = "bb_breakout_up"
	SignalBBBreakoutDown = "bb_breakout_down"
	SignalVolumeSurge    = "volume_surge"
)

// Close reasons
const (
	CloseReasonManual       = "manual"
	CloseReasonStopLoss     = "stop_loss"
	CloseReasonTakeProfit   = "take_profit"
	CloseReasonTrailingStop = "trailing_stop"
	CloseReasonLiquidation  = "liquidation"
)

// Risk levels (из strategy report)
const (
	RiskLow     = "low"
	RiskMedium  = "medium"
	RiskHigh    = "high"
	RiskExtreme = "extreme"
)

// Decision actions
const (
	ActionOpen         = "open"
	ActionCloseAndOpen = "close_and_open"
	ActionSkip         = "skip"
)

// Market sentiment
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)
