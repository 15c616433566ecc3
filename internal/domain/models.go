package domain

// Candle представляет одну свечу графика
type Candle struct {
	Time   int64   `json:"time" db:"time"` // unix seconds
	Open   float64 `json:"open" db:"open"`
	High   float64 `json:"high" db:"high"`
	Low    float64 `json:"low" db:"low"`
	Close  float64 `json:"close" db:"close"`
	Volume float64 `json:"volume" db:"volume"`
}

// IndicatorSnapshot значения индикаторов в момент срабатывания сигнала.
// Снимок делается один раз и больше не пересчитывается.
type IndicatorSnapshot struct {
	EMA7        float64 `json:"ema7"`
	EMA25       float64 `json:"ema25"`
	RSI         float64 `json:"rsi"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macdSignal"`
	BBUpper     float64 `json:"bbUpper"`
	BBMiddle    float64 `json:"bbMiddle"`
	BBLower     float64 `json:"bbLower"`
	ATR         float64 `json:"atr"`
	VolumeRatio float64 `json:"volumeRatio"`
}

// Signal представляет технический сигнал, обнаруженный детектором
type Signal struct {
	ID         string            `json:"id"`
	Symbol     string            `json:"symbol"`
	Type       string            `json:"type"`
	Time       int64             `json:"time"` // unix seconds
	Price      float64           `json:"price"`
	Indicators IndicatorSnapshot `json:"indicators"`
	Analysis   *AiAnalysis       `json:"aiAnalysis,omitempty"`
}

// Position представляет открытую позицию
type Position struct {
	ID               string  `json:"id" db:"id"`
	Symbol           string  `json:"symbol" db:"symbol"`
	Mode             string  `json:"mode" db:"mode"`
	Direction        string  `json:"direction" db:"direction"`
	Size             float64 `json:"size" db:"size"` // маржа в USDT, не нотионал
	Leverage         int     `json:"leverage" db:"leverage"`
	EntryPrice       float64 `json:"entryPrice" db:"entry_price"`
	MarkPrice        float64 `json:"markPrice" db:"mark_price"`
	LiquidationPrice float64 `json:"liquidationPrice" db:"liquidation_price"` // 0 для спота
	StopLoss         float64 `json:"stopLoss" db:"stop_loss"`                 // 0 = не установлен
	TakeProfit       float64 `json:"takeProfit" db:"take_profit"`             // 0 = не установлен
	TrailingStop     float64 `json:"trailingStop" db:"trailing_stop"`         // хранит ATR, шаг трейлинга
	UnrealizedPnl    float64 `json:"unrealizedPnl" db:"unrealized_pnl"`
	UnrealizedPnlPct float64 `json:"unrealizedPnlPct" db:"unrealized_pnl_pct"`
	OpenTime         int64   `json:"openTime" db:"open_time"` // unix millis
}

// Order представляет отложенный ордер
type Order struct {
	ID           string  `json:"id" db:"id"`
	Symbol       string  `json:"symbol" db:"symbol"`
	Mode         string  `json:"mode" db:"mode"`
	Type         string  `json:"type" db:"type"`
	Direction    string  `json:"direction" db:"direction"`
	Price        float64 `json:"price" db:"price"`                // лимитная цена, 0 если не задана
	TriggerPrice float64 `json:"triggerPrice" db:"trigger_price"` // для stop/take-profit ордеров
	Size         float64 `json:"size" db:"size"`
	Leverage     int     `json:"leverage" db:"leverage"`
	Status       string  `json:"status" db:"status"`
	CreatedAt    int64   `json:"createdAt" db:"created_at"` // unix millis
	FilledAt     int64   `json:"filledAt" db:"filled_at"`
	FilledPrice  float64 `json:"filledPrice" db:"filled_price"`
	PositionID   string  `json:"positionId" db:"position_id"` // привязка к позиции (SL/TP ордера)
}

// Trade представляет закрытую сделку. Создается только при закрытии позиции.
type Trade struct {
	ID             string  `json:"id" db:"id"`
	Symbol         string  `json:"symbol" db:"symbol"`
	Mode           string  `json:"mode" db:"mode"`
	Direction      string  `json:"direction" db:"direction"`
	EntryPrice     float64 `json:"entryPrice" db:"entry_price"`
	ExitPrice      float64 `json:"exitPrice" db:"exit_price"`
	Size           float64 `json:"size" db:"size"`
	Leverage       int     `json:"leverage" db:"leverage"`
	RealizedPnl    float64 `json:"realizedPnl" db:"realized_pnl"`
	RealizedPnlPct float64 `json:"realizedPnlPct" db:"realized_pnl_pct"`
	OpenTime       int64   `json:"openTime" db:"open_time"`
	CloseTime      int64   `json:"closeTime" db:"close_time"`
	CloseReason    string  `json:"closeReason" db:"close_reason"`
}

// EquitySample точка истории капитала
type EquitySample struct {
	Time   int64   `json:"time"` // unix millis
	Equity float64 `json:"equity"`
}

// AccountInfo представляет состояние счета.
// Инвариант: Equity == Balance + UsedMargin + UnrealizedPnl.
type AccountInfo struct {
	Balance        float64        `json:"balance"`
	Equity         float64        `json:"equity"`
	UsedMargin     float64        `json:"usedMargin"`
	UnrealizedPnl  float64        `json:"unrealizedPnl"`
	TotalDeposited float64        `json:"totalDeposited"`
	TotalWithdrawn float64        `json:"totalWithdrawn"`
	EquityHistory  []EquitySample `json:"equityHistory"`
}

// AiAnalysis результат AI-анализа сигнала
type AiAnalysis struct {
	Direction  string  `json:"direction"` // long, short, hold
	Confidence int     `json:"confidence"`
	EntryPrice float64 `json:"entryPrice"`
	StopLoss   float64 `json:"stopLoss"`
	TakeProfit float64 `json:"takeProfit"`
	Reasoning  string  `json:"reasoning"`
	Confluence int     `json:"confluence"` // количество подтверждающих индикаторов, 0-5
	RiskReward float64 `json:"riskReward"`
	Timeframe  string  `json:"timeframe"` // short, medium, long
	AutoTraded bool    `json:"autoTraded"`
	// Заполняется decision engine, не AI
	DecisionNote   string `json:"decisionNote,omitempty"`
	DecisionAction string `json:"decisionAction,omitempty"`
}

// FearGreed значение индекса страха и жадности
type FearGreed struct {
	Value          int    `json:"value"`
	Classification string `json:"classification"`
	Timestamp      int64  `json:"timestamp"`
}

// StrategyReport периодический отчет о состоянии рынка
type StrategyReport struct {
	ID          string    `json:"id"`
	GeneratedAt int64     `json:"generatedAt"`
	Sentiment   string    `json:"sentiment"` // bullish, bearish, neutral
	RiskLevel   string    `json:"riskLevel"` // low, medium, high, extreme
	TradingBias string    `json:"tradingBias"`
	MacroNote   string    `json:"macroFactors"`
	Summary     string    `json:"summary"`
	FearGreed   FearGreed `json:"fearGreed"`
}

// OpenPositionParams параметры открытия позиции
type OpenPositionParams struct {
	Symbol       string
	Mode         string
	Direction    string
	Size         float64
	Leverage     int
	EntryPrice   float64
	StopLoss     float64
	TakeProfit   float64
	TrailingStop float64
}

// PlaceOrderParams параметры размещения ордера
type PlaceOrderParams struct {
	Symbol       string
	Mode         string
	Type         string
	Direction    string
	Price        float64
	TriggerPrice float64
	Size         float64
	Leverage     int
	PositionID   string
}
