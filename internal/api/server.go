package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/account"
	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

// AutoTrader управляет переключателем автоторговли
type AutoTrader interface {
	AutoTrade() bool
	SetAutoTrade(enabled bool)
}

// Settings персистит настройки между рестартами
type Settings interface {
	SetAutoTrade(enabled bool) error
}

// Server отдает состояние счета и принимает ручные операции
type Server struct {
	ledger   *account.Ledger
	trader   AutoTrader
	settings Settings
	port     int
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ClosePositionRequest struct {
	ID string `json:"id"`
}

type OrderRequest struct {
	Symbol       string  `json:"symbol"`
	Mode         string  `json:"mode"`
	Type         string  `json:"type"`
	Direction    string  `json:"direction"`
	Price        float64 `json:"price"`
	TriggerPrice float64 `json:"triggerPrice"`
	Size         float64 `json:"size"`
	Leverage     int     `json:"leverage"`
}

type CancelOrderRequest struct {
	ID string `json:"id"`
}

type AmountRequest struct {
	Amount float64 `json:"amount"`
}

type AutoTradeRequest struct {
	Enabled bool `json:"enabled"`
}

func NewServer(ledger *account.Ledger, trader AutoTrader, settings Settings, port int) *Server {
	return &Server{
		ledger:   ledger,
		trader:   trader,
		settings: settings,
		port:     port,
	}
}

// Start запускает HTTP-сервер и блокируется до отмены контекста
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/account", s.handleAccount)
	mux.HandleFunc("/positions", s.handlePositions)
	mux.HandleFunc("/positions/close", s.handleClosePosition)
	mux.HandleFunc("/orders", s.handleOrders)
	mux.HandleFunc("/orders/cancel", s.handleCancelOrder)
	mux.HandleFunc("/trades", s.handleTrades)
	mux.HandleFunc("/signals", s.handleSignals)
	mux.HandleFunc("/deposit", s.handleDeposit)
	mux.HandleFunc("/withdraw", s.handleWithdraw)
	mux.HandleFunc("/autotrade", s.handleAutoTrade)

	addr := fmt.Sprintf(":%d", s.port)
	logger.Info("starting HTTP server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sendSuccess(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sendSuccess(w, s.ledger.Snapshot().Account)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sendSuccess(w, s.ledger.Snapshot().Positions)
}

// handleClosePosition ручное закрытие позиции по id
func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClosePositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		s.sendError(w, "Position id is required", http.StatusBadRequest)
		return
	}

	s.ledger.ClosePositionByID(req.ID, domain.CloseReasonManual)
	s.sendSuccess(w, map[string]interface{}{
		"message": "Close requested",
		"id":      req.ID,
	})
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.sendSuccess(w, s.ledger.Snapshot().Orders)
	case http.MethodPost:
		s.handlePlaceOrder(w, r)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Symbol == "" {
		s.sendError(w, "Symbol is required", http.StatusBadRequest)
		return
	}
	if req.Size <= 0 {
		s.sendError(w, "Size must be positive", http.StatusBadRequest)
		return
	}
	if req.Direction != domain.DirectionLong && req.Direction != domain.DirectionShort {
		s.sendError(w, "Direction must be long or short", http.StatusBadRequest)
		return
	}
	if req.Leverage < 1 {
		req.Leverage = 1
	}
	if req.Mode == "" {
		req.Mode = domain.ModeFutures
	}
	if req.Type == "" {
		req.Type = domain.OrderTypeLimit
	}

	id := s.ledger.PlaceOrder(domain.PlaceOrderParams{
		Symbol:       req.Symbol,
		Mode:         req.Mode,
		Type:         req.Type,
		Direction:    req.Direction,
		Price:        req.Price,
		TriggerPrice: req.TriggerPrice,
		Size:         req.Size,
		Leverage:     req.Leverage,
	})

	s.sendSuccess(w, map[string]interface{}{
		"message": "Order placed",
		"id":      id,
	})
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		s.sendError(w, "Order id is required", http.StatusBadRequest)
		return
	}

	s.ledger.CancelOrder(req.ID)
	s.sendSuccess(w, map[string]interface{}{
		"message": "Cancel requested",
		"id":      req.ID,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	trades := s.ledger.Snapshot().Trades
	limit := getQueryParamInt(r, "limit", 0)
	if limit > 0 && limit < len(trades) {
		trades = trades[len(trades)-limit:]
	}

	s.sendSuccess(w, trades)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sendSuccess(w, s.ledger.Snapshot().Signals)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		s.sendError(w, "Amount must be positive", http.StatusBadRequest)
		return
	}

	s.ledger.Deposit(req.Amount)
	s.sendSuccess(w, s.ledger.Snapshot().Account)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		s.sendError(w, "Amount must be positive", http.StatusBadRequest)
		return
	}

	if err := s.ledger.Withdraw(req.Amount); err != nil {
		s.sendError(w, fmt.Sprintf("Withdraw failed: %v", err), http.StatusBadRequest)
		return
	}
	s.sendSuccess(w, s.ledger.Snapshot().Account)
}

// handleAutoTrade чтение и переключение автоторговли.
// Новое состояние персистится, чтобы пережить рестарт.
func (s *Server) handleAutoTrade(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.sendSuccess(w, map[string]interface{}{"enabled": s.trader.AutoTrade()})
	case http.MethodPost:
		var req AutoTradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.sendError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		s.trader.SetAutoTrade(req.Enabled)
		if s.settings != nil {
			if err := s.settings.SetAutoTrade(req.Enabled); err != nil {
				logger.Error("failed to persist auto-trade setting", zap.Error(err))
			}
		}
		s.sendSuccess(w, map[string]interface{}{"enabled": req.Enabled})
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(Response{
		Success: true,
		Data:    data,
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}

func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
