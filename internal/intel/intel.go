// Package intel снабжает бота рыночным контекстом: индекс страха и жадности
// и периодический strategy report. Сбои деградируют до предыдущего отчета,
// пайплайн сигналов от этого пакета не зависит.
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/ai"
	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

const defaultFearGreedURL = "https://api.alternative.me/fng/"

// PricesFunc возвращает последние известные цены отслеживаемых символов
type PricesFunc func() map[string]float64

// Service периодически обновляет strategy report
type Service struct {
	generator    *ai.ReportGenerator
	prices       PricesFunc
	interval     time.Duration
	fearGreedURL string
	client       *http.Client

	mu     sync.RWMutex
	report *domain.StrategyReport
}

// NewService создает сервис. interval — период обновления отчета.
func NewService(generator *ai.ReportGenerator, prices PricesFunc, interval time.Duration) *Service {
	return &Service{
		generator:    generator,
		prices:       prices,
		interval:     interval,
		fearGreedURL: defaultFearGreedURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// Run обновляет отчет сразу и затем по таймеру до отмены контекста
func (s *Service) Run(ctx context.Context) {
	s.refresh(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *Service) refresh(ctx context.Context) {
	fearGreed, err := s.FetchFearGreed(ctx)
	if err != nil {
		logger.Warn("fear & greed fetch failed, keeping previous report", zap.Error(err))
		return
	}

	report, err := s.generator.Generate(ctx, fearGreed, s.prices())
	if err != nil {
		logger.Warn("strategy report generation failed, keeping previous report", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.report = &report
	s.mu.Unlock()

	logger.Info("strategy report refreshed",
		zap.String("sentiment", report.Sentiment),
		zap.String("risk", report.RiskLevel),
		zap.Int("fear_greed", fearGreed.Value))
}

// FetchFearGreed запрашивает индекс страха и жадности.
// API отдает числовые поля строками.
func (s *Service) FetchFearGreed(ctx context.Context) (domain.FearGreed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fearGreedURL, nil)
	if err != nil {
		return domain.FearGreed{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.FearGreed{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.FearGreed{}, fmt.Errorf("fear & greed API returned %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			Value          string `json:"value"`
			Classification string `json:"value_classification"`
			Timestamp      string `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.FearGreed{}, fmt.Errorf("decode fear & greed response: %w", err)
	}
	if len(payload.Data) == 0 {
		return domain.FearGreed{}, fmt.Errorf("empty fear & greed response")
	}

	item := payload.Data[0]
	value, err := strconv.Atoi(item.Value)
	if err != nil {
		return domain.FearGreed{}, fmt.Errorf("parse fear & greed value %q: %w", item.Value, err)
	}
	ts, _ := strconv.ParseInt(item.Timestamp, 10, 64)

	return domain.FearGreed{
		Value:          value,
		Classification: item.Classification,
		Timestamp:      ts * 1000,
	}, nil
}

// Report возвращает последний отчет, nil если еще не было успешного обновления
func (s *Service) Report() *domain.StrategyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.report == nil {
		return nil
	}
	report := *s.report
	return &report
}

// RiskLevel возвращает уровень риска из отчета, medium при его отсутствии
func (s *Service) RiskLevel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.report == nil {
		return domain.RiskMedium
	}
	return s.report.RiskLevel
}

// SetReport устанавливает отчет напрямую, используется при восстановлении
// сохраненного состояния
func (s *Service) SetReport(report *domain.StrategyReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
}
