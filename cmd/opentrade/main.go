package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/account"
	"github.com/kirillm/opentrade-bot/internal/ai"
	"github.com/kirillm/opentrade-bot/internal/api"
	"github.com/kirillm/opentrade-bot/internal/config"
	"github.com/kirillm/opentrade-bot/internal/exchange"
	"github.com/kirillm/opentrade-bot/internal/intel"
	"github.com/kirillm/opentrade-bot/internal/orchestrator"
	"github.com/kirillm/opentrade-bot/internal/policy"
	"github.com/kirillm/opentrade-bot/internal/signals"
	"github.com/kirillm/opentrade-bot/internal/storage"
	"github.com/kirillm/opentrade-bot/internal/telegram"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	logger.Init(cfg.LogLevel)
	defer logger.GetLogger().Sync()

	logger.Info("Запуск opentrade-bot",
		zap.Strings("symbols", cfg.Trading.Symbols),
		zap.String("mode", cfg.Trading.Mode),
		zap.Int("leverage", cfg.Trading.Leverage))

	// Контекст с отменой по сигналам завершения
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Получен сигнал завершения", zap.String("signal", sig.String()))
		cancel()
	}()

	// Инициализируем хранилище
	store, err := storage.NewPostgresStorage(
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Восстанавливаем счет из снимка или начинаем с начального баланса
	ledger := restoreLedger(store, cfg.Trading.InitialBalance)

	// AI-клиент, аналитик сигналов и генератор отчетов
	aiClient := ai.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
	analyst := ai.NewAnalyst(aiClient)
	reports := ai.NewReportGenerator(aiClient)

	// Сервис рыночного контекста: цены берет из ledger
	intelSvc := intel.NewService(reports, func() map[string]float64 {
		prices := make(map[string]float64, len(cfg.Trading.Symbols))
		for _, symbol := range cfg.Trading.Symbols {
			if p := ledger.MarkPrice(symbol); p > 0 {
				prices[symbol] = p
			}
		}
		return prices
	}, cfg.Trading.ReportInterval)

	if report, err := store.LoadStrategyReport(); err != nil {
		logger.Warn("Не удалось загрузить сохраненный отчет", zap.Error(err))
	} else if report != nil {
		intelSvc.SetReport(report)
	}

	// Telegram-уведомления опциональны
	var notifier orchestrator.Notifier
	if cfg.Telegram.BotToken != "" {
		tgNotifier, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Warn("Telegram недоступен, уведомления отключены", zap.Error(err))
		} else {
			notifier = tgNotifier
			ledger.OnTradeClosed(tgNotifier.NotifyTradeClosed)
		}
	}

	// Профиль риска для decision engine
	profile := policy.DefaultProfile()
	if cfg.Risk.ProfilePath != "" {
		profile, err = policy.LoadProfile(cfg.Risk.ProfilePath, cfg.Risk.ProfileName)
		if err != nil {
			logger.Fatal("Ошибка загрузки профиля риска", zap.Error(err))
		}
	}

	// Клиент биржи для исторических свечей и стримов
	market := exchange.NewBinanceClient(
		cfg.Binance.APIKey,
		cfg.Binance.APISecret,
		cfg.Trading.Mode,
		cfg.Trading.Interval,
	)

	orch := orchestrator.New(
		orchestrator.Config{
			Symbols:       cfg.Trading.Symbols,
			Mode:          cfg.Trading.Mode,
			Leverage:      cfg.Trading.Leverage,
			AnalysisPause: cfg.Trading.AnalysisPause,
		},
		ledger,
		signals.NewDetector(),
		policy.NewEngine(profile),
		analyst,
		intelSvc,
		notifier,
		market,
	)

	if autoTrade, err := store.GetAutoTrade(); err != nil {
		logger.Warn("Не удалось прочитать переключатель автоторговли", zap.Error(err))
	} else {
		orch.SetAutoTrade(autoTrade)
	}

	// HTTP-сервер для ручного управления счетом
	apiServer := api.NewServer(ledger, orch, store, cfg.APIPort)
	go func() {
		if err := apiServer.Start(ctx); err != nil {
			logger.Error("HTTP-сервер завершился с ошибкой", zap.Error(err))
		}
	}()

	// Периодические снимки состояния
	go snapshotLoop(ctx, store, ledger, intelSvc, cfg.Trading.SnapshotInterval)

	// Обновление strategy report по таймеру
	go intelSvc.Run(ctx)

	// Основной пайплайн, блокируется до отмены контекста
	if err := orch.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Оркестратор завершился с ошибкой", zap.Error(err))
	}

	// Финальный снимок перед выходом
	saveSnapshot(store, ledger, intelSvc)
	logger.Info("Завершение работы opentrade-bot")
}

// restoreLedger загружает сохраненное состояние счета.
// Чистая база означает новый счет с начальным балансом.
func restoreLedger(store *storage.PostgresStorage, initialBalance float64) *account.Ledger {
	state, found, err := store.LoadSnapshot()
	if err != nil {
		logger.Fatal("Ошибка загрузки снимка счета", zap.Error(err))
	}
	if !found {
		logger.Info("Снимок не найден, новый счет", zap.Float64("balance", initialBalance))
		return account.NewLedger(initialBalance)
	}

	logger.Info("Счет восстановлен из снимка",
		zap.Float64("balance", state.Account.Balance),
		zap.Int("positions", len(state.Positions)),
		zap.Int("trades", len(state.Trades)))
	return account.Restore(state)
}

func snapshotLoop(ctx context.Context, store *storage.PostgresStorage, ledger *account.Ledger, intelSvc *intel.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saveSnapshot(store, ledger, intelSvc)
		}
	}
}

func saveSnapshot(store *storage.PostgresStorage, ledger *account.Ledger, intelSvc *intel.Service) {
	if err := store.SaveSnapshot(ledger.Snapshot()); err != nil {
		logger.Error("Ошибка сохранения снимка", zap.Error(err))
		return
	}
	if report := intelSvc.Report(); report != nil {
		if err := store.SaveStrategyReport(*report); err != nil {
			logger.Error("Ошибка сохранения отчета", zap.Error(err))
		}
	}
}
