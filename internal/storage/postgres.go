package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kirillm/opentrade-bot/internal/account"
	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/internal/storage/repository"
	_ "github.com/lib/pq"
)

// Ключи настроек
const (
	settingAutoTrade      = "auto_trade"
	settingStrategyReport = "strategy_report"
)

// PostgresStorage является фасадом для работы с PostgreSQL через репозитории.
// Состояние счета сохраняется целиком в одной транзакции, чтобы после
// рестарта не получить позиции без соответствующей маржи.
type PostgresStorage struct {
	db        *sql.DB
	accounts  *repository.AccountRepository
	positions *repository.PositionRepository
	orders    *repository.OrderRepository
	trades    *repository.TradeRepository
	settings  *repository.SettingRepository
}

func NewPostgresStorage(host string, port int, user, password, dbname, sslmode string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройка connection pool из конфигурации
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	storage := &PostgresStorage{
		db:        db,
		accounts:  repository.NewAccountRepository(db),
		positions: repository.NewPositionRepository(db),
		orders:    repository.NewOrderRepository(db),
		trades:    repository.NewTradeRepository(db),
		settings:  repository.NewSettingRepository(db),
	}

	// Запускаем миграции
	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate() error {
	migrations := []string{
		// Счет хранится единственной строкой, история equity в JSONB
		`CREATE TABLE IF NOT EXISTS account (
			id INTEGER PRIMARY KEY,
			balance DECIMAL(20, 8) NOT NULL DEFAULT 0,
			equity DECIMAL(20, 8) NOT NULL DEFAULT 0,
			used_margin DECIMAL(20, 8) NOT NULL DEFAULT 0,
			unrealized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_deposited DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_withdrawn DECIMAL(20, 8) NOT NULL DEFAULT 0,
			equity_history JSONB,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			id VARCHAR(64) PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			mode VARCHAR(10) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			leverage INTEGER NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			mark_price DECIMAL(20, 8) NOT NULL,
			liquidation_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL DEFAULT 0,
			take_profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			trailing_stop DECIMAL(20, 8) NOT NULL DEFAULT 0,
			unrealized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			unrealized_pnl_pct DECIMAL(20, 8) NOT NULL DEFAULT 0,
			open_time BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(64) PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			mode VARCHAR(10) NOT NULL,
			type VARCHAR(30) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			trigger_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			size DECIMAL(20, 8) NOT NULL,
			leverage INTEGER NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_at BIGINT NOT NULL,
			filled_at BIGINT NOT NULL DEFAULT 0,
			filled_price DECIMAL(20, 8) NOT NULL DEFAULT 0,
			position_id VARCHAR(64) NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id VARCHAR(64) PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			mode VARCHAR(10) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			leverage INTEGER NOT NULL,
			realized_pnl DECIMAL(20, 8) NOT NULL,
			realized_pnl_pct DECIMAL(20, 8) NOT NULL,
			open_time BIGINT NOT NULL,
			close_time BIGINT NOT NULL,
			close_reason VARCHAR(30) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key VARCHAR(100) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		// Индексы
		`CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveSnapshot атомарно записывает полное состояние счета
func (s *PostgresStorage) SaveSnapshot(state account.State) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.accounts.Save(tx, state.Account); err != nil {
		return fmt.Errorf("save account: %w", err)
	}
	if err := s.positions.ReplaceAll(tx, state.Positions); err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	if err := s.orders.ReplaceAll(tx, state.Orders); err != nil {
		return fmt.Errorf("save orders: %w", err)
	}
	if err := s.trades.SaveAll(tx, state.Trades); err != nil {
		return fmt.Errorf("save trades: %w", err)
	}

	return tx.Commit()
}

// LoadSnapshot читает сохраненное состояние счета.
// Второе значение false означает чистую базу без снимка.
func (s *PostgresStorage) LoadSnapshot() (account.State, bool, error) {
	acc, err := s.accounts.Get()
	if errors.Is(err, sql.ErrNoRows) {
		return account.State{}, false, nil
	}
	if err != nil {
		return account.State{}, false, fmt.Errorf("load account: %w", err)
	}

	positions, err := s.positions.GetAll()
	if err != nil {
		return account.State{}, false, fmt.Errorf("load positions: %w", err)
	}
	orders, err := s.orders.GetAll()
	if err != nil {
		return account.State{}, false, fmt.Errorf("load orders: %w", err)
	}
	trades, err := s.trades.GetAll()
	if err != nil {
		return account.State{}, false, fmt.Errorf("load trades: %w", err)
	}

	return account.State{
		Account:   acc,
		Positions: positions,
		Orders:    orders,
		Trades:    trades,
	}, true, nil
}

// SetAutoTrade сохраняет состояние переключателя автоторговли
func (s *PostgresStorage) SetAutoTrade(enabled bool) error {
	return s.settings.Set(settingAutoTrade, strconv.FormatBool(enabled))
}

// GetAutoTrade читает состояние автоторговли. По умолчанию включена.
func (s *PostgresStorage) GetAutoTrade() (bool, error) {
	value, err := s.settings.Get(settingAutoTrade)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return true, err
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		return true, fmt.Errorf("parse auto_trade setting: %w", err)
	}
	return enabled, nil
}

// SaveStrategyReport сохраняет последний стратегический отчет
func (s *PostgresStorage) SaveStrategyReport(report domain.StrategyReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal strategy report: %w", err)
	}
	return s.settings.Set(settingStrategyReport, string(data))
}

// LoadStrategyReport читает последний отчет. Возвращает nil если отчета нет.
func (s *PostgresStorage) LoadStrategyReport() (*domain.StrategyReport, error) {
	value, err := s.settings.Get(settingStrategyReport)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var report domain.StrategyReport
	if err := json.Unmarshal([]byte(value), &report); err != nil {
		return nil, fmt.Errorf("unmarshal strategy report: %w", err)
	}
	return &report, nil
}

// Close закрывает соединение с базой данных
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
