package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки приложения
type Config struct {
	Telegram TelegramConfig
	Binance  BinanceConfig
	Database DatabaseConfig
	AI       AIConfig
	Trading  TradingConfig
	Risk     RiskConfig
	APIPort  int
	LogLevel string
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type BinanceConfig struct {
	APIKey    string
	APISecret string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type TradingConfig struct {
	Symbols          []string
	Mode             string
	Leverage         int
	Interval         string
	InitialBalance   float64
	AnalysisPause    time.Duration
	ReportInterval   time.Duration
	SnapshotInterval time.Duration
}

type RiskConfig struct {
	ProfilePath string
	ProfileName string
}

// Load загружает конфигурацию из .env файла
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	leverage, err := strconv.Atoi(getEnv("TRADING_LEVERAGE", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRADING_LEVERAGE: %w", err)
	}

	initialBalance, err := strconv.ParseFloat(getEnv("INITIAL_BALANCE", "10000"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_BALANCE: %w", err)
	}

	analysisPause, err := time.ParseDuration(getEnv("ANALYSIS_PAUSE", "800ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_PAUSE: %w", err)
	}

	reportInterval, err := time.ParseDuration(getEnv("REPORT_INTERVAL", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_INTERVAL: %w", err)
	}

	snapshotInterval, err := time.ParseDuration(getEnv("SNAPSHOT_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SNAPSHOT_INTERVAL: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	config := &Config{
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Binance: BinanceConfig{
			APIKey:    getEnv("BINANCE_API_KEY", ""),
			APISecret: getEnv("BINANCE_API_SECRET", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "opentrade_bot"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		AI: AIConfig{
			APIKey:  getEnv("GLM_API_KEY", ""),
			BaseURL: getEnv("GLM_BASE_URL", ""),
			Model:   getEnv("GLM_MODEL", ""),
		},
		Trading: TradingConfig{
			Symbols:          splitSymbols(getEnv("TRADING_SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT")),
			Mode:             getEnv("TRADING_MODE", "futures"),
			Leverage:         leverage,
			Interval:         getEnv("CANDLE_INTERVAL", "1m"),
			InitialBalance:   initialBalance,
			AnalysisPause:    analysisPause,
			ReportInterval:   reportInterval,
			SnapshotInterval: snapshotInterval,
		},
		Risk: RiskConfig{
			ProfilePath: getEnv("RISK_PROFILE_PATH", ""),
			ProfileName: getEnv("RISK_PROFILE", "moderate"),
		},
		APIPort:  apiPort,
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.AI.APIKey == "" {
		return fmt.Errorf("GLM_API_KEY is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("TRADING_SYMBOLS must list at least one symbol")
	}
	if c.Trading.Mode != "spot" && c.Trading.Mode != "futures" {
		return fmt.Errorf("TRADING_MODE must be spot or futures, got %q", c.Trading.Mode)
	}
	if c.Trading.Leverage < 1 || c.Trading.Leverage > 125 {
		return fmt.Errorf("TRADING_LEVERAGE must be between 1 and 125, got %d", c.Trading.Leverage)
	}
	if c.Trading.InitialBalance <= 0 {
		return fmt.Errorf("INITIAL_BALANCE must be positive")
	}
	return nil
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
