package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Глобальный экземпляр логгера
var (
	globalLogger *zap.Logger
	once         sync.Once
)

// Init инициализирует глобальный логгер с указанным уровнем
func Init(level string) {
	once.Do(func() {
		globalLogger = newLogger(level)
	})
}

// GetLogger возвращает глобальный экземпляр логгера
func GetLogger() *zap.Logger {
	if globalLogger == nil {
		Init("info")
	}
	return globalLogger
}

// Вспомогательные функции для удобства использования
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// newLogger создает новый экземпляр логгера
func newLogger(levelStr string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	consoleEncoder := zapcore.NewConsoleEncoder(encoderConfig)
	consoleWriter := zapcore.AddSync(os.Stdout)

	core := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}
