package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientBalance возвращается при недостаточном балансе
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAdvisoryFailed возвращается когда AI-анализ не удался или не распарсился
	ErrAdvisoryFailed = errors.New("advisory request failed")

	// ErrExchangeAPI возвращается при ошибке API биржи
	ErrExchangeAPI = errors.New("exchange API error")

	// ErrDatabaseConnection возвращается при ошибке подключения к БД
	ErrDatabaseConnection = errors.New("database connection error")
)
