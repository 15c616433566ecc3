package repository

import (
	"database/sql"
)

// SettingRepository хранит настройки бота в виде ключ-значение
type SettingRepository struct {
	db *sql.DB
}

// NewSettingRepository создает репозиторий настроек
func NewSettingRepository(db *sql.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Set записывает значение настройки
func (r *SettingRepository) Set(key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()
	`
	_, err := r.db.Exec(query, key, value)
	return err
}

// Get читает значение настройки. Возвращает sql.ErrNoRows если ключа нет.
func (r *SettingRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}
