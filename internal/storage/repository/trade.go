package repository

import (
	"database/sql"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// TradeRepository хранит историю закрытых сделок
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает репозиторий сделок
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// SaveAll дописывает недостающие сделки. Сделки неизменяемы,
// поэтому конфликт по id просто игнорируется.
func (r *TradeRepository) SaveAll(tx *sql.Tx, trades []domain.Trade) error {
	query := `
		INSERT INTO trades (id, symbol, mode, direction, entry_price, exit_price,
		                    size, leverage, realized_pnl, realized_pnl_pct,
		                    open_time, close_time, close_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	for _, t := range trades {
		_, err := tx.Exec(query,
			t.ID, t.Symbol, t.Mode, t.Direction, t.EntryPrice, t.ExitPrice,
			t.Size, t.Leverage, t.RealizedPnl, t.RealizedPnlPct,
			t.OpenTime, t.CloseTime, t.CloseReason,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetAll читает все сделки в порядке закрытия
func (r *TradeRepository) GetAll() ([]domain.Trade, error) {
	query := `
		SELECT id, symbol, mode, direction, entry_price, exit_price,
		       size, leverage, realized_pnl, realized_pnl_pct,
		       open_time, close_time, close_reason
		FROM trades
		ORDER BY close_time
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		err := rows.Scan(
			&t.ID, &t.Symbol, &t.Mode, &t.Direction, &t.EntryPrice, &t.ExitPrice,
			&t.Size, &t.Leverage, &t.RealizedPnl, &t.RealizedPnlPct,
			&t.OpenTime, &t.CloseTime, &t.CloseReason,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}
