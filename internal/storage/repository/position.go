package repository

import (
	"database/sql"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// PositionRepository хранит открытые позиции
type PositionRepository struct {
	db *sql.DB
}

// NewPositionRepository создает репозиторий позиций
func NewPositionRepository(db *sql.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// ReplaceAll перезаписывает множество открытых позиций целиком.
// Снимок всегда полный, поэтому проще заменить, чем сводить диффы.
func (r *PositionRepository) ReplaceAll(tx *sql.Tx, positions []domain.Position) error {
	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		return err
	}

	query := `
		INSERT INTO positions (id, symbol, mode, direction, size, leverage,
		                       entry_price, mark_price, liquidation_price,
		                       stop_loss, take_profit, trailing_stop,
		                       unrealized_pnl, unrealized_pnl_pct, open_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	for _, p := range positions {
		_, err := tx.Exec(query,
			p.ID, p.Symbol, p.Mode, p.Direction, p.Size, p.Leverage,
			p.EntryPrice, p.MarkPrice, p.LiquidationPrice,
			p.StopLoss, p.TakeProfit, p.TrailingStop,
			p.UnrealizedPnl, p.UnrealizedPnlPct, p.OpenTime,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetAll читает все открытые позиции
func (r *PositionRepository) GetAll() ([]domain.Position, error) {
	query := `
		SELECT id, symbol, mode, direction, size, leverage,
		       entry_price, mark_price, liquidation_price,
		       stop_loss, take_profit, trailing_stop,
		       unrealized_pnl, unrealized_pnl_pct, open_time
		FROM positions
		ORDER BY open_time
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		err := rows.Scan(
			&p.ID, &p.Symbol, &p.Mode, &p.Direction, &p.Size, &p.Leverage,
			&p.EntryPrice, &p.MarkPrice, &p.LiquidationPrice,
			&p.StopLoss, &p.TakeProfit, &p.TrailingStop,
			&p.UnrealizedPnl, &p.UnrealizedPnlPct, &p.OpenTime,
		)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}

	return positions, rows.Err()
}
