package repository

import (
	"database/sql"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// OrderRepository хранит отложенные и исполненные ордера
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает репозиторий ордеров
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// ReplaceAll перезаписывает ордера целиком
func (r *OrderRepository) ReplaceAll(tx *sql.Tx, orders []domain.Order) error {
	if _, err := tx.Exec(`DELETE FROM orders`); err != nil {
		return err
	}

	query := `
		INSERT INTO orders (id, symbol, mode, type, direction, price, trigger_price,
		                    size, leverage, status, created_at, filled_at, filled_price, position_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	for _, o := range orders {
		_, err := tx.Exec(query,
			o.ID, o.Symbol, o.Mode, o.Type, o.Direction, o.Price, o.TriggerPrice,
			o.Size, o.Leverage, o.Status, o.CreatedAt, o.FilledAt, o.FilledPrice, o.PositionID,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetAll читает все ордера
func (r *OrderRepository) GetAll() ([]domain.Order, error) {
	query := `
		SELECT id, symbol, mode, type, direction, price, trigger_price,
		       size, leverage, status, created_at, filled_at, filled_price, position_id
		FROM orders
		ORDER BY created_at
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		err := rows.Scan(
			&o.ID, &o.Symbol, &o.Mode, &o.Type, &o.Direction, &o.Price, &o.TriggerPrice,
			&o.Size, &o.Leverage, &o.Status, &o.CreatedAt, &o.FilledAt, &o.FilledPrice, &o.PositionID,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}
