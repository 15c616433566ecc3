package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillm/opentrade-bot/internal/domain"
)

// AccountRepository хранит единственную строку состояния счета.
// История equity сериализуется в JSONB.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает репозиторий счета
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Save перезаписывает состояние счета
func (r *AccountRepository) Save(tx *sql.Tx, account domain.AccountInfo) error {
	history, err := json.Marshal(account.EquityHistory)
	if err != nil {
		return fmt.Errorf("marshal equity history: %w", err)
	}

	query := `
		INSERT INTO account (id, balance, equity, used_margin, unrealized_pnl,
		                     total_deposited, total_withdrawn, equity_history, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			equity = EXCLUDED.equity,
			used_margin = EXCLUDED.used_margin,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			total_deposited = EXCLUDED.total_deposited,
			total_withdrawn = EXCLUDED.total_withdrawn,
			equity_history = EXCLUDED.equity_history,
			updated_at = NOW()
	`
	_, err = tx.Exec(query,
		account.Balance,
		account.Equity,
		account.UsedMargin,
		account.UnrealizedPnl,
		account.TotalDeposited,
		account.TotalWithdrawn,
		history,
	)
	return err
}

// Get читает состояние счета. Возвращает sql.ErrNoRows если счета еще нет.
func (r *AccountRepository) Get() (domain.AccountInfo, error) {
	query := `
		SELECT balance, equity, used_margin, unrealized_pnl,
		       total_deposited, total_withdrawn, equity_history
		FROM account
		WHERE id = 1
	`

	var account domain.AccountInfo
	var history []byte
	err := r.db.QueryRow(query).Scan(
		&account.Balance,
		&account.Equity,
		&account.UsedMargin,
		&account.UnrealizedPnl,
		&account.TotalDeposited,
		&account.TotalWithdrawn,
		&history,
	)
	if err != nil {
		return domain.AccountInfo{}, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &account.EquityHistory); err != nil {
			return domain.AccountInfo{}, fmt.Errorf("unmarshal equity history: %w", err)
		}
	}

	return account, nil
}
