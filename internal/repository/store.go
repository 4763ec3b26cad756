// Package repository is the postgres-backed account store: accounts,
// positions and the append-only transaction log. The trade ledger is the
// only mutator of positions and transactions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/database"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/ledger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

// defaultStartingCash is the virtual balance every new account begins with.
const defaultStartingCash = "100000"

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// CreateAccount provisions a new account with the default starting cash.
func (s *Store) CreateAccount(ctx context.Context, name, email string) (*models.Account, error) {
	const query = `
		INSERT INTO accounts (name, email, cash_balance, role)
		VALUES ($1, $2, $3, 'user')
		RETURNING id, name, email, cash_balance, role, created_at, updated_at
	`

	var account models.Account
	err := s.db.QueryRowContext(ctx, query, name, email, defaultStartingCash).Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.CashBalance,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &account, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	const query = `
		SELECT id, name, email, cash_balance, role, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account models.Account
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.CashBalance,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.AccountNotFound(accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

// GetPosition returns the (account, symbol) position, nil without error when
// the account holds none of the symbol.
func (s *Store) GetPosition(ctx context.Context, accountID int64, symbol string) (*models.Position, error) {
	const query = `
		SELECT id, account_id, symbol, type, quantity, average_cost,
		       total_invested, current_price, created_at, updated_at
		FROM positions
		WHERE account_id = $1 AND symbol = $2
	`

	var position models.Position
	err := s.db.QueryRowContext(ctx, query, accountID, symbol).Scan(
		&position.ID,
		&position.AccountID,
		&position.Symbol,
		&position.Type,
		&position.Quantity,
		&position.AverageCost,
		&position.TotalInvested,
		&position.CurrentPrice,
		&position.CreatedAt,
		&position.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &position, nil
}

func (s *Store) ListPositions(ctx context.Context, accountID int64) ([]models.Position, error) {
	const query = `
		SELECT id, account_id, symbol, type, quantity, average_cost,
		       total_invested, current_price, created_at, updated_at
		FROM positions
		WHERE account_id = $1
		ORDER BY symbol
	`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		err := rows.Scan(
			&p.ID,
			&p.AccountID,
			&p.Symbol,
			&p.Type,
			&p.Quantity,
			&p.AverageCost,
			&p.TotalInvested,
			&p.CurrentPrice,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	return positions, nil
}

// ListTransactions pages the transaction history newest-first, optionally
// narrowed by symbol and side.
func (s *Store) ListTransactions(ctx context.Context, accountID int64, filter ledger.TransactionFilter) (*ledger.TransactionPage, error) {
	where := "WHERE account_id = $1"
	args := []interface{}{accountID}

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		where += " AND symbol = $" + strconv.Itoa(len(args))
	}
	if filter.Side != "" {
		args = append(args, string(filter.Side))
		where += " AND side = $" + strconv.Itoa(len(args))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transactions " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count transactions: %w", err)
	}

	paging := ""
	if !filter.Unpaged {
		args = append(args, database.SafeLimit(filter.Limit), database.SafeOffset(filter.Offset))
		paging = fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	pageQuery := fmt.Sprintf(`
		SELECT id, account_id, symbol, side, quantity, price, total_value, status, created_at
		FROM transactions
		%s
		ORDER BY created_at DESC
		%s
	`, where, paging)

	rows, err := s.db.QueryContext(ctx, pageQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	items := make([]models.Transaction, 0, total)
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Symbol,
			&t.Side,
			&t.Quantity,
			&t.Price,
			&t.TotalValue,
			&t.Status,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return &ledger.TransactionPage{Items: items, Total: total}, nil
}

// ExecuteTrade applies one order's full write set atomically: the cash
// update, the position upsert or delete, and the transaction append. Any
// failure rolls the whole order back.
func (s *Store) ExecuteTrade(ctx context.Context, commit *ledger.TradeCommit) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE accounts SET cash_balance = $1, updated_at = NOW() WHERE id = $2
		`, commit.CashBalance, commit.AccountID)
		if err != nil {
			return fmt.Errorf("update cash balance: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update cash balance: %w", err)
		}
		if affected == 0 {
			return apperr.AccountNotFound(commit.AccountID)
		}

		if commit.Position != nil {
			p := commit.Position
			_, err := tx.ExecContext(ctx, `
				INSERT INTO positions (account_id, symbol, type, quantity, average_cost,
				                       total_invested, current_price)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (account_id, symbol) DO UPDATE
				SET quantity       = EXCLUDED.quantity,
				    average_cost   = EXCLUDED.average_cost,
				    total_invested = EXCLUDED.total_invested,
				    current_price  = EXCLUDED.current_price,
				    updated_at     = NOW()
			`, p.AccountID, p.Symbol, p.Type, p.Quantity, p.AverageCost, p.TotalInvested, p.CurrentPrice)
			if err != nil {
				return fmt.Errorf("upsert position: %w", err)
			}
		}

		if commit.RemoveSymbol != "" {
			_, err := tx.ExecContext(ctx, `
				DELETE FROM positions WHERE account_id = $1 AND symbol = $2
			`, commit.AccountID, commit.RemoveSymbol)
			if err != nil {
				return fmt.Errorf("delete position: %w", err)
			}
		}

		t := commit.Transaction
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (id, account_id, symbol, side, quantity, price,
			                          total_value, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, t.ID, t.AccountID, t.Symbol, t.Side, t.Quantity, t.Price, t.TotalValue, t.Status, t.CreatedAt)
		if err != nil {
			return fmt.Errorf("append transaction: %w", err)
		}

		return nil
	})
}
