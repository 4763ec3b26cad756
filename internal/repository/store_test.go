package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/database"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/ledger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(database.New(db)), mock
}

func accountRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "cash_balance", "role", "created_at", "updated_at",
	})
}

func TestCreateAccountStartsWithDefaultCash(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("alice", "alice@example.com", "100000").
		WillReturnRows(accountRows().
			AddRow(1, "alice", "alice@example.com", "100000", "user", now, now))

	account, err := store.CreateAccount(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.ID)
	assert.True(t, account.CashBalance.Equal(decimal.NewFromInt(100000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccountNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM accounts").
		WithArgs(int64(42)).
		WillReturnRows(accountRows())

	_, err := store.GetAccount(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAccountNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPositionReturnsNilOnNoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT .+ FROM positions").
		WithArgs(int64(1), "BTC").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "symbol", "type", "quantity", "average_cost",
			"total_invested", "current_price", "created_at", "updated_at",
		}))

	position, err := store.GetPosition(context.Background(), 1, "BTC")
	require.NoError(t, err, "a missing position is not an error")
	assert.Nil(t, position)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactionsPagesWithFilters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions").
		WithArgs(int64(1), "BTC", "BUY").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	txID := uuid.New()
	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(int64(1), "BTC", "BUY", 5, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "account_id", "symbol", "side", "quantity", "price",
			"total_value", "status", "created_at",
		}).AddRow(txID, 1, "BTC", "BUY", "1", "90617", "90617", "COMPLETED", time.Now()))

	page, err := store.ListTransactions(context.Background(), 1, ledger.TransactionFilter{
		Symbol: "BTC",
		Side:   models.SideBuy,
		Limit:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, txID, page.Items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTransactionsUnpagedFetchesEverything(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transactions").
		WithArgs(int64(1), "BTC").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	rows := sqlmock.NewRows([]string{
		"id", "account_id", "symbol", "side", "quantity", "price",
		"total_value", "status", "created_at",
	})
	for i := 0; i < 2; i++ {
		rows.AddRow(uuid.New(), 1, "BTC", "BUY", "1", "90617", "90617", "COMPLETED", time.Now())
	}
	// No limit or offset arguments: the unpaged query carries only the
	// filter bindings.
	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(int64(1), "BTC").
		WillReturnRows(rows)

	page, err := store.ListTransactions(context.Background(), 1, ledger.TransactionFilter{
		Symbol:  "BTC",
		Unpaged: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func tradeCommit(position *models.Position, removeSymbol string) *ledger.TradeCommit {
	return &ledger.TradeCommit{
		AccountID:    1,
		CashBalance:  decimal.NewFromInt(9383),
		Position:     position,
		RemoveSymbol: removeSymbol,
		Transaction: &models.Transaction{
			ID:         uuid.New(),
			AccountID:  1,
			Symbol:     "BTC",
			Side:       models.SideBuy,
			Quantity:   decimal.NewFromInt(1),
			Price:      decimal.NewFromInt(90617),
			TotalValue: decimal.NewFromInt(90617),
			Status:     models.StatusCompleted,
			CreatedAt:  time.Now(),
		},
	}
}

func TestExecuteTradeCommitsAllWrites(t *testing.T) {
	store, mock := newMockStore(t)

	position := &models.Position{
		AccountID:     1,
		Symbol:        "BTC",
		Type:          models.AssetCrypto,
		Quantity:      decimal.NewFromInt(1),
		AverageCost:   decimal.NewFromInt(90617),
		TotalInvested: decimal.NewFromInt(90617),
		CurrentPrice:  decimal.NewFromInt(90617),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET cash_balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO positions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ExecuteTrade(context.Background(), tradeCommit(position, ""))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTradeDeletesClosedPosition(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET cash_balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM positions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.ExecuteTrade(context.Background(), tradeCommit(nil, "BTC"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTradeRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	position := &models.Position{AccountID: 1, Symbol: "BTC"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET cash_balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO positions").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.ExecuteTrade(context.Background(), tradeCommit(position, ""))
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteTradeUnknownAccountRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE accounts SET cash_balance").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.ExecuteTrade(context.Background(), tradeCommit(nil, ""))
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindAccountNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
