package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssetClass identifies the instrument class of a quote or position.
type AssetClass string

const (
	AssetCrypto AssetClass = "crypto"
	AssetStock  AssetClass = "stock"
)

// PriceQuote is a snapshot of one instrument's market state as reported by
// the upstream provider. Quotes are immutable; a fresher quote for the same
// symbol supersedes the old one in the cache rather than mutating it.
type PriceQuote struct {
	ID                string     `json:"id"`
	Symbol            string     `json:"symbol"`
	Name              string     `json:"name"`
	Image             string     `json:"image,omitempty"`
	CurrentPrice      float64    `json:"current_price"`
	MarketCap         float64    `json:"market_cap,omitempty"`
	MarketCapRank     int        `json:"market_cap_rank,omitempty"`
	PriceChange24h    float64    `json:"price_change_percentage_24h"`
	TotalVolume       float64    `json:"total_volume,omitempty"`
	CirculatingSupply float64    `json:"circulating_supply,omitempty"`
	Type              AssetClass `json:"type"`
	Currency          string     `json:"currency,omitempty"`
	Market            string     `json:"market,omitempty"`
}

// SearchResult is a single match from the provider's free-text search.
// Search results carry no price; resolving one to a tradable quote requires
// a follow-up spot-price lookup.
type SearchResult struct {
	ID            string     `json:"id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Image         string     `json:"image,omitempty"`
	MarketCapRank int        `json:"market_cap_rank,omitempty"`
	Country       string     `json:"country"`
	Type          AssetClass `json:"type"`
}

// PricePoint is one day of the synthetic price history series.
type PricePoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

// PriceHistory is a 7-point series derived from the current price with small
// randomized variation. It is a simulated stand-in, not historical fact; the
// Synthetic flag is always true and exists so clients cannot mistake it for
// real data.
type PriceHistory struct {
	Symbol    string       `json:"symbol"`
	Synthetic bool         `json:"synthetic"`
	Points    []PricePoint `json:"points"`
}

// Account holds the virtual cash balance a user trades with. The balance is
// mutated only by the trade ledger as the consequence of a completed
// transaction.
type Account struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Email       string          `json:"email" db:"email"`
	CashBalance decimal.Decimal `json:"cash_balance" db:"cash_balance"`
	Role        string          `json:"role" db:"role"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Position is one (account, symbol) holding. Quantity is always positive for
// a persisted position; a sell that brings the quantity to exactly zero
// deletes the row instead of leaving a zero-quantity record behind.
//
// AverageCost is the volume-weighted average price paid per unit, updated
// only on buys. CurrentValue and UnrealizedPnL are read-time projections
// against the freshest obtainable price and are never written back to
// storage.
type Position struct {
	ID            int64           `json:"id" db:"id"`
	AccountID     int64           `json:"account_id" db:"account_id"`
	Symbol        string          `json:"symbol" db:"symbol"`
	Type          AssetClass      `json:"type" db:"type"`
	Quantity      decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost   decimal.Decimal `json:"average_cost" db:"average_cost"`
	TotalInvested decimal.Decimal `json:"total_invested" db:"total_invested"`
	CurrentPrice  decimal.Decimal `json:"current_price" db:"current_price"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// TradeSide is the direction of an order.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// TransactionStatus is the terminal state of a recorded transaction. The
// happy path only ever emits COMPLETED.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusPending   TransactionStatus = "PENDING"
	StatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an immutable, append-only record of an executed order. It
// is the sole source of truth for historical activity.
type Transaction struct {
	ID         uuid.UUID         `json:"id" db:"id"`
	AccountID  int64             `json:"account_id" db:"account_id"`
	Symbol     string            `json:"symbol" db:"symbol"`
	Side       TradeSide         `json:"side" db:"side"`
	Quantity   decimal.Decimal   `json:"quantity" db:"quantity"`
	Price      decimal.Decimal   `json:"price" db:"price"`
	TotalValue decimal.Decimal   `json:"total_value" db:"total_value"`
	Status     TransactionStatus `json:"status" db:"status"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// PortfolioSummary aggregates all positions of one account.
type PortfolioSummary struct {
	TotalInvested      decimal.Decimal `json:"total_invested"`
	TotalCurrentValue  decimal.Decimal `json:"total_current_value"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	ReturnPercentage   decimal.Decimal `json:"total_return_percentage"`
}

// Portfolio is the full portfolio view for one account: every held position
// revalued against live prices plus the aggregate summary.
type Portfolio struct {
	Account   *Account         `json:"account"`
	Positions []Position       `json:"positions"`
	Summary   PortfolioSummary `json:"summary"`
}
