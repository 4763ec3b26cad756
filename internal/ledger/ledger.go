// Package ledger executes buy and sell orders against ledger-resolved
// market prices and keeps account cash, positions and the transaction log
// moving together as one unit.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/monitoring"
)

// MarketData is the price resolution surface the ledger depends on.
// Satisfied by *market.Service. Prices are always ledger-sourced through
// this interface, never taken from the client request, so a caller cannot
// manipulate its own execution price.
type MarketData interface {
	Price(ctx context.Context, symbol string) (models.PriceQuote, error)
	Prices(ctx context.Context, symbols []string) ([]models.PriceQuote, error)
}

// TransactionFilter narrows and pages a transaction listing. Unpaged
// returns the full matching history; Limit and Offset are then ignored.
type TransactionFilter struct {
	Symbol  string
	Side    models.TradeSide
	Limit   int
	Offset  int
	Unpaged bool
}

// TransactionPage is one page of transaction history plus the unpaged total.
type TransactionPage struct {
	Items []models.Transaction
	Total int
}

// TradeCommit is the atomic write unit for one order: the new cash balance,
// the position upsert or removal, and the appended transaction. The store
// applies all of it in a single transaction or none of it.
type TradeCommit struct {
	AccountID    int64
	CashBalance  decimal.Decimal
	Position     *models.Position // upsert when non-nil
	RemoveSymbol string           // delete the (account, symbol) position when non-empty
	Transaction  *models.Transaction
}

// Store is the account persistence surface. Satisfied by *repository.Store.
type Store interface {
	GetAccount(ctx context.Context, accountID int64) (*models.Account, error)
	GetPosition(ctx context.Context, accountID int64, symbol string) (*models.Position, error)
	ListPositions(ctx context.Context, accountID int64) ([]models.Position, error)
	ListTransactions(ctx context.Context, accountID int64, filter TransactionFilter) (*TransactionPage, error)
	ExecuteTrade(ctx context.Context, commit *TradeCommit) error
}

// BuyResult is returned from a committed buy order.
type BuyResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	Position      *models.Position    `json:"position"`
	RemainingCash decimal.Decimal     `json:"remaining_cash"`
	ExecutedPrice decimal.Decimal     `json:"executed_price"`
}

// SellResult is returned from a committed sell order. Position is nil when
// the sell closed the holding entirely.
type SellResult struct {
	Transaction   *models.Transaction `json:"transaction"`
	Position      *models.Position    `json:"position,omitempty"`
	RealizedPnL   decimal.Decimal     `json:"realized_pnl"`
	RemainingCash decimal.Decimal     `json:"remaining_cash"`
	ExecutedPrice decimal.Decimal     `json:"executed_price"`
}

// Ledger coordinates price resolution, validation and the atomic commit of
// an order.
type Ledger struct {
	store   Store
	market  MarketData
	locks   *accountLocks
	log     *zap.SugaredLogger
	metrics *monitoring.Metrics
}

func New(store Store, market MarketData, log *zap.SugaredLogger, metrics *monitoring.Metrics) *Ledger {
	return &Ledger{
		store:   store,
		market:  market,
		locks:   newAccountLocks(),
		log:     log,
		metrics: metrics,
	}
}

// Buy executes a buy order: resolve the price, check funds, debit cash,
// upsert the position at the volume-weighted average cost, append the
// transaction. The account lock is held only across the read-modify-write,
// never across the (possibly slow) price resolution.
func (l *Ledger) Buy(ctx context.Context, accountID int64, symbol string, quantity decimal.Decimal) (*BuyResult, error) {
	sym, err := validateOrder(symbol, quantity)
	if err != nil {
		return nil, l.reject(err)
	}

	price, quote, err := l.resolvePrice(ctx, sym)
	if err != nil {
		return nil, l.reject(err)
	}

	unlock := l.locks.lock(accountID)
	defer unlock()

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, l.reject(err)
	}

	totalCost := price.Mul(quantity)
	if account.CashBalance.LessThan(totalCost) {
		return nil, l.reject(apperr.InsufficientFunds(fmt.Sprintf(
			"order costs %s but account %d holds %s",
			totalCost.StringFixed(2), accountID, account.CashBalance.StringFixed(2),
		)))
	}

	existing, err := l.store.GetPosition(ctx, accountID, sym)
	if err != nil {
		return nil, l.reject(err)
	}

	position := applyBuy(existing, accountID, sym, quote.Type, quantity, price, totalCost)

	txn := &models.Transaction{
		ID:         uuid.New(),
		AccountID:  accountID,
		Symbol:     sym,
		Side:       models.SideBuy,
		Quantity:   quantity,
		Price:      price,
		TotalValue: totalCost,
		Status:     models.StatusCompleted,
		CreatedAt:  time.Now(),
	}

	newCash := account.CashBalance.Sub(totalCost)
	err = l.store.ExecuteTrade(ctx, &TradeCommit{
		AccountID:   accountID,
		CashBalance: newCash,
		Position:    position,
		Transaction: txn,
	})
	if err != nil {
		return nil, l.reject(err)
	}

	l.observeTrade(models.SideBuy)
	l.log.Infow("buy order committed",
		"account_id", accountID, "symbol", sym,
		"quantity", quantity, "price", price, "total", totalCost)

	project(position, price)
	return &BuyResult{
		Transaction:   txn,
		Position:      position,
		RemainingCash: newCash,
		ExecutedPrice: price,
	}, nil
}

// Sell executes a sell order. Average cost basis is unchanged by a sell;
// only quantity and total invested shrink, proportionally. Selling the
// exact full quantity removes the position.
func (l *Ledger) Sell(ctx context.Context, accountID int64, symbol string, quantity decimal.Decimal) (*SellResult, error) {
	sym, err := validateOrder(symbol, quantity)
	if err != nil {
		return nil, l.reject(err)
	}

	price, _, err := l.resolvePrice(ctx, sym)
	if err != nil {
		return nil, l.reject(err)
	}

	unlock := l.locks.lock(accountID)
	defer unlock()

	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, l.reject(err)
	}

	existing, err := l.store.GetPosition(ctx, accountID, sym)
	if err != nil {
		return nil, l.reject(err)
	}
	if existing == nil || existing.Quantity.LessThan(quantity) {
		held := decimal.Zero
		if existing != nil {
			held = existing.Quantity
		}
		return nil, l.reject(apperr.InsufficientHoldings(fmt.Sprintf(
			"account %d holds %s %s, cannot sell %s",
			accountID, held, sym, quantity,
		)))
	}

	proceeds := price.Mul(quantity)
	costOfSold := existing.AverageCost.Mul(quantity)
	realized := proceeds.Sub(costOfSold)
	newCash := account.CashBalance.Add(proceeds)

	commit := &TradeCommit{
		AccountID:   accountID,
		CashBalance: newCash,
	}

	remaining := existing.Quantity.Sub(quantity)
	var position *models.Position
	if remaining.IsZero() {
		commit.RemoveSymbol = sym
	} else {
		updated := *existing
		updated.Quantity = remaining
		updated.TotalInvested = existing.TotalInvested.Sub(costOfSold)
		updated.CurrentPrice = price
		position = &updated
		commit.Position = position
	}

	txn := &models.Transaction{
		ID:         uuid.New(),
		AccountID:  accountID,
		Symbol:     sym,
		Side:       models.SideSell,
		Quantity:   quantity,
		Price:      price,
		TotalValue: proceeds,
		Status:     models.StatusCompleted,
		CreatedAt:  time.Now(),
	}
	commit.Transaction = txn

	if err := l.store.ExecuteTrade(ctx, commit); err != nil {
		return nil, l.reject(err)
	}

	l.observeTrade(models.SideSell)
	l.log.Infow("sell order committed",
		"account_id", accountID, "symbol", sym,
		"quantity", quantity, "price", price, "realized_pnl", realized)

	if position != nil {
		project(position, price)
	}
	return &SellResult{
		Transaction:   txn,
		Position:      position,
		RealizedPnL:   realized,
		RemainingCash: newCash,
		ExecutedPrice: price,
	}, nil
}

// Portfolio revalues every held position against the freshest obtainable
// price and aggregates the summary. This is a read-time projection: the
// refreshed prices are not written back to storage.
func (l *Ledger) Portfolio(ctx context.Context, accountID int64) (*models.Portfolio, error) {
	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	positions, err := l.store.ListPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}

	livePrices := make(map[string]decimal.Decimal, len(symbols))
	if len(symbols) > 0 {
		quotes, err := l.market.Prices(ctx, symbols)
		if err != nil {
			l.log.Warnw("live revaluation unavailable, using last observed prices",
				"account_id", accountID, "error", err)
		}
		for _, q := range quotes {
			livePrices[strings.ToUpper(q.Symbol)] = decimal.NewFromFloat(q.CurrentPrice)
		}
	}

	summary := models.PortfolioSummary{
		TotalInvested:      decimal.Zero,
		TotalCurrentValue:  decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
		ReturnPercentage:   decimal.Zero,
	}
	for i := range positions {
		price, ok := livePrices[positions[i].Symbol]
		if !ok || !price.IsPositive() {
			// Unresolvable symbol: fall back to the last price the
			// ledger observed at trade time.
			price = positions[i].CurrentPrice
		}
		positions[i].CurrentPrice = price
		project(&positions[i], price)

		summary.TotalInvested = summary.TotalInvested.Add(positions[i].TotalInvested)
		summary.TotalCurrentValue = summary.TotalCurrentValue.Add(positions[i].CurrentValue)
	}
	summary.TotalUnrealizedPnL = summary.TotalCurrentValue.Sub(summary.TotalInvested)
	if summary.TotalInvested.IsPositive() {
		summary.ReturnPercentage = summary.TotalUnrealizedPnL.
			Div(summary.TotalInvested).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	return &models.Portfolio{
		Account:   account,
		Positions: positions,
		Summary:   summary,
	}, nil
}

// Transactions pages the immutable transaction history for one account,
// optionally narrowed by symbol and side.
func (l *Ledger) Transactions(ctx context.Context, accountID int64, filter TransactionFilter) (*TransactionPage, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	filter.Symbol = strings.ToUpper(strings.TrimSpace(filter.Symbol))
	filter.Side = models.TradeSide(strings.ToUpper(string(filter.Side)))
	switch filter.Side {
	case "", models.SideBuy, models.SideSell:
	default:
		return nil, apperr.InvalidOrder(fmt.Sprintf("invalid side filter %q", filter.Side))
	}

	return l.store.ListTransactions(ctx, accountID, filter)
}

// Holding returns one position revalued live plus its full transaction
// history, NotFound when the account holds none of the symbol.
type Holding struct {
	Position     *models.Position     `json:"holding"`
	Transactions []models.Transaction `json:"transactions"`
}

func (l *Ledger) Holding(ctx context.Context, accountID int64, symbol string) (*Holding, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	sym := strings.ToUpper(strings.TrimSpace(symbol))
	position, err := l.store.GetPosition(ctx, accountID, sym)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, apperr.NotFound(fmt.Sprintf("no %s holding for account %d", sym, accountID))
	}

	if quote, err := l.market.Price(ctx, sym); err == nil {
		price := decimal.NewFromFloat(quote.CurrentPrice)
		if price.IsPositive() {
			position.CurrentPrice = price
		}
	}
	project(position, position.CurrentPrice)

	page, err := l.store.ListTransactions(ctx, accountID, TransactionFilter{Symbol: sym, Unpaged: true})
	if err != nil {
		return nil, err
	}

	return &Holding{Position: position, Transactions: page.Items}, nil
}

// resolvePrice turns a symbol into a positive ledger-sourced execution
// price. Any resolution failure surfaces as PriceUnavailable; the order path
// never sees a raw upstream error and never defaults to a client price.
func (l *Ledger) resolvePrice(ctx context.Context, symbol string) (decimal.Decimal, models.PriceQuote, error) {
	quote, err := l.market.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, models.PriceQuote{}, apperr.Wrap(apperr.KindPriceUnavailable,
			fmt.Sprintf("no price available for %s", symbol), err)
	}
	price := decimal.NewFromFloat(quote.CurrentPrice)
	if !price.IsPositive() {
		return decimal.Zero, models.PriceQuote{}, apperr.PriceUnavailable(symbol)
	}
	return price, quote, nil
}

// applyBuy produces the post-buy position. The weighted average rule is the
// core pricing invariant: newAvg = (oldAvg*oldQty + totalCost) / (oldQty + qty),
// which for a first buy degenerates to the executed price.
func applyBuy(existing *models.Position, accountID int64, symbol string, class models.AssetClass, quantity, price, totalCost decimal.Decimal) *models.Position {
	if class == "" {
		class = models.AssetCrypto
	}
	if existing == nil {
		return &models.Position{
			AccountID:     accountID,
			Symbol:        symbol,
			Type:          class,
			Quantity:      quantity,
			AverageCost:   price,
			TotalInvested: totalCost,
			CurrentPrice:  price,
		}
	}

	newQuantity := existing.Quantity.Add(quantity)
	newAverage := existing.AverageCost.Mul(existing.Quantity).
		Add(totalCost).
		Div(newQuantity)

	updated := *existing
	updated.Quantity = newQuantity
	updated.AverageCost = newAverage
	updated.TotalInvested = existing.TotalInvested.Add(totalCost)
	updated.CurrentPrice = price
	return &updated
}

// project fills the derived read-time fields against the given price.
func project(p *models.Position, price decimal.Decimal) {
	p.CurrentValue = p.Quantity.Mul(price)
	p.UnrealizedPnL = p.CurrentValue.Sub(p.TotalInvested)
}

func validateOrder(symbol string, quantity decimal.Decimal) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return "", apperr.InvalidOrder("symbol is required")
	}
	if !quantity.IsPositive() {
		return "", apperr.InvalidOrder("quantity must be positive")
	}
	return sym, nil
}

func (l *Ledger) reject(err error) error {
	if l.metrics != nil {
		if kind := apperr.KindOf(err); kind != apperr.KindUnknown && kind != apperr.KindInternal {
			l.metrics.ObserveRejectedTrade(apperr.Code(err))
		}
	}
	return err
}

func (l *Ledger) observeTrade(side models.TradeSide) {
	if l.metrics != nil {
		l.metrics.ObserveTrade(string(side))
	}
}
