package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/ledger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

// TradeService is the order and portfolio surface the trade handler exposes
// over HTTP. Satisfied by *ledger.Ledger.
type TradeService interface {
	Buy(ctx context.Context, accountID int64, symbol string, quantity decimal.Decimal) (*ledger.BuyResult, error)
	Sell(ctx context.Context, accountID int64, symbol string, quantity decimal.Decimal) (*ledger.SellResult, error)
	Portfolio(ctx context.Context, accountID int64) (*models.Portfolio, error)
	Holding(ctx context.Context, accountID int64, symbol string) (*ledger.Holding, error)
	Transactions(ctx context.Context, accountID int64, filter ledger.TransactionFilter) (*ledger.TransactionPage, error)
}

// AccountCreator provisions new accounts. Satisfied by *repository.Store.
type AccountCreator interface {
	CreateAccount(ctx context.Context, name, email string) (*models.Account, error)
}

type TradeHandler struct {
	service  TradeService
	accounts AccountCreator
	log      *zap.SugaredLogger
}

func NewTradeHandler(service TradeService, accounts AccountCreator, log *zap.SugaredLogger) *TradeHandler {
	return &TradeHandler{service: service, accounts: accounts, log: log}
}

// Register mounts the trade routes on the given subrouter.
func (h *TradeHandler) Register(r *mux.Router) {
	r.HandleFunc("/buy", h.Buy).Methods(http.MethodPost)
	r.HandleFunc("/sell", h.Sell).Methods(http.MethodPost)
	r.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/portfolio/{accountId}", h.Portfolio).Methods(http.MethodGet)
	r.HandleFunc("/holding/{accountId}/{symbol}", h.Holding).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{accountId}", h.Transactions).Methods(http.MethodGet)
}

// orderRequest is the body of a buy or sell. Price is deliberately absent:
// execution price is always resolved server-side.
type orderRequest struct {
	AccountID int64           `json:"account_id"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Buy handles POST /api/trade/buy.
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}

	result, err := h.service.Buy(r.Context(), req.AccountID, req.Symbol, req.Quantity)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// Sell handles POST /api/trade/sell.
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}

	result, err := h.service.Sell(r.Context(), req.AccountID, req.Symbol, req.Quantity)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type createAccountRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateAccount handles POST /api/trade/accounts. Every account starts with
// the default virtual cash balance.
func (h *TradeHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, apperr.InvalidOrder("invalid request body"))
		return
	}
	if req.Name == "" || req.Email == "" {
		writeError(w, h.log, apperr.InvalidOrder("name and email are required"))
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Portfolio handles GET /api/trade/portfolio/{accountId}.
func (h *TradeHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	portfolio, err := h.service.Portfolio(r.Context(), accountID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, portfolio)
}

// Holding handles GET /api/trade/holding/{accountId}/{symbol}.
func (h *TradeHandler) Holding(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	holding, err := h.service.Holding(r.Context(), accountID, mux.Vars(r)["symbol"])
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, holding)
}

// transactionsResponse pairs one history page with its pagination block.
type transactionsResponse struct {
	Transactions []models.Transaction `json:"transactions"`
	Pagination   pagination           `json:"pagination"`
}

type pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Pages  int `json:"pages"`
}

// Transactions handles
// GET /api/trade/transactions/{accountId}?symbol=&side=&limit=&offset=.
func (h *TradeHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	page, err := h.service.Transactions(r.Context(), accountID, ledger.TransactionFilter{
		Symbol: q.Get("symbol"),
		Side:   models.TradeSide(q.Get("side")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	pages := (page.Total + limit - 1) / limit
	writeJSON(w, http.StatusOK, transactionsResponse{
		Transactions: page.Items,
		Pagination:   pagination{Total: page.Total, Limit: limit, Offset: offset, Pages: pages},
	})
}

func (h *TradeHandler) decodeOrder(w http.ResponseWriter, r *http.Request) (orderRequest, bool) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, apperr.InvalidOrder("invalid request body"))
		return orderRequest{}, false
	}
	return req, true
}

func (h *TradeHandler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["accountId"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, h.log, apperr.InvalidOrder("invalid account id"))
		return 0, false
	}
	return id, true
}
