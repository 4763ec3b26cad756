package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

// MarketService is the read surface the market handler exposes over HTTP.
// Satisfied by *market.Service.
type MarketService interface {
	AllMarkets(ctx context.Context, vsCurrency string, perPage, page int, assetType string) ([]models.PriceQuote, error)
	Price(ctx context.Context, symbol string) (models.PriceQuote, error)
	Prices(ctx context.Context, symbols []string) ([]models.PriceQuote, error)
	SpotPrices(ctx context.Context, ids, vsCurrencies []string) (coingecko.PriceMap, error)
	History(ctx context.Context, symbol string) (models.PriceHistory, error)
	Trending(ctx context.Context) ([]models.PriceQuote, error)
	SearchAssets(ctx context.Context, query string) ([]models.SearchResult, error)
}

type MarketHandler struct {
	service MarketService
	log     *zap.SugaredLogger
}

func NewMarketHandler(service MarketService, log *zap.SugaredLogger) *MarketHandler {
	return &MarketHandler{service: service, log: log}
}

// Register mounts the market routes on the given subrouter.
func (h *MarketHandler) Register(r *mux.Router) {
	r.HandleFunc("", h.Markets).Methods(http.MethodGet)
	r.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	r.HandleFunc("/trending", h.Trending).Methods(http.MethodGet)
	r.HandleFunc("/spot", h.SpotPrices).Methods(http.MethodGet)
	r.HandleFunc("/price/{symbol}", h.Price).Methods(http.MethodGet)
	r.HandleFunc("/prices", h.Prices).Methods(http.MethodGet)
	r.HandleFunc("/history/{symbol}", h.History).Methods(http.MethodGet)
}

// Markets handles GET /api/market?vs_currency=&per_page=&page=&asset_type=.
func (h *MarketHandler) Markets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	page, _ := strconv.Atoi(q.Get("page"))

	quotes, err := h.service.AllMarkets(r.Context(), q.Get("vs_currency"), perPage, page, q.Get("asset_type"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// Price handles GET /api/market/price/{symbol}.
func (h *MarketHandler) Price(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	quote, err := h.service.Price(r.Context(), symbol)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// Prices handles GET /api/market/prices?symbols=BTC,ETH. Unresolvable
// symbols are silently omitted.
func (h *MarketHandler) Prices(w http.ResponseWriter, r *http.Request) {
	symbols := splitList(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, h.log, apperr.InvalidOrder("symbols query parameter is required"))
		return
	}

	quotes, err := h.service.Prices(r.Context(), symbols)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// SpotPrices handles GET /api/market/spot?ids=bitcoin,ethereum&vs_currencies=usd,inr,
// the raw multi-currency passthrough keyed by provider id.
func (h *MarketHandler) SpotPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := splitList(q.Get("ids"))
	if len(ids) == 0 {
		writeError(w, h.log, apperr.InvalidOrder("ids query parameter is required"))
		return
	}

	prices, err := h.service.SpotPrices(r.Context(), ids, splitList(q.Get("vs_currencies")))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// History handles GET /api/market/history/{symbol}.
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	history, err := h.service.History(r.Context(), symbol)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

// Trending handles GET /api/market/trending.
func (h *MarketHandler) Trending(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.service.Trending(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// Search handles GET /api/market/search?q=.
func (h *MarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.SearchAssets(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
