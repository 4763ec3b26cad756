package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/apperr"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

const (
	defaultPerPage  = 50
	trendingSize    = 10
	historyDays     = 7
	historyJitter   = 0.05 // +-5% of current price
	defaultCurrency = "usd"
)

// errDegraded marks a fetch that succeeded only by falling back to the
// static dataset. It keeps degraded payloads out of the TTL cache: a stale
// live entry is preferred over fresh fallback data, and fallback data is
// recomputed per request instead of being cached as if it were real.
var errDegraded = errors.New("degraded upstream response")

// Service answers all market read operations. Lookups are served from the
// hot set where possible; anything else goes through the TTL cache and the
// resilient fetcher.
type Service struct {
	fetcher    *Fetcher
	cache      *PriceCache
	currency   string
	hotSetSize int
	log        *zap.SugaredLogger
}

func NewService(fetcher *Fetcher, priceCache *PriceCache, currency string, hotSetSize int, log *zap.SugaredLogger) *Service {
	if currency == "" {
		currency = defaultCurrency
	}
	return &Service{
		fetcher:    fetcher,
		cache:      priceCache,
		currency:   currency,
		hotSetSize: hotSetSize,
		log:        log,
	}
}

// AllMarkets returns one page of the bulk market listing. The default
// request shape (base currency, first page) is served from the hot set
// without a network round trip; everything else goes through the TTL cache.
// assetType is accepted for interface parity; only crypto is listed.
func (s *Service) AllMarkets(ctx context.Context, vsCurrency string, perPage, page int, assetType string) ([]models.PriceQuote, error) {
	if vsCurrency == "" {
		vsCurrency = s.currency
	}
	vsCurrency = strings.ToLower(vsCurrency)
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	_ = assetType

	if vsCurrency == s.currency && page == 1 {
		if hot := s.cache.HotSet(); hot != nil {
			if perPage > len(hot) {
				perPage = len(hot)
			}
			return s.decorate(hot[:perPage], vsCurrency), nil
		}
	}

	fingerprint := Fingerprint("markets", map[string]string{
		"vs_currency": vsCurrency,
		"per_page":    strconv.Itoa(perPage),
		"page":        strconv.Itoa(page),
	})
	payload, err := s.cache.GetOrFetch(fingerprint, func() (interface{}, error) {
		quotes, source, err := s.fetcher.Markets(ctx, vsCurrency, perPage, page)
		if err != nil {
			return nil, err
		}
		if source == SourceFallback {
			return nil, errDegraded
		}
		return quotes, nil
	})
	if err != nil {
		if errors.Is(err, errDegraded) {
			quotes := FallbackMarkets()
			if perPage < len(quotes) {
				quotes = quotes[:perPage]
			}
			return s.decorate(quotes, vsCurrency), nil
		}
		return nil, err
	}

	return s.decorate(payload.([]models.PriceQuote), vsCurrency), nil
}

// Price resolves a single symbol. Resolution order: hot set, then a
// search-then-price fall-through for symbols outside the top listing,
// then NotFound.
func (s *Service) Price(ctx context.Context, symbol string) (models.PriceQuote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return models.PriceQuote{}, apperr.NotFound("symbol required")
	}

	if !s.cache.HotSetPopulated() {
		// The initial background population has not landed yet; an
		// empty hot set is not authoritative, so fetch on demand. The
		// returned listing is scanned directly: a degraded (fallback)
		// listing never reaches the hot set, so this is the only way a
		// fallback-covered symbol resolves before the first seed lands.
		quotes, err := s.AllMarkets(ctx, s.currency, s.hotSetSize, 1, "all")
		if err != nil {
			s.log.Warnw("on-demand market fetch failed", "symbol", sym, "error", err)
		}
		for _, quote := range quotes {
			if strings.ToUpper(quote.Symbol) == sym {
				return quote, nil
			}
		}
	}

	if quote, ok := s.cache.LookupSymbol(sym); ok {
		quote.Currency = strings.ToUpper(s.currency)
		return quote, nil
	}
	if quote, ok := s.deepLookup(ctx, sym); ok {
		return quote, nil
	}
	return models.PriceQuote{}, apperr.NotFound(fmt.Sprintf("symbol %s not found", sym))
}

// deepLookup resolves a symbol missing from the hot set: free-text search
// for the provider id, then a targeted spot-price call.
func (s *Service) deepLookup(ctx context.Context, symbol string) (models.PriceQuote, bool) {
	results, err := s.SearchAssets(ctx, symbol)
	if err != nil || len(results) == 0 {
		return models.PriceQuote{}, false
	}

	var match *models.SearchResult
	for i := range results {
		if results[i].Symbol == symbol {
			match = &results[i]
			break
		}
	}
	if match == nil {
		return models.PriceQuote{}, false
	}

	prices, err := s.spotPrices(ctx, []string{match.ID}, []string{s.currency})
	if err != nil {
		s.log.Warnw("spot price lookup failed", "id", match.ID, "error", err)
		return models.PriceQuote{}, false
	}
	entry, ok := prices[match.ID]
	if !ok {
		return models.PriceQuote{}, false
	}
	price, ok := entry[s.currency]
	if !ok {
		return models.PriceQuote{}, false
	}

	return models.PriceQuote{
		ID:             match.ID,
		Symbol:         match.Symbol,
		Name:           match.Name,
		Image:          match.Image,
		CurrentPrice:   price,
		PriceChange24h: entry[s.currency+"_24h_change"],
		MarketCapRank:  match.MarketCapRank,
		Type:           models.AssetCrypto,
		Currency:       strings.ToUpper(s.currency),
	}, true
}

// Prices resolves a set of symbols, omitting any that cannot be resolved.
// Partial misses never produce an error.
func (s *Service) Prices(ctx context.Context, symbols []string) ([]models.PriceQuote, error) {
	quotes := make([]models.PriceQuote, 0, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.Price(ctx, symbol)
		if err != nil {
			if !apperr.IsKind(err, apperr.KindNotFound) {
				s.log.Warnw("price resolution failed", "symbol", symbol, "error", err)
			}
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// SpotPrices exposes the raw multi-currency /simple/price passthrough.
func (s *Service) SpotPrices(ctx context.Context, ids, vsCurrencies []string) (coingecko.PriceMap, error) {
	if len(vsCurrencies) == 0 {
		vsCurrencies = []string{"usd", "inr"}
	}
	return s.spotPrices(ctx, ids, vsCurrencies)
}

func (s *Service) spotPrices(ctx context.Context, ids, vsCurrencies []string) (coingecko.PriceMap, error) {
	fingerprint := Fingerprint("price", map[string]string{
		"ids":           NormalizeIDs(ids),
		"vs_currencies": NormalizeIDs(vsCurrencies),
	})
	payload, err := s.cache.GetOrFetch(fingerprint, func() (interface{}, error) {
		prices, source, err := s.fetcher.Prices(ctx, ids, vsCurrencies)
		if err != nil {
			return nil, err
		}
		if source == SourceFallback {
			return nil, errDegraded
		}
		return prices, nil
	})
	if err != nil {
		if errors.Is(err, errDegraded) {
			return FallbackPrices(ids, vsCurrencies), nil
		}
		return nil, err
	}
	return payload.(coingecko.PriceMap), nil
}

// History fabricates a 7-point daily series from the current price with
// small randomized variation. This is a simulated stand-in for providers
// without free historical data, and every response says so via the
// Synthetic flag.
func (s *Service) History(ctx context.Context, symbol string) (models.PriceHistory, error) {
	quote, err := s.Price(ctx, symbol)
	if err != nil {
		return models.PriceHistory{}, err
	}

	points := make([]models.PricePoint, 0, historyDays)
	for i := historyDays - 1; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i).Format("2006-01-02")
		variation := (rand.Float64() - 0.5) * quote.CurrentPrice * historyJitter
		points = append(points, models.PricePoint{
			Date:  date,
			Price: math.Round((quote.CurrentPrice+variation)*100) / 100,
		})
	}

	return models.PriceHistory{
		Symbol:    quote.Symbol,
		Synthetic: true,
		Points:    points,
	}, nil
}

// Trending returns the top 10 instruments by absolute 24h percentage
// change, descending.
func (s *Service) Trending(ctx context.Context) ([]models.PriceQuote, error) {
	quotes := s.cache.HotSet()
	if quotes == nil {
		fetched, err := s.AllMarkets(ctx, s.currency, s.hotSetSize, 1, "all")
		if err != nil {
			return nil, err
		}
		quotes = fetched
	}

	ranked := make([]models.PriceQuote, len(quotes))
	copy(ranked, quotes)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].PriceChange24h) > math.Abs(ranked[j].PriceChange24h)
	})
	if len(ranked) > trendingSize {
		ranked = ranked[:trendingSize]
	}
	return ranked, nil
}

// SearchAssets runs the free-text search. Queries under two characters
// short-circuit to an empty result without touching the cache or network.
func (s *Service) SearchAssets(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minSearchQueryLen {
		return []models.SearchResult{}, nil
	}

	fingerprint := Fingerprint("search", map[string]string{"query": query})
	payload, err := s.cache.GetOrFetch(fingerprint, func() (interface{}, error) {
		return s.fetcher.Search(ctx, query)
	})
	if err != nil {
		return nil, err
	}
	return payload.([]models.SearchResult), nil
}

// decorate injects the display fields the UI expects without mutating the
// shared snapshot.
func (s *Service) decorate(quotes []models.PriceQuote, vsCurrency string) []models.PriceQuote {
	out := make([]models.PriceQuote, len(quotes))
	copy(out, quotes)
	currency := strings.ToUpper(vsCurrency)
	for i := range out {
		out[i].Currency = currency
		out[i].Market = "Crypto"
		out[i].Type = models.AssetCrypto
	}
	return out
}
