package market

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/monitoring"
)

// Source tags where a fetch result came from. The distinction stays internal
// to the market package: callers of the public service see one success
// shape, while logs and metrics can still tell degraded responses apart.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// minSearchQueryLen is the shortest query forwarded upstream; anything
// shorter short-circuits to an empty result.
const minSearchQueryLen = 2

// Upstream is the provider surface the fetcher wraps. Satisfied by
// *coingecko.Client.
type Upstream interface {
	Markets(ctx context.Context, vsCurrency string, perPage, page int) ([]models.PriceQuote, error)
	SimplePrice(ctx context.Context, ids, vsCurrencies []string) (coingecko.PriceMap, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// Fetcher wraps the upstream client with a bounded retry and a static
// fallback dataset. Total latency is bounded to roughly two call timeouts
// plus one backoff; the caller is never blocked on an open-ended retry loop.
type Fetcher struct {
	upstream Upstream
	backoff  time.Duration
	log      *zap.SugaredLogger
	metrics  *monitoring.Metrics
}

func NewFetcher(upstream Upstream, backoff time.Duration, log *zap.SugaredLogger, metrics *monitoring.Metrics) *Fetcher {
	return &Fetcher{
		upstream: upstream,
		backoff:  backoff,
		log:      log,
		metrics:  metrics,
	}
}

// Markets fetches the bulk market listing, degrading to the static fallback
// dataset when both attempts fail. The error return is reserved for context
// cancellation; upstream failure alone never propagates.
func (f *Fetcher) Markets(ctx context.Context, vsCurrency string, perPage, page int) ([]models.PriceQuote, Source, error) {
	quotes, err := retryOnce(ctx, f.backoff, func(ctx context.Context) ([]models.PriceQuote, error) {
		return f.upstream.Markets(ctx, vsCurrency, perPage, page)
	})
	if err == nil {
		f.observe("markets", SourceLive)
		return quotes, SourceLive, nil
	}
	if ctx.Err() != nil {
		return nil, SourceFallback, ctx.Err()
	}

	f.log.Warnw("markets fetch failed after retry, serving fallback dataset",
		"vs_currency", vsCurrency, "page", page, "error", err)
	f.observe("markets", SourceFallback)
	return FallbackMarkets(), SourceFallback, nil
}

// Prices fetches spot prices for a set of provider ids, degrading to the
// fallback dataset. Ids the fallback does not cover are absent from a
// degraded result; the caller decides whether that is fatal.
func (f *Fetcher) Prices(ctx context.Context, ids, vsCurrencies []string) (coingecko.PriceMap, Source, error) {
	prices, err := retryOnce(ctx, f.backoff, func(ctx context.Context) (coingecko.PriceMap, error) {
		return f.upstream.SimplePrice(ctx, ids, vsCurrencies)
	})
	if err == nil {
		f.observe("simple_price", SourceLive)
		return prices, SourceLive, nil
	}
	if ctx.Err() != nil {
		return nil, SourceFallback, ctx.Err()
	}

	f.log.Warnw("price fetch failed after retry, serving fallback dataset",
		"ids", ids, "error", err)
	f.observe("simple_price", SourceFallback)
	return FallbackPrices(ids, vsCurrencies), SourceFallback, nil
}

// Search runs the free-text search. There is no meaningful fallback for
// arbitrary queries, so exhausted retries yield an empty result rather than
// an error; queries under two characters never reach the network.
func (f *Fetcher) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if len([]rune(query)) < minSearchQueryLen {
		return []models.SearchResult{}, nil
	}

	results, err := retryOnce(ctx, f.backoff, func(ctx context.Context) ([]models.SearchResult, error) {
		return f.upstream.Search(ctx, query)
	})
	if err == nil {
		f.observe("search", SourceLive)
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.log.Warnw("search fetch failed after retry, returning empty result",
		"query", query, "error", err)
	f.observe("search", SourceFallback)
	return []models.SearchResult{}, nil
}

func (f *Fetcher) observe(endpoint string, source Source) {
	if f.metrics != nil {
		f.metrics.ObserveFetch(endpoint, string(source))
	}
}

// retryOnce runs fn, and on failure waits one backoff and tries exactly once
// more. Context cancellation aborts the wait.
func retryOnce[T any](ctx context.Context, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	out, err := fn(ctx)
	if err == nil {
		return out, nil
	}

	select {
	case <-ctx.Done():
		return out, ctx.Err()
	case <-time.After(backoff):
	}

	return fn(ctx)
}
