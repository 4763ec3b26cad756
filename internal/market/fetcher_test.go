package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/logger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

// scriptedUpstream fails a configurable number of leading calls per endpoint
// before succeeding.
type scriptedUpstream struct {
	marketCalls int
	priceCalls  int
	searchCalls int
	failFirst   int

	quotes  []models.PriceQuote
	prices  coingecko.PriceMap
	results []models.SearchResult
}

var errUpstream = errors.New("upstream unavailable")

func (u *scriptedUpstream) Markets(context.Context, string, int, int) ([]models.PriceQuote, error) {
	u.marketCalls++
	if u.marketCalls <= u.failFirst {
		return nil, errUpstream
	}
	return u.quotes, nil
}

func (u *scriptedUpstream) SimplePrice(context.Context, []string, []string) (coingecko.PriceMap, error) {
	u.priceCalls++
	if u.priceCalls <= u.failFirst {
		return nil, errUpstream
	}
	return u.prices, nil
}

func (u *scriptedUpstream) Search(context.Context, string) ([]models.SearchResult, error) {
	u.searchCalls++
	if u.searchCalls <= u.failFirst {
		return nil, errUpstream
	}
	return u.results, nil
}

func newTestFetcher(upstream Upstream) *Fetcher {
	return NewFetcher(upstream, time.Millisecond, logger.NewNop(), nil)
}

func TestMarketsLiveFirstTry(t *testing.T) {
	upstream := &scriptedUpstream{quotes: []models.PriceQuote{{Symbol: "BTC"}}}
	fetcher := newTestFetcher(upstream)

	quotes, source, err := fetcher.Markets(context.Background(), "usd", 100, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, source)
	assert.Len(t, quotes, 1)
	assert.Equal(t, 1, upstream.marketCalls)
}

func TestMarketsRetriesOnceThenSucceeds(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 1, quotes: []models.PriceQuote{{Symbol: "BTC"}}}
	fetcher := newTestFetcher(upstream)

	quotes, source, err := fetcher.Markets(context.Background(), "usd", 100, 1)
	require.NoError(t, err)
	assert.Equal(t, SourceLive, source)
	assert.Len(t, quotes, 1)
	assert.Equal(t, 2, upstream.marketCalls, "exactly one retry")
}

func TestMarketsFallsBackAfterRetryExhausted(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 10}
	fetcher := newTestFetcher(upstream)

	quotes, source, err := fetcher.Markets(context.Background(), "usd", 100, 1)
	require.NoError(t, err, "upstream failure degrades, it does not error")
	assert.Equal(t, SourceFallback, source)
	assert.Equal(t, 2, upstream.marketCalls, "no open-ended retry loop")

	require.NotEmpty(t, quotes)
	assert.Equal(t, "BTC", quotes[0].Symbol, "fallback is ordered by market cap")
	assert.Equal(t, 90617.0, quotes[0].CurrentPrice)
	assert.Equal(t, 1, quotes[0].MarketCapRank)
}

func TestMarketsContextCancellationPropagates(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 10}
	fetcher := NewFetcher(upstream, time.Minute, logger.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := fetcher.Markets(ctx, "usd", 100, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPricesFallbackShape(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 10}
	fetcher := newTestFetcher(upstream)

	prices, source, err := fetcher.Prices(context.Background(),
		[]string{"bitcoin", "unknown-coin"}, []string{"usd", "inr"})
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, source)

	entry, ok := prices["bitcoin"]
	require.True(t, ok)
	assert.Equal(t, 90617.0, entry["usd"])
	assert.Equal(t, 90617.0*83, entry["inr"])

	_, ok = prices["unknown-coin"]
	assert.False(t, ok, "ids without fallback coverage are absent")
}

func TestSearchShortQueryNeverReachesUpstream(t *testing.T) {
	upstream := &scriptedUpstream{}
	fetcher := newTestFetcher(upstream)

	results, err := fetcher.Search(context.Background(), "b")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, upstream.searchCalls)
}

func TestSearchFailureYieldsEmptyResult(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 10}
	fetcher := newTestFetcher(upstream)

	results, err := fetcher.Search(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Empty(t, results, "search has no meaningful fallback")
	assert.Equal(t, 2, upstream.searchCalls)
}
