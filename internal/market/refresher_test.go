package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/logger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/models"
)

func newTestRefresher(upstream Upstream, cache *PriceCache) *Refresher {
	fetcher := NewFetcher(upstream, time.Millisecond, logger.NewNop(), nil)
	return NewRefresher(fetcher, cache, nil, time.Hour, "usd", 100, logger.NewNop())
}

func TestRefreshSwapsLiveSnapshot(t *testing.T) {
	upstream := &scriptedUpstream{quotes: []models.PriceQuote{
		{Symbol: "BTC", CurrentPrice: 90617},
		{Symbol: "ETH", CurrentPrice: 3094.17},
	}}
	cache := NewPriceCache(time.Minute, nil)
	refresher := newTestRefresher(upstream, cache)

	refresher.Refresh(context.Background())

	require.True(t, cache.HotSetPopulated())
	assert.Len(t, cache.HotSet(), 2)
	quote, ok := cache.LookupSymbol("ETH")
	require.True(t, ok)
	assert.Equal(t, 3094.17, quote.CurrentPrice)
}

func TestRefreshDegradedKeepsPreviousSnapshot(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 100}
	cache := NewPriceCache(time.Minute, nil)
	refresher := newTestRefresher(upstream, cache)

	previous := []models.PriceQuote{{Symbol: "BTC", CurrentPrice: 95000}}
	cache.SwapHotSet(previous)

	refresher.Refresh(context.Background())

	quote, ok := cache.LookupSymbol("BTC")
	require.True(t, ok)
	assert.Equal(t, 95000.0, quote.CurrentPrice,
		"a degraded refresh must not overwrite live prices with the frozen fallback")
}

func TestRefreshDegradedSeedsEmptyHotSet(t *testing.T) {
	upstream := &scriptedUpstream{failFirst: 100}
	cache := NewPriceCache(time.Minute, nil)
	refresher := newTestRefresher(upstream, cache)

	refresher.Refresh(context.Background())

	require.True(t, cache.HotSetPopulated(), "first population may come from the fallback")
	quote, ok := cache.LookupSymbol("BTC")
	require.True(t, ok)
	assert.Equal(t, 90617.0, quote.CurrentPrice)
}

// blockingUpstream holds the bulk listing call until released.
type blockingUpstream struct {
	release chan struct{}
	quotes  []models.PriceQuote
}

func (u *blockingUpstream) Markets(context.Context, string, int, int) ([]models.PriceQuote, error) {
	<-u.release
	return u.quotes, nil
}

func (u *blockingUpstream) SimplePrice(context.Context, []string, []string) (coingecko.PriceMap, error) {
	return nil, errUpstream
}

func (u *blockingUpstream) Search(context.Context, string) ([]models.SearchResult, error) {
	return nil, errUpstream
}

func TestStopWaitsForInitialRefresh(t *testing.T) {
	upstream := &blockingUpstream{
		release: make(chan struct{}),
		quotes:  []models.PriceQuote{{Symbol: "BTC", CurrentPrice: 90617}},
	}
	cache := NewPriceCache(time.Minute, nil)
	refresher := newTestRefresher(upstream, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, refresher.Start(ctx))

	stopped := make(chan struct{})
	go func() {
		refresher.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the initial refresh was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(upstream.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the refresh finished")
	}
	assert.True(t, cache.HotSetPopulated(),
		"the initial refresh completed before shutdown finished")
}

func TestStartRunsInitialRefresh(t *testing.T) {
	upstream := &scriptedUpstream{quotes: []models.PriceQuote{{Symbol: "BTC", CurrentPrice: 90617}}}
	cache := NewPriceCache(time.Minute, nil)
	refresher := newTestRefresher(upstream, cache)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, refresher.Start(ctx))
	defer refresher.Stop()

	assert.Eventually(t, cache.HotSetPopulated, time.Second, 5*time.Millisecond)
}
