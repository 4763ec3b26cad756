package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/cache"
)

// Refresher repopulates the hot-set snapshot on a fixed interval,
// independent of any inbound request. A failed refresh logs and leaves the
// previous snapshot in place; the fallback dataset only ever seeds a hot set
// that has never been populated.
type Refresher struct {
	fetcher  *Fetcher
	cache    *PriceCache
	mirror   *cache.SnapshotStore // optional, nil when Redis is not configured
	cron     *cron.Cron
	interval time.Duration
	currency string
	size     int
	log      *zap.SugaredLogger
	wg       sync.WaitGroup
}

func NewRefresher(fetcher *Fetcher, priceCache *PriceCache, mirror *cache.SnapshotStore, interval time.Duration, currency string, size int, log *zap.SugaredLogger) *Refresher {
	return &Refresher{
		fetcher:  fetcher,
		cache:    priceCache,
		mirror:   mirror,
		cron:     cron.New(),
		interval: interval,
		currency: currency,
		size:     size,
		log:      log,
	}
}

// Start populates the hot set once asynchronously and registers the
// recurring refresh. It returns immediately; requests arriving before the
// first population completes fall back to fetch-on-demand.
func (r *Refresher) Start(ctx context.Context) error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.Refresh(ctx)
	}()

	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := r.cron.AddFunc(spec, func() { r.Refresh(ctx) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	r.cron.Start()
	r.log.Infow("hot set refresher started", "interval", r.interval, "size", r.size)
	return nil
}

// Stop halts the schedule and waits for any in-flight refresh, including
// the initial population, to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.wg.Wait()
	r.log.Info("hot set refresher stopped")
}

// Refresh fetches the bulk listing and swaps the snapshot. Exported so the
// wiring layer can trigger an immediate refresh outside the schedule.
func (r *Refresher) Refresh(ctx context.Context) {
	quotes, source, err := r.fetcher.Markets(ctx, r.currency, r.size, 1)
	if err != nil {
		r.log.Errorw("hot set refresh aborted", "error", err)
		r.seedIfEmpty(ctx)
		return
	}

	if source == SourceFallback {
		if r.cache.HotSetPopulated() {
			// Keep the previous live snapshot rather than
			// overwriting it with frozen fallback prices.
			r.log.Warn("hot set refresh degraded to fallback, keeping previous snapshot")
			return
		}
		r.seedIfEmpty(ctx)
		return
	}

	r.cache.SwapHotSet(quotes)
	r.log.Infow("hot set refreshed", "instruments", len(quotes))

	if r.mirror != nil {
		if err := r.mirror.SaveHotSet(ctx, quotes); err != nil {
			r.log.Warnw("hot set mirror write failed", "error", err)
		}
	}
}

// seedIfEmpty gives an unpopulated hot set its first snapshot: the Redis
// mirror from a previous process if available, the static fallback dataset
// otherwise.
func (r *Refresher) seedIfEmpty(ctx context.Context) {
	if r.cache.HotSetPopulated() {
		return
	}

	if r.mirror != nil {
		mirrored, err := r.mirror.LoadHotSet(ctx)
		if err != nil {
			r.log.Warnw("hot set mirror read failed", "error", err)
		} else if len(mirrored) > 0 {
			r.cache.SwapHotSet(mirrored)
			r.log.Infow("hot set seeded from mirror", "instruments", len(mirrored))
			return
		}
	}

	seed := FallbackMarkets()
	r.cache.SwapHotSet(seed)
	r.log.Warnw("hot set seeded from static fallback", "instruments", len(seed))
}
