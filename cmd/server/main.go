package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/cache"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/config"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/database"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/handlers"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/ledger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/logger"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/market/coingecko"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/middleware"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/monitoring"
	"github.com/Ullas-Gowda/Wall-Street-Bets/internal/repository"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sqlDB, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalw("open database", "error", err)
	}
	defer sqlDB.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sqlDB.PingContext(pingCtx); err != nil {
		cancel()
		log.Fatalw("database unreachable", "error", err)
	}
	cancel()

	metrics := monitoring.NewMetrics(cfg.App.Name)
	db := database.New(sqlDB)

	// The Redis mirror is optional; without it the hot set simply cold-starts
	// from the fallback dataset.
	var mirror *cache.SnapshotStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		mirror = cache.NewSnapshotStore(redisClient, cfg.Market.CacheTTL)
	}

	upstream := coingecko.NewClient(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Market.RequestTimeout)
	fetcher := market.NewFetcher(upstream, cfg.Market.RetryBackoff, log, metrics)
	priceCache := market.NewPriceCache(cfg.Market.CacheTTL, metrics)
	marketService := market.NewService(fetcher, priceCache, cfg.Market.Currency, cfg.Market.HotSetSize, log)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	refresher := market.NewRefresher(fetcher, priceCache, mirror,
		cfg.Market.RefreshInterval, cfg.Market.Currency, cfg.Market.HotSetSize, log)
	if err := refresher.Start(refreshCtx); err != nil {
		log.Fatalw("start refresher", "error", err)
	}

	store := repository.NewStore(db)
	book := ledger.New(store, marketService, log, metrics)

	router := mux.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log, metrics))
	router.Use(middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst).Middleware)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
	}).Methods(http.MethodGet)
	router.Handle("/metrics", monitoring.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	handlers.NewMarketHandler(marketService, log).Register(api.PathPrefix("/market").Subrouter())
	handlers.NewTradeHandler(book, store, log).Register(api.PathPrefix("/trade").Subrouter())

	corsOptions := cors.Options{
		AllowedOrigins: cfg.App.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
	if len(corsOptions.AllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      cors.New(corsOptions).Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server listening", "port", cfg.App.Port, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	stopRefresh()
	refresher.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
	log.Info("server stopped")
}
