package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"marketdash/config"
	"marketdash/internal/indicator"
	"marketdash/internal/logger"
	"marketdash/internal/metrics"
	"marketdash/internal/provider"
	"marketdash/internal/server"
	"marketdash/internal/service"
	redisstore "marketdash/internal/store/redis"
	sqlitestore "marketdash/internal/store/sqlite"
	"marketdash/internal/universe"
)

func main() {
	// .env is optional — env vars win either way
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.Init("marketdash", logger.ParseLevel(cfg.LogLevel))
	log.Info("starting", slog.String("listen", cfg.ListenAddr))

	prom := metrics.New()

	// ---- Caches (both optional) ----
	var fast *redisstore.Cache
	if cfg.RedisAddr != "" {
		var err error
		fast, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			EPSTTL:   cfg.EPSCacheTTL,
		})
		if err != nil {
			log.Warn("redis unavailable, continuing without it", slog.Any("err", err))
			fast = nil
		}
	}

	bars, err := sqlitestore.New(cfg.SQLitePath)
	if err != nil {
		log.Warn("sqlite cache unavailable, continuing without it", slog.Any("err", err))
		bars = nil
	}

	// ---- Provider behind a circuit breaker ----
	yahoo := provider.NewYahooFetcher(cfg.ProviderBaseURL, cfg.ProviderTimeout)
	fetcher := provider.NewBreakerFetcher(yahoo, 5, 30*time.Second)
	fetcher.Breaker().OnStateChange = func(from, to provider.State) {
		log.Warn("provider circuit breaker state change",
			slog.String("from", from.String()), slog.String("to", to.String()))
		prom.SetBreakerState(float64(to))
		if to == provider.StateOpen {
			prom.BreakerTripped()
		}
	}

	// ---- Service and HTTP surface ----
	engine := indicator.NewEngine(indicator.DefaultConfig())
	svc := service.New(fetcher, bars, fast, engine, prom, log)

	tickers, err := universe.Load(cfg.UniversePath)
	if err != nil {
		log.Error("load ticker universe", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := server.NewHub(fetcher, fast, cfg.QuotePollInterval, prom, log)
	go hub.Run(ctx)

	srv := server.New(svc, hub, tickers, prom, log)
	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Routes(),
	}
	go func() {
		log.Info("api server listening", slog.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("api server error", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, bars.DB(), fast.Client(), time.Now())
	metricsSrv.Start()

	// ---- Nightly cache prewarm for the watchlist ----
	sched := cron.New()
	watchlist := cfg.ParseWatchlist()
	if len(watchlist) > 0 && cfg.PrewarmCron != "" {
		_, err := sched.AddFunc(cfg.PrewarmCron, func() {
			svc.Prewarm(ctx, watchlist, cfg.LookbackDays)
		})
		if err != nil {
			log.Warn("invalid prewarm cron spec, prewarm disabled",
				slog.String("spec", cfg.PrewarmCron), slog.Any("err", err))
		} else {
			sched.Start()
			log.Info("cache prewarm scheduled",
				slog.String("spec", cfg.PrewarmCron),
				slog.Int("symbols", len(watchlist)))
		}
	}

	// ---- Graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if err := bars.Close(); err != nil {
		log.Warn("sqlite close", slog.Any("err", err))
	}
	if err := fast.Close(); err != nil {
		log.Warn("redis close", slog.Any("err", err))
	}
	log.Info("shutdown complete")
}
