// Package service orchestrates data fetch, caching, and indicator
// computation for dashboard requests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketdash/internal/indicator"
	"marketdash/internal/metrics"
	"marketdash/internal/model"
	"marketdash/internal/provider"
	redisstore "marketdash/internal/store/redis"
	sqlitestore "marketdash/internal/store/sqlite"
)

// ErrNoData is returned when a symbol is unknown or the requested range
// holds no trading days. Handlers turn it into an explicit empty-data
// response, never a partial one.
var ErrNoData = errors.New("no data available for the specified date range")

// Service resolves a (symbol, start, end) request into price rows plus
// indicator columns. Caches are optional; correctness never depends on them.
type Service struct {
	fetcher provider.Fetcher
	bars    *sqlitestore.Cache
	fast    *redisstore.Cache
	engine  *indicator.Engine
	prom    *metrics.Metrics
	log     *slog.Logger
}

// New creates a Service. bars, fast, and prom may be nil.
func New(fetcher provider.Fetcher, bars *sqlitestore.Cache, fast *redisstore.Cache,
	engine *indicator.Engine, prom *metrics.Metrics, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		fetcher: fetcher,
		bars:    bars,
		fast:    fast,
		engine:  engine,
		prom:    prom,
		log:     log,
	}
}

// CombinedData fetches the price series and computes every indicator
// column over it.
func (s *Service) CombinedData(ctx context.Context, symbol string, start, end time.Time) (*model.CombinedData, error) {
	rows, err := s.resolveBars(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	eps := s.resolveEPS(ctx, symbol)

	t0 := time.Now()
	set := s.engine.ComputeAll(rows, eps)
	s.prom.ObserveIndicatorCompute(time.Since(t0))

	return &model.CombinedData{Rows: rows, Indicators: set}, nil
}

// ExportCSV builds the downloadable CSV for the same request scope.
func (s *Service) ExportCSV(ctx context.Context, symbol string, start, end time.Time) (*model.CSVExport, error) {
	data, err := s.CombinedData(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	csvData, err := buildCSV(data.Rows, data.Indicators, s.engine.Columns())
	if err != nil {
		return nil, fmt.Errorf("build csv: %w", err)
	}

	s.prom.CSVExport()
	return &model.CSVExport{
		CSVData:  csvData,
		Filename: symbol + "_data.csv",
	}, nil
}

// Prewarm refreshes the bar cache for the given symbols over a trailing
// lookback window. Failures are counted, logged, and otherwise ignored.
func (s *Service) Prewarm(ctx context.Context, symbols []string, lookbackDays int) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)

	failed := 0
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, err := s.resolveBars(ctx, sym, start, end); err != nil {
			failed++
			s.log.Warn("prewarm fetch failed", slog.String("symbol", sym), slog.Any("err", err))
		}
	}
	s.prom.PrewarmRun(failed)
	s.log.Info("prewarm complete",
		slog.Int("symbols", len(symbols)),
		slog.Int("failed", failed))
}

// resolveBars serves bars from the sqlite cache when the range is covered,
// otherwise fetches from the provider and populates the cache.
func (s *Service) resolveBars(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceRow, error) {
	if cached, ok, err := s.bars.GetBars(ctx, symbol, start, end); err != nil {
		s.log.Warn("bar cache read failed", slog.String("symbol", symbol), slog.Any("err", err))
	} else if ok {
		if len(cached) == 0 {
			return nil, ErrNoData
		}
		s.prom.CacheHit("sqlite")
		return cached, nil
	}
	s.prom.CacheMiss("sqlite")

	t0 := time.Now()
	rows, err := s.fetcher.FetchDailyBars(ctx, symbol, start, end)
	s.prom.ObserveProviderFetch("daily_bars", time.Since(t0), err)
	if err != nil {
		if errors.Is(err, provider.ErrNoData) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("fetch daily bars: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	if err := s.bars.PutBars(ctx, symbol, start, end, rows); err != nil {
		s.log.Warn("bar cache write failed", slog.String("symbol", symbol), slog.Any("err", err))
	}
	return rows, nil
}

// resolveEPS is best-effort: any failure means the pe_ratio column comes
// back undefined instead of the request failing.
func (s *Service) resolveEPS(ctx context.Context, symbol string) float64 {
	if eps, ok := s.fast.GetEPS(ctx, symbol); ok {
		s.prom.CacheHit("redis")
		return eps
	}
	s.prom.CacheMiss("redis")

	t0 := time.Now()
	eps, err := s.fetcher.FetchTrailingEPS(ctx, symbol)
	s.prom.ObserveProviderFetch("trailing_eps", time.Since(t0), err)
	if err != nil {
		s.log.Warn("trailing EPS fetch failed", slog.String("symbol", symbol), slog.Any("err", err))
		return 0
	}

	s.fast.SetEPS(ctx, symbol, eps)
	return eps
}
