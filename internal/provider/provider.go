// Package provider fetches market data from external sources.
package provider

import (
	"context"
	"errors"
	"time"

	"marketdash/internal/model"
)

// ErrNoData is returned when a symbol is unknown or the requested range
// holds no trading days.
var ErrNoData = errors.New("no data returned for symbol")

// Fetcher is the interface for market data sources.
type Fetcher interface {
	// FetchDailyBars returns daily price rows for symbol over the inclusive
	// date range, sorted ascending by date with unique dates.
	FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceRow, error)

	// FetchCurrentPrice returns the latest traded price.
	FetchCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// FetchTrailingEPS returns trailing twelve-month earnings per share.
	// Returns 0 when the provider has no figure for the symbol.
	FetchTrailingEPS(ctx context.Context, symbol string) (float64, error)
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Bars  []model.PriceRow
	Price float64
	EPS   float64
	Err   error
}

func (m *MockFetcher) FetchDailyBars(_ context.Context, _ string, start, end time.Time) ([]model.PriceRow, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	from := model.NewDate(start)
	to := model.NewDate(end)
	var out []model.PriceRow
	for _, r := range m.Bars {
		if r.Date.Before(from.Time) || r.Date.After(to.Time) {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (m *MockFetcher) FetchCurrentPrice(context.Context, string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Price, nil
}

func (m *MockFetcher) FetchTrailingEPS(context.Context, string) (float64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.EPS, nil
}

// GenerateBars builds a deterministic synthetic daily series ending today.
// Useful for development without network access.
func GenerateBars(basePrice float64, count int) []model.PriceRow {
	rows := make([]model.PriceRow, count)
	now := time.Now().UTC()
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		rows[i] = model.PriceRow{
			Date:   model.NewDate(now.AddDate(0, 0, -(count - i))),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1_000_000,
		}
	}
	return rows
}
