package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"marketdash/internal/indicator"
	"marketdash/internal/model"
	"marketdash/internal/provider"
)

func fixtureBars() []model.PriceRow {
	base := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	rows := make([]model.PriceRow, 30)
	for i := range rows {
		c := 180 + float64(i)*0.5
		rows[i] = model.PriceRow{
			Date:   model.NewDate(base.AddDate(0, 0, i)),
			Open:   c - 0.3,
			High:   c + 1.0,
			Low:    c - 1.2,
			Close:  c,
			Volume: int64(50_000_000 + i*100_000),
		}
	}
	return rows
}

func newTestService(mock *provider.MockFetcher) *Service {
	return New(mock, nil, nil, indicator.NewEngine(indicator.DefaultConfig()), nil, nil)
}

func TestService_CombinedData(t *testing.T) {
	bars := fixtureBars()
	svc := newTestService(&provider.MockFetcher{Bars: bars, EPS: 6.5})

	start := bars[0].Date.Time
	end := bars[len(bars)-1].Date.Time
	data, err := svc.CombinedData(context.Background(), "AAPL", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(data.Rows) != len(bars) {
		t.Errorf("rows: got %d, want %d", len(data.Rows), len(bars))
	}
	for _, name := range []string{"sma_20", "rsi", "bollinger_upper", "atr",
		"garman_klass", "dollar_volume", "percent_change", "macd", "pe_ratio"} {
		col, ok := data.Indicators[name]
		if !ok {
			t.Errorf("missing indicator column %q", name)
			continue
		}
		if len(col) != len(bars) {
			t.Errorf("column %q: length %d, want %d", name, len(col), len(bars))
		}
	}

	// EPS flowed through: pe_ratio = close / 6.5
	pe := data.Indicators["pe_ratio"]
	want := bars[0].Close / 6.5
	if float64(pe[0]) != want {
		t.Errorf("pe_ratio[0]=%v, want %v", pe[0], want)
	}
}

func TestService_CombinedData_SubRange(t *testing.T) {
	bars := fixtureBars()
	svc := newTestService(&provider.MockFetcher{Bars: bars})

	start := bars[5].Date.Time
	end := bars[10].Date.Time
	data, err := svc.CombinedData(context.Background(), "AAPL", start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Rows) != 6 {
		t.Errorf("rows: got %d, want 6", len(data.Rows))
	}
	if data.Rows[0].Date.String() != bars[5].Date.String() {
		t.Errorf("first row %s, want %s", data.Rows[0].Date, bars[5].Date)
	}
}

func TestService_NoData(t *testing.T) {
	bars := fixtureBars()
	svc := newTestService(&provider.MockFetcher{Bars: bars})

	// A range before the fixture data starts
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	_, err := svc.CombinedData(context.Background(), "AAPL", start, end)
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}

func TestService_ProviderOutageSurfaces(t *testing.T) {
	svc := newTestService(&provider.MockFetcher{Err: errors.New("connection refused")})

	_, err := svc.CombinedData(context.Background(), "AAPL",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNoData) {
		t.Error("an outage must not look like an empty range")
	}
}

func TestService_EPSFailureDisablesPERatioOnly(t *testing.T) {
	bars := fixtureBars()
	mock := &provider.MockFetcher{Bars: bars, EPS: 0}
	svc := newTestService(mock)

	data, err := svc.CombinedData(context.Background(), "AAPL",
		bars[0].Date.Time, bars[len(bars)-1].Date.Time)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range data.Indicators["pe_ratio"] {
		if !v.Undefined() {
			t.Fatalf("row %d: pe_ratio should be undefined without EPS, got %v", i, v)
		}
	}
	// Everything else still computed
	if data.Indicators["dollar_volume"][0].Undefined() {
		t.Error("dollar_volume should be unaffected by a missing EPS")
	}
}

func TestService_ExportCSV(t *testing.T) {
	bars := fixtureBars()
	svc := newTestService(&provider.MockFetcher{Bars: bars, EPS: 6.5})

	out, err := svc.ExportCSV(context.Background(), "AAPL",
		bars[0].Date.Time, bars[len(bars)-1].Date.Time)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.Filename != "AAPL_data.csv" {
		t.Errorf("filename %q, want AAPL_data.csv", out.Filename)
	}

	lines := strings.Split(strings.TrimRight(out.CSVData, "\n"), "\n")
	if len(lines) != len(bars)+1 {
		t.Fatalf("csv lines: got %d, want %d", len(lines), len(bars)+1)
	}

	header := strings.Split(lines[0], ",")
	wantPrefix := []string{"Date", "Open", "High", "Low", "Close", "Volume"}
	for i, w := range wantPrefix {
		if header[i] != w {
			t.Errorf("header[%d]=%q, want %q", i, header[i], w)
		}
	}
	if header[len(wantPrefix)] != "garman_klass" {
		t.Errorf("first indicator column %q, want garman_klass", header[len(wantPrefix)])
	}

	// Warm-up cells are empty, not zero: sma_20 on the first data row.
	first := strings.Split(lines[1], ",")
	smaIdx := -1
	for i, h := range header {
		if h == "sma_20" {
			smaIdx = i
		}
	}
	if smaIdx < 0 {
		t.Fatal("sma_20 column missing from header")
	}
	if first[smaIdx] != "" {
		t.Errorf("warm-up sma_20 cell should be empty, got %q", first[smaIdx])
	}

	// A warm row has the value filled in
	warm := strings.Split(lines[25], ",")
	if warm[smaIdx] == "" {
		t.Error("warm sma_20 cell should be populated")
	}
}

func TestService_ExportCSV_NoData(t *testing.T) {
	svc := newTestService(&provider.MockFetcher{})

	_, err := svc.ExportCSV(context.Background(), "NOPE",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}
}
