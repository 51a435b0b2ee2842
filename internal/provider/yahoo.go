package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"marketdash/internal/model"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance public API:
// the v8 chart endpoint for OHLCV bars and the v10 quoteSummary endpoint
// for trailing EPS.
type YahooFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewYahooFetcher creates a Yahoo Finance fetcher. baseURL overrides the
// public endpoint (used by tests); empty means the real API.
func NewYahooFetcher(baseURL string, timeout time.Duration) *YahooFetcher {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &YahooFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// yahooChart is the response structure of the Yahoo chart API. Price
// fields are pointers because holidays and halts appear as JSON nulls.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// yahooQuoteSummary is the response structure of the quoteSummary API,
// trimmed to the defaultKeyStatistics module.
type yahooQuoteSummary struct {
	QuoteSummary struct {
		Result []struct {
			DefaultKeyStatistics struct {
				TrailingEps struct {
					Raw float64 `json:"raw"`
				} `json:"trailingEps"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

func (f *YahooFetcher) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("yahoo: %w", ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, symbol string, query string) ([]model.PriceRow, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(symbol), query)

	var chart yahooChart
	if err := f.get(ctx, u, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, fmt.Errorf("yahoo %q: %w", symbol, ErrNoData)
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo %q: %w", symbol, ErrNoData)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	// Dedupe by calendar day — Yahoo occasionally repeats the last bar.
	byDay := make(map[string]model.PriceRow, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) {
			break
		}
		o, h, l, c := quote.Open[i], quote.High[i], quote.Low[i], quote.Close[i]
		if o == nil || h == nil || l == nil || c == nil {
			continue // null bar (holiday, halt)
		}
		var vol int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		row := model.PriceRow{
			Date:   model.NewDate(time.Unix(ts, 0)),
			Open:   *o,
			High:   *h,
			Low:    *l,
			Close:  *c,
			Volume: vol,
		}
		byDay[row.Date.String()] = row
	}

	rows := make([]model.PriceRow, 0, len(byDay))
	for _, row := range byDay {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date.Time) })

	if len(rows) == 0 {
		return nil, fmt.Errorf("yahoo %q: %w", symbol, ErrNoData)
	}
	return rows, nil
}

// FetchDailyBars returns daily bars for the inclusive [start, end] range.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceRow, error) {
	from := model.NewDate(start)
	to := model.NewDate(end)

	// period2 is exclusive on the Yahoo side, so push it one day past end.
	query := fmt.Sprintf("interval=1d&period1=%d&period2=%d",
		from.Unix(), to.AddDate(0, 0, 1).Unix())

	rows, err := f.fetchChart(ctx, symbol, query)
	if err != nil {
		return nil, err
	}

	// Clip: the provider can hand back bars just outside the window.
	out := rows[:0]
	for _, r := range rows {
		if r.Date.Before(from.Time) || r.Date.After(to.Time) {
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("yahoo %q: %w", symbol, ErrNoData)
	}
	return out, nil
}

// FetchCurrentPrice returns the most recent close from a 1-day chart.
func (f *YahooFetcher) FetchCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	rows, err := f.fetchChart(ctx, symbol, "interval=1d&range=1d")
	if err != nil {
		return 0, err
	}
	return rows[len(rows)-1].Close, nil
}

// FetchTrailingEPS returns the trailing EPS from quoteSummary, or 0 when
// the provider has no figure (funds, fresh listings, loss-makers).
func (f *YahooFetcher) FetchTrailingEPS(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=defaultKeyStatistics",
		f.BaseURL, url.PathEscape(symbol))

	var qs yahooQuoteSummary
	if err := f.get(ctx, u, &qs); err != nil {
		return 0, err
	}
	if qs.QuoteSummary.Error != nil || len(qs.QuoteSummary.Result) == 0 {
		return 0, nil
	}
	return qs.QuoteSummary.Result[0].DefaultKeyStatistics.TrailingEps.Raw, nil
}
