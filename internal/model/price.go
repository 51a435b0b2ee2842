// Package model defines the core data types shared across the dashboard
// service: daily price rows, indicator columns, and quote payloads.
package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar day. It marshals to JSON as "2006-01-02".
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day.
func NewDate(t time.Time) Date {
	u := t.UTC()
	return Date{time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a "2006-01-02" string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(dateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Float is a float64 that marshals NaN and ±Inf as JSON null.
// Indicator warm-up rows are undefined, not zero.
type Float float64

// Undefined reports whether the value is a warm-up hole.
func (f Float) Undefined() bool {
	v := float64(f)
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func (f Float) MarshalJSON() ([]byte, error) {
	if f.Undefined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'f', -1, 64), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// PriceRow is one trading day of OHLCV data for a symbol.
// JSON field names are capitalized to match the dashboard wire format.
type PriceRow struct {
	Date   Date    `json:"Date"`
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume int64   `json:"Volume"`
}

// IndicatorSet maps an indicator column name to its values, index-aligned
// one-to-one with the price rows of the same request.
type IndicatorSet map[string][]Float

// CombinedData is the full payload for one (symbol, start, end) request.
type CombinedData struct {
	Rows       []PriceRow   `json:"stock_data"`
	Indicators IndicatorSet `json:"indicators"`
}

// CSVExport is the export_csv response payload.
type CSVExport struct {
	CSVData  string `json:"csv_data"`
	Filename string `json:"filename"`
}

// Quote is the latest traded price for a symbol, pushed to live subscribers.
type Quote struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	TS     time.Time `json:"ts"`
}

// JSON returns the JSON-encoded quote (ignoring errors for hot-path usage).
func (q *Quote) JSON() []byte {
	b, _ := json.Marshal(q)
	return b
}

// TickerInfo is one entry of the selectable ticker universe.
type TickerInfo struct {
	Symbol string `json:"symbol" yaml:"symbol"`
	Name   string `json:"name" yaml:"name"`
	Sector string `json:"sector,omitempty" yaml:"sector,omitempty"`
}
