package indicator

import (
	"math"
	"testing"

	"marketdash/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func row(close float64) model.PriceRow {
	return model.PriceRow{
		Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
		Volume: 1000,
	}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Hand-calculated SMA(3) for a known close series:
	// Closes: 100, 102, 104, 103, 105
	// SMA after row 3: (100+102+104)/3 = 102.0
	// SMA after row 4: (102+104+103)/3 = 103.0
	// SMA after row 5: (104+103+105)/3 = 104.0

	sma := NewSMA(3)
	closes := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, c := range closes {
		sma.Update(row(c))
		if sma.Ready() != ready[i] {
			t.Errorf("row %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		} else if !math.IsNaN(sma.Value()) {
			t.Errorf("row %d: expected NaN before warm-up, got %v", i, sma.Value())
		}
	}
	if sma.Name() != "sma_3" {
		t.Errorf("Name()=%q, want sma_3", sma.Name())
	}
}

func TestSMA_AAPL_January2024(t *testing.T) {
	// Published AAPL daily closes for the first five trading days of 2024
	// (Jan 2 through Jan 8). SMA(5) on the fifth day:
	// (185.64+184.25+181.91+181.18+185.56)/5 = 183.708
	closes := []float64{185.64, 184.25, 181.91, 181.18, 185.56}

	sma := NewSMA(5)
	for _, c := range closes {
		sma.Update(row(c))
	}
	if !sma.Ready() {
		t.Fatal("expected SMA(5) ready after 5 rows")
	}
	assertClose(t, "SMA(5) AAPL", sma.Value(), 183.708, 0.0001)
}

// ────────────────────────────────────────────────────────────
// EMA
// ────────────────────────────────────────────────────────────

func TestEMA_SeedAndSmoothing(t *testing.T) {
	// EMA(3), multiplier = 2/(3+1) = 0.5
	// Closes: 10, 11, 12, 14
	// Seed after row 3: SMA = (10+11+12)/3 = 11.0
	// Row 4: 14*0.5 + 11*0.5 = 12.5
	ema := NewEMA(3)
	for _, c := range []float64{10, 11, 12} {
		ema.Update(row(c))
	}
	assertClose(t, "EMA seed", ema.Value(), 11.0, 0.0001)

	ema.Update(row(14))
	assertClose(t, "EMA step", ema.Value(), 12.5, 0.0001)
}

// ────────────────────────────────────────────────────────────
// RSI
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period3(t *testing.T) {
	// Closes: 100, 101, 103, 102, 104
	// Deltas:      +1,  +2,  -1,  +2
	// Window after row 4: (+1,+2,-1) → gains 3, losses 1 → RS=3 → RSI=75
	// Window after row 5: (+2,-1,+2) → gains 4, losses 1 → RS=4 → RSI=80
	rsi := NewRSI(3)
	closes := []float64{100, 101, 103, 102, 104}
	for i, c := range closes {
		rsi.Update(row(c))
		if i < 3 && !math.IsNaN(rsi.Value()) {
			t.Errorf("row %d: expected NaN before a full delta window", i)
		}
	}
	assertClose(t, "RSI(3) final", rsi.Value(), 80.0, 0.0001)

	rsi2 := NewRSI(3)
	for _, c := range closes[:4] {
		rsi2.Update(row(c))
	}
	assertClose(t, "RSI(3) row 4", rsi2.Value(), 75.0, 0.0001)
}

func TestRSI_Extremes(t *testing.T) {
	// All gains → 100, all losses → 0
	up := NewRSI(3)
	for _, c := range []float64{100, 101, 102, 103} {
		up.Update(row(c))
	}
	assertClose(t, "RSI all gains", up.Value(), 100.0, 0.0001)

	down := NewRSI(3)
	for _, c := range []float64{103, 102, 101, 100} {
		down.Update(row(c))
	}
	assertClose(t, "RSI all losses", down.Value(), 0.0, 0.0001)
}

func TestRSI_Bounded(t *testing.T) {
	closes := []float64{100, 98, 103, 101, 99, 104, 102, 107, 103, 108, 105, 101, 106, 109, 104}
	rsi := NewRSI(5)
	for i, c := range closes {
		rsi.Update(row(c))
		if !rsi.Ready() {
			continue
		}
		v := rsi.Value()
		if v < 0 || v > 100 {
			t.Errorf("row %d: RSI=%v out of [0,100]", i, v)
		}
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger Bands
// ────────────────────────────────────────────────────────────

func TestBollinger_Correctness(t *testing.T) {
	// Closes 10, 11, 12: mean 11, sample std 1 → bands 13 / 11 / 9 at k=2
	b := NewBollinger(3, 2)
	for _, c := range []float64{10, 11, 12} {
		b.Update(row(c))
	}
	u, m, l := b.Bands()
	assertClose(t, "Bollinger upper", u, 13.0, 0.0001)
	assertClose(t, "Bollinger middle", m, 11.0, 0.0001)
	assertClose(t, "Bollinger lower", l, 9.0, 0.0001)
}

func TestBollinger_Ordering(t *testing.T) {
	closes := []float64{50, 51, 49, 52, 48, 53, 47, 54, 50, 51}
	b := NewBollinger(4, 2)
	for i, c := range closes {
		b.Update(row(c))
		if !b.Ready() {
			continue
		}
		u, m, l := b.Bands()
		if !(u >= m && m >= l) {
			t.Errorf("row %d: band ordering violated: %v >= %v >= %v", i, u, m, l)
		}
	}
}

// ────────────────────────────────────────────────────────────
// ATR
// ────────────────────────────────────────────────────────────

func TestATR_Correctness(t *testing.T) {
	// Row 1: H=10.5 L=9.5  C=10   → TR = 1.0 (no previous close)
	// Row 2: H=11.5 L=10.2 C=11   → TR = max(1.3, |11.5-10|, |10.2-10|) = 1.5
	// Row 3: H=12.0 L=11.0 C=11.5 → TR = max(1.0, |12-11|, |11-11|) = 1.0
	// ATR(2) after row 2: (1.0+1.5)/2 = 1.25
	// ATR(2) after row 3: (1.5+1.0)/2 = 1.25
	rows := []model.PriceRow{
		{High: 10.5, Low: 9.5, Close: 10, Open: 10},
		{High: 11.5, Low: 10.2, Close: 11, Open: 10.3},
		{High: 12.0, Low: 11.0, Close: 11.5, Open: 11.2},
	}

	atr := NewATR(2)
	atr.Update(rows[0])
	if !math.IsNaN(atr.Value()) {
		t.Errorf("expected NaN after 1 row, got %v", atr.Value())
	}
	atr.Update(rows[1])
	assertClose(t, "ATR(2) row 2", atr.Value(), 1.25, 0.0001)
	atr.Update(rows[2])
	assertClose(t, "ATR(2) row 3", atr.Value(), 1.25, 0.0001)
}

// ────────────────────────────────────────────────────────────
// Garman-Klass
// ────────────────────────────────────────────────────────────

func TestGarmanKlass_Correctness(t *testing.T) {
	// O=100 H=102 L=99 C=101:
	// sqrt(0.5*ln(102/99)^2 - (2ln2-1)*ln(101/100)^2) = 0.0201829
	gk := NewGarmanKlass()
	gk.Update(model.PriceRow{Open: 100, High: 102, Low: 99, Close: 101})
	assertClose(t, "Garman-Klass", gk.Value(), 0.0201829, 0.00001)
}

func TestGarmanKlass_NegativeRadicand(t *testing.T) {
	// A big close-to-open move inside a narrow range turns the radicand
	// negative; the row is undefined, not an error.
	gk := NewGarmanKlass()
	gk.Update(model.PriceRow{Open: 100, High: 110.01, Low: 110, Close: 110})
	if !math.IsNaN(gk.Value()) {
		t.Errorf("expected NaN, got %v", gk.Value())
	}
}

// ────────────────────────────────────────────────────────────
// MACD
// ────────────────────────────────────────────────────────────

func TestMACD_FlatSeries(t *testing.T) {
	// On a flat series every EMA equals the price, so MACD, signal, and
	// histogram all converge to exactly zero once warm.
	macd := NewMACD(12, 26, 9)
	for i := 0; i < 40; i++ {
		macd.Update(row(100))
	}
	if !macd.Ready() {
		t.Fatal("expected MACD ready after 40 rows")
	}
	assertClose(t, "MACD", macd.Value(), 0, 1e-9)
	assertClose(t, "MACD signal", macd.Signal(), 0, 1e-9)
	assertClose(t, "MACD hist", macd.Hist(), 0, 1e-9)
}

func TestMACD_WarmupOrder(t *testing.T) {
	macd := NewMACD(3, 5, 2)
	for i := 1; i <= 4; i++ {
		macd.Update(row(float64(100 + i)))
	}
	// Slow EMA(5) not ready yet
	if macd.Ready() {
		t.Error("expected MACD not ready before slow period")
	}
	if !math.IsNaN(macd.Value()) || !math.IsNaN(macd.Signal()) {
		t.Error("expected NaN MACD and signal during warm-up")
	}

	macd.Update(row(106))
	if !macd.Ready() {
		t.Error("expected MACD ready at slow period")
	}
	// Signal EMA(2) has seen 1 value — still warming
	if !math.IsNaN(macd.Signal()) {
		t.Error("expected signal NaN until its own period fills")
	}
	macd.Update(row(107))
	if math.IsNaN(macd.Signal()) {
		t.Error("expected signal defined after 2 MACD values")
	}
}

// ────────────────────────────────────────────────────────────
// Row-wise transforms
// ────────────────────────────────────────────────────────────

func TestPercentChange_RoundTrip(t *testing.T) {
	closes := []float64{100, 102.5, 101.3, 107.9, 99.4}
	pc := NewPercentChange()
	pc.Update(row(closes[0]))
	if !math.IsNaN(pc.Value()) {
		t.Error("expected NaN on first row")
	}
	for i := 1; i < len(closes); i++ {
		pc.Update(row(closes[i]))
		// close[t] = close[t-1] * (1 + pc[t])
		reconstructed := closes[i-1] * (1 + pc.Value())
		assertClose(t, "percent change round-trip", reconstructed, closes[i], 1e-9)
	}
}

func TestDollarVolume(t *testing.T) {
	dv := NewDollarVolume()
	dv.Update(model.PriceRow{Close: 185.5, Volume: 2_000_000})
	assertClose(t, "dollar volume", dv.Value(), 371_000_000, 0.01)
}

func TestPERatio(t *testing.T) {
	pe := NewPERatio(6.5)
	pe.Update(row(130))
	assertClose(t, "P/E", pe.Value(), 20.0, 0.0001)

	// Non-positive EPS disables the column
	zero := NewPERatio(0)
	zero.Update(row(130))
	if !math.IsNaN(zero.Value()) {
		t.Errorf("expected NaN P/E for zero EPS, got %v", zero.Value())
	}
}
