package indicator

import (
	"math"

	"marketdash/internal/model"
)

// Row-wise transforms: each value depends on at most the current and the
// previous row, so they are defined almost immediately.

// GarmanKlass estimates per-day volatility from open/high/low/close:
// sqrt(0.5*ln(H/L)^2 - (2ln2-1)*ln(C/O)^2). A negative radicand (large
// close-to-open move relative to the day's range) yields NaN for that row.
type GarmanKlass struct {
	count   int
	current float64
}

// NewGarmanKlass creates a Garman-Klass volatility estimator.
func NewGarmanKlass() *GarmanKlass { return &GarmanKlass{} }

func (g *GarmanKlass) Name() string { return "garman_klass" }

func (g *GarmanKlass) Update(row model.PriceRow) {
	g.count++
	logHL := math.Log(row.High / row.Low)
	logCO := math.Log(row.Close / row.Open)
	radicand := 0.5*logHL*logHL - (2*math.Ln2-1)*logCO*logCO
	if radicand < 0 {
		g.current = math.NaN()
		return
	}
	g.current = math.Sqrt(radicand)
}

func (g *GarmanKlass) Ready() bool { return g.count > 0 }

func (g *GarmanKlass) Value() float64 {
	if !g.Ready() {
		return math.NaN()
	}
	return g.current
}

// DollarVolume is close price times share volume.
type DollarVolume struct {
	count   int
	current float64
}

// NewDollarVolume creates a dollar volume indicator.
func NewDollarVolume() *DollarVolume { return &DollarVolume{} }

func (d *DollarVolume) Name() string { return "dollar_volume" }

func (d *DollarVolume) Update(row model.PriceRow) {
	d.count++
	d.current = row.Close * float64(row.Volume)
}

func (d *DollarVolume) Ready() bool { return d.count > 0 }

func (d *DollarVolume) Value() float64 {
	if !d.Ready() {
		return math.NaN()
	}
	return d.current
}

// PercentChange is the day-over-day fractional change in close:
// (close[t] - close[t-1]) / close[t-1]. Undefined on the first row.
// Stored as a fraction so close[t] = close[t-1] * (1 + value) holds exactly;
// the dashboard scales it for display.
type PercentChange struct {
	count     int
	prevClose float64
	current   float64
}

// NewPercentChange creates a percent change indicator.
func NewPercentChange() *PercentChange { return &PercentChange{} }

func (p *PercentChange) Name() string { return "percent_change" }

func (p *PercentChange) Update(row model.PriceRow) {
	p.count++
	if p.count > 1 && p.prevClose != 0 {
		p.current = (row.Close - p.prevClose) / p.prevClose
	} else {
		p.current = math.NaN()
	}
	p.prevClose = row.Close
}

func (p *PercentChange) Ready() bool { return p.count > 1 }

func (p *PercentChange) Value() float64 {
	if !p.Ready() {
		return math.NaN()
	}
	return p.current
}

// PERatio divides close by an externally supplied trailing earnings per
// share. A missing or non-positive EPS disables the whole column rather
// than emitting infinities.
type PERatio struct {
	eps     float64
	count   int
	current float64
}

// NewPERatio creates a P/E ratio indicator for the given trailing EPS.
func NewPERatio(eps float64) *PERatio { return &PERatio{eps: eps} }

func (p *PERatio) Name() string { return "pe_ratio" }

func (p *PERatio) Update(row model.PriceRow) {
	p.count++
	if p.eps <= 0 {
		p.current = math.NaN()
		return
	}
	p.current = row.Close / p.eps
}

func (p *PERatio) Ready() bool { return p.count > 0 && p.eps > 0 }

func (p *PERatio) Value() float64 {
	if !p.Ready() {
		return math.NaN()
	}
	return p.current
}
