package indicator

import (
	"math"

	"marketdash/internal/model"
)

// ATR calculates Average True Range: a rolling mean of the true range,
// where TR = max(high-low, |high-prevClose|, |low-prevClose|).
// The first row has no previous close, so its TR is just high-low.
type ATR struct {
	period    int
	buf       []float64 // circular buffer of true ranges
	idx       int
	count     int
	sum       float64
	prevClose float64
}

// NewATR creates a new ATR indicator with the given window.
func NewATR(period int) *ATR {
	return &ATR{
		period: period,
		buf:    make([]float64, period),
	}
}

func (a *ATR) Name() string { return "atr" }

func (a *ATR) Update(row model.PriceRow) {
	tr := row.High - row.Low
	if a.count > 0 {
		hc := math.Abs(row.High - a.prevClose)
		lc := math.Abs(row.Low - a.prevClose)
		tr = math.Max(tr, math.Max(hc, lc))
	}
	a.prevClose = row.Close

	if a.count >= a.period {
		a.sum -= a.buf[a.idx]
	}
	a.buf[a.idx] = tr
	a.sum += tr
	a.idx = (a.idx + 1) % a.period
	a.count++
}

func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) Value() float64 {
	if !a.Ready() {
		return math.NaN()
	}
	return a.sum / float64(a.period)
}
