package indicator

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"marketdash/internal/model"
)

// Bollinger calculates Bollinger Bands: an SMA middle band with upper and
// lower bands k sample standard deviations away, over the same window.
type Bollinger struct {
	period  int
	k       float64
	buf     []float64 // circular buffer of closes
	scratch []float64 // reused for stat calls
	idx     int
	count   int
}

// NewBollinger creates a Bollinger Bands indicator with the given window
// and band width in standard deviations (conventionally 20, 2).
func NewBollinger(period int, k float64) *Bollinger {
	return &Bollinger{
		period:  period,
		k:       k,
		buf:     make([]float64, period),
		scratch: make([]float64, period),
	}
}

func (b *Bollinger) Name() string { return "bollinger" }

func (b *Bollinger) Update(row model.PriceRow) {
	b.buf[b.idx] = row.Close
	b.idx = (b.idx + 1) % b.period
	b.count++
}

func (b *Bollinger) Ready() bool { return b.count >= b.period }

// Value returns the middle band.
func (b *Bollinger) Value() float64 {
	_, mid, _ := b.Bands()
	return mid
}

// Bands returns (upper, middle, lower). All NaN until Ready.
// Standard deviation is the sample estimate (n-1 divisor), matching the
// conventional rolling-std definition.
func (b *Bollinger) Bands() (upper, middle, lower float64) {
	if !b.Ready() {
		nan := math.NaN()
		return nan, nan, nan
	}
	copy(b.scratch, b.buf)
	mean, std := stat.MeanStdDev(b.scratch, nil)
	return mean + b.k*std, mean, mean - b.k*std
}
