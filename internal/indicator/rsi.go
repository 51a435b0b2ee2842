package indicator

import (
	"math"

	"marketdash/internal/model"
)

// RSI calculates the Relative Strength Index as the ratio of the rolling
// mean of gains to the rolling mean of losses over the window, mapped to
// 0-100. Plain rolling averages, not Wilder smoothing: the value at row i
// depends only on the trailing window of close-to-close deltas.
type RSI struct {
	period    int
	rows      int // total rows seen
	deltas    int // deltas accumulated (rows - 1)
	prevClose float64
	gains     []float64 // circular buffers of per-delta gain/loss
	losses    []float64
	idx       int
	gainSum   float64
	lossSum   float64
}

// NewRSI creates a new RSI indicator with the given window.
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  make([]float64, period),
		losses: make([]float64, period),
	}
}

func (r *RSI) Name() string { return "rsi" }

func (r *RSI) Update(row model.PriceRow) {
	r.rows++
	if r.rows == 1 {
		// First row — no delta yet
		r.prevClose = row.Close
		return
	}

	delta := row.Close - r.prevClose
	r.prevClose = row.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.deltas >= r.period {
		r.gainSum -= r.gains[r.idx]
		r.lossSum -= r.losses[r.idx]
	}
	r.gains[r.idx] = gain
	r.losses[r.idx] = loss
	r.gainSum += gain
	r.lossSum += loss
	r.idx = (r.idx + 1) % r.period
	r.deltas++
}

func (r *RSI) Ready() bool { return r.deltas >= r.period }

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return math.NaN()
	}
	// gainSum/lossSum equals avgGain/avgLoss — the window size cancels.
	if r.lossSum <= 0 {
		return 100.0
	}
	rs := r.gainSum / r.lossSum
	return 100.0 - (100.0 / (1.0 + rs))
}
