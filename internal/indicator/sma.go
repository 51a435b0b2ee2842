package indicator

import (
	"math"
	"strconv"

	"marketdash/internal/model"
)

// SMA calculates Simple Moving Average of close over a rolling window.
// Uses a preallocated circular buffer for zero-allocation updates.
type SMA struct {
	name   string
	period int
	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total rows received
	sum    float64
}

// NewSMA creates a new SMA indicator with the given window.
func NewSMA(period int) *SMA {
	return &SMA{
		name:   "sma_" + strconv.Itoa(period),
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return s.name }

func (s *SMA) Update(row model.PriceRow) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = row.Close
	s.sum += row.Close
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *SMA) Ready() bool { return s.count >= s.period }

func (s *SMA) Value() float64 {
	if !s.Ready() {
		return math.NaN()
	}
	return s.sum / float64(s.period)
}
