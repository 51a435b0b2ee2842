package indicator

import (
	"math"

	"marketdash/internal/model"
)

// MACD is the difference of a fast and slow EMA of close, with a signal
// line (EMA of the MACD value) and a histogram (MACD minus signal).
// The signal EMA is seeded only from defined MACD values, so it starts
// warming up once the slow EMA is ready.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a MACD indicator with the given fast/slow/signal periods
// (conventionally 12, 26, 9).
func NewMACD(fast, slow, signal int) *MACD {
	return &MACD{
		fast:   NewEMA(fast),
		slow:   NewEMA(slow),
		signal: NewEMA(signal),
	}
}

func (m *MACD) Name() string { return "macd" }

func (m *MACD) Update(row model.PriceRow) {
	m.fast.push(row.Close)
	m.slow.push(row.Close)
	if m.fast.Ready() && m.slow.Ready() {
		m.signal.push(m.fast.current - m.slow.current)
	}
}

func (m *MACD) Ready() bool { return m.fast.Ready() && m.slow.Ready() }

// Value returns the MACD line (fast EMA minus slow EMA).
func (m *MACD) Value() float64 {
	if !m.Ready() {
		return math.NaN()
	}
	return m.fast.current - m.slow.current
}

// Signal returns the signal line. NaN until the signal EMA has seen a full
// period of MACD values.
func (m *MACD) Signal() float64 {
	if !m.signal.Ready() {
		return math.NaN()
	}
	return m.signal.current
}

// Hist returns the histogram (MACD minus signal).
func (m *MACD) Hist() float64 {
	return m.Value() - m.Signal()
}
