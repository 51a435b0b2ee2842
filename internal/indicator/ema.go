package indicator

import (
	"math"
	"strconv"

	"marketdash/internal/model"
)

// EMA calculates Exponential Moving Average of close, seeded with an SMA of
// the first period values. O(1) per update — no window storage needed.
type EMA struct {
	name       string
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		name:       "ema_" + strconv.Itoa(period),
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return e.name }

func (e *EMA) Update(row model.PriceRow) {
	e.push(row.Close)
}

// push feeds a raw value. MACD uses this to run an EMA over its own output.
func (e *EMA) push(v float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for the initial SMA seed
		e.sum += v
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = value*multiplier + prev*(1-multiplier)
	e.current = (v * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Ready() bool { return e.count >= e.period }

func (e *EMA) Value() float64 {
	if !e.Ready() {
		return math.NaN()
	}
	return e.current
}
