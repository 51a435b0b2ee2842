package indicator

import (
	"strconv"

	"marketdash/internal/model"
)

// Config holds the window parameters for a full dashboard computation.
type Config struct {
	SMAWindows []int // one column per window
	RSIWindow  int
	BollWindow int
	BollK      float64
	ATRWindow  int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultConfig returns the dashboard's standard parameter set.
func DefaultConfig() Config {
	return Config{
		SMAWindows: []int{20, 50},
		RSIWindow:  20,
		BollWindow: 20,
		BollK:      2,
		ATRWindow:  20,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// Engine computes every dashboard indicator column over a complete price
// series in one pass. Each request gets fresh indicator instances, so the
// engine itself is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given parameter set.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Columns returns the column names ComputeAll produces, in the order the
// CSV export writes them.
func (e *Engine) Columns() []string {
	cols := []string{
		"garman_klass",
		"rsi",
		"bollinger_upper",
		"bollinger_middle",
		"bollinger_lower",
		"atr",
		"dollar_volume",
		"percent_change",
	}
	for _, w := range e.cfg.SMAWindows {
		cols = append(cols, "sma_"+strconv.Itoa(w))
	}
	cols = append(cols, "macd", "macd_signal", "macd_hist", "pe_ratio")
	return cols
}

// ComputeAll runs the full series through every indicator and returns one
// column per indicator, index-aligned with rows. Warm-up holes are NaN,
// which marshal as JSON null.
func (e *Engine) ComputeAll(rows []model.PriceRow, eps float64) model.IndicatorSet {
	n := len(rows)
	set := make(model.IndicatorSet, len(e.cfg.SMAWindows)+12)
	col := func(name string) []model.Float {
		c := make([]model.Float, n)
		set[name] = c
		return c
	}

	gk := NewGarmanKlass()
	rsi := NewRSI(e.cfg.RSIWindow)
	boll := NewBollinger(e.cfg.BollWindow, e.cfg.BollK)
	atr := NewATR(e.cfg.ATRWindow)
	dv := NewDollarVolume()
	pc := NewPercentChange()
	macd := NewMACD(e.cfg.MACDFast, e.cfg.MACDSlow, e.cfg.MACDSignal)
	pe := NewPERatio(eps)
	smas := make([]*SMA, len(e.cfg.SMAWindows))
	for i, w := range e.cfg.SMAWindows {
		smas[i] = NewSMA(w)
	}

	gkCol := col(gk.Name())
	rsiCol := col(rsi.Name())
	bollUpper := col("bollinger_upper")
	bollMiddle := col("bollinger_middle")
	bollLower := col("bollinger_lower")
	atrCol := col(atr.Name())
	dvCol := col(dv.Name())
	pcCol := col(pc.Name())
	macdCol := col("macd")
	macdSignal := col("macd_signal")
	macdHist := col("macd_hist")
	peCol := col(pe.Name())
	smaCols := make([][]model.Float, len(smas))
	for i, s := range smas {
		smaCols[i] = col(s.Name())
	}

	for i, row := range rows {
		gk.Update(row)
		gkCol[i] = model.Float(gk.Value())

		rsi.Update(row)
		rsiCol[i] = model.Float(rsi.Value())

		boll.Update(row)
		u, m, l := boll.Bands()
		bollUpper[i] = model.Float(u)
		bollMiddle[i] = model.Float(m)
		bollLower[i] = model.Float(l)

		atr.Update(row)
		atrCol[i] = model.Float(atr.Value())

		dv.Update(row)
		dvCol[i] = model.Float(dv.Value())

		pc.Update(row)
		pcCol[i] = model.Float(pc.Value())

		macd.Update(row)
		macdCol[i] = model.Float(macd.Value())
		macdSignal[i] = model.Float(macd.Signal())
		macdHist[i] = model.Float(macd.Hist())

		pe.Update(row)
		peCol[i] = model.Float(pe.Value())

		for j, s := range smas {
			s.Update(row)
			smaCols[j][i] = model.Float(s.Value())
		}
	}

	return set
}
