// Package indicator provides technical indicator calculations over daily
// price rows.
//
// All indicators implement the Indicator interface, receiving rows and
// producing float64 values. Values are NaN until enough rows have been
// accumulated; insufficient history is never an error.
package indicator

import "marketdash/internal/model"

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the column name (e.g., "sma_20").
	Name() string

	// Update feeds the next price row and recalculates.
	Update(row model.PriceRow)

	// Value returns the current calculated value. NaN until Ready.
	Value() float64

	// Ready returns true when enough rows have been accumulated.
	Ready() bool
}
