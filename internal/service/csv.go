package service

import (
	"encoding/csv"
	"strconv"
	"strings"

	"marketdash/internal/model"
)

// buildCSV renders the price rows plus indicator columns as CSV text.
// Undefined (warm-up) indicator values become empty cells.
func buildCSV(rows []model.PriceRow, set model.IndicatorSet, columns []string) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	header := append([]string{"Date", "Open", "High", "Low", "Close", "Volume"}, columns...)
	if err := w.Write(header); err != nil {
		return "", err
	}

	record := make([]string, len(header))
	for i, row := range rows {
		record[0] = row.Date.String()
		record[1] = formatFloat(row.Open)
		record[2] = formatFloat(row.High)
		record[3] = formatFloat(row.Low)
		record[4] = formatFloat(row.Close)
		record[5] = strconv.FormatInt(row.Volume, 10)

		for j, name := range columns {
			cell := ""
			if col, ok := set[name]; ok && i < len(col) && !col[i].Undefined() {
				cell = formatFloat(float64(col[i]))
			}
			record[6+j] = cell
		}

		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
