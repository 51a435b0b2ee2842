// Package universe loads the ticker list offered by the dashboard's symbol
// selector. A default S&P 500 constituent list ships embedded; deployments
// can point UNIVERSE_PATH at their own YAML file to replace it.
package universe

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"marketdash/internal/model"
)

//go:embed sp500.yaml
var defaultList []byte

type universeFile struct {
	Tickers []model.TickerInfo `yaml:"tickers"`
}

// Load returns the ticker universe sorted by symbol. An empty path loads
// the embedded default list.
func Load(path string) ([]model.TickerInfo, error) {
	raw := defaultList
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read universe file: %w", err)
		}
		raw = b
	}

	var f universeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse universe yaml: %w", err)
	}
	if len(f.Tickers) == 0 {
		return nil, fmt.Errorf("universe is empty")
	}

	sort.Slice(f.Tickers, func(i, j int) bool {
		return f.Tickers[i].Symbol < f.Tickers[j].Symbol
	})
	return f.Tickers, nil
}
