// Package report renders ledger summaries as images.
package report

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/go-analyze/charts"
	"github.com/shopspring/decimal"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no spending to chart")

// Slice is one labelled wedge of a chart.
type Slice struct {
	Label  string
	Amount decimal.Decimal
}

// ExpenseSlices turns per-category totals into chart slices. Only net
// spending (negative totals) is kept, as positive magnitudes, largest first.
// name maps a category id to its label.
func ExpenseSlices(totals map[string]decimal.Decimal, name func(id string) string) []Slice {
	out := make([]Slice, 0, len(totals))
	for id, total := range totals {
		if !total.IsNegative() {
			continue
		}
		out = append(out, Slice{Label: name(id), Amount: total.Neg()})
	}
	slices.SortFunc(out, func(a, b Slice) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// SpendingChart renders slices as a PNG pie chart.
func SpendingChart(data []Slice, title string) ([]byte, error) {
	values := make([]float64, 0, len(data))
	labels := make([]string, 0, len(data))
	for _, s := range data {
		if !s.Amount.IsPositive() {
			continue
		}
		values = append(values, s.Amount.InexactFloat64())
		labels = append(labels, s.Label)
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	p, err := charts.PieRender(
		values,
		charts.TitleOptionFunc(charts.TitleOption{Text: title}),
		charts.LegendLabelsOptionFunc(labels),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf, nil
}
