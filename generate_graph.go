//go:build ignore

// Renders a sample spending chart to graph.png.
package main

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/report"
)

func main() {
	totals := map[string]decimal.Decimal{
		"Groceries": decimal.RequireFromString("-1505.50"),
		"Dining":    decimal.RequireFromString("-1305.50"),
		"Transport": decimal.NewFromInt(-600),
		"Fun":       decimal.NewFromInt(-250),
		"Utilities": decimal.NewFromInt(-1200),
		"Salary":    decimal.NewFromInt(45000),
	}

	slices := report.ExpenseSlices(totals, func(id string) string { return id })
	chartData, err := report.SpendingChart(slices, "October 2026")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile("graph.png", chartData, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Created graph.png")
}
