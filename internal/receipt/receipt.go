// Package receipt defines the structured result of a receipt analysis, the
// shape the ledger accepts as an alternate entry point.
package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is one line of a receipt.
type Item struct {
	Name     string
	Quantity int
	Amount   decimal.Decimal
}

// Analysis is what a receipt analyzer extracted from an image.
type Analysis struct {
	MerchantName string
	Amount       decimal.Decimal
	Currency     string
	Date         time.Time
	Category     string
	Items        []Item
	Confidence   float64
}

// HasAmount returns true if the amount was extracted.
func (a *Analysis) HasAmount() bool {
	return !a.Amount.IsZero()
}

// HasMerchant returns true if the merchant was extracted.
func (a *Analysis) HasMerchant() bool {
	return a.MerchantName != ""
}

// IsEmpty returns true if no usable data was extracted.
func (a *Analysis) IsEmpty() bool {
	return !a.HasAmount() && !a.HasMerchant()
}

// ItemSummary joins item names for use as a transaction note.
func (a *Analysis) ItemSummary() string {
	names := make([]string, 0, len(a.Items))
	for _, it := range a.Items {
		if name := strings.TrimSpace(it.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}
