package exchange

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

// Symbol returns the display symbol for code, or the code followed by a
// space when the currency has no known symbol.
func Symbol(code string) string {
	code = NormalizeCode(code)
	if symbol, ok := models.SupportedCurrencies[code]; ok {
		return symbol
	}
	return code + " "
}

// FormatAmount renders value with the currency symbol and thousands
// separators. Whole amounts get no decimals, anything else exactly two.
func FormatAmount(value decimal.Decimal, currency string) string {
	rounded := value.Round(2)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	whole := rounded.IntPart()
	text := humanize.Comma(whole)
	if !rounded.Equal(decimal.NewFromInt(whole)) {
		cents := rounded.Sub(decimal.NewFromInt(whole)).Shift(2).IntPart()
		text = fmt.Sprintf("%s.%02d", text, cents)
	}

	return sign + Symbol(currency) + text
}
