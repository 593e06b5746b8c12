// Package exchange provides exchange rates, currency conversion and amount
// formatting for the ledger.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/models"
)

var (
	// ErrRateUnavailable is returned when no rate was ever fetched for a pair.
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	// ErrUnsupportedCurrency is returned for unknown display currencies.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	errRateMissing            = errors.New("conversion rate missing in response")
	errInvalidNonPositiveRate = errors.New("conversion rate must be positive")
)

// ConversionResult contains converted amount details.
type ConversionResult struct {
	Amount   decimal.Decimal
	Rate     decimal.Decimal
	RateDate time.Time
}

// RateSnapshot is one fetch of rates quoted against Base: one unit of Base
// buys Rates[code] units of code.
type RateSnapshot struct {
	Base      string
	Date      time.Time
	Rates     map[string]decimal.Decimal
	FetchedAt time.Time
}

// Rate returns the quoted rate for code. The base itself is always 1.
func (s RateSnapshot) Rate(code string) (decimal.Decimal, bool) {
	if code == s.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := s.Rates[code]
	return r, ok
}

// CrossRate returns how many units of to one unit of from buys.
func (s RateSnapshot) CrossRate(from, to string) (decimal.Decimal, error) {
	fromRate, ok := s.Rate(from)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, from)
	}
	toRate, ok := s.Rate(to)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, to)
	}
	return toRate.Div(fromRate), nil
}

func (s RateSnapshot) validate() error {
	if len(s.Rates) == 0 {
		return errRateMissing
	}
	for code, r := range s.Rates {
		if err := validateConversionRate(r); err != nil {
			return fmt.Errorf("%s: %w", code, err)
		}
	}
	return nil
}

// RateSource fetches the latest rates for a base currency.
type RateSource interface {
	FetchRates(ctx context.Context, base string) (RateSnapshot, error)
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsCurrencyCode reports whether code has the shape of an ISO 4217 code:
// three ASCII letters after normalisation. It says nothing about rates.
func IsCurrencyCode(code string) bool {
	code = NormalizeCode(code)
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// IsSupported reports whether code is a supported display currency.
func IsSupported(code string) bool {
	_, ok := models.SupportedCurrencies[NormalizeCode(code)]
	return ok
}

func validateConversionRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return errInvalidNonPositiveRate
	}
	return nil
}
