package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/notify"
)

// Converter converts amounts through a RateTable and owns the process-wide
// primary and secondary display currencies.
type Converter struct {
	table *RateTable
	base  string
	hub   *notify.Hub

	mu        sync.RWMutex
	primary   string
	secondary string
}

// NewConverter returns a converter quoting every pair through base.
func NewConverter(table *RateTable, base, primary string, hub *notify.Hub) (*Converter, error) {
	primary = NormalizeCode(primary)
	if !IsSupported(primary) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, primary)
	}
	base = NormalizeCode(base)
	if base == "" {
		base = primary
	}

	c := &Converter{
		table:   table,
		base:    base,
		hub:     hub,
		primary: primary,
	}
	table.OnUpdate(func(base string) {
		c.publish("rates", base)
	})
	return c, nil
}

// Primary returns the current primary currency.
func (c *Converter) Primary() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.primary
}

// Secondary returns the secondary currency, if one is set.
func (c *Converter) Secondary() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.secondary, c.secondary != ""
}

// Base returns the currency rates are quoted against.
func (c *Converter) Base() string {
	return c.base
}

// SetPrimaryCurrency changes the primary currency. Stored transactions are
// not touched; only later reads and edits use the new value.
func (c *Converter) SetPrimaryCurrency(code string) error {
	code = NormalizeCode(code)
	if !IsSupported(code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}

	c.mu.Lock()
	changed := c.primary != code
	c.primary = code
	c.mu.Unlock()

	if changed {
		logger.Log.Info().Str("currency", code).Msg("Primary currency changed")
		c.publish("primary", code)
	}
	return nil
}

// SetSecondaryCurrency sets the secondary currency; nil clears it.
func (c *Converter) SetSecondaryCurrency(code *string) error {
	next := ""
	if code != nil {
		next = NormalizeCode(*code)
		if !IsSupported(next) {
			return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, next)
		}
	}

	c.mu.Lock()
	changed := c.secondary != next
	c.secondary = next
	c.mu.Unlock()

	if changed {
		c.publish("secondary", next)
	}
	return nil
}

// ConvertAmount converts amount from one currency to another. Same-currency
// conversion returns the amount unchanged at rate 1.
func (c *Converter) ConvertAmount(
	ctx context.Context,
	amount decimal.Decimal,
	fromCurrency, toCurrency string,
) (ConversionResult, error) {
	from := NormalizeCode(fromCurrency)
	to := NormalizeCode(toCurrency)
	if from == "" || to == "" {
		return ConversionResult{}, fmt.Errorf("from and to currencies are required")
	}
	if from == to {
		return ConversionResult{Amount: amount, Rate: decimal.NewFromInt(1)}, nil
	}

	snap, err := c.table.Snapshot(ctx, c.base)
	if err != nil {
		return ConversionResult{}, err
	}
	rate, err := snap.CrossRate(from, to)
	if err != nil {
		return ConversionResult{}, err
	}

	return ConversionResult{
		Amount:   amount.Mul(rate).Round(2),
		Rate:     rate,
		RateDate: snap.Date,
	}, nil
}

// Refresh pulls fresh rates for the base currency.
func (c *Converter) Refresh(ctx context.Context) error {
	if _, err := c.table.Refresh(ctx, c.base); err != nil {
		return fmt.Errorf("failed to refresh %s rates: %w", c.base, err)
	}
	return nil
}

func (c *Converter) publish(action, id string) {
	if c.hub == nil {
		return
	}
	c.hub.Publish(notify.Event{Topic: notify.TopicCurrency, Action: action, ID: id})
}
