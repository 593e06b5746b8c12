package exchange

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gitlab.com/yelinaung/ledger-core/internal/exchange"

var tracer trace.Tracer = otel.Tracer(instrumentationName)

// refreshCounter counts scheduled refreshes by outcome.
var refreshCounter, _ = otel.Meter(instrumentationName).Int64Counter(
	"ledger.rates.refreshes",
	metric.WithDescription("Scheduled exchange rate refreshes"),
	metric.WithUnit("{refresh}"),
)

// Refresher keeps a Converter's rates current on a fixed interval.
type Refresher struct {
	converter *Converter
	interval  time.Duration
	log       zerolog.Logger

	// MaxTries bounds retries of a single scheduled refresh.
	MaxTries uint
	// InitialBackoff is the first retry delay; it grows exponentially.
	InitialBackoff time.Duration
}

// NewRefresher creates a refresher. A non-positive interval defaults to 6h.
func NewRefresher(converter *Converter, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Refresher{
		converter:      converter,
		interval:       interval,
		log:            logger.Component("rates"),
		MaxTries:       5,
		InitialBackoff: time.Second,
	}
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RefreshOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce refreshes with exponential backoff. Failures are logged and
// the previous rates stay in service.
func (r *Refresher) RefreshOnce(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "exchange.refresh",
		trace.WithAttributes(attribute.String("rates.base", r.converter.Base())))
	defer span.End()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.InitialBackoff

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		if err := r.converter.Refresh(ctx); err != nil {
			r.log.Debug().Err(err).Int("attempt", attempt).Msg("Rate refresh attempt failed")
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(r.MaxTries),
	)
	span.SetAttributes(attribute.Int("rates.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate refresh failed")
		refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failure")))
		r.log.Warn().
			Err(err).
			Str("base", r.converter.Base()).
			Int("attempts", attempt).
			Msg("Rate refresh failed; keeping cached rates")
		return false
	}

	refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	r.log.Debug().Str("base", r.converter.Base()).Msg("Exchange rates refreshed")
	return true
}
