package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// FrankfurterClient is a client for frankfurter.app exchange rates API.
type FrankfurterClient struct {
	baseURL    string
	httpClient *http.Client
}

type frankfurterResponse struct {
	Base  string                 `json:"base"`
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// NewFrankfurterClient creates a Frankfurter API client.
func NewFrankfurterClient(baseURL string, timeout time.Duration) *FrankfurterClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = "https://api.frankfurter.app"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &FrankfurterClient{
		baseURL: trimmed,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// FetchRates returns the latest rates quoted against base.
func (c *FrankfurterClient) FetchRates(ctx context.Context, base string) (RateSnapshot, error) {
	from := NormalizeCode(base)
	if from == "" {
		return RateSnapshot{}, errors.New("base currency is required")
	}

	endpoint := fmt.Sprintf("%s/latest?from=%s", c.baseURL, url.QueryEscape(from))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return RateSnapshot{}, fmt.Errorf("failed to create rates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return RateSnapshot{}, fmt.Errorf("failed to request rates: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return RateSnapshot{}, fmt.Errorf("exchange API returned status %d", resp.StatusCode)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()

	var payload frankfurterResponse
	if err := decoder.Decode(&payload); err != nil {
		return RateSnapshot{}, fmt.Errorf("failed to decode rates response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return RateSnapshot{}, errRateMissing
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates))
	for code, raw := range payload.Rates {
		rate, err := decimal.NewFromString(raw.String())
		if err != nil {
			return RateSnapshot{}, fmt.Errorf("failed to parse rate for %s: %w", code, err)
		}
		if err := validateConversionRate(rate); err != nil {
			return RateSnapshot{}, fmt.Errorf("rate for %s: %w", code, err)
		}
		rates[NormalizeCode(code)] = rate
	}

	rateDate, err := time.Parse("2006-01-02", payload.Date)
	if err != nil {
		return RateSnapshot{}, fmt.Errorf("failed to parse rates date: %w", err)
	}

	return RateSnapshot{
		Base:      from,
		Date:      rateDate,
		Rates:     rates,
		FetchedAt: time.Now().UTC(),
	}, nil
}
