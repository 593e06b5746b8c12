package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/yelinaung/ledger-core/internal/exchange"
	"gitlab.com/yelinaung/ledger-core/internal/logger"
	"gitlab.com/yelinaung/ledger-core/internal/receipt"
	"google.golang.org/genai"
)

// AnalyzeTimeout bounds a single Gemini call.
const AnalyzeTimeout = 30 * time.Second

var (
	// ErrParseTimeout indicates the Gemini API call timed out.
	ErrParseTimeout = errors.New("receipt parsing timed out")
	// ErrNoData indicates no usable data could be extracted from the receipt.
	ErrNoData = errors.New("no usable data extracted from receipt")
	// ErrNoImage is returned for an empty image.
	ErrNoImage = errors.New("image data is required")
	// ErrInvalidCurrency is returned when the receipt names a currency that
	// is not an ISO 4217 code. The amount cannot be booked without one.
	ErrInvalidCurrency = errors.New("receipt currency is not an ISO 4217 code")
)

type receiptResponse struct {
	Amount     string        `json:"amount"`
	Currency   string        `json:"currency"`
	Merchant   string        `json:"merchant"`
	Date       string        `json:"date"`
	Category   string        `json:"category"`
	Items      []itemPayload `json:"items"`
	Confidence float64       `json:"confidence"`
}

type itemPayload struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Amount   string `json:"amount"`
}

// AnalyzeReceipt extracts a structured receipt from an image. categories
// are the names the model may choose from; a suggestion outside the list is
// returned as-is and left for the ledger to resolve.
func (c *Client) AnalyzeReceipt(
	ctx context.Context,
	image []byte,
	mimeType string,
	categories []string,
) (*receipt.Analysis, error) {
	if len(image) == 0 {
		return nil, ErrNoImage
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, AnalyzeTimeout)
	defer cancel()

	names := make([]string, 0, len(categories))
	for _, name := range categories {
		if s := SanitizeCategoryName(name); s != "" {
			names = append(names, s)
		}
	}

	if err := c.limiter.Wait(timeoutCtx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.generator.GenerateContent(timeoutCtx, c.model, []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
				{Text: buildReceiptPrompt(names)},
			},
		},
	}, receiptConfig())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrParseTimeout
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	analysis, err := parseReceiptResponse(text)
	if err != nil {
		return nil, err
	}
	if analysis.IsEmpty() {
		return nil, ErrNoData
	}
	analysis.Category = matchCategory(analysis.Category, categories)

	logger.Log.Debug().
		Str("merchant", logger.SanitizeText(analysis.MerchantName)).
		Str("currency", analysis.Currency).
		Int("items", len(analysis.Items)).
		Float64("confidence", analysis.Confidence).
		Msg("Receipt analyzed")
	return analysis, nil
}

func receiptConfig() *genai.GenerateContentConfig {
	temp := float32(0.1)
	return &genai.GenerateContentConfig{
		Temperature:      &temp,
		MaxOutputTokens:  int32(1024),
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"amount":   {Type: genai.TypeString, Description: "Total paid as a numeric string"},
				"currency": {Type: genai.TypeString, Description: "ISO 4217 code of the total"},
				"merchant": {Type: genai.TypeString},
				"date":     {Type: genai.TypeString, Description: "Purchase date, YYYY-MM-DD"},
				"category": {Type: genai.TypeString},
				"items": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"name":     {Type: genai.TypeString},
							"quantity": {Type: genai.TypeInteger},
							"amount":   {Type: genai.TypeString},
						},
					},
				},
				"confidence": {Type: genai.TypeNumber, Description: "Between 0 and 1"},
			},
			Required: []string{"amount", "merchant", "confidence"},
		},
	}
}

func buildReceiptPrompt(categories []string) string {
	return fmt.Sprintf(`Analyze this receipt image and extract the following information.
Return ONLY a JSON object with no additional text or markdown formatting.

Fields:
- amount: The total amount paid (numeric string, e.g., "54.60")
- currency: The ISO 4217 currency code of the total (e.g., "PHP", "USD"), empty if unknown
- merchant: The merchant/store name
- date: The date of purchase in YYYY-MM-DD format
- category: One of these categories that best matches: %s
- items: The purchased line items with name, quantity and amount
- confidence: Your confidence in the extraction accuracy (0.0 to 1.0)

If a field cannot be determined, use an empty string for text fields, "0" for amount, or 0.0 for confidence.

Example response:
{"amount": "54.60", "currency": "SGD", "merchant": "Restaurant Name", "date": "2024-01-15", "category": "Dining", "items": [{"name": "Dumplings", "quantity": 2, "amount": "12.00"}], "confidence": 0.95}`,
		strings.Join(categories, ", "))
}

func parseReceiptResponse(response string) (*receipt.Analysis, error) {
	payload := extractJSON(response)
	if payload == "" {
		return nil, fmt.Errorf("no JSON found in receipt response")
	}

	var rr receiptResponse
	if err := json.Unmarshal([]byte(payload), &rr); err != nil {
		return nil, fmt.Errorf("failed to parse receipt response: %w", err)
	}

	a := &receipt.Analysis{
		MerchantName: strings.TrimSpace(rr.Merchant),
		Category:     strings.TrimSpace(rr.Category),
		Confidence:   clamp01(rr.Confidence),
	}

	amount, err := parseAmount(rr.Amount)
	if err != nil {
		return nil, err
	}
	a.Amount = amount

	// Any well-formed code is kept; whether it converts is decided by the
	// rate table when the receipt is booked.
	if code := exchange.NormalizeCode(rr.Currency); code != "" {
		if !exchange.IsCurrencyCode(code) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
		a.Currency = code
	}

	if rr.Date != "" {
		if date, err := time.Parse(time.DateOnly, rr.Date); err == nil {
			a.Date = date
		}
	}

	for _, it := range rr.Items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		itemAmount, err := parseAmount(it.Amount)
		if err != nil {
			continue
		}
		a.Items = append(a.Items, receipt.Item{Name: name, Quantity: max(it.Quantity, 1), Amount: itemAmount})
	}

	return a, nil
}

// parseAmount reads a money string. Receipts carry totals, so the sign is
// dropped; the ledger derives it from the category.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount %q: %w", s, err)
	}
	return d.Abs(), nil
}

func matchCategory(suggested string, categories []string) string {
	for _, name := range categories {
		if strings.EqualFold(SanitizeCategoryName(name), suggested) {
			return name
		}
	}
	return suggested
}

func clamp01(f float64) float64 {
	return min(max(f, 0), 1)
}
