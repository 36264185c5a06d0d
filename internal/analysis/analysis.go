// Package analysis extracts structured invoice data from PDF text with an
// OpenAI-compatible chat completions endpoint.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/daftar-erp/daftar/internal/config"
)

var (
	// ErrEmptyText is returned when there is nothing to analyze.
	ErrEmptyText = errors.New("no text to analyze")
	// ErrNotConfigured is returned when no API key is available.
	ErrNotConfigured = errors.New("analysis API key is not configured")
)

const systemPrompt = `You extract data from supplier invoices written in Arabic or English.
Reply with one JSON object and nothing else, using these keys:
vendor_name, invoice_number, invoice_date (YYYY-MM-DD), due_date (YYYY-MM-DD),
currency, subtotal, tax, total, items (array of {description, quantity, unit_price, total}).
Use numbers for amounts and null for anything you cannot find.`

// ExtractedItem is one invoice line read by the model.
type ExtractedItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// ExtractedInvoice is what the model could read from the document.
type ExtractedInvoice struct {
	VendorName    string          `json:"vendor_name"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	DueDate       string          `json:"due_date"`
	Currency      string          `json:"currency"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Items         []ExtractedItem `json:"items"`
}

// Stage reports analysis progress in percent.
type Stage func(progress int)

// Analyzer calls the completion endpoint.
type Analyzer struct {
	endpoint   string
	model      string
	apiKey     string
	maxChars   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAnalyzer creates an Analyzer from config and the resolved API key.
func NewAnalyzer(cfg config.AnalysisConfig, apiKey string) *Analyzer {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 10
	}
	return &Analyzer{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     apiKey,
		maxChars:   cfg.MaxChars,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Truncate cuts text to at most maxChars runes. maxChars <= 0 keeps it whole.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// Analyze sends text to the model and parses its answer. stage, when set,
// is told 30 once the request is sent and 70 once the answer arrives.
func (a *Analyzer) Analyze(ctx context.Context, text string, stage Stage) (ExtractedInvoice, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ExtractedInvoice{}, ErrEmptyText
	}
	if a.apiKey == "" {
		return ExtractedInvoice{}, ErrNotConfigured
	}
	if stage == nil {
		stage = func(int) {}
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return ExtractedInvoice{}, fmt.Errorf("waiting for request slot: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model":           a.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": Truncate(text, a.maxChars)},
		},
	})
	if err != nil {
		return ExtractedInvoice{}, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return ExtractedInvoice{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	stage(30)
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return ExtractedInvoice{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return ExtractedInvoice{}, fmt.Errorf("read response: %w", err)
	}
	stage(70)

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(respBody, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return ExtractedInvoice{}, fmt.Errorf("analysis endpoint: %s: %s", resp.Status, msg)
	}
	content := gjson.GetBytes(respBody, "choices.0.message.content")
	if !content.Exists() {
		return ExtractedInvoice{}, errors.New("analysis endpoint: response has no message content")
	}
	return ParseExtraction(content.String())
}

// ParseExtraction reads the model's JSON answer. Code fences around the
// object are tolerated.
func ParseExtraction(content string) (ExtractedInvoice, error) {
	content = strings.TrimSpace(content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		content = content[start : end+1]
	}
	if !gjson.Valid(content) {
		return ExtractedInvoice{}, errors.New("model answer is not valid JSON")
	}
	doc := gjson.Parse(content)
	out := ExtractedInvoice{
		VendorName:    doc.Get("vendor_name").String(),
		InvoiceNumber: doc.Get("invoice_number").String(),
		InvoiceDate:   doc.Get("invoice_date").String(),
		DueDate:       doc.Get("due_date").String(),
		Currency:      doc.Get("currency").String(),
		Subtotal:      amount(doc.Get("subtotal")),
		Tax:           amount(doc.Get("tax")),
		Total:         amount(doc.Get("total")),
	}
	doc.Get("items").ForEach(func(_, item gjson.Result) bool {
		out.Items = append(out.Items, ExtractedItem{
			Description: item.Get("description").String(),
			Quantity:    amount(item.Get("quantity")),
			UnitPrice:   amount(item.Get("unit_price")),
			Total:       amount(item.Get("total")),
		})
		return true
	})
	return out, nil
}

// amount reads a number or numeric string without going through float64.
// Thousands separators are dropped; anything unreadable is zero.
func amount(r gjson.Result) decimal.Decimal {
	var raw string
	switch r.Type {
	case gjson.Number:
		raw = r.Raw
	case gjson.String:
		raw = strings.ReplaceAll(strings.TrimSpace(r.Str), ",", "")
	default:
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
