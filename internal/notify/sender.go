package notify

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

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// ErrInvalidEmail is returned for a message missing a recipient, subject or body.
var ErrInvalidEmail = errors.New("invalid email")

// Email is one outgoing message.
type Email struct {
	From    string   `json:"from,omitempty"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Validate checks the required fields.
func (e Email) Validate() error {
	if len(e.To) == 0 {
		return fmt.Errorf("%w: no recipient", ErrInvalidEmail)
	}
	for _, to := range e.To {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("%w: bad recipient %q", ErrInvalidEmail, to)
		}
	}
	if strings.TrimSpace(e.Subject) == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidEmail)
	}
	if strings.TrimSpace(e.HTML) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidEmail)
	}
	return nil
}

// Sender delivers email and returns the provider's message ID.
type Sender interface {
	Send(ctx context.Context, e Email) (string, error)
}

// HTTPSender posts messages to a transactional email API that accepts
// {from, to, subject, html} with a bearer key and answers {"id": ...}.
type HTTPSender struct {
	endpoint   string
	apiKey     string
	from       string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPSender creates an HTTPSender allowing perSecond sends per second.
func NewHTTPSender(endpoint, apiKey, from string, perSecond float64) *HTTPSender {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &HTTPSender{
		endpoint:   endpoint,
		apiKey:     apiKey,
		from:       from,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (s *HTTPSender) Send(ctx context.Context, e Email) (string, error) {
	if e.From == "" {
		e.From = s.from
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	if s.apiKey == "" {
		return "", errors.New("email API key is not configured")
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for send slot: %w", err)
	}

	body, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal email: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(respBody, "message").String()
		if msg == "" {
			msg = gjson.GetBytes(respBody, "error.message").String()
		}
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return "", fmt.Errorf("email provider: %s: %s", resp.Status, msg)
	}
	messageID := gjson.GetBytes(respBody, "id")
	if !messageID.Exists() {
		return "", fmt.Errorf("email provider: response has no id")
	}
	return messageID.String(), nil
}
