// Package assist asks a hosted language model for data-entry hints. Nothing
// in aggregation or sync depends on it.
package assist

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

	"github.com/shopspring/decimal"

	"tarpaulin/backend/internal/domain"
)

var (
	ErrUnavailable = errors.New("assistant is not configured")
	ErrBadReply    = errors.New("assistant returned an unusable reply")
)

type Client interface {
	SuggestCategory(ctx context.Context, details string) (domain.CategorySuggestion, error)
	SummarizeDay(ctx context.Context, totals domain.DayTotals) (string, error)
}

// Noop is used when no endpoint is configured.
type Noop struct{}

var (
	_ Client = Noop{}
	_ Client = (*HTTPClient)(nil)
)

func (Noop) SuggestCategory(context.Context, string) (domain.CategorySuggestion, error) {
	return domain.CategorySuggestion{}, ErrUnavailable
}

func (Noop) SummarizeDay(context.Context, domain.DayTotals) (string, error) {
	return "", ErrUnavailable
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

func NewHTTPClient(endpoint string, apiKey string, model string) *HTTPClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

const categoryPrompt = `Based on the following transaction details, suggest a category (purchase, sale, or expense) and a confidence level between 0 and 1.

Transaction Details: %s

Your response should be in JSON format:
{
  "category": "<purchase | sale | expense>",
  "confidence": <number between 0 and 1>
}`

const summaryPrompt = `You are an expert business analyst. Summarize the following daily transactions into a brief, easy-to-understand summary. Focus on key financial activities.

Sales: %s
Expenses: %s
Purchases: %s

Your response should be in JSON format: {"summary": "<text>"}`

func (c *HTTPClient) SuggestCategory(ctx context.Context, details string) (domain.CategorySuggestion, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return domain.CategorySuggestion{}, fmt.Errorf("%w: empty transaction details", ErrBadReply)
	}
	content, err := c.complete(ctx, fmt.Sprintf(categoryPrompt, details))
	if err != nil {
		return domain.CategorySuggestion{}, err
	}
	return parseSuggestion(content)
}

func (c *HTTPClient) SummarizeDay(ctx context.Context, totals domain.DayTotals) (string, error) {
	content, err := c.complete(ctx, fmt.Sprintf(summaryPrompt,
		number(totals.Sales), number(totals.Expenses), number(totals.Purchases)))
	if err != nil {
		return "", err
	}
	return parseSummary(content)
}

func number(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (c *HTTPClient) complete(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("assistant api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrBadReply)
	}
	return parsed.Choices[0].Message.Content, nil
}

// parseSuggestion accepts the model's JSON, tolerating a fenced code block.
// Confidence is clamped to [0, 1].
func parseSuggestion(content string) (domain.CategorySuggestion, error) {
	var raw struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFence(content)), &raw); err != nil {
		return domain.CategorySuggestion{}, fmt.Errorf("%w: %v", ErrBadReply, err)
	}
	category := domain.TransactionType(strings.ToLower(strings.TrimSpace(raw.Category)))
	if !category.Valid() {
		return domain.CategorySuggestion{}, fmt.Errorf("%w: unknown category %q", ErrBadReply, raw.Category)
	}
	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return domain.CategorySuggestion{Category: category, Confidence: confidence}, nil
}

func parseSummary(content string) (string, error) {
	trimmed := stripFence(content)
	var raw struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
		trimmed = raw.Summary
	}
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty summary", ErrBadReply)
	}
	return trimmed, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
