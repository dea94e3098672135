// Package llm wraps the Anthropic API behind a small completion interface.
// Callers never receive raw SDK types; they get the response text and are
// responsible for parsing it.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// callTimeout bounds every completion call so a stuck upstream request
// cannot stall an import or scan loop.
const callTimeout = 30 * time.Second

// Options control generation parameters for a single completion.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer is the completion capability consumed by the triage and
// analysis paths. Implemented by *Client; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, prompt, system string, opts Options) (string, error)
	Configured() bool
}

// ErrNotConfigured is returned when no API key is present.
var ErrNotConfigured = errors.New("llm: no API key configured")

// Client wraps the Anthropic API.
type Client struct {
	api        *anthropic.Client
	model      anthropic.Model
	configured bool
}

// NewClient creates an LLM client. An empty apiKey yields a client whose
// Configured method reports false; Complete then fails fast without any
// network call.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:        &client,
		model:      anthropic.Model(model),
		configured: apiKey != "",
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.configured
}

// Complete sends a prompt with an optional system instruction and returns
// the raw response text.
func (c *Client) Complete(ctx context.Context, prompt, system string, opts Options) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if opts.Temperature == 0 {
		opts.Temperature = 0.3
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1000
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return "", errors.New("no text content in API response")
	}
	return strings.TrimSpace(text), nil
}

// IsQuotaError reports whether err carries a quota or rate-limit signal.
// Callers choose fallback wording based on this.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "quota") ||
		strings.Contains(msg, "resource_exhausted")
}

// StripFences removes a markdown code-fence wrapper from an LLM response, if
// present, so the remainder can be parsed as JSON.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) > 1 {
		text = lines[1]
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
