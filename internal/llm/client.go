// Package llm drives the remote completion providers: request shaping per
// provider, HTTP retry with backoff, asynchronous create-then-poll, and the
// file-upload sub-protocol with content-hash deduplication.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// Parameter bounds. Setters clamp rather than error so a misconfigured
// block still produces a usable request.
const (
	MinTokens  = 1
	MaxTokens  = 4000
	MinTimeout = 5 * time.Second
	MaxTimeout = 60 * time.Second
)

// ErrNoUsableResult is returned when a provider call finishes without any
// extractable text. Callers must treat it as a hard failure, never as an
// empty completion.
var ErrNoUsableResult = errors.New("no usable completion result")

// Options are the request parameters shared by every provider client.
// Setters are fluent and clamping.
type Options struct {
	Model           string
	MaxOutputTokens int
	Temperature     float64
	TopP            float64
	ResponseFormat  string
	Timeout         time.Duration
	ReasoningEffort string
	Verbosity       string
}

// DefaultOptions returns the production defaults for a model.
func DefaultOptions(model string) *Options {
	return &Options{
		Model:           model,
		MaxOutputTokens: 1000,
		Temperature:     0.7,
		TopP:            1.0,
		Timeout:         30 * time.Second,
	}
}

// SetModel sets the model identifier.
func (o *Options) SetModel(model string) *Options {
	if model != "" {
		o.Model = model
	}
	return o
}

// SetMaxTokens clamps to [1, 4000].
func (o *Options) SetMaxTokens(tokens int) *Options {
	if tokens < MinTokens {
		tokens = MinTokens
	}
	if tokens > MaxTokens {
		tokens = MaxTokens
	}
	o.MaxOutputTokens = tokens
	return o
}

// SetTemperature clamps to [0, 1].
func (o *Options) SetTemperature(temperature float64) *Options {
	o.Temperature = clamp01(temperature)
	return o
}

// SetTopP clamps to [0, 1].
func (o *Options) SetTopP(topP float64) *Options {
	o.TopP = clamp01(topP)
	return o
}

// SetResponseFormat sets the provider response format hint.
func (o *Options) SetResponseFormat(format string) *Options {
	o.ResponseFormat = format
	return o
}

// SetTimeout clamps to [5s, 60s].
func (o *Options) SetTimeout(timeout time.Duration) *Options {
	if timeout < MinTimeout {
		timeout = MinTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	o.Timeout = timeout
	return o
}

// SetReasoningEffort sets the reasoning effort hint.
func (o *Options) SetReasoningEffort(effort string) *Options {
	o.ReasoningEffort = effort
	return o
}

// SetVerbosity sets the verbosity hint.
func (o *Options) SetVerbosity(verbosity string) *Options {
	o.Verbosity = verbosity
	return o
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Client is one provider's completion implementation.
type Client interface {
	// Options exposes the mutable request parameters for fluent tuning.
	Options() *Options
	// GetCompletion runs one completion. It fails loudly: a nil error
	// guarantees non-empty text.
	GetCompletion(ctx context.Context, messages []models.ChatMessage, attachments []models.Attachment) (string, error)
}

// NewClient builds the client for a typed provider reference.
func NewClient(ref models.ProviderRef, apiKey string, uploads *UploadStore) (Client, error) {
	if apiKey == "" {
		return nil, &ProviderError{
			Category: ErrorCategoryConfig,
			Message:  fmt.Sprintf("no API key configured for provider %s", ref.Kind),
		}
	}
	switch ref.Kind {
	case models.ProviderOpenAI:
		return NewOpenAIClient(ref.Model, apiKey, uploads), nil
	case models.ProviderGoogle:
		return NewGeminiClient(ref.Model, apiKey), nil
	}
	return nil, fmt.Errorf("unknown provider kind %q", ref.Kind)
}

// SanitizeMessages drops malformed entries and reduces content to plain
// text. Only system, user and assistant roles survive.
func SanitizeMessages(messages []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if !models.ValidRole(msg.Role) {
			continue
		}
		content := strings.TrimSpace(textutil.StripHTML(msg.Content))
		if content == "" {
			continue
		}
		out = append(out, models.ChatMessage{Role: msg.Role, Content: content})
	}
	return out
}

// redactURL strips credentials from a URL for logging.
func redactURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "<unparseable url>"
	}
	query := parsed.Query()
	for key := range query {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "key") || strings.Contains(lower, "token") || strings.Contains(lower, "secret") {
			query.Set(key, "REDACTED")
		}
	}
	parsed.RawQuery = query.Encode()
	parsed.User = nil
	return parsed.String()
}
