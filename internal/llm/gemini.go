package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"coursemind/internal/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the generateContent endpoint. The API has no
// native system role, so system content is folded into a synthetic prefix
// on the first user turn. Responses are synchronous; no polling.
type GeminiClient struct {
	opts      *Options
	apiKey    string
	baseURL   string
	transport *transport
}

// NewGeminiClient creates a client for one model.
func NewGeminiClient(model, apiKey string) *GeminiClient {
	opts := DefaultOptions(model)
	return &GeminiClient{
		opts:      opts,
		apiKey:    apiKey,
		baseURL:   geminiBaseURL,
		transport: newTransport(opts.Timeout),
	}
}

// Options exposes the request parameters.
func (c *GeminiClient) Options() *Options {
	return c.opts
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// GetCompletion runs one synchronous completion. Attachments are conveyed
// as extracted text folded into the prompt; the API key travels as a query
// parameter and is redacted from logs.
func (c *GeminiClient) GetCompletion(ctx context.Context, messages []models.ChatMessage, attachments []models.Attachment) (string, error) {
	messages = SanitizeMessages(messages)
	if len(messages) == 0 {
		return "", &ProviderError{Category: ErrorCategoryPermanent, Message: "no valid messages to send"}
	}

	var systemPrefix string
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemPrefix != "" {
				systemPrefix += "\n\n"
			}
			systemPrefix += msg.Content
		case "assistant":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}

	for _, attachment := range attachments {
		if attachment.Text == "" {
			continue
		}
		if systemPrefix != "" {
			systemPrefix += "\n\n"
		}
		systemPrefix += fmt.Sprintf("Attached document %q:\n%s", attachment.Filename, attachment.Text)
	}

	if systemPrefix != "" {
		merged := false
		for i, content := range contents {
			if content.Role == "user" {
				contents[i].Parts[0].Text = systemPrefix + "\n\n" + content.Parts[0].Text
				merged = true
				break
			}
		}
		if !merged {
			contents = append([]geminiContent{{Role: "user", Parts: []geminiPart{{Text: systemPrefix}}}}, contents...)
		}
	}
	if len(contents) == 0 {
		return "", &ProviderError{Category: ErrorCategoryPermanent, Message: "no user or assistant messages to send"}
	}

	request := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.opts.Temperature,
			TopP:            c.opts.TopP,
			MaxOutputTokens: c.opts.MaxOutputTokens,
		},
	}
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.opts.Model, c.apiKey)
	headers := map[string]string{"Content-Type": "application/json"}

	respBody, err := c.transport.do(ctx, "POST", url, headers, body)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				log.Printf("✅ [LLM] gemini completion ok (%d tokens)", resp.UsageMetadata.TotalTokenCount)
				return part.Text, nil
			}
		}
	}

	return "", &ProviderError{
		Category: ErrorCategoryPermanent,
		Message:  "response contained no text output: " + truncateString(string(respBody), 200),
	}
}
