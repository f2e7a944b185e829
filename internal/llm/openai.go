package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"time"

	"coursemind/internal/models"
)

const (
	openaiBaseURL = "https://api.openai.com/v1"

	// Create-then-poll bounds: initial ~1s, doubling, capped ~8s, at most
	// 10 polls before the completion is declared lost.
	pollInitialDelay = 1 * time.Second
	pollMaxDelay     = 8 * time.Second
	maxPollAttempts  = 10
)

// OpenAIClient talks to the Responses API: submit, poll until terminal,
// extract output text. System messages travel in the separate instructions
// field; attachments ride a per-course file-search index.
type OpenAIClient struct {
	opts      *Options
	apiKey    string
	baseURL   string
	transport *transport
	uploads   *UploadStore

	// vectorStoreID is the on-demand file-search index for this client's
	// scope; vectorStoreFiles tracks which remote files were already added.
	vectorStoreID    string
	vectorStoreLabel string
	vectorStoreFiles map[string]bool
}

// NewOpenAIClient creates a client for one model.
func NewOpenAIClient(model, apiKey string, uploads *UploadStore) *OpenAIClient {
	opts := DefaultOptions(model)
	return &OpenAIClient{
		opts:             opts,
		apiKey:           apiKey,
		baseURL:          openaiBaseURL,
		transport:        newTransport(opts.Timeout),
		uploads:          uploads,
		vectorStoreFiles: make(map[string]bool),
	}
}

// Options exposes the request parameters.
func (c *OpenAIClient) Options() *Options {
	return c.opts
}

// SetVectorStoreLabel names the file-search index created on demand,
// typically after the course it serves.
func (c *OpenAIClient) SetVectorStoreLabel(label string) {
	c.vectorStoreLabel = label
}

func (c *OpenAIClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  "application/json",
	}
}

type openaiInputItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model           string            `json:"model"`
	Input           []openaiInputItem `json:"input"`
	Instructions    string            `json:"instructions,omitempty"`
	MaxOutputTokens int               `json:"max_output_tokens,omitempty"`
	Reasoning       *openaiReasoning  `json:"reasoning,omitempty"`
	Text            *openaiText       `json:"text,omitempty"`
	Tools           []openaiTool      `json:"tools,omitempty"`
	Include         []string          `json:"include,omitempty"`
}

type openaiReasoning struct {
	Effort string `json:"effort"`
}

type openaiText struct {
	Verbosity string `json:"verbosity,omitempty"`
	Format    string `json:"format,omitempty"`
}

type openaiTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

type openaiResponse struct {
	ID         string                  `json:"id"`
	Status     models.CompletionStatus `json:"status"`
	OutputText string                  `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetCompletion submits the request and polls until a terminal status.
func (c *OpenAIClient) GetCompletion(ctx context.Context, messages []models.ChatMessage, attachments []models.Attachment) (string, error) {
	messages = SanitizeMessages(messages)
	if len(messages) == 0 {
		return "", &ProviderError{Category: ErrorCategoryPermanent, Message: "no valid messages to send"}
	}

	// System turns become the instructions field; everything else is the
	// native input list.
	var instructions string
	input := make([]openaiInputItem, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			if instructions != "" {
				instructions += "\n\n"
			}
			instructions += msg.Content
			continue
		}
		input = append(input, openaiInputItem{Role: msg.Role, Content: msg.Content})
	}
	if len(input) == 0 {
		return "", &ProviderError{Category: ErrorCategoryPermanent, Message: "no user or assistant messages to send"}
	}

	request := openaiRequest{
		Model:           c.opts.Model,
		Input:           input,
		Instructions:    instructions,
		MaxOutputTokens: c.opts.MaxOutputTokens,
	}
	if c.opts.ReasoningEffort != "" {
		request.Reasoning = &openaiReasoning{Effort: c.opts.ReasoningEffort}
	}
	if c.opts.Verbosity != "" || c.opts.ResponseFormat != "" {
		request.Text = &openaiText{Verbosity: c.opts.Verbosity, Format: c.opts.ResponseFormat}
	}

	if len(attachments) > 0 {
		fileIDs, names, err := c.ensureUploaded(ctx, attachments)
		if err != nil {
			return "", err
		}
		if err := c.ensureVectorStore(ctx, fileIDs); err != nil {
			return "", err
		}
		request.Tools = []openaiTool{{Type: "file_search", VectorStoreIDs: []string{c.vectorStoreID}}}
		request.Include = []string{"file_search_call.results"}

		// Point the last user turn at the attached material.
		for i := len(request.Input) - 1; i >= 0; i-- {
			if request.Input[i].Role == "user" {
				request.Input[i].Content += fmt.Sprintf("\n\n[Course files available for lookup: %s]", names)
				break
			}
		}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	respBody, err := c.transport.do(ctx, "POST", c.baseURL+"/responses", c.headers(), body)
	if err != nil {
		return "", err
	}

	var resp openaiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	final, err := c.awaitTerminal(ctx, resp)
	if err != nil {
		return "", err
	}
	return extractOpenAIText(final, respBody)
}

// awaitTerminal polls the completion until it reaches a terminal status or
// the attempt budget runs out.
func (c *OpenAIClient) awaitTerminal(ctx context.Context, resp openaiResponse) (openaiResponse, error) {
	delay := pollInitialDelay
	for attempt := 0; ; attempt++ {
		if resp.Status == models.StatusCompleted {
			return resp, nil
		}
		if resp.Status.Terminal() {
			message := string(resp.Status)
			if resp.Error != nil {
				message += ": " + resp.Error.Message
			}
			return resp, &ProviderError{
				Category: ErrorCategoryPermanent,
				Message:  fmt.Sprintf("completion %s ended in status %s", resp.ID, message),
			}
		}
		if attempt >= maxPollAttempts {
			log.Printf("⚠️  [LLM] completion %s still %s after %d polls, giving up", resp.ID, resp.Status, maxPollAttempts)
			return resp, &ProviderError{
				Category:  ErrorCategoryTransient,
				Message:   fmt.Sprintf("completion %s did not finish after %d polls", resp.ID, maxPollAttempts),
				Retryable: false,
			}
		}

		c.transport.sleep(delay)
		delay *= 2
		if delay > pollMaxDelay {
			delay = pollMaxDelay
		}

		pollURL := fmt.Sprintf("%s/responses/%s?include=file_search_call.results", c.baseURL, resp.ID)
		body, err := c.transport.do(ctx, "GET", pollURL, c.headers(), nil)
		if err != nil {
			return resp, err
		}
		resp = openaiResponse{}
		if err := json.Unmarshal(body, &resp); err != nil {
			return resp, fmt.Errorf("failed to decode poll response: %w", err)
		}
	}
}

// extractOpenAIText pulls the completion text: the primary output_text
// field first, then the first textual content item in the output list,
// then the raw body as a diagnostic of last resort.
func extractOpenAIText(resp openaiResponse, rawBody []byte) (string, error) {
	if resp.OutputText != "" {
		return resp.OutputText, nil
	}
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != "" {
				return content.Text, nil
			}
		}
	}
	log.Printf("⚠️  [LLM] response %s has no extractable text, returning diagnostic", resp.ID)
	if len(rawBody) > 0 {
		return "", &ProviderError{
			Category: ErrorCategoryPermanent,
			Message:  "response contained no text output: " + truncateString(string(rawBody), 200),
		}
	}
	return "", ErrNoUsableResult
}

// ensureUploaded uploads any attachment not yet known for this provider and
// returns the remote file IDs plus a display name list.
func (c *OpenAIClient) ensureUploaded(ctx context.Context, attachments []models.Attachment) ([]string, string, error) {
	fileIDs := make([]string, 0, len(attachments))
	names := ""
	for _, attachment := range attachments {
		if ref, found, err := c.uploads.Lookup(ctx, attachment.ContentHash, models.ProviderOpenAI); err == nil && found {
			fileIDs = append(fileIDs, ref.RemoteFileID)
			names = appendName(names, attachment.Filename)
			continue
		}

		fileID, err := c.uploadFile(ctx, attachment)
		if err != nil {
			return nil, "", err
		}
		fileIDs = append(fileIDs, fileID)
		names = appendName(names, attachment.Filename)

		ref := &models.UploadedFileRef{
			LocalContentHash:    attachment.ContentHash,
			RemoteFileID:        fileID,
			Label:               attachment.Filename,
			Type:                attachment.MimeType,
			AllowedForInference: true,
		}
		if err := c.uploads.Save(ctx, ref, models.ProviderOpenAI); err != nil {
			log.Printf("⚠️  [LLM] failed to remember upload %s: %v", attachment.Filename, err)
		}
	}
	return fileIDs, names, nil
}

func appendName(names, name string) string {
	if names == "" {
		return name
	}
	return names + ", " + name
}

// uploadFile submits file bytes to the provider's file storage.
func (c *OpenAIClient) uploadFile(ctx context.Context, attachment models.Attachment) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := writer.CreateFormFile("file", attachment.Filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(attachment.Data); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Content-Type":  writer.FormDataContentType(),
	}
	body, err := c.transport.do(ctx, "POST", c.baseURL+"/files", headers, buf.Bytes())
	if err != nil {
		return "", err
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil || uploaded.ID == "" {
		return "", fmt.Errorf("file upload returned no id")
	}
	log.Printf("📤 [LLM] uploaded %s as %s", attachment.Filename, uploaded.ID)
	return uploaded.ID, nil
}

// ensureVectorStore creates the file-search index on demand and makes sure
// every referenced file is a member.
func (c *OpenAIClient) ensureVectorStore(ctx context.Context, fileIDs []string) error {
	if c.vectorStoreID == "" {
		label := c.vectorStoreLabel
		if label == "" {
			label = "coursemind-files"
		}
		body, _ := json.Marshal(map[string]string{"name": label})
		respBody, err := c.transport.do(ctx, "POST", c.baseURL+"/vector_stores", c.headers(), body)
		if err != nil {
			return err
		}
		var created struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &created); err != nil || created.ID == "" {
			return fmt.Errorf("vector store creation returned no id")
		}
		c.vectorStoreID = created.ID
		log.Printf("🗂️  [LLM] created vector store %s (%s)", created.ID, label)
	}

	for _, fileID := range fileIDs {
		if c.vectorStoreFiles[fileID] {
			continue
		}
		body, _ := json.Marshal(map[string]string{"file_id": fileID})
		url := fmt.Sprintf("%s/vector_stores/%s/files", c.baseURL, c.vectorStoreID)
		if _, err := c.transport.do(ctx, "POST", url, c.headers(), body); err != nil {
			return err
		}
		c.vectorStoreFiles[fileID] = true
	}
	return nil
}
