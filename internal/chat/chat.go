// Package chat orchestrates one tutoring turn: assemble the course context,
// shape the conversation, call the provider, and post-process the answer.
// Internal failures never reach the student verbatim; they map to a small
// set of canned messages.
package chat

import (
	"context"
	"errors"
	"strings"

	"coursemind/internal/assembler"
	"coursemind/internal/llm"
	"coursemind/internal/logging"
	"coursemind/internal/models"
	"coursemind/internal/textutil"
)

// maxHistoryTurns bounds how much prior conversation travels with each
// request.
const maxHistoryTurns = 10

// Response length budget. Answers are cut on a sentence boundary, last
// sentence end before the secondary limit preferred.
const (
	responsePrimaryLimit   = 6000
	responseSecondaryLimit = 5500
)

// Canned user-facing messages. Raw provider errors stay in the server log.
const (
	MsgProviderUnavailable = "Sorry, I couldn't reach the assistant right now. Please try again in a moment."
	MsgNotConfigured       = "The assistant isn't set up for this course yet. Please contact your teacher."
	MsgNoAnswer            = "Sorry, I couldn't produce an answer this time. Please try rephrasing your question."
)

const systemPreamble = "You are a tutoring assistant for this course. " +
	"Use the course content below to answer the student's questions.\n\n"

// ErrEmptyQuestion is returned when the sanitized question is blank; the
// HTTP layer maps it to a client error rather than a canned reply.
var ErrEmptyQuestion = errors.New("empty question")

// ContextBuilder is the assembler surface the processor consumes.
type ContextBuilder interface {
	BuildContext(ctx context.Context, ownerID string, courseID int64, cfg models.SourceConfig) (assembler.Result, error)
}

// ClientFactory creates the provider client for one turn. Turns carry
// their provider reference so different blocks can use different models.
type ClientFactory func(ref models.ProviderRef) (llm.Client, error)

// Turn is one inbound chat request.
type Turn struct {
	OwnerID  string
	CourseID int64
	Provider models.ProviderRef
	Config   models.SourceConfig
	History  []models.ChatMessage
	Question string
}

// Reply is the user-facing outcome. Fallback marks canned failure text.
type Reply struct {
	Text     string
	Fallback bool
}

// Processor runs chat turns.
type Processor struct {
	builder   ContextBuilder
	newClient ClientFactory
}

// NewProcessor creates a processor.
func NewProcessor(builder ContextBuilder, newClient ClientFactory) *Processor {
	return &Processor{builder: builder, newClient: newClient}
}

// Process runs one turn end to end. The returned error is non-nil only for
// invalid input; provider and pipeline failures come back as fallback
// replies so the caller always has something renderable.
func (p *Processor) Process(ctx context.Context, turn Turn) (Reply, error) {
	question := strings.TrimSpace(textutil.StripHTML(turn.Question))
	if question == "" {
		return Reply{}, ErrEmptyQuestion
	}

	logger := logging.WithTurn(turn.OwnerID, turn.CourseID, string(turn.Provider.Kind))

	result, err := p.builder.BuildContext(ctx, turn.OwnerID, turn.CourseID, turn.Config)
	if err != nil {
		logger.Warn("context build failed, continuing without context", "error", err)
		result = assembler.Result{}
	}

	messages := make([]models.ChatMessage, 0, len(turn.History)+2)
	if result.Context != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: systemPreamble + result.Context})
	}

	history := turn.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	messages = append(messages, history...)
	messages = append(messages, models.ChatMessage{Role: "user", Content: question})

	var attachments []models.Attachment
	for _, upload := range result.Uploads {
		attachments = append(attachments, models.Attachment{
			Filename:    upload.Filename,
			MimeType:    upload.MimeType,
			ContentHash: upload.ContentHash,
			Data:        upload.Data,
			Text:        upload.Text,
		})
	}

	client, err := p.newClient(turn.Provider)
	if err != nil {
		logger.Error("client creation failed", "model", turn.Provider.Model, "error", err)
		return Reply{Text: fallbackFor(err), Fallback: true}, nil
	}

	text, err := client.GetCompletion(ctx, messages, attachments)
	if err != nil {
		logger.Error("completion failed", "error", err)
		return Reply{Text: fallbackFor(err), Fallback: true}, nil
	}

	return Reply{Text: textutil.TruncateAtSentence(text, responsePrimaryLimit, responseSecondaryLimit)}, nil
}

// fallbackFor maps an internal failure onto the canned message set.
func fallbackFor(err error) string {
	if errors.Is(err, llm.ErrNoUsableResult) {
		return MsgNoAnswer
	}
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.Category == llm.ErrorCategoryConfig {
		return MsgNotConfigured
	}
	return MsgProviderUnavailable
}
