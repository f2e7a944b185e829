package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"coursemind/internal/chat"
	"coursemind/internal/models"
)

// ChatHandler handles tutoring chat turns
type ChatHandler struct {
	processor       *chat.Processor
	defaultProvider models.ProviderRef
	sourceConfig    func() models.SourceConfig
}

// NewChatHandler creates a new chat handler. sourceConfig supplies the
// per-request content configuration snapshot.
func NewChatHandler(processor *chat.Processor, defaultProvider models.ProviderRef, sourceConfig func() models.SourceConfig) *ChatHandler {
	return &ChatHandler{
		processor:       processor,
		defaultProvider: defaultProvider,
		sourceConfig:    sourceConfig,
	}
}

type chatRequest struct {
	OwnerID  string               `json:"owner_id"`
	CourseID int64                `json:"course_id"`
	Question string               `json:"question"`
	History  []models.ChatMessage `json:"history"`
	Provider string               `json:"provider,omitempty"` // optional "provider:model" override
}

// Handle runs one chat turn
func (h *ChatHandler) Handle(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.OwnerID == "" || req.CourseID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id and course_id are required",
		})
	}

	provider := h.defaultProvider
	if req.Provider != "" {
		parsed, err := models.ParseProviderRef(req.Provider)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid provider reference",
			})
		}
		provider = parsed
	}

	reply, err := h.processor.Process(c.Context(), chat.Turn{
		OwnerID:  req.OwnerID,
		CourseID: req.CourseID,
		Provider: provider,
		Config:   h.sourceConfig(),
		History:  req.History,
		Question: req.Question,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyQuestion) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question is required",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process chat turn",
		})
	}

	return c.JSON(fiber.Map{
		"reply":    reply.Text,
		"fallback": reply.Fallback,
	})
}
