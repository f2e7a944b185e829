package handlers

import (
	"github.com/gofiber/fiber/v2"

	"coursemind/internal/assembler"
	"coursemind/internal/models"
)

// ContextHandler handles explicit context rebuilds
type ContextHandler struct {
	assembler    *assembler.Assembler
	sourceConfig func() models.SourceConfig
}

// NewContextHandler creates a new context handler
func NewContextHandler(asm *assembler.Assembler, sourceConfig func() models.SourceConfig) *ContextHandler {
	return &ContextHandler{assembler: asm, sourceConfig: sourceConfig}
}

type rebuildRequest struct {
	CourseID int64 `json:"course_id"`
}

// Rebuild drops the cached aggregate and assembles a fresh one
func (h *ContextHandler) Rebuild(c *fiber.Ctx) error {
	ownerID := c.Params("id")
	if ownerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Block ID is required",
		})
	}

	var req rebuildRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.CourseID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "course_id is required",
		})
	}

	cfg := h.sourceConfig()
	h.assembler.Invalidate(ownerID, cfg)

	result, err := h.assembler.BuildContext(c.Context(), ownerID, req.CourseID, cfg)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to rebuild context",
		})
	}

	return c.JSON(fiber.Map{
		"chars":   len(result.Context),
		"uploads": len(result.Uploads),
		"rebuilt": true,
	})
}
