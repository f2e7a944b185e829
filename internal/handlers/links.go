package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"coursemind/internal/models"
	"coursemind/internal/weblink"
)

// maxLinksPerOwner bounds how many external URLs one block may configure.
const maxLinksPerOwner = 20

// LinkHandler handles external-link configuration for a block
type LinkHandler struct {
	links      *weblink.Service
	invalidate func(ownerID string)
}

// NewLinkHandler creates a new link handler. invalidate drops the owner's
// cached aggregate after the link set changes.
func NewLinkHandler(links *weblink.Service, invalidate func(ownerID string)) *LinkHandler {
	return &LinkHandler{links: links, invalidate: invalidate}
}

type linkView struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Status    string `json:"status"`
	LastFetch string `json:"last_fetch,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func toLinkViews(records []models.LinkRecord) []linkView {
	views := make([]linkView, len(records))
	for i, record := range records {
		views[i] = linkView{
			URL:       record.URL,
			Title:     record.Title,
			Status:    string(record.Status),
			LastError: record.LastError,
		}
		if !record.LastFetch.IsZero() {
			views[i].LastFetch = record.LastFetch.Format(time.RFC3339)
		}
	}
	return views
}

// List returns the owner's configured links with fetch state
func (h *LinkHandler) List(c *fiber.Ctx) error {
	ownerID := c.Params("id")
	if ownerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Block ID is required",
		})
	}

	records, err := h.links.Records(c.Context(), ownerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch links",
		})
	}

	return c.JSON(fiber.Map{
		"links": toLinkViews(records),
		"count": len(records),
	})
}

type putLinksRequest struct {
	URLs []string `json:"urls"`
}

// Put replaces the owner's configured URL set; removed URLs are deleted,
// new ones start pending
func (h *LinkHandler) Put(c *fiber.Ctx) error {
	ownerID := c.Params("id")
	if ownerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Block ID is required",
		})
	}

	var req putLinksRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.URLs) > maxLinksPerOwner {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Too many links",
		})
	}

	records, err := h.links.Sync(c.Context(), ownerID, req.URLs)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update links",
		})
	}

	if h.invalidate != nil {
		h.invalidate(ownerID)
	}

	return c.JSON(fiber.Map{
		"links": toLinkViews(records),
		"count": len(records),
	})
}
