package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/ingestion"
	"github.com/labelscan/backend/pkg/logger"
)

type GuideHandler struct {
	processor *ingestion.Processor
}

func NewGuideHandler(processor *ingestion.Processor) *GuideHandler {
	return &GuideHandler{
		processor: processor,
	}
}

// UploadGuide ingests a new revision of the risk guide. The new revision
// becomes the classification authority for subsequent scans.
func (h *GuideHandler) UploadGuide(c *fiber.Ctx) error {
	var req struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content is required",
		})
	}
	if req.Name == "" {
		req.Name = "risk-guide"
	}

	guideID, chunks, err := h.processor.IngestGuide(c.Context(), req.Name, req.Content)
	if err != nil {
		logger.Error("Failed to ingest guide", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest guide",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Guide ingested successfully",
		"guide_id": guideID,
		"chunks":   chunks,
	})
}
