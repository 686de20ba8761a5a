package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/scan"
	"github.com/labelscan/backend/pkg/logger"
)

type ScanHandler struct {
	engine *scan.Engine
}

func NewScanHandler(engine *scan.Engine) *ScanHandler {
	return &ScanHandler{
		engine: engine,
	}
}

func (h *ScanHandler) HandleScan(c *fiber.Ctx) error {
	var req struct {
		Text        string   `json:"text"`
		Ingredients []string `json:"ingredients"`
		Enrich      bool     `json:"enrich"`
		TranslateSV bool     `json:"translate_sv"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Text == "" && len(req.Ingredients) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text or ingredients are required",
		})
	}

	response, err := h.engine.ProcessScan(c.Context(), scan.Request{
		Text:        req.Text,
		Ingredients: req.Ingredients,
		Enrich:      req.Enrich,
		TranslateSV: req.TranslateSV,
	})
	if err != nil {
		if errors.Is(err, scan.ErrNoGuide) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "No risk guide ingested yet",
			})
		}
		logger.Error("Failed to process scan", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process scan",
		})
	}

	return c.JSON(response)
}

func (h *ScanHandler) HandleImageScan(c *fiber.Ctx) error {
	var req struct {
		ImageBase64 string `json:"image_base64"`
		MimeType    string `json:"mime_type"`
		Enrich      bool   `json:"enrich"`
		TranslateSV bool   `json:"translate_sv"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.ImageBase64 == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "image_base64 is required",
		})
	}
	if req.MimeType == "" {
		req.MimeType = "image/jpeg"
	}

	response, err := h.engine.ProcessImageScan(c.Context(), req.ImageBase64, req.MimeType, scan.Request{
		Enrich:      req.Enrich,
		TranslateSV: req.TranslateSV,
	})
	if err != nil {
		if errors.Is(err, scan.ErrNoGuide) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "No risk guide ingested yet",
			})
		}
		logger.Error("Failed to process image scan", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process image scan",
		})
	}

	return c.JSON(response)
}

func (h *ScanHandler) GetScanHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, err := h.engine.RecentScans(limit)
	if err != nil {
		logger.Error("Failed to list scan history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list scan history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":          r.ID,
			"item_count":  r.ItemCount,
			"pdf_matched": r.PDFMatched,
			"eu_enriched": r.EUEnriched,
			"latency_ms":  r.LatencyMS,
			"created_at":  r.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}
