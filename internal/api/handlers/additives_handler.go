package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/enrich"
	"github.com/labelscan/backend/internal/registry"
	"github.com/labelscan/backend/pkg/logger"
)

type AdditivesHandler struct {
	service  *enrich.Service
	registry *registry.Client
}

func NewAdditivesHandler(service *enrich.Service, registryClient *registry.Client) *AdditivesHandler {
	return &AdditivesHandler{
		service:  service,
		registry: registryClient,
	}
}

// GetAdditive looks up one E-code, serving from the cache when fresh and
// fetching from the EU registry otherwise.
func (h *AdditivesHandler) GetAdditive(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "E-code is required",
		})
	}

	translateSV := c.QueryBool("translate_sv", false)

	record, err := h.service.Lookup(c.Context(), code, "", translateSV)
	if err != nil {
		logger.Error("Additive lookup failed", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
		})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No EU entry found for this code",
		})
	}

	return c.JSON(record)
}

// RefreshAdditives preloads a batch of E-codes into the cache.
func (h *AdditivesHandler) RefreshAdditives(c *fiber.Ctx) error {
	var req struct {
		Codes       []string `json:"codes"`
		TranslateSV bool     `json:"translate_sv"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Codes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Codes are required",
		})
	}

	resolved := h.service.BulkRefresh(c.Context(), req.Codes, req.TranslateSV)

	return c.JSON(fiber.Map{
		"requested": len(req.Codes),
		"resolved":  resolved,
	})
}

// GetFipSummary resolves the cached record's detail-page URL and returns a
// plain-text summary of that page for display.
func (h *AdditivesHandler) GetFipSummary(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "E-code is required",
		})
	}

	record, err := h.service.Lookup(c.Context(), code, "", false)
	if err != nil {
		logger.Error("Additive lookup failed", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Lookup failed",
		})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No EU entry found for this code",
		})
	}
	if record.FipURL == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No detail page known for this code",
		})
	}

	summary := h.registry.FipSummary(c.Context(), record.FipURL)

	return c.JSON(fiber.Map{
		"e_code":  record.Code,
		"fip_url": record.FipURL,
		"summary": summary,
	})
}

// ProbeRegistry runs a live connectivity check against the EU registry.
func (h *AdditivesHandler) ProbeRegistry(c *fiber.Ctx) error {
	code := c.Query("code", "E250")

	result := h.registry.Probe(c.Context(), code)
	return c.JSON(result)
}

// RecentAdditives lists the freshest cached registry rows.
func (h *AdditivesHandler) RecentAdditives(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 25)
	if limit < 1 || limit > 200 {
		limit = 25
	}

	records, err := h.service.RecentAdditives(limit)
	if err != nil {
		logger.Error("Failed to list cached additives", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list cached additives",
		})
	}

	return c.JSON(fiber.Map{
		"count":     len(records),
		"additives": records,
	})
}
