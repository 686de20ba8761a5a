package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/pkg/logger"
)

// reportColumns is the stable export column order, enrichment fields last.
var reportColumns = []string{
	"ingredient",
	"e_code",
	"category",
	"risk",
	"red_flag",
	"source",
	"reason",
	"pdf_evidence",
	"eu_enriched",
	"eu_source",
	"eu_e_code",
	"eu_official_name",
	"eu_function",
	"eu_official_name_en",
	"eu_function_en",
	"eu_official_name_sv",
	"eu_function_sv",
	"eu_policy_item_id",
}

type ReportHandler struct{}

func NewReportHandler() *ReportHandler {
	return &ReportHandler{}
}

// MakeReport renders scan items as a downloadable JSON or CSV file.
func (h *ReportHandler) MakeReport(c *fiber.Ctx) error {
	var req struct {
		Items  []models.ClassifiedItem `json:"items"`
		Format string                  `json:"format"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Items are required",
		})
	}

	switch req.Format {
	case "", "json":
		data, err := json.MarshalIndent(req.Items, "", "  ")
		if err != nil {
			logger.Error("Failed to render report", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to render report",
			})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="ingredients_report.json"`)
		return c.Send(data)

	case "csv":
		data, err := renderCSV(req.Items)
		if err != nil {
			logger.Error("Failed to render report", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to render report",
			})
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="ingredients_report.csv"`)
		return c.Send(data)

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Format must be json or csv",
		})
	}
}

func renderCSV(items []models.ClassifiedItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(reportColumns); err != nil {
		return nil, err
	}

	for _, it := range items {
		row := []string{
			it.Ingredient,
			it.ECode,
			it.Category,
			it.Risk,
			strconv.FormatBool(it.RedFlag),
			it.Source,
			it.Reason,
			it.PDFEvidence,
			strconv.FormatBool(it.EUEnriched),
			it.EUSource,
			it.EUECode,
			it.EUOfficialName,
			it.EUFunction,
			it.EUOfficialNameEN,
			it.EUFunctionEN,
			it.EUOfficialNameSV,
			it.EUFunctionSV,
			it.EUPolicyItemID,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
