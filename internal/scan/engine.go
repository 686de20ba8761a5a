// Package scan orchestrates a full label scan: OCR or pasted text in,
// tokenized ingredients through the classifier and enricher, coverage
// counts and history out.
package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/classify"
	"github.com/labelscan/backend/internal/ingest"
	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/storage/sqlite"
	"github.com/labelscan/backend/pkg/logger"
)

// ErrNoGuide is returned when no risk guide has been ingested yet. The
// guide is the sole classification authority, so scanning without one
// would only produce guesses.
var ErrNoGuide = fmt.Errorf("no risk guide ingested")

type Classifier interface {
	Classify(ctx context.Context, req classify.Request) (*classify.Result, error)
}

type OCRReader interface {
	ReadLabelImage(ctx context.Context, imageBase64, mimeType string) (string, error)
}

type Engine struct {
	db         *sqlite.Client
	classifier Classifier
	ocr        OCRReader
}

type Request struct {
	Text        string
	Ingredients []string
	Enrich      bool
	TranslateSV bool
}

type Response struct {
	ID          string                             `json:"id"`
	Ingredients []string                           `json:"ingredients"`
	Items       []models.ClassifiedItem            `json:"items"`
	Grouped     map[string][]models.ClassifiedItem `json:"grouped"`
	PDFMatched  int                                `json:"pdf_matched"`
	EUEnriched  int                                `json:"eu_enriched"`
	LatencyMS   int                                `json:"latency_ms"`
}

func NewEngine(db *sqlite.Client, classifier Classifier, ocr OCRReader) *Engine {
	return &Engine{
		db:         db,
		classifier: classifier,
		ocr:        ocr,
	}
}

// ProcessScan runs the pipeline over pasted text or a pre-tokenized
// ingredient list. Explicit ingredients win over text.
func (e *Engine) ProcessScan(ctx context.Context, req Request) (*Response, error) {
	return e.process(ctx, req, "text")
}

// ProcessImageScan reads the label photo with the vision model first, then
// runs the normal pipeline over the recognized text.
func (e *Engine) ProcessImageScan(ctx context.Context, imageBase64, mimeType string, req Request) (*Response, error) {
	if e.ocr == nil {
		return nil, fmt.Errorf("image scanning is not configured")
	}

	text, err := e.ocr.ReadLabelImage(ctx, imageBase64, mimeType)
	if err != nil {
		metrics.ScanTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("label OCR failed: %w", err)
	}

	req.Text = text
	req.Ingredients = nil
	return e.process(ctx, req, "image")
}

func (e *Engine) process(ctx context.Context, req Request, inputType string) (*Response, error) {
	startTime := time.Now()
	scanID := uuid.New().String()

	logger.Info("Processing scan",
		zap.String("scan_id", scanID),
		zap.String("input_type", inputType),
	)

	if e.classifier == nil {
		return nil, fmt.Errorf("classification is not configured")
	}

	ingredients := req.Ingredients
	if len(ingredients) == 0 {
		ingredients = ingest.Tokenize(req.Text)
	}
	if len(ingredients) == 0 {
		metrics.ScanTotal.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("no ingredients found in input")
	}

	guide, err := e.db.CurrentGuide()
	if err != nil {
		return nil, fmt.Errorf("failed to load risk guide: %w", err)
	}
	if guide == nil {
		return nil, ErrNoGuide
	}

	result, err := e.classifier.Classify(ctx, classify.Request{
		Ingredients: ingredients,
		GuideText:   guide.Text,
		Enrich:      req.Enrich,
		TranslateSV: req.TranslateSV,
	})
	if err != nil {
		metrics.ScanTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	pdfMatched := 0
	euEnriched := 0
	for _, it := range result.Items {
		if it.Source == "PDF" {
			pdfMatched++
		}
		if it.EUEnriched {
			euEnriched++
		}
	}

	latency := int(time.Since(startTime).Milliseconds())

	record := &models.ScanRecord{
		ID:         scanID,
		LabelText:  req.Text,
		ItemCount:  len(result.Items),
		PDFMatched: pdfMatched,
		EUEnriched: euEnriched,
		LatencyMS:  latency,
		CreatedAt:  time.Now(),
	}
	if err := e.db.InsertScanRecord(record); err != nil {
		logger.Warn("Failed to record scan", zap.Error(err))
	}

	metrics.ScanTotal.WithLabelValues("ok").Inc()
	metrics.ScanDuration.WithLabelValues(inputType).Observe(time.Since(startTime).Seconds())

	logger.Info("Scan completed",
		zap.String("scan_id", scanID),
		zap.Int("items", len(result.Items)),
		zap.Int("pdf_matched", pdfMatched),
		zap.Int("eu_enriched", euEnriched),
		zap.Int("latency_ms", latency),
	)

	return &Response{
		ID:          scanID,
		Ingredients: ingredients,
		Items:       result.Items,
		Grouped:     classify.GroupByCategory(result.Items),
		PDFMatched:  pdfMatched,
		EUEnriched:  euEnriched,
		LatencyMS:   latency,
	}, nil
}

// RecentScans lists scan history, newest first.
func (e *Engine) RecentScans(limit int) ([]models.ScanRecord, error) {
	return e.db.RecentScans(limit)
}
