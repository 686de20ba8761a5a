package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/cache/additive"
	"github.com/labelscan/backend/internal/classify"
	"github.com/labelscan/backend/internal/enrich"
	"github.com/labelscan/backend/internal/ingestion"
	"github.com/labelscan/backend/internal/registry"
	"github.com/labelscan/backend/internal/scan"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/storage/sqlite"
	"github.com/labelscan/backend/internal/translate"
)

type fixedClassifier struct {
	items []models.ClassifiedItem
}

func (f *fixedClassifier) Classify(context.Context, classify.Request) (*classify.Result, error) {
	return &classify.Result{Items: f.items}, nil
}

func newTestApp(t *testing.T, withGuide bool) *fiber.App {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	if withGuide {
		require.NoError(t, db.SaveGuide(&models.Guide{
			ID:        "g1",
			Name:      "guide",
			Text:      "E211: Avoid",
			CreatedAt: time.Now(),
		}))
	}

	classifier := &fixedClassifier{items: []models.ClassifiedItem{
		{Ingredient: "e211", Source: "PDF", RedFlag: true},
		{Ingredient: "water", Source: "NotInPDF"},
	}}
	engine := scan.NewEngine(db, classifier, nil)
	processor := ingestion.NewProcessor(db, nil, nil, nil)

	app := fiber.New()
	api := app.Group("/api/v1")

	scanHandler := NewScanHandler(engine)
	api.Post("/scan", scanHandler.HandleScan)
	api.Get("/scan/history", scanHandler.GetScanHistory)

	guideHandler := NewGuideHandler(processor)
	api.Post("/guide", guideHandler.UploadGuide)

	reportHandler := NewReportHandler()
	api.Post("/report", reportHandler.MakeReport)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestScanEndpoint(t *testing.T) {
	app := newTestApp(t, true)

	resp := postJSON(t, app, "/api/v1/scan", map[string]interface{}{
		"text": "ingredients: water, e211",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID         string                  `json:"id"`
		Items      []models.ClassifiedItem `json:"items"`
		PDFMatched int                     `json:"pdf_matched"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.ID)
	assert.Len(t, body.Items, 2)
	assert.Equal(t, 1, body.PDFMatched)
}

func TestScanEndpointRequiresInput(t *testing.T) {
	app := newTestApp(t, true)
	resp := postJSON(t, app, "/api/v1/scan", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScanEndpointWithoutGuideConflicts(t *testing.T) {
	app := newTestApp(t, false)
	resp := postJSON(t, app, "/api/v1/scan", map[string]interface{}{
		"text": "ingredients: water",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestScanHistoryEndpoint(t *testing.T) {
	app := newTestApp(t, true)

	postJSON(t, app, "/api/v1/scan", map[string]interface{}{"text": "ingredients: water"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scan/history", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		History []map[string]interface{} `json:"history"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.History, 1)
}

func TestGuideEndpoint(t *testing.T) {
	app := newTestApp(t, false)

	resp := postJSON(t, app, "/api/v1/guide", map[string]interface{}{
		"name":    "v1",
		"content": "E211 sodium benzoate: Avoid",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		GuideID string `json:"guide_id"`
		Chunks  int    `json:"chunks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.GuideID)
	assert.Equal(t, 1, body.Chunks)
}

func TestGuideEndpointRequiresContent(t *testing.T) {
	app := newTestApp(t, false)
	resp := postJSON(t, app, "/api/v1/guide", map[string]interface{}{"name": "v1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReportEndpointCSV(t *testing.T) {
	app := newTestApp(t, false)

	resp := postJSON(t, app, "/api/v1/report", map[string]interface{}{
		"format": "csv",
		"items": []models.ClassifiedItem{
			{Ingredient: "e211", ECode: "E211", Category: "Preservatives", Risk: "Avoid", RedFlag: true, Source: "PDF"},
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "ingredients_report.csv")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ingredient,e_code,category,risk,red_flag,source,reason,pdf_evidence,eu_enriched"))
	assert.Contains(t, lines[1], "e211,E211,Preservatives,Avoid,true,PDF")
}

func TestReportEndpointJSON(t *testing.T) {
	app := newTestApp(t, false)

	resp := postJSON(t, app, "/api/v1/report", map[string]interface{}{
		"items": []models.ClassifiedItem{{Ingredient: "water", Source: "NotInPDF"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "ingredients_report.json")

	var items []models.ClassifiedItem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, "water", items[0].Ingredient)
}

func TestReportEndpointBadFormat(t *testing.T) {
	app := newTestApp(t, false)
	resp := postJSON(t, app, "/api/v1/report", map[string]interface{}{
		"format": "xml",
		"items":  []models.ClassifiedItem{{Ingredient: "water"}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdditiveFipSummaryEndpoint(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><p>E250 is authorised as a preservative.</p></body></html>`))
	}))
	t.Cleanup(page.Close)

	registryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": [{"additive_e_code": "E 250", "additive_name": "potassium nitrite",
			"functional_class": "preservative", "additive_type": "SubstanceFAD",
			"fip_url": "` + page.URL + `"}]}`))
	}))
	t.Cleanup(registryServer.Close)

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	store := additive.NewStore(db, 0)
	regClient := registry.NewClient(registry.Config{
		BaseURL: registryServer.URL,
		DataDir: t.TempDir(),
	})
	service := enrich.NewService(store, regClient, translate.NewTranslator(nil), 0)

	app := fiber.New()
	h := NewAdditivesHandler(service, regClient)
	app.Get("/api/v1/additives/:code/fip", h.GetFipSummary)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/additives/E250/fip", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ECode   string `json:"e_code"`
		FipURL  string `json:"fip_url"`
		Summary string `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "E250", body.ECode)
	assert.Equal(t, page.URL, body.FipURL)
	assert.Contains(t, body.Summary, "E250 is authorised")
}

func TestAdditiveFipSummaryUnknownCode(t *testing.T) {
	registryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": []}`))
	}))
	t.Cleanup(registryServer.Close)

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	store := additive.NewStore(db, 0)
	regClient := registry.NewClient(registry.Config{
		BaseURL: registryServer.URL,
		DataDir: t.TempDir(),
	})
	service := enrich.NewService(store, regClient, translate.NewTranslator(nil), 0)

	app := fiber.New()
	h := NewAdditivesHandler(service, regClient)
	app.Get("/api/v1/additives/:code/fip", h.GetFipSummary)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/additives/E999/fip", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdditiveLookupNotFound(t *testing.T) {
	registryServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"value": []}`))
	}))
	t.Cleanup(registryServer.Close)

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	store := additive.NewStore(db, 0)
	regClient := registry.NewClient(registry.Config{
		BaseURL: registryServer.URL,
		DataDir: t.TempDir(),
	})
	service := enrich.NewService(store, regClient, translate.NewTranslator(nil), 0)

	app := fiber.New()
	h := NewAdditivesHandler(service, regClient)
	app.Get("/api/v1/additives/:code", h.GetAdditive)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/additives/E999", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
