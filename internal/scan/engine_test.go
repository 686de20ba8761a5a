package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/classify"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/storage/sqlite"
)

type stubClassifier struct {
	lastReq classify.Request
	items   []models.ClassifiedItem
	err     error
}

func (s *stubClassifier) Classify(_ context.Context, req classify.Request) (*classify.Result, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &classify.Result{Items: s.items}, nil
}

type stubOCR struct {
	text string
	err  error
}

func (s *stubOCR) ReadLabelImage(context.Context, string, string) (string, error) {
	return s.text, s.err
}

func newTestDB(t *testing.T, withGuide bool) *sqlite.Client {
	t.Helper()
	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "scan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())
	if withGuide {
		require.NoError(t, db.SaveGuide(&models.Guide{
			ID:        "g1",
			Name:      "guide",
			Text:      "E211 sodium benzoate: Avoid",
			CreatedAt: time.Now(),
		}))
	}
	return db
}

func TestProcessScanCountsCoverage(t *testing.T) {
	classifier := &stubClassifier{items: []models.ClassifiedItem{
		{Ingredient: "e211", Source: "PDF", RedFlag: true, Category: "Preservatives"},
		{Ingredient: "water", Source: "NotInPDF"},
		{Ingredient: "gum arabic", Source: "NotInPDF", EUEnriched: true},
	}}
	e := NewEngine(newTestDB(t, true), classifier, nil)

	resp, err := e.ProcessScan(context.Background(), Request{Text: "ingredients: water, e211, gum arabic"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, 1, resp.PDFMatched)
	assert.Equal(t, 1, resp.EUEnriched)
	assert.Len(t, resp.Items, 3)
	assert.Equal(t, "E211 sodium benzoate: Avoid", classifier.lastReq.GuideText)

	require.Len(t, resp.Grouped["Preservatives"], 1)
	assert.Equal(t, "e211", resp.Grouped["Preservatives"][0].Ingredient)
	assert.Len(t, resp.Grouped["None"], 2)
}

func TestProcessScanExplicitIngredientsWin(t *testing.T) {
	classifier := &stubClassifier{items: []models.ClassifiedItem{{Ingredient: "salt"}}}
	e := NewEngine(newTestDB(t, true), classifier, nil)

	resp, err := e.ProcessScan(context.Background(), Request{
		Text:        "ingredients: sugar",
		Ingredients: []string{"salt"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"salt"}, resp.Ingredients)
	assert.Equal(t, []string{"salt"}, classifier.lastReq.Ingredients)
}

func TestProcessScanNoGuide(t *testing.T) {
	e := NewEngine(newTestDB(t, false), &stubClassifier{}, nil)

	_, err := e.ProcessScan(context.Background(), Request{Text: "ingredients: water"})
	assert.ErrorIs(t, err, ErrNoGuide)
}

func TestProcessScanEmptyInput(t *testing.T) {
	e := NewEngine(newTestDB(t, true), &stubClassifier{}, nil)

	_, err := e.ProcessScan(context.Background(), Request{Text: "   "})
	assert.Error(t, err)
}

func TestProcessScanRecordsHistory(t *testing.T) {
	classifier := &stubClassifier{items: []models.ClassifiedItem{{Ingredient: "water", Source: "NotInPDF"}}}
	e := NewEngine(newTestDB(t, true), classifier, nil)

	_, err := e.ProcessScan(context.Background(), Request{Text: "ingredients: water"})
	require.NoError(t, err)

	records, err := e.RecentScans(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].ItemCount)
}

func TestProcessImageScanUsesOCRText(t *testing.T) {
	classifier := &stubClassifier{items: []models.ClassifiedItem{{Ingredient: "socker"}}}
	ocr := &stubOCR{text: "ingredienser: socker"}
	e := NewEngine(newTestDB(t, true), classifier, ocr)

	resp, err := e.ProcessImageScan(context.Background(), "aGVsbG8=", "image/png", Request{})
	require.NoError(t, err)
	assert.Equal(t, []string{"socker"}, resp.Ingredients)
}

func TestProcessImageScanOCRFailure(t *testing.T) {
	ocr := &stubOCR{err: fmt.Errorf("vision backend down")}
	e := NewEngine(newTestDB(t, true), &stubClassifier{}, ocr)

	_, err := e.ProcessImageScan(context.Background(), "aGVsbG8=", "image/png", Request{})
	assert.Error(t, err)
}

func TestProcessImageScanWithoutOCRConfigured(t *testing.T) {
	e := NewEngine(newTestDB(t, true), &stubClassifier{}, nil)
	_, err := e.ProcessImageScan(context.Background(), "aGVsbG8=", "image/png", Request{})
	assert.Error(t, err)
}
