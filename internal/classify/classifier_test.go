package classify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/llm"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/vector/milvus"
)

type stubCompleter struct {
	responses []string
	calls     int
	prompts   []llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.prompts = append(s.prompts, req)
	resp := s.responses[s.calls]
	if s.calls < len(s.responses)-1 {
		s.calls++
	}
	return &llm.CompletionResponse{Content: resp}, nil
}

type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type stubIndex struct {
	hits    []milvus.SearchResult
	queries int
}

func (s *stubIndex) Search(context.Context, []float32, int, map[string]string) ([]milvus.SearchResult, error) {
	s.queries++
	return s.hits, nil
}

type stubEnricher struct {
	called bool
}

func (s *stubEnricher) EnrichMany(_ context.Context, items []models.ClassifiedItem, _ bool) []models.ClassifiedItem {
	s.called = true
	for i := range items {
		if items[i].Source == "NotInPDF" {
			items[i].EUEnriched = true
			items[i].EUSource = "EU_API"
		}
	}
	return items
}

type memoryCache struct {
	scans      map[string][]byte
	embeddings map[string][]float32
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		scans:      make(map[string][]byte),
		embeddings: make(map[string][]float32),
	}
}

func (m *memoryCache) GetScan(_ context.Context, scanHash string, result interface{}) (bool, error) {
	data, ok := m.scans[scanHash]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, result)
}

func (m *memoryCache) SetScan(_ context.Context, scanHash string, result interface{}, _ time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	m.scans[scanHash] = data
	return nil
}

func (m *memoryCache) GetEmbedding(_ context.Context, textHash string) ([]float32, bool, error) {
	embedding, ok := m.embeddings[textHash]
	return embedding, ok, nil
}

func (m *memoryCache) SetEmbedding(_ context.Context, textHash string, embedding []float32, _ time.Duration) error {
	m.embeddings[textHash] = embedding
	return nil
}

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) GenerateEmbedding(context.Context, string) ([]float32, error) {
	e.calls++
	return []float32{0.5, 0.5}, nil
}

const goodJSON = `{"items": [
  {"ingredient": "e211", "e_code": "E211", "category": "Preservatives", "risk": "Avoid", "red_flag": true, "reason": "listed", "source": "PDF", "pdf_evidence": "E211 sodium benzoate"},
  {"ingredient": "water", "e_code": "", "category": "None", "risk": "Unknown", "red_flag": false, "reason": "", "source": "NotInPDF", "pdf_evidence": ""}
]}`

func TestClassifyParsesItems(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	c := NewClassifier(completer, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), Request{
		Ingredients: []string{"e211", "water"},
		GuideText:   "E211 sodium benzoate: Avoid",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "Preservatives", result.Items[0].Category)
	assert.True(t, result.Items[0].RedFlag)
	assert.Equal(t, "NotInPDF", result.Items[1].Source)
}

func TestClassifyRepairsBrokenOutput(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		"Sure! Here is the classification you asked for.",
		goodJSON,
	}}
	c := NewClassifier(completer, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), Request{Ingredients: []string{"e211", "water"}})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Len(t, completer.prompts, 2)
}

func TestClassifyRepairFailureErrors(t *testing.T) {
	completer := &stubCompleter{responses: []string{"not json", "still not json"}}
	c := NewClassifier(completer, nil, nil, nil, nil)

	_, err := c.Classify(context.Background(), Request{Ingredients: []string{"water"}})
	assert.Error(t, err)
}

func TestClassifyNormalizesUnknownCategory(t *testing.T) {
	completer := &stubCompleter{responses: []string{
		`{"items": [{"ingredient": "x", "category": "Mystery", "source": "PDF"}]}`,
	}}
	c := NewClassifier(completer, nil, nil, nil, nil)

	result, err := c.Classify(context.Background(), Request{Ingredients: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "None", result.Items[0].Category)
	assert.Equal(t, "Unknown", result.Items[0].Risk)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := NewClassifier(&stubCompleter{responses: []string{goodJSON}}, nil, nil, nil, nil)
	result, err := c.Classify(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}

func TestClassifyRetrievalFeedsPrompt(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	index := &stubIndex{hits: []milvus.SearchResult{{Text: "E211 sodium benzoate: Avoid"}}}
	c := NewClassifier(completer, stubEmbedder{}, index, nil, nil)

	_, err := c.Classify(context.Background(), Request{Ingredients: []string{"e211", "water"}})
	require.NoError(t, err)
	// one bare probe plus one per Swedish anchor, per term
	assert.Equal(t, 2*(1+len(svAnchors)), index.queries)
	assert.Contains(t, completer.prompts[0].UserPrompt, "E211 sodium benzoate: Avoid")
	assert.Contains(t, completer.prompts[0].UserPrompt, "sv match:")
}

func TestClassifyNoIndexUsesPlaceholderContext(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	c := NewClassifier(completer, nil, nil, nil, nil)

	_, err := c.Classify(context.Background(), Request{Ingredients: []string{"water"}})
	require.NoError(t, err)
	assert.Contains(t, completer.prompts[0].UserPrompt, "(no relevant guide passages found)")
}

func TestClassifyEnrichmentHook(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	enricher := &stubEnricher{}
	c := NewClassifier(completer, nil, nil, enricher, nil)

	result, err := c.Classify(context.Background(), Request{
		Ingredients: []string{"e211", "water"},
		Enrich:      true,
	})
	require.NoError(t, err)
	assert.True(t, enricher.called)
	assert.True(t, result.Items[1].EUEnriched)
	assert.False(t, result.Items[0].EUEnriched)
}

func TestClassifyEnrichmentSkippedWhenOff(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	enricher := &stubEnricher{}
	c := NewClassifier(completer, nil, nil, enricher, nil)

	_, err := c.Classify(context.Background(), Request{Ingredients: []string{"water"}})
	require.NoError(t, err)
	assert.False(t, enricher.called)
}

func TestClassifyServesRepeatScanFromCache(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	c := NewClassifier(completer, nil, nil, nil, newMemoryCache())

	req := Request{Ingredients: []string{"e211", "water"}, GuideText: "E211: Avoid"}

	first, err := c.Classify(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, completer.prompts, 1)
	assert.Equal(t, first.Items, second.Items)
}

func TestClassifyGuideUpdateBypassesCache(t *testing.T) {
	completer := &stubCompleter{responses: []string{goodJSON}}
	c := NewClassifier(completer, nil, nil, nil, newMemoryCache())

	_, err := c.Classify(context.Background(), Request{
		Ingredients: []string{"e211", "water"},
		GuideText:   "E211: Avoid",
	})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), Request{
		Ingredients: []string{"e211", "water"},
		GuideText:   "E211: Lower risk",
	})
	require.NoError(t, err)

	assert.Len(t, completer.prompts, 2)
}

func TestQueryEmbeddingCached(t *testing.T) {
	embedder := &countingEmbedder{}
	c := NewClassifier(&stubCompleter{responses: []string{goodJSON}}, embedder,
		&stubIndex{}, nil, newMemoryCache())

	first := c.queryEmbedding(context.Background(), "konserveringsmedel")
	second := c.queryEmbedding(context.Background(), "konserveringsmedel")

	assert.Equal(t, 1, embedder.calls)
	assert.Equal(t, first, second)
}

func TestQueryEmbeddingWithoutCache(t *testing.T) {
	embedder := &countingEmbedder{}
	c := NewClassifier(&stubCompleter{responses: []string{goodJSON}}, embedder,
		&stubIndex{}, nil, nil)

	c.queryEmbedding(context.Background(), "nitrit")
	c.queryEmbedding(context.Background(), "nitrit")

	assert.Equal(t, 2, embedder.calls)
}

func TestGroupByCategory(t *testing.T) {
	items := []models.ClassifiedItem{
		{Ingredient: "a", Category: "Preservatives"},
		{Ingredient: "b", Category: "None"},
		{Ingredient: "c", Category: "made up"},
	}
	groups := GroupByCategory(items)
	assert.Len(t, groups["Preservatives"], 1)
	assert.Len(t, groups["None"], 2)
	assert.Empty(t, groups["Sweeteners"])
}
