// Package classify runs the RAG classification pass: the risk guide is the
// only authority for category and risk, and anything the guide does not
// cover comes back as NotInPDF so enrichment can fill in registry facts.
package classify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/llm"
	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/vector/milvus"
	"github.com/labelscan/backend/pkg/jsonutil"
	"github.com/labelscan/backend/pkg/logger"
	"github.com/labelscan/backend/pkg/utils"
)

const (
	snippetLimit = 800
	perTermTopK  = 3
	cacheTTL     = 24 * time.Hour
)

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type VectorIndex interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]milvus.SearchResult, error)
}

type Enricher interface {
	EnrichMany(ctx context.Context, items []models.ClassifiedItem, translateSV bool) []models.ClassifiedItem
}

// Cache holds finished scan results and query embeddings between requests.
// The Redis client satisfies it; nil disables caching.
type Cache interface {
	GetScan(ctx context.Context, scanHash string, result interface{}) (bool, error)
	SetScan(ctx context.Context, scanHash string, result interface{}, ttl time.Duration) error
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Classifier struct {
	completer Completer
	embedder  Embedder
	index     VectorIndex
	enricher  Enricher
	cache     Cache
}

type Request struct {
	Ingredients []string
	GuideText   string
	Enrich      bool
	TranslateSV bool
}

type Result struct {
	Items []models.ClassifiedItem `json:"items"`
}

func NewClassifier(completer Completer, embedder Embedder, index VectorIndex, enricher Enricher, cache Cache) *Classifier {
	return &Classifier{
		completer: completer,
		embedder:  embedder,
		index:     index,
		enricher:  enricher,
		cache:     cache,
	}
}

// Classify labels every ingredient token against the risk guide. The cache,
// retrieval index, and enricher are all optional; each degrades to a smaller
// pipeline rather than an error.
func (c *Classifier) Classify(ctx context.Context, req Request) (*Result, error) {
	if len(req.Ingredients) == 0 {
		return &Result{Items: []models.ClassifiedItem{}}, nil
	}
	if c.completer == nil {
		return nil, fmt.Errorf("classifier has no completion backend")
	}

	cacheKey := c.cacheKey(req)
	if c.cache != nil {
		var cached Result
		hit, err := c.cache.GetScan(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Scan cache read failed", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	contextBlob := c.retrieveContext(ctx, req.Ingredients)

	userPrompt := fmt.Sprintf(classifyUserPromptTmpl,
		req.GuideText,
		strings.Join(req.Ingredients, "\n"),
		contextBlob,
	)

	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: classifySystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0,
	})
	if err != nil {
		return nil, fmt.Errorf("classification call failed: %w", err)
	}

	result, err := c.parse(resp.Content)
	if err != nil {
		logger.Warn("Classifier output was not valid JSON, attempting repair", zap.Error(err))
		result, err = c.repair(ctx, resp.Content)
		if err != nil {
			return nil, fmt.Errorf("classification output unusable: %w", err)
		}
	}

	normalizeItems(result.Items)
	for _, it := range result.Items {
		metrics.ItemsClassified.WithLabelValues(it.Source).Inc()
	}

	if req.Enrich && c.enricher != nil {
		result.Items = c.enricher.EnrichMany(ctx, result.Items, req.TranslateSV)
	}

	if c.cache != nil {
		if err := c.cache.SetScan(ctx, cacheKey, result, cacheTTL); err != nil {
			logger.Warn("Scan cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

// cacheKey covers everything that can change the answer: the ingredient
// list, both flags, and the guide text itself, so a guide update never
// serves classifications made against the previous revision.
func (c *Classifier) cacheKey(req Request) string {
	parts := append([]string{}, req.Ingredients...)
	parts = append(parts,
		strconv.FormatBool(req.Enrich),
		strconv.FormatBool(req.TranslateSV),
		utils.HashString(req.GuideText),
	)
	return utils.HashStrings(parts)
}

// retrieveContext gathers per-term guide passages, probing each term both
// bare and with Swedish anchor words. Retrieval failures shrink the context
// instead of failing the scan.
func (c *Classifier) retrieveContext(ctx context.Context, ingredients []string) string {
	if c.embedder == nil || c.index == nil {
		return "(no relevant guide passages found)"
	}

	var blobs []string
	for _, term := range ingredients {
		hits := c.search(ctx, term, perTermTopK)
		if len(hits) > 0 {
			snippets := make([]string, 0, len(hits))
			for _, h := range hits {
				snippets = append(snippets, truncate(h.Text, snippetLimit))
			}
			blobs = append(blobs, fmt.Sprintf("### %s\n%s", term, strings.Join(snippets, "\n---\n")))
		}

		for _, anchor := range svAnchors {
			anchored := c.search(ctx, term+" "+anchor, 1)
			if len(anchored) > 0 {
				blobs = append(blobs, fmt.Sprintf("### %s (sv match: %s)\n%s",
					term, anchor, truncate(anchored[0].Text, snippetLimit)))
			}
		}
	}

	if len(blobs) == 0 {
		return "(no relevant guide passages found)"
	}
	return strings.Join(blobs, "\n\n")
}

func (c *Classifier) search(ctx context.Context, query string, topK int) []milvus.SearchResult {
	embedding := c.queryEmbedding(ctx, query)
	if embedding == nil {
		return nil
	}
	hits, err := c.index.Search(ctx, embedding, topK, nil)
	if err != nil {
		logger.Warn("Vector search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return hits
}

// queryEmbedding serves retrieval probes from the embedding cache when
// possible; the anchor probes repeat the same strings on every scan.
func (c *Classifier) queryEmbedding(ctx context.Context, query string) []float32 {
	textHash := utils.HashString(query)

	if c.cache != nil {
		embedding, hit, err := c.cache.GetEmbedding(ctx, textHash)
		if err != nil {
			logger.Warn("Embedding cache read failed", zap.Error(err))
		} else if hit {
			return embedding
		}
	}

	embedding, err := c.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		logger.Warn("Embedding for retrieval failed", zap.String("query", query), zap.Error(err))
		return nil
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, textHash, embedding, cacheTTL); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding
}

func (c *Classifier) parse(raw string) (*Result, error) {
	var result Result
	if err := jsonutil.Coerce(raw, &result); err != nil {
		return nil, err
	}
	if result.Items == nil {
		return nil, fmt.Errorf("missing or invalid 'items'")
	}
	return &result, nil
}

// repair asks the model once to rewrite its own output as strict JSON.
func (c *Classifier) repair(ctx context.Context, raw string) (*Result, error) {
	resp, err := c.completer.Complete(ctx, llm.CompletionRequest{
		UserPrompt:  fmt.Sprintf(repairPromptTmpl, raw),
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("repair call failed: %w", err)
	}
	return c.parse(resp.Content)
}

// normalizeItems clamps model output onto the taxonomy.
func normalizeItems(items []models.ClassifiedItem) {
	known := make(map[string]string, len(Categories))
	for _, cat := range Categories {
		known[strings.ToLower(cat)] = cat
	}
	for i := range items {
		cat, ok := known[strings.ToLower(strings.TrimSpace(items[i].Category))]
		if !ok {
			cat = "None"
		}
		items[i].Category = cat
		if items[i].Risk == "" {
			items[i].Risk = "Unknown"
		}
		if items[i].Source == "" {
			items[i].Source = "NotInPDF"
		}
	}
}

// GroupByCategory buckets items by taxonomy label, with "None" collecting
// everything outside it. Every category is present even when empty.
func GroupByCategory(items []models.ClassifiedItem) map[string][]models.ClassifiedItem {
	groups := make(map[string][]models.ClassifiedItem, len(Categories)+1)
	for _, cat := range Categories {
		groups[cat] = []models.ClassifiedItem{}
	}
	groups["None"] = []models.ClassifiedItem{}
	for _, it := range items {
		cat := it.Category
		if _, ok := groups[cat]; !ok {
			cat = "None"
		}
		groups[cat] = append(groups[cat], it)
	}
	return groups
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
