// Package ingestion turns an uploaded risk guide into searchable chunks:
// the full text goes to SQLite, chunk vectors go to Milvus.
package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/llm"
	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/storage/sqlite"
	"github.com/labelscan/backend/internal/vector/milvus"
	"github.com/labelscan/backend/pkg/logger"
)

// ScanCache is the slice of the Redis client the processor needs: cached
// scan results classified against an older guide must not outlive it.
type ScanCache interface {
	InvalidateScanCache(ctx context.Context) error
}

type Processor struct {
	db           *sqlite.Client
	vectorDB     *milvus.Client
	llmClient    *llm.Client
	scanCache    ScanCache
	chunkSize    int
	chunkOverlap int
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client, scanCache ScanCache) *Processor {
	return &Processor{
		db:           db,
		vectorDB:     vectorDB,
		llmClient:    llmClient,
		scanCache:    scanCache,
		chunkSize:    2200,
		chunkOverlap: 200,
	}
}

// IngestGuide stores a new guide revision and indexes its chunks. HTML
// uploads are stripped to plain text first. Returns the guide ID and the
// number of chunks indexed.
func (p *Processor) IngestGuide(ctx context.Context, name, content string) (string, int, error) {
	logger.Info("Ingesting risk guide", zap.String("name", name))

	text := content
	if looksLikeHTML(content) {
		text = stripHTML(content)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, fmt.Errorf("no content extracted from guide")
	}

	guideID := uuid.New().String()
	guide := &models.Guide{
		ID:        guideID,
		Name:      name,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := p.db.SaveGuide(guide); err != nil {
		return "", 0, fmt.Errorf("failed to save guide: %w", err)
	}

	chunks := p.chunkText(text)
	logger.Info("Guide chunked", zap.Int("chunks", len(chunks)))

	var vectorChunks []milvus.GuideChunk
	if p.llmClient != nil && p.vectorDB != nil {
		embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, chunks)
		if err != nil {
			return "", 0, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return "", 0, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
		}
		vectorChunks = make([]milvus.GuideChunk, 0, len(chunks))
		for i, chunkText := range chunks {
			vectorChunks = append(vectorChunks, milvus.GuideChunk{
				ID:        fmt.Sprintf("%s_chunk_%d", guideID, i),
				Embedding: embeddings[i],
				Text:      chunkText,
				Source:    name,
				Timestamp: time.Now(),
			})
		}
	}

	for i, chunkText := range chunks {
		dbChunk := &models.GuideChunk{
			ID:         fmt.Sprintf("%s_chunk_%d", guideID, i),
			GuideID:    guideID,
			ChunkIndex: i,
			Text:       chunkText,
			CreatedAt:  time.Now(),
		}
		if err := p.db.InsertGuideChunk(dbChunk); err != nil {
			logger.Warn("Failed to persist guide chunk", zap.Int("index", i), zap.Error(err))
		}
	}

	if len(vectorChunks) > 0 {
		if err := p.vectorDB.Insert(ctx, vectorChunks); err != nil {
			return "", 0, fmt.Errorf("failed to insert into vector DB: %w", err)
		}
	}

	if p.scanCache != nil {
		if err := p.scanCache.InvalidateScanCache(ctx); err != nil {
			logger.Warn("Failed to invalidate scan cache after guide update", zap.Error(err))
		}
	}

	metrics.GuideChunksIndexed.Add(float64(len(chunks)))
	logger.Info("Guide ingested",
		zap.String("guide_id", guideID),
		zap.Int("chunks", len(chunks)),
	)

	return guideID, len(chunks), nil
}

func looksLikeHTML(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") || strings.Contains(lower, "<div")
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// chunkText splits on word boundaries with a small overlap so table rows
// broken across chunks still retrieve.
func (p *Processor) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var currentChunk strings.Builder
	currentSize := 0

	for _, word := range words {
		wordLen := len(word) + 1

		if currentSize+wordLen > p.chunkSize && currentChunk.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(currentChunk.String()))

			overlapWords := strings.Fields(currentChunk.String())
			overlapStart := max(0, len(overlapWords)-p.chunkOverlap/10)
			currentChunk.Reset()
			currentChunk.WriteString(strings.Join(overlapWords[overlapStart:], " ") + " ")
			currentSize = currentChunk.Len()
		}

		currentChunk.WriteString(word + " ")
		currentSize += wordLen
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
