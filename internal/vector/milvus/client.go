package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/labelscan/backend/pkg/logger"
)

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// GuideChunk is one indexed passage of the additive risk guide.
type GuideChunk struct {
	ID        string
	Embedding []float32
	Text      string
	Source    string
	Section   string
	Category  string
	Timestamp time.Time
}

type SearchResult struct {
	ChunkID  string
	Text     string
	Source   string
	Section  string
	Category string
	Score    float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Additive risk guide embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "section",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "category",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.L2, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Insert(ctx context.Context, chunks []GuideChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkIDs := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	sections := make([]string, len(chunks))
	categories := make([]string, len(chunks))
	timestamps := make([]int64, len(chunks))

	for i, chunk := range chunks {
		chunkIDs[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		sources[i] = chunk.Source
		sections[i] = chunk.Section
		categories[i] = chunk.Category
		timestamps[i] = chunk.Timestamp.Unix()
	}

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("section", sections),
		entity.NewColumnVarChar("category", categories),
		entity.NewColumnInt64("timestamp", timestamps),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Guide chunks inserted into vector DB", zap.Int("count", len(chunks)))

	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]SearchResult, error) {
	expr := ""
	if category, ok := filters["category"]; ok && category != "" {
		expr = fmt.Sprintf(`category == "%s"`, category)
	}
	if source, ok := filters["source"]; ok && source != "" {
		if expr != "" {
			expr += " && "
		}
		expr += fmt.Sprintf(`source == "%s"`, source)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "source", "section", "category"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			chunkIDCol := sr.Fields.GetColumn("chunk_id")
			textCol := sr.Fields.GetColumn("text")
			sourceCol := sr.Fields.GetColumn("source")
			sectionCol := sr.Fields.GetColumn("section")
			categoryCol := sr.Fields.GetColumn("category")

			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			source, _ := sourceCol.Get(i)
			section, _ := sectionCol.Get(i)
			category, _ := categoryCol.Get(i)

			results = append(results, SearchResult{
				ChunkID:  chunkID.(string),
				Text:     text.(string),
				Source:   source.(string),
				Section:  section.(string),
				Category: category.(string),
				Score:    sr.Scores[i],
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("filters", expr),
	)

	return results, nil
}
