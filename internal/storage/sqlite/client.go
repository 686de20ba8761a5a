package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS eu_additives (
		e_code TEXT PRIMARY KEY,
		official_name_en TEXT,
		function_en TEXT,
		policy_item_id TEXT,
		payload_json TEXT,
		name_sv TEXT,
		function_sv TEXT,
		updated_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_additives_name_en ON eu_additives(official_name_en);

	CREATE TABLE IF NOT EXISTS guides (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS guide_chunks (
		id TEXT PRIMARY KEY,
		guide_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_guide ON guide_chunks(guide_id);

	CREATE TABLE IF NOT EXISTS scan_history (
		id TEXT PRIMARY KEY,
		label_text TEXT,
		item_count INTEGER NOT NULL,
		pdf_matched INTEGER NOT NULL,
		eu_enriched INTEGER NOT NULL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scans_created ON scan_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// UpsertAdditive overwrites all non-key columns for the record's code.
// Safe to repeat with identical values; last writer wins.
func (c *Client) UpsertAdditive(rec *models.AdditiveRecord) error {
	payload, err := json.Marshal(rec.RawPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO eu_additives
			(e_code, official_name_en, function_en, policy_item_id, payload_json, name_sv, function_sv, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(e_code) DO UPDATE SET
			official_name_en = excluded.official_name_en,
			function_en = excluded.function_en,
			policy_item_id = excluded.policy_item_id,
			payload_json = excluded.payload_json,
			name_sv = excluded.name_sv,
			function_sv = excluded.function_sv,
			updated_at = excluded.updated_at
	`

	_, err = c.db.Exec(
		query,
		rec.Code,
		rec.OfficialNameEN,
		rec.FunctionEN,
		rec.PolicyItemID,
		string(payload),
		rec.OfficialNameSV,
		rec.FunctionSV,
		rec.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert additive: %w", err)
	}

	logger.Debug("Additive upserted", zap.String("e_code", rec.Code))
	return nil
}

// GetAdditive returns the cached row for a storage-normalized code, or
// (nil, nil) when no row exists.
func (c *Client) GetAdditive(code string) (*models.AdditiveRecord, error) {
	query := `
		SELECT e_code, official_name_en, function_en, policy_item_id, payload_json, name_sv, function_sv, updated_at
		FROM eu_additives WHERE e_code = ?
	`

	var rec models.AdditiveRecord
	var payload string

	err := c.db.QueryRow(query, code).Scan(
		&rec.Code,
		&rec.OfficialNameEN,
		&rec.FunctionEN,
		&rec.PolicyItemID,
		&payload,
		&rec.OfficialNameSV,
		&rec.FunctionSV,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get additive: %w", err)
	}

	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &rec.RawPayload); err != nil {
			logger.Warn("Unreadable cached payload", zap.String("e_code", code), zap.Error(err))
		}
	}

	return &rec, nil
}

// RecentAdditives lists the most recently refreshed rows.
func (c *Client) RecentAdditives(limit int) ([]models.AdditiveRecord, error) {
	query := `
		SELECT e_code, official_name_en, function_en, policy_item_id, updated_at
		FROM eu_additives
		ORDER BY datetime(updated_at) DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent additives: %w", err)
	}
	defer rows.Close()

	var records []models.AdditiveRecord
	for rows.Next() {
		var r models.AdditiveRecord
		err := rows.Scan(&r.Code, &r.OfficialNameEN, &r.FunctionEN, &r.PolicyItemID, &r.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// SaveGuide stores a new guide revision. Older revisions stay for audit;
// CurrentGuide always serves the newest one.
func (c *Client) SaveGuide(guide *models.Guide) error {
	query := `INSERT INTO guides (id, name, text, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(query, guide.ID, guide.Name, guide.Text, guide.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save guide: %w", err)
	}

	logger.Info("Guide saved", zap.String("guide_id", guide.ID), zap.String("name", guide.Name))
	return nil
}

func (c *Client) CurrentGuide() (*models.Guide, error) {
	query := `SELECT id, name, text, created_at FROM guides ORDER BY created_at DESC, rowid DESC LIMIT 1`

	var g models.Guide
	var createdAt int64

	err := c.db.QueryRow(query).Scan(&g.ID, &g.Name, &g.Text, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load guide: %w", err)
	}

	g.CreatedAt = time.Unix(createdAt, 0)
	return &g, nil
}

func (c *Client) InsertGuideChunk(chunk *models.GuideChunk) error {
	query := `INSERT INTO guide_chunks (id, guide_id, chunk_index, text, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.GuideID,
		chunk.ChunkIndex,
		chunk.Text,
		chunk.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert guide chunk: %w", err)
	}

	return nil
}

func (c *Client) InsertScanRecord(record *models.ScanRecord) error {
	query := `
		INSERT INTO scan_history (id, label_text, item_count, pdf_matched, eu_enriched, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.LabelText,
		record.ItemCount,
		record.PDFMatched,
		record.EUEnriched,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert scan record: %w", err)
	}

	logger.Info("Scan recorded",
		zap.String("scan_id", record.ID),
		zap.Int("items", record.ItemCount),
		zap.Int("pdf_matched", record.PDFMatched),
		zap.Int("eu_enriched", record.EUEnriched),
	)

	return nil
}

func (c *Client) RecentScans(limit int) ([]models.ScanRecord, error) {
	query := `
		SELECT id, item_count, pdf_matched, eu_enriched, latency_ms, created_at
		FROM scan_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var records []models.ScanRecord
	for rows.Next() {
		var r models.ScanRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.ItemCount, &r.PDFMatched, &r.EUEnriched, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
