// Package additive holds the two-tier cache for EU additive records: a
// process-local L1 map in front of the durable SQLite table. The durable
// tier is authoritative; L1 is a derived accelerator with no state of its
// own and is populated only as a side effect of reads and writes.
package additive

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/storage/sqlite"
	"github.com/labelscan/backend/pkg/logger"
)

// DefaultTTL is the freshness window for cached registry rows.
const DefaultTTL = 180 * 24 * time.Hour

type Store struct {
	mu  sync.RWMutex
	l1  map[string]*models.AdditiveRecord
	db  *sqlite.Client
	ttl time.Duration

	// now is swappable for TTL-boundary tests.
	now func() time.Time
}

func NewStore(db *sqlite.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		l1:  make(map[string]*models.AdditiveRecord),
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the fresh record for a storage-normalized code, or nil on
// miss. A stale row in either tier counts as a miss; the row itself stays
// in place until overwritten. A fresh durable hit back-fills L1.
func (s *Store) Get(code string) (*models.AdditiveRecord, error) {
	now := s.now()

	s.mu.RLock()
	hit := s.l1[code]
	s.mu.RUnlock()

	if hit != nil && !hit.Stale(s.ttl, now) {
		metrics.CacheHits.WithLabelValues("l1").Inc()
		return hit, nil
	}

	rec, err := s.db.GetAdditive(code)
	if err != nil {
		return nil, fmt.Errorf("durable tier read failed: %w", err)
	}
	if rec != nil && !rec.Stale(s.ttl, now) {
		s.mu.Lock()
		s.l1[code] = rec
		s.mu.Unlock()
		metrics.CacheHits.WithLabelValues("sqlite").Inc()
		return rec, nil
	}

	metrics.CacheMisses.WithLabelValues("additive").Inc()
	logger.Debug("Additive cache miss", zap.String("e_code", code), zap.Bool("stale_row_present", rec != nil))
	return nil, nil
}

// Put upserts the record into the durable tier first, then mirrors the
// identical value into L1. Idempotent; concurrent identical writes are
// last-writer-wins.
func (s *Store) Put(rec *models.AdditiveRecord) error {
	if rec == nil || rec.Code == "" {
		return fmt.Errorf("record without storage code")
	}

	if err := s.db.UpsertAdditive(rec); err != nil {
		return err
	}

	s.mu.Lock()
	s.l1[rec.Code] = rec
	s.mu.Unlock()

	return nil
}

// Recent exposes the durable tier's most recently refreshed rows.
func (s *Store) Recent(limit int) ([]models.AdditiveRecord, error) {
	return s.db.RecentAdditives(limit)
}
