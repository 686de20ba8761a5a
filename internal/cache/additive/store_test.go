package additive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return NewStore(db, DefaultTTL)
}

func record(code string, updatedAt time.Time) *models.AdditiveRecord {
	return &models.AdditiveRecord{
		Code:           code,
		OfficialNameEN: "Sodium nitrite",
		FunctionEN:     "Preservative",
		PolicyItemID:   "POL-1",
		RawPayload:     map[string]interface{}{"additive_e_code": "E 250"},
		UpdatedAt:      updatedAt.UTC().Format(models.TimeLayout),
	}
}

func TestPutThenGet(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put(record("E250", time.Now())))

	got, err := s.Get("E250")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sodium nitrite", got.OfficialNameEN)
	assert.Equal(t, "E 250", got.RawPayload["additive_e_code"])
}

func TestGetMiss(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get("E999")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	rec := record("E250", time.Now())

	require.NoError(t, s.Put(rec))
	require.NoError(t, s.Put(rec))

	rows, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.OfficialNameEN, rows[0].OfficialNameEN)
	assert.Equal(t, rec.UpdatedAt, rows[0].UpdatedAt)
}

func TestUpsertOverwritesAllColumns(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put(record("E250", time.Now())))

	updated := record("E250", time.Now())
	updated.OfficialNameEN = "Sodium nitrite (refreshed)"
	updated.RawPayload = map[string]interface{}{"additive_e_code": "E250", "rev": float64(2)}
	require.NoError(t, s.Put(updated))

	got, err := s.Get("E250")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Sodium nitrite (refreshed)", got.OfficialNameEN)
	assert.Equal(t, float64(2), got.RawPayload["rev"])
}

func TestTTLBoundary(t *testing.T) {
	s := newTestStore(t)

	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	// 180 days + 1 second old: stale, reads as a miss.
	require.NoError(t, s.Put(record("E903", fixed.Add(-DefaultTTL-time.Second))))
	got, err := s.Get("E903")
	require.NoError(t, err)
	assert.Nil(t, got)

	// 179 days old: fresh.
	require.NoError(t, s.Put(record("E967", fixed.Add(-179*24*time.Hour))))
	got, err = s.Get("E967")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestUnparseableTimestampIsStale(t *testing.T) {
	s := newTestStore(t)

	rec := record("E300", time.Now())
	rec.UpdatedAt = "last tuesday"
	require.NoError(t, s.Put(rec))

	got, err := s.Get("E300")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDurableHitPopulatesL1(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put(record("E211", time.Now())))

	// Fresh store instance sharing the same durable tier: L1 starts cold.
	warm := NewStore(s.db, DefaultTTL)
	got, err := warm.Get("E211")
	require.NoError(t, err)
	require.NotNil(t, got)

	warm.mu.RLock()
	_, inL1 := warm.l1["E211"]
	warm.mu.RUnlock()
	assert.True(t, inL1)
}

func TestStaleRowStaysInStorage(t *testing.T) {
	s := newTestStore(t)

	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Put(record("E250", fixed.Add(-DefaultTTL-time.Hour))))

	got, err := s.Get("E250")
	require.NoError(t, err)
	assert.Nil(t, got, "stale row reads as a miss")

	rows, err := s.Recent(10)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "stale row still occupies storage")
}
