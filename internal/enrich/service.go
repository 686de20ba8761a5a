// Package enrich attaches EU registry metadata to ingredient items that the
// risk guide could not classify. It drives the cache → registry → cache
// pipeline; absence of enrichment is a normal outcome, never an error the
// caller has to handle per item.
package enrich

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/cache/additive"
	"github.com/labelscan/backend/internal/ecode"
	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/registry"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/internal/translate"
	"github.com/labelscan/backend/pkg/logger"
)

// Registry is the slice of the registry client the pipeline needs. Both
// fetchers are best-effort and return empty on failure.
type Registry interface {
	FetchStructured(ctx context.Context, params map[string]string) []registry.Row
	FetchTabular(ctx context.Context, params map[string]string) []registry.Row
}

// Translator produces the optional Swedish fields; empty results are fine.
type Translator interface {
	Translate(ctx context.Context, nameEN, functionEN string) (string, string)
}

type Service struct {
	store      *additive.Store
	registry   Registry
	translator Translator
	// pace is the courtesy delay after each successful live fetch, so bulk
	// lookups do not hammer the registry.
	pace time.Duration

	now func() time.Time
}

func NewService(store *additive.Store, reg Registry, translator Translator, pace time.Duration) *Service {
	return &Service{
		store:      store,
		registry:   reg,
		translator: translator,
		pace:       pace,
		now:        time.Now,
	}
}

// Lookup resolves one additive by E-code (preferred) or by name. Layered:
// L1 cache → durable cache → registry (structured, then tabular, per query
// variant) → upsert both tiers. A nil record with nil error means the
// registry had nothing; a stale cached row whose refetch fails also reports
// not-found rather than resurfacing the stale data.
func (s *Service) Lookup(ctx context.Context, code, name string, translateSV bool) (*models.AdditiveRecord, error) {
	if code != "" {
		return s.lookupByCode(ctx, code, translateSV)
	}
	if name != "" {
		return s.lookupByName(ctx, name, translateSV)
	}
	return nil, nil
}

func (s *Service) lookupByCode(ctx context.Context, code string, translateSV bool) (*models.AdditiveRecord, error) {
	storageCode := ecode.NormalizeStorage(code)
	if storageCode == "" {
		return nil, nil
	}

	if rec, err := s.store.Get(storageCode); err != nil {
		logger.Warn("Cache read failed, falling through to registry", zap.String("e_code", storageCode), zap.Error(err))
	} else if rec != nil {
		return rec, nil
	}

	var chosen registry.Row
	for _, variant := range ecode.QueryVariants(storageCode) {
		params := map[string]string{"additive_e_code": variant}
		rows := s.registry.FetchStructured(ctx, params)
		if len(rows) == 0 {
			rows = s.registry.FetchTabular(ctx, params)
		}
		if len(rows) > 0 {
			chosen = registry.SelectBestRow(rows, ecode.NormalizeStorage(variant))
			if chosen != nil {
				break
			}
		}
	}

	if chosen == nil {
		return nil, nil
	}

	rec := s.buildRecord(chosen, storageCode)
	s.finishRecord(ctx, rec, translateSV)
	return rec, nil
}

func (s *Service) lookupByName(ctx context.Context, name string, translateSV bool) (*models.AdditiveRecord, error) {
	params := map[string]string{"additive_name": name}
	rows := s.registry.FetchStructured(ctx, params)
	if len(rows) == 0 {
		rows = s.registry.FetchTabular(ctx, params)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// With no wanted code the selector reduces to: prefer substance-typed
	// rows, else the first row.
	chosen := registry.SelectBestRow(rows, "")
	if chosen == nil {
		return nil, nil
	}

	rec := s.buildRecord(chosen, "")
	s.finishRecord(ctx, rec, translateSV)
	return rec, nil
}

func (s *Service) buildRecord(row registry.Row, fallbackCode string) *models.AdditiveRecord {
	code := registry.RowCode(row)
	if code == "" {
		code = fallbackCode
	}

	return &models.AdditiveRecord{
		Code:           code,
		OfficialNameEN: row.Field(registry.NameAliases...),
		FunctionEN:     row.Field(registry.FuncAliases...),
		PolicyItemID:   row.Field(registry.PolicyAliases...),
		FipURL:         row.Field(registry.URLAliases...),
		RawPayload:     map[string]interface{}(row),
		UpdatedAt:      s.now().UTC().Format(models.TimeLayout),
	}
}

// finishRecord runs the post-fetch half of the pipeline: optional Swedish
// generation, the unconditional deterministic fallbacks, the two-tier
// upsert, and the courtesy pacing delay.
func (s *Service) finishRecord(ctx context.Context, rec *models.AdditiveRecord, translateSV bool) {
	if translateSV && s.translator != nil {
		rec.OfficialNameSV, rec.FunctionSV = s.translator.Translate(ctx, rec.OfficialNameEN, rec.FunctionEN)
	}
	translate.ApplyFallbacks(rec)

	if rec.Code != "" {
		if err := s.store.Put(rec); err != nil {
			// A cache write failure does not void a successful fetch.
			logger.Warn("Cache write failed", zap.String("e_code", rec.Code), zap.Error(err))
		}
	}

	if s.pace > 0 {
		time.Sleep(s.pace)
	}
}

// EnrichOne attaches EU metadata to a single item. PDF-backed items pass
// through untouched; for the rest, a missing registry match is recorded on
// the item, never surfaced as an error.
func (s *Service) EnrichOne(ctx context.Context, item models.ClassifiedItem, translateSV bool) models.ClassifiedItem {
	if item.Source == "PDF" {
		metrics.EnrichmentTotal.WithLabelValues("skipped_pdf").Inc()
		return item
	}

	name := strings.TrimSpace(item.Ingredient)
	code := strings.TrimSpace(item.ECode)
	if code == "" {
		code = ecode.ExtractFromText(name)
	}

	lookupName := ""
	if code == "" {
		lookupName = name
	}

	rec, err := s.Lookup(ctx, code, lookupName, translateSV)
	if err != nil {
		logger.Warn("Enrichment lookup failed", zap.String("ingredient", name), zap.Error(err))
		rec = nil
	}

	if rec == nil {
		item.EUEnriched = false
		item.EUSource = "None"
		metrics.EnrichmentTotal.WithLabelValues("not_found").Inc()
		return item
	}

	item.EUEnriched = true
	item.EUSource = "EU_API"
	item.EUECode = rec.Code
	item.EUOfficialNameEN = rec.OfficialNameEN
	item.EUFunctionEN = rec.FunctionEN
	item.EUOfficialNameSV = rec.OfficialNameSV
	item.EUFunctionSV = rec.FunctionSV
	item.EUPolicyItemID = rec.PolicyItemID
	item.EUFipURL = rec.FipURL
	// Legacy aliases kept for the report formats.
	item.EUOfficialName = rec.OfficialNameEN
	item.EUFunction = rec.FunctionEN

	metrics.EnrichmentTotal.WithLabelValues("enriched").Inc()
	return item
}

// EnrichMany applies EnrichOne to each item independently, order preserved.
// Items are processed strictly sequentially.
func (s *Service) EnrichMany(ctx context.Context, items []models.ClassifiedItem, translateSV bool) []models.ClassifiedItem {
	out := make([]models.ClassifiedItem, 0, len(items))
	for _, item := range items {
		out = append(out, s.EnrichOne(ctx, item, translateSV))
	}
	return out
}

// BulkRefresh pre-fetches a set of codes through the normal cache path, so
// already-fresh codes cost nothing. Returns the number of codes that
// resolved.
func (s *Service) BulkRefresh(ctx context.Context, codes []string, translateSV bool) int {
	ok := 0
	for _, raw := range codes {
		storageCode := ecode.NormalizeStorage(raw)
		if storageCode == "" {
			continue
		}
		rec, err := s.Lookup(ctx, storageCode, "", translateSV)
		if err != nil {
			logger.Warn("Bulk refresh lookup failed", zap.String("e_code", storageCode), zap.Error(err))
			continue
		}
		if rec != nil {
			ok++
		}
	}
	return ok
}

// RecentAdditives lists cached registry rows, newest first.
func (s *Service) RecentAdditives(limit int) ([]models.AdditiveRecord, error) {
	return s.store.Recent(limit)
}
