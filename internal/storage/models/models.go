package models

import "time"

// TimeLayout is the persisted timestamp format: ISO-8601 at seconds
// precision, UTC, without a zone suffix.
const TimeLayout = "2006-01-02T15:04:05"

// AdditiveRecord is the canonical cached entity for one EU additive,
// keyed by storage-normalized E-code.
type AdditiveRecord struct {
	Code           string                 `json:"eu_e_code"`
	OfficialNameEN string                 `json:"eu_official_name_en"`
	FunctionEN     string                 `json:"eu_function_en"`
	PolicyItemID   string                 `json:"eu_policy_item_id"`
	RawPayload     map[string]interface{} `json:"eu_raw"`
	OfficialNameSV string                 `json:"eu_official_name_sv"`
	FunctionSV     string                 `json:"eu_function_sv"`
	FipURL         string                 `json:"eu_fip_url,omitempty"`
	UpdatedAt      string                 `json:"updated_at"`
}

// Stale reports whether the record is past the freshness window relative
// to now. An absent or unparseable timestamp counts as stale. Stale rows
// stay in storage; staleness only drives refetch decisions.
func (r *AdditiveRecord) Stale(ttl time.Duration, now time.Time) bool {
	if r == nil || r.UpdatedAt == "" {
		return true
	}
	ts, err := time.Parse(TimeLayout, r.UpdatedAt)
	if err != nil {
		return true
	}
	return now.UTC().Sub(ts) > ttl
}

// ClassifiedItem is one ingredient token with its guide classification and,
// for NotInPDF items, the attached EU enrichment fields. The legacy
// eu_official_name / eu_function aliases mirror the English fields for the
// CSV/JSON report format.
type ClassifiedItem struct {
	Ingredient  string `json:"ingredient"`
	ECode       string `json:"e_code"`
	Category    string `json:"category"`
	Risk        string `json:"risk"`
	RedFlag     bool   `json:"red_flag"`
	Reason      string `json:"reason"`
	Source      string `json:"source"`
	PDFEvidence string `json:"pdf_evidence"`

	EUEnriched       bool   `json:"eu_enriched"`
	EUSource         string `json:"eu_source"`
	EUECode          string `json:"eu_e_code,omitempty"`
	EUOfficialName   string `json:"eu_official_name,omitempty"`
	EUFunction       string `json:"eu_function,omitempty"`
	EUOfficialNameEN string `json:"eu_official_name_en,omitempty"`
	EUFunctionEN     string `json:"eu_function_en,omitempty"`
	EUOfficialNameSV string `json:"eu_official_name_sv,omitempty"`
	EUFunctionSV     string `json:"eu_function_sv,omitempty"`
	EUPolicyItemID   string `json:"eu_policy_item_id,omitempty"`
	EUFipURL         string `json:"eu_fip_url,omitempty"`
}

// Guide is one uploaded revision of the risk-guide text.
type Guide struct {
	ID        string
	Name      string
	Text      string
	CreatedAt time.Time
}

// GuideChunk is one indexed slice of the risk-guide text.
type GuideChunk struct {
	ID         string
	GuideID    string
	ChunkIndex int
	Text       string
	CreatedAt  time.Time
}

// ScanRecord is one completed label scan, kept for history and coverage
// reporting.
type ScanRecord struct {
	ID          string
	LabelText   string
	ItemCount   int
	PDFMatched  int
	EUEnriched  int
	LatencyMS   int
	CreatedAt   time.Time
}
