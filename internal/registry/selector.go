package registry

import (
	"strings"

	"github.com/labelscan/backend/internal/ecode"
)

// Column-name aliases per logical field, in lookup order.
var (
	CodeAliases   = []string{"additive_e_code", "e_code", "E_number", "e_number", "code"}
	NameAliases   = []string{"additive_name", "name", "Name"}
	FuncAliases   = []string{"functional_class", "function", "category"}
	PolicyAliases = []string{"policy_item_id", "policy_id", "id"}
	URLAliases    = []string{"fip_url", "url"}

	typeAliases = []string{"additive_type", "type"}
)

const substanceType = "substancefad"

// RowCode returns the storage-normalized code of a row, "" when absent.
func RowCode(r Row) string {
	return ecode.NormalizeStorage(r.Field(CodeAliases...))
}

func rowType(r Row) string {
	return strings.ToLower(r.Field(typeAliases...))
}

// IsSubstance reports whether the row's type marks it as an actual additive
// substance rather than a group or preparation entry.
func IsSubstance(r Row) bool {
	return rowType(r) == substanceType
}

// SelectBestRow picks the row to trust for wantedCode. Priority, first
// match wins: exact code + substance type; exact code; any substance-typed
// row; the first row; nil when empty.
func SelectBestRow(rows []Row, wantedCode string) Row {
	if len(rows) == 0 {
		return nil
	}

	for _, r := range rows {
		if code := RowCode(r); code != "" && code == wantedCode && IsSubstance(r) {
			return r
		}
	}
	for _, r := range rows {
		if code := RowCode(r); code != "" && code == wantedCode {
			return r
		}
	}
	for _, r := range rows {
		if IsSubstance(r) {
			return r
		}
	}
	return rows[0]
}
