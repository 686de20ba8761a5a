package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBestRowPrefersSubstanceWithMatchingCode(t *testing.T) {
	rows := []Row{
		{"additive_e_code": "E250", "additive_type": "other"},
		{"additive_e_code": "E250", "additive_type": "substanceFAD"},
	}

	best := SelectBestRow(rows, "E250")
	require.NotNil(t, best)
	assert.Equal(t, "substanceFAD", best["additive_type"])
}

func TestSelectBestRowMatchingCodeAnyType(t *testing.T) {
	rows := []Row{
		{"additive_e_code": "E100", "additive_type": "groupFAD"},
		{"additive_e_code": "E250", "additive_type": "groupFAD"},
	}

	best := SelectBestRow(rows, "E250")
	require.NotNil(t, best)
	assert.Equal(t, "E250", RowCode(best))
}

func TestSelectBestRowFallsBackToSubstance(t *testing.T) {
	rows := []Row{
		{"additive_e_code": "E100", "additive_type": "groupFAD"},
		{"additive_e_code": "E101", "additive_type": "substanceFAD"},
		{"additive_e_code": "E102", "additive_type": "groupFAD"},
	}

	best := SelectBestRow(rows, "E999")
	require.NotNil(t, best)
	assert.Equal(t, "E101", RowCode(best))
}

func TestSelectBestRowFirstRowFallback(t *testing.T) {
	rows := []Row{
		{"additive_e_code": "E100"},
		{"additive_e_code": "E101"},
	}

	best := SelectBestRow(rows, "E999")
	require.NotNil(t, best)
	assert.Equal(t, "E100", RowCode(best))
}

func TestSelectBestRowEmpty(t *testing.T) {
	assert.Nil(t, SelectBestRow(nil, "E250"))
}

func TestSelectBestRowNormalizesUpstreamSpelling(t *testing.T) {
	rows := []Row{
		{"e_code": "E 250", "type": "substanceFAD"},
	}

	best := SelectBestRow(rows, "E250")
	require.NotNil(t, best)
	assert.Equal(t, "E250", RowCode(best))
}

func TestRowFieldAliasOrder(t *testing.T) {
	r := Row{"e_code": "E211", "code": "ignored"}
	assert.Equal(t, "E211", r.Field(CodeAliases...))

	r = Row{"name": "", "Name": "Sodium benzoate"}
	assert.Equal(t, "Sodium benzoate", r.Field(NameAliases...))

	r = Row{"policy_item_id": float64(421)}
	assert.Equal(t, "421", r.Field(PolicyAliases...))
}
