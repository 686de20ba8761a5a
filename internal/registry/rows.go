package registry

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// listKeys are the envelope keys the registry has been seen to nest rows
// under, tried in priority order.
var listKeys = []string{"value", "items", "data", "results"}

// decodeStructured normalizes the four observed JSON envelope shapes into a
// row slice: a bare list, a map with a nested list under a known key, or a
// single row map. Anything else decodes to nothing.
func decodeStructured(body []byte) []Row {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}

	switch v := data.(type) {
	case []interface{}:
		return rowsFromList(v)
	case map[string]interface{}:
		for _, key := range listKeys {
			if nested, ok := v[key].([]interface{}); ok {
				return rowsFromList(nested)
			}
		}
		return []Row{Row(v)}
	default:
		return nil
	}
}

func rowsFromList(list []interface{}) []Row {
	rows := make([]Row, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			rows = append(rows, Row(m))
		}
	}
	return rows
}

// decodeTabular parses a CSV body, header row first, one Row per record.
func decodeTabular(body []byte) []Row {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil || len(records) < 2 {
		return nil
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// Field returns the first non-empty value among the aliased columns,
// stringified. Upstream schemas disagree on column names between the JSON
// and CSV renderings and across API versions.
func (r Row) Field(aliases ...string) string {
	for _, key := range aliases {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		s := stringify(v)
		if s != "" {
			return s
		}
	}
	return ""
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers; policy ids come through as integers.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
