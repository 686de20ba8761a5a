package jsonutil

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNotJSON is returned when no repair strategy yields a valid document.
var ErrNotJSON = errors.New("could not coerce model output to JSON")

var (
	fencedRe       = regexp.MustCompile("(?is)```json\\s*(.+?)\\s*```")
	anyFenceRe     = regexp.MustCompile("(?s)```.*?```")
	lineCommentRe  = regexp.MustCompile(`(?m)//.*?$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
)

// Coerce recovers a JSON object from LLM output. Strategies, in order:
// direct parse, fenced ```json block, outermost-brace slice, and a last
// pass of light repairs (BOM, comments, trailing commas, single quotes).
func Coerce(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}

	if m := fencedRe.FindStringSubmatch(raw); m != nil {
		block := strings.TrimSpace(m[1])
		if err := json.Unmarshal([]byte(block), v); err == nil {
			return nil
		}
		raw = block
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		candidate := raw[start : end+1]
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}

		repaired := strings.ReplaceAll(candidate, "\ufeff", "")
		repaired = anyFenceRe.ReplaceAllString(repaired, "")
		repaired = lineCommentRe.ReplaceAllString(repaired, "")
		repaired = blockCommentRe.ReplaceAllString(repaired, "")
		repaired = trailingComma.ReplaceAllString(repaired, "$1")
		if strings.Count(repaired, "'") > strings.Count(repaired, `"`) {
			repaired = replaceUnescapedQuotes(repaired)
		}
		repaired = strings.TrimSpace(repaired)
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	return ErrNotJSON
}

func replaceUnescapedQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' && (i == 0 || s[i-1] != '\\') {
			b.WriteByte('"')
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
