// Package ingest turns raw label text (pasted or OCR output) into a clean,
// ordered, de-duplicated list of ingredient tokens. E-codes survive intact
// in any of their printed spellings.
package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ecodeTokenRe = regexp.MustCompile(`(?i)e\s?-?\s?\d{3}[a-z]?`)
	hardSplitRe  = regexp.MustCompile(`[;()\[\]{}]| och | and |\n`)
	slashPipeRe  = regexp.MustCompile(`[/|]`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

var ingredientMarkers = []string{"ingredient", "ingredients", "ingrediens", "ingredienser"}

// Tokenize extracts ingredient tokens from free label text. Lines that
// mention an ingredients marker are preferred; when none do, the full text
// is used. Order of first appearance is preserved.
func Tokenize(raw string) []string {
	if raw == "" {
		return nil
	}
	text := normalizeText(raw)

	var candidate string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, marker := range ingredientMarkers {
			if strings.Contains(line, marker) {
				candidate += " " + line
				break
			}
		}
	}
	if candidate == "" {
		candidate = text
	}

	seen := make(map[string]bool)
	var out []string

	for _, chunk := range hardSplitRe.Split(candidate, -1) {
		chunk = slashPipeRe.ReplaceAllString(chunk, ",")
		for _, part := range strings.Split(chunk, ",") {
			part = strings.Trim(part, " :.-")
			if part == "" {
				continue
			}

			tokens := tokenizePart(part)
			if len(tokens) == 0 {
				continue
			}

			ing := spaceRe.ReplaceAllString(strings.TrimSpace(strings.Join(tokens, " ")), " ")
			if len(ing) > 1 && !seen[ing] {
				out = append(out, ing)
				seen[ing] = true
			}
		}
	}

	return out
}

// tokenizePart keeps E-code tokens verbatim, in place, and hands the text
// between them to the prose tokenizer, dropping anything that is not a
// plausible word.
func tokenizePart(part string) []string {
	var tokens []string
	last := 0

	for _, loc := range ecodeTokenRe.FindAllStringIndex(part, -1) {
		tokens = append(tokens, proseWords(part[last:loc[0]])...)
		tokens = append(tokens, part[loc[0]:loc[1]])
		last = loc[1]
	}
	tokens = append(tokens, proseWords(part[last:])...)

	return tokens
}

func proseWords(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	doc, err := prose.NewDocument(s,
		prose.WithSegmentation(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil
	}
	var words []string
	for _, tok := range doc.Tokens() {
		if isWord(tok.Text) {
			words = append(words, tok.Text)
		}
	}
	return words
}

func isWord(s string) bool {
	if len([]rune(s)) < 2 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' {
			return false
		}
	}
	return true
}

// normalizeText folds diacritics, lower-cases, and converts bullet points
// to commas so the splitters see uniform separators.
func normalizeText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.ReplaceAll(folded, "•", ",")
}
