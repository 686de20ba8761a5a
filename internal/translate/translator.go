// Package translate produces Swedish renderings of EU registry name and
// function fields. Generation is optional (no credential, no translation);
// a deterministic override layer always runs afterwards so known-tricky
// codes get usable Swedish text even with generation disabled or misfiring.
package translate

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/llm"
	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/internal/storage/models"
	"github.com/labelscan/backend/pkg/jsonutil"
	"github.com/labelscan/backend/pkg/logger"
)

// Completer is the slice of the LLM client this package needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Translator struct {
	completer Completer
}

// NewTranslator accepts a nil completer, which disables generation; the
// override tables still apply.
func NewTranslator(completer Completer) *Translator {
	return &Translator{completer: completer}
}

const systemPrompt = `Translate the EU additive fields to Swedish.
Return ONLY this JSON (no code fences, no comments):
{"name_sv":"...", "function_sv":"..."}
- If you are not sure, return an empty string for that field.
- Do NOT use angle brackets. Do NOT return placeholders.
- Keep chemical names natural for Swedish labeling.`

// Translate returns Swedish name/function for the given English fields.
// Disabled generation, empty inputs, call failure, and unparseable output
// all yield empty strings; the caller's fallback pass fills what it can.
func (t *Translator) Translate(ctx context.Context, nameEN, functionEN string) (string, string) {
	if t.completer == nil || (nameEN == "" && functionEN == "") {
		return "", ""
	}

	userPrompt := "English name: " + nameEN + "\nEnglish function: " + functionEN

	resp, err := t.completer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    200,
	})
	if err != nil {
		logger.Warn("Translation call failed", zap.Error(err))
		metrics.TranslationTotal.WithLabelValues("error").Inc()
		return "", ""
	}

	var out struct {
		NameSV     string `json:"name_sv"`
		FunctionSV string `json:"function_sv"`
	}
	if err := jsonutil.Coerce(resp.Content, &out); err != nil {
		logger.Warn("Translation output not JSON", zap.Error(err))
		metrics.TranslationTotal.WithLabelValues("unparseable").Inc()
		return "", ""
	}

	nameSV := strings.TrimSpace(out.NameSV)
	functionSV := strings.TrimSpace(out.FunctionSV)

	if IsPlaceholder(nameSV) {
		nameSV = ""
	}
	if IsPlaceholder(functionSV) {
		functionSV = ""
	}

	metrics.TranslationTotal.WithLabelValues("ok").Inc()
	return nameSV, functionSV
}

// IsPlaceholder flags values where the model echoed the instructions
// instead of translating: known placeholder words, angle brackets, or any
// mention of "svensk"/"svenska".
func IsPlaceholder(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "namn" || s == "funktion" {
		return true
	}
	if strings.ContainsAny(s, "<>") {
		return true
	}
	return strings.Contains(s, "svensk")
}

// nameOverrides maps codes whose generated Swedish names are routinely
// wrong or missing to fixed labels.
var nameOverrides = map[string]string{
	"E903": "Karnaubavax",
	"E414": "Gummi arabicum (akaciagummi)",
	"E300": "Askorbinsyra",
	"E967": "Xylitol (björksocker)",
}

// functionMap translates English function classes by substring match. Order
// matters: the first hit wins, so it is a slice, not a map.
var functionMap = []struct {
	EN string
	SV string
}{
	{"Antioxidant", "Antioxidationsmedel"},
	{"Glazing agent", "Ytbehandlingsmedel"},
	{"Glazing agents", "Ytbehandlingsmedel"},
	{"Colour", "Färgämne"},
	{"Color", "Färgämne"},
	{"Sweetener", "Sötningsmedel"},
	{"Stabiliser", "Stabiliseringsmedel"},
	{"Stabilizer", "Stabiliseringsmedel"},
	{"Thickener", "Förtjockningsmedel"},
	{"Emulsifier", "Emulgeringsmedel"},
	{"Preservative", "Konserveringsmedel"},
	{"Raising agent", "Jäsmedel"},
	{"Acidity regulator", "Surhetsreglerande medel"},
	{"Anti-caking agent", "Klumpförebyggande medel"},
	{"Flavour enhancer", "Smakförstärkare"},
	{"Flavouring", "Aromämne"},
}

var functionOverridesByCode = map[string]string{
	"E903": "Ytbehandlingsmedel",
	"E967": "Sötningsmedel",
	"E300": "Antioxidationsmedel",
	"E414": "Stabiliserings-/Förtjockningsmedel",
}

// ApplyFallbacks cleans residual placeholders from the record's Swedish
// fields and fills remaining gaps deterministically: name override by code,
// then function by EN-substring mapping, then function override by code.
// Runs whether or not generation was attempted.
func ApplyFallbacks(rec *models.AdditiveRecord) {
	if IsPlaceholder(rec.OfficialNameSV) {
		rec.OfficialNameSV = ""
	}
	if rec.OfficialNameSV == "" {
		if name, ok := nameOverrides[rec.Code]; ok {
			rec.OfficialNameSV = name
		}
	}

	if IsPlaceholder(rec.FunctionSV) {
		rec.FunctionSV = ""
	}
	if rec.FunctionSV == "" && rec.FunctionEN != "" {
		funcLower := strings.ToLower(rec.FunctionEN)
		for _, entry := range functionMap {
			if strings.Contains(funcLower, strings.ToLower(entry.EN)) {
				rec.FunctionSV = entry.SV
				break
			}
		}
	}
	if rec.FunctionSV == "" {
		if fn, ok := functionOverridesByCode[rec.Code]; ok {
			rec.FunctionSV = fn
		}
	}
}
