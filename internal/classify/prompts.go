package classify

// Categories is the taxonomy the risk guide defines. The model must answer
// with one of these labels or "None".
var Categories = []string{
	"Preservatives",
	"Sweeteners",
	"Color additives",
	"Flavors",
	"Fat replacers",
	"Emulsifiers",
	"Stabilizers and thickeners",
	"Binders",
	"Texturizers",
	"Anti-caking agents",
	"Dough strengtheners and conditioners",
	"Nitrates & nitrites",
}

const classifySystemPrompt = `You are a strict food-ingredient classifier.

Return ONLY valid JSON. No prose, no code fences, no explanations outside fields.

Authoritative policy:
- Use the risk guide below as the sole authority to classify ingredients into the categories and risk grades it defines.
- If an ingredient (English or Swedish name) and/or its E-code is listed in the guide, classify it using that category and risk terms from the guide.
  - risk MUST be a term used in the guide (e.g., "Avoid" or "Lower risk" if present).
  - red_flag MUST be true for the guide's highest-risk label (e.g., "Avoid"), false otherwise.
- If the ingredient is not present in the guide (by name EN/SV or by E-code), do not guess:
  - Use: "source": "NotInPDF", "category": "None", "risk": "Unknown", "red_flag": false, and empty "pdf_evidence".
- You may add a short reason explaining why the ingredient is problematic, but the classification itself must come from the guide.

Matching rules:
- Match by English or Swedish names (case-insensitive, accents ignored).
- If an E-number / E-code (e.g., E250) is present in the input, prioritize matching by E-code.
- If multiple guide rows could match, choose the most specific match (exact name + E-code over broad family).
- Normalize output "category" to the guide category label.

Output STRICT JSON ONLY (no markdown), with this schema:
{
  "items": [
    {
      "ingredient": "<exact input token>",
      "e_code": "<E-number if present else empty string>",
      "category": "<one of the guide categories or 'None'>",
      "risk": "<guide risk term or 'Unknown'>",
      "red_flag": true | false,
      "reason": "<short human explanation (1-2 lines)>",
      "source": "PDF | NotInPDF",
      "pdf_evidence": "<short phrase copied from the guide that supports the classification, or empty if NotInPDF>"
    }
  ]
}`

const classifyUserPromptTmpl = `Risk guide (authoritative categories, lists, risk terms):
%s

Ingredients to classify (English or Swedish, may include E-codes):
%s

Relevant guide context snippets (for evidence quotes):
%s`

const repairPromptTmpl = `Return ONLY valid JSON matching this schema (no prose, no fences):
{"items": [{"ingredient": "<name>", "e_code": "<E#|''>", "category": "<guide category|None>", "risk": "<guide term|Unknown>", "red_flag": true|false, "reason": "<short>", "source":"PDF|NotInPDF", "pdf_evidence":"<short>"}] }

Rewrite the following as valid JSON only:

%s`

// svAnchors are Swedish context probes appended to each term during
// retrieval so Swedish label tokens still hit English-leaning passages.
var svAnchors = []string{
	"konserveringsmedel", "sötningsmedel", "färgämn", "arom", "smakämn",
	"emulgeringsmedel", "stabiliseringsmedel", "förtjockningsmedel", "bindemedel",
	"texturmedel", "klumpförebyggande", "degförbättringsmedel", "nitrit", "nitrat",
}
