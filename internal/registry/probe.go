package registry

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/labelscan/backend/internal/ecode"
)

type ProbeAttempt struct {
	Variant string `json:"variant"`
	Rows    int    `json:"rows"`
}

type ProbeResult struct {
	ECode    string         `json:"ecode"`
	Attempts []ProbeAttempt `json:"attempts"`
	OK       bool           `json:"ok"`
}

// Probe is a health check against the live registry: it walks the query
// variants for one code and reports how many rows each spelling returned,
// stopping at the first success. Nothing is cached.
func (c *Client) Probe(ctx context.Context, code string) ProbeResult {
	out := ProbeResult{ECode: code}
	for _, variant := range ecode.QueryVariants(code) {
		params := map[string]string{"additive_e_code": variant}
		rows := c.FetchStructured(ctx, params)
		if len(rows) == 0 {
			rows = c.FetchTabular(ctx, params)
		}
		out.Attempts = append(out.Attempts, ProbeAttempt{Variant: variant, Rows: len(rows)})
		if len(rows) > 0 {
			out.OK = true
			break
		}
	}
	return out
}

// FipSummary fetches a registry detail page (the fip_url a row may carry)
// and strips it to plain text for display. Best-effort; "" on any failure.
func (c *Client) FipSummary(ctx context.Context, pageURL string) string {
	if pageURL == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "FoodAdditivesClient/1.0 (+labelscan)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header").Remove()
	text := strings.TrimSpace(doc.Find("body").Text())

	if len(text) > 2000 {
		text = text[:2000]
	}
	return text
}
