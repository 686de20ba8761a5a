// Package registry talks to the EU food-additives registry. The endpoint is
// best-effort only: every failure mode (transport, non-200, unparseable
// body, unexpected envelope) collapses to an empty row set so that
// enrichment degrades to "no data" instead of aborting a scan.
package registry

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/labelscan/backend/internal/metrics"
	"github.com/labelscan/backend/pkg/logger"
)

const DefaultBaseURL = "https://api.datalake.sante.service.ec.europa.eu/food-additives/food_additives_details"

const apiVersion = "v1.0"

// Row is one upstream record. JSON responses yield arbitrary value types,
// CSV responses yield strings; field extraction treats both alike.
type Row map[string]interface{}

type Config struct {
	BaseURL    string
	APIVersion string
	// Optional credentials; the endpoint answers without either.
	HeaderKey string
	QueryKey  string
	Timeout   time.Duration
	// DataDir receives the raw response dumps for debugging.
	DataDir string
}

type Client struct {
	baseURL    string
	apiVersion string
	headerKey  string
	queryKey   string
	dataDir    string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = apiVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiVersion: cfg.APIVersion,
		headerKey:  cfg.HeaderKey,
		queryKey:   cfg.QueryKey,
		dataDir:    cfg.DataDir,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchStructured issues one JSON-format request and returns the extracted
// rows, empty on any failure.
func (c *Client) FetchStructured(ctx context.Context, params map[string]string) []Row {
	body, ok := c.get(ctx, "json", params)
	if !ok {
		return nil
	}
	return decodeStructured(body)
}

// FetchTabular issues one CSV-format request; the first line is the header.
func (c *Client) FetchTabular(ctx context.Context, params map[string]string) []Row {
	body, ok := c.get(ctx, "csv", params)
	if !ok {
		return nil
	}
	return decodeTabular(body)
}

func (c *Client) get(ctx context.Context, format string, params map[string]string) ([]byte, bool) {
	start := time.Now()

	values := url.Values{}
	values.Set("format", format)
	values.Set("api-version", c.apiVersion)
	if c.queryKey != "" {
		values.Set("subscription-key", c.queryKey)
	}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		logger.Warn("Registry request build failed", zap.Error(err))
		metrics.RegistryFetchTotal.WithLabelValues(format, "error").Inc()
		return nil, false
	}

	req.Header.Set("User-Agent", "FoodAdditivesClient/1.0 (+labelscan)")
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	if c.headerKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", c.headerKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn("Registry fetch failed", zap.String("format", format), zap.Error(err))
		metrics.RegistryFetchTotal.WithLabelValues(format, "error").Inc()
		return nil, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RegistryFetchTotal.WithLabelValues(format, "error").Inc()
		return nil, false
	}

	c.dumpRaw(format, body)
	metrics.RegistryFetchDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		logger.Warn("Registry returned non-200",
			zap.String("format", format),
			zap.Int("status", resp.StatusCode),
		)
		metrics.RegistryFetchTotal.WithLabelValues(format, "non_200").Inc()
		return nil, false
	}

	metrics.RegistryFetchTotal.WithLabelValues(format, "ok").Inc()
	return body, true
}

// dumpRaw keeps the last response body per format on disk, diagnostic only.
func (c *Client) dumpRaw(format string, body []byte) {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return
	}
	name := filepath.Join(c.dataDir, "food_additives_details_raw."+format)
	if err := os.WriteFile(name, body, 0644); err != nil {
		logger.Debug("Raw dump write failed", zap.String("file", name), zap.Error(err))
	}
}
