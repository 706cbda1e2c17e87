package influx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dtcops/blobsync/internal/config"
	"github.com/rs/zerolog/log"
)

// httpClient talks to the v1-compatibility /query endpoint: a GET with db and
// q parameters and Token authorization.
type httpClient struct {
	baseURL  string
	database string
	token    string
	client   *http.Client
}

func newHTTPClient(cfg config.InfluxConfig) *httpClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SkipTLSVerify {
		log.Warn().Msg("influx: TLS certificate validation disabled")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &httpClient{
		baseURL:  fmt.Sprintf("%s://%s:%d", cfg.Protocol, cfg.Host, cfg.Port),
		database: cfg.Database,
		token:    cfg.Token,
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}

func (c *httpClient) QueryCount(ctx context.Context, query string) (int64, error) {
	endpoint := c.baseURL + "/query?" + url.Values{
		"db": {c.database},
		"q":  {query},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("influx: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	log.Debug().Str("query", query).Msg("executing influx query")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("influx: query request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("influx: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("influx: query failed with status %d: %s", resp.StatusCode, string(body))
	}

	return extractCount(body)
}

func (c *httpClient) Close() error { return nil }

// extractCount pulls the scalar count out of whichever response shape the
// backend produced. Tried in order: the InfluxQL results/series/values
// nesting, then a bare array of row objects with a named count field, then an
// array row with exactly one numeric field. Anything else is an explicit
// error, never a silent zero.
func extractCount(body []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var root any
	if err := dec.Decode(&root); err != nil {
		return 0, fmt.Errorf("influx: unparseable response: %w", err)
	}

	switch v := root.(type) {
	case map[string]any:
		return countFromResults(v)
	case []any:
		return countFromRows(v)
	default:
		return 0, fmt.Errorf("influx: unexpected response shape %T", root)
	}
}

// countFromResults handles {"results":[{"series":[{"columns":[...],
// "values":[[ts, count]]}]}]}; the count is the last column of the first row.
func countFromResults(obj map[string]any) (int64, error) {
	results, ok := obj["results"].([]any)
	if !ok || len(results) == 0 {
		return 0, fmt.Errorf("influx: response has no results")
	}
	first, ok := results[0].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("influx: malformed results entry")
	}
	if errMsg, ok := first["error"].(string); ok {
		return 0, fmt.Errorf("influx: query error: %s", errMsg)
	}

	series, ok := first["series"].([]any)
	if !ok || len(series) == 0 {
		return 0, fmt.Errorf("influx: response has no series")
	}
	s, ok := series[0].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("influx: malformed series entry")
	}
	values, ok := s["values"].([]any)
	if !ok || len(values) == 0 {
		return 0, fmt.Errorf("influx: series has no values")
	}
	row, ok := values[0].([]any)
	if !ok || len(row) == 0 {
		return 0, fmt.Errorf("influx: series has an empty row")
	}

	count, ok := asInt64(row[len(row)-1])
	if !ok {
		return 0, fmt.Errorf("influx: last column of first row is not numeric")
	}
	return count, nil
}

// countFromRows handles the bare array-of-objects shape. An empty array is a
// legitimate zero-row count result.
func countFromRows(rows []any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	row, ok := rows[0].(map[string]any)
	if !ok {
		return 0, fmt.Errorf("influx: malformed row entry")
	}

	for _, field := range []string{"count(*)", "count"} {
		if raw, ok := row[field]; ok {
			if count, ok := asInt64(raw); ok {
				return count, nil
			}
			return 0, fmt.Errorf("influx: field %q is not numeric", field)
		}
	}

	// Fall back to a single numeric field; more than one is ambiguous.
	var (
		count   int64
		numeric int
	)
	for _, raw := range row {
		if v, ok := asInt64(raw); ok {
			count = v
			numeric++
		}
	}
	if numeric == 1 {
		return count, nil
	}
	return 0, fmt.Errorf("influx: cannot extract count: %d numeric fields in row", numeric)
}

func asInt64(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	if i, err := n.Int64(); err == nil {
		return i, true
	}
	if f, err := n.Float64(); err == nil {
		return int64(f), true
	}
	return 0, false
}
