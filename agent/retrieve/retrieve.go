// Package retrieve provides knowledge-lookup drivers. The conversation core
// only depends on the call contract (query text in, snippet out); whatever
// index or vector store sits behind the knowledge service is not its concern.
package retrieve

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	contractx "github.com/baazlab/voicereach/agent/contract"
)

const maxResponseSizeBytes = 1 << 20

// placeholderSnippet is served when no knowledge backend is configured.
const placeholderSnippet = "Based on Dubai market trends, properties have shown steady ROI growth."

// StaticRetriever returns a fixed snippet. Degraded-mode driver.
type StaticRetriever struct{}

func NewStatic() *StaticRetriever {
	return &StaticRetriever{}
}

func (r *StaticRetriever) Lookup(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return placeholderSnippet, nil
}

// HTTPConfig configures the knowledge-service client.
type HTTPConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	TopK    int           `envconfig:"TOP_K" split_words:"true" default:"1"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
}

// HTTPOption customizes an HTTPRetriever.
type HTTPOption func(*HTTPRetriever)

func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTPRetriever) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// HTTPRetriever queries a knowledge service over REST.
type HTTPRetriever struct {
	baseURL    string
	token      string
	topK       int
	httpClient *http.Client
}

type lookupRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type lookupResponse struct {
	Snippets []string `json:"snippets"`
	Error    string   `json:"error"`
}

func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (*HTTPRetriever, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("knowledge service url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid knowledge service url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 1
	}

	r := &HTTPRetriever{
		baseURL:    baseURL,
		token:      strings.TrimSpace(cfg.Token),
		topK:       topK,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Lookup returns the top snippet for query, or an empty string when the
// service has nothing relevant.
func (r *HTTPRetriever) Lookup(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(lookupRequest{Query: query, K: r.topK})
	if err != nil {
		return "", fmt.Errorf("%w: marshal lookup request: %v", contractx.ErrRetrieve, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build lookup request: %v", contractx.ErrRetrieve, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrRetrieve, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read lookup response: %v", contractx.ErrRetrieve, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: knowledge service status=%d body=%s", contractx.ErrRetrieve, resp.StatusCode, string(raw))
	}

	var parsed lookupResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode lookup response: %v", contractx.ErrRetrieve, err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("%w: %s", contractx.ErrRetrieve, parsed.Error)
	}
	if len(parsed.Snippets) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Snippets[0]), nil
}
