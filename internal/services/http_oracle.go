package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/desertthunder/visionary/internal/shared"
)

const maxErrorSnippet = 200

// HTTPOracle implements [Oracle] against a remote inference endpoint.
//
// The request body is the image as supplied with Content-Type image/<format>. The response is
// {"predictions":[{"label":"cat","confidence":0.92}]}, best first.
type HTTPOracle struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type predictResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// NewHTTPOracle creates an HTTPOracle from cfg.
//
// client is the base client, [http.DefaultClient] when nil. With OAuth configured it is wrapped so that
// tokens are fetched through it and attached to every request. A non-positive rate limit disables pacing.
func NewHTTPOracle(cfg shared.HTTPOracle, client *http.Client) (*HTTPOracle, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: classifier endpoint is required", shared.ErrMissingConfig)
	}
	if client == nil {
		client = http.DefaultClient
	}

	if cfg.OAuth.Enabled() {
		cc := &clientcredentials.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	return &HTTPOracle{
		endpoint:   cfg.Endpoint,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// Name implements [Oracle].
func (o *HTTPOracle) Name() string { return shared.BackendHTTP }

// Predict implements [Oracle].
func (o *HTTPOracle) Predict(ctx context.Context, in Input) ([]Prediction, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	contentType := "application/octet-stream"
	if in.Format != "" {
		contentType = "image/" + in.Format
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("inference endpoint returned %d: %s", resp.StatusCode, snippet(body))
	}

	var out predictResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}

	return out.Predictions, nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorSnippet {
		s = s[:maxErrorSnippet] + "..."
	}
	return s
}
