package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

const maxResponseBytes = 1 << 20

// HTTPBackend forwards directives to a user-operated generation API.
//
// Request:  POST {endpoint} {"profile": "...", "directive": {...}}
// Response: 2xx with an ArtifactResult JSON body.
type HTTPBackend struct {
	endpoint string
	apiKey   string
	client   *http.Client
	now      func() time.Time
}

// NewHTTPBackend creates a backend. A zero timeout leaves the client unbounded.
func NewHTTPBackend(endpoint, apiKey string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
	}
}

type generateRequest struct {
	Profile   string          `json:"profile"`
	Directive ports.Directive `json:"directive"`
}

// Generate implements Backend.
func (b *HTTPBackend) Generate(ctx context.Context, d ports.Directive, profile string) (ports.ArtifactResult, error) {
	body, err := json.Marshal(generateRequest{Profile: profile, Directive: d})
	if err != nil {
		return ports.ArtifactResult{}, fmt.Errorf("%w: encode request: %w", ports.ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.ArtifactResult{}, fmt.Errorf("%w: build request: %w", ports.ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return ports.ArtifactResult{}, fmt.Errorf("%w: %w", ports.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return ports.ArtifactResult{}, fmt.Errorf("%w: backend returned status %d", ports.ErrGenerationFailed, resp.StatusCode)
	}

	var out ports.ArtifactResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return ports.ArtifactResult{}, fmt.Errorf("%w: decode response: %w", ports.ErrGenerationFailed, err)
	}
	if out.ArtifactURL == "" {
		return ports.ArtifactResult{}, fmt.Errorf("%w: response has no artifactUrl", ports.ErrGenerationFailed)
	}

	// Metadata the backend leaves out comes from the directive.
	if out.DurationSeconds == 0 {
		out.DurationSeconds = d.DurationSeconds
	}
	if out.Resolution == "" {
		out.Resolution = d.Resolution
	}
	if out.Style == "" {
		out.Style = d.Style
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = b.now()
	}
	return out, nil
}

var _ Backend = (*HTTPBackend)(nil)
