package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

func TestHTTPBackend_Generate(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"artifactUrl":"https://cdn.test/v.mp4","thumbnailUrl":"https://cdn.test/t.jpg"}`))
	}))
	defer srv.Close()

	b := NewHTTPBackend(srv.URL, "sk-test", 5*time.Second)
	b.now = func() time.Time { return fixedTime }

	out, err := b.Generate(context.Background(), testDirective(), ProfileCustom)

	require.NoError(t, err)
	assert.Equal(t, ProfileCustom, got.Profile)
	assert.Equal(t, testDirective(), got.Directive)
	assert.Equal(t, "https://cdn.test/v.mp4", out.ArtifactURL)
	assert.Equal(t, 5, out.DurationSeconds)
	assert.Equal(t, "landscape", out.Style)
	assert.Equal(t, "1920x1080", out.Resolution)
	assert.Equal(t, fixedTime, out.GeneratedAt)
}

func TestHTTPBackend_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"artifactUrl":`))
		}},
		{"missing url", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"thumbnailUrl":"x"}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPBackend(srv.URL, "", time.Second).Generate(context.Background(), testDirective(), ProfileCustom)

			assert.ErrorIs(t, err, ports.ErrGenerationFailed)
		})
	}
}

func TestHTTPBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPBackend(url, "", time.Second).Generate(context.Background(), testDirective(), ProfileCustom)

	assert.ErrorIs(t, err, ports.ErrGenerationFailed)
}
