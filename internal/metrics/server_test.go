package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthAllOK(t *testing.T) {
	s := NewServer(":0")
	s.AddCheck("redis", func(context.Context) error { return nil })
	s.AddCheck("postgres", func(context.Context) error { return nil })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "ok", body.Dependencies["redis"])
	assert.Equal(t, "ok", body.Dependencies["postgres"])
}

func TestServer_HealthFailingDependency(t *testing.T) {
	s := NewServer(":0")
	s.AddCheck("redis", func(context.Context) error { return nil })
	s.AddCheck("postgres", func(context.Context) error { return fmt.Errorf("connection refused") })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Dependencies["redis"])
	assert.Contains(t, body.Dependencies["postgres"], "connection refused")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	TokensIngested.Add(1)

	s := NewServer(":0")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tokensage_tokens_ingested_total")
}

func TestServer_MountExtraHandler(t *testing.T) {
	s := NewServer(":0")
	s.Mount("/ws", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
