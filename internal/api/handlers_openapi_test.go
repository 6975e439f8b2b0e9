package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"throttle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestServeOpenAPISpec(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandlers(&MockItemService{}).ServeOpenAPISpec(rec, httptest.NewRequest(http.MethodGet, "/api/v1/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	require.NotEmpty(t, body)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(body), "openapi:"))
	assert.Contains(t, body, "3.0.3")
}

// The embedded document must parse and describe every routed path.
func TestOpenAPISpec_Document(t *testing.T) {
	var doc struct {
		OpenAPI string                            `yaml:"openapi"`
		Paths   map[string]map[string]interface{} `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(openAPISpec, &doc))

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	for path, methods := range map[string][]string{
		"/health":            {"get"},
		"/api/v1/health":     {"get"},
		"/api/v1/items":      {"get", "post"},
		"/api/v1/items/{id}": {"get", "put", "delete"},
	} {
		require.Contains(t, doc.Paths, path)
		for _, m := range methods {
			assert.Contains(t, doc.Paths[path], m, "%s %s", m, path)
		}
	}
	assert.Contains(t, string(openAPISpec), "retryAfter")
}

func TestServeSwaggerUI(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandlers(&MockItemService{}).ServeSwaggerUI(rec, httptest.NewRequest(http.MethodGet, "/api/v1/docs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "swagger-ui")
	assert.Contains(t, body, "/api/v1/openapi.yaml")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"), "no policy is added when none was set")
}

func TestServeSwaggerUI_RelaxesCSP(t *testing.T) {
	cfg := models.HeadersConfig{Enabled: true, Preset: models.HeaderPresetStrict}
	handler := securityHeadersMiddleware(cfg)(http.HandlerFunc(NewHandlers(&MockItemService{}).ServeSwaggerUI))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/docs", nil))

	assert.Equal(t, swaggerUICSP, rec.Header().Get("Content-Security-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://unpkg.com")
}
