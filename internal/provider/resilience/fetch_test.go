package resilience_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntaxsurfers/smartcity/internal/provider/resilience"
)

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("fetch-ok")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	body, err := client.Fetch(context.Background(), server.URL, http.Header{"X-Test": []string{"yes"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	health, ok := registry.Health("fetch-ok")
	require.True(t, ok)
	assert.False(t, health.LastSuccessAt.IsZero())
	assert.True(t, health.LastFailureAt.IsZero())
}

func TestClient_FetchNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("fetch-403")
	cfg.Registry = registry
	client := resilience.NewClient(cfg)

	_, err := client.Fetch(context.Background(), server.URL+"/data?key=secret", nil)
	require.Error(t, err)

	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.NotContains(t, err.Error(), "secret")

	health, ok := registry.Health("fetch-403")
	require.True(t, ok)
	assert.False(t, health.LastFailureAt.IsZero())
	assert.Contains(t, health.LastError, "403")
}

func TestClient_GetReturnsAnyStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detailedError":{"code":"NOT_FOUND"}}`))
	}))
	defer server.Close()

	client := resilience.NewClient(resilience.DefaultClientConfig("get-404"))

	resp, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "NOT_FOUND")
}

func TestClient_FetchTransportErrorHidesKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := resilience.NewClient(resilience.DefaultClientConfig("closed"))

	_, err := client.Fetch(context.Background(), url+"/x?key=secret", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret")
}
