package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scrape returns the exposition text served by provider.
func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewProvider(t *testing.T) {
	provider, err := NewProvider("gatekeeper")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	assert.NotNil(t, provider.MeterProvider())
	assert.Contains(t, scrape(t, provider), "go_goroutines")
}

func TestNewProvider_IndependentRegistries(t *testing.T) {
	first, err := NewProvider("gatekeeper")
	require.NoError(t, err)
	second, err := NewProvider("gatekeeper")
	require.NoError(t, err)

	assert.NotSame(t, first.registry, second.registry)
}

func TestProvider_Shutdown(t *testing.T) {
	t.Run("Running", func(t *testing.T) {
		provider, err := NewProvider("gatekeeper")
		require.NoError(t, err)
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	t.Run("NilMeterProvider", func(t *testing.T) {
		provider := &Provider{}
		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
