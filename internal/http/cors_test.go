package http

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		enabled bool
		origins string
		wantNil bool
	}{
		{name: "Disabled", enabled: false, origins: "https://portal.clinic.example", wantNil: true},
		{name: "NoOrigins", enabled: true, origins: "", wantNil: true},
		{name: "OnlyWildcard", enabled: true, origins: "*", wantNil: true},
		{name: "OnlyBareHost", enabled: true, origins: "portal.clinic.example", wantNil: true},
		{name: "Explicit", enabled: true, origins: "https://portal.clinic.example, http://localhost:3000"},
		{name: "MixedKeepsValid", enabled: true, origins: "*,https://portal.clinic.example"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := createCORSMiddleware(tt.enabled, tt.origins, logger)
			if tt.wantNil {
				assert.Nil(t, middleware)
			} else {
				assert.NotNil(t, middleware)
			}
		})
	}
}

func TestParseOrigins(t *testing.T) {
	origins, rejected := parseOrigins(
		" https://portal.clinic.example/ ,,*, https://*.clinic.example,ftp://files.example,http://localhost:3000",
	)

	assert.Equal(t, []string{"https://portal.clinic.example", "http://localhost:3000"}, origins)
	assert.Equal(t, []string{"*", "https://*.clinic.example", "ftp://files.example"}, rejected)

	origins, rejected = parseOrigins("")
	assert.Nil(t, origins)
	assert.Nil(t, rejected)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	middleware := createCORSMiddleware(true, "https://portal.clinic.example", logger)
	require.NotNil(t, middleware)

	router := gin.New()
	router.Use(middleware)
	router.POST("/v1/resolve", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("AllowedOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/v1/resolve", nil)
		req.Header.Set("Origin", "https://portal.clinic.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "X-Step-Up-Code")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://portal.clinic.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-Step-Up-Code")
	})

	t.Run("UnknownOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/resolve", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
