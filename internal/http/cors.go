package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	gatewayHTTP "github.com/allisson/gatekeeper/internal/gateway/http"
)

// createCORSMiddleware returns nil when CORS is off or no usable origin is
// configured. Wildcards are refused: decrypted values and artifacts must only
// be readable by origins named explicitly.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins, rejected := parseOrigins(allowOrigins)
	for _, origin := range rejected {
		logger.Warn("ignoring CORS origin", slog.String("origin", origin))
	}
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no usable origins configured")
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", gatewayHTTP.StepUpHeader},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	})
}

// parseOrigins splits a comma separated origin list. Entries that are not an
// explicit http(s) origin come back in rejected.
func parseOrigins(raw string) (origins, rejected []string) {
	for _, part := range strings.Split(raw, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		switch {
		case origin == "":
		case strings.Contains(origin, "*"),
			!strings.HasPrefix(origin, "https://") && !strings.HasPrefix(origin, "http://"):
			rejected = append(rejected, origin)
		default:
			origins = append(origins, origin)
		}
	}
	return origins, rejected
}
