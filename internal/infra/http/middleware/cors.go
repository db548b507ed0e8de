package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/sonartrack/api/internal/config"
)

// CORS builds the cross-origin middleware from configuration.
func CORS(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = int((10 * time.Minute).Seconds())
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: !wildcardOrigin(cfg.AllowedOrigins),
		MaxAge:           maxAge,
	})
}

func wildcardOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
