package middleware

import (
	"net/http"
	"strings"
	"time"

	chicors "github.com/go-chi/cors"
)

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	// Origins are exact origins such as "https://natours.io". A "*" entry
	// allows any origin.
	Origins []string
	MaxAge  time.Duration
}

// CORS wraps go-chi/cors. The session cookie travels with cross-origin
// requests, so credentials are allowed and the request origin is echoed
// back instead of "*".
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowAny := false
	allowed := make(map[string]struct{}, len(cfg.Origins))
	for _, o := range cfg.Origins {
		if o == "*" {
			allowAny = true
			continue
		}
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}

	return chicors.Handler(chicors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			if allowAny {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", CorrelationHeader},
		ExposedHeaders:   []string{CorrelationHeader},
		AllowCredentials: true,
		MaxAge:           int(cfg.MaxAge.Seconds()),
	})
}
