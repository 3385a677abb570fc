package relay

import (
	"net/http"

	"github.com/farspoke/chat-relay/internal/config"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, X-Relay-Secret, X-Relay-Debug, X-Upstream-Path, X-Request-ID"
)

// CORS sets the cross-origin headers on every response and short-circuits
// preflight requests. With an empty allow-list any origin is allowed; a
// listed origin is echoed back; an unlisted one gets the list's first entry.
func CORS(cfg func() *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := cfg().CORS.AllowOrigins
			w.Header().Set("Access-Control-Allow-Origin", resolveOrigin(allowed, r.Header.Get("Origin")))
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			if len(allowed) > 0 {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func resolveOrigin(allowed []string, origin string) string {
	if len(allowed) == 0 {
		return "*"
	}
	for _, a := range allowed {
		if a == origin {
			return origin
		}
	}
	return allowed[0]
}
