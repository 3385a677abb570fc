package auth

import (
	"log/slog"
	"net/http"

	"github.com/farspoke/chat-relay/internal/config"
	"github.com/farspoke/chat-relay/internal/httputil"
	"github.com/farspoke/chat-relay/internal/telemetry"
)

// Middleware returns a chi middleware that authenticates requests via the
// shared-secret header. When no secret is configured the relay runs in open
// mode and every request passes.
func Middleware(cfg func() *config.Config, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := cfg().Auth.SharedSecret
			if secret == "" {
				// Open mode: authentication disabled by configuration.
				next.ServeHTTP(w, r)
				return
			}

			reqID := w.Header().Get("X-Request-ID")
			presented := r.Header.Get(SecretHeader)
			if presented == "" {
				slog.Warn("auth failed: missing secret header", "request_id", reqID, "path", r.URL.Path)
				if metrics != nil {
					metrics.RecordAuthReject("missing")
				}
				httputil.WriteUnauthorized(w, reqID)
				return
			}

			if !VerifySecret(secret, presented) {
				slog.Warn("auth failed: secret mismatch", "request_id", reqID, "path", r.URL.Path)
				if metrics != nil {
					metrics.RecordAuthReject("mismatch")
				}
				httputil.WriteUnauthorized(w, reqID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
