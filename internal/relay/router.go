package relay

import (
	"net/http"

	"github.com/farspoke/chat-relay/internal/auth"
	"github.com/farspoke/chat-relay/internal/config"
	"github.com/farspoke/chat-relay/internal/httputil"
	"github.com/farspoke/chat-relay/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// NewRouter assembles the relay's HTTP surface. CORS wraps everything so
// preflights and error responses carry the headers; the shared-secret check
// guards only the two forwarding routes.
func NewRouter(h *Handler, cfg func() *config.Config, metrics *telemetry.Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(CORS(cfg))

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMethodNotAllowed(w, w.Header().Get("X-Request-ID"))
	})

	r.Handle("/api/health", http.HandlerFunc(h.Health))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg, metrics))
		r.Post("/api/chat", h.Chat)
		r.Post("/api/proxy", h.Proxy)
	})

	return r
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}
