package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/farspoke/chat-relay/internal/config"
	"github.com/farspoke/chat-relay/internal/httputil"
	"github.com/farspoke/chat-relay/internal/telemetry"
	"github.com/farspoke/chat-relay/internal/types"
	"github.com/farspoke/chat-relay/internal/upstream"
)

// Handler holds dependencies for the relay HTTP handlers.
type Handler struct {
	client  *upstream.Client
	cfg     func() *config.Config
	metrics *telemetry.Metrics
}

func NewHandler(client *upstream.Client, cfg func() *config.Config, metrics *telemetry.Metrics) *Handler {
	return &Handler{
		client:  client,
		cfg:     cfg,
		metrics: metrics,
	}
}

// debugEnabled reports whether the caller asked for diagnostic detail.
func debugEnabled(r *http.Request) bool {
	v := r.Header.Get("X-Relay-Debug")
	return v == "1" || strings.EqualFold(v, "true")
}

// Chat handles POST /api/chat: validate the chat body, call upstream with
// streaming always on, and shape the response by the caller's stream flag.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	start := time.Now()
	debug := debugEnabled(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, reqID, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var chatReq types.ChatRequest
	if err := json.Unmarshal(body, &chatReq); err != nil {
		httputil.WriteBadRequest(w, reqID, "invalid JSON: "+err.Error())
		return
	}
	if err := chatReq.Validate(); err != nil {
		httputil.WriteBadRequest(w, reqID, err.Error())
		return
	}

	cfg := h.cfg()
	if cfg.Upstream.APIKey == "" {
		slog.Error("upstream API key not configured", "request_id", reqID)
		httputil.WriteNotConfigured(w, reqID)
		return
	}

	messages, err := chatReq.Messages()
	if err != nil {
		httputil.WriteBadRequest(w, reqID, "additional_messages must be an array")
		return
	}

	st, err := h.client.StreamChat(r.Context(), upstream.ChatRequest{
		BotID:              chatReq.BotID,
		ConversationID:     chatReq.ConversationID,
		UserID:             chatReq.UserID,
		AdditionalMessages: messages,
		Query:              chatReq.Query,
		Meta:               chatReq.Meta,
	})
	if err != nil {
		slog.Error("upstream chat request failed", "request_id", reqID, "error", err)
		h.recordUpstreamError("chat", err)
		detail := ""
		if debug {
			detail = fmt.Sprintf("%T: %v", err, err)
		}
		httputil.WriteUpstreamError(w, reqID, "upstream request failed: "+err.Error(), detail)
		h.recordRequest("chat", http.StatusBadGateway, "none", start)
		return
	}
	defer st.Close()

	if chatReq.WantsStream() {
		events, ok := h.streamRelay(w, reqID, st)
		if h.metrics != nil {
			h.metrics.RecordStreamEvents("chat", st.Kind.String(), events)
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusInternalServerError
		}
		h.recordRequest("chat", status, "stream", start)
		slog.Info("chat stream completed",
			"request_id", reqID,
			"bot_id", chatReq.BotID,
			"kind", st.Kind.String(),
			"events", events,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	status := h.bufferedCollect(w, reqID, st, debug)
	h.recordRequest("chat", status, "buffered", start)
	slog.Info("chat buffered completed",
		"request_id", reqID,
		"bot_id", chatReq.BotID,
		"kind", st.Kind.String(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Proxy handles POST /api/proxy: forward the allow-listed body fields to a
// trusted upstream path and relay the answer, passing SSE through verbatim.
func (h *Handler) Proxy(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	start := time.Now()
	debug := debugEnabled(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequest(w, reqID, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		httputil.WriteBadRequest(w, reqID, "invalid JSON: "+err.Error())
		return
	}
	filtered, err := json.Marshal(types.FilterProxyFields(fields))
	if err != nil {
		httputil.WriteBadRequest(w, reqID, "invalid JSON: "+err.Error())
		return
	}

	cfg := h.cfg()
	if cfg.Upstream.APIKey == "" {
		slog.Error("upstream API key not configured", "request_id", reqID)
		httputil.WriteNotConfigured(w, reqID)
		return
	}

	path := cfg.Upstream.ChatPath
	if override := r.Header.Get("X-Upstream-Path"); override != "" {
		if strings.HasPrefix(override, cfg.Upstream.AllowedPathPrefix) {
			path = override
		} else {
			slog.Warn("ignoring upstream path override outside allowed prefix",
				"request_id", reqID,
				"override", override,
				"allowed_prefix", cfg.Upstream.AllowedPathPrefix,
			)
		}
	}

	resp, err := h.client.Forward(r.Context(), path, filtered)
	if err != nil {
		slog.Error("upstream forward failed", "request_id", reqID, "path", path, "error", err)
		h.recordUpstreamError("proxy", err)
		detail := ""
		if debug {
			detail = fmt.Sprintf("%T: %v", err, err)
		}
		httputil.WriteUpstreamError(w, reqID, "upstream request failed: "+err.Error(), detail)
		h.recordRequest("proxy", http.StatusBadGateway, "none", start)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		slog.Error("upstream returned error status",
			"request_id", reqID,
			"path", path,
			"status", resp.StatusCode,
		)
		if h.metrics != nil {
			h.metrics.RecordUpstreamError("proxy", "status")
		}
		detail := ""
		if debug {
			detail = string(snippet)
		}
		httputil.WriteUpstreamError(w, reqID, "upstream returned status "+strconv.Itoa(resp.StatusCode), detail)
		h.recordRequest("proxy", http.StatusBadGateway, "none", start)
		return
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/event-stream") {
		ok := h.passthrough(w, reqID, resp.Body)
		status := http.StatusOK
		if !ok {
			status = http.StatusInternalServerError
		}
		h.recordRequest("proxy", status, "passthrough", start)
		slog.Info("proxy passthrough completed",
			"request_id", reqID,
			"path", path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	// Non-SSE answer: echo body, content type, and status verbatim.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("failed to read upstream body", "request_id", reqID, "error", err)
		h.recordUpstreamError("proxy", err)
		httputil.WriteUpstreamError(w, reqID, "upstream request failed: "+err.Error(), "")
		h.recordRequest("proxy", http.StatusBadGateway, "none", start)
		return
	}
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)

	h.recordRequest("proxy", resp.StatusCode, "echo", start)
	slog.Info("proxy echo completed",
		"request_id", reqID,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Health handles /api/health with open CORS regardless of the allow-list.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) recordRequest(handler string, status int, mode string, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(handler, strconv.Itoa(status), mode, float64(time.Since(start).Milliseconds()))
}

func (h *Handler) recordUpstreamError(handler string, err error) {
	if h.metrics == nil {
		return
	}
	reason := "network"
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		reason = "status"
	}
	h.metrics.RecordUpstreamError(handler, reason)
}
