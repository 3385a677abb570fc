package relay

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/farspoke/chat-relay/internal/httputil"
	"github.com/farspoke/chat-relay/internal/upstream"
)

// unknownStreamNotice is the single diagnostic event written when the
// upstream result has a shape the relay cannot consume. It terminates the
// response normally; an odd upstream payload must never crash the relay.
const unknownStreamNotice = `{"notice":"unsupported upstream stream"}`

func writeSSEHeaders(w http.ResponseWriter, reqID string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", reqID)
}

// streamRelay writes the upstream stream to the client as SSE, one event
// per chunk, terminated by a [DONE] sentinel. It returns the number of
// events written and whether the relay started successfully. A mid-stream
// read error ends the response without the sentinel: headers are already
// committed, so the truncation is the signal.
func (h *Handler) streamRelay(w http.ResponseWriter, reqID string, st *upstream.Stream) (int, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "streaming not supported")
		return 0, false
	}

	writeSSEHeaders(w, reqID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := 0
	switch st.Kind {
	case upstream.KindEvents:
		for {
			ev, err := st.Events.Next()
			if err == io.EOF {
				writeDone(w, flusher)
				return events, true
			}
			if err != nil {
				slog.Error("error reading upstream events", "request_id", reqID, "error", err)
				return events, true
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("failed to marshal upstream event", "request_id", reqID, "error", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			events++
		}

	case upstream.KindReader:
		buf := make([]byte, 32*1024)
		for {
			n, err := st.Reader.Read(buf)
			if n > 0 {
				fmt.Fprintf(w, "data: %s\n\n", buf[:n])
				flusher.Flush()
				events++
			}
			if err == io.EOF {
				writeDone(w, flusher)
				return events, true
			}
			if err != nil {
				slog.Error("error reading upstream body", "request_id", reqID, "error", err)
				return events, true
			}
		}

	default:
		slog.Warn("unrecognized upstream stream shape", "request_id", reqID, "kind", int(st.Kind))
		fmt.Fprintf(w, "data: %s\n\n", unknownStreamNotice)
		flusher.Flush()
		writeDone(w, flusher)
		return 1, true
	}
}

func writeDone(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

type collectResponse struct {
	OK     bool              `json:"ok"`
	Chunks []json.RawMessage `json:"chunks"`
	Notice string            `json:"notice,omitempty"`
}

// bufferedCollect drains the upstream stream into one JSON document.
// Headers are not committed until the whole stream is read, so a read
// failure can still surface as a real error status. Returns the status
// written.
func (h *Handler) bufferedCollect(w http.ResponseWriter, reqID string, st *upstream.Stream, debug bool) int {
	resp := collectResponse{OK: true, Chunks: []json.RawMessage{}}

	switch st.Kind {
	case upstream.KindEvents:
		for {
			ev, err := st.Events.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				slog.Error("error collecting upstream events", "request_id", reqID, "error", err)
				if h.metrics != nil {
					h.metrics.RecordUpstreamError("chat", "stream")
				}
				detail := ""
				if debug {
					detail = err.Error()
				}
				httputil.WriteUpstreamError(w, reqID, "upstream request failed: error reading stream", detail)
				return http.StatusBadGateway
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Error("failed to marshal upstream event", "request_id", reqID, "error", err)
				continue
			}
			resp.Chunks = append(resp.Chunks, data)
		}

	case upstream.KindReader:
		data, err := io.ReadAll(st.Reader)
		if err != nil {
			slog.Error("error collecting upstream body", "request_id", reqID, "error", err)
			if h.metrics != nil {
				h.metrics.RecordUpstreamError("chat", "stream")
			}
			detail := ""
			if debug {
				detail = err.Error()
			}
			httputil.WriteUpstreamError(w, reqID, "upstream request failed: error reading stream", detail)
			return http.StatusBadGateway
		}
		text, err := json.Marshal(string(data))
		if err != nil {
			httputil.WriteUpstreamError(w, reqID, "upstream request failed: error reading stream", "")
			return http.StatusBadGateway
		}
		resp.Chunks = append(resp.Chunks, text)

	default:
		slog.Warn("unrecognized upstream stream shape", "request_id", reqID, "kind", int(st.Kind))
		resp.Notice = "unsupported upstream stream"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
	return http.StatusOK
}

// passthrough copies an upstream SSE body to the client verbatim,
// preserving the upstream's own event boundaries. No [DONE] is appended.
func (h *Handler) passthrough(w http.ResponseWriter, reqID string, body io.Reader) bool {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "streaming not supported")
		return false
	}

	writeSSEHeaders(w, reqID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
			flusher.Flush()
		}
		if err == io.EOF {
			return true
		}
		if err != nil {
			slog.Error("error passing through upstream stream", "request_id", reqID, "error", err)
			return true
		}
	}
}
