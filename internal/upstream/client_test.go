package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farspoke/chat-relay/internal/config"
)

func clientFor(server *httptest.Server) *Client {
	cfg := config.UpstreamConfig{
		BaseURL:  server.URL,
		APIKey:   "sk-test",
		ChatPath: "/v3/chat",
	}
	return NewClient(func() config.UpstreamConfig { return cfg }, server.Client())
}

func TestStreamChatEvents(t *testing.T) {
	var gotBody map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"content\":\"A\"}\n\n")
		fmt.Fprintf(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	c := clientFor(server)
	st, err := c.StreamChat(context.Background(), ChatRequest{
		BotID:              "b1",
		UserID:             "u1",
		AdditionalMessages: []json.RawMessage{},
		Stream:             false, // must be forced to true on the wire
	})
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer st.Close()

	if st.Kind != KindEvents {
		t.Fatalf("expected KindEvents, got %v", st.Kind)
	}

	ev, err := st.Events.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if string(ev.Data) != `{"content":"A"}` {
		t.Errorf("unexpected event payload: %s", ev.Data)
	}
	if _, err := st.Events.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after sentinel, got %v", err)
	}

	if string(gotBody["stream"]) != "true" {
		t.Errorf("upstream call must always request streaming, got %s", gotBody["stream"])
	}
}

func TestStreamChatReaderFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"answer":"buffered"}`)
	}))
	defer server.Close()

	st, err := clientFor(server).StreamChat(context.Background(), ChatRequest{BotID: "b1", UserID: "u1"})
	if err != nil {
		t.Fatalf("StreamChat failed: %v", err)
	}
	defer st.Close()

	if st.Kind != KindReader {
		t.Fatalf("expected KindReader for non-SSE content type, got %v", st.Kind)
	}
	data, err := io.ReadAll(st.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"answer":"buffered"}` {
		t.Errorf("unexpected body: %s", data)
	}
}

func TestStreamChatUpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"msg field", `{"code":4000,"msg":"bot not found"}`, "bot not found"},
		{"message field", `{"message":"invalid token"}`, "invalid token"},
		{"error string", `{"error":"rate limited"}`, "rate limited"},
		{"nested error message", `{"error":{"message":"quota exceeded"}}`, "quota exceeded"},
		{"opaque body", `service unavailable`, "service unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := clientFor(server).StreamChat(context.Background(), ChatRequest{BotID: "b1", UserID: "u1"})
			if err == nil {
				t.Fatal("expected an error for non-2xx status")
			}
			var upErr *Error
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *upstream.Error, got %T", err)
			}
			if upErr.StatusCode != http.StatusInternalServerError {
				t.Errorf("expected status 500, got %d", upErr.StatusCode)
			}
			if upErr.Message != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, upErr.Message)
			}
		})
	}
}

func TestForward(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/other" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"query":"hi"}` {
			t.Errorf("unexpected forwarded body: %s", body)
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	resp, err := clientFor(server).Forward(context.Background(), "/v3/other", []byte(`{"query":"hi"}`))
	if err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
