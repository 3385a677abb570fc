package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/farspoke/chat-relay/internal/config"
)

// ChatRequest is the body sent to the upstream chat endpoint. Stream is
// always forced to true before sending; the caller-facing flag only shapes
// the relay's own response.
type ChatRequest struct {
	BotID              string            `json:"bot_id"`
	ConversationID     string            `json:"conversation_id,omitempty"`
	UserID             string            `json:"user_id"`
	AdditionalMessages []json.RawMessage `json:"additional_messages"`
	Stream             bool              `json:"stream"`
	Query              string            `json:"query,omitempty"`
	Meta               json.RawMessage   `json:"meta,omitempty"`
}

// Error is a non-2xx answer from upstream with whatever message could be
// extracted from its body.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the bot-platform chat API. Config is read through a
// closure so a hot reload is visible without rebuilding the client.
type Client struct {
	cfg func() config.UpstreamConfig
	hc  *http.Client
}

func NewClient(cfg func() config.UpstreamConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{cfg: cfg, hc: hc}
}

// StreamChat posts a chat request upstream and classifies the result into
// the stream-kind union. The returned Stream owns the response body; the
// caller must Close it.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (*Stream, error) {
	cfg := c.cfg()
	req.Stream = true

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	url := cfg.ResolveBaseURL() + cfg.ChatPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		resp.Body.Close()
		return nil, &Error{StatusCode: resp.StatusCode, Message: extractMessage(body)}
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/event-stream") {
		return &Stream{Kind: KindEvents, Events: newEventReader(resp.Body), body: resp.Body}, nil
	}
	return &Stream{Kind: KindReader, Reader: resp.Body, body: resp.Body}, nil
}

// Forward posts a raw body to an upstream path and hands back the response
// untouched. The proxy handler owns status mapping and pass-through.
func (c *Client) Forward(ctx context.Context, path string, body []byte) (*http.Response, error) {
	cfg := c.cfg()

	url := cfg.ResolveBaseURL() + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create forward request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("forward request: %w", err)
	}
	return resp, nil
}

// extractMessage pulls a human-readable message out of the common upstream
// error body shapes: {"msg":...}, {"message":...}, {"error":"..."} and
// {"error":{"message":...}}.
func extractMessage(body []byte) string {
	var envelope struct {
		Msg     string          `json:"msg"`
		Message string          `json:"message"`
		Err     json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return truncate(string(body), 200)
	}
	if envelope.Msg != "" {
		return envelope.Msg
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	if len(envelope.Err) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Err, &s); err == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Err, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return truncate(string(body), 200)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
