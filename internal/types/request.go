package types

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ChatRequest is the inbound body for the chat handler. Message elements
// are forwarded opaquely; the relay only cares that additional_messages is
// an array.
type ChatRequest struct {
	BotID              string          `json:"bot_id"`
	ConversationID     string          `json:"conversation_id,omitempty"`
	UserID             string          `json:"user_id"`
	AdditionalMessages json.RawMessage `json:"additional_messages,omitempty"`
	Stream             *bool           `json:"stream,omitempty"`
	Query              string          `json:"query,omitempty"`
	Meta               json.RawMessage `json:"meta,omitempty"`
}

// WantsStream reports the caller's streaming preference; true when the
// field is absent.
func (r *ChatRequest) WantsStream() bool {
	return r.Stream == nil || *r.Stream
}

// Validate checks the required fields. The first failure wins so the caller
// gets one field-level message at a time.
func (r *ChatRequest) Validate() error {
	if r.BotID == "" {
		return errors.New("bot_id is required")
	}
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if !isJSONArray(r.AdditionalMessages) {
		return errors.New("additional_messages must be an array")
	}
	return nil
}

// Messages decodes additional_messages into its elements. Call only after
// Validate.
func (r *ChatRequest) Messages() ([]json.RawMessage, error) {
	var msgs []json.RawMessage
	if err := json.Unmarshal(r.AdditionalMessages, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// proxyAllowedFields is the fixed allow-list forwarded by the proxy
// handler. Anything else in the body is dropped before the upstream call.
var proxyAllowedFields = map[string]struct{}{
	"conversation_id": {},
	"query":           {},
	"meta":            {},
	"stream":          {},
	"user_id":         {},
}

// FilterProxyFields keeps only the allow-listed fields of a decoded proxy
// body. Unknown fields are dropped silently.
func FilterProxyFields(body map[string]json.RawMessage) map[string]json.RawMessage {
	filtered := make(map[string]json.RawMessage, len(proxyAllowedFields))
	for k, v := range body {
		if _, ok := proxyAllowedFields[k]; ok {
			filtered[k] = v
		}
	}
	return filtered
}
