package upstream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Kind tags the shape of an upstream result stream. It is decided once,
// when the upstream call returns, so downstream code dispatches on the tag
// instead of probing capabilities at runtime.
type Kind int

const (
	// KindUnrecognized is the zero value: the defensive fallback for a
	// payload the relay does not know how to consume.
	KindUnrecognized Kind = iota
	// KindEvents carries discrete protocol events.
	KindEvents
	// KindReader carries a raw byte stream.
	KindReader
)

func (k Kind) String() string {
	switch k {
	case KindEvents:
		return "events"
	case KindReader:
		return "reader"
	default:
		return "unrecognized"
	}
}

// Event is one upstream protocol event. When the event name is empty it
// marshals to the bare data payload, otherwise to {"event":...,"data":...}.
type Event struct {
	Event string
	Data  json.RawMessage
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Event == "" {
		return e.Data, nil
	}
	return json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{Event: e.Event, Data: e.Data})
}

// EventSource pulls events one at a time. Next returns io.EOF on clean
// exhaustion.
type EventSource interface {
	Next() (Event, error)
}

// Stream is the tagged union over the possible upstream result shapes.
// Exactly one of Events/Reader is set, matching Kind.
type Stream struct {
	Kind   Kind
	Events EventSource
	Reader io.Reader

	body io.Closer
}

func (s *Stream) Close() error {
	if s.body != nil {
		return s.body.Close()
	}
	return nil
}

// eventReader decodes a text/event-stream body into Events. The upstream's
// own "data: [DONE]" sentinel is consumed and surfaced as io.EOF, never
// forwarded: the relay writes its own terminator.
type eventReader struct {
	scanner *bufio.Scanner
	event   string
}

func newEventReader(r io.Reader) *eventReader {
	scanner := bufio.NewScanner(r)
	// Increase scanner buffer for large chunks
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &eventReader{scanner: scanner}
}

func (er *eventReader) Next() (Event, error) {
	for er.scanner.Scan() {
		line := er.scanner.Text()

		if strings.HasPrefix(line, "event:") {
			er.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")

		if data == "[DONE]" {
			return Event{}, io.EOF
		}

		ev := Event{Event: er.event, Data: json.RawMessage(data)}
		er.event = ""
		return ev, nil
	}

	if err := er.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("read upstream stream: %w", err)
	}
	return Event{}, io.EOF
}
