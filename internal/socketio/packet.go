// Package socketio is a minimal Socket.IO v5 client (Engine.IO v4 over
// websocket), enough to drive the backend's detection channel.
package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Engine.IO packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// Socket.IO packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

// Event is one server-emitted event.
type Event struct {
	Name string
	Args []json.RawMessage
}

// Arg decodes the i-th event argument into v.
func (e Event) Arg(i int, v any) error {
	if i < 0 || i >= len(e.Args) {
		return fmt.Errorf("event %q has no argument %d", e.Name, i)
	}
	return json.Unmarshal(e.Args[i], v)
}

type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
	MaxPayload   int    `json:"maxPayload"`
}

// encodeEvent builds `42["name",arg...]`.
func encodeEvent(name string, args ...any) (string, error) {
	parts := make([]any, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)
	b, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("encode event %q: %w", name, err)
	}
	return string([]byte{eioMessage, sioEvent}) + string(b), nil
}

// decodeEvent parses the JSON array following `42`. An optional
// namespace prefix ("/ns,") and ack id are skipped.
func decodeEvent(body string) (Event, error) {
	if len(body) > 0 && body[0] == '/' {
		for i := 0; i < len(body); i++ {
			if body[i] == ',' {
				body = body[i+1:]
				break
			}
		}
	}
	for len(body) > 0 && body[0] >= '0' && body[0] <= '9' {
		body = body[1:]
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if len(raw) == 0 {
		return Event{}, errors.New("decode event: empty array")
	}
	var name string
	if err := json.Unmarshal(raw[0], &name); err != nil {
		return Event{}, fmt.Errorf("decode event name: %w", err)
	}
	return Event{Name: name, Args: raw[1:]}, nil
}
