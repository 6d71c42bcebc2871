// Package protocol is the wire codec between the match server and its
// clients. Every message is a JSON envelope: a type tag plus the payload for
// exactly one game event variant.
package protocol

import (
	"encoding/json"
	"fmt"

	"maze-wars/internal/game"
)

// MaxMessageSize is the largest envelope the server will accept. Anything
// bigger is a protocol violation and is dropped before decoding.
const MaxMessageSize = 16 << 10

// Envelope wraps one event on the wire.
type Envelope struct {
	Type    game.EventType  `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes an event into its wire envelope.
func Encode(event game.Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("encode: nil event")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.Type(), err)
	}

	return json.Marshal(Envelope{Type: event.Type(), Payload: payload})
}

// Decode parses a wire envelope back into a typed event. Unknown type tags
// and malformed payloads are errors; the caller drops the message.
func Decode(data []byte) (game.Event, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode: empty message")
	}
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("decode: message of %d bytes exceeds limit", len(data))
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case game.EventBeginGame:
		return decodePayload[game.BeginGame](env)
	case game.EventEndGame:
		return decodePayload[game.EndGame](env)
	case game.EventAccessForbidden:
		return decodePayload[game.AccessForbidden](env)
	case game.EventPlayerJoined:
		return decodePayload[game.PlayerJoined](env)
	case game.EventPlayerDisconnected:
		return decodePayload[game.PlayerDisconnected](env)
	case game.EventPlayerMove:
		return decodePayload[game.PlayerMove](env)
	case game.EventSpawn:
		return decodePayload[game.Spawn](env)
	case game.EventTimer:
		return decodePayload[game.Timer](env)
	case game.EventImpact:
		return decodePayload[game.Impact](env)
	case game.EventDeath:
		return decodePayload[game.Death](env)
	default:
		return nil, fmt.Errorf("decode: unknown event type %q", env.Type)
	}
}

func decodePayload[T game.Event](env Envelope) (game.Event, error) {
	var out T
	if len(env.Payload) == 0 {
		// Payload-free variants (EndGame, AccessForbidden) arrive bare.
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return out, nil
}
