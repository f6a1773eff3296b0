package domain

import (
	"encoding/json"
	"fmt"
)

type EnvelopeType string

const (
	EnvelopeCallRequest EnvelopeType = "CALL_REQUEST"
	EnvelopeCallAccept  EnvelopeType = "CALL_ACCEPT"
)

// Envelope is the payload exchanged over the negotiation channel.
// Field names and values are a wire contract shared with browser clients.
type Envelope struct {
	Type EnvelopeType `json:"type"`
	Room SessionID    `json:"room"`
}

func NewCallRequest(room SessionID) Envelope {
	return Envelope{Type: EnvelopeCallRequest, Room: room}
}

func NewCallAccept(room SessionID) Envelope {
	return Envelope{Type: EnvelopeCallAccept, Room: room}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes an inbound negotiation payload. Unknown types,
// malformed JSON and a missing room are all reported as errors so callers can drop them.
func ParseEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch e.Type {
	case EnvelopeCallRequest, EnvelopeCallAccept:
	default:
		return Envelope{}, fmt.Errorf("unknown envelope type %q", e.Type)
	}
	if !e.Room.Valid() {
		return Envelope{}, fmt.Errorf("envelope %s without room", e.Type)
	}
	return e, nil
}
