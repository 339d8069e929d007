package live

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Frame kinds pushed by the backend.
const (
	KindEmailStats   = "EMAIL_DASHBOARD_STATS"
	KindNetworkStats = "NETWORK_DASHBOARD_STATS"
)

// Message is one inbound stream frame.
type Message struct {
	Kind    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeMessage parses a raw frame. Frames without a type are rejected; a
// missing payload is left nil and decodes to defaults downstream.
func DecodeMessage(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, &ProtocolError{Err: fmt.Errorf("decode frame: %w", err)}
	}
	if msg.Kind == "" {
		return Message{}, &ProtocolError{Err: errors.New("frame has no type")}
	}
	return msg, nil
}
