package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the front-end turn
// stream.
type MessageType string

const (
	TypeCustomerTurn MessageType = "customer_turn"
	TypeBotReply     MessageType = "bot_reply"
	TypeSessionEnded MessageType = "session_ended"
	TypeErrorEvent   MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// CustomerTurn is one utterance from the speech/text front-end. The
// front-end owns all audio concerns; only plain text arrives here.
type CustomerTurn struct {
	Type       MessageType `json:"type"`
	CustomerID string      `json:"customer_id"`
	SessionID  string      `json:"session_id,omitempty"`
	Utterance  string      `json:"utterance"`
	TSMs       int64       `json:"ts_ms,omitempty"`
}

// BotReply carries the decision outcome back to the front-end.
type BotReply struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Reply          string      `json:"reply"`
	Action         string      `json:"action"`
	State          string      `json:"state"`
	Intent         string      `json:"intent"`
	ReferenceID    string      `json:"reference_id,omitempty"`
	DeliveryFailed bool        `json:"delivery_failed,omitempty"`
}

type SessionEnded struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Reason    string      `json:"reason"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Code      string      `json:"code"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates one inbound front-end message.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeCustomerTurn:
		var msg CustomerTurn
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CustomerID == "" {
			return nil, errors.New("invalid customer_turn: missing customer_id")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
