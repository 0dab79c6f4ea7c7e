// Package streaming defines the gateway's outbound event envelope.
package streaming

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeTxSubmitted    MessageType = "tx_submitted"
	MessageTypeAccountCreated MessageType = "account_created"
)

type Message struct {
	Type       MessageType `json:"type"`
	EventID    string      `json:"event_id"`
	TraceID    string      `json:"trace_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	TxHash     string      `json:"tx_hash,omitempty"`
	From       string      `json:"from,omitempty"`
	To         string      `json:"to,omitempty"`
	Value      string      `json:"value,omitempty"`
	DataSize   int         `json:"data_size,omitempty"`
	Account    string      `json:"account,omitempty"`
	Address    string      `json:"address,omitempty"`
	Crypto     string      `json:"crypto,omitempty"`
}

func (m Message) validate() error {
	switch m.Type {
	case "":
		return errors.New("message type is required")
	case MessageTypeTxSubmitted:
		if m.TxHash == "" {
			return errors.New("tx_hash is required")
		}
	case MessageTypeAccountCreated:
		if m.Account == "" || m.Address == "" {
			return errors.New("account and address are required")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Encode assigns a random event id when the message has none.
func Encode(msg Message) ([]byte, error) {
	if err := msg.validate(); err != nil {
		return nil, err
	}
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := msg.validate(); err != nil {
		return Message{}, err
	}
	if _, err := uuid.Parse(msg.EventID); err != nil {
		return Message{}, fmt.Errorf("invalid event_id: %w", err)
	}
	return msg, nil
}
