package streaming

import (
	"testing"
	"time"
)

func TestEncodeDecodeSubmission(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	payload, err := Encode(Message{Type: MessageTypeTxSubmitted, TxHash: "0x12", From: "0x01", OccurredAt: at})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.TxHash != "0x12" || !msg.OccurredAt.Equal(at) {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.EventID == "" {
		t.Error("expected generated event id")
	}
	again, _ := Encode(Message{Type: MessageTypeTxSubmitted, TxHash: "0x12"})
	second, _ := Decode(again)
	if second.EventID == msg.EventID {
		t.Error("expected distinct event ids")
	}
}

func TestEncodeValidates(t *testing.T) {
	cases := []Message{
		{},
		{Type: MessageTypeTxSubmitted},
		{Type: MessageTypeAccountCreated, Account: "alice"},
		{Type: "block"},
	}
	for _, msg := range cases {
		if _, err := Encode(msg); err == nil {
			t.Errorf("%+v: expected error", msg)
		}
	}
	if _, err := Decode([]byte(`{"type":"account_created"}`)); err == nil {
		t.Error("expected decode validation error")
	}
	if _, err := Decode([]byte(`{"type":"tx_submitted","tx_hash":"0x1","event_id":"nope"}`)); err == nil {
		t.Error("expected event id error")
	}
}
