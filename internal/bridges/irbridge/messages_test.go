package irbridge

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

func TestTopics(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CommandTopic("abc"), "graylogic/command/ir/abc"},
		{AckTopic("abc"), "graylogic/ack/ir/abc"},
		{StateTopic("abc"), "graylogic/state/ir/abc"},
		{DiscoveryTopic("abc"), "graylogic/discovery/ir/abc"},
		{RequestTopic("r1"), "graylogic/request/ir/r1"},
		{ResponseTopic("r1"), "graylogic/response/ir/r1"},
		{HealthTopic(), "graylogic/health/ir"},
		{CommandSubscribeTopic(), "graylogic/command/ir/+"},
		{RequestSubscribeTopic(), "graylogic/request/ir/+"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("topic = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCommandMessage_JSON(t *testing.T) {
	in := []byte(`{
		"id": "c1",
		"timestamp": "2026-01-15T10:30:00Z",
		"device_id": "dev",
		"command": "send_command",
		"parameters": {"commands": ["KEY_MUTE"], "repeat_count": 2}
	}`)

	var msg CommandMessage
	if err := json.Unmarshal(in, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.ID != "c1" || msg.Command != CommandSendCommand || msg.DeviceID != "dev" {
		t.Errorf("msg = %+v", msg)
	}
	want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, want)
	}

	out, err := json.Marshal(&msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["timestamp"] != "2026-01-15T10:30:00Z" {
		t.Errorf("timestamp = %v", raw["timestamp"])
	}
}

func TestCommandMessage_MissingTimestamp(t *testing.T) {
	var msg CommandMessage
	if err := json.Unmarshal([]byte(`{"id":"c1","command":"turn_on"}`), &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !msg.Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero", msg.Timestamp)
	}

	if err := json.Unmarshal([]byte(`{"id":"c1","timestamp":"yesterday"}`), &msg); err == nil {
		t.Error("Unmarshal() expected error for bad timestamp")
	}
}

func TestNewAckError(t *testing.T) {
	ack := NewAckError(CommandMessage{ID: "c1", DeviceID: "dev"}, ErrCodeUnknownDevice, "nope")
	if ack.Status != AckFailed || ack.Protocol != Protocol || ack.CommandID != "c1" {
		t.Errorf("ack = %+v", ack)
	}
	if ack.Error == nil || ack.Error.Code != ErrCodeUnknownDevice {
		t.Errorf("ack.Error = %+v", ack.Error)
	}
	if ok := NewAckMessage(CommandMessage{ID: "c2"}); ok.Status != AckAccepted || ok.Error != nil {
		t.Errorf("NewAckMessage() = %+v", ok)
	}
}

func TestNewStateMessage(t *testing.T) {
	msg := NewStateMessage(entity.Snapshot{ID: "x", Name: "TV", Kind: entity.KindRemote, Power: entity.PowerOn})
	if msg.State["on"] != true || msg.State["power"] != "on" {
		t.Errorf("State = %v", msg.State)
	}
	unknown := NewStateMessage(entity.Snapshot{ID: "y", Kind: entity.KindRelay, Power: entity.PowerUnknown})
	if unknown.State["on"] != false || unknown.State["power"] != entity.PowerUnknown.String() {
		t.Errorf("State = %v", unknown.State)
	}
}

func TestNewDiscoveryMessage_Capabilities(t *testing.T) {
	remote := NewDiscoveryMessage(entity.Snapshot{Kind: entity.KindRemote})
	if !slices.Contains(remote.Capabilities, CommandSendCommand) || slices.Contains(remote.Capabilities, CommandUpdate) {
		t.Errorf("remote capabilities = %v", remote.Capabilities)
	}
	relay := NewDiscoveryMessage(entity.Snapshot{Kind: entity.KindRelay})
	if !slices.Contains(relay.Capabilities, CommandUpdate) || slices.Contains(relay.Capabilities, CommandSendCommand) {
		t.Errorf("relay capabilities = %v", relay.Capabilities)
	}
}

func TestLWTPayload(t *testing.T) {
	payload, err := LWTPayload()
	if err != nil {
		t.Fatalf("LWTPayload() error = %v", err)
	}
	var msg HealthMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Status != HealthOffline || msg.Bridge != Protocol {
		t.Errorf("LWT = %+v", msg)
	}
}
