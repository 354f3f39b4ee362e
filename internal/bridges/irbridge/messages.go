package irbridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/tcpline"
	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/mqtt"
)

// Protocol is the protocol segment of every topic the bridge uses.
const Protocol = "ir"

// Command names accepted on graylogic/command/ir/{entity_id}.
const (
	CommandTurnOn      = "turn_on"
	CommandTurnOff     = "turn_off"
	CommandSendCommand = "send_command"
	CommandUpdate      = "update"
)

// Request actions accepted on graylogic/request/ir/{request_id}.
const (
	ActionListEntities = "list_entities"
	ActionResolve      = "resolve"
	ActionListHardware = "list_hardware"
)

// CommandMessage is sent from Core to Bridge to operate an entity.
// Topic: graylogic/command/ir/{entity_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the entity's unique ID.
	DeviceID string `json:"device_id"`

	// Command is turn_on, turn_off, send_command or update.
	Command string `json:"command"`

	// Parameters carries send_command's arguments:
	//   {"commands": ["KEY_VOLUMEUP"], "repeat_count": 3}
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated: api, websocket, mqtt, cli.
	Source string `json:"source"`

	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command reached the hardware.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent from Bridge to Core to acknowledge a command.
// Topic: graylogic/ack/ir/{entity_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeUnknownDevice     = "UNKNOWN_DEVICE"
	ErrCodeNotSupported      = "NOT_SUPPORTED"
	ErrCodeTransportFailed   = "TRANSPORT_FAILED"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from Bridge to Core when an entity's state changes.
// Topic: graylogic/state/ir/{entity_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string         `json:"device_id"`
	Name      string         `json:"name"`
	Kind      entity.Kind    `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	State     map[string]any `json:"state"`
	Protocol  string         `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline is only ever published by the broker, as the LWT.
	HealthOffline HealthStatus = "offline"

	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/ir
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Connections has one entry per line-protocol controller.
	Connections []ConnectionStatus `json:"connections,omitempty"`

	DevicesManaged int    `json:"devices_managed"`
	Reason         string `json:"reason,omitempty"`
}

// ConnectionStatus describes one controller connection.
type ConnectionStatus struct {
	Platform string `json:"platform"`
	Host     string `json:"host"`

	// Status is "connected" or "disconnected".
	Status     string        `json:"status"`
	Statistics tcpline.Stats `json:"statistics"`
}

// RequestMessage is sent from Core to Bridge for request/response operations.
// Topic: graylogic/request/ir/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is list_entities, resolve or list_hardware.
	Action string `json:"action"`

	DeviceID   string         `json:"device_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/ir/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DiscoveryMessage announces one entity at startup.
// Topic: graylogic/discovery/ir/{entity_id}
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Timestamp time.Time       `json:"timestamp"`
	Bridge    string          `json:"bridge"`
	Entity    entity.Snapshot `json:"entity"`

	// Capabilities lists the commands the entity accepts.
	Capabilities []string `json:"capabilities"`
}

// MarshalJSON writes the timestamp as RFC 3339 in UTC.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON accepts a missing timestamp.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates a successful acknowledgment.
func NewAckMessage(cmd CommandMessage) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckAccepted,
		Protocol:  Protocol,
	}
}

// NewAckError creates a failed acknowledgment.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	ack := NewAckMessage(cmd)
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage describes an entity's current state.
func NewStateMessage(s entity.Snapshot) StateMessage {
	return StateMessage{
		DeviceID:  s.ID,
		Name:      s.Name,
		Kind:      s.Kind,
		Timestamp: time.Now().UTC(),
		State: map[string]any{
			"on":    s.Power.IsOn(),
			"power": s.Power.String(),
		},
		Protocol: Protocol,
	}
}

// NewDiscoveryMessage announces an entity.
func NewDiscoveryMessage(s entity.Snapshot) DiscoveryMessage {
	caps := []string{CommandTurnOn, CommandTurnOff}
	switch s.Kind {
	case entity.KindRemote:
		caps = append(caps, CommandSendCommand)
	case entity.KindRelay:
		caps = append(caps, CommandUpdate)
	}
	return DiscoveryMessage{
		Timestamp:    time.Now().UTC(),
		Bridge:       Protocol,
		Entity:       s,
		Capabilities: caps,
	}
}

// NewLWTMessage is registered with the broker as the will message.
func NewLWTMessage() HealthMessage {
	return HealthMessage{
		Bridge:    Protocol,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

var topics = mqtt.Topics{}

// CommandTopic returns the command topic for an entity.
// Example: graylogic/command/ir/globalcache.remote.MTkyLjE2OC4xLjcwL1RW
func CommandTopic(entityID string) string { return topics.BridgeCommand(Protocol, entityID) }

// AckTopic returns the acknowledgment topic for an entity.
func AckTopic(entityID string) string { return topics.BridgeAck(Protocol, entityID) }

// StateTopic returns the retained state topic for an entity.
func StateTopic(entityID string) string { return topics.BridgeState(Protocol, entityID) }

// HealthTopic returns the bridge health topic.
func HealthTopic() string { return topics.BridgeHealth(Protocol) }

// RequestTopic returns the topic for a request.
func RequestTopic(requestID string) string { return topics.BridgeRequest(Protocol, requestID) }

// ResponseTopic returns the topic for a response.
func ResponseTopic(requestID string) string { return topics.BridgeResponse(Protocol, requestID) }

// DiscoveryTopic returns the retained discovery topic for an entity.
func DiscoveryTopic(entityID string) string { return topics.BridgeDiscovery(Protocol, entityID) }

// CommandSubscribeTopic matches every command topic.
func CommandSubscribeTopic() string { return topics.BridgeCommands(Protocol) }

// RequestSubscribeTopic matches every request topic.
func RequestSubscribeTopic() string { return topics.BridgeRequests(Protocol) }
