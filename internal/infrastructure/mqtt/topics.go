package mqtt

import "fmt"

// TopicPrefix is the base for all Gray Logic topics.
//
// Bridge topics use the flat scheme: graylogic/{category}/{protocol}/{id}
const TopicPrefix = "graylogic"

// Topics provides builders for bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.BridgeState("ir", "lirc.remote.bG9jYWxob3N0L3R2")
//	// Returns: "graylogic/state/ir/lirc.remote.bG9jYWxob3N0L3R2"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeState returns the topic for entity state updates from a bridge.
//
// Example: graylogic/state/ir/{entity_id}
func (Topics) BridgeState(protocol, id string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, protocol, id)
}

// BridgeCommand returns the topic for commands to a bridge.
//
// Example: graylogic/command/ir/{entity_id}
func (Topics) BridgeCommand(protocol, id string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, protocol, id)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: graylogic/ack/ir/{entity_id}
func (Topics) BridgeAck(protocol, id string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, protocol, id)
}

// BridgeRequest returns the topic for requests to a bridge.
//
// Example: graylogic/request/ir/req-abc123
func (Topics) BridgeRequest(protocol, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeResponse returns the topic for request responses from a bridge.
//
// Example: graylogic/response/ir/req-abc123
func (Topics) BridgeResponse(protocol, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefix, protocol, requestID)
}

// BridgeDiscovery returns the retained announcement topic for one entity.
//
// Example: graylogic/discovery/ir/{entity_id}
func (Topics) BridgeDiscovery(protocol, id string) string {
	return fmt.Sprintf("%s/discovery/%s/%s", TopicPrefix, protocol, id)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: graylogic/health/ir
func (Topics) BridgeHealth(protocol string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, protocol)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// BridgeCommands matches every command topic of one bridge.
//
// Pattern: graylogic/command/ir/+
func (Topics) BridgeCommands(protocol string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, protocol)
}

// BridgeRequests matches every request topic of one bridge.
//
// Pattern: graylogic/request/ir/+
func (Topics) BridgeRequests(protocol string) string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefix, protocol)
}

// AllBridgeStates returns a pattern matching all bridge state updates.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: graylogic/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefix)
}
