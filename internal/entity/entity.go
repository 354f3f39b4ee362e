package entity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/nerrad567/gray-logic-irbridge/internal/vocabulary"
)

// DefaultRepeats is the repeat multiplier used when a caller does not
// supply one.
const DefaultRepeats = 1

// Kind distinguishes entity types on the bus and in the API.
type Kind string

// Entity kinds.
const (
	KindRemote Kind = "remote"
	KindRelay  Kind = "relay"
)

// Power is an entity's on/off state. Relays start PowerUnknown.
type Power int8

// Power states.
const (
	PowerUnknown Power = iota
	PowerOff
	PowerOn
)

// PowerFromBool maps true to PowerOn and false to PowerOff.
func PowerFromBool(on bool) Power {
	if on {
		return PowerOn
	}
	return PowerOff
}

// ParsePower parses the String form of a Power. Unrecognised input yields
// PowerUnknown.
func ParsePower(s string) Power {
	switch s {
	case "on":
		return PowerOn
	case "off":
		return PowerOff
	default:
		return PowerUnknown
	}
}

// IsOn reports whether p is PowerOn.
func (p Power) IsOn() bool { return p == PowerOn }

// Known reports whether p is on or off.
func (p Power) Known() bool { return p != PowerUnknown }

func (p Power) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the power state as its String form.
func (p Power) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes the String form.
func (p *Power) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePower(s)
	return nil
}

// Entity is the read side every bridge object offers the host.
type Entity interface {
	Name() string
	UniqueID() string
	Kind() Kind
	Power() Power
	Snapshot() Snapshot
	SetListener(StateListener)
}

// Switch is an entity that can be turned on and off.
type Switch interface {
	Entity
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
}

// Remote is a switch that can also replay arbitrary named commands.
type Remote interface {
	Switch
	SendCommand(ctx context.Context, names []string, opts SendOptions) error
	Commands() []string
}

// Poller is an entity whose state can be read back from hardware.
type Poller interface {
	Update(ctx context.Context) error
}

// Sender fires a named IR command repeat times.
type Sender interface {
	Send(ctx context.Context, command string, repeat int) error
}

// RelayTransport drives and reads one relay output.
type RelayTransport interface {
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	State(ctx context.Context) (int, error)
}

// StateListener is called after an entity's state changes.
type StateListener func(Entity)

// SendOptions are the options recognised by SendCommand.
type SendOptions struct {
	// RepeatCount multiplies each command's IR count. Zero selects
	// DefaultRepeats.
	RepeatCount int `json:"repeat_count,omitempty"`
}

// Snapshot is a point-in-time description of an entity.
type Snapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Kind      Kind             `json:"kind"`
	Platform  string           `json:"platform"`
	Host      string           `json:"host"`
	Power     Power            `json:"power"`
	Commands  []string         `json:"commands,omitempty"`
	Pair      *vocabulary.Pair `json:"resolved,omitempty"`
	Module    int              `json:"module,omitempty"`
	Connector int              `json:"connector,omitempty"`
}

// RemoteID returns the unique ID of a remote on host. The separator keeps
// ("ab", "c") and ("a", "bc") apart.
func RemoteID(platform, host, name string) string {
	return encodeID(platform, KindRemote, host+"/"+name)
}

// RelayID returns the unique ID of a relay at module:connector on host.
func RelayID(platform, host string, module, connector int) string {
	return encodeID(platform, KindRelay, host+":"+strconv.Itoa(module)+":"+strconv.Itoa(connector))
}

// encodeID uses URL-safe base64 so IDs can be MQTT topic levels.
func encodeID(platform string, kind Kind, key string) string {
	return platform + "." + string(kind) + "." + base64.RawURLEncoding.EncodeToString([]byte(key))
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
