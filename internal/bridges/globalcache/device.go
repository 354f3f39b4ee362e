package globalcache

import (
	"context"
	"fmt"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

var (
	_ entity.Sender         = (*IRDevice)(nil)
	_ entity.RelayTransport = (*RelayDevice)(nil)
)

// IRDevice is one IR connector with its named codes.
type IRDevice struct {
	client    *Client
	module    int
	connector int
	codes     map[string]IRCode
}

// NewIRDevice binds codes to module:connector on client. The map is copied.
func NewIRDevice(client *Client, module, connector int, codes map[string]IRCode) *IRDevice {
	cp := make(map[string]IRCode, len(codes))
	for name, code := range codes {
		cp[name] = code
	}
	return &IRDevice{client: client, module: module, connector: connector, codes: cp}
}

// Send transmits the named code repeat times.
func (d *IRDevice) Send(ctx context.Context, command string, repeat int) error {
	code, ok := d.codes[command]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return d.client.SendIR(ctx, d.module, d.connector, code, repeat)
}

// RelayDevice is one relay connector.
type RelayDevice struct {
	client    *Client
	module    int
	connector int
}

// NewRelayDevice binds module:connector on client.
func NewRelayDevice(client *Client, module, connector int) *RelayDevice {
	return &RelayDevice{client: client, module: module, connector: connector}
}

// TurnOn closes the relay.
func (d *RelayDevice) TurnOn(ctx context.Context) error {
	return d.client.SetRelay(ctx, d.module, d.connector, true)
}

// TurnOff opens the relay.
func (d *RelayDevice) TurnOff(ctx context.Context) error {
	return d.client.SetRelay(ctx, d.module, d.connector, false)
}

// State reads the relay.
func (d *RelayDevice) State(ctx context.Context) (int, error) {
	return d.client.RelayState(ctx, d.module, d.connector)
}
