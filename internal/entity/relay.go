package entity

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// RelayOptions configures a RelayEntity.
type RelayOptions struct {
	Platform  string
	Host      string
	Name      string
	Module    int
	Connector int
	Transport RelayTransport
	Logger    Logger
	Listener  StateListener
}

// RelayEntity is a hardware relay contact.
type RelayEntity struct {
	id        string
	name      string
	platform  string
	host      string
	module    int
	connector int
	transport RelayTransport
	logger    Logger

	mu       sync.RWMutex
	power    Power
	listener StateListener
}

var (
	_ Switch = (*RelayEntity)(nil)
	_ Poller = (*RelayEntity)(nil)
)

// NewRelay builds a RelayEntity in the unknown state.
func NewRelay(opts RelayOptions) (*RelayEntity, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, ErrInvalidName
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &RelayEntity{
		id:        RelayID(opts.Platform, opts.Host, opts.Module, opts.Connector),
		name:      opts.Name,
		platform:  opts.Platform,
		host:      opts.Host,
		module:    opts.Module,
		connector: opts.Connector,
		transport: opts.Transport,
		logger:    opts.Logger,
		listener:  opts.Listener,
	}, nil
}

// Name returns the configured display name.
func (r *RelayEntity) Name() string { return r.name }

// UniqueID returns the ID derived from host, module and connector.
func (r *RelayEntity) UniqueID() string { return r.id }

// Kind returns KindRelay.
func (r *RelayEntity) Kind() Kind { return KindRelay }

// Module returns the module address.
func (r *RelayEntity) Module() int { return r.module }

// Connector returns the connector address.
func (r *RelayEntity) Connector() int { return r.connector }

// Power returns the last known relay state.
func (r *RelayEntity) Power() Power {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.power
}

// IsOn reports whether the relay is known to be closed.
func (r *RelayEntity) IsOn() bool { return r.Power().IsOn() }

// SetListener replaces the state listener.
func (r *RelayEntity) SetListener(l StateListener) {
	r.mu.Lock()
	r.listener = l
	r.mu.Unlock()
}

// Snapshot describes the relay.
func (r *RelayEntity) Snapshot() Snapshot {
	return Snapshot{
		ID:        r.id,
		Name:      r.name,
		Kind:      KindRelay,
		Platform:  r.platform,
		Host:      r.host,
		Power:     r.Power(),
		Module:    r.module,
		Connector: r.connector,
	}
}

// TurnOn closes the relay. State is updated without reading it back.
func (r *RelayEntity) TurnOn(ctx context.Context) error {
	if err := r.transport.TurnOn(ctx); err != nil {
		return fmt.Errorf("%w: %s on: %w", ErrRelayFailed, r.name, err)
	}
	r.set(PowerOn, true)
	return nil
}

// TurnOff opens the relay. State is updated without reading it back.
func (r *RelayEntity) TurnOff(ctx context.Context) error {
	if err := r.transport.TurnOff(ctx); err != nil {
		return fmt.Errorf("%w: %s off: %w", ErrRelayFailed, r.name, err)
	}
	r.set(PowerOff, true)
	return nil
}

// Update polls the hardware. The listener only fires if the state changed.
// On error the previous state is kept.
func (r *RelayEntity) Update(ctx context.Context) error {
	raw, err := r.transport.State(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s poll: %w", ErrRelayFailed, r.name, err)
	}
	r.set(PowerFromBool(raw != 0), false)
	return nil
}

// SetState applies a state pushed by the hardware: 0 is off, anything else
// is on. The listener always fires.
func (r *RelayEntity) SetState(raw int) {
	r.logger.Debug("relay state pushed", "entity_id", r.id, "raw", raw)
	r.set(PowerFromBool(raw != 0), true)
}

func (r *RelayEntity) set(p Power, always bool) {
	r.mu.Lock()
	changed := r.power != p
	r.power = p
	listener := r.listener
	r.mu.Unlock()

	if listener != nil && (always || changed) {
		listener(r)
	}
}
