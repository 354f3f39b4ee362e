package entity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-irbridge/internal/vocabulary"
)

// Command is one configured IR command as the entity sees it. The payload
// stays with the transport.
type Command struct {
	Name string
	// IRCount replaces the device IR count for this command when > 0.
	IRCount    int
	OnCommand  bool
	OffCommand bool
}

// RemoteOptions configures a RemoteEntity.
type RemoteOptions struct {
	Platform string
	Host     string
	Name     string
	// IRCount is how many times each command fires per request. Values
	// below 1 are treated as 1.
	IRCount  int
	Commands []Command
	Sender   Sender
	Logger   Logger
	Listener StateListener
}

// RemoteEntity is an IR-controlled device. Its power state is whatever the
// last on/off request set it to.
type RemoteEntity struct {
	id       string
	name     string
	platform string
	host     string
	irCount  int
	commands []Command
	counts   map[string]int
	pair     vocabulary.Pair
	sender   Sender
	logger   Logger

	mu       sync.RWMutex
	power    Power
	listener StateListener
}

var _ Remote = (*RemoteEntity)(nil)

// NewRemote builds a RemoteEntity and resolves its on/off pair.
func NewRemote(opts RemoteOptions) (*RemoteEntity, error) {
	if opts.Sender == nil {
		return nil, ErrNoTransport
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, ErrInvalidName
	}
	if opts.IRCount < 1 {
		opts.IRCount = 1
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	r := &RemoteEntity{
		id:       RemoteID(opts.Platform, opts.Host, opts.Name),
		name:     opts.Name,
		platform: opts.Platform,
		host:     opts.Host,
		irCount:  opts.IRCount,
		commands: make([]Command, len(opts.Commands)),
		counts:   make(map[string]int, len(opts.Commands)),
		sender:   opts.Sender,
		power:    PowerOff,
		listener: opts.Listener,
	}
	copy(r.commands, opts.Commands)

	defs := make([]vocabulary.Definition, len(r.commands))
	for i, c := range r.commands {
		defs[i] = vocabulary.Definition{Name: c.Name, OnCommand: c.OnCommand, OffCommand: c.OffCommand}
		if c.IRCount > 0 {
			r.counts[c.Name] = c.IRCount
		}
	}
	r.pair = vocabulary.Resolve(defs)
	r.logger = opts.Logger

	r.logger.Info("remote configured",
		"entity_id", r.id,
		"name", r.name,
		"host", r.host,
		"on", r.pair.On, "on_source", r.pair.OnSource.String(),
		"off", r.pair.Off, "off_source", r.pair.OffSource.String(),
	)
	return r, nil
}

// Name returns the configured display name.
func (r *RemoteEntity) Name() string { return r.name }

// UniqueID returns the ID derived from host and name.
func (r *RemoteEntity) UniqueID() string { return r.id }

// Kind returns KindRemote.
func (r *RemoteEntity) Kind() Kind { return KindRemote }

// Pair returns the resolved on/off commands.
func (r *RemoteEntity) Pair() vocabulary.Pair { return r.pair }

// Commands returns the configured command names in order.
func (r *RemoteEntity) Commands() []string {
	names := make([]string, len(r.commands))
	for i, c := range r.commands {
		names[i] = c.Name
	}
	return names
}

// Power returns the locally tracked power state.
func (r *RemoteEntity) Power() Power {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.power
}

// IsOn reports whether the remote was last turned on.
func (r *RemoteEntity) IsOn() bool { return r.Power().IsOn() }

// SetListener replaces the state listener.
func (r *RemoteEntity) SetListener(l StateListener) {
	r.mu.Lock()
	r.listener = l
	r.mu.Unlock()
}

// Restore sets the power state without sending anything or notifying.
// Used to carry state across restarts.
func (r *RemoteEntity) Restore(p Power) {
	if !p.Known() {
		return
	}
	r.mu.Lock()
	r.power = p
	r.mu.Unlock()
}

// Snapshot describes the remote.
func (r *RemoteEntity) Snapshot() Snapshot {
	pair := r.pair
	return Snapshot{
		ID:       r.id,
		Name:     r.name,
		Kind:     KindRemote,
		Platform: r.platform,
		Host:     r.host,
		Power:    r.Power(),
		Commands: r.Commands(),
		Pair:     &pair,
	}
}

// TurnOn sends the resolved on-command and marks the remote on.
func (r *RemoteEntity) TurnOn(ctx context.Context) error {
	return r.switchTo(ctx, PowerOn, r.pair.On, r.pair.HasOn())
}

// TurnOff sends the resolved off-command and marks the remote off.
func (r *RemoteEntity) TurnOff(ctx context.Context) error {
	return r.switchTo(ctx, PowerOff, r.pair.Off, r.pair.HasOff())
}

// switchTo sends cmd (if resolved) and then records target. A transport
// error leaves the state untouched.
func (r *RemoteEntity) switchTo(ctx context.Context, target Power, cmd string, resolved bool) error {
	if resolved {
		if err := r.send(ctx, cmd, DefaultRepeats); err != nil {
			return err
		}
	} else {
		r.logger.Warn("no command resolved, updating state only",
			"entity_id", r.id, "name", r.name, "target", target.String())
	}
	r.setPower(target)
	return nil
}

// SendCommand sends each name count × RepeatCount times, in order. It stops
// at the first failure.
func (r *RemoteEntity) SendCommand(ctx context.Context, names []string, opts SendOptions) error {
	repeat := opts.RepeatCount
	switch {
	case repeat < 0:
		return fmt.Errorf("%w: %d", ErrInvalidRepeat, repeat)
	case repeat == 0:
		repeat = DefaultRepeats
	}

	for _, name := range names {
		if name == "" {
			return ErrNoCommand
		}
		if err := r.send(ctx, name, repeat); err != nil {
			return err
		}
	}
	return nil
}

func (r *RemoteEntity) send(ctx context.Context, name string, repeat int) error {
	total := r.countFor(name) * repeat
	r.logger.Debug("sending command", "entity_id", r.id, "command", name, "repeat", total)
	if err := r.sender.Send(ctx, name, total); err != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrSendFailed, r.name, name, err)
	}
	return nil
}

// countFor returns the per-command IR count, falling back to the device's.
func (r *RemoteEntity) countFor(name string) int {
	if n, ok := r.counts[name]; ok {
		return n
	}
	return r.irCount
}

func (r *RemoteEntity) setPower(p Power) {
	r.mu.Lock()
	r.power = p
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(r)
	}
}
