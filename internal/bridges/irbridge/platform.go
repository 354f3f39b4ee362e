package irbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/broadlink"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/globalcache"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/lirc"
	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Platform owns the controller connections and the entities built on them.
// Entities are kept in registration order.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Platform struct {
	mu       sync.RWMutex
	order    []string
	entities map[string]entity.Entity
	backends map[string]string

	globalCaches []*globalcache.Client
	lircds       []*lirc.Client
	blasters     []*broadlink.Device
}

// NewPlatform returns an empty platform. Setup is the usual constructor;
// tests register mock entities directly with Add.
func NewPlatform() *Platform {
	return &Platform{
		entities: make(map[string]entity.Entity),
		backends: make(map[string]string),
	}
}

// Add registers e under its unique ID. backend names the controller family
// for telemetry tags.
func (p *Platform) Add(e entity.Entity, backend string) error {
	id := e.UniqueID()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entities[id]; exists {
		return fmt.Errorf("%w: %s (%s)", ErrDuplicateEntity, e.Name(), id)
	}
	p.entities[id] = e
	p.backends[id] = backend
	p.order = append(p.order, id)
	return nil
}

// Entity looks up an entity by unique ID.
func (p *Platform) Entity(id string) (entity.Entity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entities[id]
	return e, ok
}

// Backend returns the controller family an entity was registered with.
func (p *Platform) Backend(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backends[id]
}

// Entities returns all entities in registration order.
func (p *Platform) Entities() []entity.Entity {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]entity.Entity, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.entities[id])
	}
	return out
}

// Len returns the number of registered entities.
func (p *Platform) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// Snapshots describes every entity in registration order.
func (p *Platform) Snapshots() []entity.Snapshot {
	ents := p.Entities()
	out := make([]entity.Snapshot, len(ents))
	for i, e := range ents {
		out[i] = e.Snapshot()
	}
	return out
}

// Connections reports the state of every line-protocol controller.
// Broadlink blasters are connectionless and are not listed.
func (p *Platform) Connections() []ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]ConnectionStatus, 0, len(p.globalCaches)+len(p.lircds))
	for _, c := range p.globalCaches {
		out = append(out, connectionStatus(PlatformGlobalCache, c.Host(), c.IsConnected(), c.Stats()))
	}
	for _, c := range p.lircds {
		out = append(out, connectionStatus(PlatformLIRC, c.Host(), c.IsConnected(), c.Stats()))
	}
	return out
}

// HardwareInfo is one controller's answer to list_hardware.
type HardwareInfo struct {
	Platform string `json:"platform"`
	Host     string `json:"host"`
	Version  string `json:"version,omitempty"`

	// Modules is the Global Caché getdevices inventory.
	Modules []globalcache.Module `json:"modules,omitempty"`

	// Remotes maps each lircd remote to its codes.
	Remotes map[string][]string `json:"remotes,omitempty"`

	// Commands lists the codes held for a Broadlink device.
	Commands []string `json:"commands,omitempty"`

	Error string `json:"error,omitempty"`
}

// Inventory asks every controller what it has. A controller that fails to
// answer is reported with Error set rather than failing the whole call.
func (p *Platform) Inventory(ctx context.Context) []HardwareInfo {
	p.mu.RLock()
	gcs := append([]*globalcache.Client(nil), p.globalCaches...)
	lircds := append([]*lirc.Client(nil), p.lircds...)
	blasters := append([]*broadlink.Device(nil), p.blasters...)
	p.mu.RUnlock()

	var out []HardwareInfo
	for _, c := range gcs {
		out = append(out, GlobalCacheInventory(ctx, c))
	}
	for _, c := range lircds {
		out = append(out, LIRCInventory(ctx, c))
	}
	for _, d := range blasters {
		out = append(out, HardwareInfo{Platform: PlatformBroadlink, Host: d.Host(), Commands: d.Commands()})
	}
	return out
}

// GlobalCacheInventory reads the version and module list of one unit.
func GlobalCacheInventory(ctx context.Context, c *globalcache.Client) HardwareInfo {
	info := HardwareInfo{Platform: PlatformGlobalCache, Host: c.Host()}
	version, err := c.Version(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Version = version
	modules, err := c.Devices(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Modules = modules
	return info
}

// LIRCInventory reads the version, remotes and codes of one lircd.
func LIRCInventory(ctx context.Context, c *lirc.Client) HardwareInfo {
	info := HardwareInfo{Platform: PlatformLIRC, Host: c.Host()}
	version, err := c.Version(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Version = version
	remotes, err := c.ListRemotes(ctx)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	info.Remotes = make(map[string][]string, len(remotes))
	for _, r := range remotes {
		codes, err := c.ListCodes(ctx, r)
		if err != nil {
			info.Error = err.Error()
			return info
		}
		info.Remotes[r] = codes
	}
	return info
}

// Close closes every controller connection.
func (p *Platform) Close() error {
	p.mu.Lock()
	gcs, lircds := p.globalCaches, p.lircds
	p.globalCaches, p.lircds = nil, nil
	p.mu.Unlock()

	var errs []error
	for _, c := range gcs {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range lircds {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
