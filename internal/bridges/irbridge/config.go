package irbridge

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/broadlink"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/globalcache"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/lirc"
)

// Platform names used in entity IDs, telemetry tags and health reports.
const (
	PlatformGlobalCache = "globalcache"
	PlatformLIRC        = "lirc"
	PlatformBroadlink   = "broadlink"
)

const (
	maxPort         = 65535
	minPollInterval = time.Second
)

// Config is the hardware file: which controllers exist and what is wired
// to them. Loaded from YAML with environment variable overrides.
type Config struct {
	GlobalCache []GlobalCacheConfig `yaml:"globalcache"`
	LIRC        []LIRCConfig        `yaml:"lirc"`
	Broadlink   []BroadlinkConfig   `yaml:"broadlink"`

	// PollInterval is how often relays are read back. Zero inherits the
	// value from the main configuration.
	PollInterval time.Duration `yaml:"poll_interval"`

	// HealthInterval is how often health is published. Zero inherits the
	// value from the main configuration.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// GlobalCacheConfig is one iTach or GC-100 unit.
type GlobalCacheConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Timeout bounds each exchange, in milliseconds.
	Timeout int `yaml:"timeout"`

	// ModAddr and ConnAddr are the defaults for devices that omit them.
	ModAddr  int `yaml:"modaddr"`
	ConnAddr int `yaml:"connaddr"`

	Devices []DeviceConfig `yaml:"devices"`
	Relays  RelaysConfig   `yaml:"relays"`
}

// RelaysConfig lists the relay outputs of one relay module.
type RelaysConfig struct {
	ModAddr int           `yaml:"modaddr"`
	Items   []RelayConfig `yaml:"items"`
}

// RelayConfig is one relay output.
type RelayConfig struct {
	Name     string `yaml:"name"`
	ConnAddr int    `yaml:"connaddr"`
}

// LIRCConfig is one lircd socket.
type LIRCConfig struct {
	Host    string         `yaml:"host"`
	Port    int            `yaml:"port"`
	Timeout int            `yaml:"timeout"` // milliseconds
	Devices []DeviceConfig `yaml:"devices"`
}

// BroadlinkConfig is one RM blaster.
type BroadlinkConfig struct {
	Host    string         `yaml:"host"`
	Port    int            `yaml:"port"`
	MAC     string         `yaml:"mac"`
	Type    uint16         `yaml:"type"`
	Timeout int            `yaml:"timeout"` // milliseconds
	Devices []DeviceConfig `yaml:"devices"`
}

// DeviceConfig is one IR-controlled device.
type DeviceConfig struct {
	Name string `yaml:"name"`

	// IRCount is how many times each command fires. Default: 1.
	IRCount int `yaml:"ir_count"`

	// ModAddr and ConnAddr select the Global Caché output. For lircd,
	// ConnAddr is the transmitter to use; zero leaves the daemon's
	// transmitter mask alone.
	ModAddr  int `yaml:"modaddr"`
	ConnAddr int `yaml:"connaddr"`

	// Remote is the lircd remote name. Default: Name.
	Remote string `yaml:"remote"`

	Commands []CommandConfig `yaml:"commands"`
}

// CommandConfig is one named IR command.
type CommandConfig struct {
	Name string `yaml:"name"`

	// Data is the payload: a sendir body for Global Caché, hex or base64
	// for Broadlink. Unused for lircd, which holds its own codes.
	Data string `yaml:"data"`

	OnCommand  bool `yaml:"on_command"`
	OffCommand bool `yaml:"off_command"`

	// IRCount replaces the device IR count for this command when set.
	IRCount int `yaml:"ir_count"`
}

// LoadConfig reads the hardware file.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hardware config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates a hardware file already in memory.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing hardware config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating hardware config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies GRAYLOGIC_IR_* overrides. Host overrides apply
// to the first configured controller of that family.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_IR_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("GRAYLOGIC_IR_GLOBALCACHE_HOST"); v != "" && len(cfg.GlobalCache) > 0 {
		cfg.GlobalCache[0].Host = v
	}
	if v := os.Getenv("GRAYLOGIC_IR_LIRC_HOST"); v != "" && len(cfg.LIRC) > 0 {
		cfg.LIRC[0].Host = v
	}
}

// applyDefaults fills zero values with each controller family's defaults.
func (c *Config) applyDefaults() {
	for i := range c.GlobalCache {
		gc := &c.GlobalCache[i]
		if gc.Port == 0 {
			gc.Port = globalcache.DefaultPort
		}
		if gc.Timeout == 0 {
			gc.Timeout = int(globalcache.DefaultTimeout / time.Millisecond)
		}
		if gc.ModAddr == 0 {
			gc.ModAddr = globalcache.DefaultModule
		}
		if gc.ConnAddr == 0 {
			gc.ConnAddr = globalcache.DefaultConnector
		}
		if gc.Relays.ModAddr == 0 {
			gc.Relays.ModAddr = globalcache.DefaultRelayModule
		}
		for j := range gc.Devices {
			d := &gc.Devices[j]
			if d.ModAddr == 0 {
				d.ModAddr = gc.ModAddr
			}
			if d.ConnAddr == 0 {
				d.ConnAddr = gc.ConnAddr
			}
			defaultDevice(d)
		}
	}

	for i := range c.LIRC {
		l := &c.LIRC[i]
		if l.Port == 0 {
			l.Port = lirc.DefaultPort
		}
		if l.Timeout == 0 {
			l.Timeout = int(lirc.DefaultTimeout / time.Millisecond)
		}
		for j := range l.Devices {
			d := &l.Devices[j]
			if d.Remote == "" {
				d.Remote = d.Name
			}
			defaultDevice(d)
		}
	}

	for i := range c.Broadlink {
		b := &c.Broadlink[i]
		if b.Port == 0 {
			b.Port = broadlink.DefaultPort
		}
		if b.Timeout == 0 {
			b.Timeout = int(broadlink.DefaultTimeout / time.Millisecond)
		}
		for j := range b.Devices {
			defaultDevice(&b.Devices[j])
		}
	}
}

func defaultDevice(d *DeviceConfig) {
	if d.IRCount == 0 {
		d.IRCount = 1
	}
}

// WithIntervals fills unset intervals from the main configuration.
func (c *Config) WithIntervals(poll, health time.Duration) {
	if c.PollInterval == 0 {
		c.PollInterval = poll
	}
	if c.HealthInterval == 0 {
		c.HealthInterval = health
	}
}

// Validate checks the configuration for errors. Every problem is reported,
// not just the first.
func (c *Config) Validate() error {
	var errs []string

	if c.PollInterval != 0 && c.PollInterval < minPollInterval {
		errs = append(errs, "poll_interval must be at least 1s")
	}
	if c.HealthInterval < 0 {
		errs = append(errs, "health_interval must not be negative")
	}

	for i, gc := range c.GlobalCache {
		prefix := fmt.Sprintf("globalcache[%d]", i)
		errs = append(errs, validateEndpoint(prefix, gc.Host, gc.Port, gc.Timeout)...)
		if len(gc.Devices) == 0 && len(gc.Relays.Items) == 0 {
			errs = append(errs, prefix+" must have at least one device or relay")
		}
		for j, d := range gc.Devices {
			dp := fmt.Sprintf("%s.devices[%d]", prefix, j)
			errs = append(errs, validateDevice(dp, d)...)
			errs = append(errs, validateAddr(dp+".modaddr", d.ModAddr)...)
			errs = append(errs, validateAddr(dp+".connaddr", d.ConnAddr)...)
			for k, cmd := range d.Commands {
				if cmd.Data == "" {
					errs = append(errs, fmt.Sprintf("%s.commands[%d].data is required", dp, k))
				} else if _, err := globalcache.ParseIRCode(cmd.Data); err != nil {
					errs = append(errs, fmt.Sprintf("%s.commands[%d].data is invalid: %v", dp, k, err))
				}
			}
		}
		errs = append(errs, validateAddr(prefix+".relays.modaddr", gc.Relays.ModAddr)...)
		for j, r := range gc.Relays.Items {
			rp := fmt.Sprintf("%s.relays.items[%d]", prefix, j)
			if strings.TrimSpace(r.Name) == "" {
				errs = append(errs, rp+".name is required")
			}
			errs = append(errs, validateAddr(rp+".connaddr", r.ConnAddr)...)
		}
	}

	for i, l := range c.LIRC {
		prefix := fmt.Sprintf("lirc[%d]", i)
		errs = append(errs, validateEndpoint(prefix, l.Host, l.Port, l.Timeout)...)
		if len(l.Devices) == 0 {
			errs = append(errs, prefix+".devices must have at least one entry")
		}
		for j, d := range l.Devices {
			dp := fmt.Sprintf("%s.devices[%d]", prefix, j)
			errs = append(errs, validateDevice(dp, d)...)
			if strings.ContainsAny(d.Remote, " \t") {
				errs = append(errs, fmt.Sprintf("%s.remote %q must not contain whitespace", dp, d.Remote))
			}
			if d.ConnAddr < 0 {
				errs = append(errs, dp+".connaddr must not be negative")
			}
		}
	}

	for i, b := range c.Broadlink {
		prefix := fmt.Sprintf("broadlink[%d]", i)
		errs = append(errs, validateEndpoint(prefix, b.Host, b.Port, b.Timeout)...)
		if b.MAC == "" {
			errs = append(errs, prefix+".mac is required")
		}
		if len(b.Devices) == 0 {
			errs = append(errs, prefix+".devices must have at least one entry")
		}
		for j, d := range b.Devices {
			dp := fmt.Sprintf("%s.devices[%d]", prefix, j)
			errs = append(errs, validateDevice(dp, d)...)
			for k, cmd := range d.Commands {
				if _, err := broadlink.ParseCode(cmd.Data); err != nil {
					errs = append(errs, fmt.Sprintf("%s.commands[%d].data is invalid: %v", dp, k, err))
				}
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEndpoint(prefix, host string, port, timeout int) []string {
	var errs []string
	if host == "" {
		errs = append(errs, prefix+".host is required")
	}
	if port < 1 || port > maxPort {
		errs = append(errs, fmt.Sprintf("%s.port must be 1-%d", prefix, maxPort))
	}
	if timeout < 1 {
		errs = append(errs, prefix+".timeout must be positive")
	}
	return errs
}

func validateAddr(field string, v int) []string {
	if v < 1 {
		return []string{field + " must be at least 1"}
	}
	return nil
}

// validateDevice checks the rules shared by every controller family.
func validateDevice(prefix string, d DeviceConfig) []string {
	var errs []string
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, prefix+".name is required")
	}
	if d.IRCount < 1 {
		errs = append(errs, prefix+".ir_count must be at least 1")
	}
	if len(d.Commands) == 0 {
		errs = append(errs, prefix+".commands must have at least one entry")
	}

	seen := make(map[string]bool, len(d.Commands))
	var onFlags, offFlags int
	for k, cmd := range d.Commands {
		cp := fmt.Sprintf("%s.commands[%d]", prefix, k)
		if cmd.Name == "" {
			errs = append(errs, cp+".name is required")
			continue
		}
		if seen[cmd.Name] {
			errs = append(errs, fmt.Sprintf("%s.name %q is duplicate", cp, cmd.Name))
		}
		seen[cmd.Name] = true
		if cmd.IRCount < 0 {
			errs = append(errs, cp+".ir_count must not be negative")
		}
		if cmd.OnCommand {
			onFlags++
		}
		if cmd.OffCommand {
			offFlags++
		}
	}
	if onFlags > 1 {
		errs = append(errs, prefix+" has more than one on_command")
	}
	if offFlags > 1 {
		errs = append(errs, prefix+" has more than one off_command")
	}
	return errs
}

// DeviceCount returns the number of entities the file describes.
func (c *Config) DeviceCount() int {
	n := 0
	for _, gc := range c.GlobalCache {
		n += len(gc.Devices) + len(gc.Relays.Items)
	}
	for _, l := range c.LIRC {
		n += len(l.Devices)
	}
	for _, b := range c.Broadlink {
		n += len(b.Devices)
	}
	return n
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
