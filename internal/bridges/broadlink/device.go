// Package broadlink sends learned IR codes through a Broadlink RM blaster.
//
// Devices are addressed by UDP address, MAC and device type. Authentication
// happens lazily on the first send and again after a failed send.
package broadlink

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mixcode/broadlink"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

// Default UDP port and timeout for RM devices.
const (
	DefaultPort    = 80
	DefaultTimeout = 5 * time.Second
)

var (
	// ErrUnknownCommand is returned when no code is configured for a name.
	ErrUnknownCommand = errors.New("broadlink: unknown command")

	// ErrInvalidCode is returned for codes that are neither hex nor base64.
	ErrInvalidCode = errors.New("broadlink: invalid code")

	// ErrAuth is returned when the device rejects authentication.
	ErrAuth = errors.New("broadlink: authentication failed")
)

// Config identifies one RM device.
type Config struct {
	Host    string
	Port    int
	MAC     string
	Type    uint16
	Timeout time.Duration
}

// transport is the subset of *broadlink.Device the sender uses.
type transport interface {
	Auth(id []byte, name string) error
	SendIRRemoteCode(code []byte, repeat int) error
}

// Device sends named codes through one RM blaster.
type Device struct {
	host  string
	codes map[string][]byte

	mu     sync.Mutex
	dev    transport
	authed bool
}

var _ entity.Sender = (*Device)(nil)

// New prepares a device; no traffic is sent until the first Send.
func New(cfg Config, codes map[string]string) (*Device, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	mac, err := net.ParseMAC(cfg.MAC)
	if err != nil {
		return nil, fmt.Errorf("broadlink %s: parsing mac: %w", cfg.Host, err)
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("broadlink %s: resolving address: %w", cfg.Host, err)
	}

	parsed, err := ParseCodes(codes)
	if err != nil {
		return nil, fmt.Errorf("broadlink %s: %w", cfg.Host, err)
	}

	return newDevice(cfg.Host, &broadlink.Device{
		Type:    cfg.Type,
		MACAddr: mac,
		UDPAddr: *addr,
		Timeout: cfg.Timeout,
	}, parsed), nil
}

func newDevice(host string, dev transport, codes map[string][]byte) *Device {
	return &Device{host: host, dev: dev, codes: codes}
}

// Host returns the device host.
func (d *Device) Host() string { return d.host }

// Commands lists the configured code names in sorted order.
func (d *Device) Commands() []string {
	names := make([]string, 0, len(d.codes))
	for n := range d.codes {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Send transmits the code named command repeat times.
func (d *Device) Send(ctx context.Context, command string, repeat int) error {
	code, ok := d.codes[command]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	if repeat < 1 {
		repeat = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.authenticate(); err != nil {
		return err
	}
	for i := 0; i < repeat; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.dev.SendIRRemoteCode(code, 1); err != nil {
			// Session keys are lost when the device reboots.
			d.authed = false
			return fmt.Errorf("broadlink %s: sending %q: %w", d.host, command, err)
		}
	}
	return nil
}

func (d *Device) authenticate() error {
	if d.authed {
		return nil
	}
	hostname, _ := os.Hostname() //nolint:errcheck // name is informational
	if err := d.dev.Auth(make([]byte, 15), hostname); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrAuth, d.host, err)
	}
	d.authed = true
	return nil
}

// ParseCodes decodes learned codes given as hex or base64.
func ParseCodes(codes map[string]string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(codes))
	for name, s := range codes {
		b, err := ParseCode(s)
		if err != nil {
			return nil, fmt.Errorf("code %q: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// ParseCode decodes one learned code. Hex is tried first, then base64.
func ParseCode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCode)
	}
	if b, err := hex.DecodeString(strings.ReplaceAll(s, " ", "")); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil && len(b) > 0 {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %.16q", ErrInvalidCode, s)
}
