package globalcache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/tcpline"
)

// Defaults for a Global Caché unit.
const (
	DefaultPort           = 4998
	DefaultTimeout        = 5000 * time.Millisecond
	DefaultModule         = 1
	DefaultConnector      = 1
	DefaultRelayModule    = 3
	DefaultReconnectDelay = 2 * time.Second
)

// Config describes how to reach a unit.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration

	// Background returns a client even when the unit is unreachable; it
	// connects once the unit comes up.
	Background bool
}

// Module is one entry of the getdevices inventory.
type Module struct {
	Address int    `json:"address"`
	Ports   int    `json:"ports"`
	Type    string `json:"type"`
}

// StateChangeHandler receives statechange notifications.
type StateChangeHandler func(module, connector, value int)

// Client speaks the Global Caché TCP API to one unit.
type Client struct {
	line   *tcpline.Client
	host   string
	nextID atomic.Uint32

	handlersMu sync.RWMutex
	handlers   []StateChangeHandler

	logger   tcpline.Logger
	loggerMu sync.RWMutex
}

// Connect dials the unit and starts listening for statechange pushes.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	line, err := tcpline.Dial(ctx, tcpline.Config{
		Address:           net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Timeout:           cfg.Timeout,
		ReconnectInterval: DefaultReconnectDelay,
		Terminator:        "\r",
		Background:        cfg.Background,
	})
	if err != nil {
		return nil, fmt.Errorf("globalcache %s: %w", cfg.Host, err)
	}

	c := &Client{line: line, host: cfg.Host}
	line.SetOnUnsolicited(c.handleUnsolicited)
	return c, nil
}

// Host returns the configured host name or address.
func (c *Client) Host() string { return c.host }

// SetLogger sets the logger for this client and its connection.
func (c *Client) SetLogger(logger tcpline.Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
	c.line.SetLogger(logger)
}

// OnStateChange registers h for statechange pushes.
func (c *Client) OnStateChange(h StateChangeHandler) {
	c.handlersMu.Lock()
	c.handlers = append(c.handlers, h)
	c.handlersMu.Unlock()
}

// Stats returns connection statistics.
func (c *Client) Stats() tcpline.Stats { return c.line.Stats() }

// IsConnected reports whether the unit is reachable.
func (c *Client) IsConnected() bool { return c.line.IsConnected() }

// HealthCheck returns an error while the unit is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error { return c.line.HealthCheck(ctx) }

// Close closes the connection.
func (c *Client) Close() error { return c.line.Close() }

// commandID returns the next sendir ID in 1..MaxID.
func (c *Client) commandID() int {
	return int((c.nextID.Add(1)-1)%MaxID) + 1
}

// SendIR transmits code on module:connector repeat times. Repeats above
// MaxRepeat are sent as consecutive commands.
func (c *Client) SendIR(ctx context.Context, module, connector int, code IRCode, repeat int) error {
	if repeat < 1 {
		repeat = 1
	}
	for remaining := repeat; remaining > 0; {
		chunk := min(remaining, MaxRepeat)
		if err := c.sendIROnce(ctx, module, connector, code, chunk); err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}

func (c *Client) sendIROnce(ctx context.Context, module, connector int, code IRCode, repeat int) error {
	id := c.commandID()
	want := fmt.Sprintf("completeir,%d:%d,%d", module, connector, id)

	return c.line.Exchange(ctx, code.Format(module, connector, id, repeat), func(line string) (bool, error) {
		if line == want {
			return true, nil
		}
		if err := parseReplyError(line); err != nil {
			return true, err
		}
		return false, tcpline.ErrUnsolicited
	})
}

// StopIR aborts a transmission in progress on module:connector.
func (c *Client) StopIR(ctx context.Context, module, connector int) error {
	addr := fmt.Sprintf("%d:%d", module, connector)
	return c.line.Exchange(ctx, "stopir,"+addr, func(line string) (bool, error) {
		if strings.HasPrefix(line, "stopir,"+addr) {
			return true, nil
		}
		if err := parseReplyError(line); err != nil {
			return true, err
		}
		return false, tcpline.ErrUnsolicited
	})
}

// SetRelay closes (on) or opens a relay and returns once the unit confirms.
func (c *Client) SetRelay(ctx context.Context, module, connector int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	_, err := c.relayExchange(ctx, fmt.Sprintf("setstate,%d:%d,%d", module, connector, v), module, connector)
	return err
}

// RelayState reads a relay or sensor input. 0 is open.
func (c *Client) RelayState(ctx context.Context, module, connector int) (int, error) {
	return c.relayExchange(ctx, fmt.Sprintf("getstate,%d:%d", module, connector), module, connector)
}

func (c *Client) relayExchange(ctx context.Context, request string, module, connector int) (int, error) {
	value := 0
	err := c.line.Exchange(ctx, request, func(line string) (bool, error) {
		if err := parseReplyError(line); err != nil {
			return true, err
		}
		kind, m, conn, v, ok := parseStateLine(line)
		if !ok || kind == "statechange" || m != module || conn != connector {
			return false, tcpline.ErrUnsolicited
		}
		value = v
		return true, nil
	})
	return value, err
}

// Devices lists the unit's modules.
func (c *Client) Devices(ctx context.Context) ([]Module, error) {
	var modules []Module
	err := c.line.Exchange(ctx, "getdevices", func(line string) (bool, error) {
		switch {
		case line == "endlistdevices":
			return true, nil
		case strings.HasPrefix(line, "device,"):
			m, err := parseDeviceLine(line)
			if err != nil {
				return true, err
			}
			modules = append(modules, m)
			return false, nil
		}
		if err := parseReplyError(line); err != nil {
			return true, err
		}
		return false, tcpline.ErrUnsolicited
	})
	return modules, err
}

// Version returns the firmware version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version string
	err := c.line.Exchange(ctx, "getversion", func(line string) (bool, error) {
		if err := parseReplyError(line); err != nil {
			return true, err
		}
		if strings.HasPrefix(line, "statechange,") || strings.HasPrefix(line, "completeir,") {
			return false, tcpline.ErrUnsolicited
		}
		version = strings.TrimPrefix(line, "version,0,")
		return true, nil
	})
	return version, err
}

// handleUnsolicited forwards statechange lines to the registered handlers.
func (c *Client) handleUnsolicited(line string) {
	kind, module, connector, value, ok := parseStateLine(line)
	if !ok || kind != "statechange" {
		c.logDebug("ignoring unsolicited line", "host", c.host, "line", line)
		return
	}

	c.handlersMu.RLock()
	handlers := make([]StateChangeHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(module, connector, value)
	}
}

// parseStateLine parses "state,3:1,1", "setstate,3:1,1" and
// "statechange,3:1,1".
func parseStateLine(line string) (kind string, module, connector, value int, ok bool) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return "", 0, 0, 0, false
	}
	kind = parts[0]
	if kind != "state" && kind != "setstate" && kind != "statechange" {
		return "", 0, 0, 0, false
	}
	m, conn, found := strings.Cut(parts[1], ":")
	if !found {
		return "", 0, 0, 0, false
	}
	var err error
	if module, err = strconv.Atoi(m); err != nil {
		return "", 0, 0, 0, false
	}
	if connector, err = strconv.Atoi(conn); err != nil {
		return "", 0, 0, 0, false
	}
	if value, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
		return "", 0, 0, 0, false
	}
	return kind, module, connector, value, true
}

// parseDeviceLine parses "device,1,3 IR".
func parseDeviceLine(line string) (Module, error) {
	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return Module{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, line)
	}
	addr, err := strconv.Atoi(parts[1])
	if err != nil {
		return Module{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, line)
	}
	fields := strings.Fields(parts[2])
	if len(fields) == 0 {
		return Module{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, line)
	}
	ports, err := strconv.Atoi(fields[0])
	if err != nil {
		return Module{}, fmt.Errorf("%w: %q", ErrUnexpectedReply, line)
	}
	m := Module{Address: addr, Ports: ports}
	if len(fields) > 1 {
		m.Type = strings.Join(fields[1:], " ")
	}
	return m, nil
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
