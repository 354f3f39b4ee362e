// Package lirc sends IR through a LIRC lircd daemon over its TCP socket
// (lircd --listen, port 8765).
//
// Requests are newline-terminated commands; each reply is a
// BEGIN ... END packet carrying SUCCESS or ERROR and optional DATA lines.
// Remote adapts one configured lircd remote to entity.Sender.
package lirc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/tcpline"
)

// Domain errors for the lirc package.
var (
	// ErrCommandFailed is wrapped by every *ReplyError.
	ErrCommandFailed = errors.New("lirc: command failed")

	// ErrProtocol is returned when a reply packet is malformed.
	ErrProtocol = errors.New("lirc: protocol error")

	// ErrInvalidArgument is returned for names lircd cannot parse.
	ErrInvalidArgument = errors.New("lirc: invalid argument")
)

// Defaults for a lircd socket.
const (
	DefaultPort    = 8765
	DefaultTimeout = 2000 * time.Millisecond

	// maxTransmitter is the highest transmitter lircd accepts in a mask.
	maxTransmitter = 32
)

// Config describes how to reach lircd.
type Config struct {
	Host    string
	Port    int
	Timeout time.Duration

	// Background returns a client while lircd is down and keeps retrying.
	Background bool
}

// Client talks to one lircd instance.
type Client struct {
	line *tcpline.Client
	host string

	// txMu keeps SET_TRANSMITTERS and the following send together.
	txMu sync.Mutex
}

// Connect dials lircd.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	line, err := tcpline.Dial(ctx, tcpline.Config{
		Address:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Timeout:    cfg.Timeout,
		Terminator: "\n",
		Background: cfg.Background,
	})
	if err != nil {
		return nil, fmt.Errorf("lirc %s: %w", cfg.Host, err)
	}
	return &Client{line: line, host: cfg.Host}, nil
}

// Host returns the configured host.
func (c *Client) Host() string { return c.host }

// SetLogger sets the connection logger.
func (c *Client) SetLogger(logger tcpline.Logger) { c.line.SetLogger(logger) }

// Stats returns connection statistics.
func (c *Client) Stats() tcpline.Stats { return c.line.Stats() }

// IsConnected reports whether lircd is reachable.
func (c *Client) IsConnected() bool { return c.line.IsConnected() }

// HealthCheck returns an error while lircd is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error { return c.line.HealthCheck(ctx) }

// Close closes the connection.
func (c *Client) Close() error { return c.line.Close() }

// Command sends a raw lircd command and returns its reply. An ERROR reply
// is returned as *ReplyError.
func (c *Client) Command(ctx context.Context, command string) (Reply, error) {
	p := newReplyParser(command)
	if err := c.line.Exchange(ctx, command, p.feed); err != nil {
		return Reply{}, err
	}
	if !p.reply.Success {
		return p.reply, &ReplyError{Command: command, Lines: p.reply.Data}
	}
	return p.reply, nil
}

// SendOnce fires code on remote once plus repeats extra times.
func (c *Client) SendOnce(ctx context.Context, remote, code string, repeats int) error {
	cmd, err := sendOnceCommand(remote, code, repeats)
	if err != nil {
		return err
	}
	_, err = c.Command(ctx, cmd)
	return err
}

// SendOnceVia selects transmitters and sends in one step so concurrent
// remotes on other transmitters cannot interleave.
func (c *Client) SendOnceVia(ctx context.Context, transmitters []int, remote, code string, repeats int) error {
	if len(transmitters) == 0 {
		return c.SendOnce(ctx, remote, code, repeats)
	}

	c.txMu.Lock()
	defer c.txMu.Unlock()

	if err := c.SetTransmitters(ctx, transmitters); err != nil {
		return err
	}
	return c.SendOnce(ctx, remote, code, repeats)
}

// SetTransmitters enables the given 1-based transmitters.
func (c *Client) SetTransmitters(ctx context.Context, transmitters []int) error {
	parts := make([]string, len(transmitters))
	for i, t := range transmitters {
		if t < 1 || t > maxTransmitter {
			return fmt.Errorf("%w: transmitter %d", ErrInvalidArgument, t)
		}
		parts[i] = strconv.Itoa(t)
	}
	_, err := c.Command(ctx, "SET_TRANSMITTERS "+strings.Join(parts, " "))
	return err
}

// ListRemotes returns the remotes lircd has loaded.
func (c *Client) ListRemotes(ctx context.Context) ([]string, error) {
	reply, err := c.Command(ctx, "LIST")
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// ListCodes returns the code names defined for remote.
func (c *Client) ListCodes(ctx context.Context, remote string) ([]string, error) {
	if err := checkName(remote); err != nil {
		return nil, err
	}
	reply, err := c.Command(ctx, "LIST "+remote)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(reply.Data))
	for _, l := range reply.Data {
		// "<hex value> <name>"
		fields := strings.Fields(l)
		if len(fields) == 0 {
			continue
		}
		codes = append(codes, fields[len(fields)-1])
	}
	return codes, nil
}

// Version returns the lircd version.
func (c *Client) Version(ctx context.Context) (string, error) {
	reply, err := c.Command(ctx, "VERSION")
	if err != nil {
		return "", err
	}
	if len(reply.Data) == 0 {
		return "", fmt.Errorf("%w: VERSION without data", ErrProtocol)
	}
	return reply.Data[0], nil
}

func sendOnceCommand(remote, code string, repeats int) (string, error) {
	if err := checkName(remote); err != nil {
		return "", err
	}
	if err := checkName(code); err != nil {
		return "", err
	}
	if repeats > 0 {
		return fmt.Sprintf("SEND_ONCE %s %s %d", remote, code, repeats), nil
	}
	return fmt.Sprintf("SEND_ONCE %s %s", remote, code), nil
}

// checkName rejects names lircd would split or misparse.
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidArgument, name)
	}
	return nil
}
