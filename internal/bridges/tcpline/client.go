// Package tcpline is a reconnecting client for line-oriented TCP control
// protocols such as the Global Caché iTach API and the lircd socket.
//
// A Client runs one request/reply exchange at a time. Reply lines are fed
// to the exchange's Collector until it reports completion; lines that
// arrive while nobody is waiting (or that the Collector rejects with
// ErrUnsolicited) go to the OnUnsolicited callback through a bounded worker
// pool.
package tcpline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Domain errors for the tcpline package.
var (
	// ErrNotConnected is returned when no connection is established.
	ErrNotConnected = errors.New("tcpline: not connected")

	// ErrConnectionFailed is returned when dialling fails.
	ErrConnectionFailed = errors.New("tcpline: connection failed")

	// ErrTimeout is returned when a reply does not complete in time.
	ErrTimeout = errors.New("tcpline: reply timed out")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("tcpline: client closed")

	// ErrUnsolicited may be returned by a Collector to route a line to the
	// unsolicited callback instead of the current exchange.
	ErrUnsolicited = errors.New("tcpline: unsolicited line")
)

const (
	defaultTimeout           = 5 * time.Second
	defaultReconnectInterval = 2 * time.Second
	maxReconnectInterval     = 2 * time.Minute
	defaultKeepAlive         = 30 * time.Second

	// maxLineLength bounds a single reply line.
	maxLineLength = 64 * 1024

	// pendingBufferSize is how many reply lines may queue for one exchange.
	pendingBufferSize = 64

	callbackQueueSize   = 100
	callbackWorkerCount = 4
)

// Config holds connection settings.
type Config struct {
	// Address is host:port.
	Address string

	// Timeout bounds dialling and each exchange. Default: 5 seconds.
	Timeout time.Duration

	// ReconnectInterval is the initial delay between reconnection attempts.
	// Default: 2 seconds.
	ReconnectInterval time.Duration

	// Terminator is appended to every request line. Default: "\r".
	Terminator string

	// Background makes Dial return a disconnected client when the first
	// dial fails. The receive loop then keeps dialling with backoff.
	Background bool
}

// Stats holds operational statistics.
type Stats struct {
	LinesTx         uint64    `json:"lines_tx"`
	LinesRx         uint64    `json:"lines_rx"`
	LinesDropped    uint64    `json:"lines_dropped"`
	ErrorsTotal     uint64    `json:"errors_total"`
	ReconnectsTotal uint64    `json:"reconnects_total"`
	LastActivity    time.Time `json:"last_activity"`
	Connected       bool      `json:"connected"`
	Reconnecting    bool      `json:"reconnecting"`
}

// Collector consumes reply lines for one exchange and returns true once
// the reply is complete. A non-nil error other than ErrUnsolicited ends the
// exchange with that error.
type Collector func(line string) (done bool, err error)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Client is a line-oriented TCP connection with automatic reconnection.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Exchanges are serialized; a second caller waits for the first.
type Client struct {
	cfg Config

	connMu    sync.RWMutex
	conn      net.Conn
	connected bool

	reconnecting   atomic.Bool
	reconnectCount atomic.Int32

	exchangeMu sync.Mutex
	pendingMu  sync.Mutex
	pending    chan string

	onUnsolicited func(string)
	callbackMu    sync.RWMutex
	callbackQueue chan string

	done *closeOnce
	wg   sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	linesTx         atomic.Uint64
	linesRx         atomic.Uint64
	linesDropped    atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64
}

// Dial connects to cfg.Address and starts the receive loop.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.Terminator == "" {
		cfg.Terminator = "\r"
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address is required", ErrConnectionFailed)
	}

	c := &Client{
		cfg:           cfg,
		done:          newCloseOnce(),
		callbackQueue: make(chan string, callbackQueueSize),
	}

	conn, err := c.dial(ctx)
	switch {
	case err == nil:
		c.conn = conn
		c.connected = true
		c.lastActivity.Store(time.Now().Unix())
	case cfg.Background:
		c.errorsTotal.Add(1)
		c.reconnecting.Store(true)
	default:
		return nil, err
	}

	for range callbackWorkerCount {
		c.wg.Add(1)
		go c.callbackWorker()
	}

	c.wg.Add(1)
	go c.receiveLoop(conn)

	return c, nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	dialer := net.Dialer{KeepAlive: defaultKeepAlive}
	conn, err := dialer.DialContext(dialCtx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, c.cfg.Address, err)
	}
	return conn, nil
}

// Address returns the configured host:port.
func (c *Client) Address() string {
	return c.cfg.Address
}

// Exchange writes line and feeds reply lines to collect until it reports
// done. A nil collect makes the call write-only.
func (c *Client) Exchange(ctx context.Context, line string, collect Collector) error {
	if c.isClosed() {
		return ErrClosed
	}

	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	var replies chan string
	if collect != nil {
		replies = make(chan string, pendingBufferSize)
		c.pendingMu.Lock()
		c.pending = replies
		c.pendingMu.Unlock()
		defer func() {
			c.pendingMu.Lock()
			c.pending = nil
			c.pendingMu.Unlock()
		}()
	}

	if err := c.write(ctx, line); err != nil {
		return err
	}
	if collect == nil {
		return nil
	}

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("exchange %q: %w", line, ctx.Err())
		case <-c.done.Done():
			return ErrClosed
		case <-timer.C:
			c.errorsTotal.Add(1)
			return fmt.Errorf("%w: %q", ErrTimeout, line)
		case reply := <-replies:
			done, err := collect(reply)
			if errors.Is(err, ErrUnsolicited) {
				c.queueUnsolicited(reply)
				continue
			}
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (c *Client) write(ctx context.Context, line string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("write %q: %w", line, ctx.Err())
	default:
	}

	c.connMu.RLock()
	conn := c.conn
	connected := c.connected
	c.connMu.RUnlock()

	if conn == nil || !connected {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if _, err := conn.Write([]byte(line + c.cfg.Terminator)); err != nil {
		c.errorsTotal.Add(1)
		return fmt.Errorf("write %q: %w", line, err)
	}

	c.linesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	c.logDebug("sent", "line", line)
	return nil
}

// receiveLoop reads lines until the connection drops, then reconnects. A
// nil conn starts in the reconnecting state.
func (c *Client) receiveLoop(conn net.Conn) {
	defer c.wg.Done()

	for {
		if conn == nil {
			c.reconnecting.Store(true)
			if !c.waitBackoff(c.cfg.ReconnectInterval) {
				return
			}
			next, ok := c.reconnect()
			if !ok {
				return
			}
			conn = next
		}

		scanner := bufio.NewScanner(conn)
		scanner.Buffer(make([]byte, 0, 1024), maxLineLength)
		scanner.Split(splitLines)
		for scanner.Scan() {
			c.dispatch(scanner.Text())
		}

		if c.isClosed() {
			return
		}

		err := scanner.Err()
		if err == nil {
			err = errors.New("connection closed by peer")
		}
		c.logError("read failed", err)
		c.errorsTotal.Add(1)
		c.handleDisconnect()
		conn = nil
	}
}

// splitLines is bufio.ScanLines that also ends lines on a bare carriage
// return, which is what iTach units send.
func splitLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// dispatch routes one received line to the waiting exchange or to the
// unsolicited callback.
func (c *Client) dispatch(raw string) {
	line := strings.TrimSpace(raw)
	if line == "" {
		return
	}

	c.linesRx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	c.logDebug("received", "line", line)

	c.pendingMu.Lock()
	pending := c.pending
	if pending != nil {
		select {
		case pending <- line:
			c.pendingMu.Unlock()
			return
		default:
			c.pendingMu.Unlock()
			c.linesDropped.Add(1)
			c.errorsTotal.Add(1)
			c.logError("reply buffer full, dropping line", nil)
			return
		}
	}
	c.pendingMu.Unlock()

	c.queueUnsolicited(line)
}

func (c *Client) queueUnsolicited(line string) {
	c.callbackMu.RLock()
	hasCallback := c.onUnsolicited != nil
	c.callbackMu.RUnlock()

	if !hasCallback {
		return
	}

	select {
	case c.callbackQueue <- line:
	default:
		c.logError("callback queue full, dropping line", nil)
		c.linesDropped.Add(1)
		c.errorsTotal.Add(1)
	}
}

// callbackWorker runs unsolicited callbacks in a bounded pool.
func (c *Client) callbackWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainCallbackQueue()
			return
		case line := <-c.callbackQueue:
			c.callbackMu.RLock()
			callback := c.onUnsolicited
			c.callbackMu.RUnlock()

			if callback != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							c.logError("unsolicited callback panic", fmt.Errorf("%v", r))
						}
					}()
					callback(line)
				}()
			}
		}
	}
}

func (c *Client) drainCallbackQueue() {
	for {
		select {
		case <-c.callbackQueue:
		default:
			return
		}
	}
}

func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	if wasConnected {
		c.logInfo("connection lost, will attempt reconnection", "address", c.cfg.Address)
	}
}

// reconnect dials with exponential backoff until it succeeds or the client
// is closed.
func (c *Client) reconnect() (net.Conn, bool) {
	c.reconnecting.Store(true)
	defer c.reconnecting.Store(false)

	backoff := c.cfg.ReconnectInterval
	for {
		if c.isClosed() {
			return nil, false
		}

		attempt := c.reconnectCount.Add(1)
		c.logInfo("attempting reconnection", "address", c.cfg.Address, "attempt", attempt, "backoff", backoff.String())

		conn, err := c.dial(context.Background())
		if err == nil {
			c.connMu.Lock()
			if c.isClosed() {
				c.connMu.Unlock()
				conn.Close()
				return nil, false
			}
			c.conn = conn
			c.connected = true
			c.connMu.Unlock()

			c.reconnectCount.Store(0)
			c.reconnectsTotal.Add(1)
			c.lastActivity.Store(time.Now().Unix())
			c.logInfo("reconnection successful", "address", c.cfg.Address, "total_reconnects", c.reconnectsTotal.Load())
			return conn, true
		}

		c.logError("reconnect failed", err)
		c.errorsTotal.Add(1)

		if !c.waitBackoff(backoff) {
			return nil, false
		}

		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > maxReconnectInterval {
			backoff = maxReconnectInterval
		}
	}
}

// waitBackoff sleeps for d and reports false if the client closed meanwhile.
func (c *Client) waitBackoff(d time.Duration) bool {
	select {
	case <-c.done.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close stops the receive loop and closes the connection. Safe to call more
// than once.
func (c *Client) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.wg.Wait()
	c.logInfo("connection closed", "address", c.cfg.Address)
	return nil
}

// SetOnUnsolicited sets the callback for lines no exchange claimed. Panics
// in the callback are recovered and logged.
func (c *Client) SetOnUnsolicited(callback func(line string)) {
	c.callbackMu.Lock()
	c.onUnsolicited = callback
	c.callbackMu.Unlock()
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected reports whether the connection is up.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		LinesTx:         c.linesTx.Load(),
		LinesRx:         c.linesRx.Load(),
		LinesDropped:    c.linesDropped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		Connected:       c.IsConnected(),
		Reconnecting:    c.reconnecting.Load(),
	}
}

// HealthCheck returns ErrNotConnected while the link is down.
func (c *Client) HealthCheck(_ context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logDebug(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (c *Client) logInfo(msg string, keysAndValues ...any) {
	if logger := c.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (c *Client) logError(msg string, err error) {
	if logger := c.getLogger(); logger != nil {
		logger.Error(msg, "address", c.cfg.Address, "error", err)
	}
}
