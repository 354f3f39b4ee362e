package tcpline

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockServer is a scripted line server on 127.0.0.1:0. reply maps each
// received line to the lines written back.
type mockServer struct {
	listener net.Listener
	reply    func(line string) []string

	mu       sync.Mutex
	received []string
	conns    []net.Conn
	wg       sync.WaitGroup
}

func newMockServer(t *testing.T, reply func(string) []string) *mockServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &mockServer{listener: ln, reply: reply}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *mockServer) Addr() string { return s.listener.Addr().String() }

func (s *mockServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *mockServer) handle(conn net.Conn) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(conn)
	scanner.Split(splitLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, line)
		s.mu.Unlock()
		if s.reply == nil {
			continue
		}
		for _, out := range s.reply(line) {
			if _, err := conn.Write([]byte(out + "\r")); err != nil {
				return
			}
		}
	}
}

// Push writes an unsolicited line to every open connection.
func (s *mockServer) Push(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Write([]byte(line + "\r")) //nolint:errcheck // test helper
	}
}

// DropConnections closes every accepted connection.
func (s *mockServer) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *mockServer) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}

func (s *mockServer) Close() {
	s.listener.Close()
	s.DropConnections()
	s.wg.Wait()
}

func dialTest(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Config{
		Address:           addr,
		Timeout:           time.Second,
		ReconnectInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestSplitLines(t *testing.T) {
	data := []byte("a\rb\nc\r\nd")
	var got []string
	for len(data) > 0 {
		adv, tok, err := splitLines(data, true)
		if err != nil {
			t.Fatal(err)
		}
		if adv == 0 {
			break
		}
		got = append(got, string(tok))
		data = data[adv:]
	}
	want := []string{"a", "b", "c", "", "d"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("tokens = %q, want %q", got, want)
	}
}

func TestDial_Failure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(context.Background(), Config{Address: addr, Timeout: 200 * time.Millisecond})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Dial() error = %v, want ErrConnectionFailed", err)
	}

	if _, err := Dial(context.Background(), Config{}); !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Dial() without address error = %v, want ErrConnectionFailed", err)
	}
}

func TestDial_BackgroundConnectsLater(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, err := Dial(context.Background(), Config{
		Address:           addr,
		Timeout:           200 * time.Millisecond,
		ReconnectInterval: 20 * time.Millisecond,
		Background:        true,
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if c.IsConnected() {
		t.Fatal("IsConnected() = true before anything listens")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Exchange(context.Background(), "ping", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Exchange() error = %v, want ErrNotConnected", err)
	}

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		t.Skipf("could not listen on %s again: %v", addr, err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	waitFor(t, func() bool { return c.IsConnected() && c.Stats().ReconnectsTotal == 1 })
	select {
	case conn := <-accepted:
		conn.Close()
	case <-time.After(time.Second):
		t.Error("listener never accepted the connection")
	}
}

func TestExchange_MultiLineReply(t *testing.T) {
	srv := newMockServer(t, func(line string) []string {
		if line == "getdevices" {
			return []string{"device,0,0 ETHERNET", "device,1,3 IR", "endlistdevices"}
		}
		return []string{"unknowncommand"}
	})
	c := dialTest(t, srv.Addr())

	var lines []string
	err := c.Exchange(context.Background(), "getdevices", func(line string) (bool, error) {
		if line == "endlistdevices" {
			return true, nil
		}
		lines = append(lines, line)
		return false, nil
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if len(lines) != 2 || lines[1] != "device,1,3 IR" {
		t.Errorf("lines = %q", lines)
	}

	stats := c.Stats()
	if stats.LinesTx != 1 || stats.LinesRx != 3 || !stats.Connected {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestExchange_CollectorError(t *testing.T) {
	srv := newMockServer(t, func(string) []string { return []string{"ERR_1:1,014"} })
	c := dialTest(t, srv.Addr())

	boom := errors.New("device error")
	err := c.Exchange(context.Background(), "sendir,1:1,1,38000,1,1,1,1", func(line string) (bool, error) {
		if strings.HasPrefix(line, "ERR") {
			return true, boom
		}
		return true, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("Exchange() error = %v, want collector error", err)
	}
}

func TestExchange_Timeout(t *testing.T) {
	srv := newMockServer(t, nil)
	c, err := Dial(context.Background(), Config{Address: srv.Addr(), Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	err = c.Exchange(context.Background(), "getversion", func(string) (bool, error) { return true, nil })
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Exchange() error = %v, want ErrTimeout", err)
	}
}

func TestExchange_ContextCancelled(t *testing.T) {
	srv := newMockServer(t, nil)
	c := dialTest(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Exchange(ctx, "getversion", func(string) (bool, error) { return true, nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Exchange() error = %v, want context.Canceled", err)
	}
}

func TestExchange_WriteOnly(t *testing.T) {
	srv := newMockServer(t, nil)
	c := dialTest(t, srv.Addr())

	if err := c.Exchange(context.Background(), "stopir,1:1", nil); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	waitFor(t, func() bool { return len(srv.Received()) == 1 })
	if got := srv.Received()[0]; got != "stopir,1:1" {
		t.Errorf("server received %q", got)
	}
}

func TestUnsolicited(t *testing.T) {
	srv := newMockServer(t, func(line string) []string {
		// A push lands ahead of the reply.
		return []string{"statechange,3:1,1", "state,3:1,1"}
	})
	c := dialTest(t, srv.Addr())

	got := make(chan string, 4)
	c.SetOnUnsolicited(func(line string) { got <- line })

	err := c.Exchange(context.Background(), "getstate,3:1", func(line string) (bool, error) {
		if strings.HasPrefix(line, "statechange") {
			return false, ErrUnsolicited
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}

	select {
	case line := <-got:
		if line != "statechange,3:1,1" {
			t.Errorf("unsolicited = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unsolicited line not delivered")
	}

	srv.Push("statechange,3:2,0")
	select {
	case line := <-got:
		if line != "statechange,3:2,0" {
			t.Errorf("idle push = %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("idle push not delivered")
	}
}

func TestUnsolicited_PanicRecovered(t *testing.T) {
	srv := newMockServer(t, nil)
	c := dialTest(t, srv.Addr())

	delivered := make(chan struct{}, 2)
	c.SetOnUnsolicited(func(line string) {
		delivered <- struct{}{}
		if line == "boom" {
			panic("callback failure")
		}
	})

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) == 1
	})
	srv.Push("boom")
	srv.Push("after")

	for range 2 {
		select {
		case <-delivered:
		case <-time.After(2 * time.Second):
			t.Fatal("callback pool stopped after panic")
		}
	}
}

func TestReconnect(t *testing.T) {
	srv := newMockServer(t, func(line string) []string { return []string{"ok " + line} })
	c := dialTest(t, srv.Addr())

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) == 1
	})
	srv.DropConnections()

	waitFor(t, func() bool { return c.Stats().ReconnectsTotal >= 1 && c.IsConnected() })

	var reply string
	err := c.Exchange(context.Background(), "ping", func(line string) (bool, error) {
		reply = line
		return true, nil
	})
	if err != nil {
		t.Fatalf("Exchange() after reconnect error = %v", err)
	}
	if reply != "ok ping" {
		t.Errorf("reply = %q", reply)
	}
}

func TestClose_Idempotent(t *testing.T) {
	srv := newMockServer(t, nil)
	c := dialTest(t, srv.Addr())

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
	if err := c.Exchange(context.Background(), "x", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Exchange() after Close = %v, want ErrClosed", err)
	}
}
