package irbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
	"github.com/nerrad567/gray-logic-irbridge/internal/history"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/influxdb"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu        sync.Mutex
	published []mockPublish
	subs      []string
	connected bool
	handlers  map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, _ byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, topic)
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

// Last returns the most recent publish on topic.
func (m *MockMQTTClient) Last(topic string) (mockPublish, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i], true
		}
	}
	return mockPublish{}, false
}

// Count returns how many times topic was published.
func (m *MockMQTTClient) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.published {
		if p.Topic == topic {
			n++
		}
	}
	return n
}

// SimulateMessage delivers payload to the handler whose filter matches
// topic's message type.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) {
	m.mu.Lock()
	var handler func(string, []byte)
	for _, h := range m.handlers {
		handler = h // both subscriptions share one router
		break
	}
	m.mu.Unlock()
	if handler != nil {
		handler(topic, payload)
	}
}

type sendCall struct {
	Command string
	Repeat  int
}

type mockSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

func (s *mockSender) Send(_ context.Context, command string, repeat int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, sendCall{command, repeat})
	return nil
}

func (s *mockSender) Calls() []sendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sendCall(nil), s.calls...)
}

type mockRelay struct {
	mu    sync.Mutex
	state int
	polls int
	err   error
}

func (r *mockRelay) TurnOn(context.Context) error  { return r.set(1) }
func (r *mockRelay) TurnOff(context.Context) error { return r.set(0) }

func (r *mockRelay) set(v int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.state = v
	return nil
}

func (r *mockRelay) State(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls++
	return r.state, r.err
}

func (r *mockRelay) Polls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.polls
}

type mockHistory struct {
	mu      sync.Mutex
	states  map[string]history.State
	entries []history.Entry
}

func newMockHistory() *mockHistory {
	return &mockHistory{states: make(map[string]history.State)}
}

func (h *mockHistory) SaveState(_ context.Context, s history.State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states[s.EntityID] = s
	return nil
}

func (h *mockHistory) LoadStates(context.Context) (map[string]history.State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]history.State, len(h.states))
	for k, v := range h.states {
		out[k] = v
	}
	return out, nil
}

func (h *mockHistory) Record(_ context.Context, e *history.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *e)
	return nil
}

func (h *mockHistory) List(_ context.Context, entityID string, _ int) ([]history.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []history.Entry
	for _, e := range h.entries {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (h *mockHistory) State(id string) history.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.states[id]
}

func (h *mockHistory) Entries() []history.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]history.Entry(nil), h.entries...)
}

type mockTelemetry struct {
	mu       sync.Mutex
	commands []influxdb.CommandPoint
	states   map[string]bool
}

func (t *mockTelemetry) WriteCommand(p influxdb.CommandPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands = append(t.commands, p)
}

func (t *mockTelemetry) WriteState(id string, on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states == nil {
		t.states = make(map[string]bool)
	}
	t.states[id] = on
}

// testRig is a started bridge with one remote and one relay.
type testRig struct {
	bridge    *Bridge
	mqtt      *MockMQTTClient
	sender    *mockSender
	relayHW   *mockRelay
	remote    *entity.RemoteEntity
	relay     *entity.RelayEntity
	history   *mockHistory
	telemetry *mockTelemetry
}

func newTestRig(t *testing.T, hist *mockHistory) *testRig {
	t.Helper()

	rig := &testRig{
		mqtt:      NewMockMQTTClient(),
		sender:    &mockSender{},
		relayHW:   &mockRelay{},
		history:   hist,
		telemetry: &mockTelemetry{},
	}

	var err error
	rig.remote, err = entity.NewRemote(entity.RemoteOptions{
		Platform: PlatformLIRC,
		Host:     "127.0.0.1",
		Name:     "TV",
		IRCount:  2,
		Commands: []entity.Command{
			{Name: "power_on"},
			{Name: "power_off"},
			{Name: "KEY_VOLUMEUP", IRCount: 1},
		},
		Sender: rig.sender,
	})
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}
	rig.relay, err = entity.NewRelay(entity.RelayOptions{
		Platform:  PlatformGlobalCache,
		Host:      "192.168.1.70",
		Name:      "Screen",
		Module:    3,
		Connector: 1,
		Transport: rig.relayHW,
	})
	if err != nil {
		t.Fatalf("NewRelay() error = %v", err)
	}

	platform := NewPlatform()
	if err := platform.Add(rig.remote, PlatformLIRC); err != nil {
		t.Fatal(err)
	}
	if err := platform.Add(rig.relay, PlatformGlobalCache); err != nil {
		t.Fatal(err)
	}

	opts := BridgeOptions{
		Platform:       platform,
		MQTTClient:     rig.mqtt,
		Telemetry:      rig.telemetry,
		Version:        "test",
		PollInterval:   time.Hour,
		HealthInterval: time.Hour,
	}
	if hist != nil {
		opts.History = hist
	}
	rig.bridge, err = NewBridge(opts)
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}

	// The initial poll moves the relay out of unknown; wait for its
	// notification to finish so it does not race the test.
	polled := make(chan struct{}, 1)
	relayID := rig.relay.UniqueID()
	rig.bridge.AddObserver(func(s entity.Snapshot) {
		if s.ID == relayID {
			select {
			case polled <- struct{}{}:
			default:
			}
		}
	})

	if err := rig.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(rig.bridge.Stop)

	select {
	case <-polled:
	case <-time.After(2 * time.Second):
		t.Fatal("initial relay poll did not complete")
	}
	return rig
}

func (r *testRig) command(t *testing.T, id, command string, params map[string]any) AckMessage {
	t.Helper()
	msg := CommandMessage{ID: "cmd-1", DeviceID: id, Command: command, Parameters: params, Source: "test"}
	payload, err := json.Marshal(&msg)
	if err != nil {
		t.Fatal(err)
	}
	r.mqtt.SimulateMessage(CommandTopic(id), payload)

	pub, ok := r.mqtt.Last(AckTopic(id))
	if !ok {
		t.Fatalf("no ack published for %s", id)
	}
	if pub.Retained {
		t.Error("ack should not be retained")
	}
	var ack AckMessage
	if err := json.Unmarshal(pub.Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func TestNewBridge_Validation(t *testing.T) {
	if _, err := NewBridge(BridgeOptions{MQTTClient: NewMockMQTTClient()}); err == nil {
		t.Error("expected error without platform")
	}
	if _, err := NewBridge(BridgeOptions{Platform: NewPlatform()}); err == nil {
		t.Error("expected error without MQTT client")
	}
}

func TestBridge_Start(t *testing.T) {
	rig := newTestRig(t, nil)

	if len(rig.mqtt.subs) != 2 {
		t.Fatalf("subscriptions = %v, want 2", rig.mqtt.subs)
	}
	if rig.mqtt.subs[0] != "graylogic/command/ir/+" || rig.mqtt.subs[1] != "graylogic/request/ir/+" {
		t.Errorf("subscriptions = %v", rig.mqtt.subs)
	}

	for _, id := range []string{rig.remote.UniqueID(), rig.relay.UniqueID()} {
		pub, ok := rig.mqtt.Last(DiscoveryTopic(id))
		if !ok {
			t.Errorf("no discovery for %s", id)
			continue
		}
		if !pub.Retained {
			t.Error("discovery should be retained")
		}
		if _, ok := rig.mqtt.Last(StateTopic(id)); !ok {
			t.Errorf("no initial state for %s", id)
		}
	}

	pub, _ := rig.mqtt.Last(DiscoveryTopic(rig.remote.UniqueID()))
	var disc DiscoveryMessage
	if err := json.Unmarshal(pub.Payload, &disc); err != nil {
		t.Fatal(err)
	}
	if disc.Entity.Pair == nil || disc.Entity.Pair.On != "power_on" || disc.Entity.Pair.Off != "power_off" {
		t.Errorf("discovery pair = %+v", disc.Entity.Pair)
	}

	health, ok := rig.mqtt.Last(HealthTopic())
	if !ok || !health.Retained {
		t.Fatal("health not published retained")
	}
}

func TestBridge_TurnOnRemote(t *testing.T) {
	hist := newMockHistory()
	rig := newTestRig(t, hist)
	id := rig.remote.UniqueID()

	ack := rig.command(t, id, CommandTurnOn, nil)
	if ack.Status != AckAccepted || ack.CommandID != "cmd-1" || ack.Protocol != Protocol {
		t.Errorf("ack = %+v", ack)
	}

	calls := rig.sender.Calls()
	if len(calls) != 1 || calls[0] != (sendCall{"power_on", 2}) {
		t.Errorf("sends = %v, want [power_on x2]", calls)
	}

	pub, _ := rig.mqtt.Last(StateTopic(id))
	var state StateMessage
	if err := json.Unmarshal(pub.Payload, &state); err != nil {
		t.Fatal(err)
	}
	if state.State["on"] != true || state.State["power"] != "on" {
		t.Errorf("state = %v", state.State)
	}
	if !pub.Retained {
		t.Error("state should be retained")
	}

	entries := hist.Entries()
	if len(entries) != 1 || entries[0].Action != CommandTurnOn || !entries[0].Success || entries[0].Source != "test" {
		t.Errorf("history entries = %+v", entries)
	}
	if got := hist.State(id).Power; got != entity.PowerOn {
		t.Errorf("saved power = %v", got)
	}

	rig.telemetry.mu.Lock()
	defer rig.telemetry.mu.Unlock()
	if len(rig.telemetry.commands) != 1 || rig.telemetry.commands[0].Backend != PlatformLIRC {
		t.Errorf("telemetry commands = %+v", rig.telemetry.commands)
	}
	if !rig.telemetry.states[id] {
		t.Error("telemetry state not written")
	}
}

func TestBridge_SendCommand(t *testing.T) {
	rig := newTestRig(t, nil)
	id := rig.remote.UniqueID()

	ack := rig.command(t, id, CommandSendCommand, map[string]any{
		"commands":     []any{"KEY_VOLUMEUP", "power_off"},
		"repeat_count": 3,
	})
	if ack.Status != AckAccepted {
		t.Fatalf("ack = %+v", ack)
	}

	want := []sendCall{{"KEY_VOLUMEUP", 3}, {"power_off", 6}}
	got := rig.sender.Calls()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("sends = %v, want %v", got, want)
	}
	if rig.remote.Power() != entity.PowerOff {
		t.Error("send_command must not change power state")
	}
}

func TestBridge_CommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		target   string // "remote", "relay" or a literal ID
		command  string
		params   map[string]any
		wantCode string
	}{
		{"unknown entity", "nope", CommandTurnOn, nil, ErrCodeUnknownDevice},
		{"unknown command", "remote", "dim", nil, ErrCodeInvalidCommand},
		{"send_command on relay", "relay", CommandSendCommand, map[string]any{"commands": "x"}, ErrCodeNotSupported},
		{"update on remote", "remote", CommandUpdate, nil, ErrCodeNotSupported},
		{"missing commands", "remote", CommandSendCommand, nil, ErrCodeInvalidParameters},
		{"non-string command", "remote", CommandSendCommand, map[string]any{"commands": []any{1}}, ErrCodeInvalidParameters},
		{"fractional repeat", "remote", CommandSendCommand, map[string]any{"commands": "a", "repeat_count": 1.5}, ErrCodeInvalidParameters},
		{"negative repeat", "remote", CommandSendCommand, map[string]any{"commands": "a", "repeat_count": -1}, ErrCodeInvalidParameters},
		{"empty name", "remote", CommandSendCommand, map[string]any{"commands": []any{""}}, ErrCodeInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(t, nil)
			id := tt.target
			switch tt.target {
			case "remote":
				id = rig.remote.UniqueID()
			case "relay":
				id = rig.relay.UniqueID()
			}

			ack := rig.command(t, id, tt.command, tt.params)
			if ack.Status != AckFailed {
				t.Fatalf("status = %s, want failed", ack.Status)
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", ack.Error, tt.wantCode)
			}
			if len(rig.sender.Calls()) != 0 {
				t.Errorf("sender called: %v", rig.sender.Calls())
			}
		})
	}
}

func TestBridge_TransportFailure(t *testing.T) {
	hist := newMockHistory()
	rig := newTestRig(t, hist)
	rig.sender.err = errors.New("connection reset")
	id := rig.remote.UniqueID()

	ack := rig.command(t, id, CommandTurnOn, nil)
	if ack.Status != AckFailed || ack.Error.Code != ErrCodeTransportFailed {
		t.Errorf("ack = %+v", ack)
	}
	if rig.remote.Power() != entity.PowerOff {
		t.Error("state changed despite transport failure")
	}

	entries := hist.Entries()
	if len(entries) != 1 || entries[0].Success || entries[0].Error == "" {
		t.Errorf("history entries = %+v", entries)
	}
}

func TestBridge_Relay(t *testing.T) {
	rig := newTestRig(t, nil)
	id := rig.relay.UniqueID()

	// The initial poll read 0.
	if rig.relay.Power() != entity.PowerOff {
		t.Fatalf("power after poll = %v, want off", rig.relay.Power())
	}

	if ack := rig.command(t, id, CommandTurnOn, nil); ack.Status != AckAccepted {
		t.Fatalf("turn_on ack = %+v", ack)
	}
	if rig.relay.Power() != entity.PowerOn {
		t.Errorf("power = %v, want on", rig.relay.Power())
	}

	// The hardware was switched off by hand.
	rig.relayHW.state = 0
	if ack := rig.command(t, id, CommandUpdate, nil); ack.Status != AckAccepted {
		t.Fatalf("update ack = %+v", ack)
	}
	if rig.relay.Power() != entity.PowerOff {
		t.Errorf("power after update = %v, want off", rig.relay.Power())
	}

	rig.relayHW.err = errors.New("busy")
	ack := rig.command(t, id, CommandUpdate, nil)
	if ack.Error == nil || ack.Error.Code != ErrCodeTransportFailed {
		t.Errorf("ack = %+v", ack)
	}
	if rig.relay.Power() != entity.PowerOff {
		t.Error("failed poll changed state")
	}
}

func TestBridge_PushedRelayState(t *testing.T) {
	rig := newTestRig(t, nil)
	id := rig.relay.UniqueID()

	var got []entity.Snapshot
	var mu sync.Mutex
	rig.bridge.AddObserver(func(s entity.Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	before := rig.mqtt.Count(StateTopic(id))
	rig.relay.SetState(1)
	rig.relay.SetState(1)

	if n := rig.mqtt.Count(StateTopic(id)) - before; n != 2 {
		t.Errorf("state publishes = %d, want 2", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0].ID != id || !got[0].Power.IsOn() {
		t.Errorf("observer got %+v", got)
	}
}

func TestBridge_RestoreStates(t *testing.T) {
	hist := newMockHistory()
	platformProbe, err := entity.NewRemote(entity.RemoteOptions{
		Platform: PlatformLIRC, Host: "127.0.0.1", Name: "TV", Sender: &mockSender{},
	})
	if err != nil {
		t.Fatal(err)
	}
	hist.states[platformProbe.UniqueID()] = history.State{EntityID: platformProbe.UniqueID(), Power: entity.PowerOn}

	rig := newTestRig(t, hist)
	if rig.remote.Power() != entity.PowerOn {
		t.Errorf("restored power = %v, want on", rig.remote.Power())
	}
	if len(rig.sender.Calls()) != 0 {
		t.Error("restore must not send")
	}
}

func (r *testRig) request(t *testing.T, req RequestMessage) ResponseMessage {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	r.mqtt.SimulateMessage(RequestTopic(req.RequestID), payload)

	pub, ok := r.mqtt.Last(ResponseTopic(req.RequestID))
	if !ok {
		t.Fatalf("no response for %s", req.RequestID)
	}
	var resp ResponseMessage
	if err := json.Unmarshal(pub.Payload, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestBridge_Requests(t *testing.T) {
	rig := newTestRig(t, nil)

	resp := rig.request(t, RequestMessage{RequestID: "r1", Action: ActionListEntities})
	if !resp.Success {
		t.Fatalf("list_entities failed: %+v", resp.Error)
	}
	if ents, ok := resp.Data["entities"].([]any); !ok || len(ents) != 2 {
		t.Errorf("entities = %v", resp.Data["entities"])
	}

	resp = rig.request(t, RequestMessage{
		RequestID:  "r2",
		Action:     ActionResolve,
		Parameters: map[string]any{"commands": []any{"KEY_POWER", "standby"}},
	})
	if !resp.Success {
		t.Fatalf("resolve failed: %+v", resp.Error)
	}
	resolved, _ := resp.Data["resolved"].(map[string]any)
	if resolved["on"] != "KEY_POWER" || resolved["off"] != "standby" {
		t.Errorf("resolved = %v", resolved)
	}
	if resolved["on_source"] != "fallback" || resolved["off_source"] != "synonym" {
		t.Errorf("sources = %v", resolved)
	}

	resp = rig.request(t, RequestMessage{RequestID: "r3", Action: ActionResolve, DeviceID: rig.remote.UniqueID()})
	resolved, _ = resp.Data["resolved"].(map[string]any)
	if !resp.Success || resolved["on"] != "power_on" {
		t.Errorf("device resolve = %+v", resp)
	}

	resp = rig.request(t, RequestMessage{RequestID: "r4", Action: ActionResolve, DeviceID: rig.relay.UniqueID()})
	if resp.Success || resp.Error.Code != ErrCodeNotSupported {
		t.Errorf("relay resolve = %+v", resp)
	}

	resp = rig.request(t, RequestMessage{RequestID: "r5", Action: ActionListHardware})
	if !resp.Success {
		t.Errorf("list_hardware failed: %+v", resp.Error)
	}

	resp = rig.request(t, RequestMessage{RequestID: "r6", Action: "reboot"})
	if resp.Success || resp.Error.Code != ErrCodeInvalidCommand {
		t.Errorf("unknown action = %+v", resp)
	}
}

func TestBridge_InvalidTopic(t *testing.T) {
	rig := newTestRig(t, nil)
	before := len(rig.mqtt.published)
	rig.mqtt.SimulateMessage("graylogic/command/ir", []byte(`{}`))
	rig.mqtt.SimulateMessage("graylogic/other/ir/x", []byte(`{}`))
	rig.mqtt.SimulateMessage(CommandTopic("x"), []byte(`not json`))
	if len(rig.mqtt.published) != before {
		t.Error("malformed messages should not publish")
	}
}

func TestBridge_DeviceIDFromTopic(t *testing.T) {
	rig := newTestRig(t, nil)
	id := rig.remote.UniqueID()

	rig.mqtt.SimulateMessage(CommandTopic(id), []byte(`{"id":"c9","command":"turn_off"}`))
	pub, ok := rig.mqtt.Last(AckTopic(id))
	if !ok {
		t.Fatal("no ack")
	}
	var ack AckMessage
	if err := json.Unmarshal(pub.Payload, &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Status != AckAccepted || ack.DeviceID != id {
		t.Errorf("ack = %+v", ack)
	}
	if calls := rig.sender.Calls(); len(calls) != 1 || calls[0].Command != "power_off" {
		t.Errorf("sends = %v", calls)
	}
}

func TestBridge_Stop(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.bridge.Stop()
	rig.bridge.Stop()

	pub, ok := rig.mqtt.Last(HealthTopic())
	if !ok {
		t.Fatal("no health")
	}
	var msg HealthMessage
	if err := json.Unmarshal(pub.Payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Status != HealthStopping {
		t.Errorf("final status = %s, want stopping", msg.Status)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", ErrUnknownEntity), ErrCodeUnknownDevice},
		{ErrUnknownAction, ErrCodeInvalidCommand},
		{ErrNotSupported, ErrCodeNotSupported},
		{ErrInvalidParameters, ErrCodeInvalidParameters},
		{entity.ErrInvalidRepeat, ErrCodeInvalidParameters},
		{entity.ErrNoCommand, ErrCodeInvalidParameters},
		{fmt.Errorf("%w: boom", entity.ErrSendFailed), ErrCodeTransportFailed},
		{entity.ErrRelayFailed, ErrCodeTransportFailed},
		{errors.New("other"), ErrCodeBridgeError},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestRequest_Timeout(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want time.Duration
	}{
		{"turn_on", Request{Command: CommandTurnOn}, commandTimeout},
		{"update", Request{Command: CommandUpdate}, commandTimeout},
		{"one command", Request{Command: CommandSendCommand, Commands: []string{"a"}}, commandTimeout},
		{"list", Request{Command: CommandSendCommand, Commands: []string{"a", "b", "c"}}, 3 * commandTimeout},
		{"list with repeats", Request{Command: CommandSendCommand, Commands: []string{"a", "b"}, RepeatCount: 3}, 6 * commandTimeout},
		{"empty list", Request{Command: CommandSendCommand}, commandTimeout},
		{"capped", Request{Command: CommandSendCommand, Commands: []string{"a"}, RepeatCount: 1000}, maxCommandTimeout},
		{"huge repeat", Request{Command: CommandSendCommand, Commands: []string{"a", "b"}, RepeatCount: 1 << 62}, maxCommandTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Timeout(); got != tt.want {
				t.Errorf("Timeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveNames(t *testing.T) {
	pair := ResolveNames([]string{"POWER", "off"})
	if pair.On != "POWER" || pair.Off != "off" {
		t.Errorf("pair = %+v", pair)
	}
	if pair := ResolveNames(nil); pair.HasOn() || pair.HasOff() {
		t.Errorf("empty vocabulary resolved %+v", pair)
	}
}
