package irbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
	"github.com/nerrad567/gray-logic-irbridge/internal/history"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irbridge/internal/vocabulary"
)

// Bridge operation constants.
const (
	// topicParts is graylogic/{type}/ir/{id}.
	topicParts = 4

	// commandTimeout bounds one send or poll against the hardware.
	commandTimeout = 5 * time.Second

	// maxCommandTimeout caps Request.Timeout for long send_command lists.
	maxCommandTimeout = 2 * time.Minute

	// persistTimeout bounds history writes made from state callbacks.
	persistTimeout = 2 * time.Second

	// inventoryTimeout bounds list_hardware.
	inventoryTimeout = 15 * time.Second

	defaultPollInterval = 30 * time.Second
)

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Telemetry receives command and state points. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteCommand(p influxdb.CommandPoint)
	WriteState(entityID string, on bool)
}

// StateObserver is told about every state change after it is published.
type StateObserver func(entity.Snapshot)

// Request is one action against one entity, from MQTT or the REST API.
type Request struct {
	EntityID string
	Command  string

	// Commands and RepeatCount are used by send_command only.
	Commands    []string
	RepeatCount int

	// Source records the origin: mqtt, api, cli.
	Source string
}

// Timeout is the deadline budget for r: commandTimeout per send, where
// send_command sends every name RepeatCount times, capped at
// maxCommandTimeout.
func (r Request) Timeout() time.Duration {
	if r.Command != CommandSendCommand {
		return commandTimeout
	}
	sends := max(len(r.Commands), 1)
	repeat := max(r.RepeatCount, entity.DefaultRepeats)
	limit := int(maxCommandTimeout / commandTimeout)
	if sends > limit || repeat > limit/sends {
		return maxCommandTimeout
	}
	return time.Duration(sends*repeat) * commandTimeout
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// Platform holds the entities and their transports.
	Platform *Platform

	MQTTClient MQTTClient

	// History is optional. If nil, state is not restored across restarts
	// and commands are not logged.
	History history.Repository

	// Telemetry is optional.
	Telemetry Telemetry

	Logger  Logger
	Version string

	// PollInterval is how often relays are read back. Default: 30s.
	PollInterval time.Duration

	// HealthInterval is how often health is published. Default: 30s.
	HealthInterval time.Duration
}

// Bridge connects the platform's entities to the MQTT bus.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	platform     *Platform
	mqtt         MQTTClient
	history      history.Repository
	telemetry    Telemetry
	health       *HealthReporter
	pollInterval time.Duration

	observers   []StateObserver
	observersMu sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx

	logger   Logger
	loggerMu sync.RWMutex
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.Platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		platform:     opts.Platform,
		mqtt:         opts.MQTTClient,
		history:      opts.History,
		telemetry:    opts.Telemetry,
		pollInterval: poll,
		done:         make(chan struct{}),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       opts.Logger,
	}

	b.health = NewHealthReporter(opts.Version, opts.HealthInterval, opts.MQTTClient, opts.Platform)
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}
	return b, nil
}

// Start restores saved state, subscribes to commands and requests,
// announces every entity and starts health reporting and relay polling.
func (b *Bridge) Start(ctx context.Context) error {
	b.restoreStates(ctx)

	for _, e := range b.platform.Entities() {
		e.SetListener(b.handleStateChange)
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := CommandSubscribeTopic()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	requestTopic := RequestSubscribeTopic()
	if err := b.mqtt.Subscribe(requestTopic, 1, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}
	b.logInfo("subscribed to requests", "topic", requestTopic)

	for _, e := range b.platform.Entities() {
		snap := e.Snapshot()
		b.publishJSON(DiscoveryTopic(snap.ID), NewDiscoveryMessage(snap), true)
		b.publishJSON(StateTopic(snap.ID), NewStateMessage(snap), true)
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish healthy status", err)
	}

	b.wg.Add(1)
	go b.pollLoop(ctx)

	b.logInfo("bridge started", "entities", b.platform.Len(), "poll_interval", b.pollInterval)
	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Abort in-flight commands
		b.ctxCancel()

		// Publishes "stopping"
		b.health.Stop()

		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// Platform returns the entities the bridge serves.
func (b *Bridge) Platform() *Platform {
	return b.platform
}

// Health returns the current health message without publishing it.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}

// AddObserver registers fn for every state change.
func (b *Bridge) AddObserver(fn StateObserver) {
	b.observersMu.Lock()
	b.observers = append(b.observers, fn)
	b.observersMu.Unlock()
}

// restoreStates applies saved power states to remotes. Relays are not
// restored; they are read back by the first poll.
func (b *Bridge) restoreStates(ctx context.Context) {
	if b.history == nil {
		return
	}
	states, err := b.history.LoadStates(ctx)
	if err != nil {
		b.logError("failed to load saved states", err)
		return
	}

	restored := 0
	for _, e := range b.platform.Entities() {
		r, ok := e.(interface{ Restore(entity.Power) })
		if !ok {
			continue
		}
		if s, found := states[e.UniqueID()]; found && s.Power.Known() {
			r.Restore(s.Power)
			restored++
		}
	}
	if restored > 0 {
		b.logInfo("restored saved states", "count", restored)
	}
}

// Execute performs one action and records it. The returned error can be
// classified with ErrorCode.
func (b *Bridge) Execute(ctx context.Context, req Request) error {
	e, ok := b.platform.Entity(req.EntityID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, req.EntityID)
	}

	err := dispatch(ctx, e, req)
	if err != nil {
		b.logError("command failed", err)
	} else {
		b.logDebug("command executed", "entity_id", req.EntityID, "command", req.Command)
	}
	b.record(req, err)
	return err
}

func dispatch(ctx context.Context, e entity.Entity, req Request) error {
	switch req.Command {
	case CommandTurnOn, CommandTurnOff:
		sw, ok := e.(entity.Switch)
		if !ok {
			return fmt.Errorf("%w: %s on %s", ErrNotSupported, req.Command, e.Kind())
		}
		if req.Command == CommandTurnOn {
			return sw.TurnOn(ctx)
		}
		return sw.TurnOff(ctx)

	case CommandSendCommand:
		r, ok := e.(entity.Remote)
		if !ok {
			return fmt.Errorf("%w: %s on %s", ErrNotSupported, req.Command, e.Kind())
		}
		if len(req.Commands) == 0 {
			return fmt.Errorf("%w: commands is required", ErrInvalidParameters)
		}
		return r.SendCommand(ctx, req.Commands, entity.SendOptions{RepeatCount: req.RepeatCount})

	case CommandUpdate:
		p, ok := e.(entity.Poller)
		if !ok {
			return fmt.Errorf("%w: %s on %s", ErrNotSupported, req.Command, e.Kind())
		}
		return p.Update(ctx)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, req.Command)
	}
}

// record logs the action to history and telemetry.
func (b *Bridge) record(req Request, err error) {
	sends := 0
	switch req.Command {
	case CommandTurnOn, CommandTurnOff:
		sends = 1
	case CommandSendCommand:
		sends = len(req.Commands)
	}

	if b.telemetry != nil {
		b.telemetry.WriteCommand(influxdb.CommandPoint{
			EntityID: req.EntityID,
			Action:   req.Command,
			Backend:  b.platform.Backend(req.EntityID),
			Sends:    sends,
			Success:  err == nil,
		})
	}

	if b.history == nil {
		return
	}
	entry := &history.Entry{
		EntityID:    req.EntityID,
		Action:      req.Command,
		Commands:    req.Commands,
		RepeatCount: req.RepeatCount,
		Success:     err == nil,
		Source:      req.Source,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	ctx, cancel := context.WithTimeout(b.ctx, persistTimeout)
	defer cancel()
	if recErr := b.history.Record(ctx, entry); recErr != nil {
		b.logError("failed to record command", recErr)
	}
}

// ErrorCode maps an Execute error to its ack error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownEntity):
		return ErrCodeUnknownDevice
	case errors.Is(err, ErrUnknownAction):
		return ErrCodeInvalidCommand
	case errors.Is(err, ErrNotSupported):
		return ErrCodeNotSupported
	case errors.Is(err, ErrInvalidParameters),
		errors.Is(err, entity.ErrInvalidRepeat),
		errors.Is(err, entity.ErrNoCommand):
		return ErrCodeInvalidParameters
	case errors.Is(err, entity.ErrSendFailed),
		errors.Is(err, entity.ErrRelayFailed):
		return ErrCodeTransportFailed
	default:
		return ErrCodeBridgeError
	}
}

// handleStateChange is every entity's listener.
func (b *Bridge) handleStateChange(e entity.Entity) {
	snap := e.Snapshot()
	b.publishJSON(StateTopic(snap.ID), NewStateMessage(snap), true)

	if b.telemetry != nil && snap.Power.Known() {
		b.telemetry.WriteState(snap.ID, snap.Power.IsOn())
	}

	if b.history != nil {
		ctx, cancel := context.WithTimeout(b.ctx, persistTimeout)
		err := b.history.SaveState(ctx, history.State{
			EntityID: snap.ID,
			Name:     snap.Name,
			Kind:     snap.Kind,
			Power:    snap.Power,
		})
		cancel()
		if err != nil {
			b.logError("failed to save state", err)
		}
	}

	b.observersMu.RLock()
	observers := append([]StateObserver(nil), b.observers...)
	b.observersMu.RUnlock()
	for _, fn := range observers {
		fn(snap)
	}
}

// pollLoop reads every relay back, once at start and then every interval.
func (b *Bridge) pollLoop(ctx context.Context) {
	defer b.wg.Done()

	b.pollOnce(ctx)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

// pollOnce updates pollers one at a time. A failed poll keeps the last
// known state.
func (b *Bridge) pollOnce(ctx context.Context) {
	for _, e := range b.platform.Entities() {
		p, ok := e.(entity.Poller)
		if !ok {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		pollCtx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		err := p.Update(pollCtx)
		cancel()
		if err != nil {
			b.logWarn("relay poll failed", "entity_id", e.UniqueID(), "error", err)
		}
	}
}

// handleMQTTMessage routes incoming MQTT messages to appropriate handlers.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	parts := strings.Split(topic, "/")
	if len(parts) != topicParts {
		b.logError("invalid topic format", fmt.Errorf("topic: %s", topic))
		return
	}

	switch parts[1] {
	case "command":
		b.handleCommand(parts[3], payload)
	case "request":
		b.handleRequest(parts[3], payload)
	default:
		b.logError("unknown message type", fmt.Errorf("type: %s", parts[1]))
	}
}

// handleCommand executes a command and acknowledges it. The topic's entity
// ID is used when the payload omits device_id.
func (b *Bridge) handleCommand(topicID string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logError("failed to parse command", err)
		return
	}
	if cmd.DeviceID == "" {
		cmd.DeviceID = topicID
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	req, err := requestFromCommand(cmd)
	if err != nil {
		b.publishAck(NewAckError(cmd, ErrorCode(err), err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, req.Timeout())
	defer cancel()

	if err := b.Execute(ctx, req); err != nil {
		b.publishAck(NewAckError(cmd, ErrorCode(err), err.Error()))
		return
	}
	b.publishAck(NewAckMessage(cmd))
}

// requestFromCommand reads send_command's parameters.
func requestFromCommand(cmd CommandMessage) (Request, error) {
	req := Request{
		EntityID: cmd.DeviceID,
		Command:  cmd.Command,
		Source:   cmd.Source,
	}
	if cmd.Command != CommandSendCommand {
		return req, nil
	}

	commands, err := stringList(cmd.Parameters["commands"])
	if err != nil {
		return req, fmt.Errorf("%w: commands: %w", ErrInvalidParameters, err)
	}
	req.Commands = commands

	if v, ok := cmd.Parameters["repeat_count"]; ok {
		n, ok := v.(float64)
		if !ok || n != math.Trunc(n) {
			return req, fmt.Errorf("%w: repeat_count must be an integer", ErrInvalidParameters)
		}
		req.RepeatCount = int(n)
	}
	return req, nil
}

// stringList accepts a JSON string or array of strings.
func stringList(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a string or list of strings")
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	b.publishJSON(AckTopic(ack.DeviceID), ack, false)
}

// handleRequest answers a request on the matching response topic.
func (b *Bridge) handleRequest(topicID string, payload []byte) {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logError("failed to parse request", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = topicID
	}

	b.logInfo("received request", "request_id", req.RequestID, "action", req.Action)

	var resp ResponseMessage
	switch req.Action {
	case ActionListEntities:
		resp = successResponse(req, map[string]any{"entities": b.platform.Snapshots()})
	case ActionResolve:
		resp = b.handleResolve(req)
	case ActionListHardware:
		ctx, cancel := context.WithTimeout(b.ctx, inventoryTimeout)
		hw := b.platform.Inventory(ctx)
		cancel()
		resp = successResponse(req, map[string]any{"hardware": hw})
	default:
		resp = errorResponse(req, ErrCodeInvalidCommand, fmt.Sprintf("unknown action: %s", req.Action))
	}

	b.publishJSON(ResponseTopic(req.RequestID), resp, false)
}

// handleResolve resolves either a configured entity's pair (device_id) or
// an ad-hoc list of names (parameters.commands).
func (b *Bridge) handleResolve(req RequestMessage) ResponseMessage {
	if req.DeviceID != "" {
		e, ok := b.platform.Entity(req.DeviceID)
		if !ok {
			return errorResponse(req, ErrCodeUnknownDevice, fmt.Sprintf("unknown entity: %s", req.DeviceID))
		}
		snap := e.Snapshot()
		if snap.Pair == nil {
			return errorResponse(req, ErrCodeNotSupported, "entity has no command vocabulary")
		}
		return successResponse(req, map[string]any{"resolved": *snap.Pair})
	}

	names, err := stringList(req.Parameters["commands"])
	if err != nil {
		return errorResponse(req, ErrCodeInvalidParameters, "commands: "+err.Error())
	}
	return successResponse(req, map[string]any{"resolved": ResolveNames(names)})
}

// ResolveNames resolves an unflagged vocabulary.
func ResolveNames(names []string) vocabulary.Pair {
	defs := make([]vocabulary.Definition, len(names))
	for i, n := range names {
		defs[i] = vocabulary.Definition{Name: n}
	}
	return vocabulary.Resolve(defs)
}

func successResponse(req RequestMessage, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

func errorResponse(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Error:     &ResponseError{Code: code, Message: message},
	}
}

// publishJSON marshals v and publishes it at QoS 1.
func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logError("failed to marshal message", err)
		return
	}
	if err := b.mqtt.Publish(topic, payload, 1, retained); err != nil {
		b.logError("failed to publish", fmt.Errorf("%s: %w", topic, err))
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, err error) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
