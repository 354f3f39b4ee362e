package irbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/broadlink"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/globalcache"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/lirc"
	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
)

// codeCheckTimeout bounds the LIST query used to check lircd remotes.
const codeCheckTimeout = 5 * time.Second

// relayKey addresses one relay output on a unit.
type relayKey struct {
	module, connector int
}

// Setup connects one transport per configured controller and builds every
// entity. An unreachable controller does not fail setup: its entities are
// registered, the platform reports it disconnected, and its client keeps
// reconnecting in the background. Configuration errors do fail setup, and
// connections already made are then closed.
func Setup(ctx context.Context, cfg *Config, logger Logger) (*Platform, error) {
	p := NewPlatform()

	if err := p.setup(ctx, cfg, logger); err != nil {
		_ = p.Close() //nolint:errcheck // setup error takes precedence
		return nil, err
	}

	if logger != nil {
		logger.Info("ir platform ready",
			"entities", p.Len(),
			"globalcache", len(cfg.GlobalCache),
			"lirc", len(cfg.LIRC),
			"broadlink", len(cfg.Broadlink))
	}
	return p, nil
}

func (p *Platform) setup(ctx context.Context, cfg *Config, logger Logger) error {
	for _, gc := range cfg.GlobalCache {
		if err := p.setupGlobalCache(ctx, gc, logger); err != nil {
			return err
		}
	}
	for _, l := range cfg.LIRC {
		if err := p.setupLIRC(ctx, l, logger); err != nil {
			return err
		}
	}
	for _, b := range cfg.Broadlink {
		if err := p.setupBroadlink(b, logger); err != nil {
			return err
		}
	}
	return nil
}

func (p *Platform) setupGlobalCache(ctx context.Context, gc GlobalCacheConfig, logger Logger) error {
	client, err := globalcache.Connect(ctx, globalcache.Config{
		Host:       gc.Host,
		Port:       gc.Port,
		Timeout:    millis(gc.Timeout),
		Background: true,
	})
	if err != nil {
		return err
	}
	if logger != nil {
		client.SetLogger(logger)
	}
	warnUnreachable(logger, PlatformGlobalCache, gc.Host, client.IsConnected())
	p.mu.Lock()
	p.globalCaches = append(p.globalCaches, client)
	p.mu.Unlock()

	for _, d := range gc.Devices {
		codes := make(map[string]globalcache.IRCode, len(d.Commands))
		for _, c := range d.Commands {
			code, err := globalcache.ParseIRCode(c.Data)
			if err != nil {
				return fmt.Errorf("globalcache %s device %q command %q: %w", gc.Host, d.Name, c.Name, err)
			}
			codes[c.Name] = code
		}

		remote, err := entity.NewRemote(entity.RemoteOptions{
			Platform: PlatformGlobalCache,
			Host:     gc.Host,
			Name:     d.Name,
			IRCount:  d.IRCount,
			Commands: entityCommands(d.Commands),
			Sender:   globalcache.NewIRDevice(client, d.ModAddr, d.ConnAddr, codes),
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("globalcache %s device %q: %w", gc.Host, d.Name, err)
		}
		if err := p.Add(remote, PlatformGlobalCache); err != nil {
			return err
		}
	}

	relays := make(map[relayKey]*entity.RelayEntity, len(gc.Relays.Items))
	for _, item := range gc.Relays.Items {
		relay, err := entity.NewRelay(entity.RelayOptions{
			Platform:  PlatformGlobalCache,
			Host:      gc.Host,
			Name:      item.Name,
			Module:    gc.Relays.ModAddr,
			Connector: item.ConnAddr,
			Transport: globalcache.NewRelayDevice(client, gc.Relays.ModAddr, item.ConnAddr),
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("globalcache %s relay %q: %w", gc.Host, item.Name, err)
		}
		if err := p.Add(relay, PlatformGlobalCache); err != nil {
			return err
		}
		relays[relayKey{gc.Relays.ModAddr, item.ConnAddr}] = relay
	}

	if len(relays) > 0 {
		client.OnStateChange(func(module, connector, value int) {
			if relay, ok := relays[relayKey{module, connector}]; ok {
				relay.SetState(value)
			}
		})
	}
	return nil
}

func (p *Platform) setupLIRC(ctx context.Context, l LIRCConfig, logger Logger) error {
	client, err := lirc.Connect(ctx, lirc.Config{
		Host:       l.Host,
		Port:       l.Port,
		Timeout:    millis(l.Timeout),
		Background: true,
	})
	if err != nil {
		return err
	}
	if logger != nil {
		client.SetLogger(logger)
	}
	connected := client.IsConnected()
	warnUnreachable(logger, PlatformLIRC, l.Host, connected)
	p.mu.Lock()
	p.lircds = append(p.lircds, client)
	p.mu.Unlock()

	for _, d := range l.Devices {
		var transmitters []int
		if d.ConnAddr > 0 {
			transmitters = []int{d.ConnAddr}
		}

		remote, err := entity.NewRemote(entity.RemoteOptions{
			Platform: PlatformLIRC,
			Host:     l.Host,
			Name:     d.Name,
			IRCount:  d.IRCount,
			Commands: entityCommands(d.Commands),
			Sender:   lirc.NewRemote(client, d.Remote, transmitters),
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("lirc %s device %q: %w", l.Host, d.Name, err)
		}
		if err := p.Add(remote, PlatformLIRC); err != nil {
			return err
		}

		if connected {
			checkLIRCCodes(ctx, client, d, logger)
		}
	}
	return nil
}

func warnUnreachable(logger Logger, platform, host string, connected bool) {
	if connected || logger == nil {
		return
	}
	logger.Warn("controller unreachable, retrying in background", "platform", platform, "host", host)
}

// checkLIRCCodes warns about configured commands lircd does not know.
// lircd may load its remotes later, so a mismatch is not an error.
func checkLIRCCodes(ctx context.Context, client *lirc.Client, d DeviceConfig, logger Logger) {
	if logger == nil {
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, codeCheckTimeout)
	defer cancel()

	codes, err := client.ListCodes(checkCtx, d.Remote)
	if err != nil {
		logger.Warn("could not list lircd codes", "host", client.Host(), "remote", d.Remote, "error", err)
		return
	}
	known := make(map[string]bool, len(codes))
	for _, c := range codes {
		known[c] = true
	}
	for _, c := range d.Commands {
		if !known[c.Name] {
			logger.Warn("command not defined in lircd", "host", client.Host(), "remote", d.Remote, "command", c.Name)
		}
	}
}

// setupBroadlink builds one sender per device, since each device holds its
// own code table.
func (p *Platform) setupBroadlink(b BroadlinkConfig, logger Logger) error {
	for _, d := range b.Devices {
		codes := make(map[string]string, len(d.Commands))
		for _, c := range d.Commands {
			codes[c.Name] = c.Data
		}

		dev, err := broadlink.New(broadlink.Config{
			Host:    b.Host,
			Port:    b.Port,
			MAC:     b.MAC,
			Type:    b.Type,
			Timeout: millis(b.Timeout),
		}, codes)
		if err != nil {
			return fmt.Errorf("broadlink device %q: %w", d.Name, err)
		}

		remote, err := entity.NewRemote(entity.RemoteOptions{
			Platform: PlatformBroadlink,
			Host:     b.Host,
			Name:     d.Name,
			IRCount:  d.IRCount,
			Commands: entityCommands(d.Commands),
			Sender:   dev,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("broadlink %s device %q: %w", b.Host, d.Name, err)
		}
		if err := p.Add(remote, PlatformBroadlink); err != nil {
			return err
		}

		p.mu.Lock()
		p.blasters = append(p.blasters, dev)
		p.mu.Unlock()
	}
	return nil
}

func entityCommands(cmds []CommandConfig) []entity.Command {
	out := make([]entity.Command, len(cmds))
	for i, c := range cmds {
		out[i] = entity.Command{
			Name:       c.Name,
			IRCount:    c.IRCount,
			OnCommand:  c.OnCommand,
			OffCommand: c.OffCommand,
		}
	}
	return out
}
