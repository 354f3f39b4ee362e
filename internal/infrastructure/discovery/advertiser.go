package discovery

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	ssdp "github.com/koron/go-ssdp"
)

const (
	// SSDPSearchTarget is the ST/NT the bridge answers to.
	SSDPSearchTarget = "urn:graylogic:service:irbridge:1"

	defaultDomain  = "local."
	defaultAPIPath = "/api/v1"
	defaultMaxAge  = 1800
	minMaxAge      = 60
)

// Logger interface for optional logging.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Config describes what to advertise.
type Config struct {
	// Instance is the human-readable service instance name.
	Instance string

	// Service is the DNS-SD service type, e.g. "_graylogic-ir._tcp".
	Service string

	// Host is the address put in the SSDP LOCATION. Empty picks the first
	// non-loopback IPv4 address.
	Host string

	// Port is the API port.
	Port int

	Version  string
	Entities int

	// MaxAge is the SSDP CACHE-CONTROL max-age in seconds. Default: 1800.
	MaxAge int
}

// mdnsServer is the part of *zeroconf.Server the advertiser uses.
type mdnsServer interface {
	SetText(text []string)
	Shutdown()
}

// ssdpAdvertiser is the part of *ssdp.Advertiser the advertiser uses.
type ssdpAdvertiser interface {
	Alive() error
	Bye() error
	Close() error
}

// Registration hooks, replaced in tests.
var (
	registerMDNS = func(instance, service, domain string, port int, text []string) (mdnsServer, error) {
		return zeroconf.Register(instance, service, domain, port, text, nil)
	}
	advertiseSSDP = func(st, usn, location, server string, maxAge int) (ssdpAdvertiser, error) {
		return ssdp.Advertise(st, usn, location, server, maxAge)
	}
)

// Advertiser keeps the mDNS registration and the SSDP announcements alive
// until Stop.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Advertiser struct {
	cfg      Config
	location string
	usn      string

	mu       sync.Mutex
	entities int
	mdns     mdnsServer
	ssdp     ssdpAdvertiser

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// Start registers the service over mDNS and SSDP. If the SSDP socket cannot
// be opened the mDNS registration is withdrawn and an error returned.
func Start(cfg Config, logger Logger) (*Advertiser, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultMaxAge
	}
	if cfg.Host == "" {
		cfg.Host = localIPv4()
	}

	a := &Advertiser{
		cfg:      cfg,
		location: Location(cfg.Host, cfg.Port),
		usn:      USN(cfg.Instance, cfg.Host, cfg.Port),
		entities: cfg.Entities,
		done:     make(chan struct{}),
		logger:   logger,
	}

	server, err := registerMDNS(cfg.Instance, cfg.Service, defaultDomain, cfg.Port, a.txt())
	if err != nil {
		return nil, fmt.Errorf("%w: mdns: %w", ErrRegisterFailed, err)
	}
	a.mdns = server

	ad, err := advertiseSSDP(SSDPSearchTarget, a.usn, a.location, serverHeader(cfg.Version), cfg.MaxAge)
	if err != nil {
		server.Shutdown()
		return nil, fmt.Errorf("%w: ssdp: %w", ErrRegisterFailed, err)
	}
	a.ssdp = ad

	a.wg.Add(1)
	go a.aliveLoop(time.Duration(cfg.MaxAge) * time.Second / 2)

	a.logInfo("advertising on LAN",
		"instance", cfg.Instance,
		"service", cfg.Service,
		"location", a.location,
	)
	return a, nil
}

func (c Config) validate() error {
	var errs []string
	if strings.TrimSpace(c.Instance) == "" {
		errs = append(errs, "instance is required")
	}
	if !strings.HasPrefix(c.Service, "_") || !strings.HasSuffix(c.Service, "._tcp") {
		errs = append(errs, fmt.Sprintf("service %q must look like _name._tcp", c.Service))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, "port must be 1-65535")
	}
	if c.MaxAge != 0 && c.MaxAge < minMaxAge {
		errs = append(errs, fmt.Sprintf("max age must be at least %d seconds", minMaxAge))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the API URL advertised as SSDP LOCATION.
func Location(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + defaultAPIPath
}

// USN returns a stable unique service name for this bridge instance.
func USN(instance, host string, port int) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(instance+"@"+net.JoinHostPort(host, strconv.Itoa(port))))
	return "uuid:" + id.String() + "::" + SSDPSearchTarget
}

func serverHeader(version string) string {
	if version == "" {
		version = "dev"
	}
	return "graylogic-irbridge/" + version
}

// Location returns the advertised API URL.
func (a *Advertiser) Location() string { return a.location }

// SetEntities updates the entities TXT record.
func (a *Advertiser) SetEntities(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entities = n
	if a.mdns != nil {
		a.mdns.SetText(a.txtLocked())
	}
}

func (a *Advertiser) txt() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.txtLocked()
}

func (a *Advertiser) txtLocked() []string {
	return []string{
		"version=" + a.cfg.Version,
		"entities=" + strconv.Itoa(a.entities),
		"api=" + defaultAPIPath,
	}
}

func (a *Advertiser) aliveLoop(interval time.Duration) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.mu.Lock()
			ad := a.ssdp
			a.mu.Unlock()
			if ad == nil {
				continue
			}
			if err := ad.Alive(); err != nil {
				a.logWarn("ssdp alive failed", "error", err)
			}
		}
	}
}

// Stop sends goodbyes and releases the sockets. Safe to call multiple times.
func (a *Advertiser) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()

		a.mu.Lock()
		defer a.mu.Unlock()

		if a.ssdp != nil {
			if err := a.ssdp.Bye(); err != nil {
				a.logWarn("ssdp byebye failed", "error", err)
			}
			if err := a.ssdp.Close(); err != nil {
				a.logWarn("closing ssdp advertiser", "error", err)
			}
			a.ssdp = nil
		}
		if a.mdns != nil {
			a.mdns.Shutdown()
			a.mdns = nil
		}
		a.logInfo("LAN advertisement stopped")
	})
}

// localIPv4 picks the first non-loopback IPv4 address, falling back to the
// hostname.
func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ip4 := ipnet.IP.To4(); ip4 != nil {
					return ip4.String()
				}
			}
		}
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "localhost"
}

func (a *Advertiser) logInfo(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Info(msg, keysAndValues...)
	}
}

func (a *Advertiser) logWarn(msg string, keysAndValues ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, keysAndValues...)
	}
}
