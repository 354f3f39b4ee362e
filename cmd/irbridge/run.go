package main

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/nerrad567/gray-logic-irbridge/migrations"

	"github.com/nerrad567/gray-logic-irbridge/internal/api"
	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/irbridge"
	"github.com/nerrad567/gray-logic-irbridge/internal/history"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/discovery"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irbridge/internal/infrastructure/mqtt"
)

// errIRDisabled is returned when protocols.ir.enabled is false.
var errIRDisabled = errors.New("protocols.ir.enabled is false, nothing to run")

// runOptions are the command-line inputs to run.
type runOptions struct {
	ConfigPath string

	// LogLevel overrides logging.level when set.
	LogLevel string
}

// run contains the main application logic.
// It is separated from main() to enable testing and proper cleanup via defers.
//
// Startup order:
//  1. Configuration and logging
//  2. Database and migrations
//  3. MQTT (with the health topic as last will)
//  4. InfluxDB (optional)
//  5. Controllers and entities from the hardware file
//  6. Bridge
//  7. REST/WebSocket API (optional)
//  8. LAN advertisement (optional)
//
// Shutdown happens in reverse via the defers.
func run(ctx context.Context, opts runOptions) error {
	log := logging.Default()
	log.Info("starting Gray Logic IR Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", opts.ConfigPath)

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	if !cfg.Protocols.IR.Enabled {
		return errIRDisabled
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	historyRepo := history.NewSQLiteRepository(db.DB)

	lwt, err := irbridge.LWTPayload()
	if err != nil {
		return fmt.Errorf("building last will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
		Topic:    irbridge.HealthTopic(),
		Payload:  lwt,
		QoS:      1,
		Retained: true,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	bridge, platform, err := startIRBridge(ctx, cfg, mqttClient, historyRepo, influxClient, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping IR bridge")
		bridge.Stop()
		if closeErr := platform.Close(); closeErr != nil {
			log.Error("error closing controllers", "error", closeErr)
		}
	}()

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}
	if influxClient != nil {
		checks["influxdb"] = influxClient
	}
	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Bridge:  bridge,
			History: historyRepo,
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	if cfg.Discovery.Enabled {
		advertiser, advErr := discovery.Start(discovery.Config{
			Instance: cfg.Discovery.Instance,
			Service:  cfg.Discovery.MDNSService,
			Port:     cfg.API.Port,
			Version:  version,
			Entities: platform.Len(),
			MaxAge:   cfg.Discovery.SSDPMaxAge,
		}, log.Component("discovery"))
		if advErr != nil {
			// Advertisement is a convenience; the bridge works without it.
			log.Warn("LAN advertisement failed", "error", advErr)
		} else {
			defer advertiser.Stop()
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("Gray Logic IR Bridge stopped")
	return nil
}

// startIRBridge builds the controllers and entities from the hardware file
// and starts the bridge on them.
func startIRBridge(
	ctx context.Context,
	cfg *config.Config,
	mqttClient *mqtt.Client,
	historyRepo history.Repository,
	influxClient *influxdb.Client,
	log *logging.Logger,
) (*irbridge.Bridge, *irbridge.Platform, error) {
	hwCfg, err := irbridge.LoadConfig(cfg.Protocols.IR.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading IR hardware config: %w", err)
	}
	hwCfg.WithIntervals(cfg.Protocols.IR.PollInterval, cfg.Protocols.IR.HealthInterval)
	log.Info("IR hardware config loaded",
		"path", cfg.Protocols.IR.ConfigFile,
		"devices", hwCfg.DeviceCount(),
	)

	bridgeLog := log.Component("irbridge")
	platform, err := irbridge.Setup(ctx, hwCfg, bridgeLog)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up IR controllers: %w", err)
	}

	// A nil *influxdb.Client must not become a non-nil Telemetry.
	var telemetry irbridge.Telemetry
	if influxClient != nil {
		telemetry = influxClient
	}

	bridge, err := irbridge.NewBridge(irbridge.BridgeOptions{
		Platform:       platform,
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		History:        historyRepo,
		Telemetry:      telemetry,
		Logger:         bridgeLog,
		Version:        version,
		PollInterval:   hwCfg.PollInterval,
		HealthInterval: hwCfg.HealthInterval,
	})
	if err != nil {
		_ = platform.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("creating IR bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		_ = platform.Close() //nolint:errcheck // already failing
		return nil, nil, fmt.Errorf("starting IR bridge: %w", err)
	}
	log.Info("IR bridge started", "entities", platform.Len())

	return bridge, platform, nil
}

// healthCheck verifies every component is responsive.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
//   - Infrastructure mqtt: func(topic, payload []byte) error
//   - Bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements irbridge.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements irbridge.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements irbridge.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// Disconnect implements irbridge.MQTTClient.
// The MQTT client's lifecycle belongs to run's defer chain.
func (a *mqttBridgeAdapter) Disconnect(_ uint) {}
