// Package main is the entry point for the Gray Logic IR bridge.
//
// The bridge drives infrared blasters and relay outputs (Global Caché
// iTach/GC-100, lircd and Broadlink RM) and exposes them over MQTT, a REST
// API and a WebSocket feed.
//
// Usage:
//
//	irbridge [serve] [--config configs/config.yaml] [--log-level debug]
//	irbridge resolve POWER_ON POWER_OFF
//	irbridge probe globalcache --host 192.168.1.70
//	irbridge service install
//	irbridge version
//
// Environment variables (a .env file in the working directory is loaded
// first when present):
//
//	GRAYLOGIC_CONFIG         - Path to config file (default: configs/config.yaml)
//	GRAYLOGIC_MQTT_HOST      - Override MQTT broker host
//	GRAYLOGIC_IR_CONFIG_FILE - Override hardware file path
//
// See internal/infrastructure/config for all supported overrides.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

func main() {
	// A missing .env is normal; real environment variables still apply.
	_ = godotenv.Load() //nolint:errcheck // optional file

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
