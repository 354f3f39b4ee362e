// Package config handles loading and validating IR bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Hardware (transports, devices, codes) lives in a separate file named by
// protocols.ir.config_file and is loaded by the irbridge package.
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Site.Name)
package config
