// Package config handles loading and validating mqttmon configuration.
//
// This package manages:
//   - Loading configuration from an optional YAML file
//   - Overriding with environment variables
//   - Validation of every field against its allowed range
//   - Default value handling
//
// The monitor must run with no arguments at all, so a missing path means
// "defaults plus environment", not an error. A path that is given but
// cannot be read is an error.
//
// Security Considerations:
//   - Broker and InfluxDB credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(os.Getenv("MQTTMON_CONFIG"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.Broker.Host)
package config
