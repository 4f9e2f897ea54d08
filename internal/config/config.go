// Package config holds runtime settings for the sync subsystem. The
// subsystem is a library, so there is no command-line surface: values come
// from defaults, then an optional JSON file, then environment variables.
// Later sources take precedence over earlier ones.
package config

import "time"

// Config holds runtime settings.
//
// Fields:
//   - RemoteDSN: Postgres connection string for the remote backend. Empty
//     means no backend is configured and sync is a permanent no-op.
//   - TokenSecret: HS256 secret used to verify access tokens.
//   - BlobPath: path of the serialized local snapshot blob.
//   - DeviceID: stable identifier stamped on telemetry events. Generated
//     if left empty.
//   - DebounceWindow: quiet period before a pending upload fires.
//   - StaleThreshold: background time after which foregrounding forces a
//     download.
//   - SuccessDisplay: how long the success status is shown.
//   - TelemetryFlushInterval / TelemetryBatchSize: telemetry queue tuning.
type Config struct {
	RemoteDSN              string
	TokenSecret            string
	BlobPath               string
	DeviceID               string
	DebounceWindow         time.Duration
	StaleThreshold         time.Duration
	SuccessDisplay         time.Duration
	TelemetryFlushInterval time.Duration
	TelemetryBatchSize     int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BlobPath = "verdure.json"
	c.DebounceWindow = 5 * time.Second
	c.StaleThreshold = 5 * time.Minute
	c.SuccessDisplay = 2 * time.Second
	c.TelemetryFlushInterval = 30 * time.Second
	c.TelemetryBatchSize = 50
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the JSON file at jsonPath (if non-empty) and the environment.
func LoadConfig(jsonPath string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, jsonPath); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
