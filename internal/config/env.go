package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// parseEnv overlays cfg with values from VERDURE_* environment variables.
// Durations use time.ParseDuration syntax ("5s", "5m").
func parseEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("VERDURE_REMOTE_DSN"); ok {
		cfg.RemoteDSN = v
	}
	if v, ok := os.LookupEnv("VERDURE_TOKEN_SECRET"); ok {
		cfg.TokenSecret = v
	}
	if v, ok := os.LookupEnv("VERDURE_BLOB_PATH"); ok {
		cfg.BlobPath = v
	}
	if v, ok := os.LookupEnv("VERDURE_DEVICE_ID"); ok {
		cfg.DeviceID = v
	}

	if err := envDuration("VERDURE_DEBOUNCE_WINDOW", &cfg.DebounceWindow); err != nil {
		return err
	}
	if err := envDuration("VERDURE_STALE_THRESHOLD", &cfg.StaleThreshold); err != nil {
		return err
	}
	if err := envDuration("VERDURE_SUCCESS_DISPLAY", &cfg.SuccessDisplay); err != nil {
		return err
	}
	if err := envDuration("VERDURE_TELEMETRY_FLUSH_INTERVAL", &cfg.TelemetryFlushInterval); err != nil {
		return err
	}

	if v, ok := os.LookupEnv("VERDURE_TELEMETRY_BATCH_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid VERDURE_TELEMETRY_BATCH_SIZE: %w", err)
		}
		cfg.TelemetryBatchSize = n
	}
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	v, ok := os.LookupEnv(name)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
