package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/verdure-app/verdure/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "5s"
// or as integer nanoseconds. After parsing, set values are copied into the
// runtime Config.
type JsonConfig struct {
	RemoteDSN              string          `json:"remote_dsn"`
	TokenSecret            string          `json:"token_secret"`
	BlobPath               string          `json:"blob_path"`
	DeviceID               string          `json:"device_id"`
	DebounceWindow         *timex.Duration `json:"debounce_window"`
	StaleThreshold         *timex.Duration `json:"stale_threshold"`
	SuccessDisplay         *timex.Duration `json:"success_display"`
	TelemetryFlushInterval *timex.Duration `json:"telemetry_flush_interval"`
	TelemetryBatchSize     *int            `json:"telemetry_batch_size"`
}

// parseJson overlays cfg with values loaded from the JSON file at path.
// An empty path means no JSON is loaded. Only fields present in the file
// override the current values.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.TokenSecret != "" {
		cfg.TokenSecret = jc.TokenSecret
	}
	if jc.BlobPath != "" {
		cfg.BlobPath = jc.BlobPath
	}
	if jc.DeviceID != "" {
		cfg.DeviceID = jc.DeviceID
	}
	if jc.DebounceWindow != nil {
		cfg.DebounceWindow = time.Duration(jc.DebounceWindow.Duration)
	}
	if jc.StaleThreshold != nil {
		cfg.StaleThreshold = time.Duration(jc.StaleThreshold.Duration)
	}
	if jc.SuccessDisplay != nil {
		cfg.SuccessDisplay = time.Duration(jc.SuccessDisplay.Duration)
	}
	if jc.TelemetryFlushInterval != nil {
		cfg.TelemetryFlushInterval = time.Duration(jc.TelemetryFlushInterval.Duration)
	}
	if jc.TelemetryBatchSize != nil {
		cfg.TelemetryBatchSize = *jc.TelemetryBatchSize
	}
	return nil
}
