package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultPollIntervalMS       = 1000
	DefaultRequestTimeoutMS     = 5000
	DefaultBatchCeiling         = 50
	DefaultYieldEvery           = 10
	DefaultMaxBackoffMS         = 30000
	DefaultMaxConsecutiveErrors = 15
	DefaultEventQueueSize       = 256

	DefaultPacketRetention  = 1000
	DefaultAckTimeoutS      = 120
	DefaultWriteQueueSize   = 256
	DefaultBusyTimeoutMS    = 5000
	DefaultDiagnosticsLimit = 500
)

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level     string `json:"level"`
	LogToFile bool   `json:"log_to_file"`
}

// ConnectionConfig describes the radio's HTTP endpoint.
type ConnectionConfig struct {
	Address     string `json:"address"`
	Port        int    `json:"port"`
	UseTLS      bool   `json:"use_tls"`
	InsecureTLS bool   `json:"insecure_tls"`
}

// PollingConfig tunes the transport polling loop. The exact numbers are not
// semantically load-bearing; zero values fall back to defaults.
type PollingConfig struct {
	IntervalMS           int `json:"interval_ms"`
	RequestTimeoutMS     int `json:"request_timeout_ms"`
	BatchCeiling         int `json:"batch_ceiling"`
	YieldEvery           int `json:"yield_every"`
	MaxBackoffMS         int `json:"max_backoff_ms"`
	MaxConsecutiveErrors int `json:"max_consecutive_errors"`
	EventQueueSize       int `json:"event_queue_size"`
}

// StorageConfig tunes persistence retention and delivery tracking.
type StorageConfig struct {
	PacketRetention  int `json:"packet_retention"`
	AckTimeoutS      int `json:"ack_timeout_s"`
	WriteQueueSize   int `json:"write_queue_size"`
	BusyTimeoutMS    int `json:"busy_timeout_ms"`
	DiagnosticsLimit int `json:"diagnostics_limit"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Session    string           `json:"session"`
	Connection ConnectionConfig `json:"connection"`
	Polling    PollingConfig    `json:"polling"`
	Storage    StorageConfig    `json:"storage"`
	Logging    LoggingConfig    `json:"logging"`
}

func Default() AppConfig {
	return AppConfig{
		Session: "default",
		Connection: ConnectionConfig{
			Address:     "",
			Port:        0,
			UseTLS:      false,
			InsecureTLS: false,
		},
		Polling: PollingConfig{
			IntervalMS:           DefaultPollIntervalMS,
			RequestTimeoutMS:     DefaultRequestTimeoutMS,
			BatchCeiling:         DefaultBatchCeiling,
			YieldEvery:           DefaultYieldEvery,
			MaxBackoffMS:         DefaultMaxBackoffMS,
			MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
			EventQueueSize:       DefaultEventQueueSize,
		},
		Storage: StorageConfig{
			PacketRetention:  DefaultPacketRetention,
			AckTimeoutS:      DefaultAckTimeoutS,
			WriteQueueSize:   DefaultWriteQueueSize,
			BusyTimeoutMS:    DefaultBusyTimeoutMS,
			DiagnosticsLimit: DefaultDiagnosticsLimit,
		},
		Logging: LoggingConfig{
			Level:     "info",
			LogToFile: false,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to user config dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if strings.TrimSpace(c.Session) == "" {
		c.Session = "default"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Polling.IntervalMS <= 0 {
		c.Polling.IntervalMS = DefaultPollIntervalMS
	}
	if c.Polling.RequestTimeoutMS <= 0 {
		c.Polling.RequestTimeoutMS = DefaultRequestTimeoutMS
	}
	if c.Polling.BatchCeiling <= 0 {
		c.Polling.BatchCeiling = DefaultBatchCeiling
	}
	if c.Polling.YieldEvery <= 0 {
		c.Polling.YieldEvery = DefaultYieldEvery
	}
	if c.Polling.MaxBackoffMS <= 0 {
		c.Polling.MaxBackoffMS = DefaultMaxBackoffMS
	}
	if c.Polling.MaxConsecutiveErrors <= 0 {
		c.Polling.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	if c.Polling.EventQueueSize <= 0 {
		c.Polling.EventQueueSize = DefaultEventQueueSize
	}
	if c.Storage.PacketRetention <= 0 {
		c.Storage.PacketRetention = DefaultPacketRetention
	}
	if c.Storage.AckTimeoutS <= 0 {
		c.Storage.AckTimeoutS = DefaultAckTimeoutS
	}
	if c.Storage.WriteQueueSize <= 0 {
		c.Storage.WriteQueueSize = DefaultWriteQueueSize
	}
	if c.Storage.BusyTimeoutMS <= 0 {
		c.Storage.BusyTimeoutMS = DefaultBusyTimeoutMS
	}
	if c.Storage.DiagnosticsLimit <= 0 {
		c.Storage.DiagnosticsLimit = DefaultDiagnosticsLimit
	}
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Connection.Address) == "" {
		return errors.New("connection address is required")
	}
	if c.Connection.Port < 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("connection port out of range: %d", c.Connection.Port)
	}

	return nil
}

// PollInterval returns the polling cadence as a duration.
func (c PollingConfig) PollInterval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// RequestTimeout returns the per-request HTTP timeout as a duration.
func (c PollingConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// MaxBackoff returns the backoff delay ceiling as a duration.
func (c PollingConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

// AckTimeout returns the delivery acknowledgment window as a duration.
func (c StorageConfig) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutS) * time.Second
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace config file: %w", err)
	}

	return nil
}
