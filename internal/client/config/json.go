package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gutscan/internal/flagx"
	"github.com/dmitrijs2005/gutscan/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration so they may be written as "30s" or as nanoseconds.
type JsonConfig struct {
	ServerAddr  string `json:"server_addr"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`

	DBDriver string `json:"db_driver"`
	DBDSN    string `json:"db_dsn"`

	ProbeInterval  timex.Duration `json:"probe_interval"`
	ProbeTimeout   timex.Duration `json:"probe_timeout"`
	DebounceWindow timex.Duration `json:"debounce_window"`

	SyncInterval     timex.Duration `json:"sync_interval"`
	SubmitTimeout    timex.Duration `json:"submit_timeout"`
	QualityThreshold int            `json:"quality_threshold"`
	MaxAttempts      int            `json:"max_attempts"`

	BackoffBase         timex.Duration `json:"backoff_base"`
	BackoffMultiplier   float64        `json:"backoff_multiplier"`
	BackoffMaxDoublings int            `json:"backoff_max_doublings"`
	BackoffCap          timex.Duration `json:"backoff_cap"`

	Retention timex.Duration `json:"retention"`

	SensitiveFields []string `json:"sensitive_fields"`
	StatusAddr      string   `json:"status_addr"`
	LogLevel        string   `json:"log_level"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		ServerAddr:          c.ServerAddr,
		AccessToken:         c.AccessToken,
		DeviceID:            c.DeviceID,
		DBDriver:            c.DBDriver,
		DBDSN:               c.DBDSN,
		ProbeInterval:       timex.Duration{Duration: c.ProbeInterval},
		ProbeTimeout:        timex.Duration{Duration: c.ProbeTimeout},
		DebounceWindow:      timex.Duration{Duration: c.DebounceWindow},
		SyncInterval:        timex.Duration{Duration: c.SyncInterval},
		SubmitTimeout:       timex.Duration{Duration: c.SubmitTimeout},
		QualityThreshold:    c.QualityThreshold,
		MaxAttempts:         c.MaxAttempts,
		BackoffBase:         timex.Duration{Duration: c.BackoffBase},
		BackoffMultiplier:   c.BackoffMultiplier,
		BackoffMaxDoublings: c.BackoffMaxDoublings,
		BackoffCap:          timex.Duration{Duration: c.BackoffCap},
		Retention:           timex.Duration{Duration: c.Retention},
		SensitiveFields:     c.SensitiveFields,
		StatusAddr:          c.StatusAddr,
		LogLevel:            c.LogLevel,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.ServerAddr = jc.ServerAddr
	c.AccessToken = jc.AccessToken
	c.DeviceID = jc.DeviceID
	c.DBDriver = jc.DBDriver
	c.DBDSN = jc.DBDSN
	c.ProbeInterval = jc.ProbeInterval.Duration
	c.ProbeTimeout = jc.ProbeTimeout.Duration
	c.DebounceWindow = jc.DebounceWindow.Duration
	c.SyncInterval = jc.SyncInterval.Duration
	c.SubmitTimeout = jc.SubmitTimeout.Duration
	c.QualityThreshold = jc.QualityThreshold
	c.MaxAttempts = jc.MaxAttempts
	c.BackoffBase = jc.BackoffBase.Duration
	c.BackoffMultiplier = jc.BackoffMultiplier
	c.BackoffMaxDoublings = jc.BackoffMaxDoublings
	c.BackoffCap = jc.BackoffCap.Duration
	c.Retention = jc.Retention.Duration
	c.SensitiveFields = jc.SensitiveFields
	c.StatusAddr = jc.StatusAddr
	c.LogLevel = jc.LogLevel
}

// parseJson overlays cfg with the file named by -c/-config in args. Keys
// missing from the file keep their current values.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	jc := toJson(cfg)
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	jc.apply(cfg)
	return nil
}
