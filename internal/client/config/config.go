package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the gutscan client.
type Config struct {
	ServerAddr  string `env:"SERVER_ADDR"`
	AccessToken string `env:"ACCESS_TOKEN"`
	DeviceID    string `env:"DEVICE_ID"`

	DBDriver string `env:"DB_DRIVER"`
	DBDSN    string `env:"DB_DSN"`

	ProbeInterval  time.Duration `env:"PROBE_INTERVAL"`
	ProbeTimeout   time.Duration `env:"PROBE_TIMEOUT"`
	DebounceWindow time.Duration `env:"DEBOUNCE_WINDOW"`

	SyncInterval     time.Duration `env:"SYNC_INTERVAL"`
	SubmitTimeout    time.Duration `env:"SUBMIT_TIMEOUT"`
	QualityThreshold int           `env:"QUALITY_THRESHOLD"`
	MaxAttempts      int           `env:"MAX_ATTEMPTS"`

	BackoffBase         time.Duration `env:"BACKOFF_BASE"`
	BackoffMultiplier   float64       `env:"BACKOFF_MULTIPLIER"`
	BackoffMaxDoublings int           `env:"BACKOFF_MAX_DOUBLINGS"`
	BackoffCap          time.Duration `env:"BACKOFF_CAP"`

	Retention time.Duration `env:"RETENTION"`

	// Secret is the key derivation input. It is only read from the
	// environment; when empty the CLI prompts for it.
	Secret          string   `env:"SECRET"`
	SensitiveFields []string `env:"SENSITIVE_FIELDS" envSeparator:","`

	StatusAddr string `env:"STATUS_ADDR"`
	LogLevel   string `env:"LOG_LEVEL"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "127.0.0.1:50051"
	c.DBDriver = "sqlite"
	c.DBDSN = "gutscan.db"

	c.ProbeInterval = 30 * time.Second
	c.ProbeTimeout = 5 * time.Second
	c.DebounceWindow = time.Second

	c.SyncInterval = time.Minute
	c.SubmitTimeout = 10 * time.Second
	c.QualityThreshold = 50
	c.MaxAttempts = 8

	c.BackoffBase = time.Second
	c.BackoffMultiplier = 2
	c.BackoffMaxDoublings = 6
	c.BackoffCap = time.Minute

	c.Retention = 30 * 24 * time.Hour

	c.SensitiveFields = []string{"symptoms", "notes", "verdict"}
	c.StatusAddr = "127.0.0.1:8377"
	c.LogLevel = "info"
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.ServerAddr == "":
		return fmt.Errorf("server address is required")
	case c.DBDSN == "":
		return fmt.Errorf("database DSN is required")
	case c.QualityThreshold < 0 || c.QualityThreshold > 100:
		return fmt.Errorf("quality threshold %d out of range 0..100", c.QualityThreshold)
	case c.MaxAttempts <= 0:
		return fmt.Errorf("max attempts must be positive")
	case c.BackoffMultiplier < 1:
		return fmt.Errorf("backoff multiplier must be at least 1")
	}
	return nil
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then GUTSCAN_* environment variables, then flags. Later
// sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
