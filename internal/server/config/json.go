package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gutscan/internal/flagx"
	"github.com/dmitrijs2005/gutscan/internal/timex"
)

// JsonConfig is the on-disk form of Config. Durations accept "1s" strings
// as well as integer nanoseconds.
type JsonConfig struct {
	ListenAddr     string         `json:"listen_addr"`
	DatabaseDSN    string         `json:"database_dsn"`
	SecretKey      string         `json:"secret_key"`
	TokenValidity  timex.Duration `json:"token_validity"`
	RateInterval   timex.Duration `json:"rate_interval"`
	RateBurst      int            `json:"rate_burst"`
	ArchiveEnabled bool           `json:"archive_enabled"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	LogLevel       string         `json:"log_level"`
}

func toJson(c *Config) JsonConfig {
	return JsonConfig{
		ListenAddr:     c.ListenAddr,
		DatabaseDSN:    c.DatabaseDSN,
		SecretKey:      c.SecretKey,
		TokenValidity:  timex.Duration{Duration: c.TokenValidity},
		RateInterval:   timex.Duration{Duration: c.RateInterval},
		RateBurst:      c.RateBurst,
		ArchiveEnabled: c.ArchiveEnabled,
		S3Bucket:       c.S3Bucket,
		S3Region:       c.S3Region,
		S3BaseEndpoint: c.S3BaseEndpoint,
		S3AccessKey:    c.S3AccessKey,
		S3SecretKey:    c.S3SecretKey,
		LogLevel:       c.LogLevel,
	}
}

func (jc JsonConfig) apply(c *Config) {
	c.ListenAddr = jc.ListenAddr
	c.DatabaseDSN = jc.DatabaseDSN
	c.SecretKey = jc.SecretKey
	c.TokenValidity = jc.TokenValidity.Duration
	c.RateInterval = jc.RateInterval.Duration
	c.RateBurst = jc.RateBurst
	c.ArchiveEnabled = jc.ArchiveEnabled
	c.S3Bucket = jc.S3Bucket
	c.S3Region = jc.S3Region
	c.S3BaseEndpoint = jc.S3BaseEndpoint
	c.S3AccessKey = jc.S3AccessKey
	c.S3SecretKey = jc.S3SecretKey
	c.LogLevel = jc.LogLevel
}

// parseJson overlays cfg with the file named by -c/-config. Keys missing
// from the file keep their current values.
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
