package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, "127.0.0.1:50051", c.ServerAddr)
	assert.Equal(t, 30*time.Second, c.ProbeInterval)
	assert.Equal(t, 5*time.Second, c.ProbeTimeout)
	assert.Equal(t, time.Second, c.DebounceWindow)
	assert.Equal(t, time.Minute, c.SyncInterval)
	assert.Equal(t, 50, c.QualityThreshold)
	assert.Equal(t, 8, c.MaxAttempts)
	assert.Equal(t, 30*24*time.Hour, c.Retention)
	require.NoError(t, c.Validate())
}

func TestLoadConfig_NoSources(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), cfg))
}

func TestParseJson(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"server_addr":       "sync.example:9000",
		"sync_interval":     "2m",
		"probe_timeout":     int64(3 * time.Second),
		"sensitive_fields":  []string{"symptoms"},
		"quality_threshold": 70,
	})

	cfg := defaults()
	require.NoError(t, parseJson(cfg, []string{"-config", path}))

	want := defaults()
	want.ServerAddr = "sync.example:9000"
	want.SyncInterval = 2 * time.Minute
	want.ProbeTimeout = 3 * time.Second
	want.SensitiveFields = []string{"symptoms"}
	want.QualityThreshold = 70
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseJson_Errors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

	require.Error(t, parseJson(defaults(), []string{"-c", bad}))
	require.Error(t, parseJson(defaults(), []string{"-c", filepath.Join(t.TempDir(), "missing.json")}))
}

func TestParseEnv(t *testing.T) {
	t.Setenv("GUTSCAN_SERVER_ADDR", "env.example:1")
	t.Setenv("GUTSCAN_SYNC_INTERVAL", "90s")
	t.Setenv("GUTSCAN_MAX_ATTEMPTS", "3")
	t.Setenv("GUTSCAN_SECRET", "s3cret")
	t.Setenv("GUTSCAN_SENSITIVE_FIELDS", "symptoms,notes")

	cfg := defaults()
	require.NoError(t, parseEnv(cfg))

	want := defaults()
	want.ServerAddr = "env.example:1"
	want.SyncInterval = 90 * time.Second
	want.MaxAttempts = 3
	want.Secret = "s3cret"
	want.SensitiveFields = []string{"symptoms", "notes"}
	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseEnv_Invalid(t *testing.T) {
	t.Setenv("GUTSCAN_MAX_ATTEMPTS", "many")
	require.Error(t, parseEnv(defaults()))
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name: "known flags",
			args: []string{"-a", "127.0.0.1:9090", "-i", "10s", "-q", "60", "-status", ""},
			mutate: func(c *Config) {
				c.ServerAddr = "127.0.0.1:9090"
				c.ProbeInterval = 10 * time.Second
				c.QualityThreshold = 60
				c.StatusAddr = ""
			},
		},
		{
			name:   "unknown flags ignored",
			args:   []string{"-x", "1", "-dsn=/tmp/g.db"},
			mutate: func(c *Config) { c.DBDSN = "/tmp/g.db" },
		},
		{name: "bad interval", args: []string{"-i", "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			err := parseFlags(cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			want := defaults()
			tt.mutate(want)
			assert.Empty(t, cmp.Diff(want, cfg))
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"server_addr": "json:1", "db_dsn": "json.db"})
	t.Setenv("GUTSCAN_SERVER_ADDR", "env:1")

	cfg, err := LoadConfig([]string{"-c", path, "-a", "flag:1"})
	require.NoError(t, err)
	assert.Equal(t, "flag:1", cfg.ServerAddr)
	assert.Equal(t, "json.db", cfg.DBDSN)

	cfg, err = LoadConfig([]string{"-c", path})
	require.NoError(t, err)
	assert.Equal(t, "env:1", cfg.ServerAddr)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig([]string{"-q", "150"})
	require.Error(t, err)
}
