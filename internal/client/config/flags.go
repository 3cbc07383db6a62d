package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gutscan/internal/flagx"
)

var knownFlags = []string{"-a", "-t", "-d", "-dsn", "-driver", "-i", "-s", "-q", "-status", "-log"}

// parseFlags overlays cfg with the command-line flags it owns:
//
//	-a string       server address
//	-t string       access token
//	-d string       device id
//	-driver string  local database driver (sqlite, pgx)
//	-dsn string     local database DSN
//	-i duration     probe interval
//	-s duration     sync interval
//	-q int          quality threshold
//	-status string  status API address, empty to disable
//	-log string     log level
//
// Other arguments are ignored (see flagx.FilterArgs).
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("gutscan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port of the sync server")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "device access token")
	fs.StringVar(&cfg.DeviceID, "d", cfg.DeviceID, "device id")
	fs.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "local database driver")
	fs.StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "local database DSN")
	fs.DurationVar(&cfg.ProbeInterval, "i", cfg.ProbeInterval, "connectivity probe interval")
	fs.DurationVar(&cfg.SyncInterval, "s", cfg.SyncInterval, "periodic sync interval")
	fs.IntVar(&cfg.QualityThreshold, "q", cfg.QualityThreshold, "minimum link quality for sync")
	fs.StringVar(&cfg.StatusAddr, "status", cfg.StatusAddr, "status API address")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
