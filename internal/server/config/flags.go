package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gutscan/internal/flagx"
)

var knownFlags = []string{"-a", "-d", "-s", "-t", "-rate", "-burst", "-archive", "-b", "-g", "-e", "-log"}

// parseFlags overlays cfg with the flags it owns:
//
//	-a string      gRPC bind address (e.g. ":50051")
//	-d string      PostgreSQL DSN
//	-s string      token signing key
//	-t duration    token validity, 0 for non-expiring tokens
//	-rate duration per-device refill interval
//	-burst int     per-device burst size
//	-archive bool  archive accepted scans to S3
//	-b string      S3 bucket
//	-g string      S3 region
//	-e string      S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-log string    log level
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("gutscan-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "secret key")
	fs.DurationVar(&cfg.TokenValidity, "t", cfg.TokenValidity, "token validity")
	fs.DurationVar(&cfg.RateInterval, "rate", cfg.RateInterval, "rate limit refill interval")
	fs.IntVar(&cfg.RateBurst, "burst", cfg.RateBurst, "rate limit burst")
	fs.BoolVar(&cfg.ArchiveEnabled, "archive", cfg.ArchiveEnabled, "archive accepted scans")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Region, "g", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&cfg.LogLevel, "log", cfg.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
