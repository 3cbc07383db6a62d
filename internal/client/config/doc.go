// Package config loads runtime configuration for the gutscan client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. GUTSCAN_* environment variables, e.g. GUTSCAN_SERVER_ADDR,
//     GUTSCAN_SYNC_INTERVAL=2m, GUTSCAN_SENSITIVE_FIELDS=symptoms,notes.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "server_addr": "127.0.0.1:50051",
//	  "db_dsn": "/var/lib/gutscan/gutscan.db",
//	  "probe_interval": "30s",
//	  "sync_interval": "1m",
//	  "quality_threshold": 50,
//	  "sensitive_fields": ["symptoms", "notes"]
//	}
//
// The encryption secret is never read from the JSON file.
package config
