// Package cli provides the interactive gutscan client.
//
// It wires configuration, the encrypted local store, the network monitor,
// the sync coordinator and an optional local status API, then runs a REPL:
//
//	scan <food-key>     record an analysis (queued, synced when online)
//	lookup <food-key>   look a food up, remote first, cache when offline
//	search <text>       search cached foods by name
//	pending             list queued scans
//	stuck               list scans parked after too many failures
//	show <id>           print one queued scan, decrypted
//	sync                drain the queue now
//	resync              retry scans parked after too many failures
//	status              show link quality and queue counters
//	purge               drop synced scans past the retention period
//
// Start with NewApp, then Run, then Shutdown.
package cli
