// Package models defines the client-side data shapes shared by the cache,
// the sync coordinator and the network monitor.
package models

import "time"

// NetworkStatus is a point-in-time snapshot of connectivity. It is owned by
// the network monitor and handed out by value.
type NetworkStatus struct {
	Reachable     bool      `json:"reachable"`
	QualityScore  int       `json:"quality_score"`
	LatencyMs     int64     `json:"latency_ms"`
	LastOnlineAt  time.Time `json:"last_online_at,omitempty"`
	LastOfflineAt time.Time `json:"last_offline_at,omitempty"`
}
