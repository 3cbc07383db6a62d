package models

import (
	"fmt"
	"time"
)

// ScanResult is what the scan flow hands over after analysing a food item.
// ClientID is generated on the device and lets the remote de-duplicate
// retried submissions.
type ScanResult struct {
	ClientID   string         `json:"client_id"`
	FoodKey    string         `json:"food_key"`
	Analysis   map[string]any `json:"analysis"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// SyncState is the lifecycle state of a queued scan.
type SyncState string

const (
	SyncPending SyncState = "pending"
	SyncSyncing SyncState = "syncing"
	SyncSynced  SyncState = "synced"
	SyncFailed  SyncState = "failed"
)

// Valid reports whether s is one of the known states.
func (s SyncState) Valid() bool {
	switch s {
	case SyncPending, SyncSyncing, SyncSynced, SyncFailed:
		return true
	}
	return false
}

// ParseSyncState converts a stored state string.
func ParseSyncState(v string) (SyncState, error) {
	s := SyncState(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown sync state %q", v)
	}
	return s, nil
}

// QueuedScan is a scan result awaiting delivery to the remote endpoint.
// Analysis holds the stored form, with sensitive fields sealed.
type QueuedScan struct {
	ID            int64          `json:"id"`
	ClientID      string         `json:"client_id"`
	FoodKey       string         `json:"food_key"`
	Analysis      map[string]any `json:"analysis"`
	RecordedAt    time.Time      `json:"recorded_at"`
	State         SyncState      `json:"state"`
	Attempts      int            `json:"attempts"`
	LastAttemptAt time.Time      `json:"last_attempt_at,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
}

// Result converts the queued entry back into the submission shape.
func (q QueuedScan) Result() ScanResult {
	return ScanResult{
		ClientID:   q.ClientID,
		FoodKey:    q.FoodKey,
		Analysis:   q.Analysis,
		RecordedAt: q.RecordedAt,
	}
}
