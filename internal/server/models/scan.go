// Package models holds the records kept by the sync server.
package models

import (
	"encoding/json"
	"time"
)

// Scan is an accepted submission. Payload is the analysis exactly as the
// device sent it; sensitive fields arrive sealed and stay opaque here.
type Scan struct {
	ClientID   string          `json:"client_id"`
	DeviceID   string          `json:"device_id"`
	FoodKey    string          `json:"food_key"`
	RecordedAt time.Time       `json:"recorded_at"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Food is an entry of the server-side food catalogue.
type Food struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
