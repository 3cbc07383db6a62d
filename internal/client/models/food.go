package models

import "time"

// FoodItem is a locally cached food lookup result, keyed by barcode or
// canonical name. Writes are last-write-wins by Key.
type FoodItem struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
	CachedAt   time.Time      `json:"cached_at"`
}
