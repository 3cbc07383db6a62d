package postgres

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gutscan/internal/server/models"
)

// ScanRepo stores accepted scans, one row per client ID.
type ScanRepo struct{ db *DB }

func NewScanRepo(db *DB) *ScanRepo { return &ScanRepo{db: db} }

const insertScan = `INSERT INTO scans (client_id, device_id, food_key, recorded_at, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (client_id) DO NOTHING`

// Insert stores s unless a scan with the same client ID exists. It reports
// whether a row was written; false means s is a redelivery.
func (r *ScanRepo) Insert(ctx context.Context, s models.Scan) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, insertScan, s.ClientID, s.DeviceID, s.FoodKey, s.RecordedAt, []byte(s.Payload))
	if err != nil {
		return false, fmt.Errorf("failed to insert scan %s: %w", s.ClientID, err)
	}
	return tag.RowsAffected() == 1, nil
}
