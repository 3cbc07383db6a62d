// Package services implements the sync endpoint's use cases.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/logging"
	"github.com/dmitrijs2005/gutscan/internal/server/archive"
	"github.com/dmitrijs2005/gutscan/internal/server/models"
	"github.com/dmitrijs2005/gutscan/internal/syncapi"
)

type ScanRepository interface {
	Insert(ctx context.Context, s models.Scan) (bool, error)
}

type FoodRepository interface {
	Get(ctx context.Context, key string) (*models.Food, error)
}

// SyncService accepts scans idempotently and answers food lookups.
type SyncService struct {
	scans   ScanRepository
	foods   FoodRepository
	archive archive.Archiver
	log     logging.Logger
	now     func() time.Time
}

func NewSyncService(scans ScanRepository, foods FoodRepository, arch archive.Archiver, logger logging.Logger) *SyncService {
	if arch == nil {
		arch = archive.Nop{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &SyncService{scans: scans, foods: foods, archive: arch, log: logger.With("module", "sync_service"), now: time.Now}
}

// Submit stores req for deviceID. A redelivered client ID is acknowledged
// with syncapi.StatusDuplicate and changes nothing. Invalid requests fail
// with common.ErrorInvalidArgument.
func (s *SyncService) Submit(ctx context.Context, deviceID string, req syncapi.SubmitScanRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}

	payload, err := json.Marshal(req.Analysis)
	if err != nil {
		return "", fmt.Errorf("%w: analysis: %v", common.ErrorInvalidArgument, err)
	}
	if req.Analysis == nil {
		payload = []byte("{}")
	}

	scan := models.Scan{
		ClientID:   req.ClientID,
		DeviceID:   deviceID,
		FoodKey:    req.FoodKey,
		RecordedAt: req.RecordedAt.UTC(),
		ReceivedAt: s.now().UTC(),
		Payload:    payload,
	}

	inserted, err := s.scans.Insert(ctx, scan)
	if err != nil {
		return "", err
	}
	if !inserted {
		s.log.Info(ctx, "duplicate scan acknowledged", "client_id", req.ClientID, "device_id", deviceID)
		return syncapi.StatusDuplicate, nil
	}

	// the scan is stored; a failed copy must not make the device resend it
	if err := s.archive.Archive(ctx, scan); err != nil {
		s.log.Warn(ctx, "scan archive failed", "client_id", req.ClientID, "error", err)
	}

	s.log.Info(ctx, "scan accepted", "client_id", req.ClientID, "device_id", deviceID)
	return syncapi.StatusAccepted, nil
}

// Lookup returns the catalogue entry for key or common.ErrorNotFound.
func (s *SyncService) Lookup(ctx context.Context, key string) (*models.Food, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", common.ErrorInvalidArgument)
	}
	f, err := s.foods.Get(ctx, key)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.log.Error(ctx, "food lookup failed", "key", key, "error", err)
	}
	return f, err
}
