package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/cryptox"
	"github.com/dmitrijs2005/gutscan/internal/logging"
	"github.com/google/uuid"
)

type ScanQueue interface {
	EnqueueScanResult(ctx context.Context, r models.ScanResult) (*models.QueuedScan, error)
}

type SyncTrigger interface {
	Trigger()
}

// ScanService records scan results. Every result is queued durably first
// and delivered by the sync coordinator, online or not.
type ScanService struct {
	queue     ScanQueue
	sync      SyncTrigger
	sensitive []string
	log       logging.Logger
	now       func() time.Time
}

func NewScanService(queue ScanQueue, sync SyncTrigger, sensitive []string, logger logging.Logger) *ScanService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ScanService{
		queue:     queue,
		sync:      sync,
		sensitive: sensitive,
		log:       logger.With("module", "scan"),
		now:       time.Now,
	}
}

// Record queues the analysis of foodKey. It fails, and nothing is queued,
// if the local store cannot persist the result.
//
// Record takes ownership of analysis: its sensitive fields are wiped and
// removed before Record returns, whatever the outcome.
func (s *ScanService) Record(ctx context.Context, foodKey string, analysis map[string]any) (*models.QueuedScan, error) {
	defer cryptox.SecureWipe(cryptox.Record(analysis), s.sensitive...)

	if foodKey == "" {
		return nil, fmt.Errorf("%w: empty food key", common.ErrorInvalidArgument)
	}

	q, err := s.queue.EnqueueScanResult(ctx, models.ScanResult{
		ClientID:   uuid.NewString(),
		FoodKey:    foodKey,
		Analysis:   analysis,
		RecordedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "scan recorded", "id", q.ID, "food_key", foodKey)
	if s.sync != nil {
		s.sync.Trigger()
	}
	return q, nil
}
