package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/logging"
)

// FoodSource is the remote food lookup engine.
type FoodSource interface {
	LookupFood(ctx context.Context, key string) (*models.FoodItem, error)
}

type FoodCache interface {
	CacheFoodItem(ctx context.Context, item models.FoodItem) error
	LookupFoodItem(ctx context.Context, key string) (*models.FoodItem, error)
	SearchCachedFoods(ctx context.Context, query string, limit int) ([]models.FoodItem, error)
}

type Reachability interface {
	IsReachable() bool
}

// FoodService answers lookups from the remote when the link is up and keeps
// the local cache warm; otherwise, or when the remote fails, it answers from
// the cache.
type FoodService struct {
	remote FoodSource
	cache  FoodCache
	net    Reachability
	log    logging.Logger
	now    func() time.Time
}

func NewFoodService(remote FoodSource, cache FoodCache, net Reachability, logger logging.Logger) *FoodService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &FoodService{remote: remote, cache: cache, net: net, log: logger.With("module", "food"), now: time.Now}
}

// Lookup returns the item and whether it came from the local cache.
func (s *FoodService) Lookup(ctx context.Context, key string) (*models.FoodItem, bool, error) {
	if s.net.IsReachable() {
		item, err := s.remote.LookupFood(ctx, key)
		switch {
		case err == nil:
			item.CachedAt = s.now()
			if err := s.cache.CacheFoodItem(ctx, *item); err != nil {
				s.log.Warn(ctx, "failed to cache food item", "key", key, "error", err)
			}
			return item, false, nil
		case errors.Is(err, common.ErrorNotFound):
			return nil, false, err
		default:
			s.log.Warn(ctx, "remote lookup failed, using cache", "key", key, "error", err)
		}
	}

	item, err := s.cache.LookupFoodItem(ctx, key)
	if err != nil {
		return nil, true, err
	}
	return item, true, nil
}

func (s *FoodService) Search(ctx context.Context, query string, limit int) ([]models.FoodItem, error) {
	return s.cache.SearchCachedFoods(ctx, query, limit)
}
