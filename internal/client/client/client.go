package client

import (
	"context"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
)

// Client is the remote sync endpoint as seen by the rest of the client.
type Client interface {
	Ping(ctx context.Context) error
	SubmitScan(ctx context.Context, scan models.QueuedScan) error
	LookupFood(ctx context.Context, key string) (*models.FoodItem, error)
	Close() error
}
