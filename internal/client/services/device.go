package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gutscan/internal/common"
)

const deviceIDBytes = 16

// DeviceID returns the identity of this installation, generating and
// storing a random one on first use.
func DeviceID(ctx context.Context, gw persistence.Gateway) (string, error) {
	repo := metadata.NewRepository(gw)
	v, err := repo.Get(ctx, metadata.DeviceID)
	if err != nil {
		return "", err
	}
	if len(v) > 0 {
		return string(v), nil
	}

	id, err := common.MakeRandHexString(deviceIDBytes)
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	if err := repo.Set(ctx, metadata.DeviceID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}
