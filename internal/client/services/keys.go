// Package services holds the client use cases that tie the offline cache,
// the sync coordinator and the remote endpoint together.
package services

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/cryptox"
)

// KeyService turns the configured secret into the field encryptor.
type KeyService interface {
	// Unlock derives the key from secret. On first use it stores a fresh
	// salt and a verifier; afterwards it refuses a secret whose key does
	// not match the verifier with cryptox.ErrKeyMismatch.
	Unlock(ctx context.Context, secret []byte) (*cryptox.FieldEncryptor, error)
}

type keyService struct {
	gw persistence.Gateway
}

func NewKeyService(gw persistence.Gateway) KeyService {
	return &keyService{gw: gw}
}

func (k *keyService) Unlock(ctx context.Context, secret []byte) (*cryptox.FieldEncryptor, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty secret", common.ErrorInvalidArgument)
	}

	repo := metadata.NewRepository(k.gw)
	salt, err := repo.Get(ctx, metadata.KeySalt)
	if err != nil {
		return nil, err
	}
	verifier, err := repo.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return nil, err
	}

	var key []byte
	if salt == nil || verifier == nil {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		key = cryptox.DeriveKey(secret, salt)
		if err := k.saveKeyData(ctx, salt, cryptox.MakeVerifier(key)); err != nil {
			common.WipeByteArray(key)
			return nil, fmt.Errorf("key data saving error: %w", err)
		}
	} else {
		key = cryptox.DeriveKey(secret, salt)
		if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
			common.WipeByteArray(key)
			return nil, cryptox.ErrKeyMismatch
		}
	}
	defer common.WipeByteArray(key)

	return cryptox.NewFieldEncryptor(key)
}

// saveKeyData stores salt and verifier in a single transaction.
func (k *keyService) saveKeyData(ctx context.Context, salt, verifier []byte) error {
	return k.gw.Transaction(ctx, func(ctx context.Context, s persistence.Store) error {
		repo := metadata.NewRepository(s)
		if err := repo.Set(ctx, metadata.KeySalt, salt); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyVerifier, verifier)
	})
}
