// Package metadata stores small binary settings of the local database, such
// as the key derivation salt and the key verifier.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
)

// Well-known keys.
const (
	KeySalt     = "kdf_salt"
	KeyVerifier = "key_verifier"
	DeviceID    = "device_id"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// StoreRepository keeps metadata in the "metadata" table of a persistence
// store. It works with either a Gateway or a transactional Store.
type StoreRepository struct {
	s persistence.Store
}

func NewRepository(s persistence.Store) *StoreRepository {
	return &StoreRepository{s: s}
}

// Get returns (nil, nil) when key is absent.
func (r *StoreRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.s.QueryRow(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func (r *StoreRepository) Set(ctx context.Context, key string, value []byte) error {
	err := r.s.Upsert(ctx, "metadata", []string{"key"}, map[string]any{"key": key, "value": value})
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.s.Delete(ctx, "metadata", map[string]any{"key": key}); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *StoreRepository) Clear(ctx context.Context) error {
	if _, err := r.s.Exec(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	return nil
}

func (r *StoreRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.s.Query(ctx, `SELECT key, value FROM metadata`)
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}
	return result, nil
}
