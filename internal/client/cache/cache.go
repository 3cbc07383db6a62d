// Package cache is the offline store of the client: cached food lookups and
// the queue of scan results waiting to be delivered.
//
// Every mutation runs in its own persistence transaction. Sensitive fields of
// food attributes and scan analyses are sealed before they are written and
// opened on read; a field that cannot be opened surfaces as a
// *cryptox.DecryptionError.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/cryptox"
	"github.com/dmitrijs2005/gutscan/internal/logging"
)

// Sealer seals and opens the sensitive fields of a record.
// *cryptox.FieldEncryptor implements it.
type Sealer interface {
	EncryptRecord(record cryptox.Record, sensitive []string) (cryptox.Record, error)
	DecryptRecord(record cryptox.Record) (cryptox.Record, error)
}

type Cache struct {
	gw        persistence.Gateway
	enc       Sealer
	sensitive []string
	log       logging.Logger
	now       func() time.Time
}

func New(gw persistence.Gateway, enc Sealer, sensitive []string, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Cache{
		gw:        gw,
		enc:       enc,
		sensitive: append([]string(nil), sensitive...),
		log:       logger.With("module", "cache"),
		now:       time.Now,
	}
}

// mutate runs fn in one transaction. Store failures come back as
// *PersistenceError; common.ErrorNotFound is returned as is.
func (c *Cache) mutate(ctx context.Context, op string, fn func(ctx context.Context, s persistence.Store) error) error {
	err := c.gw.Transaction(ctx, fn)
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (c *Cache) seal(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	sealed, err := c.enc.EncryptRecord(cryptox.Record(m), c.sensitive)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sealed)
}

func (c *Cache) open(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	plain, err := c.enc.DecryptRecord(cryptox.Record(m))
	if err != nil {
		return nil, err
	}
	return map[string]any(plain), nil
}

func decodeMap(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return m, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
