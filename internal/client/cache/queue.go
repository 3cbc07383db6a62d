package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/google/uuid"
)

const scanColumns = `id, client_id, food_key, payload, recorded_at, state, attempts, last_attempt_at, last_error`

// EnqueueScanResult seals the analysis and appends the scan to the queue in
// state pending. It returns only after the row is committed.
func (c *Cache) EnqueueScanResult(ctx context.Context, r models.ScanResult) (*models.QueuedScan, error) {
	if r.ClientID == "" {
		r.ClientID = uuid.NewString()
	}
	if r.RecordedAt.IsZero() {
		r.RecordedAt = c.now()
	}

	payload, err := c.seal(r.Analysis)
	if err != nil {
		return nil, err
	}
	stored, err := decodeMap(string(payload))
	if err != nil {
		return nil, err
	}

	q := &models.QueuedScan{
		ClientID:   r.ClientID,
		FoodKey:    r.FoodKey,
		Analysis:   stored,
		RecordedAt: fromMillis(toMillis(r.RecordedAt)),
		State:      models.SyncPending,
	}

	err = c.mutate(ctx, "enqueue scan", func(ctx context.Context, s persistence.Store) error {
		return s.QueryRow(ctx, `
			INSERT INTO scan_queue (client_id, food_key, payload, recorded_at, state, attempts)
			VALUES (?, ?, ?, ?, ?, 0)
			RETURNING id`,
			q.ClientID, q.FoodKey, string(payload), toMillis(q.RecordedAt), string(models.SyncPending),
		).Scan(&q.ID)
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug(ctx, "scan enqueued", "id", q.ID, "client_id", q.ClientID)
	return q, nil
}

// PendingScans lists every entry that has not been synced, oldest first.
func (c *Cache) PendingScans(ctx context.Context) ([]models.QueuedScan, error) {
	return c.listScans(ctx, "pending scans",
		`SELECT `+scanColumns+` FROM scan_queue WHERE state <> ? ORDER BY recorded_at, id`,
		string(models.SyncSynced))
}

// CountPending returns the number of entries not yet synced.
func (c *Cache) CountPending(ctx context.Context) (int, error) {
	var n int
	err := c.gw.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue WHERE state <> ?`, string(models.SyncSynced)).Scan(&n)
	if err != nil {
		return 0, &PersistenceError{Op: "count pending", Err: err}
	}
	return n, nil
}

// StuckScans lists failed entries that reached maxAttempts and are no longer
// retried automatically.
func (c *Cache) StuckScans(ctx context.Context, maxAttempts int) ([]models.QueuedScan, error) {
	return c.listScans(ctx, "stuck scans",
		`SELECT `+scanColumns+` FROM scan_queue WHERE state = ? AND attempts >= ? ORDER BY recorded_at, id`,
		string(models.SyncFailed), maxAttempts)
}

func (c *Cache) CountStuck(ctx context.Context, maxAttempts int) (int, error) {
	var n int
	err := c.gw.QueryRow(ctx, `SELECT COUNT(*) FROM scan_queue WHERE state = ? AND attempts >= ?`,
		string(models.SyncFailed), maxAttempts).Scan(&n)
	if err != nil {
		return 0, &PersistenceError{Op: "count stuck", Err: err}
	}
	return n, nil
}

// Scan returns one queue entry or common.ErrorNotFound.
func (c *Cache) Scan(ctx context.Context, id int64) (*models.QueuedScan, error) {
	q, err := scanQueued(c.gw.QueryRow(ctx, `SELECT `+scanColumns+` FROM scan_queue WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read scan", Err: err}
	}
	return q, nil
}

// OpenScan returns the submission shape of q with sensitive analysis fields
// decrypted.
func (c *Cache) OpenScan(q models.QueuedScan) (models.ScanResult, error) {
	res := q.Result()
	plain, err := c.open(q.Analysis)
	if err != nil {
		return models.ScanResult{}, err
	}
	res.Analysis = plain
	return res, nil
}

// MarkSyncing flags an entry as being submitted.
func (c *Cache) MarkSyncing(ctx context.Context, id int64) error {
	return c.transition(ctx, "mark syncing", id,
		`UPDATE scan_queue SET state = ? WHERE id = ?`,
		string(models.SyncSyncing), id)
}

// MarkSynced records a successful submission.
func (c *Cache) MarkSynced(ctx context.Context, id int64) error {
	return c.transition(ctx, "mark synced", id,
		`UPDATE scan_queue SET state = ?, last_attempt_at = ?, last_error = '' WHERE id = ?`,
		string(models.SyncSynced), toMillis(c.now()), id)
}

// MarkFailed records a failed submission: attempts is incremented and the
// entry stays in the queue.
func (c *Cache) MarkFailed(ctx context.Context, id int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return c.transition(ctx, "mark failed", id,
		`UPDATE scan_queue SET state = ?, attempts = attempts + 1, last_attempt_at = ?, last_error = ? WHERE id = ?`,
		string(models.SyncFailed), toMillis(c.now()), msg, id)
}

// ResetStuck makes failed entries with at least maxAttempts attempts eligible
// again by clearing their attempts. maxAttempts <= 0 resets every failed entry.
func (c *Cache) ResetStuck(ctx context.Context, maxAttempts int) (int64, error) {
	var n int64
	err := c.mutate(ctx, "reset stuck", func(ctx context.Context, s persistence.Store) error {
		res, err := s.Exec(ctx,
			`UPDATE scan_queue SET state = ?, attempts = 0, last_attempt_at = 0, last_error = '' WHERE state = ? AND attempts >= ?`,
			string(models.SyncPending), string(models.SyncFailed), max(maxAttempts, 0))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err == nil && n > 0 {
		c.log.Info(ctx, "stuck scans reset", "count", n)
	}
	return n, err
}

// RecoverInFlight moves entries left in state syncing by an interrupted run
// back to pending.
func (c *Cache) RecoverInFlight(ctx context.Context) (int64, error) {
	var n int64
	err := c.mutate(ctx, "recover in-flight", func(ctx context.Context, s persistence.Store) error {
		res, err := s.Exec(ctx, `UPDATE scan_queue SET state = ? WHERE state = ?`,
			string(models.SyncPending), string(models.SyncSyncing))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err == nil && n > 0 {
		c.log.Warn(ctx, "recovered interrupted submissions", "count", n)
	}
	return n, err
}

// PurgeStale deletes synced entries recorded before olderThan. Pending and
// failed entries are never removed. The payload is blanked before the row is
// deleted.
func (c *Cache) PurgeStale(ctx context.Context, olderThan time.Time) (int64, error) {
	var n int64
	cutoff := toMillis(olderThan)
	err := c.mutate(ctx, "purge stale", func(ctx context.Context, s persistence.Store) error {
		if _, err := s.Exec(ctx, `UPDATE scan_queue SET payload = '{}' WHERE state = ? AND recorded_at < ?`,
			string(models.SyncSynced), cutoff); err != nil {
			return err
		}
		res, err := s.Exec(ctx, `DELETE FROM scan_queue WHERE state = ? AND recorded_at < ?`,
			string(models.SyncSynced), cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err == nil {
		c.log.Debug(ctx, "purged synced scans", "count", n)
	}
	return n, err
}

func (c *Cache) transition(ctx context.Context, op string, id int64, query string, args ...any) error {
	return c.mutate(ctx, op, func(ctx context.Context, s persistence.Store) error {
		res, err := s.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("scan %d: %w", id, common.ErrorNotFound)
		}
		return nil
	})
}

func (c *Cache) listScans(ctx context.Context, op, query string, args ...any) ([]models.QueuedScan, error) {
	rows, err := c.gw.Query(ctx, query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}
	defer rows.Close()

	var out []models.QueuedScan
	for rows.Next() {
		q, err := scanQueued(rows)
		if err != nil {
			return nil, &PersistenceError{Op: op, Err: err}
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: op, Err: err}
	}
	return out, nil
}

func scanQueued(r rowScanner) (*models.QueuedScan, error) {
	var (
		q           models.QueuedScan
		payload     string
		state       string
		recordedAt  int64
		lastAttempt int64
	)
	if err := r.Scan(&q.ID, &q.ClientID, &q.FoodKey, &payload, &recordedAt, &state,
		&q.Attempts, &lastAttempt, &q.LastError); err != nil {
		return nil, err
	}

	var err error
	if q.State, err = models.ParseSyncState(state); err != nil {
		return nil, err
	}
	if q.Analysis, err = decodeMap(payload); err != nil {
		return nil, err
	}
	q.RecordedAt = fromMillis(recordedAt)
	q.LastAttemptAt = fromMillis(lastAttempt)
	return &q, nil
}
