package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSensitive = []string{"symptoms", "verdict"}

type fixture struct {
	path string
	key  []byte
	gw   *persistence.DB
	c    *Cache
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		path: filepath.Join(t.TempDir(), "cache.db"),
		key:  common.GenerateRandByteArray(cryptox.KeySize),
	}
	f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	gw, err := persistence.Open(context.Background(), persistence.Config{Driver: "sqlite", DSN: f.path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	enc, err := cryptox.NewFieldEncryptor(f.key)
	require.NoError(t, err)

	f.gw = gw
	f.c = New(gw, enc, testSensitive, nil)
}

// reopen simulates a process restart against the same database file.
func (f *fixture) reopen(t *testing.T) {
	t.Helper()
	require.NoError(t, f.gw.Close())
	f.open(t)
}

func scanAt(key string, at time.Time) models.ScanResult {
	return models.ScanResult{
		FoodKey:    key,
		RecordedAt: at,
		Analysis:   map[string]any{"score": float64(61), "symptoms": "bloating", "verdict": "avoid"},
	}
}

func TestCacheFoodItem_UpsertAndLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: "400", Name: "Greek Yogurt",
		Attributes: map[string]any{"fodmap": "low", "verdict": "safe"}}))
	require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: "400", Name: "Greek Yogurt 2%",
		Attributes: map[string]any{"fodmap": "medium", "verdict": "moderate"}}))

	got, err := f.c.LookupFoodItem(ctx, "400")
	require.NoError(t, err)
	assert.Equal(t, "Greek Yogurt 2%", got.Name)
	assert.Equal(t, map[string]any{"fodmap": "medium", "verdict": "moderate"}, got.Attributes)
	assert.False(t, got.CachedAt.IsZero())

	var raw string
	require.NoError(t, f.gw.QueryRow(ctx, `SELECT attributes FROM food_cache WHERE key = ?`, "400").Scan(&raw))
	assert.NotContains(t, raw, "moderate")
	assert.Contains(t, raw, "medium")
}

func TestLookupFoodItem_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.c.LookupFoodItem(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestCacheFoodItem_EmptyKey(t *testing.T) {
	f := newFixture(t)
	err := f.c.CacheFoodItem(context.Background(), models.FoodItem{Name: "x"})
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestSearchCachedFoods_Ranking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i, name := range []string{"Oat Milk", "milk", "Almond Milk", "Milk Chocolate", "Bread", "100% Milk_Fat"} {
		require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: string(rune('a' + i)), Name: name}))
	}

	got, err := f.c.SearchCachedFoods(ctx, "MILK", 10)
	require.NoError(t, err)
	var names []string
	for _, it := range got {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"milk", "100% Milk_Fat", "Almond Milk", "Milk Chocolate", "Oat Milk"}, names)

	got, err = f.c.SearchCachedFoods(ctx, "milk", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "milk", got[0].Name)

	got, err = f.c.SearchCachedFoods(ctx, "milk", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchCachedFoods_EscapesWildcards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: "1", Name: "100% juice"}))
	require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: "2", Name: "1000 island"}))
	require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: "3", Name: "snake_case"}))
	require.NoError(t, f.c.CacheFoodItem(ctx, models.FoodItem{Key: "4", Name: "snakes"}))

	got, err := f.c.SearchCachedFoods(ctx, "0%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100% juice", got[0].Name)

	got, err = f.c.SearchCachedFoods(ctx, "e_c", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "snake_case", got[0].Name)
}

func TestEnqueueScanResult_SealsAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.c.EnqueueScanResult(ctx, scanAt("400", time.Now()))
	require.NoError(t, err)
	assert.Positive(t, q.ID)
	assert.NotEmpty(t, q.ClientID)
	assert.Equal(t, models.SyncPending, q.State)
	assert.Zero(t, q.Attempts)
	assert.True(t, cryptox.IsSealed(q.Analysis["symptoms"]))
	assert.Equal(t, float64(61), q.Analysis["score"])

	var payload string
	require.NoError(t, f.gw.QueryRow(ctx, `SELECT payload FROM scan_queue WHERE id = ?`, q.ID).Scan(&payload))
	assert.NotContains(t, payload, "bloating")

	opened, err := f.c.OpenScan(*q)
	require.NoError(t, err)
	assert.Equal(t, "bloating", opened.Analysis["symptoms"])
	assert.Equal(t, "avoid", opened.Analysis["verdict"])
}

func TestEnqueueScanResult_IDsIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		q, err := f.c.EnqueueScanResult(ctx, scanAt("k", time.Now()))
		require.NoError(t, err)
		require.Greater(t, q.ID, last)
		last = q.ID
	}
}

func TestEnqueueScanResult_DurableAcrossRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.c.EnqueueScanResult(ctx, scanAt("400", time.Now()))
	require.NoError(t, err)

	f.reopen(t)

	pending, err := f.c.PendingScans(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, q.ID, pending[0].ID)
	assert.Equal(t, q.ClientID, pending[0].ClientID)

	opened, err := f.c.OpenScan(pending[0])
	require.NoError(t, err)
	assert.Equal(t, "bloating", opened.Analysis["symptoms"])
}

func TestEnqueueScanResult_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.Close())

	q, err := f.c.EnqueueScanResult(context.Background(), scanAt("400", time.Now()))
	require.Error(t, err)
	assert.Nil(t, q)

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "enqueue scan", pe.Op)
}

func TestEnqueueScanResult_DuplicateClientID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := scanAt("400", time.Now())
	r.ClientID = "fixed"
	_, err := f.c.EnqueueScanResult(ctx, r)
	require.NoError(t, err)

	_, err = f.c.EnqueueScanResult(ctx, r)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)

	n, err := f.c.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPendingScans_FIFOAfterRetries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	// enqueued out of order on purpose
	q3, err := f.c.EnqueueScanResult(ctx, scanAt("c", base.Add(3*time.Minute)))
	require.NoError(t, err)
	q1, err := f.c.EnqueueScanResult(ctx, scanAt("a", base.Add(1*time.Minute)))
	require.NoError(t, err)
	q2, err := f.c.EnqueueScanResult(ctx, scanAt("b", base.Add(2*time.Minute)))
	require.NoError(t, err)

	require.NoError(t, f.c.MarkFailed(ctx, q1.ID, errors.New("timeout")))
	require.NoError(t, f.c.MarkFailed(ctx, q1.ID, errors.New("timeout")))

	pending, err := f.c.PendingScans(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []int64{q1.ID, q2.ID, q3.ID}, []int64{pending[0].ID, pending[1].ID, pending[2].ID})
	assert.Equal(t, models.SyncFailed, pending[0].State)
	assert.Equal(t, 2, pending[0].Attempts)
	assert.Equal(t, "timeout", pending[0].LastError)
	assert.False(t, pending[0].LastAttemptAt.IsZero())
	assert.True(t, base.Add(time.Minute).Equal(pending[0].RecordedAt))
}

func TestTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.c.EnqueueScanResult(ctx, scanAt("a", time.Now()))
	require.NoError(t, err)

	require.NoError(t, f.c.MarkSyncing(ctx, q.ID))
	got, err := f.c.Scan(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSyncing, got.State)

	require.NoError(t, f.c.MarkSynced(ctx, q.ID))
	got, err = f.c.Scan(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, got.State)

	pending, err := f.c.PendingScans(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestTransitions_UnknownID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.c.MarkSynced(ctx, 999), common.ErrorNotFound)
	require.ErrorIs(t, f.c.MarkFailed(ctx, 999, errors.New("x")), common.ErrorNotFound)
	require.ErrorIs(t, f.c.MarkSyncing(ctx, 999), common.ErrorNotFound)

	_, err := f.c.Scan(ctx, 999)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStuckAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stuck, err := f.c.EnqueueScanResult(ctx, scanAt("a", time.Now()))
	require.NoError(t, err)
	retrying, err := f.c.EnqueueScanResult(ctx, scanAt("b", time.Now()))
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		require.NoError(t, f.c.MarkFailed(ctx, stuck.ID, errors.New("timeout")))
	}
	require.NoError(t, f.c.MarkFailed(ctx, retrying.ID, errors.New("timeout")))

	n, err := f.c.CountStuck(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := f.c.StuckScans(ctx, 8)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, stuck.ID, list[0].ID)

	reset, err := f.c.ResetStuck(ctx, 8)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	got, err := f.c.Scan(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPending, got.State)
	assert.Zero(t, got.Attempts)

	got, err = f.c.Scan(ctx, retrying.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)

	reset, err = f.c.ResetStuck(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)
}

func TestRecoverInFlight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.c.EnqueueScanResult(ctx, scanAt("a", time.Now()))
	require.NoError(t, err)
	require.NoError(t, f.c.MarkSyncing(ctx, q.ID))

	f.reopen(t)

	n, err := f.c.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := f.c.Scan(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncPending, got.State)
}

func TestPurgeStale_OnlySynced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := time.Now().Add(-60 * 24 * time.Hour)

	synced, err := f.c.EnqueueScanResult(ctx, scanAt("a", old))
	require.NoError(t, err)
	pending, err := f.c.EnqueueScanResult(ctx, scanAt("b", old))
	require.NoError(t, err)
	failed, err := f.c.EnqueueScanResult(ctx, scanAt("c", old))
	require.NoError(t, err)
	fresh, err := f.c.EnqueueScanResult(ctx, scanAt("d", time.Now()))
	require.NoError(t, err)

	require.NoError(t, f.c.MarkSynced(ctx, synced.ID))
	require.NoError(t, f.c.MarkSynced(ctx, fresh.ID))
	for i := 0; i < 8; i++ {
		require.NoError(t, f.c.MarkFailed(ctx, failed.ID, errors.New("x")))
	}

	n, err := f.c.PurgeStale(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.c.Scan(ctx, synced.ID)
	require.ErrorIs(t, err, common.ErrorNotFound)
	for _, id := range []int64{pending.ID, failed.ID, fresh.ID} {
		_, err := f.c.Scan(ctx, id)
		require.NoError(t, err)
	}
}

func TestOpenScan_WrongKeySurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.c.EnqueueScanResult(ctx, scanAt("a", time.Now()))
	require.NoError(t, err)

	other, err := cryptox.NewFieldEncryptor(common.GenerateRandByteArray(cryptox.KeySize))
	require.NoError(t, err)
	c2 := New(f.gw, other, testSensitive, nil)

	_, err = c2.OpenScan(*q)
	require.ErrorIs(t, err, cryptox.ErrDecryptFailed)

	require.NoError(t, c2.CacheFoodItem(ctx, models.FoodItem{Key: "k", Name: "n", Attributes: map[string]any{"verdict": "x"}}))
	_, err = f.c.LookupFoodItem(ctx, "k")
	require.ErrorIs(t, err, cryptox.ErrDecryptFailed)
}
