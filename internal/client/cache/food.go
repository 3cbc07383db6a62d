package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gutscan/internal/client/models"
	"github.com/dmitrijs2005/gutscan/internal/client/persistence"
	"github.com/dmitrijs2005/gutscan/internal/common"
)

// CacheFoodItem stores item under its key, replacing any previous version.
func (c *Cache) CacheFoodItem(ctx context.Context, item models.FoodItem) error {
	if item.Key == "" {
		return fmt.Errorf("%w: empty food key", common.ErrorInvalidArgument)
	}
	if item.CachedAt.IsZero() {
		item.CachedAt = c.now()
	}

	attrs, err := c.seal(item.Attributes)
	if err != nil {
		return err
	}

	return c.mutate(ctx, "cache food item", func(ctx context.Context, s persistence.Store) error {
		return s.Upsert(ctx, "food_cache", []string{"key"}, map[string]any{
			"key":        item.Key,
			"name":       item.Name,
			"name_lower": strings.ToLower(item.Name),
			"attributes": string(attrs),
			"cached_at":  toMillis(item.CachedAt),
		})
	})
}

// LookupFoodItem returns the cached item for key or common.ErrorNotFound.
func (c *Cache) LookupFoodItem(ctx context.Context, key string) (*models.FoodItem, error) {
	row := c.gw.QueryRow(ctx, `SELECT key, name, attributes, cached_at FROM food_cache WHERE key = ?`, key)
	item, err := c.scanFood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// SearchCachedFoods matches query as a case-insensitive substring of cached
// names. An exact name match comes first, the rest follow in name order.
// At most limit items are returned; limit <= 0 yields none.
func (c *Cache) SearchCachedFoods(ctx context.Context, query string, limit int) ([]models.FoodItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := strings.ToLower(strings.TrimSpace(query))

	rows, err := c.gw.Query(ctx, `
		SELECT key, name, attributes, cached_at FROM food_cache
		WHERE name_lower LIKE ? ESCAPE '\'
		ORDER BY CASE WHEN name_lower = ? THEN 0 ELSE 1 END, name_lower, key
		LIMIT ?`,
		"%"+escapeLike(q)+"%", q, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "search foods", Err: err}
	}
	defer rows.Close()

	var out []models.FoodItem
	for rows.Next() {
		item, err := c.scanFood(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "search foods", Err: err}
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (c *Cache) scanFood(r rowScanner) (*models.FoodItem, error) {
	var (
		item     models.FoodItem
		attrs    string
		cachedAt int64
	)
	if err := r.Scan(&item.Key, &item.Name, &attrs, &cachedAt); err != nil {
		return nil, &PersistenceError{Op: "read food item", Err: err}
	}
	m, err := decodeMap(attrs)
	if err != nil {
		return nil, &PersistenceError{Op: "read food item", Err: err}
	}
	if item.Attributes, err = c.open(m); err != nil {
		return nil, err
	}
	item.CachedAt = fromMillis(cachedAt)
	return &item, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
