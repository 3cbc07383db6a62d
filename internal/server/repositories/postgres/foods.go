package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gutscan/internal/common"
	"github.com/dmitrijs2005/gutscan/internal/server/models"
	"github.com/jackc/pgx/v5"
)

// FoodRepo is the food catalogue.
type FoodRepo struct{ db *DB }

func NewFoodRepo(db *DB) *FoodRepo { return &FoodRepo{db: db} }

const selectFood = `SELECT key, name, attributes, updated_at FROM foods WHERE key = $1`

// Get returns the food stored under key or common.ErrorNotFound.
func (r *FoodRepo) Get(ctx context.Context, key string) (*models.Food, error) {
	var (
		f     models.Food
		attrs []byte
	)
	err := r.db.Pool.QueryRow(ctx, selectFood, key).Scan(&f.Key, &f.Name, &attrs, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get food %s: %w", key, err)
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &f.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode attributes of %s: %w", key, err)
		}
	}
	return &f, nil
}

const upsertFood = `INSERT INTO foods (key, name, attributes, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET name = excluded.name, attributes = excluded.attributes, updated_at = excluded.updated_at`

// Upsert writes f, replacing any previous entry with the same key.
func (r *FoodRepo) Upsert(ctx context.Context, f models.Food) error {
	attrs := f.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.db.Pool.Exec(ctx, upsertFood, f.Key, f.Name, b, f.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert food %s: %w", f.Key, err)
	}
	return nil
}
