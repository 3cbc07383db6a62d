package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	files, err := fs.Glob(Migrations, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "00001_init.sql")
}

func TestRun_UsesGoose(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, d *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		assert.Same(t, db, d)
		return nil
	}
	require.NoError(t, Run(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	boom := errors.New("boom")
	gooseUpContext = func(ctx context.Context, d *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}
	require.ErrorIs(t, Run(context.Background(), db), boom)
}

func TestUp_OpenError(t *testing.T) {
	orig := sqlOpen
	t.Cleanup(func() { sqlOpen = orig })

	boom := errors.New("no driver")
	sqlOpen = func(driver, dsn string) (*sql.DB, error) { return nil, boom }
	require.ErrorIs(t, Up(context.Background(), "postgres://x"), boom)
}
