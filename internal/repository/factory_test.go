package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := New(ctx, Config{Backend: "Memory"})
		require.NoError(t, err)
		assert.Equal(t, BackendMemory, repo.Name())
		assert.NoError(t, repo.Close())
	})

	t.Run("sqlite file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bench.db")
		repo, err := New(ctx, Config{Backend: "sqlite3", DSN: path})
		require.NoError(t, err)
		defer repo.Close()
		assert.Equal(t, BackendSQLite, repo.Name())
		require.NoError(t, repo.Prepare(ctx))
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := New(ctx, Config{Backend: "mongo"})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("postgres backends need a DSN", func(t *testing.T) {
		for _, backend := range []string{BackendPostgres, BackendPgx, BackendSqlx, BackendGorm} {
			_, err := New(ctx, Config{Backend: backend})
			var setupErr *SetupError
			require.ErrorAs(t, err, &setupErr, backend)
			assert.Equal(t, backend, setupErr.Backend)
		}
	})

	t.Run("invalid table name", func(t *testing.T) {
		_, err := New(ctx, Config{Backend: BackendSQLite, Table: "products; DROP TABLE x"})
		assert.Error(t, err)
	})
}

func TestDefaultTable(t *testing.T) {
	assert.Equal(t, "products", DefaultTable(BackendMemory))
	assert.Equal(t, "products", DefaultTable(BackendSQLite))
	assert.Equal(t, "products", DefaultTable(BackendPostgres))
	assert.Equal(t, "sqlx_products", DefaultTable(BackendSqlx))
	assert.Equal(t, "gorm_products", DefaultTable(BackendGorm))
	assert.Equal(t, "pgx_products", DefaultTable(BackendPgx))
}

func TestCanonical(t *testing.T) {
	tests := map[string]string{
		"memory":     BackendMemory,
		"Mem":        BackendMemory,
		"sqlite3":    BackendSQLite,
		" SQLite ":   BackendSQLite,
		"postgresql": BackendPostgres,
		"PG":         BackendPostgres,
		"gorm":       BackendGorm,
		"MongoDB":    "mongodb",
	}
	for in, want := range tests {
		assert.Equal(t, want, Canonical(in), in)
	}

	assert.True(t, NeedsPostgres("postgresql"))
	assert.False(t, NeedsPostgres("sqlite3"))
	assert.Equal(t, "products", DefaultTable("postgresql"))
}

func TestNew_AliasNeedsDSN(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "PostgreSQL"})
	var setupErr *SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, BackendPostgres, setupErr.Backend)
}

func TestReadPattern(t *testing.T) {
	assert.Equal(t, 10, FixedWindow.limit(0, 0))
	assert.Equal(t, 10, FixedWindow.limit(99, 10))
	assert.Equal(t, 3, FixedWindow.limit(5, 3))
	assert.Equal(t, 1, GrowingWindow.limit(0, 10))
	assert.Equal(t, 8, GrowingWindow.limit(7, 10))

	p, err := ParseReadPattern("growing")
	require.NoError(t, err)
	assert.Equal(t, GrowingWindow, p)

	p, err = ParseReadPattern("")
	require.NoError(t, err)
	assert.Equal(t, FixedWindow, p)

	_, err = ParseReadPattern("random")
	assert.Error(t, err)
}

func TestMemoryRepository_ReadWindow(t *testing.T) {
	repo := NewMemoryRepository(Config{ReadLimit: 4})
	require.NoError(t, repo.Insert(context.Background(), 10))

	assert.Len(t, repo.first(4), 4)
	assert.Len(t, repo.first(50), 10)
	assert.Equal(t, "product #0", repo.first(1)[0].Name)
	assert.Equal(t, 900.0, repo.products[9].Price)
}
