package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/schema-migrator/internal/database"
)

func TestNewPool_invalidURL_returnsInvalidURLError(t *testing.T) {
	t.Parallel()

	_, err := database.NewPool(context.Background(), "not-a-valid-url")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestNewPool_emptyURL_returnsError(t *testing.T) {
	t.Parallel()

	_, err := database.NewPool(context.Background(), "")

	require.Error(t, err)
}

func TestOpenMySQL_invalidDSN(t *testing.T) {
	t.Parallel()

	_, err := database.OpenMySQL(context.Background(), "user:pass@tcp(localhost:3306")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestOpenSQLite_emptyPath(t *testing.T) {
	t.Parallel()

	_, err := database.OpenSQLite(context.Background(), "sqlite://")

	require.ErrorIs(t, err, database.ErrInvalidDatabaseURL)
}

func TestConnect_unsupportedDialect(t *testing.T) {
	t.Parallel()

	tests := []string{database.SQLServer, "oracle", ""}

	for _, dialect := range tests {
		t.Run(dialect, func(t *testing.T) {
			t.Parallel()

			_, closeFn, err := database.Connect(context.Background(), dialect, "whatever")

			require.ErrorIs(t, err, database.ErrUnsupportedDialect)
			assert.Nil(t, closeFn)
		})
	}
}

func TestLockHandle_releaseNilIsNoop(t *testing.T) {
	t.Parallel()

	var h *database.LockHandle

	require.NoError(t, h.Release(context.Background()))
}
