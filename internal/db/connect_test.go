package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteCreatesSchema(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	dbh, err := Open(ctx, DriverSQLite, "file::memory:")
	require.NoError(t, err)
	defer dbh.Close()

	for _, table := range []string{"predictions", "event_log"} {
		var n int
		require.NoError(t, dbh.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&n))
		assert.Equal(t, 1, n, table)
	}
	// idempotent
	require.NoError(t, ensureSchema(ctx, dbh, DriverSQLite))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Driver("mysql"), "")
	assert.ErrorContains(t, err, "unsupported driver")
}
