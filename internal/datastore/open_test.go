package datastore

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
)

func TestOpen_SQLiteMemory(t *testing.T) {
	t.Parallel()

	db, err := Open(Options{Driver: conf.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	var one int
	require.NoError(t, db.Raw("select 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestOpen_SQLiteFileCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	db, err := Open(Options{Driver: conf.DriverSQLite, DSN: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", strings.ToLower(mode))
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     Options
		category errors.ErrorCategory
	}{
		{"empty dsn", Options{Driver: conf.DriverMySQL}, errors.CategoryConfiguration},
		{"unknown driver", Options{Driver: "oracle", DSN: "x"}, errors.CategoryConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Open(tt.opts)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, tt.category))
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	dsn, err := sqliteDSN(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", dsn)

	dsn, err = sqliteDSN("file.db?mode=ro")
	require.NoError(t, err)
	assert.Equal(t, "file.db?mode=ro", dsn)

	dsn, err = sqliteDSN("ledger.db")
	require.NoError(t, err)
	assert.Equal(t, "ledger.db?"+sqlitePragmas, dsn)
}

func TestClose_Nil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Close(nil))
}
