//go:build integration

package legacy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/datastore"
)

func TestFetcher_MySQL(t *testing.T) {
	ctx := context.Background()

	schema, err := filepath.Abs("testdata/schema.sql")
	require.NoError(t, err)
	seed, err := filepath.Abs("testdata/seed.sql")
	require.NoError(t, err)

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("tcs_catalog"),
		tcmysql.WithUsername("migration"),
		tcmysql.WithPassword("migration"),
		tcmysql.WithScripts(schema, seed),
	)
	t.Cleanup(func() { testcontainers.CleanupContainer(t, container) })
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	require.NoError(t, err)

	db, err := datastore.Open(datastore.Options{Driver: conf.DriverMySQL, DSN: dsn, MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = datastore.Close(db) })

	d, err := NewDialect(conf.DialectStandard, conf.DriverMySQL)
	require.NoError(t, err)
	f := NewFetcher(NewGormQuerier(db), d, nil)

	rows, err := f.FetchPage(ctx, PageRequest{Skip: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1002), rows[0].ID)

	secondary, err := f.FetchSecondary(ctx, []int64{1001, 1002})
	require.NoError(t, err)
	dev := secondary.ForChallenge(1001)
	assert.Len(t, dev.Phases, 2)
	assert.Len(t, dev.Winners, 2)
	assert.Len(t, dev.Registrants, 2)

	md := secondary.ForChallenge(1002).Metadata
	require.Len(t, md, 1)
	require.NotNil(t, md[0].FileTypes)
	assert.Contains(t, *md[0].FileTypes, "pdf")
}
