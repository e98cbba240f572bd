package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/challenge-migration/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	settings, err := load(viper.New(), []string{t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, settings.Legacy.Driver)
	assert.Equal(t, DialectStandard, settings.Legacy.Dialect)
	assert.Equal(t, 100, settings.Migration.BatchSize)
	assert.Equal(t, ModeNormal, settings.Migration.Mode)
	assert.Equal(t, EndDateLastPhase, settings.Migration.EndDatePolicy)
	assert.Equal(t, 100, settings.API.TermsPerPage)
	assert.Equal(t, 30*time.Second, settings.API.Timeout)
	assert.Equal(t, []string{"http://localhost:9200"}, settings.Search.Addresses)

	pn, ok := settings.PhaseNameFor(1)
	require.True(t, ok)
	assert.Equal(t, "Registration", pn.Name)
	assert.NotEmpty(t, pn.PhaseID)

	_, ok = settings.PhaseNameFor(99)
	assert.False(t, ok)
}

func TestEmbeddedConfigMatchesDefaults(t *testing.T) {
	embedded, err := DefaultConfig()
	require.NoError(t, err)
	path := writeConfig(t, embedded)

	fromFile, err := LoadFile(path)
	require.NoError(t, err)
	fromDefaults, err := load(viper.New(), []string{t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, fromDefaults.Legacy, fromFile.Legacy)
	assert.Equal(t, fromDefaults.DocStore, fromFile.DocStore)
	assert.Equal(t, fromDefaults.Migration, fromFile.Migration)
	assert.Equal(t, fromDefaults.API, fromFile.API)
	assert.Equal(t, fromDefaults.PhaseNames, fromFile.PhaseNames)
	assert.Equal(t, fromDefaults.Search.Addresses, fromFile.Search.Addresses)
}

func TestLoadFile_Overrides(t *testing.T) {
	path := writeConfig(t, `
legacy:
  driver: postgres
  dialect: informix
  dsn: "host=localhost user=ifx dbname=tcs_catalog"
migration:
  batchsize: 25
  enddatepolicy: max-scheduled-end
  createdafter: "2019-06-01"
`)
	settings, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, settings.Legacy.Driver)
	assert.Equal(t, DialectInformix, settings.Legacy.Dialect)
	assert.Equal(t, 25, settings.Migration.BatchSize)
	assert.Equal(t, EndDateMaxScheduledEnd, settings.Migration.EndDatePolicy)

	created, err := settings.CreatedAfterTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), created)
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "migration:\n  batchsize: 25\n")
	t.Setenv("CHMIG_MIGRATION_BATCHSIZE", "7")
	t.Setenv("CHMIG_LEGACY_DIALECT", "informix")

	settings, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, settings.Migration.BatchSize)
	assert.Equal(t, DialectInformix, settings.Legacy.Dialect)
}

func TestLoadFile_Invalid(t *testing.T) {
	path := writeConfig(t, "migration:\n  batchsize: 0\n  mode: sometimes\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "migration.mode")
}

func TestValidateSettings(t *testing.T) {
	valid := func(t *testing.T) *Settings {
		t.Helper()
		s, err := load(viper.New(), []string{t.TempDir()})
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"defaults", func(*Settings) {}, ""},
		{"unknown legacy driver", func(s *Settings) { s.Legacy.Driver = "oracle" }, "legacy.driver"},
		{"unknown dialect", func(s *Settings) { s.Legacy.Dialect = "db2" }, "legacy.dialect"},
		{"bad mysql dsn", func(s *Settings) { s.Legacy.DSN = "user@tcp(localhost" }, "legacy.dsn"},
		{"good mysql dsn", func(s *Settings) { s.Legacy.DSN = "user:pw@tcp(localhost:3306)/tcs_catalog?parseTime=true" }, ""},
		{"negative batch", func(s *Settings) { s.Migration.BatchSize = -1 }, "migration.batchsize"},
		{"unknown policy", func(s *Settings) { s.Migration.EndDatePolicy = "first-phase" }, "migration.enddatepolicy"},
		{"relative api url", func(s *Settings) { s.API.GroupsURL = "/v5/groups" }, "api.groupsurl"},
		{"bad search address", func(s *Settings) { s.Search.Addresses = []string{"ftp://es"} }, "search.addresses"},
		{"memory docstore skips url", func(s *Settings) { s.DocStore.Driver = DocStoreMemory; s.DocStore.URL = "" }, ""},
		{"bad created after", func(s *Settings) { s.Migration.CreatedAfter = "yesterday" }, "created-after"},
		{"empty ledger dsn", func(s *Settings) { s.Ledger.DSN = "" }, "ledger.dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid(t)
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseCreatedAfter(t *testing.T) {
	t.Parallel()

	got, err := ParseCreatedAfter("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	got, err = ParseCreatedAfter("2020-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), got)

	_, err = ParseCreatedAfter("02/01/2020")
	require.Error(t, err)
}

func TestLoadFile_ResolvesSecrets(t *testing.T) {
	secretPath := filepath.Join(t.TempDir(), "client_secret")
	require.NoError(t, os.WriteFile(secretPath, []byte("m2m-secret\n"), 0o600))
	t.Setenv("CHMIG_TEST_DOCSTORE_PASSWORD", "surreal-pw")

	path := writeConfig(t, `
docstore:
  password: "${CHMIG_TEST_DOCSTORE_PASSWORD}"
auth:
  clientsecret: "file:`+secretPath+`"
`)
	settings, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "surreal-pw", settings.DocStore.Password)
	assert.Equal(t, "m2m-secret", settings.Auth.ClientSecret)
}

func TestLoadFile_UnresolvedSecret(t *testing.T) {
	path := writeConfig(t, "search:\n  password: \"${CHMIG_TEST_NOT_SET}\"\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
