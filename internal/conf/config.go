// config.go: settings struct for the migration tool and functions to load it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/challenge-migration/internal/errors"
	"github.com/tphakala/challenge-migration/internal/logger"
	"github.com/tphakala/challenge-migration/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// EnvPrefix prefixes every environment variable override, e.g.
// CHMIG_MIGRATION_BATCHSIZE=500.
const EnvPrefix = "CHMIG"

// LegacySettings configures the read-only connection to the legacy store.
type LegacySettings struct {
	Driver             string        // mysql, sqlite or postgres
	Dialect            string        // informix or standard
	DSN                string        // driver specific data source name
	MaxOpenConns       int           // 0 leaves the driver default
	SlowQueryThreshold time.Duration // statements slower than this are logged at warn
}

// DocStoreSettings configures the document store.
type DocStoreSettings struct {
	Driver             string // surrealdb or memory
	URL                string // ws://host:8000/rpc
	Namespace          string
	Database           string
	Username           string
	Password           string
	ChallengeTable     string
	ChallengeTypeTable string
}

// SearchSettings configures the search index.
type SearchSettings struct {
	Addresses          []string
	Username           string
	Password           string
	ChallengeIndex     string
	ChallengeType      string // document type sent with every request
	ChallengeTypeIndex string
	ChallengeTypeType  string
	Refresh            string // "", "true", "false" or "wait_for"
}

// APISettings configures the reference-data REST lookups.
type APISettings struct {
	TimelineURL       string
	ProjectsURL       string
	TermsURL          string
	GroupsURL         string
	ChallengeTypesURL string
	TermsPerPage      int
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	Burst             int
}

// AuthSettings configures the client-credentials token used for
// authenticated lookups.
type AuthSettings struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
	Scopes       []string
}

// MigrationSettings controls the page loop.
type MigrationSettings struct {
	Mode          string // normal or retry-failed
	BatchSize     int
	StartSkip     int
	MaxPages      int    // 0 means until the source is exhausted
	CreatedAfter  string // RFC 3339 or 2006-01-02; empty disables the filter
	EndDatePolicy string // last-phase or max-scheduled-end
	Concurrency   int    // parallel document writes per page
}

// LedgerSettings configures the error ledger database.
type LedgerSettings struct {
	Driver string // sqlite, mysql or postgres
	DSN    string
}

// MetricsSettings configures the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
	Listen  string
}

// NotificationSettings configures the run summary notification.
type NotificationSettings struct {
	URLs          []string // shoutrrr service URLs
	OnlyOnFailure bool
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// PhaseName is the target name and phase id of a legacy phase type.
type PhaseName struct {
	Name    string
	PhaseID string
}

// Settings contains all configuration options for the migration tool.
type Settings struct {
	Debug bool

	Legacy       LegacySettings
	DocStore     DocStoreSettings
	Search       SearchSettings
	API          APISettings
	Auth         AuthSettings
	Migration    MigrationSettings
	Ledger       LedgerSettings
	Logging      logger.LoggingConfig
	Metrics      MetricsSettings
	Notification NotificationSettings
	Sentry       SentrySettings

	// PhaseNames is keyed by the legacy phase type id
	PhaseNames map[string]PhaseName
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file, environment variables and defaults into
// the global viper instance, validates the result and stores it as the
// current settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	paths, err := GetDefaultConfigPaths()
	if err != nil {
		return nil, err
	}

	settings, err := load(viper.GetViper(), paths)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// LoadFile loads settings from an explicit config file on a fresh viper
// instance.
func LoadFile(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v, nil)
}

func load(v *viper.Viper, paths []string) (*Settings, error) {
	if err := initViper(v, paths); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-settings").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// resolveSecrets replaces file: and ${VAR} references in credential settings.
func resolveSecrets(s *Settings) error {
	fields := map[string]*string{
		"legacy.dsn":        &s.Legacy.DSN,
		"ledger.dsn":        &s.Ledger.DSN,
		"docstore.password": &s.DocStore.Password,
		"search.password":   &s.Search.Password,
		"auth.clientsecret": &s.Auth.ClientSecret,
		"sentry.dsn":        &s.Sentry.DSN,
	}
	for i := range s.Notification.URLs {
		fields[fmt.Sprintf("notification.urls[%d]", i)] = &s.Notification.URLs[i]
	}
	return secrets.ResolveAll(fields)
}

// initViper registers defaults and environment overrides, then reads the
// config file. A missing file is not an error; the embedded defaults apply.
func initViper(v *viper.Viper, paths []string) error {
	v.SetConfigType("yaml")
	if len(paths) > 0 {
		v.SetConfigName("config")
		for _, path := range paths {
			v.AddConfigPath(path)
		}
	}

	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return errors.New(err).
		Category(errors.CategoryConfiguration).
		Context("operation", "read-config").
		Context("config_file", v.ConfigFileUsed()).
		Build()
}

// GetSettings returns the settings stored by the last Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}
	return []string{
		".",
		filepath.Join(homeDir, ".config", "challenge-migration"),
		"/etc/challenge-migration",
	}, nil
}

// DefaultConfig returns the embedded default config.yaml.
func DefaultConfig() (string, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return "", fmt.Errorf("error reading embedded config: %w", err)
	}
	return string(data), nil
}

// PhaseNameFor returns the configured name and phase id of a legacy phase
// type, or ok == false when the type is not mapped.
func (s *Settings) PhaseNameFor(typeID int64) (PhaseName, bool) {
	pn, ok := s.PhaseNames[fmt.Sprint(typeID)]
	return pn, ok
}

// CreatedAfterTime parses Migration.CreatedAfter. The zero time means no filter.
func (s *Settings) CreatedAfterTime() (time.Time, error) {
	return ParseCreatedAfter(s.Migration.CreatedAfter)
}

// ParseCreatedAfter accepts RFC 3339 timestamps and plain dates.
func ParseCreatedAfter(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, errors.Newf("invalid created-after value %q, expected RFC 3339 or YYYY-MM-DD", value).
			Category(errors.CategoryValidation).
			Build()
	}
	return t, nil
}
