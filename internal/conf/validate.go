// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/tphakala/challenge-migration/internal/errors"
)

// Legacy SQL dialects
const (
	DialectInformix = "informix"
	DialectStandard = "standard"
)

// Migration modes
const (
	ModeNormal      = "normal"
	ModeRetryFailed = "retry-failed"
)

// End date policies
const (
	EndDateLastPhase       = "last-phase"
	EndDateMaxScheduledEnd = "max-scheduled-end"
)

// Database drivers
const (
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Document store drivers
const (
	DocStoreSurrealDB = "surrealdb"
	DocStoreMemory    = "memory"
)

var sqlDrivers = []string{DriverMySQL, DriverSQLite, DriverPostgres}

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateLegacySettings,
		validateDocStoreSettings,
		validateSearchSettings,
		validateAPISettings,
		validateMigrationSettings,
		validateLedgerSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Category(errors.CategoryValidation).
			Context("error_count", len(ve.Errors)).
			Build()
	}
	return nil
}

func validateLegacySettings(s *Settings) error {
	if !slices.Contains(sqlDrivers, s.Legacy.Driver) {
		return fmt.Errorf("legacy.driver must be one of %v, got %q", sqlDrivers, s.Legacy.Driver)
	}
	if s.Legacy.Dialect != DialectInformix && s.Legacy.Dialect != DialectStandard {
		return fmt.Errorf("legacy.dialect must be %q or %q, got %q", DialectInformix, DialectStandard, s.Legacy.Dialect)
	}
	return validateDSN("legacy", s.Legacy.Driver, s.Legacy.DSN)
}

func validateLedgerSettings(s *Settings) error {
	if !slices.Contains(sqlDrivers, s.Ledger.Driver) {
		return fmt.Errorf("ledger.driver must be one of %v, got %q", sqlDrivers, s.Ledger.Driver)
	}
	if s.Ledger.DSN == "" {
		return fmt.Errorf("ledger.dsn must be set")
	}
	return validateDSN("ledger", s.Ledger.Driver, s.Ledger.DSN)
}

// validateDSN only checks syntax for mysql; an empty legacy DSN is allowed
// so commands that never touch the legacy store still start.
func validateDSN(section, driver, dsn string) error {
	if driver != DriverMySQL || dsn == "" {
		return nil
	}
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return fmt.Errorf("%s.dsn is not a valid mysql DSN: %w", section, err)
	}
	return nil
}

func validateDocStoreSettings(s *Settings) error {
	switch s.DocStore.Driver {
	case DocStoreMemory:
		return nil
	case DocStoreSurrealDB:
		if err := validateURL("docstore.url", s.DocStore.URL, "ws", "wss", "http", "https"); err != nil {
			return err
		}
		if s.DocStore.ChallengeTable == "" || s.DocStore.ChallengeTypeTable == "" {
			return fmt.Errorf("docstore table names must be set")
		}
		return nil
	default:
		return fmt.Errorf("docstore.driver must be %q or %q, got %q", DocStoreSurrealDB, DocStoreMemory, s.DocStore.Driver)
	}
}

func validateSearchSettings(s *Settings) error {
	if len(s.Search.Addresses) == 0 {
		return fmt.Errorf("search.addresses must contain at least one address")
	}
	for _, addr := range s.Search.Addresses {
		if err := validateURL("search.addresses", addr, "http", "https"); err != nil {
			return err
		}
	}
	if s.Search.ChallengeIndex == "" || s.Search.ChallengeTypeIndex == "" {
		return fmt.Errorf("search index names must be set")
	}
	return nil
}

func validateAPISettings(s *Settings) error {
	endpoints := []struct {
		key   string
		value string
	}{
		{"api.timelineurl", s.API.TimelineURL},
		{"api.projectsurl", s.API.ProjectsURL},
		{"api.termsurl", s.API.TermsURL},
		{"api.groupsurl", s.API.GroupsURL},
		{"api.challengetypesurl", s.API.ChallengeTypesURL},
	}
	for _, e := range endpoints {
		if err := validateURL(e.key, e.value, "http", "https"); err != nil {
			return err
		}
	}
	if s.Auth.TokenURL != "" {
		if err := validateURL("auth.tokenurl", s.Auth.TokenURL, "http", "https"); err != nil {
			return err
		}
	}
	if s.API.TermsPerPage <= 0 {
		return fmt.Errorf("api.termsperpage must be positive, got %d", s.API.TermsPerPage)
	}
	if s.API.RequestsPerSecond < 0 {
		return fmt.Errorf("api.requestspersecond must not be negative")
	}
	return nil
}

func validateMigrationSettings(s *Settings) error {
	if s.Migration.Mode != ModeNormal && s.Migration.Mode != ModeRetryFailed {
		return fmt.Errorf("migration.mode must be %q or %q, got %q", ModeNormal, ModeRetryFailed, s.Migration.Mode)
	}
	if s.Migration.BatchSize <= 0 {
		return fmt.Errorf("migration.batchsize must be positive, got %d", s.Migration.BatchSize)
	}
	if s.Migration.StartSkip < 0 || s.Migration.MaxPages < 0 {
		return fmt.Errorf("migration.startskip and migration.maxpages must not be negative")
	}
	if s.Migration.Concurrency <= 0 {
		return fmt.Errorf("migration.concurrency must be positive, got %d", s.Migration.Concurrency)
	}
	switch s.Migration.EndDatePolicy {
	case EndDateLastPhase, EndDateMaxScheduledEnd:
	default:
		return fmt.Errorf("migration.enddatepolicy must be %q or %q, got %q",
			EndDateLastPhase, EndDateMaxScheduledEnd, s.Migration.EndDatePolicy)
	}
	if _, err := ParseCreatedAfter(s.Migration.CreatedAfter); err != nil {
		return err
	}
	return nil
}

func validateURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Host == "" || !slices.Contains(schemes, u.Scheme) {
		return fmt.Errorf("%s must be an absolute %v URL, got %q", key, schemes, raw)
	}
	return nil
}
