package legacy

import (
	"fmt"
	"math"

	"github.com/tphakala/challenge-migration/internal/conf"
	"github.com/tphakala/challenge-migration/internal/errors"
)

// Dialect renders the parts of the legacy queries that differ between the
// Informix source and the standard SQL engines used for replicas and tests.
type Dialect struct {
	name   string
	driver string
}

// NewDialect returns the dialect for a configured name and connection driver.
func NewDialect(name, driver string) (Dialect, error) {
	switch name {
	case conf.DialectInformix, conf.DialectStandard:
	default:
		return Dialect{}, errors.Newf("unknown legacy dialect %q", name).
			Component("legacy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	switch driver {
	case conf.DriverMySQL, conf.DriverSQLite, conf.DriverPostgres:
	default:
		return Dialect{}, errors.Newf("unknown legacy driver %q", driver).
			Component("legacy").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return Dialect{name: name, driver: driver}, nil
}

// Name returns the dialect name.
func (d Dialect) Name() string { return d.name }

func (d Dialect) informix() bool { return d.name == conf.DialectInformix }

// SelectPrefix renders the Informix "SKIP n FIRST m" projection prefix.
// Standard dialects paginate with PageSuffix instead and return "".
func (d Dialect) SelectPrefix(skip, limit int) string {
	if !d.informix() {
		return ""
	}
	var out string
	if skip > 0 {
		out += fmt.Sprintf("SKIP %d ", skip)
	}
	if limit > 0 {
		out += fmt.Sprintf("FIRST %d ", limit)
	}
	return out
}

// PageSuffix renders LIMIT/OFFSET for standard dialects.
func (d Dialect) PageSuffix(skip, limit int) string {
	if d.informix() || (skip <= 0 && limit <= 0) {
		return ""
	}
	if limit <= 0 {
		switch d.driver {
		case conf.DriverPostgres:
			return fmt.Sprintf("OFFSET %d", skip)
		case conf.DriverSQLite:
			return fmt.Sprintf("LIMIT -1 OFFSET %d", skip)
		default:
			// mysql has no OFFSET without LIMIT
			return fmt.Sprintf("LIMIT %d OFFSET %d", uint64(math.MaxUint64), skip)
		}
	}
	if skip <= 0 {
		return fmt.Sprintf("LIMIT %d", limit)
	}
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, skip)
}

// CastInt casts a text expression to an integer.
func (d Dialect) CastInt(expr string) string {
	switch {
	case d.informix():
		return expr + "::int"
	case d.driver == conf.DriverMySQL:
		return "CAST(" + expr + " AS SIGNED)"
	default:
		return "CAST(" + expr + " AS INTEGER)"
	}
}

// UserTable quotes the user table where the name is reserved.
func (d Dialect) UserTable() string {
	if !d.informix() && d.driver == conf.DriverPostgres {
		return `"user"`
	}
	return "user"
}

// FileTypes renders the comma-joined list of accepted file type
// descriptions for project p.
func (d Dialect) FileTypes() string {
	const from = `FROM project_file_type_xref x
      INNER JOIN file_type_lu l ON l.file_type_id = x.file_type_id
      WHERE x.project_id = p.project_id`

	switch {
	case d.informix():
		return `REPLACE(REPLACE(REPLACE(REPLACE(
      MULTISET(SELECT ITEM description ` + from + `)::lvarchar,
      'MULTISET{'''), '''}'), ''''), 'MULTISET{}')`
	case d.driver == conf.DriverPostgres:
		return `(SELECT string_agg(l.description, ',') ` + from + `)`
	default:
		return `(SELECT GROUP_CONCAT(l.description) ` + from + `)`
	}
}
