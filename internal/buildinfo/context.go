// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"fmt"

	"github.com/google/uuid"
)

// UnknownValue is reported for metadata not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is created once at startup and passed to the commands.
type Context struct {
	version   string
	buildDate string

	// runID identifies one process run in logs, ledger messages and
	// notifications
	runID string
}

// NewContext creates a Context with a fresh run id.
func NewContext(version, buildDate string) *Context {
	return &Context{
		version:   version,
		buildDate: buildDate,
		runID:     uuid.NewString(),
	}
}

// Version returns the build version string
func (c *Context) Version() string {
	if c == nil || c.version == "" {
		return UnknownValue
	}
	return c.version
}

// BuildDate returns the build date string
func (c *Context) BuildDate() string {
	if c == nil || c.buildDate == "" {
		return UnknownValue
	}
	return c.buildDate
}

// RunID returns the id of this process run
func (c *Context) RunID() string {
	if c == nil || c.runID == "" {
		return UnknownValue
	}
	return c.runID
}

// UserAgent is sent with every reference-data request.
func (c *Context) UserAgent() string {
	return "challenge-migration/" + c.Version()
}

// Release is the Sentry release name.
func (c *Context) Release() string {
	return "challenge-migration@" + c.Version()
}

func (c *Context) String() string {
	return fmt.Sprintf("challenge-migration %s (built %s)", c.Version(), c.BuildDate())
}
