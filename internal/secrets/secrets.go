// Package secrets resolves credentials that are given in the configuration
// as environment variable references or as files (Docker and Kubernetes
// secrets). Secret values are never logged or included in errors.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tphakala/challenge-migration/internal/errors"
)

const (
	// FilePrefix marks a value as the path of a secret file, e.g.
	// file:/run/secrets/legacy_dsn
	FilePrefix = "file:"

	// maxSecretFileSize limits secret file reads; secrets are tokens and
	// connection strings, not documents
	maxSecretFileSize = 64 * 1024
)

// refPattern matches ${VAR} and ${VAR:-fallback}. A bare $ is left alone so
// passwords containing it survive.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Expand replaces ${VAR} and ${VAR:-fallback} references with environment
// values. A reference to an unset variable without fallback is an error.
func Expand(s string) (string, error) {
	var missing []string
	out := refPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := refPattern.FindStringSubmatch(ref)
		if value := os.Getenv(m[1]); value != "" {
			return value
		}
		if m[2] != "" {
			return m[3]
		}
		missing = append(missing, m[1])
		return ""
	})
	if len(missing) > 0 {
		return "", secretError(fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", ")))
	}
	return out, nil
}

// ReadFile reads a secret file. Trailing newlines are trimmed; an empty file
// is an error. Files readable by group or other produce a warning on stderr.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", secretError(fmt.Errorf("secret file path is empty"))
	}
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	switch {
	case os.IsNotExist(err):
		return "", secretError(fmt.Errorf("secret file not found: %s", cleanPath))
	case err != nil:
		return "", secretError(fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err))
	case !info.Mode().IsRegular():
		return "", secretError(fmt.Errorf("secret path is not a regular file: %s", cleanPath))
	case info.Size() > maxSecretFileSize:
		return "", secretError(fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath))
	}

	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "WARNING: secret file has group/other permissions (perms: %04o): %s\n", perm, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", secretError(fmt.Errorf("failed to read secret file %s: %w", cleanPath, err))
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", secretError(fmt.Errorf("secret file is empty: %s", cleanPath))
	}
	return secret, nil
}

// Resolve returns the secret a configured value stands for: the contents of
// the file named after FilePrefix, or the value with environment references
// expanded. Literal values are returned unchanged.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, FilePrefix); ok {
		return ReadFile(path)
	}
	if !strings.Contains(value, "${") {
		return value, nil
	}
	return Expand(value)
}

// ResolveAll resolves every pointed-to value in place. field names the
// setting in errors.
func ResolveAll(fields map[string]*string) error {
	for name, p := range fields {
		resolved, err := Resolve(*p)
		if err != nil {
			return errors.New(err).
				Component("secrets").
				Category(errors.CategoryConfiguration).
				Context("setting", name).
				Build()
		}
		*p = resolved
	}
	return nil
}

func secretError(err error) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Build()
}
