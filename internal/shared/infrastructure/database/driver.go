// Package database selects and opens the attempt-history store.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Driver represents a database backend type.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid returns true if the driver is a known type.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverSQLite:
		return true
	default:
		return false
	}
}

// DetectDriver infers the backend from a connection string. An empty URL
// selects SQLite so the daemon runs without external services.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	if strings.HasPrefix(url, "sqlite://") ||
		strings.HasPrefix(url, "file:") ||
		strings.HasSuffix(url, ".db") ||
		strings.HasSuffix(url, ".sqlite") ||
		strings.HasSuffix(url, ".sqlite3") {
		return DriverSQLite
	}
	return DriverPostgres
}

// ResolveDriver applies an explicit driver override, falling back to detection.
func ResolveDriver(explicit, url string) (Driver, error) {
	if explicit == "" {
		return DetectDriver(url), nil
	}
	d := Driver(strings.ToLower(explicit))
	if !d.IsValid() {
		return "", fmt.Errorf("unknown database driver %q", explicit)
	}
	return d, nil
}

// SQLitePathFromURL strips a sqlite:// scheme. Other values pass through.
func SQLitePathFromURL(url string) string {
	return strings.TrimPrefix(url, "sqlite://")
}

// EnsureDirectory creates the parent directory of a database file.
func EnsureDirectory(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o750)
}
