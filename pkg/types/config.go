package types

import "errors"

// Config holds backend selection and parameters for store.Backend.Attach.
type Config struct {
	Backend string `json:"backend" yaml:"backend"`
	// DataDir holds the SQLite database file. Ignored by other backends.
	DataDir string `json:"data_dir" yaml:"data_dir"`
	// DSN is the driver connection string. Required for postgres and mysql;
	// for sqlite it replaces the DataDir-derived path when set.
	DSN string `json:"dsn" yaml:"dsn"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNEmpty       = errors.New("dsn must not be empty")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite:   true,
	BackendPostgres: true,
	BackendMySQL:    true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.Backend != BackendSQLite && c.DSN == "" {
		return ErrDSNEmpty
	}
	return nil
}
