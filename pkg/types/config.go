package types

import "errors"

// Config holds backend selection and parameters for opening a Store.
type Config struct {
	Backend  string `json:"backend" yaml:"backend"`
	DataDir  string `json:"data_dir" yaml:"data_dir"`
	DSN      string `json:"dsn" yaml:"dsn"`
	Database string `json:"database" yaml:"database"`
}

// Supported backend names.
const (
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
	BackendMongo    = "mongo"
)

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrDSNRequired    = errors.New("dsn is required for this backend")
)

// knownBackends lists the backends that Validate accepts, mapped to whether
// they need a DSN.
var knownBackends = map[string]bool{
	BackendSQLite:   false,
	BackendBolt:     false,
	BackendMySQL:    true,
	BackendPostgres: true,
	BackendMongo:    true,
}

// Validate checks that the Config is well-formed. File-backed backends
// (sqlite, bolt) fall back to DataDir; server backends need a DSN.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	needsDSN, ok := knownBackends[c.Backend]
	if !ok {
		return ErrBackendUnknown
	}
	if needsDSN && c.DSN == "" {
		return ErrDSNRequired
	}
	return nil
}
