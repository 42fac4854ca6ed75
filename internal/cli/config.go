package cli

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/multirow/internal/paths"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Config keys in config.yaml.
	cfgKeyBackend  = "backend"
	cfgKeyDSN      = "dsn"
	cfgKeyDatabase = "database"
	cfgKeyDataDir  = "data_dir"
	cfgKeySchema   = "schema"
	cfgKeyLogLevel = "log_level"

	defaultBackend  = types.BackendSQLite
	defaultLogLevel = "warn"
)

// Environment variables that override the server connection settings.
const (
	envBackend  = "MULTIROW_BACKEND"
	envDSN      = "MULTIROW_DSN"
	envDatabase = "MULTIROW_DATABASE"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# multirow configuration

# Backend: sqlite, bolt, mysql, postgres or mongo.
backend: sqlite

# Connection string for mysql, postgres and mongo. For sqlite and bolt it
# overrides the database file path.
# dsn:

# Database name override for server backends.
# database:

# Data directory for file backends (overridable by --data-dir).
# data_dir:

# Schema file, relative to this directory.
schema: schema.yaml

# Log level: debug, info, warn, error.
log_level: warn
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper. It creates the config directory and a default config.yaml on first
// run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}

	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	for key, env := range map[string]string{
		cfgKeyBackend:  envBackend,
		cfgKeyDSN:      envDSN,
		cfgKeyDatabase: envDatabase,
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	return writeIfMissing(paths.ConfigFile(configDir), []byte(defaultConfigYAML))
}

// writeIfMissing writes data to path unless the file already exists.
func writeIfMissing(path string, data []byte) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

// storeConfig builds the store configuration from config.yaml and the
// --data-dir flag.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.cfg.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		Backend:  a.cfg.GetString(cfgKeyBackend),
		DataDir:  dataDir,
		DSN:      a.cfg.GetString(cfgKeyDSN),
		Database: a.cfg.GetString(cfgKeyDatabase),
	}, nil
}

// schemaPath returns the --schema flag value or the configured schema file.
func (a *app) schemaPath() string {
	if a.flags.schema != "" {
		return a.flags.schema
	}
	return paths.SchemaFile(a.configDir, a.cfg.GetString(cfgKeySchema))
}
