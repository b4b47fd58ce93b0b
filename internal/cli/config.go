package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/untillpro/goutils/logger"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/crudforms/internal/paths"
	"github.com/mesh-intelligence/crudforms/pkg/types"
)

// Configuration keys of config.yaml.
const (
	keyBackend  = "backend"
	keyDataDir  = "data_dir"
	keyDSN      = "dsn"
	keyAddr     = "addr"
	keyLogLevel = "log_level"
)

const (
	defaultAddr     = ":8080"
	defaultLogLevel = "info"
)

// configFile is what init writes to config.yaml.
type configFile struct {
	Backend  string `yaml:"backend"`
	DataDir  string `yaml:"data_dir,omitempty"`
	DSN      string `yaml:"dsn,omitempty"`
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

// settings is the resolved configuration of one command.
type settings struct {
	ConfigDir string
	Store     types.Config
	Addr      string
	LogLevel  string
}

// loadSettings reads config.yaml from the resolved config directory. A
// missing file leaves the defaults in place.
func loadSettings(flags *rootFlags) (*settings, error) {
	configDir, err := paths.ResolveConfigDir(flags.configDir)
	if err != nil {
		return nil, sysError("resolving config directory: %w", err)
	}

	v := viper.New()
	v.SetDefault(keyBackend, types.BackendSQLite)
	v.SetDefault(keyAddr, defaultAddr)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetConfigName(strings.TrimSuffix(paths.ConfigFile, filepath.Ext(paths.ConfigFile)))
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.BindEnv(keyBackend, "CRUDFORMS_BACKEND")
	v.BindEnv(keyDSN, "CRUDFORMS_DSN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, userError("reading %s: %w", filepath.Join(configDir, paths.ConfigFile), err)
		}
	}

	s := &settings{
		ConfigDir: configDir,
		Store: types.Config{
			Backend: v.GetString(keyBackend),
			DSN:     v.GetString(keyDSN),
		},
		Addr:     v.GetString(keyAddr),
		LogLevel: v.GetString(keyLogLevel),
	}
	if s.Store.Backend == types.BackendSQLite && s.Store.DSN == "" {
		dir, err := paths.ResolveDataDir(flags.dataDir, v.GetString(keyDataDir))
		if err != nil {
			return nil, sysError("resolving data directory: %w", err)
		}
		s.Store.DataDir = dir
	}
	if err := s.Store.Validate(); err != nil {
		return nil, userError("invalid configuration: %w", err)
	}

	level, err := parseLogLevel(s.LogLevel)
	if err != nil {
		return nil, userError("invalid configuration: %w", err)
	}
	if flags.verbose {
		level = logger.LogLevelVerbose
	}
	logger.SetLogLevel(level)
	return s, nil
}

var logLevels = map[string]logger.TLogLevel{
	"none":    logger.LogLevelNone,
	"error":   logger.LogLevelError,
	"warning": logger.LogLevelWarning,
	"info":    logger.LogLevelInfo,
	"verbose": logger.LogLevelVerbose,
	"trace":   logger.LogLevelTrace,
}

func parseLogLevel(s string) (logger.TLogLevel, error) {
	level, ok := logLevels[strings.ToLower(s)]
	if !ok {
		return logger.LogLevelNone, fmt.Errorf("unknown log_level %q", s)
	}
	return level, nil
}

// writeConfigIfMissing creates config.yaml from s. An existing file is
// left alone; the result reports whether a file was written.
func writeConfigIfMissing(s *settings) (bool, error) {
	if err := os.MkdirAll(s.ConfigDir, 0o755); err != nil {
		return false, err
	}
	path := filepath.Join(s.ConfigDir, paths.ConfigFile)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	data, err := yaml.Marshal(&configFile{
		Backend:  s.Store.Backend,
		DataDir:  s.Store.DataDir,
		DSN:      s.Store.DSN,
		Addr:     s.Addr,
		LogLevel: s.LogLevel,
	})
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	return true, os.WriteFile(path, data, 0o644)
}
