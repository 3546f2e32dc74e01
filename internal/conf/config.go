// Package conf handles the configuration of the storage engine. The base
// storage directory and the database path are read once at startup and
// treated as immutable for the process lifetime.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the complete engine configuration.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name string    // name of this archive node, used to identify log sources
		Log  LogConfig // logging configuration
	}

	Storage struct {
		BaseDir         string // root of the name-addressed hierarchy tree
		IndexFlushEvery int    // frames between per-take index file flushes
	}

	Output struct {
		SQLite struct {
			Enabled bool   // true to enable sqlite output
			Path    string // path to sqlite database
		}
	}

	Retry struct {
		MaxAttempts int           // bounded attempt count for transient I/O
		Delay       time.Duration // base delay, grows linearly per attempt
	}

	Cache struct {
		TTL time.Duration // query result cache time-to-live
	}

	Maintenance struct {
		CompactInterval     time.Duration // VACUUM period
		AnalyzeInterval     time.Duration // ANALYZE period
		OrphanSweepInterval time.Duration // orphan row sweep period
	}
}

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to the log file
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the loaded settings instance, or nil before Load().
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config file found, run on defaults.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPaths returns the ordered list of directories searched
// for config.yaml: the working directory first, then the user config dir.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "camf-go"))
	}
	return paths, nil
}

// ValidateSettings checks invariants that the engine relies on at startup.
func ValidateSettings(settings *Settings) error {
	if settings.Storage.BaseDir == "" {
		return fmt.Errorf("storage.basedir must not be empty")
	}
	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty when sqlite is enabled")
	}
	if settings.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxattempts must be at least 1")
	}
	if settings.Storage.IndexFlushEvery < 1 {
		return fmt.Errorf("storage.indexflushevery must be at least 1")
	}
	return nil
}

// GetBasePath resolves a possibly relative directory against the working
// directory and ensures it exists.
func GetBasePath(path string) string {
	if !filepath.IsAbs(path) {
		if wd, err := os.Getwd(); err == nil {
			path = filepath.Join(wd, path)
		}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return path
	}
	return path
}
