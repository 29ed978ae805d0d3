// Package config loads and validates the tracker configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	LocalDBPath string         `mapstructure:"local_db_path" validate:"required"`
	UserID      string         `mapstructure:"user_id"`
	Database    DatabaseConfig `mapstructure:"database"`
	Sync        SyncConfig     `mapstructure:"sync"`
}

// DatabaseConfig holds remote backend connection settings. Leaving it empty
// disables sync entirely: local operation never depends on the remote.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// SyncConfig holds sync behavior settings.
type SyncConfig struct {
	DebounceMs    int `mapstructure:"debounce_ms"`
	PollIntervalS int `mapstructure:"poll_interval_s"`
}

// Configured reports whether enough connection settings are present to
// reach a remote backend.
func (d *DatabaseConfig) Configured() bool {
	return d.Host != "" && d.User != "" && d.Database != ""
}

// ConnectionString returns the PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, sslMode,
	)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LocalDBPath: filepath.Join(getConfigDir(), "rvtrack.db"),
		Database: DatabaseConfig{
			Port:    5432,
			SSLMode: "require",
		},
		Sync: SyncConfig{
			DebounceMs:    250,
			PollIntervalS: 8,
		},
	}
}

// Load reads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("local_db_path", defaults.LocalDBPath)
	v.SetDefault("database.port", defaults.Database.Port)
	v.SetDefault("database.sslmode", defaults.Database.SSLMode)
	v.SetDefault("sync.debounce_ms", defaults.Sync.DebounceMs)
	v.SetDefault("sync.poll_interval_s", defaults.Sync.PollIntervalS)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("RVTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is okay; defaults plus environment suffice.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Database.Password = os.ExpandEnv(cfg.Database.Password)
	cfg.LocalDBPath = expandPath(cfg.LocalDBPath)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// The remote is optional, but a half-filled section is a mistake worth
	// failing loudly on.
	if (cfg.Database.Host != "" || cfg.Database.User != "" || cfg.Database.Database != "") &&
		!cfg.Database.Configured() {
		return nil, fmt.Errorf("config validation failed: database section is incomplete (host, user and database are all required)")
	}

	return cfg, nil
}

// getConfigDir returns the appropriate config directory for the OS.
func getConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "rvtrack")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), ".config", "rvtrack")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, "rvtrack")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "rvtrack")
	}
}

// GetConfigDir returns the directory for the config file and local store,
// creating it if needed.
func GetConfigDir() (string, error) {
	dir := getConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// expandPath expands ~ and environment variables in a path.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path)
}
