// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	BaseURL     string   `mapstructure:"baseurl"`

	// Shared HMAC secret of the external identity provider that issues
	// the bearer tokens we accept.
	AuthSecret string `mapstructure:"authsecret"`

	// File paths
	DatabasePath string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings

	// Static assets; an empty directory disables static serving
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Optional Redis link-lookup cache; empty address disables it
	RedisAddr       string `mapstructure:"redisaddr"`
	RedisPassword   string `mapstructure:"redispassword"`
	CacheTTLSeconds int    `mapstructure:"cachettlseconds"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Click history retention (age cap on the per-link click log)
	ClickRetentionDays int `mapstructure:"clickretentiondays"`

	// Global rollup trailing window
	RollupWindowDays int `mapstructure:"rollupwindowdays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "linkpulse")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("baseurl", "http://localhost:3000")
		v.SetDefault("authsecret", "88888888888888888888888888888888")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("publicdir", "")
		v.SetDefault("publicassetsurlprefix", "/assets")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("redisaddr", "")
		v.SetDefault("redispassword", "")
		v.SetDefault("cachettlseconds", 3600)
		v.SetDefault("jobintervalseconds", 60)
		v.SetDefault("clickretentiondays", 180)
		v.SetDefault("rollupwindowdays", 30)

		// Bind environment variables
		v.BindEnv("appname", "LINKPULSE_APP_NAME")
		v.BindEnv("appport", "LINKPULSE_APP_PORT")
		v.BindEnv("environment", "LINKPULSE_ENV")
		v.BindEnv("loglevel", "LINKPULSE_LOG_LEVEL")
		v.BindEnv("baseurl", "LINKPULSE_BASE_URL")
		v.BindEnv("authsecret", "LINKPULSE_AUTH_SECRET")
		v.BindEnv("storagepath", "LINKPULSE_STORAGE_PATH")
		v.BindEnv("publicdir", "LINKPULSE_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "LINKPULSE_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "LINKPULSE_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "LINKPULSE_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "LINKPULSE_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "LINKPULSE_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "LINKPULSE_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "LINKPULSE_DB_MAX_IDLE_CONNS")
		v.BindEnv("redisaddr", "LINKPULSE_REDIS_ADDR")
		v.BindEnv("redispassword", "LINKPULSE_REDIS_PASSWORD")
		v.BindEnv("cachettlseconds", "LINKPULSE_CACHE_TTL_SECONDS")
		v.BindEnv("jobintervalseconds", "LINKPULSE_JOB_INTERVAL_SECONDS")
		v.BindEnv("clickretentiondays", "LINKPULSE_CLICK_RETENTION_DAYS")
		v.BindEnv("rollupwindowdays", "LINKPULSE_ROLLUP_WINDOW_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		// Validate auth secret - in production, must be explicitly set (not empty, not default)
		defaultSecret := "88888888888888888888888888888888"
		if cfg.AuthSecret == "" {
			log.Fatal("Auth secret is required")
		}
		if cfg.IsProduction() && cfg.AuthSecret == defaultSecret {
			log.Fatal("Production requires a unique LINKPULSE_AUTH_SECRET (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.RollupWindowDays <= 0 {
		return fmt.Errorf("invalid rollup window: %d days", c.RollupWindowDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// CacheEnabled reports whether the Redis link cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.AuthSecret
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Test runs pin the pool to a single connection for stability.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
