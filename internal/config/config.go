// Package config provides application configuration management with support for
// command-line flags, environment variables, .env files and a YAML config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when --config is not given and the file exists.
const DefaultConfigFile = "books-manager.yaml"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBadger   = "badger"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Logger   LoggerConfig   `yaml:"logger"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Search   SearchConfig   `yaml:"search"`
	Audit    AuditConfig    `yaml:"audit"`

	// File is the YAML file the configuration was read from, if any.
	File string `yaml:"-"`

	overrides map[string]string
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string `yaml:"environment"`
	// DataDir holds the database, search index and token key unless their
	// own paths are set.
	DataDir string `yaml:"data_dir"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	StaticDir    string        `yaml:"static_dir"`   // Optional front-end bundle
	CORSOrigins  []string      `yaml:"cors_origins"` // Empty allows any origin
}

// DatabaseConfig selects and locates the storage backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`  // postgres only
	Path   string `yaml:"path"` // sqlite file or badger directory
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// Hex-encoded PASETO v4 key. Generated under DataDir when empty.
	TokenKey           string        `yaml:"token_key"`
	TokenDuration      time.Duration `yaml:"token_duration"`
	AdminEmail         string        `yaml:"admin_email"`
	AdminPassword      string        `yaml:"admin_password"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute"`
}

// LedgerConfig holds borrow and return policy.
type LedgerConfig struct {
	RejectReborrow bool `yaml:"reject_reborrow"`
	StrictReturn   bool `yaml:"strict_return"`
}

// SearchConfig holds catalog index configuration.
type SearchConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// AuditConfig holds the ledger audit schedule.
type AuditConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		App:    AppConfig{Environment: "development", DataDir: "data"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{Driver: DriverSQLite},
		Auth: AuthConfig{
			TokenDuration:      12 * time.Hour,
			AdminEmail:         "admin@admin.com",
			AdminPassword:      "asdc1234ASD",
			LoginRatePerMinute: 10,
		},
		Audit: AuditConfig{Enabled: true, Schedule: "@every 10m"},
	}
}

// setting binds one flag and one environment variable to a config field.
type setting struct {
	flag  string
	env   string
	usage string
	apply func(c *Config, value string) error
}

var settings = []setting{
	{"env", "ENV", "Environment (development, staging, production)", stringField(func(c *Config) *string { return &c.App.Environment })},
	{"data-dir", "DATA_DIR", "Directory for database, index and key files (default: data)", stringField(func(c *Config) *string { return &c.App.DataDir })},
	{"log-level", "LOG_LEVEL", "Log level (debug, info, warn, error)", stringField(func(c *Config) *string { return &c.Logger.Level })},

	{"addr", "SERVER_ADDR", "Listen address (default: :8080)", stringField(func(c *Config) *string { return &c.Server.Addr })},
	{"read-timeout", "SERVER_READ_TIMEOUT", "HTTP read timeout (default: 15s)", durationField(func(c *Config) *time.Duration { return &c.Server.ReadTimeout })},
	{"write-timeout", "SERVER_WRITE_TIMEOUT", "HTTP write timeout (default: 15s)", durationField(func(c *Config) *time.Duration { return &c.Server.WriteTimeout })},
	{"idle-timeout", "SERVER_IDLE_TIMEOUT", "HTTP idle timeout (default: 60s)", durationField(func(c *Config) *time.Duration { return &c.Server.IdleTimeout })},
	{"static-dir", "STATIC_DIR", "Directory of front-end files served at /", stringField(func(c *Config) *string { return &c.Server.StaticDir })},
	{"cors-origins", "CORS_ORIGINS", "Comma separated allowed origins", listField(func(c *Config) *[]string { return &c.Server.CORSOrigins })},

	{"db-driver", "DB_DRIVER", "Storage backend (sqlite, postgres, badger)", stringField(func(c *Config) *string { return &c.Database.Driver })},
	{"db-dsn", "DB_DSN", "Postgres connection string", stringField(func(c *Config) *string { return &c.Database.DSN })},
	{"db-path", "DB_PATH", "SQLite file or badger directory", stringField(func(c *Config) *string { return &c.Database.Path })},

	{"token-key", "TOKEN_KEY", "Hex-encoded 32 byte token key", stringField(func(c *Config) *string { return &c.Auth.TokenKey })},
	{"token-duration", "TOKEN_DURATION", "Token lifetime (default: 12h)", durationField(func(c *Config) *time.Duration { return &c.Auth.TokenDuration })},
	{"admin-email", "ADMIN_EMAIL", "Email of the account created at startup", stringField(func(c *Config) *string { return &c.Auth.AdminEmail })},
	{"admin-password", "ADMIN_PASSWORD", "Password of the account created at startup", stringField(func(c *Config) *string { return &c.Auth.AdminPassword })},
	{"login-rate", "LOGIN_RATE_PER_MINUTE", "Login attempts per minute per client, 0 disables (default: 10)", intField(func(c *Config) *int { return &c.Auth.LoginRatePerMinute })},

	{"reject-reborrow", "LEDGER_REJECT_REBORROW", "Reject borrowing a book the user already holds", boolField(func(c *Config) *bool { return &c.Ledger.RejectReborrow })},
	{"strict-return", "LEDGER_STRICT_RETURN", "Fail returns of books the user does not hold", boolField(func(c *Config) *bool { return &c.Ledger.StrictReturn })},

	{"search-path", "SEARCH_PATH", "Catalog index directory", stringField(func(c *Config) *string { return &c.Search.Path })},
	{"search-in-memory", "SEARCH_IN_MEMORY", "Keep the catalog index in memory", boolField(func(c *Config) *bool { return &c.Search.InMemory })},

	{"audit-enabled", "AUDIT_ENABLED", "Run the ledger audit on a schedule (default: true)", boolField(func(c *Config) *bool { return &c.Audit.Enabled })},
	{"audit-schedule", "AUDIT_SCHEDULE", "Cron schedule of the ledger audit (default: @every 10m)", stringField(func(c *Config) *string { return &c.Audit.Schedule })},
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. YAML config file.
// 5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	flags := flag.NewFlagSet("books-manager", flag.ContinueOnError)
	configFile := flags.String("config", "", "Path to YAML config file (default: "+DefaultConfigFile+" if present)")
	envFile := flags.String("env-file", ".env", "Path to .env file")

	values := make(map[string]*string, len(settings))
	for _, s := range settings {
		values[s.flag] = flags.String(s.flag, "", s.usage)
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	// Variables already in the environment win over the .env file.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
	}

	path := *configFile
	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	overrides := make(map[string]string)
	for _, s := range settings {
		if v := *values[s.flag]; v != "" {
			overrides[s.flag] = v
		}
	}

	return build(path, overrides)
}

// Reload re-reads the YAML file and re-applies the flags and environment
// that were in effect when c was loaded.
func (c *Config) Reload() (*Config, error) {
	return build(c.File, c.overrides)
}

func build(path string, overrides map[string]string) (*Config, error) {
	cfg := Defaults()
	cfg.File = path
	cfg.overrides = overrides

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	for _, s := range settings {
		value := getConfigValue(overrides[s.flag], s.env)
		if value == "" {
			continue
		}
		if err := s.apply(cfg, value); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", s.flag, value, err)
		}
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverBadger:
		if c.Database.Path == "" {
			return errors.New("database path cannot be empty after expansion")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %q (must be sqlite, postgres, or badger)", c.Database.Driver)
	}

	if c.Server.Addr == "" {
		return errors.New("server address cannot be empty")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return errors.New("server timeouts must be positive")
	}

	if c.Auth.TokenDuration <= 0 {
		return errors.New("token duration must be positive")
	}
	if c.Auth.LoginRatePerMinute < 0 {
		return errors.New("login rate cannot be negative")
	}
	if c.Auth.AdminEmail == "" || c.Auth.AdminPassword == "" {
		return errors.New("admin email and password are required")
	}

	if !c.Search.InMemory && c.Search.Path == "" {
		return errors.New("search path cannot be empty after expansion")
	}

	if c.Audit.Enabled {
		if _, err := cron.ParseStandard(c.Audit.Schedule); err != nil {
			return fmt.Errorf("invalid audit schedule %q: %w", c.Audit.Schedule, err)
		}
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		path = defaultPath
	}
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves DataDir and derives the backend and index paths from
// it when they are not set.
func (c *Config) expandPaths() error {
	var err error
	if c.App.DataDir, err = expandPath(c.App.DataDir, "data"); err != nil {
		return err
	}

	var defaultDB string
	switch c.Database.Driver {
	case DriverSQLite:
		defaultDB = filepath.Join(c.App.DataDir, "books-manager.db")
	case DriverBadger:
		defaultDB = filepath.Join(c.App.DataDir, "badger")
	}
	if c.Database.Path, err = expandPath(c.Database.Path, defaultDB); err != nil {
		return err
	}

	if c.Search.Path, err = expandPath(c.Search.Path, filepath.Join(c.App.DataDir, "catalog.bleve")); err != nil {
		return err
	}

	if c.Server.StaticDir, err = expandPath(c.Server.StaticDir, ""); err != nil {
		return err
	}
	return nil
}

// getConfigValue returns the flag value if set, else the environment variable.
func getConfigValue(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}

func stringField(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func durationField(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func intField(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// boolField accepts "true", "1", "yes" (case-insensitive) as true; anything
// else is false.
func boolField(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		v = strings.ToLower(v)
		*field(c) = v == "true" || v == "1" || v == "yes"
		return nil
	}
}

func listField(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var out []string
		for item := range strings.SplitSeq(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*field(c) = out
		return nil
	}
}
