// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment variable the tool reads,
// e.g. KGTOOL_CMS_BASE_URL.
const EnvPrefix = "KGTOOL"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	CMS() CMSConfig
	Synth() SynthConfig
	Database() DatabaseConfig
	SQLite() SQLiteConfig
	Neo4j() Neo4jConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	CMSCfg      CMSConfig      `mapstructure:"cms" yaml:"cms"`
	SynthCfg    SynthConfig    `mapstructure:"synth" yaml:"synth"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	SQLiteCfg   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Neo4jCfg    Neo4jConfig    `mapstructure:"neo4j" yaml:"neo4j"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) CMS() CMSConfig           { return c.CMSCfg }
func (c *Config) Synth() SynthConfig       { return c.SynthCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) SQLite() SQLiteConfig     { return c.SQLiteCfg }
func (c *Config) Neo4j() Neo4jConfig       { return c.Neo4jCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// CMSConfig configures access to the content API used by the cleanup job.
type CMSConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// APIToken is sent as a bearer token when set.
	APIToken        string        `mapstructure:"api_token" yaml:"api_token"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageSize        int           `mapstructure:"page_size" yaml:"page_size"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Deletes per second, 0 disables.
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
}

// SynthConfig configures the edge generator.
type SynthConfig struct {
	// Catalogue is a YAML dataset path. Empty selects the embedded catalogue.
	Catalogue       string `mapstructure:"catalogue" yaml:"catalogue"`
	Output          string `mapstructure:"output" yaml:"output"`
	Target          int    `mapstructure:"target" yaml:"target"`
	Seed            uint64 `mapstructure:"seed" yaml:"seed"` // 0 picks a time based seed.
	MaxFillAttempts int    `mapstructure:"max_fill_attempts" yaml:"max_fill_attempts"`
	FirstEdgeNumber int    `mapstructure:"first_edge_number" yaml:"first_edge_number"`
	// Report is an optional run report path; "-" writes to stdout.
	Report          string `mapstructure:"report" yaml:"report"`
	ReportFormat    string `mapstructure:"report_format" yaml:"report_format"`
}

// DatabaseConfig holds the PostgreSQL connection used to load edges directly.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
	// LoadEdges inserts the generated edges in one transaction.
	LoadEdges bool `mapstructure:"load_edges" yaml:"load_edges"`
	// SeedExisting reads already linked pairs before generating.
	SeedExisting bool `mapstructure:"seed_existing" yaml:"seed_existing"`
}

// SQLiteConfig controls applying the rendered script to a SQLite file.
type SQLiteConfig struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Apply   bool   `mapstructure:"apply" yaml:"apply"`
	Migrate bool   `mapstructure:"migrate" yaml:"migrate"`
}

// Neo4jConfig configures the optional graph mirror.
type Neo4jConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	URI      string `mapstructure:"uri" yaml:"uri"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "kgtool")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- CMS --
	v.SetDefault("cms.base_url", "http://localhost:1337")
	v.SetDefault("cms.api_token", "") // Should be set via env var
	v.SetDefault("cms.timeout", "30s")
	v.SetDefault("cms.page_size", 100)
	v.SetDefault("cms.rate_limit", 0.0)
	v.SetDefault("cms.ignore_tls_errors", false)

	// -- Synth --
	v.SetDefault("synth.catalogue", "")
	v.SetDefault("synth.output", "/tmp/generate_edges.sql")
	v.SetDefault("synth.target", 490)
	v.SetDefault("synth.seed", 0)
	v.SetDefault("synth.max_fill_attempts", 200000)
	v.SetDefault("synth.first_edge_number", 11)
	v.SetDefault("synth.report", "")
	v.SetDefault("synth.report_format", "json")

	// -- Sinks --
	v.SetDefault("database.url", "")
	v.SetDefault("database.load_edges", false)
	v.SetDefault("database.seed_existing", false)
	v.SetDefault("sqlite.path", "")
	v.SetDefault("sqlite.apply", false)
	v.SetDefault("sqlite.migrate", false)
	v.SetDefault("neo4j.enabled", false)
	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("cms.api_token", EnvPrefix+"_CMS_API_TOKEN", "STRAPI_API_TOKEN")
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("neo4j.password", EnvPrefix+"_NEO4J_PASSWORD", "NEO4J_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.CMSCfg.Validate(); err != nil {
		return fmt.Errorf("cms configuration invalid: %w", err)
	}
	if err := c.SynthCfg.Validate(); err != nil {
		return fmt.Errorf("synth configuration invalid: %w", err)
	}
	if c.DatabaseCfg.LoadEdges && c.DatabaseCfg.URL == "" {
		return fmt.Errorf("database.url is required when loading edges into the database")
	}
	// Existing pairs come from PostgreSQL, the SQLite file, or both.
	if c.DatabaseCfg.SeedExisting && c.DatabaseCfg.URL == "" && !c.SQLiteCfg.Apply {
		return fmt.Errorf("database.url or sqlite.apply is required when seeding existing pairs")
	}
	if c.SQLiteCfg.Apply && c.SQLiteCfg.Path == "" {
		return fmt.Errorf("sqlite.path is required when sqlite.apply is set")
	}
	if c.Neo4jCfg.Enabled && c.Neo4jCfg.URI == "" {
		return fmt.Errorf("neo4j.uri is required when neo4j.enabled is set")
	}
	return nil
}

// Validate checks the CMS configuration.
func (c *CMSConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be a positive integer")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	return nil
}

// Validate checks the generator configuration.
func (s *SynthConfig) Validate() error {
	if s.Output == "" {
		return fmt.Errorf("output path is required")
	}
	if s.Target <= 0 {
		return fmt.Errorf("target must be a positive integer")
	}
	if s.MaxFillAttempts <= 0 {
		return fmt.Errorf("max_fill_attempts must be a positive integer")
	}
	if s.FirstEdgeNumber <= 0 {
		return fmt.Errorf("first_edge_number must be a positive integer")
	}
	switch s.ReportFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("report_format must be json or yaml, got %q", s.ReportFormat)
	}
	return nil
}
