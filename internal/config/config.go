package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the tool configuration loaded from a YAML file. The database DSN
// can be overridden through ENTITYMIGRATE_DB_DSN so credentials stay out of
// checked-in files.
type Config struct {
	Database      DatabaseConfig `yaml:"database"`
	LedgerTable   string         `yaml:"ledger_table"`
	MigrationsDir string         `yaml:"migrations_dir"`
	SnapshotsDir  string         `yaml:"snapshots_dir"`
	EntitiesFile  string         `yaml:"entities_file"`
	HTTPAddress   string         `yaml:"http_address"`
	LogLevel      string         `yaml:"log_level"`
	LogFormat     string         `yaml:"log_format"`
}

type DatabaseConfig struct {
	Provider string `yaml:"provider"`
	DSN      string `yaml:"dsn"`
	Schema   string `yaml:"schema"`
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if dsn := os.Getenv("ENTITYMIGRATE_DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LedgerTable == "" {
		c.LedgerTable = "schema_migrations"
	}
	if c.MigrationsDir == "" {
		c.MigrationsDir = "./migrations"
	}
	if c.SnapshotsDir == "" {
		c.SnapshotsDir = "./snapshots"
	}
	if c.HTTPAddress == "" {
		c.HTTPAddress = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

func (c Config) Validate() error {
	switch strings.ToLower(c.Database.Provider) {
	case "mysql", "postgres", "sqlite":
	case "":
		return errors.New("database.provider is required (mysql, postgres or sqlite)")
	default:
		return fmt.Errorf("unsupported database.provider %q", c.Database.Provider)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required (or set ENTITYMIGRATE_DB_DSN)")
	}
	return nil
}

// Sample returns a starter configuration file body for init-config.
func Sample() string {
	return `database:
  provider: mysql
  dsn: user:password@tcp(localhost:3306)/app?parseTime=true
  schema: ""
ledger_table: schema_migrations
migrations_dir: ./migrations
snapshots_dir: ./snapshots
entities_file: ./entities.yaml
http_address: :8080
log_level: info
log_format: text
`
}
