package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kdimtricp/cinesearch/internal/database"
	"github.com/kdimtricp/cinesearch/internal/debounce"
	"github.com/kdimtricp/cinesearch/internal/task"
	"github.com/kdimtricp/cinesearch/internal/tmdb"
	"github.com/kdimtricp/cinesearch/internal/trending"
)

type Config struct {
	Port string `mapstructure:"port"`

	TMDbAPIKey       string `mapstructure:"tmdb_api_key"`
	TMDbBaseURL      string `mapstructure:"tmdb_base_url"`
	TMDbImageBaseURL string `mapstructure:"tmdb_image_base_url"`

	DBType         string `mapstructure:"db_type"`
	DBPath         string `mapstructure:"db_path"`
	DBHost         string `mapstructure:"db_host"`
	DBPort         int    `mapstructure:"db_port"`
	DBUser         string `mapstructure:"db_user"`
	DBPassword     string `mapstructure:"db_password"`
	DBName         string `mapstructure:"db_name"`
	MigrationsPath string `mapstructure:"migrations_path"`

	TrendingLimit int           `mapstructure:"trending_limit"`
	PersistLimit  int           `mapstructure:"persist_limit"`
	TaskTimeout   time.Duration `mapstructure:"task_timeout"`
	Debounce      time.Duration `mapstructure:"debounce"`

	CORSOrigins []string `mapstructure:"cors_origins"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

var defaults = map[string]any{
	"port":                "8080",
	"tmdb_api_key":        "",
	"tmdb_base_url":       tmdb.DefaultBaseURL,
	"tmdb_image_base_url": tmdb.DefaultImageBaseURL,
	"db_type":             "sqlite",
	"db_path":             "./cinesearch.db",
	"db_host":             "localhost",
	"db_port":             5432,
	"db_user":             "cinesearch",
	"db_password":         "cinesearch_dev",
	"db_name":             "cinesearch",
	"migrations_path":     "./migrations",
	"trending_limit":      trending.DefaultLimit,
	"persist_limit":       trending.DefaultPersistLimit,
	"task_timeout":        task.DefaultTimeout,
	"debounce":            debounce.DefaultWait,
	"cors_origins":        []string{"*"},
	"log_level":           "INFO",
	"log_format":          "json",
	"log_file":            "",
}

// Load reads configuration from, in increasing precedence: defaults, an
// optional config.yaml in the working directory, a .env file, and the
// process environment. Keys map to upper-case variables (db_path -> DB_PATH).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Viper splits CORS_ORIGINS on commas but keeps surrounding spaces.
	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// HasCredential reports whether the TMDb credential is set. Its absence
// degrades search and trending but never stops the process.
func (c *Config) HasCredential() bool {
	return c.TMDbAPIKey != ""
}

func (c *Config) Database() database.Config {
	return database.Config{
		Type:       c.DBType,
		Host:       c.DBHost,
		Port:       c.DBPort,
		User:       c.DBUser,
		Password:   c.DBPassword,
		Name:       c.DBName,
		SQLitePath: c.DBPath,
	}
}
