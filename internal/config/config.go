// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScraperConfig governs rendering and extraction behavior.
type ScraperConfig struct {
	UserAgent          string  `mapstructure:"user_agent"`
	NavTimeoutSeconds  int     `mapstructure:"nav_timeout_seconds"`
	ViewportWidth      int     `mapstructure:"viewport_width"`
	ViewportHeight     int     `mapstructure:"viewport_height"`
	MaxContainers      int     `mapstructure:"max_containers"`
	MaxParallelRenders int     `mapstructure:"max_parallel_renders"`
	DomainQPS          float64 `mapstructure:"domain_qps"`
	DefaultCountry     string  `mapstructure:"default_country"`
	DefaultSource      string  `mapstructure:"default_source"`
}

// StorageConfig sets bucket and placement for screenshot persistence.
type StorageConfig struct {
	GCSBucket     string `mapstructure:"gcs_bucket"`
	Prefix        string `mapstructure:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	ContentType   string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion-event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("scraper.user_agent", "opportunity-scraper/0.1")
	v.SetDefault("scraper.nav_timeout_seconds", 30)
	v.SetDefault("scraper.viewport_width", 1280)
	v.SetDefault("scraper.viewport_height", 800)
	v.SetDefault("scraper.max_containers", 10)
	v.SetDefault("scraper.max_parallel_renders", 2)
	v.SetDefault("scraper.domain_qps", 1.0)
	v.SetDefault("scraper.default_country", "Global")
	v.SetDefault("scraper.default_source", "Custom Scrape")
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("storage.content_type", "image/png")
	v.SetDefault("db.table", "opportunities")
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.nav_timeout_seconds must be > 0")
	}
	if c.Scraper.ViewportWidth <= 0 || c.Scraper.ViewportHeight <= 0 {
		return fmt.Errorf("scraper viewport dimensions must be > 0")
	}
	if c.Scraper.MaxContainers <= 0 {
		return fmt.Errorf("scraper.max_containers must be > 0")
	}
	if c.PubSub.Topic != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic is set")
	}
	return nil
}

// NavTimeout converts the configured navigation timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scraper.NavTimeoutSeconds) * time.Second
}
