package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// CrawlerConfig holds the catalog site and fetch settings
type CrawlerConfig struct {
	RootURL              string          `mapstructure:"root_url"`
	Timeout              int             `mapstructure:"timeout"`
	MaxWorkers           int             `mapstructure:"max_workers"`
	MaxRequestsPerSecond int             `mapstructure:"max_requests_per_second"`
	UserAgent            string          `mapstructure:"user_agent"`
	Proxies              []string        `mapstructure:"proxies"`
	Selectors            SelectorsConfig `mapstructure:"selectors"`
}

// SelectorsConfig describes the markup of a listing page.
// Link is matched against the direct children of a container.
type SelectorsConfig struct {
	Container string `mapstructure:"container"`
	Title     string `mapstructure:"title"`
	Image     string `mapstructure:"image"`
	Link      string `mapstructure:"link"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`

	// Path is the database file used by the sqlite driver
	Path string `mapstructure:"path"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	Database     int    `mapstructure:"database"`
	KeyPrefix    string `mapstructure:"key_prefix"`
	StreamMaxLen int64  `mapstructure:"stream_max_len"`
	LockTTL      int    `mapstructure:"lock_ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DSN returns the pgx connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load loads config.yaml from the current directory with environment variable overrides
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from path, or from ./config.yaml when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	root, err := url.Parse(c.Crawler.RootURL)
	if err != nil {
		return fmt.Errorf("crawler.root_url: %w", err)
	}
	if !root.IsAbs() || (root.Scheme != "http" && root.Scheme != "https") || root.Host == "" {
		return fmt.Errorf("crawler.root_url must be an absolute http(s) URL, got %q", c.Crawler.RootURL)
	}

	if c.Crawler.MaxWorkers < 1 {
		return fmt.Errorf("crawler.max_workers must be at least 1, got %d", c.Crawler.MaxWorkers)
	}

	s := c.Crawler.Selectors
	if s.Container == "" || s.Title == "" || s.Image == "" || s.Link == "" {
		return fmt.Errorf("crawler.selectors must define container, title, image and link")
	}

	switch c.Database.Driver {
	case DriverPostgres:
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.root_url", "https://www.stille.se/product-category/surgical-instruments/")
	v.SetDefault("crawler.timeout", 30)
	v.SetDefault("crawler.max_workers", 1)
	v.SetDefault("crawler.max_requests_per_second", 5)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("crawler.proxies", []string{})
	v.SetDefault("crawler.selectors.container", "ul.products > li.product")
	v.SetDefault("crawler.selectors.title", "div.woocommerce-title-container h3")
	v.SetDefault("crawler.selectors.image", "img")
	v.SetDefault("crawler.selectors.link", "a")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "surgical_instruments")
	v.SetDefault("database.user", "instruments_user")
	v.SetDefault("database.password", "instruments_pass")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.path", "./instruments.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.key_prefix", "instruments:")
	v.SetDefault("redis.stream_max_len", 1000)
	v.SetDefault("redis.lock_ttl", 3600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
