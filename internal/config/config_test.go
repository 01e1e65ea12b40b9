package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	t.Run("applies defaults for missing keys", func(t *testing.T) {
		path := writeConfig(t, "crawler:\n  root_url: https://shop.example.com/catalog/\n")

		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, "https://shop.example.com/catalog/", cfg.Crawler.RootURL)
		assert.Equal(t, 1, cfg.Crawler.MaxWorkers)
		assert.Equal(t, 30, cfg.Crawler.Timeout)
		assert.Equal(t, "ul.products > li.product", cfg.Crawler.Selectors.Container)
		assert.Equal(t, "a", cfg.Crawler.Selectors.Link)
		assert.Equal(t, DriverPostgres, cfg.Database.Driver)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("reads nested sections", func(t *testing.T) {
		path := writeConfig(t, `
crawler:
  root_url: https://shop.example.com/
  max_workers: 4
  proxies:
    - http://10.0.0.1:3128
  selectors:
    container: div.grid > article
    title: h2
    image: img.thumb
    link: a.more
database:
  driver: sqlite
  path: /tmp/catalog.db
redis:
  enabled: true
  port: 6380
`)

		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, 4, cfg.Crawler.MaxWorkers)
		assert.Equal(t, []string{"http://10.0.0.1:3128"}, cfg.Crawler.Proxies)
		assert.Equal(t, SelectorsConfig{
			Container: "div.grid > article",
			Title:     "h2",
			Image:     "img.thumb",
			Link:      "a.more",
		}, cfg.Crawler.Selectors)
		assert.Equal(t, DriverSQLite, cfg.Database.Driver)
		assert.Equal(t, "/tmp/catalog.db", cfg.Database.Path)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6380", cfg.Redis.Addr())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "crawler:\n  root_url: https://shop.example.com/\n")
		t.Setenv("CRAWLER_MAX_WORKERS", "8")
		t.Setenv("DATABASE_HOST", "db.internal")

		cfg, err := LoadFile(path)
		require.NoError(t, err)

		assert.Equal(t, 8, cfg.Crawler.MaxWorkers)
		assert.Equal(t, "db.internal", cfg.Database.Host)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		path := writeConfig(t, "crawler:\n  root_url: /relative/path\n")

		_, err := LoadFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "root_url")
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Crawler: CrawlerConfig{
				RootURL:    "https://shop.example.com/",
				MaxWorkers: 1,
				Selectors: SelectorsConfig{
					Container: "li.product",
					Title:     "h3",
					Image:     "img",
					Link:      "a",
				},
			},
			Database: DatabaseConfig{Driver: DriverPostgres},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "ftp root", mutate: func(c *Config) { c.Crawler.RootURL = "ftp://shop.example.com/" }, wantErr: true},
		{name: "no host", mutate: func(c *Config) { c.Crawler.RootURL = "https://" }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Crawler.MaxWorkers = 0 }, wantErr: true},
		{name: "empty selector", mutate: func(c *Config) { c.Crawler.Selectors.Image = "" }, wantErr: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Driver = DriverSQLite }, wantErr: true},
		{name: "sqlite with path", mutate: func(c *Config) {
			c.Database.Driver = DriverSQLite
			c.Database.Path = "catalog.db"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.Equal(t,
		"host=h port=5432 user=u password=p dbname=n sslmode=disable",
		DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}.DSN(),
	)
}
