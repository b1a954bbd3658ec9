package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backends accepted by StorageBackend.
var Backends = []string{"file", "redis", "postgres", "memory"}

// Config is the resolved server configuration.
type Config struct {
	Port        string `yaml:"port"`
	BearerToken string `yaml:"bearer_token"`
	UpstreamURL string `yaml:"upstream_url"`
	LogLevel    string `yaml:"log_level"`

	AssetRoot          string        `yaml:"asset_root"`
	AssetBaseURL       string        `yaml:"asset_base_url"`
	ImageHosts         []string      `yaml:"image_hosts"`
	ImageTTL           time.Duration `yaml:"image_cache_ttl"`
	PreloadConcurrency int           `yaml:"preload_concurrency"`

	Locale   string `yaml:"locale"`
	PageSize int    `yaml:"page_size"`

	StorageBackend string `yaml:"storage_backend"`
	StatePath      string `yaml:"state_path"`
	RedisURL       string `yaml:"redis_url"`
	DatabaseURL    string `yaml:"database_url"`
	BasketKey      string `yaml:"basket_key"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Port:               "8080",
		UpstreamURL:        "http://localhost:3000",
		LogLevel:           "info",
		AssetRoot:          "/assets/images",
		AssetBaseURL:       "http://localhost:4200",
		ImageTTL:           30 * time.Minute,
		PreloadConcurrency: 4,
		Locale:             "en",
		PageSize:           12,
		StorageBackend:     "file",
		StatePath:          "./state/basket.json",
		BasketKey:          "basket",
	}
}

// Load resolves configuration from defaults, a .env file in the working
// directory, the YAML file at path (or $STOREFRONT_CONFIG) and finally the
// process environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("STOREFRONT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"PORT":            &c.Port,
		"BEARER_TOKEN":    &c.BearerToken,
		"UPSTREAM_URL":    &c.UpstreamURL,
		"LOG_LEVEL":       &c.LogLevel,
		"ASSET_ROOT":      &c.AssetRoot,
		"ASSET_BASE_URL":  &c.AssetBaseURL,
		"LOCALE":          &c.Locale,
		"STORAGE_BACKEND": &c.StorageBackend,
		"STATE_PATH":      &c.StatePath,
		"REDIS_URL":       &c.RedisURL,
		"DATABASE_URL":    &c.DatabaseURL,
		"BASKET_KEY":      &c.BasketKey,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PRELOAD_CONCURRENCY": &c.PreloadConcurrency,
		"PAGE_SIZE":           &c.PageSize,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", key, err)
		}
		*dst = n
	}

	if v := os.Getenv("IMAGE_HOSTS"); v != "" {
		c.ImageHosts = nil
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				c.ImageHosts = append(c.ImageHosts, h)
			}
		}
	}

	if v := os.Getenv("IMAGE_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing IMAGE_CACHE_TTL: %w", err)
		}
		c.ImageTTL = d
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.BearerToken == "" {
		return errors.New("BEARER_TOKEN is required")
	}

	valid := false
	for _, b := range Backends {
		if c.StorageBackend == b {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid storage backend %q (valid: %v)", c.StorageBackend, Backends)
	}

	switch {
	case c.StorageBackend == "redis" && c.RedisURL == "":
		return errors.New("REDIS_URL is required for the redis backend")
	case c.StorageBackend == "postgres" && c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required for the postgres backend")
	case c.StorageBackend == "file" && c.StatePath == "":
		return errors.New("STATE_PATH is required for the file backend")
	}

	if c.ImageTTL <= 0 {
		return fmt.Errorf("image cache TTL must be positive, got %s", c.ImageTTL)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
