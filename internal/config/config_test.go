package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tourshop/internal/config"
)

// isolate runs the test in an empty directory with no storefront variables set.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, key := range []string{
		"PORT", "BEARER_TOKEN", "UPSTREAM_URL", "LOG_LEVEL", "ASSET_ROOT", "ASSET_BASE_URL",
		"LOCALE", "STORAGE_BACKEND", "STATE_PATH", "REDIS_URL", "DATABASE_URL", "BASKET_KEY",
		"PRELOAD_CONCURRENCY", "PAGE_SIZE", "IMAGE_CACHE_TTL", "IMAGE_HOSTS", "STOREFRONT_CONFIG",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	t.Setenv("BEARER_TOKEN", "secret")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.ImageTTL)
	assert.Equal(t, "file", cfg.StorageBackend)
	assert.Equal(t, "/assets/images", cfg.AssetRoot)
	assert.Equal(t, 12, cfg.PageSize)
	assert.Equal(t, "basket", cfg.BasketKey)
}

func TestLoad_ImageHosts(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bearer_token: t\nimage_hosts: [cdn.example.com]\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cdn.example.com"}, cfg.ImageHosts)

	t.Setenv("IMAGE_HOSTS", " img.example.org , ,static.example.net:8443")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"img.example.org", "static.example.net:8443"}, cfg.ImageHosts)
}

func TestLoad_MissingToken(t *testing.T) {
	isolate(t)

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BEARER_TOKEN")
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BEARER_TOKEN=from-dotenv\nPAGE_SIZE=20\n"), 0o600))
	// godotenv never overrides variables that are already set; clear ours.
	require.NoError(t, os.Unsetenv("BEARER_TOKEN"))
	require.NoError(t, os.Unsetenv("PAGE_SIZE"))
	t.Cleanup(func() {
		_ = os.Unsetenv("BEARER_TOKEN")
		_ = os.Unsetenv("PAGE_SIZE")
	})

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.BearerToken)
	assert.Equal(t, 20, cfg.PageSize)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "storefront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bearer_token: yaml-token
port: "9090"
image_cache_ttl: 5m
storage_backend: memory
locale: de
`), 0o600))
	t.Setenv("PORT", "7070")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yaml-token", cfg.BearerToken)
	assert.Equal(t, "7070", cfg.Port, "environment wins over the file")
	assert.Equal(t, 5*time.Minute, cfg.ImageTTL)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, "de", cfg.Locale)
}

func TestLoad_ConfigFromEnvVar(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bearer_token: t\n"), 0o600))
	t.Setenv("STOREFRONT_CONFIG", path)

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "t", cfg.BearerToken)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"PAGE_SIZE": "twelve"}, "PAGE_SIZE"},
		{"bad ttl", map[string]string{"IMAGE_CACHE_TTL": "soon"}, "IMAGE_CACHE_TTL"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "etcd"}, "invalid storage backend"},
		{"redis without url", map[string]string{"STORAGE_BACKEND": "redis"}, "REDIS_URL"},
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres"}, "DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv("BEARER_TOKEN", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	dir := isolate(t)
	t.Setenv("BEARER_TOKEN", "secret")

	_, err := config.Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	cfg := config.Default()
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo, "loud": slog.LevelInfo,
	} {
		cfg.LogLevel = in
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
