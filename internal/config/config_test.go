package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no stray .env is picked up
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdir(t)
	t.Setenv("LLM_PROVIDER", "echo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, ":8000", cfg.GetHTTPAddr())
	assert.Equal(t, ":9090", cfg.GetGRPCAddr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 24*time.Hour, cfg.Threads.TTL)
	assert.Equal(t, 5, cfg.Workers.PoolSize)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.ShutdownTimeout)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdir(t)
	content := "LLM_PROVIDER=anthropic\nLLM_API_KEY=from-file\nCORS_ALLOWED_ORIGINS=http://a.test,http://b.test\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	// restored on cleanup; unset so godotenv may fill them
	for _, key := range []string{"LLM_PROVIDER", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	// the environment wins over the file
	t.Setenv("LLM_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:       8000,
			GRPCPort:       9090,
			LogLevel:       "info",
			AllowedOrigins: []string{"http://localhost:3000"},
			StoreBackend:   "memory",
			Threads:        ThreadConfig{TTL: time.Hour},
			Redis:          RedisConfig{Addr: "localhost:6379"},
			LLM:            LLMConfig{Provider: "anthropic", APIKey: "key", DefaultMaxTokens: 1024},
			Workers:        WorkerConfig{PoolSize: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad http port", func(c *Config) { c.HTTPPort = 0 }, "invalid HTTP port"},
		{"bad grpc port", func(c *Config) { c.GRPCPort = 70000 }, "invalid gRPC port"},
		{"no origins", func(c *Config) { c.AllowedOrigins = nil }, "CORS origin"},
		{"unknown backend", func(c *Config) { c.StoreBackend = "disk" }, "unsupported store backend"},
		{"redis without addr", func(c *Config) { c.StoreBackend = "redis"; c.Redis.Addr = "" }, "redis address"},
		{"missing api key", func(c *Config) { c.LLM.APIKey = "" }, "API key"},
		{"echo needs no key", func(c *Config) { c.LLM.Provider = "echo"; c.LLM.APIKey = "" }, ""},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "oracle" }, "unsupported LLM provider"},
		{"no workers", func(c *Config) { c.Workers.PoolSize = 0 }, "worker pool size"},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"zero ttl", func(c *Config) { c.Threads.TTL = 0 }, "thread TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
