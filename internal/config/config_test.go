package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE",
		"PORT",
		"POSTS_FILE",
		"POSTS_FEED_ENABLED",
		"POSTS_FEED_BUFFER",
		"POSTS_FEED_HEARTBEAT_SECONDS",
		"SHUTDOWN_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout())
	assert.Equal(t, "data/posts.json", cfg.Storage.Path)
	assert.True(t, cfg.Feed.IsEnabled())
	assert.Equal(t, 16, cfg.Feed.Buffer)
	assert.Equal(t, 15*time.Second, cfg.Feed.Heartbeat())
}

func TestLoadServerAddr(t *testing.T) {
	tests := []struct {
		port    string
		want    string
		wantErr bool
	}{
		{port: "9090", want: ":9090"},
		{port: ":9091", want: ":9091"},
		{port: "127.0.0.1:9092", want: "127.0.0.1:9092"},
		{port: "90 90", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.port, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PORT", tt.port)

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Server.Addr)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTS_FILE", "/var/lib/blog/posts.json")
	t.Setenv("POSTS_FEED_ENABLED", "false")
	t.Setenv("POSTS_FEED_BUFFER", "64")
	t.Setenv("POSTS_FEED_HEARTBEAT_SECONDS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/blog/posts.json", cfg.Storage.Path)
	assert.False(t, cfg.Feed.IsEnabled())
	assert.Equal(t, 64, cfg.Feed.Buffer)
	assert.Equal(t, 5*time.Second, cfg.Feed.Heartbeat())
}

func TestLoadInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"POSTS_FEED_ENABLED":       "maybe",
		"POSTS_FEED_BUFFER":        "lots",
		"SHUTDOWN_TIMEOUT_SECONDS": "soon",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadYAMLFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
server:
  addr: ":7000"
  shutdown_timeout_seconds: 3
storage:
  path: "/srv/posts.json"
feed:
  enabled: false
  buffer: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("POSTS_FEED_BUFFER", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout())
	assert.Equal(t, "/srv/posts.json", cfg.Storage.Path)
	assert.False(t, cfg.Feed.IsEnabled())
	assert.Equal(t, 8, cfg.Feed.Buffer)
}

func TestLoadYAMLFileErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [oops"), 0600))
	t.Setenv("CONFIG_FILE", path)
	_, err = Load()
	assert.Error(t, err)
}
