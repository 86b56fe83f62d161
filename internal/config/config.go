package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Feed    FeedConfig    `yaml:"feed"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ShutdownSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// ShutdownTimeout converts the configured grace period.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// StorageConfig locates the posts file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// FeedConfig 描述变更推送配置。
type FeedConfig struct {
	Enabled          *bool `yaml:"enabled"`
	Buffer           int   `yaml:"buffer"`
	HeartbeatSeconds int   `yaml:"heartbeat_seconds"`
}

// IsEnabled treats an unset flag as enabled.
func (c FeedConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Heartbeat converts the configured SSE heartbeat period.
func (c FeedConfig) Heartbeat() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

const (
	defaultPort             = "8080"
	defaultPostsFile        = "data/posts.json"
	defaultFeedBuffer       = 16
	defaultHeartbeatSeconds = 15
	defaultShutdownSeconds  = 10
)

// Load 先读取可选的 YAML 文件 (CONFIG_FILE)，再用环境变量覆盖。
func Load() (*Config, error) {
	cfg := &Config{}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		fileCfg, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := applyServerEnv(&cfg.Server); err != nil {
		return nil, err
	}
	if err := applyStorageEnv(&cfg.Storage); err != nil {
		return nil, err
	}
	if err := applyFeedEnv(&cfg.Feed); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	// #nosec G304 -- path is provided by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyServerEnv 解析服务器监听地址。
func applyServerEnv(server *ServerConfig) error {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = server.Addr
	}
	if port == "" {
		port = defaultPort
	}

	addr, err := normalizeAddr(port)
	if err != nil {
		return err
	}
	server.Addr = addr

	shutdown, err := parseOptionalIntEnv("SHUTDOWN_TIMEOUT_SECONDS")
	if err != nil {
		return err
	}
	if shutdown != nil {
		server.ShutdownSeconds = *shutdown
	}
	if server.ShutdownSeconds <= 0 {
		server.ShutdownSeconds = defaultShutdownSeconds
	}
	return nil
}

func normalizeAddr(port string) (string, error) {
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}
	return ":" + port, nil
}

func applyStorageEnv(storage *StorageConfig) error {
	storage.Path = getEnvOrDefault("POSTS_FILE", storage.Path)
	if storage.Path == "" {
		storage.Path = defaultPostsFile
	}
	return nil
}

func applyFeedEnv(feed *FeedConfig) error {
	if _, ok := os.LookupEnv("POSTS_FEED_ENABLED"); ok {
		enabled, err := parseBoolEnv("POSTS_FEED_ENABLED", feed.IsEnabled())
		if err != nil {
			return err
		}
		feed.Enabled = &enabled
	}

	buffer, err := parseOptionalIntEnv("POSTS_FEED_BUFFER")
	if err != nil {
		return err
	}
	if buffer != nil {
		feed.Buffer = *buffer
	}
	if feed.Buffer == 0 {
		feed.Buffer = defaultFeedBuffer
	}
	if feed.Buffer < 1 {
		feed.Buffer = 1
	}

	heartbeat, err := parseOptionalIntEnv("POSTS_FEED_HEARTBEAT_SECONDS")
	if err != nil {
		return err
	}
	if heartbeat != nil {
		feed.HeartbeatSeconds = *heartbeat
	}
	if feed.HeartbeatSeconds == 0 {
		feed.HeartbeatSeconds = defaultHeartbeatSeconds
	}
	if feed.HeartbeatSeconds < 1 {
		feed.HeartbeatSeconds = 1
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
