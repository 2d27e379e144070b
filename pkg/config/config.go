package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON   = "json"
	FormatLegacy = "legacy"

	LockNone  = "none"
	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Port     string `yaml:"port"`
	AppEnv   string `yaml:"app_env"`
	BaseURL  string `yaml:"base_url"`
	StoreURL string `yaml:"store_url"`

	StoreBatchSize     int    `yaml:"store_batch_size"`
	RedisPrefix        string `yaml:"redis_prefix"`
	CloudflareAPIToken string `yaml:"cloudflare_api_token"`
	CloudflareAPIURL   string `yaml:"cloudflare_api_url"`

	LinkFormat     string `yaml:"link_format"`
	PageSize       int    `yaml:"page_size"`
	AllowOverwrite bool   `yaml:"allow_overwrite"`

	VisitLock    string        `yaml:"visit_lock"`
	LockRedisURL string        `yaml:"lock_redis_url"`
	LockTTL      time.Duration `yaml:"lock_ttl"`

	CrawlerSignatures []string `yaml:"crawler_signatures"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func Default() *Config {
	return &Config{
		Port:           "8080",
		AppEnv:         "local",
		StoreURL:       "file:db.sqlite",
		StoreBatchSize: 1000,
		RedisPrefix:    "shortener:",
		LinkFormat:     FormatJSON,
		PageSize:       30,
		AllowOverwrite: true,
		VisitLock:      LockNone,
		LockTTL:        5 * time.Second,
		LogLevel:       "info",
	}
}

// Load reads .env, then the optional CONFIG_FILE, then the environment.
// Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.BaseURL = getEnv("BASE_URL", cfg.BaseURL)
	cfg.StoreURL = getEnv("STORE_URL", getEnv("DATABASE_URL", cfg.StoreURL))
	cfg.RedisPrefix = getEnv("REDIS_PREFIX", cfg.RedisPrefix)
	cfg.CloudflareAPIToken = getEnv("CLOUDFLARE_API_TOKEN", cfg.CloudflareAPIToken)
	cfg.CloudflareAPIURL = getEnv("CLOUDFLARE_API_URL", cfg.CloudflareAPIURL)
	cfg.LinkFormat = getEnv("LINK_FORMAT", cfg.LinkFormat)
	cfg.VisitLock = getEnv("VISIT_LOCK", cfg.VisitLock)
	cfg.LockRedisURL = getEnv("LOCK_REDIS_URL", cfg.LockRedisURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.CrawlerSignatures = getEnvList("CRAWLER_SIGNATURES", cfg.CrawlerSignatures)

	var err error
	if cfg.StoreBatchSize, err = getEnvInt("STORE_BATCH_SIZE", cfg.StoreBatchSize); err != nil {
		return nil, err
	}
	if cfg.PageSize, err = getEnvInt("PAGE_SIZE", cfg.PageSize); err != nil {
		return nil, err
	}
	if cfg.AllowOverwrite, err = getEnvBool("ALLOW_OVERWRITE", cfg.AllowOverwrite); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = getEnvDuration("LOCK_TTL", cfg.LockTTL); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.LinkFormat {
	case FormatJSON, FormatLegacy:
	default:
		return fmt.Errorf("LINK_FORMAT must be %q or %q, got %q", FormatJSON, FormatLegacy, c.LinkFormat)
	}
	switch c.VisitLock {
	case LockNone, LockLocal, LockRedis:
	default:
		return fmt.Errorf("VISIT_LOCK must be one of none, local, redis, got %q", c.VisitLock)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.StoreBatchSize < 1 {
		return fmt.Errorf("STORE_BATCH_SIZE must be positive, got %d", c.StoreBatchSize)
	}
	if c.VisitLock == LockRedis && c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive when VISIT_LOCK=redis")
	}
	if c.StoreURL == "" {
		return fmt.Errorf("STORE_URL is required")
	}
	// Locks held on the store's own redis live under "lock:"; a prefix that
	// also matches them would list lock tokens as links.
	if c.VisitLock == LockRedis && c.LockRedisURL == "" && c.isRedisStore() &&
		strings.HasPrefix(redisLockKeyPrefix, c.RedisPrefix) {
		return fmt.Errorf("REDIS_PREFIX %q overlaps the lock keys; set a distinct prefix or LOCK_REDIS_URL", c.RedisPrefix)
	}
	return nil
}

const redisLockKeyPrefix = "lock:"

func (c *Config) isRedisStore() bool {
	return strings.HasPrefix(c.StoreURL, "redis://") || strings.HasPrefix(c.StoreURL, "rediss://")
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
