package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string
	LogLevel     string
	LogFormat    string

	Socializing Socializing
}

type Socializing struct {
	Timezone              string
	DefaultDeadlineHours  int
	DeadlineCron          string
	IdempotencyTTL        time.Duration
	EnableTallyBroadcast  bool
	EnableDeadlineWatcher bool
	// EnforceMembership rejects votes from participants the directory does not
	// list for the cohort. Off until the directory projection is populated.
	EnforceMembership     bool
}

// fileConfig mirrors Config for the optional YAML overlay. Unset keys keep
// the defaults.
type fileConfig struct {
	ServiceName  string   `yaml:"service_name"`
	HTTPPort     string   `yaml:"http_port"`
	PostgresDSN  string   `yaml:"postgres_dsn"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	LogLevel     string   `yaml:"log_level"`
	LogFormat    string   `yaml:"log_format"`
	Socializing  struct {
		Timezone              string `yaml:"timezone"`
		DefaultDeadlineHours  int    `yaml:"default_deadline_hours"`
		DeadlineCron          string `yaml:"deadline_cron"`
		IdempotencyTTL        string `yaml:"idempotency_ttl"`
		EnableTallyBroadcast  *bool  `yaml:"enable_tally_broadcast"`
		EnableDeadlineWatcher *bool  `yaml:"enable_deadline_watcher"`
		EnforceMembership     *bool  `yaml:"enforce_membership"`
	} `yaml:"socializing"`
}

func Defaults() Config {
	return Config{
		ServiceName:  "gathering",
		HTTPPort:     "8080",
		KafkaBrokers: []string{"localhost:9092"},
		LogLevel:     "info",
		LogFormat:    "text",
		Socializing: Socializing{
			Timezone:              "Asia/Seoul",
			DefaultDeadlineHours:  12,
			DeadlineCron:          "@every 1m",
			IdempotencyTTL:        7 * 24 * time.Hour,
			EnableTallyBroadcast:  true,
			EnableDeadlineWatcher: true,
		},
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE, then
// the process environment. Later sources win.
func Load() (Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit YAML path; an empty path falls back to
// CONFIG_FILE.
func LoadFrom(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if strings.TrimSpace(path) != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Socializing.DefaultDeadlineHours < 1 || c.Socializing.DefaultDeadlineHours > 168 {
		return fmt.Errorf("SOCIALIZING_DEFAULT_DEADLINE_HOURS must be within 1..168, got %d", c.Socializing.DefaultDeadlineHours)
	}
	if _, err := time.LoadLocation(c.Socializing.Timezone); err != nil {
		return fmt.Errorf("SOCIALIZING_TIMEZONE: %w", err)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.ServiceName, file.ServiceName)
	setString(&cfg.HTTPPort, file.HTTPPort)
	setString(&cfg.PostgresDSN, file.PostgresDSN)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.LogFormat, file.LogFormat)
	if len(file.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = splitList(strings.Join(file.KafkaBrokers, ","))
	}

	social := file.Socializing
	setString(&cfg.Socializing.Timezone, social.Timezone)
	setString(&cfg.Socializing.DeadlineCron, social.DeadlineCron)
	if social.DefaultDeadlineHours != 0 {
		cfg.Socializing.DefaultDeadlineHours = social.DefaultDeadlineHours
	}
	if strings.TrimSpace(social.IdempotencyTTL) != "" {
		ttl, err := time.ParseDuration(strings.TrimSpace(social.IdempotencyTTL))
		if err != nil {
			return fmt.Errorf("socializing.idempotency_ttl: %w", err)
		}
		cfg.Socializing.IdempotencyTTL = ttl
	}
	if social.EnableTallyBroadcast != nil {
		cfg.Socializing.EnableTallyBroadcast = *social.EnableTallyBroadcast
	}
	if social.EnableDeadlineWatcher != nil {
		cfg.Socializing.EnableDeadlineWatcher = *social.EnableDeadlineWatcher
	}
	if social.EnforceMembership != nil {
		cfg.Socializing.EnforceMembership = *social.EnforceMembership
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.ServiceName, os.Getenv("SERVICE_NAME"))
	setString(&cfg.HTTPPort, os.Getenv("HTTP_PORT"))
	setString(&cfg.PostgresDSN, os.Getenv("POSTGRES_DSN"))
	setString(&cfg.LogLevel, strings.ToLower(os.Getenv("LOG_LEVEL")))
	setString(&cfg.LogFormat, strings.ToLower(os.Getenv("LOG_FORMAT")))
	if brokers := splitList(os.Getenv("KAFKA_BROKERS")); len(brokers) > 0 {
		cfg.KafkaBrokers = brokers
	}

	setString(&cfg.Socializing.Timezone, os.Getenv("SOCIALIZING_TIMEZONE"))
	setString(&cfg.Socializing.DeadlineCron, os.Getenv("SOCIALIZING_DEADLINE_CRON"))
	if raw := strings.TrimSpace(os.Getenv("SOCIALIZING_DEFAULT_DEADLINE_HOURS")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("SOCIALIZING_DEFAULT_DEADLINE_HOURS: %w", err)
		}
		cfg.Socializing.DefaultDeadlineHours = hours
	}
	if raw := strings.TrimSpace(os.Getenv("SOCIALIZING_IDEMPOTENCY_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("SOCIALIZING_IDEMPOTENCY_TTL: %w", err)
		}
		cfg.Socializing.IdempotencyTTL = ttl
	}
	cfg.Socializing.EnableTallyBroadcast = envBool("ENABLE_SOCIALIZING_TALLY_BROADCAST", cfg.Socializing.EnableTallyBroadcast)
	cfg.Socializing.EnableDeadlineWatcher = envBool("ENABLE_SOCIALIZING_DEADLINE_WATCHER", cfg.Socializing.EnableDeadlineWatcher)
	cfg.Socializing.EnforceMembership = envBool("SOCIALIZING_ENFORCE_MEMBERSHIP", cfg.Socializing.EnforceMembership)
	return nil
}

func setString(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

func splitList(raw string) []string {
	var items []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
