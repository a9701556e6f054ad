package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Addr              string        `yaml:"addr"`
	StoreDriver       string        `yaml:"store_driver"`
	DatabaseURL       string        `yaml:"database_url"`
	MongoURI          string        `yaml:"mongo_uri"`
	MongoDBName       string        `yaml:"mongo_db_name"`
	RedisAddr         string        `yaml:"redis_addr"`
	RedisPassword     string        `yaml:"redis_password"`
	CartTTL           time.Duration `yaml:"cart_ttl"`
	KafkaBrokers      []string      `yaml:"kafka_brokers"`
	KafkaTopic        string        `yaml:"kafka_topic"`
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	PlaceholderImage  string        `yaml:"placeholder_image"`
	LogLevel          string        `yaml:"log_level"`
}

func defaults() Config {
	return Config{
		Addr:             ":8080",
		StoreDriver:      DriverMemory,
		MongoDBName:      "storefront",
		CartTTL:          7 * 24 * time.Hour,
		KafkaTopic:       "storefront-orders",
		TokenTTL:         72 * time.Hour,
		PlaceholderImage: "https://placehold.co/600x800?text=JAI",
		LogLevel:         "info",
	}
}

// Load reads .env (if present), then the YAML file named by
// STOREFRONT_CONFIG (if set), then environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("STOREFRONT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	setString(&cfg.Addr, "STOREFRONT_ADDR")
	setString(&cfg.StoreDriver, "STORE_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MongoURI, "MONGO_URI")
	setString(&cfg.MongoDBName, "MONGO_DB_NAME")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&cfg.PlaceholderImage, "PLACEHOLDER_IMAGE")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if err := setDuration(&cfg.CartTTL, "CART_TTL"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.TokenTTL, "TOKEN_TTL"); err != nil {
		return Config{}, err
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

// Validate checks the settings the serve command cannot run without.
func (c Config) Validate() error {
	errs := []error{c.ValidateStore()}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.CartTTL <= 0 {
		errs = append(errs, errors.New("CART_TTL must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateStore checks only the document store settings, for commands that
// do not serve HTTP.
func (c Config) ValidateStore() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
