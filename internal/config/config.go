// Package config reads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/drogue-iot/drogue-postgresql-pusher/internal/writer"
)

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	BindAddr           string
	MaxJSONPayloadSize int64
	Auth               AuthConfig
	Database           DatabaseConfig
	Target             TargetConfig
	MappingFile        string
	NATS               NATSConfig
}

// AuthConfig gates the HTTP endpoint. Each method is active only when set.
type AuthConfig struct {
	Username string
	Password string
	Token    string
}

type DatabaseConfig struct {
	Driver              string
	DSN                 string
	MaxOpenConns        int
	MaxIdleConns        int
	ConnMaxLifetime     time.Duration
	ConnectTimeout      time.Duration
	HealthCheckSchedule string
}

type TargetConfig struct {
	Table           string
	TimeColumn      string
	WriteTimeout    time.Duration
	DisableTryParse bool
}

// NATSConfig is optional; an empty URL disables the subscriber.
type NATSConfig struct {
	URL     string
	Subject string
	Queue   string
}

// Load reads .env files (the default ".env" is optional) and then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		BindAddr:           getEnv("BIND_ADDR", "127.0.0.1:8080"),
		MaxJSONPayloadSize: p.int64("MAX_JSON_PAYLOAD_SIZE", 65536),
		Auth: AuthConfig{
			Username: getEnv("AUTH_USERNAME", ""),
			Password: getEnv("AUTH_PASSWORD", ""),
			Token:    getEnv("AUTH_TOKEN", ""),
		},
		Database: DatabaseConfig{
			Driver:              getEnv("DB_DRIVER", "postgres"),
			DSN:                 databaseDSN(),
			MaxOpenConns:        p.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:        p.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:     p.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:      p.duration("DB_CONNECT_TIMEOUT", 10*time.Second),
			HealthCheckSchedule: getEnv("HEALTH_CHECK_SCHEDULE", "@every 30s"),
		},
		Target: TargetConfig{
			Table:           getEnv("TARGET_TABLE", ""),
			TimeColumn:      getEnv("TIME_COLUMN", "time"),
			WriteTimeout:    p.duration("WRITE_TIMEOUT", 10*time.Second),
			DisableTryParse: p.bool("DISABLE_TRY_PARSE", false),
		},
		MappingFile: getEnv("MAPPING_FILE", "mapping.yaml"),
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "events"),
			Queue:   getEnv("NATS_QUEUE", "postgresql-pusher"),
		},
	}

	p.errs = append(p.errs, cfg.validate()...)
	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.Target.Table == "" {
		errs = append(errs, errors.New("TARGET_TABLE is required"))
	} else if err := writer.ValidateTable(c.Target.Table); err != nil {
		errs = append(errs, fmt.Errorf("TARGET_TABLE: %w", err))
	}
	if !columnPattern.MatchString(c.Target.TimeColumn) {
		errs = append(errs, fmt.Errorf("TIME_COLUMN: invalid column name %q", c.Target.TimeColumn))
	}
	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q (use postgres or pgx)", c.Database.Driver))
	}
	if c.MaxJSONPayloadSize <= 0 {
		errs = append(errs, errors.New("MAX_JSON_PAYLOAD_SIZE must be positive"))
	}
	if c.Auth.Password != "" && c.Auth.Username == "" {
		errs = append(errs, errors.New("AUTH_PASSWORD is set without AUTH_USERNAME"))
	}
	return errs
}

// databaseDSN prefers DATABASE_URL and otherwise builds a key/value DSN
// from the DB_* variables. Both drivers accept either form.
func databaseDSN() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "postgres"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return fallback
	}
	return v
}

func (p *parser) int64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return fallback
	}
	return v
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return fallback
	}
	return v
}

func (p *parser) bool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, raw))
		return fallback
	}
	return v
}

// LogSummary prints the effective configuration without secrets.
func (c *Config) LogSummary() {
	log.Printf("Configuration: bind=%s table=%s time_column=%s driver=%s mapping=%s try_parse=%t",
		c.BindAddr, c.Target.Table, c.Target.TimeColumn, c.Database.Driver, c.MappingFile, !c.Target.DisableTryParse)
	log.Printf("Auth: basic=%t bearer=%t, NATS: %t", c.Auth.Username != "", c.Auth.Token != "", c.NATS.URL != "")
}
