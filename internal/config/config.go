// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
)

const (
	ProviderTwilio = "twilio"
	ProviderLog    = "log"
)

type Config struct {
	AppEnv     string
	ServerPort string

	DatabaseURL string

	CronSecret string

	ChannelProvider    string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioFromNumber   string
	DefaultPhoneRegion string

	AMQPURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	OTLPEndpoint string

	Location *time.Location

	DispatchBatchSize     int
	DispatchConcurrency   int
	DispatchRatePerSecond float64
	DispatchInterval      time.Duration
	DispatchStaleAfter    time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the config from the process environment only and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		DatabaseURL:        databaseURL(),
		CronSecret:         os.Getenv("CRON_SECRET"),
		ChannelProvider:    strings.ToLower(getEnv("CHANNEL_PROVIDER", ProviderTwilio)),
		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:   os.Getenv("TWILIO_PHONE_NUMBER"),
		DefaultPhoneRegion: getEnv("DEFAULT_PHONE_REGION", "US"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var err error
	var errs []error
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	cfg.RedisDB, err = getInt("REDIS_DB", 0)
	collect(err)
	cfg.DispatchBatchSize, err = getInt("DISPATCH_BATCH_SIZE", 100)
	collect(err)
	cfg.DispatchConcurrency, err = getInt("DISPATCH_CONCURRENCY", 5)
	collect(err)
	cfg.DispatchRatePerSecond, err = getFloat("DISPATCH_RATE_PER_SECOND", 1)
	collect(err)
	cfg.DispatchInterval, err = getDuration("DISPATCH_INTERVAL", 5*time.Minute)
	collect(err)
	cfg.DispatchStaleAfter, err = getDuration("DISPATCH_STALE_AFTER", 15*time.Minute)
	collect(err)

	cfg.Location, err = time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		collect(fmt.Errorf("invalid APP_TIMEZONE: %w", err))
	}

	collect(cfg.validate())
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func (c *Config) validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL (or DB_HOST/DB_NAME) is required"))
	}
	if c.DispatchBatchSize < 1 {
		errs = append(errs, errors.New("DISPATCH_BATCH_SIZE must be positive"))
	}
	if c.DispatchConcurrency < 1 {
		errs = append(errs, errors.New("DISPATCH_CONCURRENCY must be positive"))
	}
	if err := c.ValidateChannel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateChannel checks that the selected delivery provider has its credentials.
func (c *Config) ValidateChannel() error {
	switch c.ChannelProvider {
	case ProviderLog:
		if c.IsProduction() {
			return fmt.Errorf("%w: the log provider does not deliver messages and is not allowed in production", appErrors.ErrChannelNotConfigured)
		}
		return nil
	case ProviderTwilio:
		var missing []string
		if c.TwilioAccountSID == "" {
			missing = append(missing, "TWILIO_ACCOUNT_SID")
		}
		if c.TwilioAuthToken == "" {
			missing = append(missing, "TWILIO_AUTH_TOKEN")
		}
		if c.TwilioFromNumber == "" {
			missing = append(missing, "TWILIO_PHONE_NUMBER")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: missing %s", appErrors.ErrChannelNotConfigured, strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported provider %q", appErrors.ErrChannelNotConfigured, c.ChannelProvider)
	}
}

// RequireCronSecret is checked by binaries that expose the dispatch trigger.
func (c *Config) RequireCronSecret() error {
	if c.CronSecret == "" {
		return errors.New("CRON_SECRET is required")
	}
	return nil
}

// databaseURL prefers DATABASE_URL and falls back to the DB_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := os.Getenv("DB_HOST")
	name := os.Getenv("DB_NAME")
	if host == "" || name == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host, getEnv("DB_PORT", "5432"), name, getEnv("DB_SSLMODE", "disable"),
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
