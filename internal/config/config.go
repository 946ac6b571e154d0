package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	LogFormat   string

	Server    ServerConfig
	Storage   StorageConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Event     EventConfig
	Payment   PaymentConfig
	Stripe    StripeConfig
	Mail      MailConfig
	Auth      AuthConfig
	Uploads   UploadsConfig
	Notifier  NotifierConfig
	Telemetry TelemetryConfig
	Timeouts  TimeoutsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type StorageConfig struct {
	// Driver is either "sqlite" or "postgres".
	Driver     string
	SQLitePath string
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
	MaxConns int32
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode,
	)
}

// RedisConfig with an empty Addr disables every redis-backed feature.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EventConfig struct {
	Name           string
	DateLabel      string
	Venue          string
	Address        string
	Starts         time.Time
	Ends           time.Time
	CodePrefix     string
	FilePrefix     string
	UIDPrefix      string
	UIDDomain      string
	PriceCents     int64
	Currency       string
	CurrencySymbol string
	SupportEmail   string
	SiteURL        string
	Tagline        string
}

// Gateways accepted in PaymentConfig.Gateway.
const (
	GatewayStripe = "stripe"
	GatewayDev    = "dev"
)

type PaymentConfig struct {
	// Gateway is "stripe" unless the dev gateway is asked for explicitly.
	Gateway string
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	FromName  string
	OutboxDir string
}

type AuthConfig struct {
	TicketsPasscode     string
	CompetitorsPasscode string
	SessionSecret       string
	SessionTTL          time.Duration
}

type UploadsConfig struct {
	Dir           string
	PublicBaseURL string
	S3Bucket      string
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
}

type NotifierConfig struct {
	Interval time.Duration
	// AlertEmail receives a message for each new signup; empty disables.
	AlertEmail string
}

type TelemetryConfig struct {
	OTLPEndpoint string
}

type TimeoutsConfig struct {
	Payment time.Duration
	Mail    time.Duration
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverPort, err := envInt("SERVER_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	storageCfg := StorageConfig{
		Driver:     envOr("DB_DRIVER", "sqlite"),
		SQLitePath: envOr("SQLITE_PATH", "./data/amparena.db"),
	}

	var postgresCfg PostgresConfig
	switch storageCfg.Driver {
	case "sqlite":
	case "postgres":
		postgresPort, err := envInt("POSTGRES_PORT", 5432)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
		}

		maxConns, err := envInt("POSTGRES_MAX_CONNS", 0)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid POSTGRES_MAX_CONNS: %w", op, err)
		}

		postgresCfg = PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Name:     os.Getenv("POSTGRES_DB"),
			Host:     envOr("POSTGRES_HOST", "localhost"),
			Port:     postgresPort,
			SSLMode:  envOr("POSTGRES_SSLMODE", "disable"),
			MaxConns: int32(maxConns),
		}

		if postgresCfg.User == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
		}
		if postgresCfg.Name == "" {
			return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
		}
	default:
		return nil, fmt.Errorf("%s: unknown DB_DRIVER %q", op, storageCfg.Driver)
	}

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid REDIS_DB: %w", op, err)
	}

	eventCfg, err := eventFromEnv()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	mailPort, err := envInt("EMAIL_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid EMAIL_PORT: %w", op, err)
	}

	sessionTTL, err := envDuration("SESSION_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SESSION_TTL: %w", op, err)
	}

	sessionSecret := os.Getenv("SESSION_SECRET")
	environment := envOr("ENVIRONMENT", "development")
	if sessionSecret == "" {
		if environment == "production" {
			return nil, fmt.Errorf("%s: missing SESSION_SECRET", op)
		}
		sessionSecret = "dev-session-secret"
	}

	paymentCfg := PaymentConfig{Gateway: strings.ToLower(envOr("PAYMENT_GATEWAY", GatewayStripe))}
	switch paymentCfg.Gateway {
	case GatewayStripe:
	case GatewayDev:
		if environment == "production" {
			return nil, fmt.Errorf("%s: PAYMENT_GATEWAY=dev is not allowed in production", op)
		}
	default:
		return nil, fmt.Errorf("%s: unknown PAYMENT_GATEWAY %q", op, paymentCfg.Gateway)
	}

	notifierInterval, err := envDuration("NOTIFIER_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid NOTIFIER_INTERVAL: %w", op, err)
	}

	paymentTimeout, err := envDuration("PAYMENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid PAYMENT_TIMEOUT: %w", op, err)
	}

	mailTimeout, err := envDuration("MAIL_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid MAIL_TIMEOUT: %w", op, err)
	}

	return &Config{
		Environment: environment,
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "text"),
		Server: ServerConfig{
			Host: envOr("SERVER_HOST", "localhost"),
			Port: serverPort,
		},
		Storage:  storageCfg,
		Postgres: postgresCfg,
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Event:   eventCfg,
		Payment: paymentCfg,
		Stripe: StripeConfig{
			SecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			PublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			WebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
		Mail: MailConfig{
			Host:      os.Getenv("EMAIL_HOST"),
			Port:      mailPort,
			Username:  os.Getenv("EMAIL_USER"),
			Password:  os.Getenv("EMAIL_PASS"),
			From:      envOr("EMAIL_FROM", os.Getenv("EMAIL_USER")),
			FromName:  envOr("EMAIL_FROM_NAME", "Amp Arena"),
			OutboxDir: envOr("EMAIL_OUTBOX_DIR", "./data/outbox"),
		},
		Auth: AuthConfig{
			TicketsPasscode:     os.Getenv("ADMIN_PASSCODE"),
			CompetitorsPasscode: os.Getenv("COMPETITOR_ADMIN_PASSCODE"),
			SessionSecret:       sessionSecret,
			SessionTTL:          sessionTTL,
		},
		Uploads: UploadsConfig{
			Dir:           envOr("UPLOADS_DIR", "./data/uploads"),
			PublicBaseURL: envOr("UPLOADS_PUBLIC_URL", "/uploads"),
			S3Bucket:      os.Getenv("S3_BUCKET"),
			S3Endpoint:    os.Getenv("S3_ENDPOINT"),
			S3Region:      envOr("S3_REGION", "auto"),
			S3AccessKey:   os.Getenv("S3_ACCESS_KEY_ID"),
			S3SecretKey:   os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Notifier: NotifierConfig{
			Interval:   notifierInterval,
			AlertEmail: os.Getenv("NOTIFY_EMAIL"),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
		Timeouts: TimeoutsConfig{
			Payment: paymentTimeout,
			Mail:    mailTimeout,
		},
	}, nil
}

func eventFromEnv() (EventConfig, error) {
	starts, err := envTime("EVENT_STARTS_AT", time.Date(2025, 10, 29, 18, 0, 0, 0, time.UTC))
	if err != nil {
		return EventConfig{}, fmt.Errorf("invalid EVENT_STARTS_AT: %w", err)
	}

	ends, err := envTime("EVENT_ENDS_AT", time.Date(2025, 10, 29, 22, 0, 0, 0, time.UTC))
	if err != nil {
		return EventConfig{}, fmt.Errorf("invalid EVENT_ENDS_AT: %w", err)
	}

	if !ends.After(starts) {
		return EventConfig{}, fmt.Errorf("EVENT_ENDS_AT must be after EVENT_STARTS_AT")
	}

	price, err := envInt("TICKET_PRICE_CENTS", 2000)
	if err != nil {
		return EventConfig{}, fmt.Errorf("invalid TICKET_PRICE_CENTS: %w", err)
	}
	if price <= 0 {
		return EventConfig{}, fmt.Errorf("TICKET_PRICE_CENTS must be positive")
	}

	return EventConfig{
		Name:           envOr("EVENT_NAME", "Amp Arena"),
		DateLabel:      envOr("EVENT_DATE_LABEL", "October 29th, 2025"),
		Venue:          envOr("EVENT_VENUE", "The Midway SF"),
		Address:        envOr("EVENT_ADDRESS", "900 Marin St, San Francisco, CA 94124"),
		Starts:         starts,
		Ends:           ends,
		CodePrefix:     strings.ToUpper(envOr("TICKET_CODE_PREFIX", "AMP")),
		FilePrefix:     envOr("TICKET_FILE_PREFIX", "amp-arena"),
		UIDPrefix:      envOr("CALENDAR_UID_PREFIX", "amp-arena"),
		UIDDomain:      envOr("CALENDAR_UID_DOMAIN", "build-olympics.com"),
		PriceCents:     int64(price),
		Currency:       strings.ToLower(envOr("TICKET_CURRENCY", "usd")),
		CurrencySymbol: envOr("TICKET_CURRENCY_SYMBOL", "$"),
		SupportEmail:   envOr("SUPPORT_EMAIL", "tickets@amparena.com"),
		SiteURL:        envOr("SITE_URL", "https://build-olympics.onrender.com"),
		Tagline:        envOr("EVENT_TAGLINE", "Where Code Meets Competition"),
	}, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func envTime(key string, def time.Time) (time.Time, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, s)
}
