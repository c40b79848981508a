package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	pkgcfg "github.com/Skotchmaster/auth_service/pkg/config"
)

const minSecretLen = 32

type Config struct {
	ServiceName string
	AppEnv      string
	ServerPort  string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	JWTSecret        []byte
	JWTRefreshSecret []byte
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	StoreTimeout time.Duration
	BcryptCost   int

	KafkaBrokers []string
	UserTopic    string
	EmailTopic   string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	FrontendURL  string
	CookieSecure bool
	CSRFEnabled  bool

	RateLimitBackend string
	SweepInterval    time.Duration
	LedgerRetention  time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("notice: .env not loaded (%v), using process environment", err)
	}
	return FromEnv()
}

func FromEnv() *Config {
	return &Config{
		ServiceName: pkgcfg.EnvDefault("SERVICE_NAME", "auth"),
		AppEnv:      pkgcfg.EnvDefault("APP_ENV", "development"),
		ServerPort:  pkgcfg.EnvDefault("SERVER_PORT", "8080"),
		LogLevel:    pkgcfg.EnvDefault("LOG_LEVEL", "info"),

		DatabaseURL: pkgcfg.EnvDefault("DATABASE_URL", ""),
		RedisURL:    pkgcfg.EnvDefault("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret:        []byte(pkgcfg.EnvDefault("JWT_SECRET", "")),
		JWTRefreshSecret: []byte(pkgcfg.EnvDefault("JWT_REFRESH_SECRET", "")),
		JWTIssuer:        pkgcfg.EnvDefault("JWT_ISSUER", "auth"),
		AccessTokenTTL:   pkgcfg.EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:  pkgcfg.EnvDurationDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		StoreTimeout: pkgcfg.EnvDurationDefault("STORE_TIMEOUT", 3*time.Second),
		BcryptCost:   pkgcfg.EnvIntDefault("BCRYPT_COST", 12),

		KafkaBrokers: pkgcfg.CSV(pkgcfg.EnvDefault("KAFKA_BROKERS", "")),
		UserTopic:    pkgcfg.EnvDefault("KAFKA_USER_TOPIC", "user_events"),
		EmailTopic:   pkgcfg.EnvDefault("KAFKA_EMAIL_TOPIC", "email_events"),

		ESURL:      pkgcfg.EnvDefault("ES_URL", ""),
		ESUser:     pkgcfg.EnvDefault("ES_USER", ""),
		ESPassword: pkgcfg.EnvDefault("ES_PASSWORD", ""),
		ESIndex:    pkgcfg.EnvDefault("ES_INDEX", "auth_events"),

		FrontendURL:  pkgcfg.EnvDefault("FRONTEND_URL", "http://localhost:3000"),
		CookieSecure: pkgcfg.EnvBoolDefault("COOKIE_SECURE", true),
		CSRFEnabled:  pkgcfg.EnvBoolDefault("CSRF_ENABLED", false),

		RateLimitBackend: pkgcfg.EnvDefault("RATE_LIMIT_BACKEND", "memory"),
		SweepInterval:    pkgcfg.EnvDurationDefault("SWEEP_INTERVAL", 10*time.Minute),
		LedgerRetention:  pkgcfg.EnvDurationDefault("LEDGER_RETENTION", 30*24*time.Hour),
	}
}

func (c *Config) Addr() string { return ":" + c.ServerPort }

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if len(c.JWTSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen))
	}
	if len(c.JWTRefreshSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_SECRET must be at least %d bytes", minSecretLen))
	}
	if len(c.JWTSecret) > 0 && string(c.JWTSecret) == string(c.JWTRefreshSecret) {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	switch c.RateLimitBackend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND %q is not one of memory, redis", c.RateLimitBackend))
	}
	return errors.Join(errs...)
}
