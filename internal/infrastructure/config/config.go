package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/poyrazK/dyndns/internal/core/domain"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	ProviderPostgres = "postgres"
	ProviderRFC2136  = "rfc2136"
	ProviderMemory   = "memory"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	DatabaseURL string
	StoreDriver string

	DNSProvider     string
	ZoneName        string
	DDNSSubdomain   string
	RecordTTL       int
	ProviderTimeout time.Duration

	RFC2136 RFC2136Config
	Redis   RedisConfig

	ClientIPHeaders []string
	Legacy          LegacyConfig
	KeyLifetime     time.Duration

	SessionSecret  string
	SessionTTL     time.Duration
	IdentityHeader string
	LoginURL       string
	OIDC           OIDCConfig
}

type RFC2136Config struct {
	Server        string
	TSIGKeyName   string
	TSIGSecret    string
	TSIGAlgorithm string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LegacyConfig struct {
	Enabled  bool
	Username string
	Password string
}

type OIDCConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
}

// Configured reports whether enough is set to run the login flow.
func (o OIDCConfig) Configured() bool {
	return o.ClientID != "" && o.AuthURL != "" && o.TokenURL != "" && o.UserInfoURL != ""
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads the environment, after loading .env if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []error
	duration := func(key, fallback string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	integer := func(key, fallback string) int {
		n, err := strconv.Atoi(getEnv(key, fallback))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return n
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),

		DNSProvider:     strings.ToLower(getEnv("DNS_PROVIDER", ProviderPostgres)),
		ZoneName:        strings.TrimSuffix(getEnv("ZONE_NAME", ""), "."),
		DDNSSubdomain:   getEnv("DDNS_SUBDOMAIN", "ddns"),
		RecordTTL:       integer("RECORD_TTL", "60"),
		ProviderTimeout: duration("PROVIDER_TIMEOUT", "10s"),

		RFC2136: RFC2136Config{
			Server:        getEnv("RFC2136_SERVER", ""),
			TSIGKeyName:   getEnv("TSIG_KEY_NAME", ""),
			TSIGSecret:    getEnv("TSIG_SECRET", ""),
			TSIGAlgorithm: getEnv("TSIG_ALGORITHM", "hmac-sha256."),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       integer("REDIS_DB", "0"),
		},

		ClientIPHeaders: splitList(getEnv("CLIENT_IP_HEADERS", "X-Azure-ClientIP,X-Forwarded-For,X-Real-IP,X-Original-Forwarded-For")),
		Legacy: LegacyConfig{
			Enabled:  getBool("LEGACY_AUTH_ENABLED", false),
			Username: getEnv("LEGACY_USERNAME", ""),
			Password: getEnv("LEGACY_PASSWORD", ""),
		},
		KeyLifetime: duration("KEY_LIFETIME", "8760h"),

		SessionSecret:  getEnv("SESSION_SECRET", ""),
		SessionTTL:     duration("SESSION_TTL", "12h"),
		IdentityHeader: getEnv("IDENTITY_HEADER", ""),
		LoginURL:       getEnv("LOGIN_URL", "/auth/login"),
		OIDC: OIDCConfig{
			ClientID:     getEnv("OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),
			AuthURL:      getEnv("OIDC_AUTH_URL", ""),
			TokenURL:     getEnv("OIDC_TOKEN_URL", ""),
			UserInfoURL:  getEnv("OIDC_USERINFO_URL", ""),
		},
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	if c.ZoneName == "" {
		errs = append(errs, errors.New("ZONE_NAME is required"))
	} else if err := domain.ValidateZoneName(c.ZoneName + "."); err != nil {
		errs = append(errs, fmt.Errorf("ZONE_NAME: %w", err))
	}

	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not supported", c.StoreDriver))
	}
	switch c.DNSProvider {
	case ProviderPostgres, ProviderMemory:
	case ProviderRFC2136:
		if c.RFC2136.Server == "" {
			errs = append(errs, errors.New("RFC2136_SERVER is required for the rfc2136 provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("DNS_PROVIDER %q is not supported", c.DNSProvider))
	}
	if (c.StoreDriver == StoreDriverPostgres || c.DNSProvider == ProviderPostgres) && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
	}

	if c.SessionSecret == "" && c.IdentityHeader == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required unless IDENTITY_HEADER is set"))
	}
	if c.Legacy.Enabled && (c.Legacy.Username == "" || c.Legacy.Password == "") {
		errs = append(errs, errors.New("LEGACY_USERNAME and LEGACY_PASSWORD are required when legacy auth is enabled"))
	}
	if c.RecordTTL <= 0 {
		errs = append(errs, errors.New("RECORD_TTL must be positive"))
	}
	return errs
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
