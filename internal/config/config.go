package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type AccountStore string

const (
	AccountStorePostgres AccountStore = "postgres"
	AccountStoreRedis    AccountStore = "redis"
	AccountStoreMemory   AccountStore = "memory"
)

const (
	DefaultPort           = "8080"
	DefaultFreeDailyLimit = 10
	DefaultQuotaPeriod    = 24 * time.Hour
	DefaultOpenAIModel    = "gpt-4o-mini"
	defaultOriginSuffixes = "superbrain.ai"
)

type Config struct {
	port                   string
	accountStore           AccountStore
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string
	redisURL               string
	sentryDSN              string
	openAIAPIKey           string
	openAIModel            string
	freeDailyLimit         int64
	premiumDailyLimit      *int64
	quotaPeriod            time.Duration
	premiumAccessCode      string
	stripeWebhookSecret    string
	allowedOriginSuffixes  []string
	env                    environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) AccountStore() AccountStore {
	return c.accountStore
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

func (c *Config) RedisURL() string {
	return c.redisURL
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) OpenAIAPIKey() string {
	return c.openAIAPIKey
}

func (c *Config) OpenAIModel() string {
	return c.openAIModel
}

func (c *Config) FreeDailyLimit() int64 {
	return c.freeDailyLimit
}

// PremiumDailyLimit returns the premium quota, or false if premium is unlimited
func (c *Config) PremiumDailyLimit() (int64, bool) {
	if c.premiumDailyLimit == nil {
		return 0, false
	}
	return *c.premiumDailyLimit, true
}

func (c *Config) QuotaPeriod() time.Duration {
	return c.quotaPeriod
}

func (c *Config) PremiumAccessCode() string {
	return c.premiumAccessCode
}

func (c *Config) StripeWebhookSecret() string {
	return c.stripeWebhookSecret
}

func (c *Config) AllowedOriginSuffixes() []string {
	return c.allowedOriginSuffixes
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	premium := "unlimited"
	if limit, ok := c.PremiumDailyLimit(); ok {
		premium = strconv.FormatInt(limit, 10)
	}
	return fmt.Sprintf(
		"Config{env: %s, accountStore: %s, freeDailyLimit: %d, premiumDailyLimit: %s, quotaPeriod: %s, ...}",
		string(c.env), string(c.accountStore), c.freeDailyLimit, premium, c.quotaPeriod,
	)
}

func parseNonNegativeInt(key, raw string) (int64, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("SUPERBRAIN_ENVIRONMENT")
	if !ok {
		return missingKey("SUPERBRAIN_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: SUPERBRAIN_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = DefaultPort
	}

	var accountStore AccountStore
	rawAccountStore := os.Getenv("ACCOUNT_STORE")
	switch rawAccountStore {
	case "":
		accountStore = AccountStorePostgres
		if env == development {
			accountStore = AccountStoreMemory
		}
	case string(AccountStorePostgres), string(AccountStoreRedis), string(AccountStoreMemory):
		accountStore = AccountStore(rawAccountStore)
	default:
		return Config{}, fmt.Errorf("%w: ACCOUNT_STORE (%s)", ErrInvalidValue, rawAccountStore)
	}
	if accountStore == AccountStoreMemory && env != development {
		return Config{}, fmt.Errorf("%w: ACCOUNT_STORE (memory is only allowed in development)", ErrInvalidValue)
	}

	freeDailyLimit := int64(DefaultFreeDailyLimit)
	if raw := os.Getenv("FREE_DAILY_LIMIT"); raw != "" {
		value, err := parseNonNegativeInt("FREE_DAILY_LIMIT", raw)
		if err != nil {
			return Config{}, err
		}
		freeDailyLimit = value
	}

	var premiumDailyLimit *int64
	if raw := os.Getenv("PREMIUM_DAILY_LIMIT"); raw != "" {
		value, err := parseNonNegativeInt("PREMIUM_DAILY_LIMIT", raw)
		if err != nil {
			return Config{}, err
		}
		premiumDailyLimit = &value
	}

	quotaPeriod := DefaultQuotaPeriod
	if raw := os.Getenv("QUOTA_PERIOD"); raw != "" {
		value, err := time.ParseDuration(raw)
		if err != nil || value <= 0 {
			return Config{}, fmt.Errorf("%w: QUOTA_PERIOD (%s)", ErrInvalidValue, raw)
		}
		quotaPeriod = value
	}

	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = DefaultOpenAIModel
	}

	rawSuffixes := os.Getenv("ALLOWED_ORIGIN_SUFFIXES")
	if rawSuffixes == "" {
		rawSuffixes = defaultOriginSuffixes
	}
	allowedOriginSuffixes := make([]string, 0)
	for _, suffix := range strings.Split(rawSuffixes, ",") {
		suffix = strings.TrimSpace(suffix)
		if suffix != "" {
			allowedOriginSuffixes = append(allowedOriginSuffixes, suffix)
		}
	}

	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")
	redisURL := os.Getenv("REDIS_URL")
	sentryDSN := os.Getenv("SENTRY_DSN")
	openAIAPIKey := os.Getenv("OPENAI_API_KEY")
	premiumAccessCode := os.Getenv("PREMIUM_ACCESS_CODE")
	stripeWebhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")

	if accountStore == AccountStoreRedis && redisURL == "" {
		return missingKey("REDIS_URL")
	}

	if env == production || env == staging {
		if accountStore == AccountStorePostgres {
			if cloudSQLUnixSocketPath == "" {
				return missingKey("CLOUDSQL_UNIX_SOCKET")
			}
			if dbUsername == "" {
				return missingKey("DB_USERNAME")
			}
			if dbPassword == "" {
				return missingKey("DB_PASSWORD")
			}
		}
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if openAIAPIKey == "" {
			return missingKey("OPENAI_API_KEY")
		}
		if stripeWebhookSecret == "" {
			return missingKey("STRIPE_WEBHOOK_SECRET")
		}
	}

	return Config{
		port:                   port,
		accountStore:           accountStore,
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,
		redisURL:               redisURL,
		sentryDSN:              sentryDSN,
		openAIAPIKey:           openAIAPIKey,
		openAIModel:            openAIModel,
		freeDailyLimit:         freeDailyLimit,
		premiumDailyLimit:      premiumDailyLimit,
		quotaPeriod:            quotaPeriod,
		premiumAccessCode:      premiumAccessCode,
		stripeWebhookSecret:    stripeWebhookSecret,
		allowedOriginSuffixes:  allowedOriginSuffixes,
		env:                    env,
	}, nil
}
