package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Provider  ProviderConfig
	Search    SearchConfig
	Scraper   ScraperConfig
	Quota     QuotaConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Email     EmailConfig
	LLM       LLMConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port            string
	Env             string
	LogLevel        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	TrustedProxies  []string
	CORSOrigins     []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// ProviderConfig configures the paid people-search provider
type ProviderConfig struct {
	Enabled         bool
	BaseURL         string
	APIKey          string
	ClientID        string
	ClientSecret    string
	TokenURLs       []string
	UserAgent       string
	RequestTimeout  time.Duration
	EmailPreference []string
}

// SearchConfig bounds a single discovery call
type SearchConfig struct {
	MaxPerCall          int
	Deadline            time.Duration
	MaxCandidateDomains int
	EnrichConcurrency   int
}

type ScraperConfig struct {
	UserAgent    string
	PageTimeout  time.Duration
	PageBudget   int
	PageInterval time.Duration
	MaxBodyBytes int64
}

// QuotaConfig holds the tier -> limit table and the store backing the ledger
type QuotaConfig struct {
	Store           string // "postgres" or "memory"
	Limits          map[models.ResourceKind]map[models.Tier]int
	RetentionMonths int
}

type RateLimitConfig struct {
	GenerationPerMinute int
	APIPerMinute        int
	IPPerMinute         int
}

type RedisConfig struct {
	URL string
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
	UpgradeURL  string
}

type LLMConfig struct {
	Provider   string // "openai" or "ollama"
	Model      string
	APIKey     string
	BaseURL    string // openai-compatible endpoint; empty uses the public API
	OllamaHost string
}

// DefaultQuotaLimits is the built-in tier table. -1 means unlimited.
func DefaultQuotaLimits() map[models.ResourceKind]map[models.Tier]int {
	return map[models.ResourceKind]map[models.Tier]int{
		models.ResourceGeneration: {
			models.TierFree:  30,
			models.TierLight: 300,
			models.TierPro:   models.Unlimited,
		},
		models.ResourcePaidSearch: {
			models.TierFree:  0,
			models.TierLight: 100,
			models.TierPro:   1000,
		},
		models.ResourcePublicFinder: {
			models.TierFree:  30,
			models.TierLight: models.Unlimited,
			models.TierPro:   models.Unlimited,
		},
	}
}

// DefaultTokenURLs are tried in order when PROVIDER_TOKEN_URLS is unset
var DefaultTokenURLs = []string{
	"https://api.snov.io/v1/oauth/access_token",
	"https://api.snov.io/v2/oauth/access_token",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "prospector"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             env,
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", 10*time.Minute),
			TrustedProxies:  getEnvAsList("TRUSTED_PROXIES", nil),
			CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getEnvAsDuration("JWT_ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		},
		Provider: ProviderConfig{
			Enabled:         getEnvAsBool("PROVIDER_ENABLED", false),
			BaseURL:         strings.TrimRight(getEnv("PROVIDER_BASE_URL", "https://api.snov.io"), "/"),
			APIKey:          getEnv("PROVIDER_API_KEY", ""),
			ClientID:        getEnv("PROVIDER_CLIENT_ID", ""),
			ClientSecret:    getEnv("PROVIDER_CLIENT_SECRET", ""),
			TokenURLs:       getEnvAsList("PROVIDER_TOKEN_URLS", DefaultTokenURLs),
			UserAgent:       getEnv("PROVIDER_USER_AGENT", "prospector/1.0"),
			RequestTimeout:  getEnvAsDuration("PROVIDER_REQUEST_TIMEOUT", 20*time.Second),
			EmailPreference: getEnvAsList("PROVIDER_EMAIL_PREFERENCE", []string{"valid", "unknown"}),
		},
		Search: SearchConfig{
			MaxPerCall:          getEnvAsInt("SEARCH_MAX_PER_CALL", 50),
			Deadline:            getEnvAsDuration("SEARCH_DEADLINE", 45*time.Second),
			MaxCandidateDomains: getEnvAsInt("SEARCH_MAX_CANDIDATE_DOMAINS", 3),
			EnrichConcurrency:   getEnvAsInt("SEARCH_ENRICH_CONCURRENCY", 4),
		},
		Scraper: ScraperConfig{
			UserAgent:    getEnv("SCRAPER_USER_AGENT", "ProspectorBot/1.0 (+https://prospector.app/bot; public contact discovery)"),
			PageTimeout:  getEnvAsDuration("SCRAPER_PAGE_TIMEOUT", 8*time.Second),
			PageBudget:   getEnvAsInt("SCRAPER_PAGE_BUDGET", 8),
			PageInterval: getEnvAsDuration("SCRAPER_PAGE_INTERVAL", 250*time.Millisecond),
			MaxBodyBytes: int64(getEnvAsInt("SCRAPER_MAX_BODY_BYTES", 2*1024*1024)),
		},
		Quota: QuotaConfig{
			Store:           strings.ToLower(getEnv("QUOTA_STORE", "postgres")),
			Limits:          loadQuotaLimits(),
			RetentionMonths: getEnvAsInt("QUOTA_RETENTION_MONTHS", 13),
		},
		RateLimit: RateLimitConfig{
			GenerationPerMinute: getEnvAsInt("RATE_LIMIT_GENERATION_PER_MINUTE", 10),
			APIPerMinute:        getEnvAsInt("RATE_LIMIT_API_PER_MINUTE", 60),
			IPPerMinute:         getEnvAsInt("RATE_LIMIT_IP_PER_MINUTE", 120),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
			UpgradeURL:  getEnv("UPGRADE_URL", "https://prospector.app/billing"),
		},
		LLM: LLMConfig{
			Provider:   strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			Model:      getEnv("LLM_MODEL", "gpt-4o-mini"),
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			BaseURL:    getEnv("OPENAI_BASE_URL", ""),
			OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),
		},
	}

	if cfg.Quota.Store != "memory" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateProvider(&cfg.Provider); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && cfg.Email.FromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED is set")
	}

	if cfg.Search.MaxPerCall <= 0 || cfg.Search.MaxCandidateDomains <= 0 || cfg.Search.EnrichConcurrency <= 0 {
		return nil, fmt.Errorf("SEARCH_* limits must be positive")
	}

	if cfg.Search.Deadline <= 0 {
		return nil, fmt.Errorf("SEARCH_DEADLINE must be positive")
	}
	if cfg.Scraper.PageTimeout <= 0 {
		return nil, fmt.Errorf("SCRAPER_PAGE_TIMEOUT must be positive")
	}

	return cfg, nil
}

// validateProvider requires either an API key or a client-id/secret pair
// when the paid provider is enabled
func validateProvider(p *ProviderConfig) error {
	if !p.Enabled {
		return nil
	}
	if p.APIKey != "" {
		return nil
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return fmt.Errorf("PROVIDER_API_KEY or PROVIDER_CLIENT_ID and PROVIDER_CLIENT_SECRET are required when PROVIDER_ENABLED is set")
	}
	if len(p.TokenURLs) == 0 {
		return fmt.Errorf("PROVIDER_TOKEN_URLS must list at least one URL")
	}
	return nil
}

// loadQuotaLimits applies QUOTA_<KIND>_<TIER> overrides to the default table,
// e.g. QUOTA_PAID_SEARCH_LIGHT=250 or QUOTA_GENERATION_PRO=-1
func loadQuotaLimits() map[models.ResourceKind]map[models.Tier]int {
	limits := DefaultQuotaLimits()
	for kind, byTier := range limits {
		for tier, def := range byTier {
			key := "QUOTA_" + strings.ToUpper(string(kind)) + "_" + strings.ToUpper(string(tier))
			byTier[tier] = getEnvAsInt(key, def)
		}
	}
	return limits
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultVal...)
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
