package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geolocation GeolocationConfig
	Discovery   DiscoveryConfig
	Messaging   MessagingConfig
	Alerts      AlertsConfig
	OTEL        OTELConfig
	Env         string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host    string
	Port    int
	SSEPort int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL     string
	APIKey  string
	Enabled bool
}

// GeolocationConfig holds location resolution settings.
// The default coordinate is used whenever the device position cannot be resolved.
type GeolocationConfig struct {
	Provider         string
	DefaultLatitude  float64
	DefaultLongitude float64
	Timeout          time.Duration
}

// DiscoveryConfig holds provider discovery settings
type DiscoveryConfig struct {
	DefaultRadiusKm    int
	MinRadiusKm        int
	MaxRadiusKm        int
	DefaultResultCap   int
	CandidateLimit     int
	CandidateCacheTTLs int
}

// MessagingConfig holds per-user action limits for chat and reviews
type MessagingConfig struct {
	SendRateLimit   int
	ReviewRateLimit int
}

// AlertsConfig holds the WhatsApp settings used to reach users who are
// offline when a message arrives. Alerts are off without credentials.
type AlertsConfig struct {
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppBaseURL       string
	TemplateName          string
	LanguageCode          string
	Cooldown              time.Duration
}

// Enabled reports whether WhatsApp credentials are configured
func (c AlertsConfig) Enabled() bool {
	return c.WhatsAppAccessToken != "" && c.WhatsAppPhoneNumberID != ""
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvAsInt("SERVER_PORT", 8080),
			SSEPort: getEnvAsInt("SSE_PORT", 8081),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "local_services"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:     getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:  getEnv("TYPESENSE_API_KEY", "xyz"),
			Enabled: getEnvAsBool("TYPESENSE_ENABLED", false),
		},
		Geolocation: GeolocationConfig{
			Provider:         getEnv("GEOLOCATION_PROVIDER", "request"),
			DefaultLatitude:  getEnvAsFloat("DEFAULT_LATITUDE", -22.9068),
			DefaultLongitude: getEnvAsFloat("DEFAULT_LONGITUDE", -43.1729),
			Timeout:          time.Duration(getEnvAsInt("GEOLOCATION_TIMEOUT_MS", 3000)) * time.Millisecond,
		},
		Discovery: DiscoveryConfig{
			DefaultRadiusKm:    getEnvAsInt("DISCOVERY_DEFAULT_RADIUS_KM", 5),
			MinRadiusKm:        1,
			MaxRadiusKm:        50,
			DefaultResultCap:   getEnvAsInt("DISCOVERY_RESULT_CAP", 50),
			CandidateLimit:     getEnvAsInt("DISCOVERY_CANDIDATE_LIMIT", 500),
			CandidateCacheTTLs: getEnvAsInt("DISCOVERY_CANDIDATE_CACHE_TTL", 60),
		},
		Messaging: MessagingConfig{
			SendRateLimit:   getEnvAsInt("MESSAGE_RATE_LIMIT_PER_MINUTE", 30),
			ReviewRateLimit: getEnvAsInt("REVIEW_RATE_LIMIT_PER_HOUR", 10),
		},
		Alerts: AlertsConfig{
			WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			WhatsAppBaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v18.0"),
			TemplateName:          getEnv("WHATSAPP_ALERT_TEMPLATE", ""),
			LanguageCode:          getEnv("WHATSAPP_LANGUAGE", "pt_BR"),
			Cooldown:              time.Duration(getEnvAsInt("OFFLINE_ALERT_COOLDOWN_MINUTES", 10)) * time.Minute,
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "local-services"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Env: getEnv("ENV", "development"),
	}

	if err := cfg.Discovery.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *DiscoveryConfig) validate() error {
	if c.DefaultRadiusKm < c.MinRadiusKm || c.DefaultRadiusKm > c.MaxRadiusKm {
		return fmt.Errorf("DISCOVERY_DEFAULT_RADIUS_KM must be between %d and %d, got %d",
			c.MinRadiusKm, c.MaxRadiusKm, c.DefaultRadiusKm)
	}
	if c.DefaultResultCap <= 0 {
		return fmt.Errorf("DISCOVERY_RESULT_CAP must be positive, got %d", c.DefaultResultCap)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
