package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Gateway   GatewayConfig
	Callback  CallbackConfig
	Secrets   SecretsConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Logger    LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	MetricsPort     int
	ShutdownTimeout time.Duration
	Development     bool // relaxes HSTS
}

// GatewayConfig holds M-Pesa Daraja configuration
type GatewayConfig struct {
	ConsumerKey        string
	ConsumerSecret     string
	ConsumerSecretPath string // secret manager path, used when ConsumerSecret is empty
	ShortCode          string
	PassKey            string
	PassKeyPath        string // secret manager path, used when PassKey is empty
	PhoneNumber        string // admin MSISDN sent as PartyA
	Mode               string // sandbox or live
	BaseURL            string // optional host override
	CallbackURL        string // where the gateway posts payment results
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// ModeExplicit reports whether MPESA_MODE was set to a recognized value.
// Anything else runs against the sandbox.
func (g GatewayConfig) ModeExplicit() bool {
	return g.Mode == "sandbox" || g.Mode == "live"
}

// CallbackConfig holds callback source verification configuration
type CallbackConfig struct {
	AllowListSource string   // static, file or postgres
	AllowList       []string // static entries; empty means the published gateway list
	AllowListFile   string
	RefreshInterval time.Duration // zero disables periodic refresh
}

// SecretsConfig selects and configures the secret manager
type SecretsConfig struct {
	Manager  string // env, local, aws or vault
	CacheTTL time.Duration

	LocalBasePath string

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	VaultAddress   string
	VaultAuth      string
	VaultToken     string
	VaultRoleID    string
	VaultSecretID  string
	VaultMountPath string
	VaultNamespace string
}

// DatabaseConfig holds PostgreSQL configuration; only the postgres allow-list source needs it
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

// RateLimitConfig holds per-client limits for the STK push endpoint
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			Development:     getEnvAsBool("SERVER_DEVELOPMENT", false),
		},
		Gateway: GatewayConfig{
			ConsumerKey:        getEnv("MPESA_CONSUMER_KEY", ""),
			ConsumerSecret:     getEnv("MPESA_CONSUMER_SECRET", ""),
			ConsumerSecretPath: getEnv("MPESA_CONSUMER_SECRET_PATH", ""),
			ShortCode:          getEnv("MPESA_SHORT_CODE", ""),
			PassKey:            getEnv("MPESA_STK_PASS_KEY", ""),
			PassKeyPath:        getEnv("MPESA_STK_PASS_KEY_PATH", ""),
			PhoneNumber:        getEnv("MPESA_PHONE_NUMBER", ""),
			Mode:               strings.ToLower(strings.TrimSpace(getEnv("MPESA_MODE", ""))),
			BaseURL:            getEnv("MPESA_BASE_URL", ""),
			CallbackURL:        getEnv("MPESA_CALLBACK_URL", ""),
			Timeout:            getEnvAsDuration("MPESA_TIMEOUT", 30*time.Second),
			InsecureSkipVerify: getEnvAsBool("MPESA_INSECURE_SKIP_VERIFY", false),
		},
		Callback: CallbackConfig{
			AllowListSource: getEnv("CALLBACK_ALLOWLIST_SOURCE", "static"),
			AllowList:       getEnvAsList("CALLBACK_ALLOWLIST"),
			AllowListFile:   getEnv("CALLBACK_ALLOWLIST_FILE", ""),
			RefreshInterval: getEnvAsDuration("CALLBACK_ALLOWLIST_REFRESH", 0),
		},
		Secrets: SecretsConfig{
			Manager:        getEnv("SECRET_MANAGER", "env"),
			CacheTTL:       getEnvAsDuration("SECRET_CACHE_TTL", 5*time.Minute),
			LocalBasePath:  getEnv("SECRETS_BASE_PATH", "./secrets"),
			AWSRegion:      getEnv("AWS_REGION", ""),
			AWSProfile:     getEnv("AWS_PROFILE", ""),
			AWSEndpoint:    getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddress:   getEnv("VAULT_ADDR", ""),
			VaultAuth:      getEnv("VAULT_AUTH_METHOD", "token"),
			VaultToken:     getEnv("VAULT_TOKEN", ""),
			VaultRoleID:    getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID:  getEnv("VAULT_SECRET_ID", ""),
			VaultMountPath: getEnv("VAULT_MOUNT_PATH", "secret"),
			VaultNamespace: getEnv("VAULT_NAMESPACE", ""),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 4)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 1)),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 1),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and cross-field constraints
func (c *Config) Validate() error {
	if c.Gateway.ConsumerKey == "" {
		return fmt.Errorf("MPESA_CONSUMER_KEY is required")
	}
	if c.Gateway.ShortCode == "" {
		return fmt.Errorf("MPESA_SHORT_CODE is required")
	}
	if c.Gateway.CallbackURL == "" {
		return fmt.Errorf("MPESA_CALLBACK_URL is required")
	}

	// Secrets come from the environment unless a secret manager path is given
	if c.Gateway.ConsumerSecret == "" && c.Gateway.ConsumerSecretPath == "" {
		return fmt.Errorf("MPESA_CONSUMER_SECRET or MPESA_CONSUMER_SECRET_PATH is required")
	}
	if c.Gateway.PassKey == "" && c.Gateway.PassKeyPath == "" {
		return fmt.Errorf("MPESA_STK_PASS_KEY or MPESA_STK_PASS_KEY_PATH is required")
	}
	if c.Secrets.Manager == "env" && (c.Gateway.ConsumerSecret == "" || c.Gateway.PassKey == "") {
		return fmt.Errorf("secret paths require SECRET_MANAGER to be local, aws or vault")
	}

	switch c.Secrets.Manager {
	case "env", "local":
	case "aws":
		if c.Secrets.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required when SECRET_MANAGER=aws")
		}
	case "vault":
		if c.Secrets.VaultAddress == "" {
			return fmt.Errorf("VAULT_ADDR is required when SECRET_MANAGER=vault")
		}
	default:
		return fmt.Errorf("unsupported SECRET_MANAGER: %s", c.Secrets.Manager)
	}

	switch c.Callback.AllowListSource {
	case "static":
	case "file":
		if c.Callback.AllowListFile == "" {
			return fmt.Errorf("CALLBACK_ALLOWLIST_FILE is required when CALLBACK_ALLOWLIST_SOURCE=file")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when CALLBACK_ALLOWLIST_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("unsupported CALLBACK_ALLOWLIST_SOURCE: %s", c.Callback.AllowListSource)
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
