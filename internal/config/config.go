package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/procost/enquiry-api/internal/secrets"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	DataWarehouse DataWarehouseConfig
	ApiKey        ApiKeyConfig
	Storage       StorageConfig
	Secrets       SecretsConfig
	Logging       LoggingConfig
	Server        ServerConfig
	CORS          CORSConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	OpenAI        OpenAIConfig
	Extraction    ExtractionConfig
	Ingestion     IngestionConfig
	Pricing       PricingConfig
	Catalog       CatalogConfig
	Quotes        QuotesConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

// DataWarehouseConfig holds the read-only MS SQL Server connection used as a
// rate catalog source
type DataWarehouseConfig struct {
	Enabled bool
	// URL is host:port/database (from WAREHOUSE-URL secret)
	URL             string
	User            string
	Password        string
	Schema          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // seconds
	QueryTimeout    int // seconds
}

type ApiKeyConfig struct {
	SecretName string
	Value      string // Loaded from secrets or environment
}

// StorageConfig controls where raw inbound email bodies are archived
type StorageConfig struct {
	Enabled               bool
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled bool
	// RequestsPerMinute applies per client IP to the API routes
	RequestsPerMinute int
	// WebhookRequestsPerMinute applies per client IP to the inbound email webhook
	WebhookRequestsPerMinute int
	WhitelistIPs             []string
	WhitelistPaths           []string
}

// RedisConfig enables the distributed per-thread lock. When Addr is empty an
// in-process lock is used instead.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	LockTTL   int // seconds
}

type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// ExtractionConfig controls the line item extractor
type ExtractionConfig struct {
	// Provider is "openai", "heuristic" or "auto" (openai when an API key is present)
	Provider string
	Timeout  int // seconds
	// BreakerFailures is the number of consecutive failures that opens the circuit
	BreakerFailures int
	BreakerTimeout  int // seconds the circuit stays open
}

type IngestionConfig struct {
	LockTimeout int // seconds
	MaxRetries  int
	RetryDelay  int // milliseconds
}

type PricingConfig struct {
	DefaultFactoryID int64
	LookupTimeout    int // milliseconds
	BreakerFailures  int
	BreakerTimeout   int // seconds
}

// CatalogConfig selects the rate catalog source
type CatalogConfig struct {
	// Source is "database" or "warehouse"
	Source string
	// Snapshot loads the whole catalog into memory and refreshes it on RefreshCron
	Snapshot       bool
	RefreshCron    string
	RefreshTimeout int // seconds
}

type QuotesConfig struct {
	Prefix       string
	Currency     string
	ValidityDays int
	// Numbering is "sequence" (database counter) or "clock" (time derived counter)
	Numbering string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DataWarehouseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (d *DataWarehouseConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(d.QueryTimeout) * time.Second
}

// LockTTLDuration returns the redis lock expiry as duration
func (r *RedisConfig) LockTTLDuration() time.Duration {
	return time.Duration(r.LockTTL) * time.Second
}

// TimeoutDuration returns the extractor timeout as duration
func (e *ExtractionConfig) TimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// BreakerTimeoutDuration returns how long the extractor circuit stays open
func (e *ExtractionConfig) BreakerTimeoutDuration() time.Duration {
	return time.Duration(e.BreakerTimeout) * time.Second
}

// LockTimeoutDuration returns the per-thread lock wait as duration
func (i *IngestionConfig) LockTimeoutDuration() time.Duration {
	return time.Duration(i.LockTimeout) * time.Second
}

// RetryDelayDuration returns the pause between conflict retries
func (i *IngestionConfig) RetryDelayDuration() time.Duration {
	return time.Duration(i.RetryDelay) * time.Millisecond
}

// LookupTimeoutDuration returns the per-lookup rate catalog timeout
func (p *PricingConfig) LookupTimeoutDuration() time.Duration {
	return time.Duration(p.LookupTimeout) * time.Millisecond
}

// BreakerTimeoutDuration returns how long the catalog circuit stays open
func (p *PricingConfig) BreakerTimeoutDuration() time.Duration {
	return time.Duration(p.BreakerTimeout) * time.Second
}

// RefreshTimeoutDuration returns the snapshot refresh timeout
func (c *CatalogConfig) RefreshTimeoutDuration() time.Duration {
	return time.Duration(c.RefreshTimeout) * time.Second
}

// Load loads configuration from file and environment variables.
// Secrets from Key Vault are resolved by LoadWithSecrets.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.ApiKey.Value == "" {
		cfg.ApiKey.Value = v.GetString("WEBHOOK_API_KEY")
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = v.GetString("OPENAI_API_KEY")
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("DATAWAREHOUSE_ENABLED") {
		cfg.DataWarehouse.Enabled = true
	}

	// Warehouse credentials only ever come from Key Vault, see LoadWithSecrets

	return &cfg, nil
}

// LoadWithSecrets loads configuration and resolves secrets from the configured source.
//
// Key Vault is used for the main secrets when USE_AZURE_KEY_VAULT=true and the
// environment is staging or production. Warehouse credentials are read from
// Key Vault whenever the warehouse is enabled and a vault name is configured.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if cfg.DataWarehouse.Enabled && cfg.Secrets.KeyVaultName != "" {
		if err := loadDataWarehouseSecrets(ctx, cfg, logger); err != nil {
			// The warehouse is optional, the database catalog still works
			logger.Warn("Failed to load data warehouse secrets from Key Vault",
				zap.Error(err),
				zap.String("environment", cfg.App.Environment),
			)
		}
	}

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	logger.Info("Loading secrets",
		zap.String("source", string(provider.Source())),
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)

	applySecrets(ctx, cfg, provider)

	logger.Info("Secrets loaded from vault successfully")
	return cfg, nil
}

// secretSource is the subset of secrets.Provider used to fill the config
type secretSource interface {
	GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error)
}

// applySecrets overwrites config values with resolved secrets. Missing secrets
// leave the existing value in place.
func applySecrets(ctx context.Context, cfg *Config, provider secretSource) {
	set := func(target *string, secretName, envName string) {
		if value, err := provider.GetSecretOrEnv(ctx, secretName, envName); err == nil && value != "" {
			*target = value
		}
	}

	set(&cfg.Database.Host, "POSTGRES-MAIN-HOST", "DATABASE_HOST")
	set(&cfg.Database.User, "POSTGRES-MAIN-USER", "DATABASE_USER")
	set(&cfg.Database.Password, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD")
	if defaultDB := os.Getenv("DEFAULT_DATABASE"); defaultDB != "" {
		cfg.Database.Name = defaultDB
	}
	if sslMode := os.Getenv("DATABASE_SSLMODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}

	set(&cfg.ApiKey.Value, "webhook-api-key", "WEBHOOK_API_KEY")
	set(&cfg.OpenAI.APIKey, "openai-api-key", "OPENAI_API_KEY")
	set(&cfg.Redis.Password, "redis-password", "REDIS_PASSWORD")
	set(&cfg.Storage.CloudConnectionString, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING")
}

// loadDataWarehouseSecrets loads warehouse credentials from Key Vault only
func loadDataWarehouseSecrets(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client for data warehouse: %w", err)
	}

	url, err := provider.GetSecret(ctx, "WAREHOUSE-URL")
	if err != nil {
		return fmt.Errorf("failed to get WAREHOUSE-URL from Key Vault: %w", err)
	}
	user, err := provider.GetSecret(ctx, "WAREHOUSE-USERNAME")
	if err != nil {
		return fmt.Errorf("failed to get WAREHOUSE-USERNAME from Key Vault: %w", err)
	}
	password, err := provider.GetSecret(ctx, "WAREHOUSE-PASSWORD")
	if err != nil {
		return fmt.Errorf("failed to get WAREHOUSE-PASSWORD from Key Vault: %w", err)
	}

	cfg.DataWarehouse.URL = url
	cfg.DataWarehouse.User = user
	cfg.DataWarehouse.Password = password

	logger.Info("Data warehouse credentials loaded from Key Vault")
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Procost Enquiry API")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "enquiry")
	v.SetDefault("database.user", "enquiry_user")
	v.SetDefault("database.password", "enquiry_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.sqlitePath", "enquiry.db")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)

	v.SetDefault("dataWarehouse.enabled", false)
	v.SetDefault("dataWarehouse.schema", "pricing")
	v.SetDefault("dataWarehouse.maxOpenConns", 10)
	v.SetDefault("dataWarehouse.maxIdleConns", 2)
	v.SetDefault("dataWarehouse.connMaxLifetime", 300)
	v.SetDefault("dataWarehouse.queryTimeout", 30)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage/emails")
	v.SetDefault("storage.cloudContainer", "inbound-emails")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"X-Request-ID"})
	v.SetDefault("cors.allowCredentials", false)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 120)
	v.SetDefault("rateLimit.webhookRequestsPerMinute", 600)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/health", "/health/db", "/health/ready"})

	v.SetDefault("redis.keyPrefix", "enquiry:lock:")
	v.SetDefault("redis.lockTTL", 30)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.maxTokens", 2048)
	v.SetDefault("openai.temperature", 0.1)

	v.SetDefault("extraction.provider", "auto")
	v.SetDefault("extraction.timeout", 20)
	v.SetDefault("extraction.breakerFailures", 5)
	v.SetDefault("extraction.breakerTimeout", 30)

	v.SetDefault("ingestion.lockTimeout", 10)
	v.SetDefault("ingestion.maxRetries", 3)
	v.SetDefault("ingestion.retryDelay", 50)

	v.SetDefault("pricing.defaultFactoryId", 1)
	v.SetDefault("pricing.lookupTimeout", 2000)
	v.SetDefault("pricing.breakerFailures", 5)
	v.SetDefault("pricing.breakerTimeout", 30)

	v.SetDefault("catalog.source", "database")
	v.SetDefault("catalog.snapshot", false)
	v.SetDefault("catalog.refreshCron", "0 */15 * * * *")
	v.SetDefault("catalog.refreshTimeout", 60)

	v.SetDefault("quotes.prefix", "QUO")
	v.SetDefault("quotes.currency", "DKK")
	v.SetDefault("quotes.validityDays", 30)
	v.SetDefault("quotes.numbering", "sequence")
}
