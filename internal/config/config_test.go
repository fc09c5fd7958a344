package config_test

import (
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "database", cfg.Catalog.Source)
	assert.Equal(t, "QUO", cfg.Quotes.Prefix)
	assert.Equal(t, "DKK", cfg.Quotes.Currency)
	assert.Equal(t, "sequence", cfg.Quotes.Numbering)
	assert.Equal(t, int64(1), cfg.Pricing.DefaultFactoryID)

	assert.Equal(t, 10*time.Second, cfg.Ingestion.LockTimeoutDuration())
	assert.Equal(t, 50*time.Millisecond, cfg.Ingestion.RetryDelayDuration())
	assert.Equal(t, 2*time.Second, cfg.Pricing.LookupTimeoutDuration())
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeoutDuration())
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTLDuration())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("QUOTES_CURRENCY", "NOK")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("WEBHOOK_API_KEY", "from-env")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "NOK", cfg.Quotes.Currency)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "from-env", cfg.ApiKey.Value)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "enquiry", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=enquiry sslmode=require", cfg.ConnectionString())
}
