package database_test

import (
	"context"
	"testing"

	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/database"
	"github.com/procost/enquiry-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_RejectsUnknownDriver(t *testing.T) {
	_, err := database.NewDatabase(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oracle")
}

func TestHealthCheckWithStats(t *testing.T) {
	db := testutil.NewTestDB(t)

	stats, err := database.HealthCheckWithStats(context.Background(), db)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 1)
	assert.NoError(t, database.HealthCheck(context.Background(), db))
}

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db := testutil.NewTestDB(t)

	for _, table := range []string{"customers", "conversations", "conversation_items", "conversation_events",
		"inbound_emails", "quotes", "quote_items", "number_sequences", "filing_rates", "packaging_rates", "charge_rates"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}
