// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/database"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an isolated in-memory SQLite database with the full schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// CreateTestCustomer inserts a customer with the given email
func CreateTestCustomer(t *testing.T, db *gorm.DB, email string) *domain.Customer {
	t.Helper()

	customer := &domain.Customer{
		CompanyName:   "Test Corp",
		ContactPerson: "Test Person",
		Email:         email,
		Address:       "Not provided",
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

// CreateTestConversation inserts an open conversation with the given items
func CreateTestConversation(t *testing.T, db *gorm.DB, customer *domain.Customer, externalID, threadKey string, items ...domain.ConversationItem) *domain.Conversation {
	t.Helper()

	for i := range items {
		items[i].Position = i
	}
	c := &domain.Conversation{
		ExternalID: externalID,
		ThreadKey:  threadKey,
		Subject:    "Test enquiry",
		CustomerID: customer.ID,
		LastStage:  domain.StageInitialEnquiry,
		ReceivedAt: time.Now().UTC(),
		Processed:  true,
		Version:    1,
		Items:      items,
	}
	c.SetStatus(domain.ConversationStatusReceived)
	require.NoError(t, db.Omit("Customer").Create(c).Error)
	return c
}
