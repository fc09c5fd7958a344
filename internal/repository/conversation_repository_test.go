package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationRepository_FindOpenByThreadKey(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	created := testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a",
		domain.ConversationItem{Product: "SALMON"},
		domain.ConversationItem{Product: "COD"},
	)

	found, err := repo.FindOpenByThreadKey(context.Background(), "THREAD_a", true)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "SALMON", found.Items[0].Product)
	assert.Equal(t, "COD", found.Items[1].Product)

	_, err = repo.FindOpenByThreadKey(context.Background(), "THREAD_missing", false)
	assert.True(t, repository.IsNotFound(err))
}

func TestConversationRepository_TerminalConversationIsNotOpen(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	c := testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a")

	c.SetStatus(domain.ConversationStatusConverted)
	require.NoError(t, repo.UpdateVersioned(context.Background(), c))

	_, err := repo.FindOpenByThreadKey(context.Background(), "THREAD_a", false)
	assert.True(t, repository.IsNotFound(err))

	// The thread key is free again for a new conversation
	testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0002", "THREAD_a")
}

func TestConversationRepository_OpenThreadKeyIsUnique(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a")

	second := &domain.Conversation{
		ExternalID: "ENQ-2025-0002",
		ThreadKey:  "THREAD_a",
		CustomerID: customer.ID,
		LastStage:  domain.StageInitialEnquiry,
		ReceivedAt: time.Now().UTC(),
		Version:    1,
	}
	second.SetStatus(domain.ConversationStatusReceived)

	err := repo.CreateWithItems(context.Background(), second)
	require.Error(t, err)
	assert.True(t, repository.IsDuplicateKey(err))
}

func TestConversationRepository_UpdateVersioned(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	c := testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a")

	stale := *c

	c.History = "\n[2025-01-01T00:00:00] FOLLOW-UP: hi"
	require.NoError(t, repo.UpdateVersioned(context.Background(), c))
	assert.Equal(t, 2, c.Version)

	stale.History = "lost"
	err := repo.UpdateVersioned(context.Background(), &stale)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	reloaded, err := repo.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.History, reloaded.History)
	assert.Equal(t, 2, reloaded.Version)
}

func TestConversationRepository_AppendItems(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	c := testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a",
		domain.ConversationItem{Product: "SALMON"},
	)

	require.NoError(t, repo.AppendItems(context.Background(), []domain.ConversationItem{
		{ConversationID: c.ID, Position: 1, Product: "HADDOCK"},
	}))
	require.NoError(t, repo.AppendItems(context.Background(), nil))

	reloaded, err := repo.GetByExternalID(context.Background(), "ENQ-2025-0001")
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 2)
	assert.Equal(t, "SALMON", reloaded.Items[0].Product)
	assert.Equal(t, "HADDOCK", reloaded.Items[1].Product)
	require.NotNil(t, reloaded.Customer)
	assert.Equal(t, "buyer@fish.dk", reloaded.Customer.Email)
}

func TestConversationRepository_List(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a")
	quoted := testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0002", "THREAD_b")
	testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0003", "THREAD_c")

	quoted.SetStatus(domain.ConversationStatusQuoted)
	require.NoError(t, repo.UpdateVersioned(context.Background(), quoted))

	all, total, err := repo.List(context.Background(), repository.ConversationFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 2)

	status := domain.ConversationStatusQuoted
	filtered, total, err := repo.List(context.Background(), repository.ConversationFilter{Status: &status}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, filtered, 1)
	assert.Equal(t, "ENQ-2025-0002", filtered[0].ExternalID)

	byStatus, err := repo.ListByStatus(context.Background(), domain.ConversationStatusReceived)
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	recent, err := repo.ListRecent(context.Background(), time.Now().UTC().Add(-time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	none, err := repo.ListRecent(context.Background(), time.Now().UTC().Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	capped, err := repo.ListRecent(context.Background(), time.Now().UTC().Add(-time.Hour), 2)
	require.NoError(t, err)
	assert.Len(t, capped, 2)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[domain.ConversationStatus]int64{
		domain.ConversationStatusReceived: 2,
		domain.ConversationStatusQuoted:   1,
	}, counts)

	customers, err := repository.NewCustomerRepository(db).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), customers)
}

func TestConversationEventRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewConversationEventRepository(db)
	customer := testutil.CreateTestCustomer(t, db, "buyer@fish.dk")
	c := testutil.CreateTestConversation(t, db, customer, "ENQ-2025-0001", "THREAD_a")

	stage := domain.StageFollowUp
	first := &domain.ConversationEvent{
		ConversationID: c.ID,
		MessageKey:     "<m1>",
		ToStatus:       domain.ConversationStatusReceived,
		OccurredAt:     time.Now().UTC().Add(-time.Minute),
	}
	second := &domain.ConversationEvent{
		ConversationID: c.ID,
		MessageKey:     "<m2>",
		Stage:          &stage,
		ToStatus:       domain.ConversationStatusReceived,
		OccurredAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), first))
	require.NoError(t, repo.Create(context.Background(), second))

	dup := &domain.ConversationEvent{
		ConversationID: c.ID,
		MessageKey:     "<m1>",
		ToStatus:       domain.ConversationStatusReceived,
		OccurredAt:     time.Now().UTC(),
	}
	assert.True(t, repository.IsDuplicateKey(repo.Create(context.Background(), dup)))

	events, err := repo.GetByConversationID(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "<m1>", events[0].MessageKey)
	assert.Equal(t, "<m2>", events[1].MessageKey)
}
