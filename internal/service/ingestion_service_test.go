package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/service"
	"github.com/procost/enquiry-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIngestionService_NewEnquiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.ingestion.Ingest(ctx, &domain.ReceiveEmailRequest{
		FromEmail: "buyer@nordicfish.no",
		Subject:   "Salmon enquiry",
		EmailBody: "need 5000 kg of salmon fillets fresh, price please",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.False(t, resp.Duplicate)
	assert.False(t, resp.Orphan)
	assert.Equal(t, domain.StageInitialEnquiry, resp.EmailStage)
	assert.Equal(t, "ENQ-2025-0001", resp.EnquiryID)
	assert.Equal(t, domain.ConversationStatusReceived, resp.EnquiryStatus)
	assert.Equal(t, 1, resp.ItemsCount)
	assert.Equal(t, "Nordicfish Corp", resp.CompanyName)
	assert.NotEmpty(t, resp.EmailThreadID)

	c, err := env.conversationRepo.GetByExternalID(ctx, resp.EnquiryID)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Salmon", c.Items[0].Product)
	require.NotNil(t, c.Items[0].RequestedQuantity)
	assert.Equal(t, 5000, *c.Items[0].RequestedQuantity)
	assert.Equal(t, domain.StageInitialEnquiry, c.LastStage)
	assert.True(t, c.Processed)

	assert.Equal(t, int64(1), env.countRows(t, &domain.InboundEmail{}))
	assert.Equal(t, int64(1), env.countRows(t, &domain.ConversationEvent{}))
}

func TestIngestionService_OrderOnSameThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.ingestion.Ingest(ctx, enquiryRequest("thread-1", "<m1@nordicfish.no>"))
	require.NoError(t, err)

	second, err := env.ingestion.Ingest(ctx, orderRequest("thread-1", "<m2@nordicfish.no>"))
	require.NoError(t, err)

	assert.Equal(t, domain.StageOrderPlacement, second.EmailStage)
	assert.Equal(t, first.EnquiryID, second.EnquiryID)
	assert.Equal(t, domain.ConversationStatusConverted, second.EnquiryStatus)
	assert.Equal(t, int64(1), env.countRows(t, &domain.Conversation{}))

	c, err := env.conversationRepo.GetByExternalID(ctx, first.EnquiryID)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(c.History, "ORDER CONFIRMED"))
	assert.Equal(t, domain.StageOrderPlacement, c.LastStage)
	assert.Nil(t, c.OpenThreadKey)
	assert.Len(t, c.Items, 1)

	events, err := env.eventRepo.GetByConversationID(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.NotNil(t, events[1].FromStatus)
	assert.Equal(t, domain.ConversationStatusReceived, *events[1].FromStatus)
	assert.Equal(t, domain.ConversationStatusConverted, events[1].ToStatus)
}

func TestIngestionService_FollowUpAddsItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.ingestion.Ingest(ctx, enquiryRequest("thread-1", "<m1@nordicfish.no>"))
	require.NoError(t, err)

	resp, err := env.ingestion.Ingest(ctx, &domain.ReceiveEmailRequest{
		FromEmail: "buyer@nordicfish.no",
		Subject:   "Re: Salmon",
		EmailBody: "what about adding some frozen cod as well",
		ThreadID:  "thread-1",
		MessageID: "<m2@nordicfish.no>",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StageFollowUp, resp.EmailStage)
	assert.Equal(t, first.EnquiryID, resp.EnquiryID)
	assert.Equal(t, domain.ConversationStatusReceived, resp.EnquiryStatus)
	assert.Equal(t, 2, resp.ItemsCount)

	c, err := env.conversationRepo.GetByExternalID(ctx, first.EnquiryID)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "Salmon", c.Items[0].Product)
	assert.Equal(t, "Cod", c.Items[1].Product)
	assert.Equal(t, 1, c.Items[1].Position)
	assert.Contains(t, c.History, "FOLLOW-UP")
	assert.Contains(t, c.History, "ADDITIONAL ITEMS EXTRACTED")
}

func TestIngestionService_Orphan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.ingestion.Ingest(ctx, orderRequest("unknown-thread", "<m9@nordicfish.no>"))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.True(t, resp.Orphan)
	assert.Empty(t, resp.EnquiryID)
	assert.Equal(t, int64(0), env.countRows(t, &domain.Conversation{}))
	assert.Equal(t, 0, env.extractor.Calls())

	email, err := env.emailRepo.GetByMessageKey(ctx, "<m9@nordicfish.no>")
	require.NoError(t, err)
	assert.True(t, email.Orphan)
	assert.False(t, email.Processed)
	assert.Nil(t, email.ConversationID)
}

func TestIngestionService_DuplicateDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("same message id is applied once", func(t *testing.T) {
		req := enquiryRequest("thread-1", "<m1@nordicfish.no>")

		first, err := env.ingestion.Ingest(ctx, req)
		require.NoError(t, err)
		again, err := env.ingestion.Ingest(ctx, req)
		require.NoError(t, err)

		assert.False(t, first.Duplicate)
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.EnquiryID, again.EnquiryID)
		assert.Equal(t, first.ItemsCount, again.ItemsCount)
		assert.Equal(t, first.CustomerID, again.CustomerID)
		assert.Equal(t, int64(1), env.countRows(t, &domain.Conversation{}))
		assert.Equal(t, int64(1), env.countRows(t, &domain.InboundEmail{}))
	})

	t.Run("repeated order does not repeat history", func(t *testing.T) {
		req := orderRequest("thread-1", "<m2@nordicfish.no>")

		_, err := env.ingestion.Ingest(ctx, req)
		require.NoError(t, err)
		again, err := env.ingestion.Ingest(ctx, req)
		require.NoError(t, err)
		assert.True(t, again.Duplicate)

		c, err := env.conversationRepo.GetByExternalID(ctx, again.EnquiryID)
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(c.History, "ORDER CONFIRMED"))
		assert.Equal(t, int64(2), env.countRows(t, &domain.ConversationEvent{}))
	})

	t.Run("fingerprint identifies deliveries without message id", func(t *testing.T) {
		req := enquiryRequest("thread-2", "")
		req.ReceivedAt = "2025-03-14T08:00:00Z"

		first, err := env.ingestion.Ingest(ctx, req)
		require.NoError(t, err)
		again, err := env.ingestion.Ingest(ctx, req)
		require.NoError(t, err)

		assert.False(t, first.Duplicate)
		assert.True(t, again.Duplicate)
		assert.Equal(t, first.EnquiryID, again.EnquiryID)
	})
}

func TestIngestionService_ConcurrentDuplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const deliveries = 5
	var wg sync.WaitGroup
	results := make([]*domain.ReceiveEmailResponse, deliveries)
	errs := make([]error, deliveries)

	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.ingestion.Ingest(ctx, enquiryRequest("thread-1", "<m1@nordicfish.no>"))
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < deliveries; i++ {
		require.NoError(t, errs[i])
		if !results[i].Duplicate {
			fresh++
		}
		assert.Equal(t, "ENQ-2025-0001", results[i].EnquiryID)
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(1), env.countRows(t, &domain.Conversation{}))
	assert.Equal(t, int64(1), env.countRows(t, &domain.InboundEmail{}))
	assert.Equal(t, int64(1), env.countRows(t, &domain.Customer{}))
}

func TestIngestionService_ConcurrentEnquiriesOnOneThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*domain.ReceiveEmailResponse, 2)
	errs := make([]error, 2)
	for i, id := range []string{"<a@nordicfish.no>", "<b@nordicfish.no>"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = env.ingestion.Ingest(ctx, enquiryRequest("thread-1", id))
		}(i, id)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0].EnquiryID, results[1].EnquiryID)
	assert.Equal(t, int64(1), env.countRows(t, &domain.Conversation{}))
	assert.Equal(t, int64(2), env.countRows(t, &domain.InboundEmail{}))
}

func TestIngestionService_TerminalThreadStartsNewConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.ingestion.Ingest(ctx, enquiryRequest("thread-1", "<m1@nordicfish.no>"))
	require.NoError(t, err)
	_, err = env.ingestion.Ingest(ctx, orderRequest("thread-1", "<m2@nordicfish.no>"))
	require.NoError(t, err)

	t.Run("late order email is orphaned", func(t *testing.T) {
		resp, err := env.ingestion.Ingest(ctx, orderRequest("thread-1", "<m3@nordicfish.no>"))
		require.NoError(t, err)
		assert.True(t, resp.Orphan)
	})

	t.Run("new enquiry opens a second conversation", func(t *testing.T) {
		resp, err := env.ingestion.Ingest(ctx, enquiryRequest("thread-1", "<m4@nordicfish.no>"))
		require.NoError(t, err)
		assert.False(t, resp.Orphan)
		assert.NotEqual(t, first.EnquiryID, resp.EnquiryID)
		assert.Equal(t, "ENQ-2025-0002", resp.EnquiryID)
		assert.Equal(t, domain.ConversationStatusReceived, resp.EnquiryStatus)
	})

	old, err := env.conversationRepo.GetByExternalID(ctx, first.EnquiryID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationStatusConverted, old.Status)
}

func TestIngestionService_ArchivesRawBody(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	log := zap.NewNop()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	clock := &tickingClock{t: testNow}
	ingestion := service.NewIngestionService(
		env.db, env.customers, env.conversationRepo, env.eventRepo, env.emailRepo,
		extraction.NewGuarded(env.extractor, time.Second, log),
		lock.NewLocal(),
		service.NewNumberSequenceService(repository.NewNumberSequenceRepository(env.db), clock, log),
		storage.NewEmailArchive(store), clock,
		service.ConcurrencyOptions{MaxRetries: 1, RetryDelay: time.Millisecond},
		log,
	)

	_, err = ingestion.Ingest(ctx, enquiryRequest("thread-1", "<m1@nordicfish.no>"))
	require.NoError(t, err)

	stored, err := env.emailRepo.GetByMessageKey(ctx, "<m1@nordicfish.no>")
	require.NoError(t, err)
	require.NotEmpty(t, stored.ArchivePath)
	rc, err := store.Get(ctx, stored.ArchivePath)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	t.Run("failed email leaves no archived body", func(t *testing.T) {
		failVersionedUpdates(t, env.db, -1)
		req := followUpRequest("thread-1", "<m2@nordicfish.no>")
		req.ReceivedAt = "2025-03-14T10:00:00Z"

		_, err := ingestion.Ingest(ctx, req)
		require.ErrorIs(t, err, service.ErrConcurrentUpdate)

		name := storage.ArchiveName(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC), "<m2@nordicfish.no>")
		_, err = store.Get(ctx, name)
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)

		// The stored email keeps its body
		rc, err := store.Get(ctx, stored.ArchivePath)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
	})
}

func TestIngestionService_RejectsMissingSender(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ingestion.Ingest(context.Background(), &domain.ReceiveEmailRequest{FromEmail: "  "})
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, "<abc@x>", service.MessageKey(" <abc@x> ", "a@b.c", "s", "b", ""))

	a := service.MessageKey("", "A@B.c", "subject", "body", "2025-01-01")
	b := service.MessageKey("", "a@b.c", "subject", "body", "2025-01-01")
	c := service.MessageKey("", "a@b.c", "subject", "other body", "2025-01-01")
	assert.True(t, strings.HasPrefix(a, "fp_"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestParseReceivedAt(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"", now},
		{"garbage", now},
		{"2025-03-14T08:15:00Z", time.Date(2025, 3, 14, 8, 15, 0, 0, time.UTC)},
		{"2025-03-14T10:15:00+02:00", time.Date(2025, 3, 14, 8, 15, 0, 0, time.UTC)},
		{"2025-03-14T08:15:00", time.Date(2025, 3, 14, 8, 15, 0, 0, time.UTC)},
		{"2025-03-14 08:15:00", time.Date(2025, 3, 14, 8, 15, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, tt.want.Equal(service.ParseReceivedAt(tt.in, now)))
		})
	}
}

func TestRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.no", "b@x.no"}, service.Recipients(" a@x.no , ,b@x.no"))
	assert.Nil(t, service.Recipients(""))
	assert.Equal(t, "a@x.no", service.PrimaryRecipient("a@x.no,b@x.no"))
	assert.Empty(t, service.PrimaryRecipient(""))
}
