package service_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/pricing"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/service"
	"github.com/procost/enquiry-api/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// tickingClock advances one second per reading so events order strictly
type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// stubExtractor returns salmon for bodies mentioning salmon and cod for
// bodies mentioning cod
type stubExtractor struct {
	mu    sync.Mutex
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, body string) ([]domain.LineItemDraft, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	lower := strings.ToLower(body)
	var items []domain.LineItemDraft
	if strings.Contains(lower, "salmon") {
		qty := 5000
		items = append(items, domain.LineItemDraft{
			Product:        "Salmon",
			TrimType:       "Fillet",
			ProductionType: "Fresh",
			Quantity:       &qty,
			Confidence:     domain.ConfidenceHigh,
		})
	}
	if strings.Contains(lower, "cod") {
		qty := 200
		items = append(items, domain.LineItemDraft{
			Product:        "Cod",
			ProductionType: "Frozen",
			Quantity:       &qty,
			Confidence:     domain.ConfidenceMedium,
		})
	}
	return items, nil
}

func (s *stubExtractor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// openLocker grants every lock at once, leaving the database as the only
// guard between concurrent writers of a thread
type openLocker struct{}

func (openLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// failVersionedUpdates makes the first n conversation updates report no
// matched row, as if another writer had bumped the version in between.
// A negative n fails every update. The returned counter sees every update.
func failVersionedUpdates(t *testing.T, db *gorm.DB, n int) *atomic.Int32 {
	t.Helper()

	var calls atomic.Int32
	err := db.Callback().Update().After("gorm:update").Register("test:lose_version_race", func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement.Table != "conversations" {
			return
		}
		if c := calls.Add(1); n < 0 || int(c) <= n {
			tx.RowsAffected = 0
		}
	})
	require.NoError(t, err)
	return &calls
}

// hideConversations makes the next n conversation reads find nothing, as if
// a concurrent insert had not been committed yet when they ran
func hideConversations(t *testing.T, db *gorm.DB, n int) *atomic.Int32 {
	t.Helper()

	var hidden atomic.Int32
	err := db.Callback().Query().Before("gorm:query").Register("test:hide_conversations", func(tx *gorm.DB) {
		if tx.Statement.Table != "conversations" || int(hidden.Load()) >= n {
			return
		}
		hidden.Add(1)
		tx.Statement.AddClause(clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "1 = 0"}}})
	})
	require.NoError(t, err)
	return &hidden
}

type testEnv struct {
	db               *gorm.DB
	catalog          *pricing.MemoryCatalog
	extractor        *stubExtractor
	conversationRepo *repository.ConversationRepository
	emailRepo        *repository.InboundEmailRepository
	eventRepo        *repository.ConversationEventRepository
	ingestion        *service.IngestionService
	customers        *service.CustomerService
	conversations    *service.ConversationService
	emails           *service.EmailService
	quotes           *service.QuoteService
	pricing          *service.PricingService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLocker(t, lock.NewLocal())
}

// newTestEnvWithLocker builds the services around the given thread locker
func newTestEnvWithLocker(t *testing.T, locker lock.Locker) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := zap.NewNop()
	clock := &tickingClock{t: testNow}
	concurrency := service.ConcurrencyOptions{LockTimeout: 5 * time.Second, MaxRetries: 3, RetryDelay: time.Millisecond}

	customerRepo := repository.NewCustomerRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	eventRepo := repository.NewConversationEventRepository(db)
	emailRepo := repository.NewInboundEmailRepository(db)
	quoteRepo := repository.NewQuoteRepository(db)
	sequences := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), clock, log)

	extractor := &stubExtractor{}
	catalog := pricing.NewMemoryCatalog()
	engine := pricing.NewEngine(catalog, time.Second, log)

	customers := service.NewCustomerService(customerRepo, log)
	ingestion := service.NewIngestionService(
		db, customers, conversationRepo, eventRepo, emailRepo,
		extraction.NewGuarded(extractor, time.Second, log),
		locker, sequences, nil, clock,
		concurrency,
		log,
	)

	return &testEnv{
		db:               db,
		catalog:          catalog,
		extractor:        extractor,
		conversationRepo: conversationRepo,
		emailRepo:        emailRepo,
		eventRepo:        eventRepo,
		ingestion:        ingestion,
		customers:        customers,
		conversations:    service.NewConversationService(db, conversationRepo, eventRepo, customerRepo, locker, clock, concurrency, log),
		emails:           service.NewEmailService(emailRepo, conversationRepo, ingestion, log),
		quotes: service.NewQuoteService(db, quoteRepo, conversationRepo, eventRepo, engine, sequences, locker, clock,
			service.QuoteOptions{Currency: "DKK", ValidityDays: 14, Concurrency: concurrency}, log),
		pricing: service.NewPricingService(engine, "DKK", 0, log),
	}
}

func (e *testEnv) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func enquiryRequest(threadID, messageID string) *domain.ReceiveEmailRequest {
	return &domain.ReceiveEmailRequest{
		FromEmail: "Buyer@NordicFish.no",
		ToEmail:   "sales@procost.dk, quotes@procost.dk",
		Subject:   "Salmon enquiry",
		EmailBody: "need 5000 kg of salmon fillets fresh, price please\n\nRegards,\nOla Nordmann",
		ThreadID:  threadID,
		MessageID: messageID,
	}
}

func orderRequest(threadID, messageID string) *domain.ReceiveEmailRequest {
	return &domain.ReceiveEmailRequest{
		FromEmail: "buyer@nordicfish.no",
		Subject:   "Re: Salmon enquiry",
		EmailBody: "please proceed with the order",
		ThreadID:  threadID,
		MessageID: messageID,
	}
}
