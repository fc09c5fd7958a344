package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/extraction"
	"github.com/procost/enquiry-api/internal/http/handler"
	"github.com/procost/enquiry-api/internal/http/middleware"
	"github.com/procost/enquiry-api/internal/http/router"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/pricing"
	"github.com/procost/enquiry-api/internal/repository"
	"github.com/procost/enquiry-api/internal/service"
	"github.com/procost/enquiry-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAPIKey = "test-key"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	db := testutil.NewTestDB(t)
	log := zap.NewNop()
	locker := lock.NewLocal()

	conversationRepo := repository.NewConversationRepository(db)
	eventRepo := repository.NewConversationEventRepository(db)
	emailRepo := repository.NewInboundEmailRepository(db)
	sequences := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), nil, log)

	catalog := pricing.NewMemoryCatalog()
	catalog.SetFilingRate(domain.FilingRateKey{Product: "Salmon", TrimType: "Fillet"}, 2.0)
	engine := pricing.NewEngine(catalog, time.Second, log)

	customerRepo := repository.NewCustomerRepository(db)
	customers := service.NewCustomerService(customerRepo, log)
	ingestion := service.NewIngestionService(
		db, customers, conversationRepo, eventRepo, emailRepo,
		extraction.NewGuarded(extraction.NewHeuristicExtractor(), time.Second, log),
		locker, sequences, nil, nil, service.DefaultConcurrencyOptions(), log,
	)
	conversations := service.NewConversationService(db, conversationRepo, eventRepo, customerRepo, locker, nil,
		service.DefaultConcurrencyOptions(), log)
	emails := service.NewEmailService(emailRepo, conversationRepo, ingestion, log)
	quotes := service.NewQuoteService(db, repository.NewQuoteRepository(db), conversationRepo, eventRepo,
		engine, sequences, locker, nil, service.DefaultQuoteOptions(), log)

	cfg := &config.Config{
		App:       config.AppConfig{Environment: "test"},
		ApiKey:    config.ApiKeyConfig{Value: testAPIKey},
		Security:  config.SecurityConfig{ContentTypeNosniff: true, FrameOptions: "DENY"},
		RateLimit: config.RateLimitConfig{Enabled: false},
	}

	rt := router.NewRouter(cfg, log, middleware.NewRateLimiter(&cfg.RateLimit, log), router.Handlers{
		Health:       handler.NewHealthHandler(db, nil, nil, log),
		Webhook:      handler.NewWebhookHandler(ingestion, log),
		Conversation: handler.NewConversationHandler(conversations, log),
		Customer:     handler.NewCustomerHandler(customers, log),
		Quote:        handler.NewQuoteHandler(quotes, log),
		Email:        handler.NewEmailHandler(emails, log),
		Pricing:      handler.NewPricingHandler(service.NewPricingService(engine, "DKK", 0, log), log),
	})
	return rt.Setup()
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target), rec.Body.String())
}

func enquiry() domain.ReceiveEmailRequest {
	return domain.ReceiveEmailRequest{
		FromEmail: "buyer@nordicfish.no",
		ToEmail:   "sales@procost.dk",
		Subject:   "Salmon enquiry",
		EmailBody: "Hello, we need 5000 kg of salmon fillets fresh. Please send a price.",
		MessageID: "<m1@nordicfish.no>",
		ThreadID:  "thread-1",
	}
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPIKeyRequired(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations", nil)
	req.Header.Set(middleware.APIKeyHeader, "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_Validation(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/webhooks/email", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := enquiry()
	req.FromEmail = ""
	rec = do(t, h, http.MethodPost, "/api/v1/webhooks/email", req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var problem domain.APIError
	decode(t, rec, &problem)
	assert.Equal(t, domain.ErrorTypeValidation, problem.Type)
	assert.Contains(t, problem.Errors, "fromEmail")
}

func TestEnquiryToQuoteFlow(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/webhooks/email", enquiry())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var received domain.ReceiveEmailResponse
	decode(t, rec, &received)
	assert.True(t, received.Success)
	assert.False(t, received.Duplicate)
	assert.Equal(t, domain.StageInitialEnquiry, received.EmailStage)
	assert.True(t, strings.HasPrefix(received.EnquiryID, "ENQ-"))
	assert.Equal(t, 1, received.ItemsCount)

	// Redelivery is acknowledged without a second conversation
	rec = do(t, h, http.MethodPost, "/api/v1/webhooks/email", enquiry())
	require.Equal(t, http.StatusOK, rec.Code)
	var again domain.ReceiveEmailResponse
	decode(t, rec, &again)
	assert.True(t, again.Duplicate)
	assert.Equal(t, received.EnquiryID, again.EnquiryID)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+received.EnquiryID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conv domain.ConversationDTO
	decode(t, rec, &conv)
	assert.Equal(t, domain.ConversationStatusReceived, conv.Status)
	require.Len(t, conv.Items, 1)
	assert.Equal(t, "Salmon", conv.Items[0].Product)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations?status=RECEIVED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.PaginatedResponse
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)

	rec = do(t, h, http.MethodPost, "/api/v1/quotes/generate", domain.GenerateQuoteRequest{ConversationID: received.EnquiryID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var quote domain.QuoteDTO
	decode(t, rec, &quote)
	assert.True(t, strings.HasPrefix(quote.Number, "QUO-"))
	assert.Equal(t, "/api/v1/quotes/"+quote.Number, rec.Header().Get("Location"))
	assert.Equal(t, domain.QuoteStatusDraft, quote.Status)
	assert.InDelta(t, 10000.0, quote.TotalAmount, 1e-9)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+received.EnquiryID, nil)
	decode(t, rec, &conv)
	assert.Equal(t, domain.ConversationStatusQuoted, conv.Status)

	rec = do(t, h, http.MethodGet, "/api/v1/quotes/"+quote.Number, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+received.EnquiryID+"/quotes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quotes []domain.QuoteDTO
	decode(t, rec, &quotes)
	require.Len(t, quotes, 1)
	assert.Equal(t, quote.Number, quotes[0].Number)
	assert.Len(t, quotes[0].Items, 1)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/ENQ-1999-0001/quotes", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/quotes/"+quote.Number+"/send", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/quotes/"+quote.Number+"/accept", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/v1/quotes/"+quote.Number+"/reject", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/"+received.EnquiryID+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []domain.ConversationEventDTO
	decode(t, rec, &history)
	assert.Len(t, history, 2)
}

func TestConversationStatusEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/webhooks/email", enquiry())
	require.Equal(t, http.StatusOK, rec.Code)
	var received domain.ReceiveEmailResponse
	decode(t, rec, &received)
	path := "/api/v1/conversations/" + received.EnquiryID + "/status"

	rec = do(t, h, http.MethodPut, path, domain.UpdateConversationStatusRequest{Status: "QUOTED", Note: "by phone"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPut, path, domain.UpdateConversationStatusRequest{Status: "RECEIVED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var problem domain.APIError
	decode(t, rec, &problem)
	assert.Equal(t, domain.ErrorTypeBadRequest, problem.Type)

	rec = do(t, h, http.MethodPut, path, domain.UpdateConversationStatusRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/v1/conversations/ENQ-1999-0001/status", domain.UpdateConversationStatusRequest{Status: "QUOTED"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/status/QUOTED", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var quoted []domain.ConversationDTO
	decode(t, rec, &quoted)
	assert.Len(t, quoted, 1)

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/status/SHIPPED", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationStatsEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/api/v1/conversations/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var empty domain.ConversationStatsDTO
	decode(t, rec, &empty)
	assert.Zero(t, empty.Total)
	assert.Len(t, empty.ByStatus, len(domain.AllConversationStatuses))
	assert.Empty(t, empty.RecentEnquiries)

	for i := 1; i <= 6; i++ {
		req := enquiry()
		req.ThreadID = fmt.Sprintf("thread-%d", i)
		req.MessageID = fmt.Sprintf("<m%d@nordicfish.no>", i)
		rec = do(t, h, http.MethodPost, "/api/v1/webhooks/email", req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	other := enquiry()
	other.FromEmail = "buyer@atlanticseafood.is"
	other.ThreadID = "thread-7"
	other.MessageID = "<m7@atlanticseafood.is>"
	rec = do(t, h, http.MethodPost, "/api/v1/webhooks/email", other)
	require.Equal(t, http.StatusOK, rec.Code)

	var received domain.ReceiveEmailResponse
	decode(t, rec, &received)
	rec = do(t, h, http.MethodPut, "/api/v1/conversations/"+received.EnquiryID+"/status",
		domain.UpdateConversationStatusRequest{Status: "CANCELLED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/conversations/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.ConversationStatsDTO
	decode(t, rec, &stats)
	assert.Equal(t, int64(7), stats.Total)
	assert.Equal(t, int64(6), stats.ByStatus[domain.ConversationStatusReceived])
	assert.Equal(t, int64(1), stats.ByStatus[domain.ConversationStatusCancelled])
	assert.Equal(t, int64(0), stats.ByStatus[domain.ConversationStatusQuoted])
	assert.Equal(t, int64(2), stats.TotalCustomers)
	assert.Len(t, stats.RecentEnquiries, 5)
}

func TestCustomerEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/webhooks/email", enquiry())
	require.Equal(t, http.StatusOK, rec.Code)
	var received domain.ReceiveEmailResponse
	decode(t, rec, &received)

	rec = do(t, h, http.MethodGet, "/api/v1/customers?search=nordic", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data  []domain.CustomerDTO `json:"data"`
		Total int64                `json:"total"`
	}
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, received.CustomerID, page.Data[0].ID)

	rec = do(t, h, http.MethodGet, "/api/v1/customers?search=nomatch", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Equal(t, int64(0), page.Total)

	rec = do(t, h, http.MethodGet, "/api/v1/customers/"+received.CustomerID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var customer domain.CustomerDTO
	decode(t, rec, &customer)
	assert.Equal(t, "Nordicfish Corp", customer.CompanyName)
	assert.Equal(t, "buyer@nordicfish.no", customer.Email)

	rec = do(t, h, http.MethodGet, "/api/v1/customers/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/customers/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmailEndpoints(t *testing.T) {
	h := newTestServer(t)

	orphan := domain.ReceiveEmailRequest{
		FromEmail: "buyer@nordicfish.no",
		Subject:   "Re: our order",
		EmailBody: "please proceed with the order",
		MessageID: "<o1@nordicfish.no>",
		ThreadID:  "unknown-thread",
	}
	rec := do(t, h, http.MethodPost, "/api/v1/webhooks/email", orphan)
	require.Equal(t, http.StatusOK, rec.Code)
	var received domain.ReceiveEmailResponse
	decode(t, rec, &received)
	assert.True(t, received.Orphan)

	rec = do(t, h, http.MethodGet, "/api/v1/emails/orphans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orphans []domain.InboundEmailDTO
	decode(t, rec, &orphans)
	require.Len(t, orphans, 1)

	rec = do(t, h, http.MethodGet, "/api/v1/emails/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats domain.EmailStatsDTO
	decode(t, rec, &stats)
	assert.Equal(t, int64(1), stats.Orphans)

	rec = do(t, h, http.MethodPut, "/api/v1/emails/not-a-uuid/classification", domain.ClassifyEmailRequest{Stage: "INITIAL_ENQUIRY"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/emails?page=1&pageSize=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page domain.PaginatedResponse
	decode(t, rec, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, 5, page.PageSize)
}

func TestPricingPreviewEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/pricing/preview", domain.PricingPreviewRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	qty := 10
	rec = do(t, h, http.MethodPost, "/api/v1/pricing/preview", domain.PricingPreviewRequest{
		Product:  "Salmon",
		TrimType: "Fillet",
		Quantity: &qty,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var breakdown domain.PricingBreakdownDTO
	decode(t, rec, &breakdown)
	assert.InDelta(t, 2.0, breakdown.UnitPrice, 1e-9)
	assert.InDelta(t, 20.0, breakdown.TotalPrice, 1e-9)
	assert.Equal(t, "DKK", breakdown.Currency)
}
