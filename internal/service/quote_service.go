package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/procost/enquiry-api/internal/conversation"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/procost/enquiry-api/internal/lock"
	"github.com/procost/enquiry-api/internal/logger"
	"github.com/procost/enquiry-api/internal/mapper"
	"github.com/procost/enquiry-api/internal/pricing"
	"github.com/procost/enquiry-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QuoteOptions holds the quote defaults
type QuoteOptions struct {
	Prefix       string
	Currency     string
	ValidityDays int
	FactoryID    int64
	Concurrency  ConcurrencyOptions
}

// DefaultQuoteOptions returns the defaults used for unset options
func DefaultQuoteOptions() QuoteOptions {
	return QuoteOptions{
		Prefix:       PrefixQuote,
		Currency:     "DKK",
		ValidityDays: 30,
		FactoryID:    pricing.DefaultFactoryID,
		Concurrency:  DefaultConcurrencyOptions(),
	}
}

// QuoteService assembles priced quotes from conversations and moves them
// through their lifecycle
type QuoteService struct {
	db               *gorm.DB
	quoteRepo        *repository.QuoteRepository
	conversationRepo *repository.ConversationRepository
	eventRepo        *repository.ConversationEventRepository
	engine           *pricing.Engine
	sequencer        Sequencer
	locker           lock.Locker
	clock            Clock
	opts             QuoteOptions
	logger           *zap.Logger
}

func NewQuoteService(
	db *gorm.DB,
	quoteRepo *repository.QuoteRepository,
	conversationRepo *repository.ConversationRepository,
	eventRepo *repository.ConversationEventRepository,
	engine *pricing.Engine,
	sequencer Sequencer,
	locker lock.Locker,
	clock Clock,
	opts QuoteOptions,
	logger *zap.Logger,
) *QuoteService {
	defaults := DefaultQuoteOptions()
	if opts.Prefix == "" {
		opts.Prefix = defaults.Prefix
	}
	if opts.Currency == "" {
		opts.Currency = defaults.Currency
	}
	if opts.ValidityDays <= 0 {
		opts.ValidityDays = defaults.ValidityDays
	}
	if opts.FactoryID <= 0 {
		opts.FactoryID = defaults.FactoryID
	}
	opts.Concurrency = opts.Concurrency.withDefaults()
	if clock == nil {
		clock = SystemClock{}
	}
	return &QuoteService{
		db:               db,
		quoteRepo:        quoteRepo,
		conversationRepo: conversationRepo,
		eventRepo:        eventRepo,
		engine:           engine,
		sequencer:        sequencer,
		locker:           locker,
		clock:            clock,
		opts:             opts,
		logger:           logger,
	}
}

// GenerateQuote prices every item of a conversation and stores the quote.
// Overrides apply by index; items without one are priced by the engine.
// The quote, the item prices and the move to QUOTED commit together.
func (s *QuoteService) GenerateQuote(ctx context.Context, req *domain.GenerateQuoteRequest) (*domain.QuoteDTO, error) {
	c, err := findConversation(ctx, s.conversationRepo, req.ConversationID)
	if err != nil {
		return nil, err
	}

	release, err := lockThread(ctx, s.locker, s.opts.Concurrency.LockTimeout, c.ThreadKey)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logger.WithEnquiry(s.logger, c.ExternalID)
	engine := s.engine.Pinned()
	id := c.ID
	var (
		number string
		quote  *domain.Quote
	)

	err = retryOnConflict(ctx, s.opts.Concurrency, "conversation "+c.ExternalID, log, func() error {
		// Re-read on every attempt so items and version are current
		current, err := findConversation(ctx, s.conversationRepo, id.String())
		if err != nil {
			return err
		}
		c = current

		quoteItems, pricedItems, total := s.priceItems(ctx, engine, c.Items, req.Items)

		// Drawn once; a rolled back attempt leaves the number unused
		if number == "" {
			drawn, err := s.sequencer.Next(ctx, s.opts.Prefix)
			if err != nil {
				return fmt.Errorf("failed to generate quote number: %w", err)
			}
			number = drawn
		}

		quote = &domain.Quote{
			Number:         number,
			Status:         domain.QuoteStatusDraft,
			TotalAmount:    total,
			Currency:       commonCurrency(quoteItems, s.opts.Currency),
			ValidityPeriod: fmt.Sprintf("%d days", s.opts.ValidityDays),
			CustomerID:     c.CustomerID,
			ConversationID: c.ID,
			Items:          quoteItems,
		}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.storeQuote(ctx, tx, c, quote, pricedItems)
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info("Quote generated",
		zap.String("quote_number", number),
		zap.Int("items", len(quote.Items)),
		zap.Float64("total", quote.TotalAmount),
		zap.String("currency", quote.Currency))

	return s.GetByNumber(ctx, number)
}

// priceItems builds one quote line per conversation item and the items
// with their computed prices
func (s *QuoteService) priceItems(ctx context.Context, engine *pricing.Engine, items []domain.ConversationItem, overrides []domain.QuoteItemOverrideRequest) ([]domain.QuoteItem, []domain.ConversationItem, float64) {
	quoteItems := make([]domain.QuoteItem, 0, len(items))
	pricedItems := make([]domain.ConversationItem, 0, len(items))
	var total float64

	for i, item := range items {
		var line domain.QuoteItem
		if i < len(overrides) {
			line = s.overrideLine(item, overrides[i])
		} else {
			line = s.pricedLine(ctx, engine, item)
		}
		line.Position = i
		line.ConversationItemID = item.ID
		total += line.TotalPrice
		quoteItems = append(quoteItems, line)

		unit, lineTotal := line.UnitPrice, line.TotalPrice
		item.UnitPrice = &unit
		item.TotalPrice = &lineTotal
		item.Currency = line.Currency
		pricedItems = append(pricedItems, item)
	}
	return quoteItems, pricedItems, total
}

// storeQuote writes the quote, the item prices, the conversation status and
// its event inside tx. A lost version race returns errRetry.
func (s *QuoteService) storeQuote(ctx context.Context, tx *gorm.DB, c *domain.Conversation, quote *domain.Quote, pricedItems []domain.ConversationItem) error {
	if err := s.quoteRepo.WithTx(tx).CreateWithItems(ctx, quote); err != nil {
		if repository.IsDuplicateKey(err) {
			return fmt.Errorf("%w: quote number %s already exists", ErrConflict, quote.Number)
		}
		return fmt.Errorf("failed to create quote: %w", err)
	}

	conversations := s.conversationRepo.WithTx(tx)
	for i := range pricedItems {
		if err := conversations.UpdateItemPricing(ctx, &pricedItems[i]); err != nil {
			return fmt.Errorf("failed to update item pricing: %w", err)
		}
	}

	now := s.clock.Now()
	from := c.Status
	to := conversation.QuotedFrom(from)
	if to != from {
		c.SetStatus(to)
	}
	c.History += conversation.HistoryLine(now, "QUOTE GENERATED", quote.Number)
	if err := conversations.UpdateVersioned(ctx, c); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return errRetry
		}
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	event := &domain.ConversationEvent{
		ConversationID: c.ID,
		MessageKey:     "quote_" + quote.Number,
		FromStatus:     &from,
		ToStatus:       to,
		Note:           fmt.Sprintf("quote %s generated, total %.2f %s", quote.Number, quote.TotalAmount, quote.Currency),
		OccurredAt:     now,
	}
	if err := s.eventRepo.WithTx(tx).Create(ctx, event); err != nil {
		return fmt.Errorf("failed to record conversation event: %w", err)
	}
	return nil
}

// commonCurrency returns the currency shared by every line, or fallback
// when the lines disagree or there are none
func commonCurrency(items []domain.QuoteItem, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	currency := items[0].Currency
	for _, item := range items[1:] {
		if !strings.EqualFold(item.Currency, currency) {
			return fallback
		}
	}
	if currency == "" {
		return fallback
	}
	return strings.ToUpper(currency)
}

func (s *QuoteService) overrideLine(item domain.ConversationItem, o domain.QuoteItemOverrideRequest) domain.QuoteItem {
	unit := 0.0
	if o.Quantity > 0 {
		unit = o.TotalCost / float64(o.Quantity)
	}
	currency := o.Currency
	if currency == "" {
		currency = s.opts.Currency
	}
	return domain.QuoteItem{
		ProductDescription: firstNonEmpty(o.ProductDescription, item.ProductDescription, item.Product),
		Quantity:           o.Quantity,
		UnitPrice:          unit,
		TotalPrice:         o.TotalCost,
		Currency:           currency,
		Notes: auditNotes(
			"product", o.Product,
			"trim", o.TrimType,
			"rmSpec", o.RMSpec,
			"productType", o.ProductType,
			"packaging", o.PackagingType,
			"description", o.ProductDescription,
		),
	}
}

func (s *QuoteService) pricedLine(ctx context.Context, engine *pricing.Engine, item domain.ConversationItem) domain.QuoteItem {
	result := engine.Price(ctx, item, s.opts.FactoryID)
	notes := auditNotes(
		"product", item.Product,
		"trim", item.TrimType,
		"rmSpec", item.RMSpec,
		"productType", item.ProductionType,
		"packaging", item.PackagingType,
		"transport", item.TransportMode,
	)
	if missing := result.MissingComponents(); len(missing) > 0 {
		notes = joinNotes(notes, "zero components: "+strings.Join(missing, ", "))
	}
	return domain.QuoteItem{
		ProductDescription: firstNonEmpty(item.ProductDescription, item.Product),
		Quantity:           result.Quantity,
		UnitPrice:          result.UnitPrice,
		TotalPrice:         result.TotalPrice,
		Currency:           s.opts.Currency,
		Notes:              notes,
	}
}

func (s *QuoteService) GetByNumber(ctx context.Context, number string) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByNumber(ctx, number)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	dto := mapper.ToQuoteDTO(quote)
	return &dto, nil
}

func (s *QuoteService) GetByID(ctx context.Context, id uuid.UUID) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	dto := mapper.ToQuoteDTO(quote)
	return &dto, nil
}

// ListByConversation returns the quotes of a conversation, newest first
func (s *QuoteService) ListByConversation(ctx context.Context, ref string) ([]domain.QuoteDTO, error) {
	c, err := findConversation(ctx, s.conversationRepo, ref)
	if err != nil {
		return nil, err
	}
	quotes, err := s.quoteRepo.ListByConversation(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	dtos := make([]domain.QuoteDTO, 0, len(quotes))
	for i := range quotes {
		dtos = append(dtos, mapper.ToQuoteDTO(&quotes[i]))
	}
	return dtos, nil
}

func (s *QuoteService) List(ctx context.Context, page, pageSize int) (*domain.PaginatedResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	quotes, total, err := s.quoteRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	dtos := make([]domain.QuoteDTO, 0, len(quotes))
	for i := range quotes {
		dtos = append(dtos, mapper.ToQuoteDTO(&quotes[i]))
	}
	return paginated(dtos, total, page, pageSize), nil
}

// Send marks a draft quote as sent
func (s *QuoteService) Send(ctx context.Context, number string) (*domain.QuoteDTO, error) {
	return s.transition(ctx, number, domain.QuoteStatusSent)
}

// Accept marks a draft or sent quote as accepted
func (s *QuoteService) Accept(ctx context.Context, number string) (*domain.QuoteDTO, error) {
	return s.transition(ctx, number, domain.QuoteStatusAccepted)
}

// Reject marks a draft or sent quote as rejected
func (s *QuoteService) Reject(ctx context.Context, number string) (*domain.QuoteDTO, error) {
	return s.transition(ctx, number, domain.QuoteStatusRejected)
}

func (s *QuoteService) transition(ctx context.Context, number string, next domain.QuoteStatus) (*domain.QuoteDTO, error) {
	quote, err := s.quoteRepo.GetByNumber(ctx, number)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}

	if !quote.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: quote %s is %s", ErrInvalidTransition, number, quote.Status)
	}

	now := s.clock.Now()
	quote.Status = next
	switch next {
	case domain.QuoteStatusSent:
		quote.SentAt = &now
	case domain.QuoteStatusAccepted:
		quote.AcceptedAt = &now
	case domain.QuoteStatusRejected:
		quote.RejectedAt = &now
	}

	if err := s.quoteRepo.UpdateStatus(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to update quote: %w", err)
	}

	s.logger.Info("Quote status updated",
		zap.String("quote_number", number),
		zap.String("status", string(next)))

	dto := mapper.ToQuoteDTO(quote)
	return &dto, nil
}

// auditNotes renders key/value pairs as "k=v; k=v", skipping empty values
func auditNotes(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if v := strings.TrimSpace(pairs[i+1]); v != "" {
			parts = append(parts, pairs[i]+"="+v)
		}
	}
	return strings.Join(parts, "; ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
