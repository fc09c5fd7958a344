package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/procost/enquiry-api/internal/config"
	"github.com/procost/enquiry-api/internal/http/handler"
	"github.com/procost/enquiry-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	_ "github.com/procost/enquiry-api/docs" // registers the swagger spec
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Health       *handler.HealthHandler
	Webhook      *handler.WebhookHandler
	Conversation *handler.ConversationHandler
	Customer     *handler.CustomerHandler
	Quote        *handler.QuoteHandler
	Email        *handler.EmailHandler
	Pricing      *handler.PricingHandler
}

type Router struct {
	cfg         *config.Config
	logger      *zap.Logger
	rateLimiter *middleware.RateLimiter
	handlers    Handlers
}

func NewRouter(cfg *config.Config, logger *zap.Logger, rateLimiter *middleware.RateLimiter, handlers Handlers) *Router {
	return &Router{
		cfg:         cfg,
		logger:      logger,
		rateLimiter: rateLimiter,
		handlers:    handlers,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))

	r.Get("/health", rt.handlers.Health.Live)
	r.Get("/health/db", rt.handlers.Health.Database)
	r.Get("/health/ready", rt.handlers.Health.Ready)

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	requestTimeout := rt.cfg.Server.RequestTimeoutDuration()
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Use(middleware.RequireAPIKey(rt.cfg.ApiKey.Value, rt.logger))

		r.Group(func(r chi.Router) {
			r.Use(rt.rateLimiter.LimitWebhook)
			r.Post("/webhooks/email", rt.handlers.Webhook.ReceiveEmail)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.rateLimiter.Limit)

			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", rt.handlers.Conversation.List)
				r.Get("/recent", rt.handlers.Conversation.ListRecent)
				r.Get("/stats", rt.handlers.Conversation.Stats)
				r.Get("/status/{status}", rt.handlers.Conversation.ListByStatus)
				r.Get("/{id}", rt.handlers.Conversation.Get)
				r.Get("/{id}/history", rt.handlers.Conversation.History)
				r.Get("/{id}/quotes", rt.handlers.Quote.ListByConversation)
				r.Put("/{id}/status", rt.handlers.Conversation.UpdateStatus)
			})

			r.Route("/customers", func(r chi.Router) {
				r.Get("/", rt.handlers.Customer.List)
				r.Get("/{id}", rt.handlers.Customer.Get)
			})

			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", rt.handlers.Quote.List)
				r.Post("/generate", rt.handlers.Quote.Generate)
				r.Get("/{number}", rt.handlers.Quote.Get)
				r.Post("/{number}/send", rt.handlers.Quote.Send)
				r.Post("/{number}/accept", rt.handlers.Quote.Accept)
				r.Post("/{number}/reject", rt.handlers.Quote.Reject)
			})

			r.Route("/emails", func(r chi.Router) {
				r.Get("/", rt.handlers.Email.List)
				r.Get("/orphans", rt.handlers.Email.ListOrphans)
				r.Get("/stats", rt.handlers.Email.Stats)
				r.Put("/{id}/classification", rt.handlers.Email.Classify)
			})

			r.Post("/pricing/preview", rt.handlers.Pricing.Preview)
		})
	})

	return r
}
