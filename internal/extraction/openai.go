package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/procost/enquiry-api/internal/domain"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrEmptyCompletion is returned when the model answers with no choices
var ErrEmptyCompletion = errors.New("openai returned no choices")

const systemPrompt = "You are an expert seafood industry analyst. Extract structured product data from emails and return only valid JSON."

const productPrompt = `Carefully analyze the email content to identify each separate product or SKU discussed.

For every SKU, extract: product_type (fresh or frozen), Trim (A, B, C, D, E etc), product_cut (Fillet, Portion, HOG), rm_spec/size (1-2 kg, 3-4 kg etc), Quality, pack_type (2x125, VAC, Chainpack etc), pack_material (Corrugated Box, Solid Box, Retail Box etc), box_qty (5kg, 10kg etc), qty, qty_unit, delivery_date (YYYY-MM-DD), transport_mode (Air, Regular etc), special_notes and customer_reference.

If several rm_spec/size or pack_type options are listed for a product group without separate quantities, return each combination as its own SKU with the same qty and qty_unit.

Return a JSON object with the key "products" holding a list of SKU objects. Use null for missing fields. Extract only what is written, except Quality which defaults to superior grade. Return only JSON, no markdown.

EMAIL:
%s`

// OpenAIOptions configures the OpenAI extractor
type OpenAIOptions struct {
	Model       string
	MaxTokens   int
	Temperature float32
	// BreakerFailures consecutive failures open the circuit
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// OpenAIExtractor extracts line items with a chat completion
type OpenAIExtractor struct {
	client *openai.Client
	opts   OpenAIOptions
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewOpenAIClient creates a client, pointing at baseURL when it is set
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAIExtractor creates an OpenAI backed extractor
func NewOpenAIExtractor(client *openai.Client, opts OpenAIOptions, logger *zap.Logger) *OpenAIExtractor {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	cbSettings := gobreaker.Settings{
		Name:        "openai-extractor",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &OpenAIExtractor{
		client: client,
		opts:   opts,
		cb:     gobreaker.NewCircuitBreaker(cbSettings),
		logger: logger,
	}
}

// Extract asks the model for the products in body
func (e *OpenAIExtractor) Extract(ctx context.Context, body string) ([]domain.LineItemDraft, error) {
	res, err := e.cb.Execute(func() (interface{}, error) {
		resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: e.opts.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(productPrompt, body)},
			},
			MaxTokens:   e.opts.MaxTokens,
			Temperature: e.opts.Temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return nil, err
	}

	items, err := ParseProducts(res.(string))
	if err != nil {
		return nil, err
	}

	e.logger.Debug("OpenAI extraction completed", zap.Int("items", len(items)))
	return items, nil
}

// ParseProducts decodes a model answer. It accepts {"products": [...]} as
// well as a bare array, optionally wrapped in a markdown code fence.
func ParseProducts(content string) ([]domain.LineItemDraft, error) {
	cleaned := stripFence(content)

	var products []map[string]interface{}
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &products); err != nil {
			return nil, fmt.Errorf("failed to decode products: %w", err)
		}
	} else {
		var envelope struct {
			Products []map[string]interface{} `json:"products"`
		}
		if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode products: %w", err)
		}
		products = envelope.Products
	}

	items := make([]domain.LineItemDraft, 0, len(products))
	for _, p := range products {
		items = append(items, productToDraft(p))
	}
	return items, nil
}

func productToDraft(p map[string]interface{}) domain.LineItemDraft {
	product := field(p, "product_cut", "product")
	trim := field(p, "Trim", "trim", "trimType")
	productType := field(p, "product_type", "productType")
	rmSpec := field(p, "rm_spec/size", "rm_spec", "rmSpec")
	quality := field(p, "Quality", "quality")
	if quality == "" {
		quality = "superior grade quality"
	}
	packType := field(p, "pack_type", "packagingType")
	packMaterial := field(p, "pack_material")
	boxQty := field(p, "box_qty")
	notes := field(p, "special_notes", "description")

	special := quality
	if notes != "" {
		special = quality + " - " + notes
	}

	var quantity *int
	if q, ok := number(p, "qty", "quantity"); ok {
		unit := strings.ToLower(field(p, "qty_unit"))
		if unit == "ton" || unit == "tons" || unit == "tonne" || unit == "tonnes" || unit == "t" {
			q *= 1000
		}
		n := int(math.Round(q))
		quantity = &n
	}

	return domain.LineItemDraft{
		Product:             product,
		TrimType:            trim,
		RMSpec:              rmSpec,
		ProductionType:      titleWord(productType),
		PackagingType:       packType,
		PackMaterial:        packMaterial,
		BoxQuantity:         boxQty,
		TransportMode:       field(p, "transport_mode", "transportMode"),
		Quantity:            quantity,
		DeliveryRequirement: field(p, "delivery_date"),
		SpecialInstructions: special,
		CustomerReference:   field(p, "customer_reference", "sku"),
		ProductDescription:  joinNonEmpty(" ", product, rmSpec, productType, packType, packMaterial, boxQty) + suffix(notes),
		Confidence:          domain.ConfidenceHigh,
	}
}

func stripFence(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func field(p map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			continue
		}
		if s = strings.TrimSpace(s); s != "" && !strings.EqualFold(s, "null") {
			return s
		}
	}
	return ""
}

func number(p map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch t := p[k].(type) {
		case float64:
			return t, true
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// titleWord turns "FROZEN" or "frozen" into "Frozen"
func titleWord(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func suffix(notes string) string {
	if notes == "" {
		return ""
	}
	return " - " + notes
}
