package extraction

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/procost/enquiry-api/internal/domain"
)

// HeuristicExtractor finds product lines with keyword rules. It is used when
// no language model is configured, and needs no network.
type HeuristicExtractor struct{}

// NewHeuristicExtractor creates a keyword based extractor
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

type keywordRule struct {
	keywords []string
	value    string
}

// Species, most specific first
var productRules = []keywordRule{
	{[]string{"salmon"}, "Salmon"},
	{[]string{"cod"}, "Cod"},
	{[]string{"haddock"}, "Haddock"},
	{[]string{"pollock"}, "Pollock"},
	{[]string{"mackerel"}, "Mackerel"},
	{[]string{"herring"}, "Herring"},
	{[]string{"trout"}, "Trout"},
	{[]string{"whitefish", "white fish"}, "Whitefish"},
}

var trimRules = []keywordRule{
	{[]string{"fillet", "filet"}, "Fillet"},
	{[]string{"portion"}, "Portion"},
	{[]string{"loin"}, "Loin"},
	{[]string{"steak"}, "Steak"},
	{[]string{"tail"}, "Tail"},
	{[]string{"hog", "head on gutted", "whole"}, "Whole"},
}

var productionRules = []keywordRule{
	{[]string{"frozen", "iqf", "individually quick frozen"}, "Frozen"},
	{[]string{"fresh", "chilled"}, "Fresh"},
}

var packagingRules = []keywordRule{
	{[]string{"vacuum", "vac pack", "vac-pack"}, "Vacuum"},
	{[]string{"chainpack", "chain pack"}, "Chainpack"},
	{[]string{"ice pack", "on ice"}, "Ice Pack"},
	{[]string{"bulk"}, "Bulk"},
	{[]string{"retail pack", "consumer pack"}, "Retail"},
	{[]string{"box", "boxes", "carton"}, "Box"},
}

var transportRules = []keywordRule{
	{[]string{"air freight", "by air", "airfreight"}, "Air"},
	{[]string{"sea freight", "by sea"}, "Sea"},
	{[]string{"road transport", "by truck", "by road"}, "Road"},
	{[]string{"express", "expedited"}, "Express"},
}

var instructionRules = []keywordRule{
	{[]string{"gyro"}, "Gyro freezing"},
	{[]string{"tunnel"}, "Tunnel freezing"},
	{[]string{"organic"}, "Organic"},
	{[]string{"skin off", "skinless"}, "Skin off"},
	{[]string{"pin bone out", "pbo"}, "Pin bone out"},
}

var (
	quantityPattern  = regexp.MustCompile(`(?i)(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?)\s*(kgs?|kilos?|kilograms?|tons?|tonnes?|mt)\b`)
	thousandsPattern = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	sizePattern      = regexp.MustCompile(`(?i)\b(\d+(?:[.,]\d+)?\s*-\s*\d+(?:[.,]\d+)?\s*(?:kg|g|lbs?))\b`)
	boxQtyPattern    = regexp.MustCompile(`(?i)\b(\d+)\s*kg\s*(?:box|boxes|carton|cartons)\b`)
	referencePattern = regexp.MustCompile(`(?i)\b(?:sku|item|code)[\s#:-]*([a-z0-9][a-z0-9-]*)`)
	segmentSplit     = regexp.MustCompile(`[\n;]+|\.\s+`)
	dashSpace        = regexp.MustCompile(`\s*-\s*`)
	unitGap          = regexp.MustCompile(`(\d)\s*([a-zA-Z]+)$`)
)

// Extract returns one line item per sentence or line that names a species.
// Context that applies to the whole email (production type, packaging,
// transport, instructions) fills fields a line leaves open.
func (h *HeuristicExtractor) Extract(ctx context.Context, body string) ([]domain.LineItemDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	whole := strings.ToLower(body)
	var items []domain.LineItemDraft

	for _, segment := range segmentSplit.Split(body, -1) {
		lower := strings.ToLower(segment)
		product := match(productRules, lower)
		if product == "" {
			continue
		}

		item := domain.LineItemDraft{
			Product:             product,
			TrimType:            orElse(match(trimRules, lower), match(trimRules, whole)),
			ProductionType:      orElse(match(productionRules, lower), match(productionRules, whole)),
			PackagingType:       orElse(match(packagingRules, lower), match(packagingRules, whole)),
			TransportMode:       orElse(match(transportRules, lower), match(transportRules, whole)),
			SpecialInstructions: strings.Join(matchAll(instructionRules, whole), ", "),
			ProductDescription:  strings.TrimSpace(segment),
		}
		if m := sizePattern.FindStringSubmatch(segment); m != nil {
			item.RMSpec = unitGap.ReplaceAllString(dashSpace.ReplaceAllString(m[1], "-"), "$1 $2")
		}
		if m := boxQtyPattern.FindStringSubmatch(segment); m != nil {
			item.BoxQuantity = m[1] + "kg"
		}
		if m := referencePattern.FindStringSubmatch(segment); m != nil {
			item.CustomerReference = strings.ToUpper(m[1])
		}
		// Sizes and box weights are not order quantities
		rest := boxQtyPattern.ReplaceAllString(sizePattern.ReplaceAllString(segment, " "), " ")
		item.Quantity = parseQuantity(rest)
		item.Confidence = confidence(item)

		items = append(items, item)
	}

	return items, nil
}

// parseQuantity reads the first weight in text, converted to kilograms
func parseQuantity(text string) *int {
	for _, m := range quantityPattern.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseFloat(decimalNumber(m[1]), 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[2])
		if strings.HasPrefix(unit, "ton") || unit == "mt" {
			value *= 1000
		}
		kg := int(math.Round(value))
		return &kg
	}
	return nil
}

// decimalNumber normalizes "5,000" (thousands separator) and "2,5"
// (decimal comma) for ParseFloat
func decimalNumber(raw string) string {
	if thousandsPattern.MatchString(raw) {
		return strings.ReplaceAll(raw, ",", "")
	}
	return strings.ReplaceAll(raw, ",", ".")
}

// confidence scores how many product attributes were found
func confidence(item domain.LineItemDraft) domain.ConfidenceLevel {
	score := 0
	if item.Product != "" {
		score += 30
	}
	if item.TrimType != "" {
		score += 15
	}
	if item.RMSpec != "" {
		score += 20
	}
	if item.ProductionType != "" {
		score += 10
	}
	if item.Quantity != nil && *item.Quantity > 1 && *item.Quantity < 100000 {
		score += 25
	}

	switch {
	case score >= 80:
		return domain.ConfidenceHigh
	case score >= 50:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func match(rules []keywordRule, text string) string {
	for _, r := range rules {
		for _, k := range r.keywords {
			if containsWord(text, k) {
				return r.value
			}
		}
	}
	return ""
}

func matchAll(rules []keywordRule, text string) []string {
	var out []string
	for _, r := range rules {
		for _, k := range r.keywords {
			if containsWord(text, k) {
				out = append(out, r.value)
				break
			}
		}
	}
	return out
}

// containsWord reports whether keyword occurs in text at a word start, so
// "cod" does not match "code"
func containsWord(text, keyword string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], keyword)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(keyword)
		if (start == 0 || !isLetter(text[start-1])) && (end == len(text) || !isLetter(text[end]) || text[end] == 's') {
			return true
		}
		from = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func orElse(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
