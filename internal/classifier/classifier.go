// Package classifier places inbound emails in the sales funnel using ordered
// keyword rules.
package classifier

import (
	"regexp"
	"strings"

	"github.com/procost/enquiry-api/internal/domain"
)

// Rule is one entry of the stage cascade. Rules are evaluated in order and
// the first matching rule decides the stage.
type Rule struct {
	Name  string
	Match func(text string) bool
	Stage domain.Stage
}

var (
	orderPlacementPhrases = []string{"proceed with", "place order", "place the order", "go ahead", "move forward", "confirm order"}
	orderConfirmedPhrases = []string{"order confirmed", "order placed", "order number", "purchase order"}
	quoteSentPhrases      = []string{"quote attached", "pricing below", "quotation"}
	closedPhrases         = []string{"cancel", "not interested", "too expensive", "reject", "decline", "no longer need"}
	enquiryPhrases        = []string{"need", "require", "looking for", "inquiry", "enquiry", "quote request", "price", "cost",
		"interested in", "tons", "volume", "processing", "quote", "estimate", "pricing"}
	followUpPhrases  = []string{"question", "clarification", "modify", "change", "update", "when", "how", "what about", "also"}
	approvalPhrases  = []string{"accept", "approve", "good", "looks good", "acceptable", "agree"}
	quoteTopicPhrase = []string{"quote", "pricing"}
)

var rules = []Rule{
	{Name: "order placement", Match: anyOf(orderPlacementPhrases...), Stage: domain.StageOrderPlacement},
	{Name: "order confirmed", Match: anyOf(orderConfirmedPhrases...), Stage: domain.StageOrderConfirmed},
	{
		// Accepting a quote is treated as placing the order
		Name: "quote acceptance",
		Match: func(text string) bool {
			return anyOf(quoteTopicPhrase...)(text) && anyOf(approvalPhrases...)(text)
		},
		Stage: domain.StageOrderPlacement,
	},
	{
		Name: "quote sent",
		Match: func(text string) bool {
			return anyOf(quoteSentPhrases...)(text) || (strings.Contains(text, "quote") && strings.Contains(text, "price"))
		},
		Stage: domain.StageQuoteSent,
	},
	{Name: "enquiry closed", Match: anyOf(closedPhrases...), Stage: domain.StageEnquiryClosed},
	{Name: "initial enquiry", Match: anyOf(enquiryPhrases...), Stage: domain.StageInitialEnquiry},
	{Name: "follow up", Match: anyOf(followUpPhrases...), Stage: domain.StageFollowUp},
	{
		Name:  "order confirmation type",
		Match: func(text string) bool { return classifyType(text) == domain.EmailTypeOrderConfirmation },
		Stage: domain.StageOrderConfirmed,
	},
}

// Rules returns a copy of the ordered stage rules
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// ClassifyStage returns the funnel stage of an email. It is total: text no
// rule matches is a FOLLOW_UP.
func ClassifyStage(subject, body string) domain.Stage {
	text := normalize(subject, body)
	for _, r := range rules {
		if r.Match(text) {
			return r.Stage
		}
	}
	return domain.StageFollowUp
}

// ClassifyEmailType returns the coarse intent of an email
func ClassifyEmailType(subject, body string) domain.EmailType {
	return classifyType(normalize(subject, body))
}

func classifyType(text string) domain.EmailType {
	switch {
	case strings.Contains(text, "quote") && anyOf("accept", "approve", "confirmed")(text):
		return domain.EmailTypeQuoteAcceptance
	case strings.Contains(text, "quote") && anyOf("reject", "decline")(text):
		return domain.EmailTypeQuoteRejection
	case strings.Contains(text, "order") && anyOf("confirm", "place")(text):
		return domain.EmailTypeOrderConfirmation
	case anyOf("inquiry", "enquiry", "quote request", "need", "require", "looking for")(text):
		return domain.EmailTypeEnquiry
	default:
		return domain.EmailTypeGeneral
	}
}

// References holds quote and order numbers mentioned in an email
type References struct {
	Quote string
	Order string
}

var (
	quoteRefPattern = regexp.MustCompile(`(?i)(?:quote|ref|reference)\s*[#:]?\s*([QR]\d+)`)
	orderRefPattern = regexp.MustCompile(`(?i)(?:order|po|purchase)\s*[#:]?\s*([OR]\d+)`)
)

// ExtractReferences finds the first quote and order reference in the body,
// then the subject
func ExtractReferences(subject, body string) References {
	text := body + " " + subject
	var refs References
	if m := quoteRefPattern.FindStringSubmatch(text); m != nil {
		refs.Quote = m[1]
	}
	if m := orderRefPattern.FindStringSubmatch(text); m != nil {
		refs.Order = m[1]
	}
	return refs
}

// Suggested actions returned to the webhook caller
const (
	ActionGenerateQuote  = "EXTRACT_INFO_AND_GENERATE_QUOTE"
	ActionConvertToOrder = "CONVERT_QUOTE_TO_ORDER"
	ActionProcessOrder   = "PROCESS_ORDER"
	ActionArchiveThread  = "ARCHIVE_THREAD"
	ActionReviewManually = "REVIEW_MANUALLY"
)

// SuggestedAction maps a stage to the next step an operator should take
func SuggestedAction(stage domain.Stage) string {
	switch stage {
	case domain.StageInitialEnquiry:
		return ActionGenerateQuote
	case domain.StageOrderPlacement:
		return ActionConvertToOrder
	case domain.StageOrderConfirmed:
		return ActionProcessOrder
	case domain.StageEnquiryClosed:
		return ActionArchiveThread
	default:
		return ActionReviewManually
	}
}

func normalize(subject, body string) string {
	return strings.ToLower(subject + " " + body)
}

func anyOf(phrases ...string) func(string) bool {
	return func(text string) bool {
		for _, p := range phrases {
			if strings.Contains(text, p) {
				return true
			}
		}
		return false
	}
}
