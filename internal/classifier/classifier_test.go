package classifier_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/procost/enquiry-api/internal/classifier"
	"github.com/procost/enquiry-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestClassifyStage(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    domain.Stage
	}{
		{"order placement", "Re: offer", "We would like to proceed with the order", domain.StageOrderPlacement},
		{"order confirmed", "PO", "Our purchase order is attached", domain.StageOrderConfirmed},
		{"quote acceptance", "Re: quote", "The quote looks good to us", domain.StageOrderPlacement},
		{"quote sent", "Quotation", "Please find attached", domain.StageQuoteSent},
		{"quote and price", "Re: quote", "The price is listed", domain.StageQuoteSent},
		{"closed", "Re: salmon", "Sorry, this is too expensive", domain.StageEnquiryClosed},
		{"initial enquiry", "Salmon fillets", "We need 5 tons of fresh salmon", domain.StageInitialEnquiry},
		{"follow up", "Re: salmon", "One more question about delivery", domain.StageFollowUp},
		{"type fallback to order confirmed", "Re: salmon", "We confirmed the order yesterday", domain.StageOrderConfirmed},
		{"default", "Hi", "Thanks", domain.StageFollowUp},
		{"case insensitive", "GO AHEAD", "", domain.StageOrderPlacement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifier.ClassifyStage(tt.subject, tt.body))
		})
	}
}

func TestClassifyStage_PrecedenceExample(t *testing.T) {
	// Placement outranks closure and enquiry words in the same email
	got := classifier.ClassifyStage("Re: quote", "Please go ahead, we need it fast, cancel the old one")
	assert.Equal(t, domain.StageOrderPlacement, got)
}

func TestRules_OrderAndIndividualMatches(t *testing.T) {
	rules := classifier.Rules()
	assert.Len(t, rules, 8)

	want := []domain.Stage{
		domain.StageOrderPlacement,
		domain.StageOrderConfirmed,
		domain.StageOrderPlacement,
		domain.StageQuoteSent,
		domain.StageEnquiryClosed,
		domain.StageInitialEnquiry,
		domain.StageFollowUp,
		domain.StageOrderConfirmed,
	}
	for i, r := range rules {
		assert.Equal(t, want[i], r.Stage, r.Name)
	}

	samples := map[string]string{
		"order placement":         "please place the order",
		"order confirmed":         "order number 1234",
		"quote acceptance":        "pricing is acceptable",
		"quote sent":              "pricing below",
		"enquiry closed":          "no longer need it",
		"initial enquiry":         "looking for cod",
		"follow up":               "what about friday",
		"order confirmation type": "confirmed the order",
	}
	for _, r := range rules {
		text, ok := samples[r.Name]
		if assert.True(t, ok, r.Name) {
			assert.True(t, r.Match(text), r.Name)
		}
	}
}

func TestClassifyEmailType(t *testing.T) {
	assert.Equal(t, domain.EmailTypeQuoteAcceptance, classifier.ClassifyEmailType("Quote", "we accept"))
	assert.Equal(t, domain.EmailTypeQuoteRejection, classifier.ClassifyEmailType("Quote", "we must decline"))
	assert.Equal(t, domain.EmailTypeOrderConfirmation, classifier.ClassifyEmailType("Order", "please confirm"))
	assert.Equal(t, domain.EmailTypeEnquiry, classifier.ClassifyEmailType("Enquiry", "fish"))
	assert.Equal(t, domain.EmailTypeGeneral, classifier.ClassifyEmailType("Hello", "nice weather"))
}

func TestExtractReferences(t *testing.T) {
	refs := classifier.ExtractReferences("Re: Quote #Q1234", "Please see PO: O5678")
	assert.Equal(t, "Q1234", refs.Quote)
	assert.Equal(t, "O5678", refs.Order)

	none := classifier.ExtractReferences("Hello", "nothing here")
	assert.Empty(t, none.Quote)
	assert.Empty(t, none.Order)
}

func TestSuggestedAction(t *testing.T) {
	assert.Equal(t, classifier.ActionGenerateQuote, classifier.SuggestedAction(domain.StageInitialEnquiry))
	assert.Equal(t, classifier.ActionConvertToOrder, classifier.SuggestedAction(domain.StageOrderPlacement))
	assert.Equal(t, classifier.ActionProcessOrder, classifier.SuggestedAction(domain.StageOrderConfirmed))
	assert.Equal(t, classifier.ActionArchiveThread, classifier.SuggestedAction(domain.StageEnquiryClosed))
	assert.Equal(t, classifier.ActionReviewManually, classifier.SuggestedAction(domain.StageFollowUp))
	assert.Equal(t, classifier.ActionReviewManually, classifier.SuggestedAction(domain.StageQuoteSent))
}

func TestClassifyStage_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("always returns a valid stage", prop.ForAll(
		func(subject, body string) bool {
			return classifier.ClassifyStage(subject, body).IsValid()
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.Property("deterministic", prop.ForAll(
		func(subject, body string) bool {
			return classifier.ClassifyStage(subject, body) == classifier.ClassifyStage(subject, body)
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("case insensitive", prop.ForAll(
		func(subject, body string) bool {
			return classifier.ClassifyStage(subject, body) == classifier.ClassifyStage(upper(subject), upper(body))
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
