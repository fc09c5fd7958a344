package threading_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/procost/enquiry-api/internal/threading"
	"github.com/stretchr/testify/assert"
)

func TestResolve_Precedence(t *testing.T) {
	full := threading.Metadata{
		MessageID:        "<m1@mail>",
		ProviderThreadID: "t-1",
		ConversationID:   "c-1",
		InReplyTo:        "<r1@mail>",
		Subject:          "Salmon",
	}

	tests := []struct {
		name string
		meta threading.Metadata
		want string
	}{
		{"provider thread wins", full, "THREAD_t-1"},
		{"conversation next", threading.Metadata{ConversationID: "c-1", InReplyTo: "<r1@mail>", MessageID: "<m1@mail>"}, "CONV_c-1"},
		{"in-reply-to next", threading.Metadata{InReplyTo: "<r1@mail>", MessageID: "<m1@mail>"}, "REPLY_" + threading.Hash("<r1@mail>")},
		{"message id next", threading.Metadata{MessageID: "<m1@mail>", Subject: "Salmon"}, "MSG_" + threading.Hash("<m1@mail>")},
		{"subject last", threading.Metadata{Subject: "Salmon"}, "SUBJ_" + threading.Hash("Salmon")},
		{"whitespace counts as absent", threading.Metadata{ProviderThreadID: "  ", Subject: "Salmon"}, "SUBJ_" + threading.Hash("Salmon")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, threading.Resolve(tt.meta))
		})
	}
}

func TestResolve_EmptySubjectHashesOffsetBasis(t *testing.T) {
	assert.Equal(t, "SUBJ_cbf29ce484222325", threading.Resolve(threading.Metadata{}))
}

func TestHash_KnownVector(t *testing.T) {
	// FNV-1a 64 of "a"
	assert.Equal(t, "af63dc4c8601ec8c", threading.Hash("a"))
	assert.Len(t, threading.Hash("anything at all"), 16)
}

func TestResolve_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("resolve is deterministic", prop.ForAll(
		func(thread, conv, reply, msg, subject string) bool {
			m := threading.Metadata{ProviderThreadID: thread, ConversationID: conv, InReplyTo: reply, MessageID: msg, Subject: subject}
			return threading.Resolve(m) == threading.Resolve(m)
		},
		gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("distinct subjects give distinct keys", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			return threading.Resolve(threading.Metadata{Subject: a}) != threading.Resolve(threading.Metadata{Subject: b})
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.Property("provider thread id always wins", prop.ForAll(
		func(thread, msg string) bool {
			return threading.Resolve(threading.Metadata{ProviderThreadID: "t" + thread, MessageID: msg}) == "THREAD_t"+thread
		},
		gen.AlphaString(), gen.AlphaString(),
	))

	properties.TestingRun(t)
}
