// Package threading derives the stable thread key that groups inbound emails
// into one conversation.
package threading

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Metadata is the identifying header data of an inbound email
type Metadata struct {
	MessageID        string
	ProviderThreadID string
	ConversationID   string
	InReplyTo        string
	Subject          string
}

// Thread key prefixes, in resolution priority order
const (
	PrefixThread       = "THREAD_"
	PrefixConversation = "CONV_"
	PrefixReply        = "REPLY_"
	PrefixMessage      = "MSG_"
	PrefixSubject      = "SUBJ_"
)

// Resolve returns the thread key for an email. The first present identifier
// wins: provider thread id, conversation id, in-reply-to, message id, subject.
// Resolve never fails; an email without any identifier hashes its (possibly
// empty) subject.
func Resolve(m Metadata) string {
	switch {
	case present(m.ProviderThreadID):
		return PrefixThread + m.ProviderThreadID
	case present(m.ConversationID):
		return PrefixConversation + m.ConversationID
	case present(m.InReplyTo):
		return PrefixReply + Hash(m.InReplyTo)
	case present(m.MessageID):
		return PrefixMessage + Hash(m.MessageID)
	default:
		return PrefixSubject + Hash(m.Subject)
	}
}

// Hash renders the 64-bit FNV-1a hash of s as 16 lower-case hex digits
func Hash(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Fingerprint hashes the given parts joined with "|"
func Fingerprint(parts ...string) string {
	return Hash(strings.Join(parts, "|"))
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}
