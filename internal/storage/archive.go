package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procost/enquiry-api/internal/threading"
)

// EmailArchive writes raw inbound email bodies to a Storage. Names are
// derived from the message key, so archiving a redelivered email
// overwrites the earlier copy.
type EmailArchive struct {
	store Storage
}

func NewEmailArchive(store Storage) *EmailArchive {
	return &EmailArchive{store: store}
}

// ArchiveName returns the object name for a message, e.g.
// "emails/2025/03/04/3f2a9c1b0d4e5f60.eml"
func ArchiveName(receivedAt time.Time, messageKey string) string {
	return fmt.Sprintf("emails/%s/%s.eml", receivedAt.UTC().Format("2006/01/02"), threading.Hash(messageKey))
}

// Archive stores the raw body and returns its object name
func (a *EmailArchive) Archive(ctx context.Context, receivedAt time.Time, messageKey, rawBody string) (string, error) {
	name := ArchiveName(receivedAt, messageKey)
	contentType := "text/plain; charset=utf-8"
	if strings.Contains(strings.ToLower(rawBody), "<html") {
		contentType = "text/html; charset=utf-8"
	}
	if _, err := a.store.Put(ctx, name, contentType, strings.NewReader(rawBody)); err != nil {
		return "", fmt.Errorf("failed to archive email: %w", err)
	}
	return name, nil
}

// Discard removes an archived body. A missing object is not an error.
func (a *EmailArchive) Discard(ctx context.Context, name string) error {
	if err := a.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("failed to discard archived email: %w", err)
	}
	return nil
}
