package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned when a versioned update matched no row
// because another writer got there first
var ErrVersionConflict = errors.New("row version changed by a concurrent writer")

// IsNotFound reports whether err is gorm's record-not-found error
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateKey reports whether err is a unique constraint violation.
// gorm translates most dialects into ErrDuplicatedKey; the message checks
// cover drivers that do not.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
