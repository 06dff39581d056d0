// Package ulid provides prefixed ULID generation for application IDs.
//
// ULIDs are Universally Unique Lexicographically Sortable Identifiers.
// They sort by creation time, which makes training session IDs naturally
// ordered and collision-resistant across devices without coordination.
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Common prefixes for different parts of the application
const (
	// Prefix for training session ULIDs
	PrefixSession = "sess"

	// Prefix for pending sync mutation ULIDs
	PrefixMutation = "mut"

	// Prefix for setting-related ULIDs
	PrefixSetting = "set"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// Generate creates a new ULID string with the current timestamp.
func Generate() string {
	return NewWithTime(time.Now())
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a
// prefix giving context about what the ID represents (e.g. "sess").
func GenerateWithPrefix(prefix string) string {
	return prefix + PrefixSeparator + Generate()
}

// NewWithTime creates a new ULID string with a specific timestamp.
func NewWithTime(t time.Time) string {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return id.String()
}

// Validate checks if a string is a valid ULID, with or without a prefix.
func Validate(id string) bool {
	raw := id
	if i := strings.Index(id, PrefixSeparator); i >= 0 {
		raw = id[i+1:]
	}
	_, err := ulid.Parse(raw)
	return err == nil
}

// Time returns the timestamp component of a ULID string, or the zero
// time if the string is not a valid ULID.
func Time(id string) time.Time {
	raw := id
	if i := strings.Index(id, PrefixSeparator); i >= 0 {
		raw = id[i+1:]
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(parsed.Time())
}

// Domain-specific ID generation helpers

// SessionID generates a new ULID with the training session prefix
func SessionID() string {
	return GenerateWithPrefix(PrefixSession)
}

// MutationID generates a new ULID with the sync mutation prefix
func MutationID() string {
	return GenerateWithPrefix(PrefixMutation)
}

// SettingID generates a new ULID with the setting prefix
func SettingID() string {
	return GenerateWithPrefix(PrefixSetting)
}
