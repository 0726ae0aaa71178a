// Package id generates and checks the opaque identifiers used across rentwise.
package id

import (
	"fmt"
	"regexp"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for generated identifiers.
const (
	PrefixProperty     = "prop"
	PrefixInvitation   = "inv"
	PrefixConversation = "conv"
	PrefixMessage      = "msg"
	PrefixNotification = "ntf"
	PrefixUser         = "user"
	PrefixToken        = "token"
)

// maxLen bounds canonical identifiers. Legacy ObjectIDs are 24 hex chars and
// generated ids are prefix + 22, so 64 leaves headroom without allowing junk.
const maxLen = 64

var canonical = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "inv-V1StGXR8_Z5jdHi6B-myT").
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Valid reports whether s is a well-formed canonical identifier: non-empty,
// URL-safe, and at most 64 characters. Both generated ids and normalized
// legacy ObjectID hex strings pass.
func Valid(s string) bool {
	return len(s) > 0 && len(s) <= maxLen && canonical.MatchString(s)
}
