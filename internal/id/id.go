// Package id generates the prefixed identifiers and invite codes used across the server.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each record type.
const (
	PrefixUser    = "usr"
	PrefixSession = "ses"
	PrefixDataset = "ds"
	PrefixEntry   = "en"
	PrefixLabel   = "lb"
)

// inviteAlphabet omits characters that are easy to misread when a code is
// typed by hand (0/O, 1/I/L).
const inviteAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// InviteCodeLength is the number of characters in an invite code.
const InviteCodeLength = 8

// Generate creates a prefixed unique ID using NanoID, e.g. "ds-V1StGXR8_Z5jdHi6B-myT".
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

// InviteCode returns a short code that grants join access to a dataset.
func InviteCode() (string, error) {
	code, err := gonanoid.Generate(inviteAlphabet, InviteCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return code, nil
}

// IsInviteCode reports whether s has the shape of an invite code.
func IsInviteCode(s string) bool {
	if len(s) != InviteCodeLength {
		return false
	}
	for i := range len(s) {
		if !containsByte(inviteAlphabet, s[i]) {
			return false
		}
	}
	return true
}

func containsByte(set string, b byte) bool {
	for i := range len(set) {
		if set[i] == b {
			return true
		}
	}
	return false
}
