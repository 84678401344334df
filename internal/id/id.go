// Package id generates document and run identifiers.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Document ID prefixes.
const (
	PrefixPost         = "post"
	PrefixComment      = "cmt"
	PrefixReply        = "rpl"
	PrefixTag          = "tag"
	PrefixUser         = "user"
	PrefixSubscription = "sub"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "post-V1StGXR8_Z5jdHi6B-myT")
//
// Returns an error if the system has insufficient entropy for secure random generation.
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

// NewRunID identifies one run of a background job in logs.
func NewRunID() string {
	return uuid.NewString()
}
