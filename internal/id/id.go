// Package id generates identifiers for stored records and runtime artifacts.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record id prefixes.
const (
	PrefixLoan = "loan"
)

// Generate creates a prefixed NanoID, e.g. "loan-V1StGXR8_Z5jdHi6B-myT".
// The 21-character NanoID alphabet is URL-safe.
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

// NewLoanID returns an id for an active loan. The id is carried over to the
// completed record when the loan is returned.
func NewLoanID() (string, error) {
	return Generate(PrefixLoan)
}

// NewUUID returns a random UUID, used for token ids and audit run ids.
func NewUUID() string {
	return uuid.NewString()
}
