// Package id generates identifiers. Local records use prefixed NanoIDs;
// cross-device identifiers use UUIDs so any backend can mint them too.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate creates a prefixed unique ID using NanoID.
// Format: prefix-nanoid (e.g., "card-V1StGXR8_Z5jdHi6B-myT").
//
// NanoIDs are URL-friendly, compact (21 characters vs UUID's 36),
// and use a larger alphabet for better entropy per character.
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
// Use this only when you're certain the system entropy is available,
// or when failure should crash the program (e.g., during initialization).
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// Card returns a new local card id.
func Card() string { return MustGenerate("card") }

// ReviewLog returns a new local review log id.
func ReviewLog() string { return MustGenerate("log") }

// Event returns a new client event id. Event ids travel to the backend
// and make review submissions idempotent across retries.
func Event() string { return MustGenerate("evt") }

// Device returns a new device id, minted once per installation.
func Device() string { return MustGenerate("dev") }

// Session returns a new auth session id.
func Session() string { return MustGenerate("sess") }

// User returns a new server-side user id.
func User() string { return MustGenerate("user") }

// Cloud returns a new cross-device identifier. UUIDs are used here so
// the same id space works for server-minted and client-minted records.
func Cloud() string { return uuid.NewString() }
