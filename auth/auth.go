// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var (
	ErrMissingIdentity  = errors.New("missing identity")
	ErrInvalidSignature = errors.New("invalid identity signature")
)

// SignUser creates the HMAC signature the gateway attaches to a user ID.
// This is deterministic and verifiable
func SignUser(userID, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(userID))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner headers
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateUserSignature checks that signature was issued for userID
func ValidateUserSignature(userID, signature, salt string) error {
	if strings.TrimSpace(userID) == "" || signature == "" {
		return ErrMissingIdentity
	}
	expected := SignUser(userID, salt)
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}
