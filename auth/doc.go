// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth verifies the identity headers set by the auth gateway.

The gateway signs each user ID with HMAC-SHA256 and a shared salt:

	sig := auth.SignUser(userID, salt)
	err := auth.ValidateUserSignature(userID, sig, salt)

Signatures are URL-safe base64 without padding. They are deterministic,
so nothing needs to be stored to validate them.
*/
package auth
