// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import "errors"

// Error kinds returned by Engine operations. Callers match them with errors.Is;
// the wrapped message is safe to show to users.
var (
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)

// Errors returned by Store implementations.
var (
	// ErrVersionConflict means the vote changed since it was read.
	ErrVersionConflict = errors.New("vote version conflict")
	// ErrAlreadyVoted means the (vote, voter) pair already has a ballot.
	ErrAlreadyVoted = errors.New("voter already has a ballot")
	// ErrDuplicateVote means a uniqueness constraint on votes was hit.
	ErrDuplicateVote = errors.New("duplicate vote")
)
