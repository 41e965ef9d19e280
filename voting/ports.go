// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"time"

	"github.com/danielhkuo/messmate/models"
)

// Store persists votes together with their candidates and ballots.
//
// Missing groups or votes are reported by wrapping ErrNotFound.
type Store interface {
	ListVotes(ctx context.Context, groupID string) ([]models.Vote, error)
	ListActiveVotes(ctx context.Context) ([]models.Vote, error)
	GetVote(ctx context.Context, groupID, voteID string) (models.Vote, error)

	// CreateVote applies archivals and inserts vote in one transaction.
	// A violated uniqueness constraint is reported as ErrDuplicateVote.
	CreateVote(ctx context.Context, vote models.Vote, archivals []Archival) error

	// UpdateVote writes the vote row only if its stored version equals
	// u.Vote.Version, then increments it. It returns ErrVersionConflict when
	// the version moved and ErrAlreadyVoted when u.Ballot duplicates a voter.
	UpdateVote(ctx context.Context, u VoteUpdate) error

	DeleteVote(ctx context.Context, groupID, voteID string) error
}

// VoteUpdate is a single compare-and-swap write.
type VoteUpdate struct {
	// Vote carries the new state; Vote.Version is the expected stored version.
	Vote models.Vote
	// Ballot, when set, is inserted in the same transaction.
	Ballot *models.Ballot
	// ReplaceCandidates rewrites the candidate list from Vote.Candidates.
	ReplaceCandidates bool
}

// Archival clears a finished vote out of the way of a new one.
type Archival struct {
	VoteID  string
	Version int64
	// Delete removes the vote; otherwise it is relabeled with Kind and Title.
	Delete bool
	Kind   string
	Title  string
}

// Roster exposes group membership.
type Roster interface {
	// Members returns the group's current members, or ErrNotFound for an unknown group.
	Members(ctx context.Context, groupID string) ([]models.Member, error)
	MemberCount(ctx context.Context, groupID string) (int, error)
}

// Notifier delivers group announcements. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
