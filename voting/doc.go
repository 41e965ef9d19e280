// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package voting implements the group vote lifecycle.

# Engine

Engine depends on three collaborators:

	engine := &voting.Engine{
		Store:    store,    // votes, candidates, ballots
		Roster:   store,    // group members and roles
		Notifier: broker,   // best-effort announcements
	}

Operations:

	engine.ListVotes(ctx, groupID, requesterID)
	engine.CreateVote(ctx, groupID, creatorID, input)
	engine.CastBallot(ctx, groupID, voteID, voterID, candidateID)
	engine.EditVote(ctx, groupID, voteID, actorID, patch)
	engine.DeleteVote(ctx, groupID, voteID, actorID)
	engine.SweepExpired(ctx)
	engine.RunSweeper(ctx, interval)

# Lifecycle

Votes start ACTIVE and close exactly once:

	ACTIVE → RESOLVED  majority reached, or every member voted
	ACTIVE → EXPIRED   end time passed first
	RESOLVED/EXPIRED → ARCHIVED  relabeled to make room for a new vote

Resolution is evaluated after every ballot and lazily whenever votes are
read. The majority threshold is floor(M/2)+1 where M is the group's current
member count, so it moves if members join or leave while a vote is open.
When every member has voted without a majority, or the vote expires with
ballots, the candidate with the most ballots wins; ties go to the candidate
listed first.

# Candidates

Only members without an elevated role (ADMIN, MANAGER, SUPER_ADMIN) can
stand. Eligibility is captured once at creation and stored per candidate as
EligibleAtCreation; later role changes do not remove anyone.

# Concurrency

Every write is a compare-and-swap on the vote's version. Ballot casts that
lose a race are re-read and retried up to MaxCastRetries times before
ErrConflict is returned. The ballot table's (vote, voter) uniqueness backs up
the one-ballot-per-member rule.

# Errors

Operations return errors wrapping one of ErrValidation, ErrForbidden,
ErrNotFound, ErrConflict or ErrInvalidState. Anything else is an internal
failure.
*/
package voting
