// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"time"

	"github.com/danielhkuo/messmate/models"
)

// ListVotes returns every vote in the group as seen by requesterID. Active
// votes that are due are resolved or expired first, and the change is saved.
func (e *Engine) ListVotes(ctx context.Context, groupID, requesterID string) ([]models.VoteView, error) {
	members, _, err := e.requireMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}

	votes, err := e.Store.ListVotes(ctx, groupID)
	if err != nil {
		return nil, e.internal("list votes", err, "group_id", groupID)
	}
	votes, err = e.settleAll(ctx, votes, len(members))
	if err != nil {
		return nil, err
	}

	views := make([]models.VoteView, 0, len(votes))
	for _, v := range votes {
		views = append(views, NewView(v, members, requesterID))
	}
	return views, nil
}

// SweepExpired re-evaluates every active vote across all groups against the
// live member counts and returns how many it closed. Per-vote failures are
// logged and skipped.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	votes, err := e.Store.ListActiveVotes(ctx)
	if err != nil {
		return 0, e.internal("list active votes", err)
	}

	counts := make(map[string]int)
	closed := 0
	for _, v := range votes {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		total, ok := counts[v.GroupID]
		if !ok {
			total, err = e.Roster.MemberCount(ctx, v.GroupID)
			if err != nil {
				e.log().Warn("sweep skipped group", "group_id", v.GroupID, "error", err)
				continue
			}
			counts[v.GroupID] = total
		}

		_, changed, err := e.settleWithRetry(ctx, v, total)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			e.log().Warn("sweep failed to settle vote", "group_id", v.GroupID, "vote_id", v.ID, "error", err)
			continue
		}
		if changed {
			closed++
		}
	}

	if closed > 0 {
		e.log().Info("expiry sweep closed votes", "closed", closed, "checked", len(votes))
	}
	return closed, nil
}

// settleAll applies settleWithRetry to each active vote. Votes deleted
// concurrently are dropped from the result.
func (e *Engine) settleAll(ctx context.Context, votes []models.Vote, totalMembers int) ([]models.Vote, error) {
	settled := votes[:0]
	for _, v := range votes {
		if !v.IsActive() {
			settled = append(settled, v)
			continue
		}
		next, _, err := e.settleWithRetry(ctx, v, totalMembers)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, e.internal("settle vote", err, "group_id", v.GroupID, "vote_id", v.ID)
		}
		settled = append(settled, next)
	}
	return settled, nil
}

// settleWithRetry re-reads the vote after a lost version race. Whoever wins
// the race is the only writer to announce the transition.
func (e *Engine) settleWithRetry(ctx context.Context, v models.Vote, totalMembers int) (models.Vote, bool, error) {
	for attempt := 0; ; attempt++ {
		next, changed, err := e.settle(ctx, v, totalMembers)
		if !errors.Is(err, ErrVersionConflict) {
			return next, changed, err
		}
		if attempt >= e.retries() {
			return v, false, err
		}
		v, err = e.Store.GetVote(ctx, v.GroupID, v.ID)
		if err != nil {
			return v, false, err
		}
	}
}

// settle evaluates an active vote and persists the transition if one is due.
// Evaluating a vote that is already closed is a no-op.
func (e *Engine) settle(ctx context.Context, v models.Vote, totalMembers int) (models.Vote, bool, error) {
	now := e.now()
	outcome := Evaluate(v, totalMembers, now)
	if !outcome.Changed() || !v.IsActive() {
		return v, false, nil
	}

	next := v.Clone()
	apply(&next, outcome, now)
	if err := e.Store.UpdateVote(ctx, VoteUpdate{Vote: next}); err != nil {
		return v, false, err
	}
	next.Version++

	e.announceClose(ctx, next)
	return next, true, nil
}

// RunSweeper calls SweepExpired every interval until ctx is cancelled.
func (e *Engine) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.SweepExpired(ctx); err != nil && ctx.Err() == nil {
				e.log().Warn("expiry sweep failed", "error", err)
			}
		}
	}
}
