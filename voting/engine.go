// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/messmate/models"
)

const (
	DefaultVoteWindow     = 24 * time.Hour
	DefaultMaxCastRetries = 5
)

// Engine runs the vote lifecycle for groups: creation, ballot casting,
// resolution, expiry and archival. All fields except Store and Roster are optional.
type Engine struct {
	Store    Store
	Roster   Roster
	Notifier Notifier
	Clock    Clock
	Logger   *slog.Logger

	// DefaultWindow is used when a vote is created without an end time.
	DefaultWindow time.Duration
	// MaxCastRetries bounds how often a ballot is retried after losing a version race.
	MaxCastRetries int
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return systemClock{}.Now()
	}
	return e.Clock.Now()
}

func (e *Engine) log() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) window() time.Duration {
	if e.DefaultWindow <= 0 {
		return DefaultVoteWindow
	}
	return e.DefaultWindow
}

func (e *Engine) retries() int {
	if e.MaxCastRetries <= 0 {
		return DefaultMaxCastRetries
	}
	return e.MaxCastRetries
}

// CreateVote opens a new vote. The creator must hold an elevated role and no
// other vote of the same kind may be active in the group. Finished votes of
// the same kind owned by the creator are archived or deleted first.
func (e *Engine) CreateVote(ctx context.Context, groupID, creatorID string, in models.CreateVoteInput) (models.Vote, error) {
	members, creator, err := e.requireMember(ctx, groupID, creatorID)
	if err != nil {
		return models.Vote{}, err
	}
	if !models.IsElevated(creator.Role) {
		return models.Vote{}, fmt.Errorf("%w: only group admins and managers can open votes", ErrForbidden)
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return models.Vote{}, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !models.ValidKind(in.Kind) {
		return models.Vote{}, fmt.Errorf("%w: unknown vote kind %q", ErrValidation, in.Kind)
	}

	now := e.now()
	startAt := now
	if in.StartAt != nil {
		startAt = in.StartAt.UTC()
	}
	endAt := now.Add(e.window())
	if in.EndAt != nil {
		endAt = in.EndAt.UTC()
	}
	if !endAt.After(startAt) {
		return models.Vote{}, fmt.Errorf("%w: end_at must be after start_at", ErrValidation)
	}

	candidates := EligibleCandidates(members, in.CandidateIDs)
	if len(candidates) == 0 {
		return models.Vote{}, fmt.Errorf("%w: at least one eligible candidate is required", ErrValidation)
	}

	existing, err := e.Store.ListVotes(ctx, groupID)
	if err != nil {
		return models.Vote{}, e.internal("list votes", err, "group_id", groupID)
	}
	// Expired votes still marked active must not block the new one.
	existing, err = e.settleAll(ctx, existing, len(members))
	if err != nil {
		return models.Vote{}, err
	}
	for _, v := range existing {
		if v.IsActive() && v.Kind == in.Kind {
			return models.Vote{}, fmt.Errorf("%w: a %s vote is already active in this group", ErrConflict, KindLabel(in.Kind))
		}
	}

	archivals := planArchivals(existing, creatorID, in.Kind)

	vote := models.Vote{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		CreatorID:   creatorID,
		Kind:        in.Kind,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		StartAt:     startAt,
		EndAt:       endAt,
		Status:      models.StatusActive,
		IsAnonymous: in.IsAnonymous,
		Candidates:  candidates,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = e.Store.CreateVote(ctx, vote, archivals)
	if errors.Is(err, ErrDuplicateVote) || errors.Is(err, ErrVersionConflict) {
		return models.Vote{}, fmt.Errorf("%w: a %s vote is already active in this group", ErrConflict, KindLabel(in.Kind))
	}
	if err != nil {
		return models.Vote{}, e.internal("create vote", err, "group_id", groupID)
	}

	for _, a := range archivals {
		e.log().Info("finished vote cleared for recreate",
			"group_id", groupID, "vote_id", a.VoteID, "deleted", a.Delete)
	}
	e.log().Info("vote created",
		"group_id", groupID, "vote_id", vote.ID, "kind", vote.Kind, "candidates", len(candidates))

	e.notify(ctx, vote, models.EventVoteOpened, openedMessage(vote, now))
	return vote, nil
}

// CastBallot records voterID's ballot for candidateID and resolves the vote
// if that ballot decides it. Lost version races are retried.
func (e *Engine) CastBallot(ctx context.Context, groupID, voteID, voterID, candidateID string) (models.VoteView, error) {
	members, _, err := e.requireMember(ctx, groupID, voterID)
	if err != nil {
		return models.VoteView{}, err
	}
	totalMembers := len(members)

	for attempt := 0; ; attempt++ {
		vote, err := e.Store.GetVote(ctx, groupID, voteID)
		if err != nil {
			return models.VoteView{}, e.lookupError("get vote", err, groupID, voteID)
		}

		now := e.now()
		if vote.IsActive() && now.After(vote.EndAt) {
			_, _, err := e.settle(ctx, vote, totalMembers)
			if errors.Is(err, ErrVersionConflict) {
				if attempt < e.retries() {
					continue
				}
				return models.VoteView{}, fmt.Errorf("%w: vote is busy, please try again", ErrConflict)
			}
			if err != nil {
				return models.VoteView{}, e.lookupError("settle vote", err, groupID, voteID)
			}
			return models.VoteView{}, fmt.Errorf("%w: voting has closed", ErrInvalidState)
		}
		if !vote.IsActive() {
			return models.VoteView{}, fmt.Errorf("%w: vote is %s", ErrInvalidState, strings.ToLower(vote.Status))
		}
		if _, ok := vote.Candidate(candidateID); !ok {
			return models.VoteView{}, fmt.Errorf("%w: candidate %q is not on this vote", ErrNotFound, candidateID)
		}
		if vote.HasVoted(voterID) {
			return models.VoteView{}, fmt.Errorf("%w: you have already voted", ErrConflict)
		}

		ballot := models.Ballot{CandidateID: candidateID, VoterID: voterID, CastAt: now}
		next := vote.Clone()
		next.Ballots = append(next.Ballots, ballot)
		next.UpdatedAt = now
		outcome := Evaluate(next, totalMembers, now)
		if outcome.Changed() {
			apply(&next, outcome, now)
		}

		err = e.Store.UpdateVote(ctx, VoteUpdate{Vote: next, Ballot: &ballot})
		switch {
		case err == nil:
			next.Version++
			e.log().Info("ballot cast", "group_id", groupID, "vote_id", voteID, "attempt", attempt+1)
			if outcome.Changed() {
				e.announceClose(ctx, next)
			}
			return NewView(next, members, voterID), nil
		case errors.Is(err, ErrAlreadyVoted):
			return models.VoteView{}, fmt.Errorf("%w: you have already voted", ErrConflict)
		case errors.Is(err, ErrVersionConflict):
			if attempt >= e.retries() {
				e.log().Warn("ballot retries exhausted", "group_id", groupID, "vote_id", voteID, "attempts", attempt+1)
				return models.VoteView{}, fmt.Errorf("%w: vote is busy, please try again", ErrConflict)
			}
			e.log().Debug("ballot version race, retrying", "group_id", groupID, "vote_id", voteID, "attempt", attempt+1)
		default:
			return models.VoteView{}, e.lookupError("cast ballot", err, groupID, voteID)
		}
	}
}

// EditVote changes the title, description, end time or candidate list of an
// active vote. Candidates that already hold ballots cannot be removed.
func (e *Engine) EditVote(ctx context.Context, groupID, voteID, actorID string, patch models.VotePatch) (models.Vote, error) {
	members, actor, err := e.requireMember(ctx, groupID, actorID)
	if err != nil {
		return models.Vote{}, err
	}
	if !models.IsElevated(actor.Role) {
		return models.Vote{}, fmt.Errorf("%w: only group admins and managers can edit votes", ErrForbidden)
	}

	vote, err := e.Store.GetVote(ctx, groupID, voteID)
	if err != nil {
		return models.Vote{}, e.lookupError("get vote", err, groupID, voteID)
	}
	// A due vote closes before it can be edited; a later end_at must not revive it.
	if vote.IsActive() {
		vote, _, err = e.settleWithRetry(ctx, vote, len(members))
		if errors.Is(err, ErrVersionConflict) {
			return models.Vote{}, fmt.Errorf("%w: vote is busy, please try again", ErrConflict)
		}
		if err != nil {
			return models.Vote{}, e.lookupError("settle vote", err, groupID, voteID)
		}
	}
	if !vote.IsActive() {
		return models.Vote{}, fmt.Errorf("%w: only active votes can be edited", ErrInvalidState)
	}

	next := vote.Clone()
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return models.Vote{}, fmt.Errorf("%w: title is required", ErrValidation)
		}
		next.Title = title
	}
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.EndAt != nil {
		endAt := patch.EndAt.UTC()
		if !endAt.After(next.StartAt) {
			return models.Vote{}, fmt.Errorf("%w: end_at must be after start_at", ErrValidation)
		}
		next.EndAt = endAt
	}
	replace := patch.CandidateIDs != nil
	if replace {
		next.Candidates, err = editCandidates(vote, members, patch.CandidateIDs)
		if err != nil {
			return models.Vote{}, err
		}
	}
	next.UpdatedAt = e.now()

	err = e.Store.UpdateVote(ctx, VoteUpdate{Vote: next, ReplaceCandidates: replace})
	if errors.Is(err, ErrVersionConflict) {
		return models.Vote{}, fmt.Errorf("%w: vote changed while editing, reload and try again", ErrConflict)
	}
	if err != nil {
		return models.Vote{}, e.lookupError("edit vote", err, groupID, voteID)
	}
	next.Version++

	e.log().Info("vote edited", "group_id", groupID, "vote_id", voteID, "candidates_replaced", replace)
	return next, nil
}

// DeleteVote removes a vote in any state.
func (e *Engine) DeleteVote(ctx context.Context, groupID, voteID, actorID string) error {
	_, actor, err := e.requireMember(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !models.IsElevated(actor.Role) {
		return fmt.Errorf("%w: only group admins and managers can delete votes", ErrForbidden)
	}

	if err := e.Store.DeleteVote(ctx, groupID, voteID); err != nil {
		return e.lookupError("delete vote", err, groupID, voteID)
	}

	e.log().Info("vote deleted", "group_id", groupID, "vote_id", voteID)
	return nil
}

func editCandidates(v models.Vote, members []models.Member, requested []string) ([]models.Candidate, error) {
	current := make(map[string]models.Candidate, len(v.Candidates))
	for _, c := range v.Candidates {
		current[c.ID] = c
	}
	fresh := make(map[string]models.Candidate)
	for _, c := range EligibleCandidates(members, requested) {
		fresh[c.ID] = c
	}

	seen := make(map[string]bool, len(requested))
	candidates := make([]models.Candidate, 0, len(requested))
	for _, id := range requested {
		if seen[id] {
			continue
		}
		// Existing candidates keep their creation-time snapshot.
		if c, ok := current[id]; ok {
			candidates = append(candidates, c)
			seen[id] = true
		} else if c, ok := fresh[id]; ok {
			candidates = append(candidates, c)
			seen[id] = true
		}
	}

	for i, n := range v.Tally() {
		if n > 0 && !seen[v.Candidates[i].ID] {
			return nil, fmt.Errorf("%w: %s already has ballots and cannot be removed",
				ErrValidation, v.Candidates[i].DisplayName)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: at least one eligible candidate is required", ErrValidation)
	}
	return candidates, nil
}

// CheckMember returns nil if userID belongs to the group, ErrNotFound for an
// unknown group and ErrForbidden otherwise.
func (e *Engine) CheckMember(ctx context.Context, groupID, userID string) error {
	_, _, err := e.requireMember(ctx, groupID, userID)
	return err
}

func (e *Engine) requireMember(ctx context.Context, groupID, userID string) ([]models.Member, models.Member, error) {
	members, err := e.Roster.Members(ctx, groupID)
	if errors.Is(err, ErrNotFound) {
		return nil, models.Member{}, fmt.Errorf("%w: group %q", ErrNotFound, groupID)
	}
	if err != nil {
		return nil, models.Member{}, e.internal("load members", err, "group_id", groupID)
	}
	member, ok := findMember(members, userID)
	if !ok {
		return nil, models.Member{}, fmt.Errorf("%w: not a member of this group", ErrForbidden)
	}
	return members, member, nil
}

func (e *Engine) notify(ctx context.Context, v models.Vote, event, message string) {
	if e.Notifier == nil {
		return
	}
	n := models.Notification{
		ID:        uuid.NewString(),
		GroupID:   v.GroupID,
		VoteID:    v.ID,
		Event:     event,
		Message:   message,
		CreatedAt: e.now(),
	}
	if err := e.Notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		e.log().Warn("notification failed",
			"group_id", v.GroupID, "vote_id", v.ID, "event", event, "error", err)
	}
}

func (e *Engine) announceClose(ctx context.Context, v models.Vote) {
	e.log().Info("vote closed",
		"group_id", v.GroupID, "vote_id", v.ID, "status", v.Status,
		"reason", v.ResolutionReason, "winner_id", v.WinnerID)
	if v.Status == models.StatusExpired {
		e.notify(ctx, v, models.EventVoteExpired, expiredMessage(v))
		return
	}
	e.notify(ctx, v, models.EventVoteResolved, resolvedMessage(v))
}

func (e *Engine) lookupError(op string, err error, groupID, voteID string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: vote %q", ErrNotFound, voteID)
	}
	return e.internal(op, err, "group_id", groupID, "vote_id", voteID)
}

func (e *Engine) internal(op string, err error, attrs ...any) error {
	e.log().Error(op+" failed", append(attrs, "error", err)...)
	return fmt.Errorf("%s: %w", op, err)
}
