// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/voting"
)

// Memory is an in-process store with the same version and uniqueness rules
// as SQL. Data is lost on restart.
type Memory struct {
	mu            sync.RWMutex
	groups        map[string][]models.Member
	votes         map[string]models.Vote
	notifications []models.Notification
}

func NewMemory() *Memory {
	return &Memory{
		groups: make(map[string][]models.Member),
		votes:  make(map[string]models.Vote),
	}
}

// Roster

// PutMember adds or replaces a member, creating the group if needed.
func (m *Memory) PutMember(groupID string, member models.Member) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.groups[groupID]
	for i, existing := range members {
		if existing.UserID == member.UserID {
			members[i] = member
			return
		}
	}
	m.groups[groupID] = append(members, member)
}

func (m *Memory) RemoveMember(groupID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := m.groups[groupID]
	for i, existing := range members {
		if existing.UserID == userID {
			m.groups[groupID] = append(members[:i:i], members[i+1:]...)
			return
		}
	}
}

func (m *Memory) Members(_ context.Context, groupID string) ([]models.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, voting.ErrNotFound)
	}
	return append([]models.Member(nil), members...), nil
}

func (m *Memory) MemberCount(_ context.Context, groupID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	members, ok := m.groups[groupID]
	if !ok {
		return 0, fmt.Errorf("group %s: %w", groupID, voting.ErrNotFound)
	}
	return len(members), nil
}

// Votes

func (m *Memory) ListVotes(_ context.Context, groupID string) ([]models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(v models.Vote) bool { return v.GroupID == groupID }), nil
}

func (m *Memory) ListActiveVotes(_ context.Context) ([]models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(models.Vote.IsActive), nil
}

func (m *Memory) GetVote(_ context.Context, groupID, voteID string) (models.Vote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.votes[voteID]
	if !ok || v.GroupID != groupID {
		return models.Vote{}, fmt.Errorf("vote %s: %w", voteID, voting.ErrNotFound)
	}
	return v.Clone(), nil
}

func (m *Memory) CreateVote(_ context.Context, vote models.Vote, archivals []voting.Archival) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stage archivals so a failure leaves nothing applied.
	staged := make(map[string]*models.Vote, len(archivals))
	for _, a := range archivals {
		v, ok := m.votes[a.VoteID]
		if !ok || v.GroupID != vote.GroupID || v.Version != a.Version {
			return fmt.Errorf("vote %s: %w", a.VoteID, voting.ErrVersionConflict)
		}
		if a.Delete {
			staged[a.VoteID] = nil
			continue
		}
		v = v.Clone()
		v.Kind, v.Title, v.Status = a.Kind, a.Title, models.StatusArchived
		v.Version++
		v.UpdatedAt = vote.CreatedAt
		staged[a.VoteID] = &v
	}

	for id, existing := range m.votes {
		if next, ok := staged[id]; ok {
			if next == nil {
				continue
			}
			existing = *next
		}
		if existing.GroupID != vote.GroupID {
			continue
		}
		if existing.CreatorID == vote.CreatorID && existing.Kind == vote.Kind {
			return fmt.Errorf("vote %s: %w", vote.ID, voting.ErrDuplicateVote)
		}
		if existing.IsActive() && vote.IsActive() && existing.Kind == vote.Kind {
			return fmt.Errorf("vote %s: %w", vote.ID, voting.ErrDuplicateVote)
		}
	}

	for id, next := range staged {
		if next == nil {
			delete(m.votes, id)
			continue
		}
		m.votes[id] = *next
	}
	m.votes[vote.ID] = vote.Clone()
	return nil
}

func (m *Memory) UpdateVote(_ context.Context, u voting.VoteUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.votes[u.Vote.ID]
	if !ok || stored.GroupID != u.Vote.GroupID {
		return fmt.Errorf("vote %s: %w", u.Vote.ID, voting.ErrNotFound)
	}
	if stored.Version != u.Vote.Version {
		return fmt.Errorf("vote %s at version %d: %w", u.Vote.ID, u.Vote.Version, voting.ErrVersionConflict)
	}

	next := stored.Clone()
	next.Title = u.Vote.Title
	next.Description = u.Vote.Description
	next.EndAt = u.Vote.EndAt
	next.Status = u.Vote.Status
	next.WinnerID = u.Vote.WinnerID
	next.ResolutionReason = u.Vote.ResolutionReason
	next.UpdatedAt = u.Vote.UpdatedAt
	next.Version++

	if u.Ballot != nil {
		if next.HasVoted(u.Ballot.VoterID) {
			return fmt.Errorf("voter %s: %w", u.Ballot.VoterID, voting.ErrAlreadyVoted)
		}
		next.Ballots = append(next.Ballots, *u.Ballot)
	}
	if u.ReplaceCandidates {
		next.Candidates = append([]models.Candidate(nil), u.Vote.Candidates...)
	}

	m.votes[next.ID] = next
	return nil
}

func (m *Memory) DeleteVote(_ context.Context, groupID, voteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.votes[voteID]
	if !ok || v.GroupID != groupID {
		return fmt.Errorf("vote %s: %w", voteID, voting.ErrNotFound)
	}
	delete(m.votes, voteID)
	return nil
}

// Notifications

func (m *Memory) Notify(_ context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

// ListNotifications returns the group's most recent notifications, newest first.
func (m *Memory) ListNotifications(_ context.Context, groupID string, limit int) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Notification{}
	for i := len(m.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if m.notifications[i].GroupID == groupID {
			out = append(out, m.notifications[i])
		}
	}
	return out, nil
}

// collect returns clones of matching votes ordered by creation time.
func (m *Memory) collect(match func(models.Vote) bool) []models.Vote {
	var out []models.Vote
	for _, v := range m.votes {
		if match(v) {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

var (
	_ voting.Store    = (*Memory)(nil)
	_ voting.Roster   = (*Memory)(nil)
	_ voting.Notifier = (*Memory)(nil)
)
