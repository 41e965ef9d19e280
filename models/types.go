package models

import "time"

// Vote status constants
const (
	StatusActive   = "ACTIVE"
	StatusResolved = "RESOLVED"
	StatusExpired  = "EXPIRED"
	StatusArchived = "ARCHIVED"
)

// Vote kinds
const (
	KindManagerElection = "MANAGER_ELECTION"
	KindMealChoice      = "MEAL_CHOICE"
	KindAccountant      = "ACCOUNTANT"
	KindRoomLeader      = "ROOM_LEADER"
	KindMarketManager   = "MARKET_MANAGER"
	KindGroupDecision   = "GROUP_DECISION"
)

// Member roles
const (
	RoleMember     = "MEMBER"
	RoleAdmin      = "ADMIN"
	RoleManager    = "MANAGER"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// Resolution reasons
const (
	ReasonMajorityReached = "majority_reached"
	ReasonAllMembersVoted = "all_members_voted"
	ReasonTimeExpired     = "time_expired"
)

// Notification events
const (
	EventVoteOpened   = "vote.opened"
	EventVoteResolved = "vote.resolved"
	EventVoteExpired  = "vote.expired"
)

// ArchivedTitleSuffix is appended to the title of a vote relabeled to make room for a new one.
const ArchivedTitleSuffix = " (Archived)"

// UnknownVoterName is shown for ballots whose voter is no longer on the roster.
const UnknownVoterName = "Unknown member"

// ValidKind reports whether kind is one of the supported vote kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindManagerElection, KindMealChoice, KindAccountant,
		KindRoomLeader, KindMarketManager, KindGroupDecision:
		return true
	}
	return false
}

// IsElevated reports whether role may create, edit or delete votes.
// Elevated members are never candidates.
func IsElevated(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleSuperAdmin
}

// Request types

type CreateVoteRequest struct {
	Kind         string     `json:"kind"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	StartAt      *time.Time `json:"start_at,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	IsAnonymous  bool       `json:"is_anonymous"`
	CandidateIDs []string   `json:"candidate_ids"`
}

type CastBallotRequest struct {
	CandidateID string `json:"candidate_id"`
}

// nil fields are left unchanged
type EditVoteRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	EndAt        *time.Time `json:"end_at,omitempty"`
	CandidateIDs []string   `json:"candidate_ids,omitempty"`
}

// Response types

type ListVotesResponse struct {
	Votes []VoteView `json:"votes"`
}

type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

// Engine inputs

type CreateVoteInput struct {
	Kind         string
	Title        string
	Description  string
	StartAt      *time.Time
	EndAt        *time.Time
	IsAnonymous  bool
	CandidateIDs []string
}

type VotePatch struct {
	Title        *string
	Description  *string
	EndAt        *time.Time
	CandidateIDs []string
}

// Domain types

type Member struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
}

type Candidate struct {
	ID                 string `json:"candidate_id"`
	DisplayName        string `json:"display_name"`
	AvatarRef          string `json:"avatar_ref,omitempty"`
	EligibleAtCreation bool   `json:"eligible_at_creation"`
}

type Ballot struct {
	CandidateID string    `json:"candidate_id"`
	VoterID     string    `json:"voter_id"`
	CastAt      time.Time `json:"cast_at"`
}

type Vote struct {
	ID               string      `json:"id"`
	GroupID          string      `json:"group_id"`
	CreatorID        string      `json:"creator_id"`
	Kind             string      `json:"kind"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	StartAt          time.Time   `json:"start_at"`
	EndAt            time.Time   `json:"end_at"`
	Status           string      `json:"status"`
	IsAnonymous      bool        `json:"is_anonymous"`
	Candidates       []Candidate `json:"candidates"`
	Ballots          []Ballot    `json:"-"`
	WinnerID         string      `json:"winner_id,omitempty"`
	ResolutionReason string      `json:"resolution_reason,omitempty"`
	Version          int64       `json:"version"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// IsActive reports whether the vote still accepts ballots.
func (v Vote) IsActive() bool {
	return v.Status == StatusActive
}

// HasVoted reports whether userID already has a ballot in this vote.
func (v Vote) HasVoted(userID string) bool {
	for _, b := range v.Ballots {
		if b.VoterID == userID {
			return true
		}
	}
	return false
}

// Candidate looks up a candidate by ID.
func (v Vote) Candidate(id string) (Candidate, bool) {
	for _, c := range v.Candidates {
		if c.ID == id {
			return c, true
		}
	}
	return Candidate{}, false
}

// Tally returns ballot counts in candidate order.
func (v Vote) Tally() []int {
	index := make(map[string]int, len(v.Candidates))
	for i, c := range v.Candidates {
		index[c.ID] = i
	}
	counts := make([]int, len(v.Candidates))
	for _, b := range v.Ballots {
		if i, ok := index[b.CandidateID]; ok {
			counts[i]++
		}
	}
	return counts
}

// Clone returns a copy that shares no slices with v.
func (v Vote) Clone() Vote {
	c := v
	c.Candidates = append([]Candidate(nil), v.Candidates...)
	c.Ballots = append([]Ballot(nil), v.Ballots...)
	return c
}

type Notification struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	VoteID    string    `json:"vote_id,omitempty"`
	Event     string    `json:"event"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Views

type VoterView struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Known       bool   `json:"known"`
}

type CandidateResult struct {
	Candidate
	Count  int         `json:"count"`
	Voters []VoterView `json:"voters,omitempty"`
}

type VoteView struct {
	Vote
	Results           []CandidateResult `json:"results"`
	Winner            *Candidate        `json:"winner,omitempty"`
	TotalBallots      int               `json:"total_ballots"`
	TotalMembers      int               `json:"total_members"`
	Majority          int               `json:"majority"`
	ParticipationRate float64           `json:"participation_rate"`
	HasVoted          bool              `json:"has_voted"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
