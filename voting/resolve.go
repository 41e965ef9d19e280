// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"time"

	"github.com/danielhkuo/messmate/models"
)

// Outcome is the result of evaluating an active vote.
type Outcome struct {
	Status   string
	WinnerID string
	Reason   string
}

// Changed reports whether the outcome moves the vote out of ACTIVE.
func (o Outcome) Changed() bool {
	return o.Status != models.StatusActive
}

// Majority returns the ballot count one candidate needs to win outright.
func Majority(totalMembers int) int {
	return totalMembers/2 + 1
}

// Leader returns the candidate with the most ballots. Ties go to the
// candidate listed first. ok is false when no ballots were cast.
func Leader(v models.Vote) (candidateID string, ok bool) {
	best := 0
	for i, n := range v.Tally() {
		if n > best {
			best = n
			candidateID = v.Candidates[i].ID
		}
	}
	return candidateID, best > 0
}

// Evaluate applies the resolution rules to an active vote, in order:
// majority reached, every member voted, window elapsed. totalMembers is the
// group's current size. Inactive votes are returned unchanged.
func Evaluate(v models.Vote, totalMembers int, now time.Time) Outcome {
	if !v.IsActive() {
		return Outcome{Status: v.Status, WinnerID: v.WinnerID, Reason: v.ResolutionReason}
	}

	majority := Majority(totalMembers)
	for i, n := range v.Tally() {
		if n >= majority {
			return Outcome{
				Status:   models.StatusResolved,
				WinnerID: v.Candidates[i].ID,
				Reason:   models.ReasonMajorityReached,
			}
		}
	}

	if len(v.Ballots) > 0 && len(v.Ballots) >= totalMembers {
		winner, _ := Leader(v)
		return Outcome{
			Status:   models.StatusResolved,
			WinnerID: winner,
			Reason:   models.ReasonAllMembersVoted,
		}
	}

	if now.After(v.EndAt) {
		winner, _ := Leader(v)
		return Outcome{
			Status:   models.StatusExpired,
			WinnerID: winner,
			Reason:   models.ReasonTimeExpired,
		}
	}

	return Outcome{Status: models.StatusActive}
}

// apply records o on v. Resolved votes close at now; expired votes keep their window.
func apply(v *models.Vote, o Outcome, now time.Time) {
	v.Status = o.Status
	v.WinnerID = o.WinnerID
	v.ResolutionReason = o.Reason
	if o.Status == models.StatusResolved {
		v.EndAt = now
	}
	v.UpdatedAt = now
}
