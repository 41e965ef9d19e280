// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"github.com/shopspring/decimal"

	"github.com/danielhkuo/messmate/models"
)

// NewView builds the read model for v. Voters missing from members are shown
// with a placeholder name.
func NewView(v models.Vote, members []models.Member, requesterID string) models.VoteView {
	roster := make(map[string]models.Member, len(members))
	for _, m := range members {
		roster[m.UserID] = m
	}

	results := make([]models.CandidateResult, len(v.Candidates))
	index := make(map[string]int, len(v.Candidates))
	for i, c := range v.Candidates {
		results[i] = models.CandidateResult{Candidate: c, Voters: []models.VoterView{}}
		index[c.ID] = i
	}
	for _, b := range v.Ballots {
		i, ok := index[b.CandidateID]
		if !ok {
			continue
		}
		results[i].Count++
		results[i].Voters = append(results[i].Voters, voterView(roster, b.VoterID))
	}

	view := models.VoteView{
		Vote:              v,
		Results:           results,
		TotalBallots:      len(v.Ballots),
		TotalMembers:      len(members),
		Majority:          Majority(len(members)),
		ParticipationRate: ParticipationRate(len(v.Ballots), len(members)),
		HasVoted:          v.HasVoted(requesterID),
	}
	if c, ok := v.Candidate(v.WinnerID); ok {
		view.Winner = &c
	}
	return view
}

// ParticipationRate returns ballots as a percentage of members, rounded to one decimal.
func ParticipationRate(ballots, members int) float64 {
	if members <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(ballots)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(members)), 1)
	f, _ := rate.Float64()
	return f
}

func voterView(roster map[string]models.Member, userID string) models.VoterView {
	m, ok := roster[userID]
	if !ok {
		return models.VoterView{UserID: userID, DisplayName: models.UnknownVoterName}
	}
	return models.VoterView{
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		AvatarRef:   m.AvatarRef,
		Known:       true,
	}
}
