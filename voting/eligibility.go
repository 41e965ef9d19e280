// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import "github.com/danielhkuo/messmate/models"

// EligibleCandidates intersects the requested IDs with the members who may
// stand as candidates right now. The result keeps the requested order and
// drops duplicates, unknown users and elevated members.
func EligibleCandidates(members []models.Member, requested []string) []models.Candidate {
	eligible := make(map[string]models.Member, len(members))
	for _, m := range members {
		if !models.IsElevated(m.Role) {
			eligible[m.UserID] = m
		}
	}

	seen := make(map[string]bool, len(requested))
	candidates := make([]models.Candidate, 0, len(requested))
	for _, id := range requested {
		m, ok := eligible[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		candidates = append(candidates, models.Candidate{
			ID:                 m.UserID,
			DisplayName:        m.DisplayName,
			AvatarRef:          m.AvatarRef,
			EligibleAtCreation: true,
		})
	}
	return candidates
}

func findMember(members []models.Member, userID string) (models.Member, bool) {
	for _, m := range members {
		if m.UserID == userID {
			return m, true
		}
	}
	return models.Member{}, false
}
