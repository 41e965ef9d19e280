// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"strings"

	"github.com/danielhkuo/messmate/models"
)

// planArchivals decides what to do with creatorID's finished votes of kind so
// a new one can be inserted without breaking the one-vote-per-(creator, kind)
// constraint.
//
// If the creator already owns a GROUP_DECISION vote the finished vote is
// deleted, otherwise it is relabeled to GROUP_DECISION and its title marked
// as archived.
//
// TODO: drop this once votes are keyed by (creator, kind, created_at) and
// history no longer has to be rewritten.
func planArchivals(existing []models.Vote, creatorID, kind string) []Archival {
	hasGroupDecision := false
	for _, v := range existing {
		if v.CreatorID == creatorID && v.Kind == models.KindGroupDecision {
			hasGroupDecision = true
			break
		}
	}

	var plan []Archival
	for _, v := range existing {
		if v.CreatorID != creatorID || v.Kind != kind || v.IsActive() {
			continue
		}
		if hasGroupDecision {
			plan = append(plan, Archival{VoteID: v.ID, Version: v.Version, Delete: true})
			continue
		}
		plan = append(plan, Archival{
			VoteID:  v.ID,
			Version: v.Version,
			Kind:    models.KindGroupDecision,
			Title:   archivedTitle(v.Title),
		})
		// The relabeled vote now occupies the creator's GROUP_DECISION slot.
		hasGroupDecision = true
	}
	return plan
}

func archivedTitle(title string) string {
	if strings.HasSuffix(title, models.ArchivedTitleSuffix) {
		return title
	}
	return title + models.ArchivedTitleSuffix
}
