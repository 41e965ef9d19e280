// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/danielhkuo/messmate/models"
)

// KindLabel turns a vote kind into display text, e.g. "Manager Election".
// A cases.Caser keeps state between calls, so each call builds its own.
func KindLabel(kind string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(kind), "_", " "))
}

func openedMessage(v models.Vote, now time.Time) string {
	return fmt.Sprintf("%s %q is open for voting and closes %s.",
		KindLabel(v.Kind), v.Title, humanize.RelTime(v.EndAt, now, "ago", "from now"))
}

func resolvedMessage(v models.Vote) string {
	winner := winnerName(v)
	switch v.ResolutionReason {
	case models.ReasonMajorityReached:
		return fmt.Sprintf("%s %q is decided: %s won by majority.", KindLabel(v.Kind), v.Title, winner)
	case models.ReasonAllMembersVoted:
		return fmt.Sprintf("%s %q is decided: everyone voted and %s came out ahead.", KindLabel(v.Kind), v.Title, winner)
	}
	return fmt.Sprintf("%s %q is decided: %s won.", KindLabel(v.Kind), v.Title, winner)
}

func expiredMessage(v models.Vote) string {
	if v.WinnerID == "" {
		return fmt.Sprintf("%s %q expired without any ballots.", KindLabel(v.Kind), v.Title)
	}
	return fmt.Sprintf("%s %q expired; %s had the most votes.", KindLabel(v.Kind), v.Title, winnerName(v))
}

func winnerName(v models.Vote) string {
	if c, ok := v.Candidate(v.WinnerID); ok && c.DisplayName != "" {
		return c.DisplayName
	}
	return "nobody"
}
