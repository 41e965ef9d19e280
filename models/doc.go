// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines domain, request, and response types for the API.

# Domain Types

  - Member: a user's role and display details within a group
  - Vote: one vote with its candidates, ballots and lifecycle state
  - Candidate: a member snapshotted onto a vote when it opened
  - Ballot: one voter's choice
  - Notification: a group announcement about a vote

Votes move from ACTIVE to RESOLVED, EXPIRED or ARCHIVED and never back.

# Request Types

  - CreateVoteRequest: kind, title, window, candidate_ids
  - CastBallotRequest: candidate_id
  - EditVoteRequest: optional title, description, end_at, candidate_ids

# Response Types

  - VoteView: a vote with per-candidate results, winner and participation
  - ListVotesResponse, ListNotificationsResponse
  - ErrorResponse: error, message
*/
package models
