// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the messmate API.

Handlers translate HTTP to calls on a voting.Engine and map its error kinds
to status codes:

	Validation    400
	Forbidden     403
	NotFound      404
	Conflict      409
	InvalidState  409 (error "Invalid state")

Anything else is logged and reported as 500 without details.

# Votes

	GET    /groups/{groupID}/votes           ListVotes
	POST   /groups/{groupID}/votes           CreateVote
	PATCH  /groups/{groupID}/votes/{voteID}  CastBallot
	PUT    /groups/{groupID}/votes/{voteID}  EditVote
	DELETE /groups/{groupID}/votes/{voteID}  DeleteVote

Voter names are removed from anonymous votes before they are returned.

# Notifications

	GET /groups/{groupID}/notifications?limit=N  ListNotifications
	GET /groups/{groupID}/stream                 Stream (Server-Sent Events)

All endpoints expect the caller's identity in the request context, set by
middleware.RequireUser.
*/
package handlers
