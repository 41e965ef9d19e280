// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the messmate API.

	mux := router.NewRouter(engine, store, broker, cfg)

# Endpoints

Public:

	GET /health
	GET /

Group votes (signed identity headers required):

	GET    /groups/{groupID}/votes           - List votes, closing overdue ones
	POST   /groups/{groupID}/votes           - Open a vote (admins and managers)
	PATCH  /groups/{groupID}/votes/{voteID}  - Cast a ballot
	PUT    /groups/{groupID}/votes/{voteID}  - Edit an active vote (admins and managers)
	DELETE /groups/{groupID}/votes/{voteID}  - Delete a vote (admins and managers)

Notifications (signed identity headers required):

	GET /groups/{groupID}/notifications - Recent announcements
	GET /groups/{groupID}/stream        - Live announcements as Server-Sent Events

Authenticated routes are wrapped with middleware.WithLogging and
middleware.RequireUser.
*/
package router
