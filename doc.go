// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the messmate API server.

messmate runs group votes for shared households: electing a manager,
picking a meal, choosing an accountant. A vote closes as soon as one
candidate holds a majority, when every member has voted, or when its
window runs out.

# Starting the Server

Configuration comes from CLI flags, environment variables or a .env file:

	IDENTITY_SALT=... DATABASE_URL=messmate.db go run .

Or with Postgres:

	go run . -t postgres -d "postgres://..." -identity-salt ...

# Configuration

Required settings:

  - DATABASE_URL (-d): SQLite file or PostgreSQL connection string
  - IDENTITY_SALT (-identity-salt): Secret shared with the auth gateway

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite or postgres (default: sqlite)
  - VOTE_WINDOW (-vote-window): Default voting window (default: 24h)
  - SWEEP_INTERVAL (-sweep-interval): Background expiry sweep, 0 disables (default: 1m)
  - MAX_CAST_RETRIES (-max-cast-retries): Ballot retries after a version conflict (default: 5)
  - LOG_LEVEL (-log-level): debug, info, warn or error (default: info)

# Architecture

  - voting: Vote lifecycle engine and resolution rules
  - store: SQL and in-memory persistence
  - notify: Live notification broker (Server-Sent Events)
  - handlers: HTTP request handlers
  - router: Route definitions using Go 1.22+ routing
  - middleware: Identity, CORS, logging, JSON helpers
  - models: Domain, request and response types
  - auth: Gateway identity signatures
  - db: Connection setup and schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
