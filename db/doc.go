// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

	conn, err := db.Open(ctx, db.TypePostgres, url)
	err = db.CreateSchema(conn, db.TypePostgres)

SQLite (modernc.org/sqlite, no cgo) and PostgreSQL (lib/pq) are supported.
SQLite connections are limited to one, which also keeps ":memory:"
databases shared.

# Tables

  - household_group, group_member: rosters
  - vote: one row per vote with a version column for compare-and-swap
  - vote_candidate: candidate snapshot taken when the vote opened
  - ballot: one row per ballot, unique per (vote_id, voter_id)
  - notification: group announcement log

A partial unique index allows one ACTIVE vote per (group_id, kind), and
each creator holds at most one vote per kind.

CreateSchema is safe to call on every start.
*/
package db
