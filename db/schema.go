// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(db *sql.DB, dbType string) error {
	stmts, err := schemaFor(dbType)
	if err != nil {
		return err
	}

	// SQLite drivers execute one statement per Exec.
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

func schemaFor(dbType string) ([]string, error) {
	var timestamp string
	switch dbType {
	case TypePostgres:
		timestamp = "TIMESTAMPTZ"
	case TypeSQLite:
		timestamp = "TIMESTAMP"
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	var stmts []string
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		stmts = append(stmts, strings.ReplaceAll(stmt, "{{timestamp}}", timestamp))
	}
	return stmts, nil
}

const schema = `
-- Groups
CREATE TABLE IF NOT EXISTS household_group (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at {{timestamp}} NOT NULL
);

-- Members
CREATE TABLE IF NOT EXISTS group_member (
    group_id TEXT NOT NULL REFERENCES household_group(id) ON DELETE CASCADE,
    user_id TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('MEMBER', 'ADMIN', 'MANAGER', 'SUPER_ADMIN')),
    display_name TEXT NOT NULL,
    avatar_ref TEXT NOT NULL DEFAULT '',
    joined_at {{timestamp}} NOT NULL,
    PRIMARY KEY (group_id, user_id)
);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES household_group(id) ON DELETE CASCADE,
    creator_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    start_at {{timestamp}} NOT NULL,
    end_at {{timestamp}} NOT NULL,
    status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'RESOLVED', 'EXPIRED', 'ARCHIVED')),
    is_anonymous BOOLEAN NOT NULL DEFAULT FALSE,
    winner_id TEXT NOT NULL DEFAULT '',
    resolution_reason TEXT NOT NULL DEFAULT '',
    version BIGINT NOT NULL DEFAULT 1,
    created_at {{timestamp}} NOT NULL,
    updated_at {{timestamp}} NOT NULL,
    UNIQUE (group_id, creator_id, kind)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vote_one_active_kind ON vote(group_id, kind) WHERE status = 'ACTIVE';
CREATE INDEX IF NOT EXISTS idx_vote_group_id ON vote(group_id);
CREATE INDEX IF NOT EXISTS idx_vote_status ON vote(status);

-- Candidates
CREATE TABLE IF NOT EXISTS vote_candidate (
    vote_id TEXT NOT NULL REFERENCES vote(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    display_name TEXT NOT NULL,
    avatar_ref TEXT NOT NULL DEFAULT '',
    eligible_at_creation BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (vote_id, candidate_id)
);

-- Ballots
CREATE TABLE IF NOT EXISTS ballot (
    vote_id TEXT NOT NULL REFERENCES vote(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    cast_at {{timestamp}} NOT NULL,
    UNIQUE (vote_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_ballot_vote_id ON ballot(vote_id);

-- Notifications
CREATE TABLE IF NOT EXISTS notification (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL REFERENCES household_group(id) ON DELETE CASCADE,
    vote_id TEXT NOT NULL DEFAULT '',
    event TEXT NOT NULL,
    message TEXT NOT NULL,
    created_at {{timestamp}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notification_group_created ON notification(group_id, created_at)
`
