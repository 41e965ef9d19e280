// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/danielhkuo/messmate/db"
	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/voting"
)

// SQL stores votes, rosters and notifications in Postgres or SQLite.
type SQL struct {
	db     *sql.DB
	dbType string
}

func NewSQL(conn *sql.DB, dbType string) *SQL {
	return &SQL{db: conn, dbType: dbType}
}

// q rewrites ? placeholders for drivers that want $n.
func (s *SQL) q(query string) string {
	if s.dbType != db.TypePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Roster

func (s *SQL) PutGroup(ctx context.Context, groupID, name string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO household_group (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name
	`), groupID, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

func (s *SQL) PutMember(ctx context.Context, groupID string, m models.Member) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO group_member (group_id, user_id, role, display_name, avatar_ref, joined_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (group_id, user_id) DO UPDATE SET
			role = excluded.role,
			display_name = excluded.display_name,
			avatar_ref = excluded.avatar_ref
	`), groupID, m.UserID, m.Role, m.DisplayName, m.AvatarRef, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save member: %w", err)
	}
	return nil
}

func (s *SQL) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM group_member WHERE group_id = ? AND user_id = ?
	`), groupID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

func (s *SQL) Members(ctx context.Context, groupID string) ([]models.Member, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT user_id, role, display_name, avatar_ref
		FROM group_member
		WHERE group_id = ?
		ORDER BY joined_at, user_id
	`), groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Role, &m.DisplayName, &m.AvatarRef); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQL) MemberCount(ctx context.Context, groupID string) (int, error) {
	if err := s.requireGroup(ctx, groupID); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM group_member WHERE group_id = ?
	`), groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

func (s *SQL) requireGroup(ctx context.Context, groupID string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT EXISTS(SELECT 1 FROM household_group WHERE id = ?)
	`), groupID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to query group: %w", err)
	}
	if !exists {
		return fmt.Errorf("group %s: %w", groupID, voting.ErrNotFound)
	}
	return nil
}

// Votes

func (s *SQL) ListVotes(ctx context.Context, groupID string) ([]models.Vote, error) {
	return s.loadVotes(ctx, "v.group_id = ?", groupID)
}

func (s *SQL) ListActiveVotes(ctx context.Context) ([]models.Vote, error) {
	return s.loadVotes(ctx, "v.status = ?", models.StatusActive)
}

func (s *SQL) GetVote(ctx context.Context, groupID, voteID string) (models.Vote, error) {
	votes, err := s.loadVotes(ctx, "v.group_id = ? AND v.id = ?", groupID, voteID)
	if err != nil {
		return models.Vote{}, err
	}
	if len(votes) == 0 {
		return models.Vote{}, fmt.Errorf("vote %s: %w", voteID, voting.ErrNotFound)
	}
	return votes[0], nil
}

// loadVotes reads matching votes with their candidates and ballots from one snapshot.
func (s *SQL) loadVotes(ctx context.Context, where string, args ...any) ([]models.Vote, error) {
	var opts *sql.TxOptions
	if s.dbType == db.TypePostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, s.q(`
		SELECT v.id, v.group_id, v.creator_id, v.kind, v.title, v.description,
			v.start_at, v.end_at, v.status, v.is_anonymous, v.winner_id,
			v.resolution_reason, v.version, v.created_at, v.updated_at
		FROM vote v
		WHERE `+where+`
		ORDER BY v.created_at, v.id
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query votes: %w", err)
	}

	var votes []models.Vote
	index := make(map[string]int)
	for rows.Next() {
		var v models.Vote
		err := rows.Scan(&v.ID, &v.GroupID, &v.CreatorID, &v.Kind, &v.Title, &v.Description,
			&v.StartAt, &v.EndAt, &v.Status, &v.IsAnonymous, &v.WinnerID,
			&v.ResolutionReason, &v.Version, &v.CreatedAt, &v.UpdatedAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		v.StartAt, v.EndAt = v.StartAt.UTC(), v.EndAt.UTC()
		v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
		index[v.ID] = len(votes)
		votes = append(votes, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read votes: %w", err)
	}
	if len(votes) == 0 {
		return nil, nil
	}

	rows, err = tx.QueryContext(ctx, s.q(`
		SELECT c.vote_id, c.candidate_id, c.display_name, c.avatar_ref, c.eligible_at_creation
		FROM vote_candidate c
		JOIN vote v ON v.id = c.vote_id
		WHERE `+where+`
		ORDER BY c.vote_id, c.position
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	for rows.Next() {
		var voteID string
		var c models.Candidate
		if err := rows.Scan(&voteID, &c.ID, &c.DisplayName, &c.AvatarRef, &c.EligibleAtCreation); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		if i, ok := index[voteID]; ok {
			votes[i].Candidates = append(votes[i].Candidates, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	rows, err = tx.QueryContext(ctx, s.q(`
		SELECT b.vote_id, b.candidate_id, b.voter_id, b.cast_at
		FROM ballot b
		JOIN vote v ON v.id = b.vote_id
		WHERE `+where+`
		ORDER BY b.cast_at, b.voter_id
	`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var voteID string
		var b models.Ballot
		if err := rows.Scan(&voteID, &b.CandidateID, &b.VoterID, &b.CastAt); err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		b.CastAt = b.CastAt.UTC()
		if i, ok := index[voteID]; ok {
			votes[i].Ballots = append(votes[i].Ballots, b)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ballots: %w", err)
	}

	return votes, nil
}

func (s *SQL) CreateVote(ctx context.Context, vote models.Vote, archivals []voting.Archival) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, a := range archivals {
		if err := s.archive(ctx, tx, vote.GroupID, a, vote.CreatedAt); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, s.q(`
		INSERT INTO vote (id, group_id, creator_id, kind, title, description, start_at, end_at,
			status, is_anonymous, winner_id, resolution_reason, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), vote.ID, vote.GroupID, vote.CreatorID, vote.Kind, vote.Title, vote.Description,
		vote.StartAt, vote.EndAt, vote.Status, vote.IsAnonymous, vote.WinnerID,
		vote.ResolutionReason, vote.Version, vote.CreatedAt, vote.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("vote %s: %w", vote.ID, voting.ErrDuplicateVote)
	}
	if err != nil {
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := s.insertCandidates(ctx, tx, vote.ID, vote.Candidates); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote: %w", err)
	}
	return nil
}

func (s *SQL) archive(ctx context.Context, tx *sql.Tx, groupID string, a voting.Archival, now time.Time) error {
	if a.Delete {
		if err := s.deleteChildren(ctx, tx, a.VoteID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.q(`
			DELETE FROM vote WHERE id = ? AND group_id = ? AND version = ?
		`), a.VoteID, groupID, a.Version)
		if err != nil {
			return fmt.Errorf("failed to delete archived vote: %w", err)
		}
		return expectOneRow(res, a.VoteID)
	}

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE vote
		SET kind = ?, title = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND group_id = ? AND version = ?
	`), a.Kind, a.Title, models.StatusArchived, now, a.VoteID, groupID, a.Version)
	if isUniqueViolation(err) {
		return fmt.Errorf("vote %s: %w", a.VoteID, voting.ErrDuplicateVote)
	}
	if err != nil {
		return fmt.Errorf("failed to archive vote: %w", err)
	}
	return expectOneRow(res, a.VoteID)
}

func (s *SQL) UpdateVote(ctx context.Context, u voting.VoteUpdate) error {
	v := u.Vote

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`
		UPDATE vote
		SET title = ?, description = ?, end_at = ?, status = ?, winner_id = ?,
			resolution_reason = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND group_id = ? AND version = ?
	`), v.Title, v.Description, v.EndAt, v.Status, v.WinnerID,
		v.ResolutionReason, v.UpdatedAt, v.ID, v.GroupID, v.Version)
	if err != nil {
		return fmt.Errorf("failed to update vote: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := tx.QueryRowContext(ctx, s.q(`
			SELECT EXISTS(SELECT 1 FROM vote WHERE id = ? AND group_id = ?)
		`), v.ID, v.GroupID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to query vote: %w", err)
		}
		if !exists {
			return fmt.Errorf("vote %s: %w", v.ID, voting.ErrNotFound)
		}
		return fmt.Errorf("vote %s at version %d: %w", v.ID, v.Version, voting.ErrVersionConflict)
	}

	if u.Ballot != nil {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO ballot (vote_id, candidate_id, voter_id, cast_at)
			VALUES (?, ?, ?, ?)
		`), v.ID, u.Ballot.CandidateID, u.Ballot.VoterID, u.Ballot.CastAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("voter %s: %w", u.Ballot.VoterID, voting.ErrAlreadyVoted)
		}
		if err != nil {
			return fmt.Errorf("failed to insert ballot: %w", err)
		}
	}

	if u.ReplaceCandidates {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM vote_candidate WHERE vote_id = ?`), v.ID); err != nil {
			return fmt.Errorf("failed to clear candidates: %w", err)
		}
		if err := s.insertCandidates(ctx, tx, v.ID, v.Candidates); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote update: %w", err)
	}
	return nil
}

func (s *SQL) DeleteVote(ctx context.Context, groupID, voteID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx, s.q(`
		SELECT EXISTS(SELECT 1 FROM vote WHERE id = ? AND group_id = ?)
	`), voteID, groupID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to query vote: %w", err)
	}
	if !exists {
		return fmt.Errorf("vote %s: %w", voteID, voting.ErrNotFound)
	}

	if err := s.deleteChildren(ctx, tx, voteID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM vote WHERE id = ?`), voteID); err != nil {
		return fmt.Errorf("failed to delete vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote deletion: %w", err)
	}
	return nil
}

func (s *SQL) insertCandidates(ctx context.Context, tx *sql.Tx, voteID string, candidates []models.Candidate) error {
	for i, c := range candidates {
		_, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO vote_candidate (vote_id, candidate_id, position, display_name, avatar_ref, eligible_at_creation)
			VALUES (?, ?, ?, ?, ?, ?)
		`), voteID, c.ID, i, c.DisplayName, c.AvatarRef, c.EligibleAtCreation)
		if err != nil {
			return fmt.Errorf("failed to insert candidate: %w", err)
		}
	}
	return nil
}

func (s *SQL) deleteChildren(ctx context.Context, tx *sql.Tx, voteID string) error {
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM ballot WHERE vote_id = ?`), voteID); err != nil {
		return fmt.Errorf("failed to delete ballots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM vote_candidate WHERE vote_id = ?`), voteID); err != nil {
		return fmt.Errorf("failed to delete candidates: %w", err)
	}
	return nil
}

// Notifications

// Notify appends n to the group's notification log.
func (s *SQL) Notify(ctx context.Context, n models.Notification) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO notification (id, group_id, vote_id, event, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), n.ID, n.GroupID, n.VoteID, n.Event, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

// ListNotifications returns the group's most recent notifications, newest first.
func (s *SQL) ListNotifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, group_id, vote_id, event, message, created_at
		FROM notification
		WHERE group_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`), groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.GroupID, &n.VoteID, &n.Event, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func expectOneRow(res sql.Result, voteID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("vote %s: %w", voteID, voting.ErrVersionConflict)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Connections without extended result codes report the primary code only.
			return strings.Contains(liteErr.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}

var (
	_ voting.Store    = (*SQL)(nil)
	_ voting.Roster   = (*SQL)(nil)
	_ voting.Notifier = (*SQL)(nil)
)
