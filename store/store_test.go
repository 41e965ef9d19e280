// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/messmate/db"
	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/store"
	"github.com/danielhkuo/messmate/testutil"
	"github.com/danielhkuo/messmate/voting"
)

var created = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type backend interface {
	voting.Store
	voting.Roster
	voting.Notifier
	ListNotifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error)
}

type harness struct {
	backend
	seed   func(groupID string, members ...models.Member)
	remove func(groupID, userID string)
}

// eachBackend runs fn against the SQLite-backed and in-memory stores.
func eachBackend(t *testing.T, fn func(t *testing.T, h harness)) {
	t.Run("sqlite", func(t *testing.T) {
		st := store.NewSQL(testutil.SetupTestDB(t), db.TypeSQLite)
		fn(t, harness{
			backend: st,
			seed: func(groupID string, members ...models.Member) {
				testutil.SeedGroup(t, st, groupID, members...)
			},
			remove: func(groupID, userID string) {
				require.NoError(t, st.RemoveMember(context.Background(), groupID, userID))
			},
		})
	})
	t.Run("memory", func(t *testing.T) {
		st := store.NewMemory()
		fn(t, harness{
			backend: st,
			seed: func(groupID string, members ...models.Member) {
				testutil.SeedMemoryGroup(st, groupID, members...)
			},
			remove: st.RemoveMember,
		})
	})
}

func seedHousehold(h harness) {
	h.seed("g1",
		testutil.NewMember("alice", models.RoleAdmin),
		testutil.NewMember("bob", models.RoleMember),
		testutil.NewMember("carol", models.RoleMember),
	)
}

func newVote(id, creator, kind string, candidates ...string) models.Vote {
	v := models.Vote{
		ID:        id,
		GroupID:   "g1",
		CreatorID: creator,
		Kind:      kind,
		Title:     "Vote " + id,
		StartAt:   created,
		EndAt:     created.Add(24 * time.Hour),
		Status:    models.StatusActive,
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, c := range candidates {
		m := testutil.NewMember(c, models.RoleMember)
		v.Candidates = append(v.Candidates, models.Candidate{
			ID:                 c,
			DisplayName:        m.DisplayName,
			AvatarRef:          m.AvatarRef,
			EligibleAtCreation: true,
		})
	}
	return v
}

func TestRoster(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)

		members, err := h.Members(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, members, 3)

		count, err := h.MemberCount(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		h.remove("g1", "carol")
		count, err = h.MemberCount(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		_, err = h.Members(ctx, "missing")
		assert.ErrorIs(t, err, voting.ErrNotFound)
		_, err = h.MemberCount(ctx, "missing")
		assert.ErrorIs(t, err, voting.ErrNotFound)
	})
}

func TestCreateAndLoadVote(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)

		v := newVote("v1", "alice", models.KindMealChoice, "carol", "bob")
		v.Description = "Friday"
		v.IsAnonymous = true
		require.NoError(t, h.CreateVote(ctx, v, nil))

		got, err := h.GetVote(ctx, "g1", "v1")
		require.NoError(t, err)
		assert.Equal(t, "Vote v1", got.Title)
		assert.Equal(t, "Friday", got.Description)
		assert.True(t, got.IsAnonymous)
		assert.Equal(t, int64(1), got.Version)
		assert.True(t, got.EndAt.Equal(v.EndAt))
		require.Len(t, got.Candidates, 2)
		assert.Equal(t, "carol", got.Candidates[0].ID)
		assert.Equal(t, "bob", got.Candidates[1].ID)
		assert.Equal(t, "avatars/bob.png", got.Candidates[1].AvatarRef)
		assert.True(t, got.Candidates[0].EligibleAtCreation)
		assert.Empty(t, got.Ballots)

		_, err = h.GetVote(ctx, "other-group", "v1")
		assert.ErrorIs(t, err, voting.ErrNotFound)
		_, err = h.GetVote(ctx, "g1", "nope")
		assert.ErrorIs(t, err, voting.ErrNotFound)

		listed, err := h.ListVotes(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, "v1", listed[0].ID)

		active, err := h.ListActiveVotes(ctx)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})
}

func TestUniqueness(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)
		h.seed("g2", testutil.NewMember("dave", models.RoleAdmin), testutil.NewMember("erin", models.RoleMember))

		require.NoError(t, h.CreateVote(ctx, newVote("v1", "alice", models.KindMealChoice, "bob"), nil))

		// One active vote per kind in a group, whoever creates it.
		err := h.CreateVote(ctx, newVote("v2", "bob", models.KindMealChoice, "carol"), nil)
		assert.ErrorIs(t, err, voting.ErrDuplicateVote)

		// Other groups and kinds are independent.
		other := newVote("v3", "dave", models.KindMealChoice, "erin")
		other.GroupID = "g2"
		require.NoError(t, h.CreateVote(ctx, other, nil))
		require.NoError(t, h.CreateVote(ctx, newVote("v4", "alice", models.KindAccountant, "bob"), nil))

		// A creator holds at most one vote per kind, even once it is finished.
		closed := newVote("v1", "alice", models.KindMealChoice, "bob")
		closed.Status = models.StatusResolved
		closed.WinnerID = "bob"
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: closed}))

		err = h.CreateVote(ctx, newVote("v5", "alice", models.KindMealChoice, "carol"), nil)
		assert.ErrorIs(t, err, voting.ErrDuplicateVote)

		require.NoError(t, h.CreateVote(ctx, newVote("v6", "bob", models.KindMealChoice, "carol"), nil))

		_, err = h.GetVote(ctx, "g1", "v5")
		assert.ErrorIs(t, err, voting.ErrNotFound)
	})
}

func TestUpdateVoteCompareAndSwap(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)
		v := newVote("v1", "alice", models.KindRoomLeader, "bob", "carol")
		require.NoError(t, h.CreateVote(ctx, v, nil))

		ballot := models.Ballot{CandidateID: "bob", VoterID: "carol", CastAt: created.Add(time.Minute)}
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: v, Ballot: &ballot}))

		got, err := h.GetVote(ctx, "g1", "v1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		require.Len(t, got.Ballots, 1)
		assert.Equal(t, "carol", got.Ballots[0].VoterID)
		assert.True(t, got.Ballots[0].CastAt.Equal(ballot.CastAt))

		// Stale version.
		again := models.Ballot{CandidateID: "carol", VoterID: "bob", CastAt: created}
		err = h.UpdateVote(ctx, voting.VoteUpdate{Vote: v, Ballot: &again})
		assert.ErrorIs(t, err, voting.ErrVersionConflict)

		// Same voter twice at the current version leaves nothing behind.
		err = h.UpdateVote(ctx, voting.VoteUpdate{Vote: got, Ballot: &ballot})
		assert.ErrorIs(t, err, voting.ErrAlreadyVoted)

		got, err = h.GetVote(ctx, "g1", "v1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Len(t, got.Ballots, 1)

		missing := newVote("ghost", "alice", models.KindRoomLeader)
		err = h.UpdateVote(ctx, voting.VoteUpdate{Vote: missing})
		assert.ErrorIs(t, err, voting.ErrNotFound)
	})
}

func TestUpdateVoteFields(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)
		v := newVote("v1", "alice", models.KindRoomLeader, "bob")
		require.NoError(t, h.CreateVote(ctx, v, nil))

		next := v.Clone()
		next.Title = "Renamed"
		next.Status = models.StatusExpired
		next.WinnerID = "bob"
		next.ResolutionReason = models.ReasonTimeExpired
		next.Candidates = newVote("", "", "", "carol", "bob").Candidates
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: next, ReplaceCandidates: true}))

		got, err := h.GetVote(ctx, "g1", "v1")
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title)
		assert.Equal(t, models.StatusExpired, got.Status)
		assert.Equal(t, "bob", got.WinnerID)
		assert.Equal(t, models.ReasonTimeExpired, got.ResolutionReason)
		require.Len(t, got.Candidates, 2)
		assert.Equal(t, "carol", got.Candidates[0].ID)

		active, err := h.ListActiveVotes(ctx)
		require.NoError(t, err)
		assert.Empty(t, active)
	})
}

func TestArchivals(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)

		finished := newVote("v1", "alice", models.KindManagerElection, "bob")
		require.NoError(t, h.CreateVote(ctx, finished, nil))
		ballot := models.Ballot{CandidateID: "bob", VoterID: "bob", CastAt: created}
		finished.Status = models.StatusResolved
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: finished, Ballot: &ballot}))

		relabel := voting.Archival{
			VoteID: "v1", Version: 2,
			Kind: models.KindGroupDecision, Title: "Vote v1 (Archived)",
		}
		require.NoError(t, h.CreateVote(ctx, newVote("v2", "alice", models.KindManagerElection, "bob"), []voting.Archival{relabel}))

		archived, err := h.GetVote(ctx, "g1", "v1")
		require.NoError(t, err)
		assert.Equal(t, models.KindGroupDecision, archived.Kind)
		assert.Equal(t, models.StatusArchived, archived.Status)
		assert.Equal(t, "Vote v1 (Archived)", archived.Title)
		assert.Equal(t, int64(3), archived.Version)
		assert.Len(t, archived.Ballots, 1)

		// A stale archival aborts the whole create.
		v2 := newVote("v2", "alice", models.KindManagerElection, "bob")
		v2.Status = models.StatusResolved
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: v2}))

		stale := voting.Archival{VoteID: "v2", Version: 1, Delete: true}
		err = h.CreateVote(ctx, newVote("v3", "alice", models.KindManagerElection, "bob"), []voting.Archival{stale})
		assert.ErrorIs(t, err, voting.ErrVersionConflict)
		_, err = h.GetVote(ctx, "g1", "v3")
		assert.ErrorIs(t, err, voting.ErrNotFound)

		current := voting.Archival{VoteID: "v2", Version: 2, Delete: true}
		require.NoError(t, h.CreateVote(ctx, newVote("v3", "alice", models.KindManagerElection, "bob"), []voting.Archival{current}))

		_, err = h.GetVote(ctx, "g1", "v2")
		assert.ErrorIs(t, err, voting.ErrNotFound)

		listed, err := h.ListVotes(ctx, "g1")
		require.NoError(t, err)
		require.Len(t, listed, 2)
	})
}

func TestDeleteVote(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)
		v := newVote("v1", "alice", models.KindMealChoice, "bob")
		require.NoError(t, h.CreateVote(ctx, v, nil))
		ballot := models.Ballot{CandidateID: "bob", VoterID: "carol", CastAt: created}
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: v, Ballot: &ballot}))

		assert.ErrorIs(t, h.DeleteVote(ctx, "other-group", "v1"), voting.ErrNotFound)
		require.NoError(t, h.DeleteVote(ctx, "g1", "v1"))
		assert.ErrorIs(t, h.DeleteVote(ctx, "g1", "v1"), voting.ErrNotFound)

		_, err := h.GetVote(ctx, "g1", "v1")
		assert.ErrorIs(t, err, voting.ErrNotFound)

		// The id and its ballot slots are free again.
		require.NoError(t, h.CreateVote(ctx, v, nil))
		require.NoError(t, h.UpdateVote(ctx, voting.VoteUpdate{Vote: v, Ballot: &ballot}))
	})
}

func TestNotificationLog(t *testing.T) {
	eachBackend(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		seedHousehold(h)
		h.seed("g2", testutil.NewMember("dave", models.RoleAdmin))

		for i, event := range []string{models.EventVoteOpened, models.EventVoteResolved, models.EventVoteOpened} {
			require.NoError(t, h.Notify(ctx, models.Notification{
				ID:        "n" + string(rune('1'+i)),
				GroupID:   "g1",
				VoteID:    "v1",
				Event:     event,
				Message:   "message",
				CreatedAt: created.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, h.Notify(ctx, models.Notification{
			ID: "other", GroupID: "g2", Event: models.EventVoteOpened, Message: "x", CreatedAt: created,
		}))

		got, err := h.ListNotifications(ctx, "g1", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "n3", got[0].ID)
		assert.Equal(t, "n2", got[1].ID)
		assert.Equal(t, models.EventVoteResolved, got[1].Event)

		got, err = h.ListNotifications(ctx, "g2", 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].VoteID)

		got, err = h.ListNotifications(ctx, "empty", 10)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

// The engine runs unchanged on the SQL store, including concurrent casts
// serialized by version checks.
func TestEngineOnSQLite(t *testing.T) {
	st := store.NewSQL(testutil.SetupTestDB(t), db.TypeSQLite)
	voters := []string{"bob", "carol", "dave", "erin"}
	members := []models.Member{testutil.NewMember("alice", models.RoleAdmin)}
	for _, id := range voters {
		members = append(members, testutil.NewMember(id, models.RoleMember))
	}
	testutil.SeedGroup(t, st, "g1", members...)

	engine := &voting.Engine{Store: st, Roster: st, Notifier: st, MaxCastRetries: 10}
	ctx := context.Background()

	v, err := engine.CreateVote(ctx, "g1", "alice", models.CreateVoteInput{
		Kind:         models.KindManagerElection,
		Title:        "Manager",
		CandidateIDs: []string{"bob", "carol"},
	})
	require.NoError(t, err)

	errs := make(chan error, len(voters))
	for _, voter := range voters[:3] {
		go func() {
			_, err := engine.CastBallot(ctx, "g1", v.ID, voter, "carol")
			errs <- err
		}()
	}
	for range 3 {
		require.NoError(t, <-errs)
	}

	got, err := st.GetVote(ctx, "g1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.Equal(t, "carol", got.WinnerID)
	assert.Len(t, got.Ballots, 3)

	_, err = engine.CastBallot(ctx, "g1", v.ID, "erin", "bob")
	assert.ErrorIs(t, err, voting.ErrInvalidState)

	log, err := st.ListNotifications(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, models.EventVoteOpened, log[1].Event)
	assert.Equal(t, models.EventVoteResolved, log[0].Event)
}
