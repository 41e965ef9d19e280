// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielhkuo/messmate/auth"
	"github.com/danielhkuo/messmate/cliparse"
	"github.com/danielhkuo/messmate/db"
	"github.com/danielhkuo/messmate/middleware"
	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/store"
)

// TestDBURL is an in-memory SQLite database, private to each connection pool
const TestDBURL = ":memory:"

// SetupTestDB creates a fresh in-memory database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.TypeSQLite, TestDBURL)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn, db.TypeSQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3318,
		DatabaseURL:    TestDBURL,
		DatabaseType:   db.TypeSQLite,
		IdentitySalt:   "test-identity-salt",
		VoteWindow:     24 * time.Hour,
		MaxCastRetries: 5,
		LogLevel:       "debug",
	}
}

// NewMember builds a roster entry with a display name derived from userID
func NewMember(userID, role string) models.Member {
	return models.Member{
		UserID:      userID,
		Role:        role,
		DisplayName: strings.ToUpper(userID[:1]) + userID[1:],
		AvatarRef:   "avatars/" + userID + ".png",
	}
}

// SeedGroup creates a group with the given members in the SQL store
func SeedGroup(t *testing.T, st *store.SQL, groupID string, members ...models.Member) {
	t.Helper()

	ctx := context.Background()
	if err := st.PutGroup(ctx, groupID, "Group "+groupID); err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}
	for _, m := range members {
		if err := st.PutMember(ctx, groupID, m); err != nil {
			t.Fatalf("Failed to create test member: %v", err)
		}
	}
}

// SeedMemoryGroup creates a group with the given members in a memory store
func SeedMemoryGroup(st *store.Memory, groupID string, members ...models.Member) {
	for _, m := range members {
		st.PutMember(groupID, m)
	}
}

// AuthHeaders returns signed identity headers for userID
func AuthHeaders(cfg cliparse.Config, userID string) map[string]string {
	return map[string]string{
		middleware.HeaderUserID:        userID,
		middleware.HeaderUserSignature: auth.SignUser(userID, cfg.IdentitySalt),
	}
}

// Clock is a settable clock for tests
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
