// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/messmate/models"
)

func startBroker(t *testing.T) (*Broker, context.CancelFunc) {
	t.Helper()
	b := NewBroker(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return b, cancel
}

func notification(groupID, event string) models.Notification {
	return models.Notification{
		ID:        "n-" + groupID,
		GroupID:   groupID,
		VoteID:    "v1",
		Event:     event,
		Message:   "Meal Choice \"Dinner\" is open for voting",
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func receive(t *testing.T, events <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n, ok := <-events:
		require.True(t, ok, "channel closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
		return models.Notification{}
	}
}

func TestBroker_DeliversToGroupSubscribers(t *testing.T) {
	b, _ := startBroker(t)
	ctx := context.Background()

	mine, cancelMine, err := b.Subscribe(ctx, "g1")
	require.NoError(t, err)
	defer cancelMine()
	also, cancelAlso, err := b.Subscribe(ctx, "g1")
	require.NoError(t, err)
	defer cancelAlso()
	other, cancelOther, err := b.Subscribe(ctx, "g2")
	require.NoError(t, err)
	defer cancelOther()

	require.NoError(t, b.Notify(ctx, notification("g1", models.EventVoteOpened)))

	assert.Equal(t, "n-g1", receive(t, mine).ID)
	assert.Equal(t, "n-g1", receive(t, also).ID)

	select {
	case n := <-other:
		t.Fatalf("other group received %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroker_CancelClosesSubscription(t *testing.T) {
	b, _ := startBroker(t)

	events, cancel, err := b.Subscribe(context.Background(), "g1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestBroker_StopClosesSubscriptions(t *testing.T) {
	b, stop := startBroker(t)

	events, _, err := b.Subscribe(context.Background(), "g1")
	require.NoError(t, err)
	stop()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestBroker_SlowSubscriberDoesNotStall(t *testing.T) {
	b, _ := startBroker(t)
	ctx := context.Background()

	stuck, cancelStuck, err := b.Subscribe(ctx, "g1")
	require.NoError(t, err)
	_, cancelIdle, err := b.Subscribe(ctx, "g1")
	require.NoError(t, err)
	defer cancelIdle()

	// Far more events than a subscriber buffers, with nobody reading.
	start := time.Now()
	for range 3 * cap(b.events) {
		require.NoError(t, b.Notify(ctx, notification("g1", models.EventVoteOpened)))
	}
	assert.Less(t, time.Since(start), patience)

	cancelled := make(chan struct{})
	go func() {
		cancelStuck()
		close(cancelled)
	}()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("cancel blocked")
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stuck:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription still open after cancel")
		}
	}
}

func TestBroker_StoppedBroker(t *testing.T) {
	b, stop := startBroker(t)

	_, cancel, err := b.Subscribe(context.Background(), "g1")
	require.NoError(t, err)
	stop()
	<-b.done

	cancel()
	_, _, err = b.Subscribe(context.Background(), "g1")
	assert.ErrorIs(t, err, ErrBrokerStopped)
}

func TestBroker_NotifyRespectsContext(t *testing.T) {
	b := NewBroker(nil)

	// Nothing drains the queue without Run.
	for range cap(b.events) {
		require.NoError(t, b.Notify(context.Background(), notification("g1", models.EventVoteOpened)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.Notify(ctx, notification("g1", models.EventVoteOpened))
	assert.ErrorIs(t, err, context.Canceled)

	_, _, err = b.Subscribe(ctx, "g1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBroker_Stream(t *testing.T) {
	b, _ := startBroker(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.Stream(w, r, "g1")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Headers arrive after the subscription is registered.
	require.NoError(t, b.Notify(context.Background(), notification("g2", models.EventVoteOpened)))
	require.NoError(t, b.Notify(context.Background(), notification("g1", models.EventVoteResolved)))

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: vote.resolved\n", event)

	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(data, "data: "))

	var got models.Notification
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &got))
	assert.Equal(t, "g1", got.GroupID)
	assert.Equal(t, models.EventVoteResolved, got.Event)
}

type recordingSink struct {
	mu   sync.Mutex
	seen []models.Notification
	err  error
}

func (s *recordingSink) Notify(_ context.Context, n models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, n)
	return s.err
}

func TestFanout(t *testing.T) {
	first := &recordingSink{err: errors.New("log unavailable")}
	second := &recordingSink{}
	third := &recordingSink{err: errors.New("broker gone")}

	err := Fanout{first, second, third}.Notify(context.Background(), notification("g1", models.EventVoteExpired))

	require.Error(t, err)
	assert.ErrorContains(t, err, "log unavailable")
	assert.ErrorContains(t, err, "broker gone")
	for _, sink := range []*recordingSink{first, second, third} {
		assert.Len(t, sink.seen, 1)
	}

	assert.NoError(t, Fanout{second}.Notify(context.Background(), notification("g1", models.EventVoteExpired)))
	assert.NoError(t, Fanout(nil).Notify(context.Background(), notification("g1", models.EventVoteExpired)))
}
