// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/messmate/models"
)

var (
	// ErrBrokerBusy is returned when the broker did not accept a notification in time.
	ErrBrokerBusy = errors.New("notification broker busy")
	// ErrBrokerStopped is returned once Run has exited.
	ErrBrokerStopped = errors.New("notification broker stopped")
)

const (
	patience  = time.Second
	heartbeat = 30 * time.Second
)

type client struct {
	groupID string
	events  chan models.Notification
}

// Broker fans notifications out to Server-Sent-Events subscribers of the
// same group. Run must be running for notifications to be delivered.
type Broker struct {
	events         chan models.Notification
	newClients     chan *client
	closingClients chan *client
	clients        map[*client]struct{}
	done           chan struct{}
	logger         *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		events:         make(chan models.Notification, 16),
		newClients:     make(chan *client),
		closingClients: make(chan *client),
		clients:        make(map[*client]struct{}),
		done:           make(chan struct{}),
		logger:         logger,
	}
}

// Run dispatches notifications until ctx is cancelled. It must be called once.
// Clients that are not keeping up miss events instead of stalling the group.
func (b *Broker) Run(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			for c := range b.clients {
				close(c.events)
				delete(b.clients, c)
			}
			return nil
		case c := <-b.newClients:
			b.clients[c] = struct{}{}
			b.logger.Debug("stream client added", "group_id", c.groupID, "clients", len(b.clients))
		case c := <-b.closingClients:
			if _, ok := b.clients[c]; ok {
				close(c.events)
				delete(b.clients, c)
			}
			b.logger.Debug("stream client removed", "group_id", c.groupID, "clients", len(b.clients))
		case n := <-b.events:
			for c := range b.clients {
				if c.groupID != n.GroupID {
					continue
				}
				select {
				case c.events <- n:
				default:
					b.logger.Warn("dropping event for slow stream client", "group_id", c.groupID, "event", n.Event)
				}
			}
		}
	}
}

// Notify queues n for delivery to the group's subscribers.
func (b *Broker) Notify(ctx context.Context, n models.Notification) error {
	select {
	case b.events <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrBrokerStopped
	case <-time.After(patience):
		return ErrBrokerBusy
	}
}

// Subscribe registers a listener for groupID. The returned channel is closed
// after cancel is called or the broker stops.
func (b *Broker) Subscribe(ctx context.Context, groupID string) (<-chan models.Notification, func(), error) {
	c := &client{groupID: groupID, events: make(chan models.Notification, 8)}
	select {
	case b.newClients <- c:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case <-b.done:
		return nil, nil, ErrBrokerStopped
	}
	cancel := func() {
		select {
		case b.closingClients <- c:
		case <-b.done:
		}
	}
	return c.events, cancel, nil
}

// Stream writes the group's notifications to w as Server-Sent Events until
// the request ends.
func (b *Broker) Stream(w http.ResponseWriter, r *http.Request, groupID string) error {
	rc := http.NewResponseController(w)

	events, cancel, err := b.Subscribe(r.Context(), groupID)
	if err != nil {
		return err
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return fmt.Errorf("streaming unsupported: %w", err)
	}

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return err
			}
		case n, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(n)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", n.Event, payload); err != nil {
				return err
			}
		}
		if err := rc.Flush(); err != nil {
			return err
		}
	}
}
