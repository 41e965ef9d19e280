// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/messmate/cliparse"
	"github.com/danielhkuo/messmate/handlers"
	"github.com/danielhkuo/messmate/middleware"
	"github.com/danielhkuo/messmate/notify"
	"github.com/danielhkuo/messmate/voting"
)

func NewRouter(engine *voting.Engine, log handlers.NotificationLog, broker *notify.Broker, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	voteHandler := handlers.NewVoteHandler(engine)
	notificationHandler := handlers.NewNotificationHandler(engine, log, broker)

	// authed wraps a handler with logging and identity verification
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireUser(cfg.IdentitySalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Vote lifecycle
	mux.HandleFunc("GET /groups/{groupID}/votes", authed(voteHandler.ListVotes))
	mux.HandleFunc("POST /groups/{groupID}/votes", authed(voteHandler.CreateVote))
	mux.HandleFunc("PATCH /groups/{groupID}/votes/{voteID}", authed(voteHandler.CastBallot))
	mux.HandleFunc("PUT /groups/{groupID}/votes/{voteID}", authed(voteHandler.EditVote))
	mux.HandleFunc("DELETE /groups/{groupID}/votes/{voteID}", authed(voteHandler.DeleteVote))

	// Notifications
	mux.HandleFunc("GET /groups/{groupID}/notifications", authed(notificationHandler.ListNotifications))
	mux.HandleFunc("GET /groups/{groupID}/stream", authed(notificationHandler.Stream))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("messmate API v1"))
	})

	return mux
}
