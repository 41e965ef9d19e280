// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/messmate/middleware"
	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/notify"
	"github.com/danielhkuo/messmate/voting"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationLog lists recorded group notifications, newest first
type NotificationLog interface {
	ListNotifications(ctx context.Context, groupID string, limit int) ([]models.Notification, error)
}

type NotificationHandler struct {
	engine *voting.Engine
	log    NotificationLog
	broker *notify.Broker
}

func NewNotificationHandler(engine *voting.Engine, log NotificationLog, broker *notify.Broker) *NotificationHandler {
	return &NotificationHandler{engine: engine, log: log, broker: broker}
}

// ListNotifications handles GET /groups/{groupID}/notifications?limit=N
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")

	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxNotificationLimit {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	if err := h.engine.CheckMember(r.Context(), groupID, middleware.UserID(r.Context())); err != nil {
		writeEngineError(w, err)
		return
	}

	notifications, err := h.log.ListNotifications(r.Context(), groupID, limit)
	if err != nil {
		slog.Error("failed to list notifications", "group_id", groupID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListNotificationsResponse{Notifications: notifications})
}

// Stream handles GET /groups/{groupID}/stream as Server-Sent Events
func (h *NotificationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")

	if err := h.engine.CheckMember(r.Context(), groupID, middleware.UserID(r.Context())); err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.broker.Stream(w, r, groupID); err != nil {
		slog.Warn("notification stream ended", "group_id", groupID, "error", err)
	}
}
