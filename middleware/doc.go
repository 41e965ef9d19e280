// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Identity

The auth gateway in front of the API forwards the user ID with an HMAC
signature. RequireUser rejects requests without a valid pair and stores
the ID in the request context:

	mux.HandleFunc("GET /groups/{groupID}/votes", middleware.RequireUser(salt, handler))

	userID := middleware.UserID(r.Context())

# Request Logging

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, duration_ms).
The wrapped writer still supports flushing for streamed responses.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows GET, POST, PUT, PATCH, DELETE and OPTIONS with the identity headers.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.CreateVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
*/
package middleware
