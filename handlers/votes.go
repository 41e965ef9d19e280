// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/messmate/middleware"
	"github.com/danielhkuo/messmate/models"
	"github.com/danielhkuo/messmate/voting"
)

type VoteHandler struct {
	engine *voting.Engine
}

func NewVoteHandler(engine *voting.Engine) *VoteHandler {
	return &VoteHandler{engine: engine}
}

// ListVotes handles GET /groups/{groupID}/votes
func (h *VoteHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")

	views, err := h.engine.ListVotes(r.Context(), groupID, middleware.UserID(r.Context()))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	for i := range views {
		views[i] = presentView(views[i])
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListVotesResponse{Votes: views})
}

// CreateVote handles POST /groups/{groupID}/votes
func (h *VoteHandler) CreateVote(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")

	var req models.CreateVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, err := h.engine.CreateVote(r.Context(), groupID, middleware.UserID(r.Context()), models.CreateVoteInput{
		Kind:         req.Kind,
		Title:        req.Title,
		Description:  req.Description,
		StartAt:      req.StartAt,
		EndAt:        req.EndAt,
		IsAnonymous:  req.IsAnonymous,
		CandidateIDs: req.CandidateIDs,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, vote)
}

// CastBallot handles PATCH /groups/{groupID}/votes/{voteID}
func (h *VoteHandler) CastBallot(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	voteID := r.PathValue("voteID")

	var req models.CastBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CandidateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "candidate_id is required")
		return
	}

	view, err := h.engine.CastBallot(r.Context(), groupID, voteID, middleware.UserID(r.Context()), req.CandidateID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, presentView(view))
}

// EditVote handles PUT /groups/{groupID}/votes/{voteID}
func (h *VoteHandler) EditVote(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	voteID := r.PathValue("voteID")

	var req models.EditVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, err := h.engine.EditVote(r.Context(), groupID, voteID, middleware.UserID(r.Context()), models.VotePatch{
		Title:        req.Title,
		Description:  req.Description,
		EndAt:        req.EndAt,
		CandidateIDs: req.CandidateIDs,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, vote)
}

// DeleteVote handles DELETE /groups/{groupID}/votes/{voteID}
func (h *VoteHandler) DeleteVote(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	voteID := r.PathValue("voteID")

	if err := h.engine.DeleteVote(r.Context(), groupID, voteID, middleware.UserID(r.Context())); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// presentView hides who voted for whom on anonymous votes
func presentView(view models.VoteView) models.VoteView {
	if !view.IsAnonymous {
		return view
	}
	results := make([]models.CandidateResult, len(view.Results))
	for i, res := range view.Results {
		res.Voters = nil
		results[i] = res
	}
	view.Results = results
	return view
}

// invalidStateError distinguishes a closed vote from a lost race; both are 409
const invalidStateError = "Invalid state"

// writeEngineError maps engine error kinds to HTTP statuses
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, voting.ErrValidation):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, voting.ErrForbidden):
		middleware.ErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, voting.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, voting.ErrInvalidState):
		middleware.JSONResponse(w, http.StatusConflict, models.ErrorResponse{
			Error:   invalidStateError,
			Message: err.Error(),
		})
	case errors.Is(err, voting.ErrConflict):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	default:
		slog.Error("unexpected engine error", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}
