package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/securevote-api/internal/application/ballot"
	"github.com/securevote-api/internal/application/election"
	"github.com/securevote-api/internal/pkg/validate"
	"github.com/securevote-api/internal/transport/http/middleware"
)

// ElectionHandler serves the voter-facing election endpoints.
type ElectionHandler struct {
	elections election.Service
	ballots   ballot.Service
}

func NewElectionHandler(elections election.Service, ballots ballot.Service) *ElectionHandler {
	return &ElectionHandler{elections: elections, ballots: ballots}
}

func (h *ElectionHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	list, err := h.elections.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ElectionsEnvelope{Data: list})
}

func (h *ElectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	var voterID string
	if sess, ok := middleware.SessionFromContext(r.Context()); ok {
		voterID = sess.VoterID
	}
	detail, err := h.elections.Detail(r.Context(), chi.URLParam(r, "id"), voterID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ElectionHandler) Cast(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ballot.CastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	b, err := h.ballots.Cast(r.Context(), sess, chi.URLParam(r, "id"), req.CandidateID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BallotEnvelope{Ballot: b, Message: "vote recorded"})
}
