package handler

import (
	"encoding/json"
	"net/http"

	"github.com/securevote-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper. Failed verification steps
// also say which step the client should redo.
type MessageEnvelope struct {
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	RetryStep      string `json:"retry_step,omitempty"`
	MatchedVoterID string `json:"matched_voter_id,omitempty"`
}

// AuthEnvelope wraps session start and admin login responses.
type AuthEnvelope struct {
	Bearer  string          `json:"Bearer,omitempty"`
	Session *domain.Session `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
}

type ElectionsEnvelope struct {
	Data []domain.Election `json:"data"`
}

type BallotEnvelope struct {
	Ballot  *domain.Ballot `json:"ballot"`
	Message string         `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
