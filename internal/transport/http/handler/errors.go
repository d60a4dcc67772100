package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/securevote-api/internal/domain"
)

// Steps a client may be told to redo.
const (
	stepRequestOTP  = "request_otp"
	stepValidateOTP = "validate_otp"
	stepFace        = "face"
)

type errorMapping struct {
	target    error
	status    int
	code      string
	message   string
	retryStep string
}

// Checked in order; the first match wins. Clients only ever see message, never
// the wrapped error text.
var errorMappings = []errorMapping{
	{domain.ErrNotEligible, http.StatusForbidden, "not_eligible", "voter id or email not in the eligible voter list", ""},
	{domain.ErrAlreadyRegistered, http.StatusConflict, "already_registered", "voter already registered, please log in", ""},
	{domain.ErrNotRegistered, http.StatusForbidden, "not_registered", "voter not registered, please register first", ""},
	{domain.ErrOtpNotFound, http.StatusBadRequest, "otp_not_found", "no otp found, request a new one", stepRequestOTP},
	{domain.ErrOtpExpired, http.StatusBadRequest, "otp_expired", "otp expired, request a new one", stepRequestOTP},
	{domain.ErrOtpMismatch, http.StatusBadRequest, "otp_mismatch", "invalid otp", stepValidateOTP},
	{domain.ErrNoFaceDetected, http.StatusUnprocessableEntity, "no_face_detected", "no face detected, please recapture", stepFace},
	{domain.ErrFaceMismatch, http.StatusUnauthorized, "face_mismatch", "face does not match, start again", stepRequestOTP},
	{domain.ErrElectionInactive, http.StatusConflict, "election_inactive", "election is not active", ""},
	{domain.ErrAlreadyVoted, http.StatusConflict, "already_voted", "you have already voted in this election", ""},
	{domain.ErrInvalidCandidate, http.StatusBadRequest, "invalid_candidate", "invalid candidate for this election", ""},
	{domain.ErrDeliveryFailure, http.StatusBadGateway, "delivery_failure", "could not send otp, try again", stepRequestOTP},
	{domain.ErrVerificationRequired, http.StatusForbidden, "verification_required", "complete otp and face verification first", stepRequestOTP},
	{domain.ErrNotFound, http.StatusNotFound, "not_found", "not found", ""},
	{domain.ErrConflict, http.StatusConflict, "conflict", "conflict", ""},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "unauthorized", ""},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden", "forbidden", ""},
	{domain.ErrBadRequest, http.StatusBadRequest, "bad_request", "bad request", ""},
}

// writeServiceError maps a service error to its HTTP response. Anything that is
// not a domain error is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var dup *domain.DuplicateFaceError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, MessageEnvelope{
			Error:          "this face is already registered to another voter",
			ErrorCode:      "duplicate_face",
			MatchedVoterID: dup.MatchedVoterID,
		})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
			}
			msg := m.message
			if m.target == domain.ErrBadRequest {
				// input problems are described by the service for the caller
				msg = err.Error()
			}
			writeJSON(w, m.status, MessageEnvelope{Error: msg, ErrorCode: m.code, RetryStep: m.retryStep})
			return
		}
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeJSON(w, http.StatusInternalServerError, MessageEnvelope{Error: "internal error", ErrorCode: "internal"})
}
