package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Verification outcomes. Each one tells the caller which step to redo.
var (
	ErrNotEligible          = errors.New("not in the eligible voter list")
	ErrAlreadyRegistered    = errors.New("voter already registered")
	ErrNotRegistered        = errors.New("voter not registered")
	ErrOtpNotFound          = errors.New("otp not found")
	ErrOtpExpired           = errors.New("otp expired")
	ErrOtpMismatch          = errors.New("otp mismatch")
	ErrNoFaceDetected       = errors.New("no face detected")
	ErrFaceMismatch         = errors.New("face mismatch")
	ErrDuplicateFace        = errors.New("duplicate face")
	ErrElectionInactive     = errors.New("election not active")
	ErrAlreadyVoted         = errors.New("already voted")
	ErrInvalidCandidate     = errors.New("invalid candidate")
	ErrDeliveryFailure      = errors.New("otp delivery failed")
	ErrVerificationRequired = errors.New("verification required")
)

// DuplicateFaceError names the enrolled voter whose face matched. It is the only
// error that discloses another voter's id.
type DuplicateFaceError struct {
	MatchedVoterID string
	Distance       float64
}

func (e *DuplicateFaceError) Error() string {
	return fmt.Sprintf("duplicate face detected (matches voter %s, distance=%.3f)", e.MatchedVoterID, e.Distance)
}

func (e *DuplicateFaceError) Is(target error) bool { return target == ErrDuplicateFace }
