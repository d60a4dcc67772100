package http

import (
	"context"

	"github.com/securevote-api/internal/application/ballot"
	"github.com/securevote-api/internal/application/election"
	"github.com/securevote-api/internal/application/session"
	"github.com/securevote-api/internal/application/verification"
	"github.com/securevote-api/internal/application/voter"
	"github.com/securevote-api/internal/domain"
	jwtinfra "github.com/securevote-api/internal/infrastructure/jwt"
)

// TokenVerifier checks a Bearer token and returns its claims.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// SessionLoader is the minimal interface the router requires from a session store.
type SessionLoader interface {
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

// Deps holds the services and auth collaborators the router mounts.
type Deps struct {
	Tokens   TokenVerifier
	Sessions SessionLoader

	SessionSvc      session.Service
	VerificationSvc verification.Service
	ElectionSvc     election.Service
	BallotSvc       ballot.Service
	VoterSvc        voter.Service
}
