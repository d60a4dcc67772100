package ballot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/securevote-api/internal/domain"
)

type CastRequest struct {
	CandidateID string `json:"candidate_id" validate:"required"`
}

type Service interface {
	// Cast records the session voter's choice. The session must hold a completed
	// vote verification for this election.
	Cast(ctx context.Context, sess *domain.Session, electionID, candidateID string) (*domain.Ballot, error)
}

type electionStore interface {
	Get(ctx context.Context, electionID string) (*domain.Election, error)
	GetCandidate(ctx context.Context, candidateID string) (*domain.Candidate, error)
}

type ballotStore interface {
	Exists(ctx context.Context, electionID, voterID string) (bool, error)
	Insert(ctx context.Context, b *domain.Ballot) error
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
}

type ServiceDeps struct {
	Elections electionStore
	Ballots   ballotStore
	Sessions  sessionStore
	Now       func() time.Time
}

type service struct {
	elections electionStore
	ballots   ballotStore
	sessions  sessionStore
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{elections: deps.Elections, ballots: deps.Ballots, sessions: deps.Sessions, now: deps.Now}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *service) Cast(ctx context.Context, sess *domain.Session, electionID, candidateID string) (*domain.Ballot, error) {
	if !sess.LoggedIn() {
		return nil, fmt.Errorf("login required: %w", domain.ErrUnauthorized)
	}
	voterID := sess.VoterID
	if !sess.InFlow(domain.FlowVote) || sess.PendingVoterID != voterID || sess.PendingElectionID != electionID ||
		!sess.OTPVerified || !sess.FaceVerified {
		return nil, fmt.Errorf("otp and face verification required: %w", domain.ErrVerificationRequired)
	}

	e, err := s.elections.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !e.OpenAt(now) {
		return nil, fmt.Errorf("election %s: %w", electionID, domain.ErrElectionInactive)
	}

	voted, err := s.ballots.Exists(ctx, electionID, voterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, fmt.Errorf("election %s: %w", electionID, domain.ErrAlreadyVoted)
	}

	c, err := s.elections.GetCandidate(ctx, candidateID)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && c.ElectionID != electionID) {
		return nil, fmt.Errorf("candidate %s: %w", candidateID, domain.ErrInvalidCandidate)
	}
	if err != nil {
		return nil, err
	}

	b := &domain.Ballot{ElectionID: electionID, VoterID: voterID, CandidateID: candidateID, VotedAt: now}
	if err := s.ballots.Insert(ctx, b); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			slog.Warn("duplicate ballot rejected", "election_id", electionID, "voter_id", voterID)
		}
		return nil, err
	}
	slog.Info("ballot cast", "election_id", electionID, "voter_id", voterID)

	sess.ClearPending()
	sess.UpdatedAt = now
	if err := s.sessions.Put(ctx, sess); err != nil {
		// The ballot is stored; a stale session can only lead to ErrAlreadyVoted.
		slog.Warn("failed to clear vote flags", "session_id", sess.SessionID, "err", err)
	}
	return b, nil
}
