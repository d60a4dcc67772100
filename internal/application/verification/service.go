// Package verification drives the per-session two-factor state machine shared
// by registration, login and vote authorisation.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/securevote-api/internal/application/face"
	"github.com/securevote-api/internal/application/otp"
	"github.com/securevote-api/internal/domain"
)

type RequestOTPRequest struct {
	VoterID    string `json:"voter_id"`
	Email      string `json:"email"`
	ElectionID string `json:"election_id"`
}

type ValidateOTPRequest struct {
	OTP string `json:"otp" validate:"required"`
}

type FaceRequest struct {
	Image string `json:"image" validate:"required"` // base64, optionally a data: URI
}

type Service interface {
	// RequestOTP checks the flow's preconditions, sends a code and moves the
	// session to OtpRequested for the subject.
	RequestOTP(ctx context.Context, sess *domain.Session, flow domain.Flow, req RequestOTPRequest) error
	ValidateOTP(ctx context.Context, sess *domain.Session, flow domain.Flow, code string) error
	// VerifyFace runs the face step and, on success, the flow's completion action.
	VerifyFace(ctx context.Context, sess *domain.Session, flow domain.Flow, image []byte) error
}

type voterStore interface {
	GetEligible(ctx context.Context, voterID string) (*domain.EligibleVoter, error)
	GetEnrolled(ctx context.Context, voterID string) (*domain.EnrolledVoter, error)
	Enroll(ctx context.Context, voterID string, embedding []float64, at time.Time) error
}

type electionStore interface {
	Get(ctx context.Context, electionID string) (*domain.Election, error)
}

type ballotStore interface {
	Exists(ctx context.Context, electionID, voterID string) (bool, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
}

type otpLedger interface {
	Issue(ctx context.Context, subject domain.EligibleVoter, purpose domain.Flow) (string, error)
	Verify(ctx context.Context, subjectID string, purpose domain.Flow, code string) (otp.Outcome, error)
}

type embedder interface {
	Extract(ctx context.Context, image []byte) ([]float64, error)
}

type duplicateGuard interface {
	Lock() func()
	Check(ctx context.Context, embedding []float64) error
}

type snapshotArchive interface {
	Archive(ctx context.Context, voterID string, image []byte, at time.Time) (string, error)
}

// ServiceDeps bundles the service's collaborators. Archive may be nil.
type ServiceDeps struct {
	Voters    voterStore
	Elections electionStore
	Ballots   ballotStore
	Sessions  sessionStore
	Ledger    otpLedger
	Embedder  embedder
	Guard     duplicateGuard
	Matcher   face.Matcher
	Archive   snapshotArchive
	Now       func() time.Time
}

type service struct {
	voters    voterStore
	elections electionStore
	ballots   ballotStore
	sessions  sessionStore
	ledger    otpLedger
	embedder  embedder
	guard     duplicateGuard
	matcher   face.Matcher
	archive   snapshotArchive
	now       func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		voters:    deps.Voters,
		elections: deps.Elections,
		ballots:   deps.Ballots,
		sessions:  deps.Sessions,
		ledger:    deps.Ledger,
		embedder:  deps.Embedder,
		guard:     deps.Guard,
		matcher:   deps.Matcher,
		archive:   deps.Archive,
		now:       deps.Now,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *service) RequestOTP(ctx context.Context, sess *domain.Session, flow domain.Flow, req RequestOTPRequest) error {
	var (
		subject    *domain.EligibleVoter
		electionID string
		err        error
	)
	switch flow {
	case domain.FlowRegister:
		subject, err = s.registerSubject(ctx, req)
	case domain.FlowLogin:
		subject, err = s.loginSubject(ctx, req)
	case domain.FlowVote:
		electionID = strings.TrimSpace(req.ElectionID)
		subject, err = s.voteSubject(ctx, sess, electionID)
	default:
		return fmt.Errorf("unknown flow %q: %w", flow, domain.ErrBadRequest)
	}
	if err != nil {
		return err
	}

	if _, err := s.ledger.Issue(ctx, *subject, flow); err != nil {
		return err
	}
	sess.BeginFlow(subject.VoterID, subject.Email, flow, electionID)
	if err := s.save(ctx, sess); err != nil {
		return err
	}
	slog.Info("otp issued", "session_id", sess.SessionID, "voter_id", subject.VoterID, "flow", flow)
	return nil
}

func (s *service) registerSubject(ctx context.Context, req RequestOTPRequest) (*domain.EligibleVoter, error) {
	voterID := strings.TrimSpace(req.VoterID)
	email := strings.TrimSpace(req.Email)
	if voterID == "" || email == "" {
		return nil, fmt.Errorf("voter_id and email required: %w", domain.ErrBadRequest)
	}
	v, err := s.eligible(ctx, voterID)
	if err != nil {
		return nil, err
	}
	if v.IsRegistered {
		return nil, fmt.Errorf("voter %s: %w", voterID, domain.ErrAlreadyRegistered)
	}
	if !strings.EqualFold(strings.TrimSpace(v.Email), email) {
		return nil, fmt.Errorf("email does not match records: %w", domain.ErrNotEligible)
	}
	return v, nil
}

func (s *service) loginSubject(ctx context.Context, req RequestOTPRequest) (*domain.EligibleVoter, error) {
	voterID := strings.TrimSpace(req.VoterID)
	if voterID == "" {
		return nil, fmt.Errorf("voter_id required: %w", domain.ErrBadRequest)
	}
	v, err := s.eligible(ctx, voterID)
	if err != nil {
		return nil, err
	}
	if !v.IsRegistered {
		return nil, fmt.Errorf("voter %s: %w", voterID, domain.ErrNotRegistered)
	}
	return v, nil
}

func (s *service) voteSubject(ctx context.Context, sess *domain.Session, electionID string) (*domain.EligibleVoter, error) {
	if !sess.LoggedIn() {
		return nil, fmt.Errorf("login required: %w", domain.ErrUnauthorized)
	}
	if electionID == "" {
		return nil, fmt.Errorf("election_id required: %w", domain.ErrBadRequest)
	}
	e, err := s.elections.Get(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if !e.OpenAt(s.now()) {
		return nil, fmt.Errorf("election %s: %w", electionID, domain.ErrElectionInactive)
	}
	voted, err := s.ballots.Exists(ctx, electionID, sess.VoterID)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, fmt.Errorf("election %s: %w", electionID, domain.ErrAlreadyVoted)
	}
	return s.eligible(ctx, sess.VoterID)
}

func (s *service) eligible(ctx context.Context, voterID string) (*domain.EligibleVoter, error) {
	v, err := s.voters.GetEligible(ctx, voterID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("voter %s: %w", voterID, domain.ErrNotEligible)
	}
	return v, err
}

func (s *service) ValidateOTP(ctx context.Context, sess *domain.Session, flow domain.Flow, code string) error {
	if !sess.InFlow(flow) {
		return fmt.Errorf("request an otp for %s first: %w", flow, domain.ErrVerificationRequired)
	}
	outcome, err := s.ledger.Verify(ctx, sess.PendingVoterID, flow, code)
	if err != nil {
		return err
	}
	if outcome != otp.Valid {
		slog.Info("otp rejected", "session_id", sess.SessionID, "voter_id", sess.PendingVoterID, "flow", flow, "outcome", outcome)
		// A rejected code revokes any earlier success on the same flow.
		if sess.OTPVerified || sess.FaceVerified {
			sess.ResetVerification()
			if err := s.save(ctx, sess); err != nil {
				return err
			}
		}
		return fmt.Errorf("otp %s: %w", outcome, outcome.Err())
	}
	sess.OTPVerified = true
	sess.FaceVerified = false
	return s.save(ctx, sess)
}

func (s *service) VerifyFace(ctx context.Context, sess *domain.Session, flow domain.Flow, image []byte) error {
	if !sess.InFlow(flow) || !sess.OTPVerified {
		return fmt.Errorf("otp not verified for %s: %w", flow, domain.ErrVerificationRequired)
	}
	embedding, err := s.embedder.Extract(ctx, image)
	if err != nil {
		// A capture problem leaves the session at OtpVerified so the voter can retry.
		return err
	}

	switch flow {
	case domain.FlowRegister:
		return s.completeRegister(ctx, sess, embedding, image)
	case domain.FlowLogin:
		return s.completeLogin(ctx, sess, embedding)
	case domain.FlowVote:
		return s.completeVote(ctx, sess, embedding)
	}
	return fmt.Errorf("unknown flow %q: %w", flow, domain.ErrBadRequest)
}

func (s *service) completeRegister(ctx context.Context, sess *domain.Session, embedding []float64, image []byte) error {
	voterID := sess.PendingVoterID

	unlock := s.guard.Lock()
	defer unlock()

	if err := s.guard.Check(ctx, embedding); err != nil {
		if errors.Is(err, domain.ErrDuplicateFace) {
			slog.Warn("registration blocked", "voter_id", voterID, "err", err)
			return s.abandon(ctx, sess, err)
		}
		return err
	}
	now := s.now()
	if err := s.voters.Enroll(ctx, voterID, embedding, now); err != nil {
		if errors.Is(err, domain.ErrAlreadyRegistered) {
			return s.abandon(ctx, sess, err)
		}
		return err
	}

	if s.archive != nil {
		if _, err := s.archive.Archive(ctx, voterID, image, now); err != nil {
			slog.Warn("snapshot archive failed", "voter_id", voterID, "err", err)
		}
	}

	sess.VoterID = voterID
	sess.ClearPending()
	slog.Info("voter registered", "voter_id", voterID, "session_id", sess.SessionID)
	return s.save(ctx, sess)
}

func (s *service) completeLogin(ctx context.Context, sess *domain.Session, embedding []float64) error {
	voterID := sess.PendingVoterID
	if err := s.compare(ctx, sess, voterID, embedding); err != nil {
		return err
	}
	sess.VoterID = voterID
	sess.ClearPending()
	slog.Info("voter logged in", "voter_id", voterID, "session_id", sess.SessionID)
	return s.save(ctx, sess)
}

func (s *service) completeVote(ctx context.Context, sess *domain.Session, embedding []float64) error {
	if err := s.compare(ctx, sess, sess.PendingVoterID, embedding); err != nil {
		return err
	}
	sess.FaceVerified = true
	return s.save(ctx, sess)
}

// compare matches the embedding against the voter's enrolled face. A mismatch
// abandons the flow.
func (s *service) compare(ctx context.Context, sess *domain.Session, voterID string, embedding []float64) error {
	enrolled, err := s.voters.GetEnrolled(ctx, voterID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.abandon(ctx, sess, fmt.Errorf("voter %s: %w", voterID, domain.ErrNotRegistered))
	}
	if err != nil {
		return err
	}
	d, ok := s.matcher.Match(embedding, enrolled.FaceEmbedding)
	if !ok {
		slog.Info("face mismatch", "voter_id", voterID, "flow", sess.PendingFlow, "distance", d)
		return s.abandon(ctx, sess, fmt.Errorf("distance %.3f: %w", d, domain.ErrFaceMismatch))
	}
	return nil
}

// abandon returns the session to Idle and reports cause.
func (s *service) abandon(ctx context.Context, sess *domain.Session, cause error) error {
	sess.ClearPending()
	if err := s.save(ctx, sess); err != nil {
		return err
	}
	return cause
}

func (s *service) save(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = s.now()
	if err := s.sessions.Put(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
