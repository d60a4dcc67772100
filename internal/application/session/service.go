package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/infrastructure/google"
	"github.com/securevote-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type AdminLoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

type StartResult struct {
	Bearer  string
	Session *domain.Session
}

type Service interface {
	// Start opens an anonymous voter session.
	Start(ctx context.Context) (*StartResult, error)
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Logout(ctx context.Context, sess *domain.Session) error
	AdminLogin(ctx context.Context, req AdminLoginRequest) (*StartResult, error)
	AdminGoogleLogin(ctx context.Context, req GoogleLoginRequest) (*StartResult, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
}

type jwtSigner interface {
	Sign(sessionID, role string) (string, error)
}

type googleVerifier interface {
	Verify(ctx context.Context, token string) (*google.Payload, error)
}

type ServiceDeps struct {
	Sessions          sessionStore
	Signer            jwtSigner
	Google            googleVerifier
	TTL               time.Duration
	AdminUsername     string
	AdminPasswordHash string
	AdminEmails       []string
}

type service struct {
	sessions      sessionStore
	signer        jwtSigner
	google        googleVerifier
	ttl           time.Duration
	adminUsername string
	adminHash     []byte
	adminEmails   map[string]bool
}

func NewService(deps ServiceDeps) Service {
	emails := make(map[string]bool, len(deps.AdminEmails))
	for _, e := range deps.AdminEmails {
		emails[strings.ToLower(strings.TrimSpace(e))] = true
	}
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &service{
		sessions:      deps.Sessions,
		signer:        deps.Signer,
		google:        deps.Google,
		ttl:           ttl,
		adminUsername: deps.AdminUsername,
		adminHash:     []byte(deps.AdminPasswordHash),
		adminEmails:   emails,
	}
}

func (s *service) Start(ctx context.Context) (*StartResult, error) {
	return s.open(ctx, domain.RoleVoter)
}

func (s *service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

func (s *service) Logout(ctx context.Context, sess *domain.Session) error {
	sess.ClearPending()
	sess.VoterID = ""
	sess.Enable = false
	sess.UpdatedAt = time.Now().UTC()
	return s.sessions.Put(ctx, sess)
}

func (s *service) AdminLogin(ctx context.Context, req AdminLoginRequest) (*StartResult, error) {
	if len(s.adminHash) == 0 {
		return nil, fmt.Errorf("admin login disabled: %w", domain.ErrUnauthorized)
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.adminUsername)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.adminHash, []byte(req.Password))
	if !userOK || passErr != nil {
		slog.Warn("admin login failed", "username", req.Username)
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return s.open(ctx, domain.RoleAdmin)
}

func (s *service) AdminGoogleLogin(ctx context.Context, req GoogleLoginRequest) (*StartResult, error) {
	p, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		return nil, err
	}
	if !p.EmailVerified || !s.adminEmails[strings.ToLower(p.Email)] {
		slog.Warn("google admin login refused", "email", p.Email)
		return nil, fmt.Errorf("%s is not an admin: %w", p.Email, domain.ErrForbidden)
	}
	return s.open(ctx, domain.RoleAdmin)
}

func (s *service) open(ctx context.Context, role string) (*StartResult, error) {
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		Role:      role,
		Enable:    true,
		ExpiresAt: now.Add(s.ttl).Unix(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := s.signer.Sign(sess.SessionID, role)
	if err != nil {
		return nil, err
	}
	return &StartResult{Bearer: bearer, Session: sess}, nil
}
