package session

import (
	"context"
	"testing"

	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/infrastructure/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(sessionID, role string) (string, error) {
	args := m.Called(sessionID, role)
	return args.String(0), args.Error(1)
}

type mockGoogle struct{ mock.Mock }

func (m *mockGoogle) Verify(ctx context.Context, token string) (*google.Payload, error) {
	args := m.Called(ctx, token)
	if p, _ := args.Get(0).(*google.Payload); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func newSvc(t *testing.T) (Service, *mockSessionStore, *mockSigner, *mockGoogle) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	store := &mockSessionStore{}
	signer := &mockSigner{}
	g := &mockGoogle{}
	svc := NewService(ServiceDeps{
		Sessions:          store,
		Signer:            signer,
		Google:            g,
		AdminUsername:     "admin",
		AdminPasswordHash: string(hash),
		AdminEmails:       []string{"Dean@Campus.edu"},
	})
	return svc, store, signer, g
}

// --- tests ---

func TestStart_AnonymousVoterSession(t *testing.T) {
	svc, store, signer, _ := newSvc(t)
	store.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	signer.On("Sign", mock.Anything, domain.RoleVoter).Return("tok", nil)

	res, err := svc.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Bearer)
	assert.Equal(t, domain.RoleVoter, res.Session.Role)
	assert.True(t, res.Session.Enable)
	assert.False(t, res.Session.LoggedIn())
	assert.Greater(t, res.Session.ExpiresAt, res.Session.CreatedAt.Unix())
}

func TestLogout_ClearsState(t *testing.T) {
	svc, store, _, _ := newSvc(t)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	sess := &domain.Session{SessionID: "s", VoterID: "S1", PendingVoterID: "S1", PendingFlow: domain.FlowVote, OTPVerified: true, Enable: true}

	require.NoError(t, svc.Logout(context.Background(), sess))
	assert.Empty(t, sess.VoterID)
	assert.Empty(t, sess.PendingFlow)
	assert.False(t, sess.OTPVerified)
	assert.False(t, sess.Enable)
}

func TestAdminLogin(t *testing.T) {
	svc, store, signer, _ := newSvc(t)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	signer.On("Sign", mock.Anything, domain.RoleAdmin).Return("admin-tok", nil)

	res, err := svc.AdminLogin(context.Background(), AdminLoginRequest{Username: "admin", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "admin-tok", res.Bearer)
	assert.Equal(t, domain.RoleAdmin, res.Session.Role)

	_, err = svc.AdminLogin(context.Background(), AdminLoginRequest{Username: "admin", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = svc.AdminLogin(context.Background(), AdminLoginRequest{Username: "root", Password: "s3cret"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAdminLogin_DisabledWithoutHash(t *testing.T) {
	svc := NewService(ServiceDeps{AdminUsername: "admin"})
	_, err := svc.AdminLogin(context.Background(), AdminLoginRequest{Username: "admin", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAdminGoogleLogin(t *testing.T) {
	svc, store, signer, g := newSvc(t)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)
	signer.On("Sign", mock.Anything, domain.RoleAdmin).Return("admin-tok", nil)
	g.On("Verify", mock.Anything, "good").Return(&google.Payload{Email: "dean@campus.edu", EmailVerified: true}, nil)
	g.On("Verify", mock.Anything, "unverified").Return(&google.Payload{Email: "dean@campus.edu"}, nil)
	g.On("Verify", mock.Anything, "student").Return(&google.Payload{Email: "s1@campus.edu", EmailVerified: true}, nil)

	res, err := svc.AdminGoogleLogin(context.Background(), GoogleLoginRequest{IDToken: "good"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.Session.Role)

	_, err = svc.AdminGoogleLogin(context.Background(), GoogleLoginRequest{IDToken: "unverified"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = svc.AdminGoogleLogin(context.Background(), GoogleLoginRequest{IDToken: "student"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
