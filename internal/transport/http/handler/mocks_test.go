package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/securevote-api/internal/application/session"
	"github.com/securevote-api/internal/application/verification"
	"github.com/securevote-api/internal/domain"
	jwtinfra "github.com/securevote-api/internal/infrastructure/jwt"
	"github.com/securevote-api/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

type mockVerificationSvc struct{ mock.Mock }

func (m *mockVerificationSvc) RequestOTP(ctx context.Context, sess *domain.Session, flow domain.Flow, req verification.RequestOTPRequest) error {
	return m.Called(ctx, sess, flow, req).Error(0)
}

func (m *mockVerificationSvc) ValidateOTP(ctx context.Context, sess *domain.Session, flow domain.Flow, code string) error {
	return m.Called(ctx, sess, flow, code).Error(0)
}

func (m *mockVerificationSvc) VerifyFace(ctx context.Context, sess *domain.Session, flow domain.Flow, image []byte) error {
	return m.Called(ctx, sess, flow, image).Error(0)
}

type mockBallotSvc struct{ mock.Mock }

func (m *mockBallotSvc) Cast(ctx context.Context, sess *domain.Session, electionID, candidateID string) (*domain.Ballot, error) {
	args := m.Called(ctx, sess, electionID, candidateID)
	if b, _ := args.Get(0).(*domain.Ballot); b != nil {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockElectionSvc struct{ mock.Mock }

func (m *mockElectionSvc) Create(ctx context.Context, req domain.CreateElectionRequest) (*domain.ElectionDetail, error) {
	args := m.Called(ctx, req)
	if d, _ := args.Get(0).(*domain.ElectionDetail); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockElectionSvc) Get(ctx context.Context, electionID string) (*domain.Election, error) {
	args := m.Called(ctx, electionID)
	if e, _ := args.Get(0).(*domain.Election); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockElectionSvc) List(ctx context.Context) ([]domain.Election, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Election), args.Error(1)
}

func (m *mockElectionSvc) ListActive(ctx context.Context) ([]domain.Election, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Election), args.Error(1)
}

func (m *mockElectionSvc) Toggle(ctx context.Context, electionID string) (*domain.Election, error) {
	args := m.Called(ctx, electionID)
	if e, _ := args.Get(0).(*domain.Election); e != nil {
		return e, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockElectionSvc) Detail(ctx context.Context, electionID, voterID string) (*domain.ElectionDetail, error) {
	args := m.Called(ctx, electionID, voterID)
	if d, _ := args.Get(0).(*domain.ElectionDetail); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockElectionSvc) Results(ctx context.Context, electionID string) (*domain.ElectionResults, error) {
	args := m.Called(ctx, electionID)
	if res, _ := args.Get(0).(*domain.ElectionResults); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockVoterSvc struct{ mock.Mock }

func (m *mockVoterSvc) Import(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	args := m.Called(ctx, r)
	if res, _ := args.Get(0).(*domain.ImportResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVoterSvc) ImportFile(ctx context.Context, path string) (*domain.ImportResult, error) {
	args := m.Called(ctx, path)
	if res, _ := args.Get(0).(*domain.ImportResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockVoterSvc) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	args := m.Called(ctx)
	if s, _ := args.Get(0).(*domain.DashboardStats); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Start(ctx context.Context) (*session.StartResult, error) {
	args := m.Called(ctx)
	if res, _ := args.Get(0).(*session.StartResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Logout(ctx context.Context, sess *domain.Session) error {
	return m.Called(ctx, sess).Error(0)
}

func (m *mockSessionSvc) AdminLogin(ctx context.Context, req session.AdminLoginRequest) (*session.StartResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*session.StartResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) AdminGoogleLogin(ctx context.Context, req session.GoogleLoginRequest) (*session.StartResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*session.StartResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

// withParams injects chi URL params as key/value pairs.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// asVoter attaches an authenticated voter session to the request.
func asVoter(r *http.Request, sess *domain.Session) *http.Request {
	claims := &jwtinfra.Claims{SessionID: sess.SessionID, Role: domain.RoleVoter}
	return r.WithContext(middleware.WithSession(r.Context(), claims, sess))
}
