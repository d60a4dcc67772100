package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/securevote-api/internal/application/session"
	"github.com/securevote-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStart(t *testing.T) {
	svc := &mockSessionSvc{}
	sess := &domain.Session{SessionID: "s1", Role: domain.RoleVoter, Enable: true}
	svc.On("Start", mock.Anything).Return(&session.StartResult{Bearer: "tok", Session: sess}, nil)
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Start(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp AuthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "tok", resp.Bearer)
	assert.Equal(t, "s1", resp.Session.SessionID)
}

func TestGetCurrent(t *testing.T) {
	h := NewSessionHandler(&mockSessionSvc{})

	rr := httptest.NewRecorder()
	h.GetCurrent(rr, httptest.NewRequest(http.MethodGet, "/v1/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	sess := &domain.Session{SessionID: "s1", PendingVoterID: "S001", PendingEmail: "a@campus.edu", OTPVerified: true}
	rr = httptest.NewRecorder()
	h.GetCurrent(rr, asVoter(httptest.NewRequest(http.MethodGet, "/v1/sessions", nil), sess))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "a@campus.edu")
	assert.Contains(t, rr.Body.String(), `"otp_verified":true`)
}

func TestLogout(t *testing.T) {
	svc := &mockSessionSvc{}
	sess := &domain.Session{SessionID: "s1", VoterID: "S001"}
	svc.On("Logout", mock.Anything, sess).Return(nil)
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Logout(rr, asVoter(httptest.NewRequest(http.MethodPost, "/v1/sessions/logout", nil), sess))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestAdminLogin_ValidationFailure(t *testing.T) {
	svc := &mockSessionSvc{}
	h := NewSessionHandler(svc)
	body, _ := json.Marshal(session.AdminLoginRequest{Username: "admin"})

	rr := httptest.NewRecorder()
	h.AdminLogin(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/sessions", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestAdminLogin_BadCredentials(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("AdminLogin", mock.Anything, mock.Anything).Return(nil, domain.ErrUnauthorized)
	h := NewSessionHandler(svc)
	body, _ := json.Marshal(session.AdminLoginRequest{Username: "admin", Password: "nope"})

	rr := httptest.NewRecorder()
	h.AdminLogin(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/sessions", bytes.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertExpectations(t)
}

func TestAdminGoogleLogin_NotAnAdmin(t *testing.T) {
	svc := &mockSessionSvc{}
	svc.On("AdminGoogleLogin", mock.Anything, session.GoogleLoginRequest{IDToken: "tok"}).Return(nil, domain.ErrForbidden)
	h := NewSessionHandler(svc)
	body, _ := json.Marshal(session.GoogleLoginRequest{IDToken: "tok"})

	rr := httptest.NewRecorder()
	h.AdminGoogleLogin(rr, httptest.NewRequest(http.MethodPost, "/v1/admin/sessions/google", bytes.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	svc.AssertExpectations(t)
}
