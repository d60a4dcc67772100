package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/securevote-api/internal/application/verification"
	"github.com/securevote-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func stepReq(t *testing.T, sess *domain.Session, flow, action string, body interface{}) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/v1/verification/"+flow+"/"+action, bytes.NewReader(b))
	return withParams(asVoter(r, sess), "flow", flow, "action", action)
}

func TestStep_NoSession(t *testing.T) {
	h := NewVerificationHandler(&mockVerificationSvc{})
	r := withParams(httptest.NewRequest(http.MethodPost, "/", nil), "flow", "login", "action", "request-otp")
	rr := httptest.NewRecorder()
	h.Step(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStep_UnknownFlowOrAction(t *testing.T) {
	h := NewVerificationHandler(&mockVerificationSvc{})
	sess := &domain.Session{SessionID: "s1"}

	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, sess, "recount", "request-otp", map[string]string{}))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Step(rr, stepReq(t, sess, "login", "skip", map[string]string{}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStep_RequestOTP(t *testing.T) {
	svc := &mockVerificationSvc{}
	sess := &domain.Session{SessionID: "s1"}
	req := verification.RequestOTPRequest{VoterID: "S001", Email: "a@campus.edu"}
	svc.On("RequestOTP", mock.Anything, sess, domain.FlowRegister, req).Return(nil)
	h := NewVerificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, sess, "register", "request-otp", req))
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestStep_RequestOTP_NotEligible(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("RequestOTP", mock.Anything, mock.Anything, domain.FlowRegister, mock.Anything).Return(domain.ErrNotEligible)
	h := NewVerificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, &domain.Session{SessionID: "s1"}, "register", "request-otp", verification.RequestOTPRequest{VoterID: "X"}))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	svc.AssertExpectations(t)
}

func TestStep_ValidateOTP_MalformedCodeIsMismatch(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("ValidateOTP", mock.Anything, mock.Anything, domain.FlowLogin, "12ab").Return(domain.ErrOtpMismatch)
	h := NewVerificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, &domain.Session{SessionID: "s1"}, "login", "validate-otp", verification.ValidateOTPRequest{OTP: "12ab"}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "otp_mismatch", resp.ErrorCode)
	svc.AssertExpectations(t)
}

func TestStep_ValidateOTP_MissingCode(t *testing.T) {
	svc := &mockVerificationSvc{}
	h := NewVerificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, &domain.Session{SessionID: "s1"}, "login", "validate-otp", verification.ValidateOTPRequest{}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	svc.AssertNotCalled(t, "ValidateOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStep_ValidateOTP_Expired(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("ValidateOTP", mock.Anything, mock.Anything, domain.FlowLogin, "123456").Return(domain.ErrOtpExpired)
	h := NewVerificationHandler(svc)

	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, &domain.Session{SessionID: "s1"}, "login", "validate-otp", verification.ValidateOTPRequest{OTP: " 123456 "}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "request_otp", resp.RetryStep)
	svc.AssertExpectations(t)
}

func TestStep_Face_DecodesDataURI(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff, 0xe0}
	svc := &mockVerificationSvc{}
	sess := &domain.Session{SessionID: "s1"}
	svc.On("VerifyFace", mock.Anything, sess, domain.FlowLogin, img).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Session).VoterID = "S001"
		}).
		Return(nil)
	h := NewVerificationHandler(svc)

	body := verification.FaceRequest{Image: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img)}
	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, sess, "login", "face", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp SessionEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.NotNil(t, resp.Session)
	assert.Equal(t, "S001", resp.Session.VoterID)
	svc.AssertExpectations(t)
}

func TestStep_Face_NoFaceDetected(t *testing.T) {
	svc := &mockVerificationSvc{}
	svc.On("VerifyFace", mock.Anything, mock.Anything, domain.FlowVote, mock.Anything).Return(domain.ErrNoFaceDetected)
	h := NewVerificationHandler(svc)

	body := verification.FaceRequest{Image: base64.StdEncoding.EncodeToString([]byte("blank"))}
	rr := httptest.NewRecorder()
	h.Step(rr, stepReq(t, &domain.Session{SessionID: "s1"}, "vote", "face", body))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestDecodeImage(t *testing.T) {
	raw := []byte("jpeg-bytes")

	b, err := decodeImage(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	b, err = decodeImage(base64.RawStdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	_, err = decodeImage("data:image/png;base64")
	assert.Error(t, err)

	_, err = decodeImage("%%%")
	assert.Error(t, err)
}
