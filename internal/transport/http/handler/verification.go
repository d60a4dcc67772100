package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/securevote-api/internal/application/verification"
	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/pkg/validate"
	"github.com/securevote-api/internal/transport/http/middleware"
)

// maxImageBytes bounds a face request body.
const maxImageBytes = 10 << 20

var errBadImage = errors.New("image must be base64 or a base64 data URI")

// VerificationHandler drives the register, login and vote flows:
// POST /verification/{flow}/{action} with action request-otp, validate-otp or face.
type VerificationHandler struct {
	svc verification.Service
}

func NewVerificationHandler(svc verification.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) Step(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	flow, err := domain.ParseFlow(chi.URLParam(r, "flow"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown flow")
		return
	}
	switch chi.URLParam(r, "action") {
	case "request-otp":
		h.requestOTP(w, r, sess, flow)
	case "validate-otp":
		h.validateOTP(w, r, sess, flow)
	case "face":
		h.face(w, r, sess, flow)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (h *VerificationHandler) requestOTP(w http.ResponseWriter, r *http.Request, sess *domain.Session, flow domain.Flow) {
	var req verification.RequestOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.svc.RequestOTP(r.Context(), sess, flow, req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent to your registered email"})
}

func (h *VerificationHandler) validateOTP(w http.ResponseWriter, r *http.Request, sess *domain.Session, flow domain.Flow) {
	var req verification.ValidateOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OTP = strings.TrimSpace(req.OTP)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.svc.ValidateOTP(r.Context(), sess, flow, req.OTP); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified"})
}

func (h *VerificationHandler) face(w http.ResponseWriter, r *http.Request, sess *domain.Session, flow domain.Flow) {
	var req verification.FaceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxImageBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	img, err := decodeImage(req.Image)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.VerifyFace(r.Context(), sess, flow, img); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Session: sess, Message: faceMessage(flow)})
}

func faceMessage(flow domain.Flow) string {
	switch flow {
	case domain.FlowRegister:
		return "registration complete"
	case domain.FlowLogin:
		return "login successful"
	default:
		return "verification complete, you may now cast your vote"
	}
}

// decodeImage accepts raw base64 or a "data:image/...;base64," URI.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		_, payload, ok := strings.Cut(s, ",")
		if !ok {
			return nil, errBadImage
		}
		s = payload
	}
	s = strings.TrimSpace(s)
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, errBadImage
		}
	}
	if len(b) == 0 {
		return nil, errBadImage
	}
	return b, nil
}
