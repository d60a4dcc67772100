package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/securevote-api/internal/application/election"
	"github.com/securevote-api/internal/application/voter"
	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/pkg/validate"
)

// maxRosterBytes bounds a roster upload.
const maxRosterBytes = 32 << 20

// AdminHandler serves the admin dashboard, roster import and election management.
type AdminHandler struct {
	elections election.Service
	voters    voter.Service
}

func NewAdminHandler(elections election.Service, voters voter.Service) *AdminHandler {
	return &AdminHandler{elections: elections, voters: voters}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.voters.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ImportVoters takes a multipart upload with the workbook in field "file".
func (h *AdminHandler) ImportVoters(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRosterBytes)
	if err := r.ParseMultipartForm(maxRosterBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer f.Close()

	result, err := h.voters.Import(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) CreateElection(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	detail, err := h.elections.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *AdminHandler) ListElections(w http.ResponseWriter, r *http.Request) {
	list, err := h.elections.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ElectionsEnvelope{Data: list})
}

func (h *AdminHandler) GetElection(w http.ResponseWriter, r *http.Request) {
	detail, err := h.elections.Detail(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *AdminHandler) ToggleElection(w http.ResponseWriter, r *http.Request) {
	e, err := h.elections.Toggle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *AdminHandler) Results(w http.ResponseWriter, r *http.Request) {
	res, err := h.elections.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
