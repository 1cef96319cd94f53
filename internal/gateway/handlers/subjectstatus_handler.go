package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schooladmin/internal/gateway/util"
	"schooladmin/internal/subjectstatus"
)

// SubjectStatusHandler exposes pass/fail outcome routes.
type SubjectStatusHandler struct {
	Statuses *subjectstatus.Service
}

// CreateStatus handles POST /subject-status
func (h *SubjectStatusHandler) CreateStatus(w http.ResponseWriter, r *http.Request) {
	var req subjectstatus.CreateInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	created, err := h.Statuses.Create(r.Context(), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, created)
}

// GetByYear handles GET /subject-status/year/{year}
func (h *SubjectStatusHandler) GetByYear(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "year must be a number")
		return
	}

	views, err := h.Statuses.GetByYear(r.Context(), year)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, views)
}

// GetPending handles GET /subject-status/student/{studentId}/pending
func (h *SubjectStatusHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Statuses.PendingByStudent(r.Context(), chi.URLParam(r, "studentId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, pending)
}
