package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schooladmin/internal/calendar"
	"schooladmin/internal/gateway/util"
)

// CalendarHandler exposes academic-year configuration routes.
type CalendarHandler struct {
	Calendar *calendar.Service
}

type createConfigRequest struct {
	AcademicYear int                    `json:"academicYear" validate:"required,gt=0"`
	Periods      []calendar.PeriodInput `json:"periods" validate:"required,min=1,dive"`
}

// CreateConfig handles POST /calendar
func (h *CalendarHandler) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var req createConfigRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	actor := util.ActorFromContext(r)
	cfg, err := h.Calendar.Create(r.Context(), req.AcademicYear, req.Periods, actor.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, cfg)
}

// GetConfig handles GET /calendar/{year}
func (h *CalendarHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "year must be a number")
		return
	}

	cfg, err := h.Calendar.Get(r.Context(), year)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, cfg)
}

// UpdateEvaluation handles PUT /calendar/{id}/periods/{periodKey}/evaluations/{type}
func (h *CalendarHandler) UpdateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req calendar.EvaluationInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	actor := util.ActorFromContext(r)
	cfg, err := h.Calendar.UpdateEvaluation(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "periodKey"), chi.URLParam(r, "type"),
		req, actor.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, cfg)
}

// ClosePeriod handles POST /calendar/{id}/periods/{periodKey}/close
func (h *CalendarHandler) ClosePeriod(w http.ResponseWriter, r *http.Request) {
	actor := util.ActorFromContext(r)
	cfg, err := h.Calendar.ClosePeriod(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "periodKey"), actor.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, cfg)
}

// ReopenPeriod handles POST /calendar/{id}/periods/{periodKey}/reopen
func (h *CalendarHandler) ReopenPeriod(w http.ResponseWriter, r *http.Request) {
	actor := util.ActorFromContext(r)
	cfg, err := h.Calendar.ReopenPeriod(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "periodKey"), actor.ID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, cfg)
}
