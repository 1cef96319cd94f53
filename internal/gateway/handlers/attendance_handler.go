package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schooladmin/internal/attendance"
	"schooladmin/internal/gateway/util"
)

// AttendanceHandler exposes daily attendance routes.
type AttendanceHandler struct {
	Attendance *attendance.Service
}

// RecordAttendance handles PUT /attendance
func (h *AttendanceHandler) RecordAttendance(w http.ResponseWriter, r *http.Request) {
	var req attendance.RecordInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	rec, err := h.Attendance.Record(r.Context(), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	if rec == nil {
		util.WriteJSON(w, http.StatusOK, map[string]interface{}{"message": "Attendance record removed"})
		return
	}
	util.WriteJSON(w, http.StatusOK, rec)
}

// GetCourseAttendance handles GET /attendance/course/{courseId}
// Query Params: date (required, YYYY-MM-DD)
func (h *AttendanceHandler) GetCourseAttendance(w http.ResponseWriter, r *http.Request) {
	records, err := h.Attendance.GetByCourseAndDate(r.Context(),
		chi.URLParam(r, "courseId"), r.URL.Query().Get("date"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, records)
}

// GetStudentAttendance handles GET /attendance/course/{courseId}/student/{studentId}
// Query Params: academicYear (required), trimester (optional)
func (h *AttendanceHandler) GetStudentAttendance(w http.ResponseWriter, r *http.Request) {
	academicYear, _ := strconv.Atoi(r.URL.Query().Get("academicYear"))
	trimester, _ := strconv.Atoi(r.URL.Query().Get("trimester"))

	records, err := h.Attendance.GetByStudent(r.Context(),
		chi.URLParam(r, "studentId"), chi.URLParam(r, "courseId"),
		academicYear, trimester)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, records)
}
