package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schooladmin/internal/course"
	"schooladmin/internal/gateway/util"
)

// CourseHandler exposes course, subject and enrollment routes.
type CourseHandler struct {
	Courses *course.Service
}

type assignTeacherRequest struct {
	TeacherID string `json:"teacherId" validate:"required"`
}

type addSubjectRequest struct {
	SubjectID string `json:"subjectId" validate:"required"`
	TeacherID string `json:"teacherId"`
}

type enrollRequest struct {
	StudentID string `json:"studentId" validate:"required"`
}

type addStaffRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

// CreateCourse handles POST /courses
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req course.CreateCourseInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	created, err := h.Courses.CreateCourse(r.Context(), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, created)
}

// ListCourses handles GET /courses
// Query Params: academicYear (optional)
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	academicYear, _ := strconv.Atoi(r.URL.Query().Get("academicYear"))

	courses, err := h.Courses.ListCourses(r.Context(), academicYear)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, courses)
}

// GetCourse handles GET /courses/{id}
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	found, err := h.Courses.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, found)
}

// AddSubject handles POST /courses/{id}/subjects
func (h *CourseHandler) AddSubject(w http.ResponseWriter, r *http.Request) {
	var req addSubjectRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	updated, err := h.Courses.AddSubject(r.Context(), chi.URLParam(r, "id"), req.SubjectID, req.TeacherID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, updated)
}

// AssignTeacher handles PUT /courses/{id}/subjects/{subjectId}/teacher
func (h *CourseHandler) AssignTeacher(w http.ResponseWriter, r *http.Request) {
	var req assignTeacherRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	updated, err := h.Courses.AssignSubjectTeacher(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "subjectId"), req.TeacherID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, updated)
}

// EnrollStudent handles POST /courses/{id}/students
func (h *CourseHandler) EnrollStudent(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	updated, err := h.Courses.EnrollStudent(r.Context(), chi.URLParam(r, "id"), req.StudentID)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, updated)
}

// WithdrawStudent handles DELETE /courses/{id}/students/{studentId}
func (h *CourseHandler) WithdrawStudent(w http.ResponseWriter, r *http.Request) {
	updated, err := h.Courses.WithdrawStudent(r.Context(),
		chi.URLParam(r, "id"), chi.URLParam(r, "studentId"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, updated)
}

// AddStaff handles POST /courses/{id}/staff
func (h *CourseHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	var req addStaffRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	updated, err := h.Courses.AddStaff(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Role)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, updated)
}

// CreateSubject handles POST /subjects
func (h *CourseHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req course.CreateSubjectInput
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	created, err := h.Courses.CreateSubject(r.Context(), req)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusCreated, created)
}

// ListSubjects handles GET /subjects
// Query Params: academicYear (optional)
func (h *CourseHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	academicYear, _ := strconv.Atoi(r.URL.Query().Get("academicYear"))

	subjects, err := h.Courses.ListSubjects(r.Context(), academicYear)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, subjects)
}
