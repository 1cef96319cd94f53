package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"schooladmin/internal/course"
	"schooladmin/internal/gateway/util"
	"schooladmin/internal/grade"
	"schooladmin/internal/shared"
)

// GradeHandler exposes grade write and read routes. Writes first run the
// structural teaching-context checks, then hand off to the grade service for
// progression and calendar gating.
type GradeHandler struct {
	Grades  *grade.Service
	Courses *course.Service
}

// writeGradeRequest mirrors the JSON input for PUT /grades. Value null (or
// absent) clears the slot.
type writeGradeRequest struct {
	StudentID    string   `json:"student" validate:"required"`
	CourseID     string   `json:"course" validate:"required"`
	SubjectID    string   `json:"subject" validate:"required"`
	AcademicYear int      `json:"academicYear" validate:"required,gt=0"`
	Instance     string   `json:"instance" validate:"required"`
	Value        *float64 `json:"value"`
	IsRepeating  bool     `json:"isRepeating"`
}

// WriteGrade handles PUT /grades
func (h *GradeHandler) WriteGrade(w http.ResponseWriter, r *http.Request) {
	var req writeGradeRequest
	if err := util.DecodeAndValidate(r, &req); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	actor := util.ActorFromContext(r)

	if err := h.Courses.ValidateTeachingContext(r.Context(), req.CourseID, req.SubjectID, req.StudentID, actor); err != nil {
		util.HandleServiceError(w, err)
		return
	}

	record, err := h.Grades.WriteInstance(r.Context(), grade.WriteRequest{
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		SubjectID:    req.SubjectID,
		AcademicYear: req.AcademicYear,
		Instance:     req.Instance,
		Value:        req.Value,
		IsRepeating:  req.IsRepeating,
		Actor:        actor,
	})
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, record)
}

// WriteBatch handles POST /grades/batch
func (h *GradeHandler) WriteBatch(w http.ResponseWriter, r *http.Request) {
	var items []grade.BatchItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	actor := util.ActorFromContext(r)

	for _, item := range items {
		if err := h.Courses.ValidateTeachingContext(r.Context(), item.CourseID, item.SubjectID, item.StudentID, actor); err != nil {
			util.HandleServiceError(w, err)
			return
		}
	}

	result, err := h.Grades.WriteBatch(r.Context(), items, actor)
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, result)
}

// GetCourseGrades handles GET /grades/course/{courseId}
// Query Params: academicYear (optional), instance (optional)
func (h *GradeHandler) GetCourseGrades(w http.ResponseWriter, r *http.Request) {
	academicYear, _ := strconv.Atoi(r.URL.Query().Get("academicYear"))

	views, err := h.Grades.GetByCourse(r.Context(),
		chi.URLParam(r, "courseId"), academicYear, r.URL.Query().Get("instance"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, views)
}

// GetSubjectGrades handles GET /grades/course/{courseId}/subject/{subjectId}
// Query Params: academicYear (required), instance (optional)
func (h *GradeHandler) GetSubjectGrades(w http.ResponseWriter, r *http.Request) {
	academicYear, _ := strconv.Atoi(r.URL.Query().Get("academicYear"))

	views, err := h.Grades.GetByCourseAndSubject(r.Context(),
		chi.URLParam(r, "courseId"), chi.URLParam(r, "subjectId"),
		academicYear, r.URL.Query().Get("instance"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, views)
}

// GetStudentGrades handles GET /grades/course/{courseId}/student/{studentId}
// Students may only read their own ledger; staff roles may read anyone's.
func (h *GradeHandler) GetStudentGrades(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")

	actor := util.ActorFromContext(r)
	if actor.Role == shared.RoleStudent && actor.ID != studentID {
		util.WriteJSONError(w, http.StatusForbidden, "Access denied: students can only view their own grades")
		return
	}

	views, err := h.Grades.GetByCourseAndStudent(r.Context(),
		chi.URLParam(r, "courseId"), studentID, r.URL.Query().Get("instance"))
	if err != nil {
		util.HandleServiceError(w, err)
		return
	}

	util.WriteJSON(w, http.StatusOK, views)
}
