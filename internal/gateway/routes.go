// Package gateway wires the HTTP surface: routing, CORS, auth middleware and
// the per-domain handlers.
package gateway

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"schooladmin/internal/attendance"
	"schooladmin/internal/auth"
	"schooladmin/internal/calendar"
	"schooladmin/internal/course"
	"schooladmin/internal/gateway/handlers"
	"schooladmin/internal/grade"
	"schooladmin/internal/shared"
	"schooladmin/internal/subjectstatus"
	"schooladmin/internal/user"
)

// Services bundles everything the router needs.
type Services struct {
	Auth       *auth.Service
	Users      *user.Service
	Courses    *course.Service
	Calendar   *calendar.Service
	Grades     *grade.Service
	Attendance *attendance.Service
	Statuses   *subjectstatus.Service
}

// SetupRoutes configures the Chi router, middleware, and route handlers.
func SetupRoutes(config *shared.Config, svc *Services) *chi.Mux {
	r := chi.NewRouter()

	// 1. Global Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.CORS.AllowedOrigins,
		AllowedMethods:   config.CORS.AllowedMethods,
		AllowedHeaders:   config.CORS.AllowedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           config.CORS.MaxAge,
	}))

	// 2. Initialize Handlers
	authHandler := &handlers.AuthHandler{Auth: svc.Auth}
	userHandler := &handlers.UserHandler{Users: svc.Users}
	courseHandler := &handlers.CourseHandler{Courses: svc.Courses}
	calendarHandler := &handlers.CalendarHandler{Calendar: svc.Calendar}
	gradeHandler := &handlers.GradeHandler{Grades: svc.Grades, Courses: svc.Courses}
	attendanceHandler := &handlers.AttendanceHandler{Attendance: svc.Attendance}
	statusHandler := &handlers.SubjectStatusHandler{Statuses: svc.Statuses}

	// 3. Define Routes (grouped by prefix)
	r.Route("/api", func(r chi.Router) {

		// --- Public Routes ---
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// --- Protected Routes (Require Valid Token) ---
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(svc.Auth))

			r.Post("/auth/change-password", authHandler.ChangePassword)

			// Users (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleAdmin))
				r.Post("/", userHandler.CreateUser)
				r.Get("/", userHandler.ListUsers)
				r.Get("/{id}", userHandler.GetUser)
				r.Put("/{id}", userHandler.UpdateUser)
				r.Patch("/{id}/status", userHandler.SetUserStatus)
				r.Post("/{id}/reset-password", userHandler.ResetPassword)
			})

			// Courses & Subjects
			r.Route("/courses", func(r chi.Router) {
				r.Get("/", courseHandler.ListCourses)
				r.Get("/{id}", courseHandler.GetCourse)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(shared.RoleAdmin))
					r.Post("/", courseHandler.CreateCourse)
					r.Post("/{id}/subjects", courseHandler.AddSubject)
					r.Put("/{id}/subjects/{subjectId}/teacher", courseHandler.AssignTeacher)
					r.Post("/{id}/students", courseHandler.EnrollStudent)
					r.Delete("/{id}/students/{studentId}", courseHandler.WithdrawStudent)
					r.Post("/{id}/staff", courseHandler.AddStaff)
				})
			})
			r.Route("/subjects", func(r chi.Router) {
				r.Get("/", courseHandler.ListSubjects)
				r.With(RequireRole(shared.RoleAdmin)).Post("/", courseHandler.CreateSubject)
			})

			// Academic Calendar (admin only)
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/{year}", calendarHandler.GetConfig)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(shared.RoleAdmin))
					r.Post("/", calendarHandler.CreateConfig)
					r.Put("/{id}/periods/{periodKey}/evaluations/{type}", calendarHandler.UpdateEvaluation)
					r.Post("/{id}/periods/{periodKey}/close", calendarHandler.ClosePeriod)
					r.Post("/{id}/periods/{periodKey}/reopen", calendarHandler.ReopenPeriod)
				})
			})

			// Grades
			r.Route("/grades", func(r chi.Router) {
				r.Get("/course/{courseId}/student/{studentId}", gradeHandler.GetStudentGrades)

				r.Group(func(r chi.Router) {
					r.Use(RequireRole(shared.RoleAdmin, shared.RoleTeacher, shared.RolePreceptor))
					r.Put("/", gradeHandler.WriteGrade)
					r.Post("/batch", gradeHandler.WriteBatch)
					r.Get("/course/{courseId}", gradeHandler.GetCourseGrades)
					r.Get("/course/{courseId}/subject/{subjectId}", gradeHandler.GetSubjectGrades)
				})
			})

			// Subject Outcomes
			r.Route("/subject-status", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleAdmin, shared.RoleTeacher, shared.RolePreceptor))
				r.Post("/", statusHandler.CreateStatus)
				r.Get("/year/{year}", statusHandler.GetByYear)
				r.Get("/student/{studentId}/pending", statusHandler.GetPending)
			})

			// Attendance
			r.Route("/attendance", func(r chi.Router) {
				r.Use(RequireRole(shared.RoleAdmin, shared.RoleTeacher, shared.RolePreceptor))
				r.Put("/", attendanceHandler.RecordAttendance)
				r.Get("/course/{courseId}", attendanceHandler.GetCourseAttendance)
				r.Get("/course/{courseId}/student/{studentId}", attendanceHandler.GetStudentAttendance)
			})
		})
	})

	return r
}
