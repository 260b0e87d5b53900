package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/classware/attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.Teachers)
	coursesHandler := handlers.NewCoursesHandler(deps.Courses)
	studentsHandler := handlers.NewStudentsHandler(deps.Students, deps.Refs, deps.Config.Storage.StudentImageDir)
	encodingsHandler := handlers.NewEncodingsHandler(deps.Students, deps.Refs, deps.Detector)
	attendanceHandler := handlers.NewAttendanceHandler(handlers.AttendanceDeps{
		Students:   deps.Students,
		Attendance: deps.Attendance,
		Refs:       deps.Refs,
		Detector:   deps.Detector,
		OpenVideo:  deps.OpenVideo,
		Matching:   deps.Config.Matching,
		UploadDir:  deps.Config.Storage.UploadDir,
	})

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)

		r.Post("/courses", coursesHandler.Create)
		r.Get("/teachers/{teacherID}/courses", coursesHandler.ListByTeacher)

		r.Post("/courses/{courseID}/students", studentsHandler.Add)
		r.Get("/courses/{courseID}/students", studentsHandler.List)

		r.Post("/courses/{courseID}/encodings", encodingsHandler.Rebuild)
		r.Get("/courses/{courseID}/encodings", encodingsHandler.List)

		r.Post("/courses/{courseID}/attendance/image", attendanceHandler.MatchImage)
		r.Post("/courses/{courseID}/attendance/video", attendanceHandler.MatchVideo)
		r.Get("/courses/{courseID}/attendance/today", attendanceHandler.Today)
		r.Put("/courses/{courseID}/attendance/{studentID}", attendanceHandler.Update)
		r.Get("/courses/{courseID}/attendance/export", attendanceHandler.ExportCSV)
	})
}
