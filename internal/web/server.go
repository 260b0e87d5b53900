// Package web provides the HTTP API for enrollment, encoding and
// attendance taking.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store"
	"github.com/classware/attendance/internal/web/middleware"
)

// Deps carries everything the handlers need, injected at startup.
type Deps struct {
	Config     *config.Config
	Refs       *refstore.Repository
	Detector   recognition.Detector
	Teachers   store.TeacherStore
	Courses    store.CourseStore
	Students   store.StudentStore
	Attendance store.AttendanceStore

	// OpenVideo opens a FrameSource over an uploaded video file. The
	// serve command wires the OpenCV-backed source; tests substitute
	// stubs.
	OpenVideo func(path string) (recognition.FrameSource, error)
}

// Server is the attendance HTTP server.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer builds the router and HTTP server.
func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())

	s := &Server{router: r}
	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // video uploads take a while
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	log.Printf("Starting attendance server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down attendance server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
