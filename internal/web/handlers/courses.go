package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/classware/attendance/internal/store"
)

// CoursesHandler manages courses.
type CoursesHandler struct {
	courses store.CourseStore
}

func NewCoursesHandler(courses store.CourseStore) *CoursesHandler {
	return &CoursesHandler{courses: courses}
}

type createCourseRequest struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	TeacherID int64  `json:"teacher_id"`
}

type courseResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

// Create adds a course for a teacher.
func (h *CoursesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Code == "" || req.TeacherID <= 0 {
		respondError(w, http.StatusBadRequest, "name, code and teacher_id are required")
		return
	}

	id, err := h.courses.CreateCourse(r.Context(), store.Course{
		Name:      req.Name,
		Code:      req.Code,
		TeacherID: req.TeacherID,
	})
	if errors.Is(err, store.ErrDuplicate) {
		respondError(w, http.StatusConflict, "course code already exists")
		return
	}
	if err != nil {
		log.Printf("courses: creating %s: %v", sanitizeForLog(req.Code), err)
		respondError(w, http.StatusInternalServerError, "failed to create course")
		return
	}

	respondJSON(w, http.StatusCreated, courseResponse{ID: id, Name: req.Name, Code: req.Code})
}

// ListByTeacher lists a teacher's courses.
func (h *CoursesHandler) ListByTeacher(w http.ResponseWriter, r *http.Request) {
	teacherID, ok := urlID(r, "teacherID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid teacher ID")
		return
	}

	courses, err := h.courses.CoursesByTeacher(r.Context(), teacherID)
	if err != nil {
		log.Printf("courses: listing for teacher %d: %v", teacherID, err)
		respondError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}

	out := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		out = append(out, courseResponse{ID: c.ID, Name: c.Name, Code: c.Code})
	}
	respondJSON(w, http.StatusOK, out)
}
