package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store"
)

// maxUploadSize bounds multipart uploads (enrollment images and
// attendance photos).
const maxUploadSize = 32 << 20

// StudentsHandler manages roster membership and enrollment images.
type StudentsHandler struct {
	students store.StudentStore
	refs     *refstore.Repository
	imageDir string
}

func NewStudentsHandler(students store.StudentStore, refs *refstore.Repository, imageDir string) *StudentsHandler {
	return &StudentsHandler{students: students, refs: refs, imageDir: imageDir}
}

type studentResponse struct {
	ID          int64  `json:"id"`
	RollNo      string `json:"roll_no"`
	Name        string `json:"name"`
	HasEncoding bool   `json:"has_encoding"`
}

// Add enrolls a student with their reference image. The image is
// stored on disk; the embedding is computed later by a re-encode, so
// a bad photo can be replaced without blocking enrollment.
func (h *StudentsHandler) Add(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	rollNo := strings.TrimSpace(r.FormValue("roll_no"))
	name := strings.TrimSpace(r.FormValue("name"))
	if rollNo == "" || name == "" {
		respondError(w, http.StatusBadRequest, "roll_no and name are required")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "enrollment image is required")
		return
	}
	defer file.Close()

	imagePath, err := h.saveEnrollmentImage(courseID, header.Filename, file)
	if err != nil {
		log.Printf("students: saving enrollment image: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	id, err := h.students.CreateStudent(r.Context(), store.Student{
		CourseID:  courseID,
		RollNo:    rollNo,
		Name:      name,
		ImagePath: imagePath,
	})
	if errors.Is(err, store.ErrDuplicate) {
		os.Remove(imagePath)
		respondError(w, http.StatusConflict, fmt.Sprintf("roll no %s already exists in this course", rollNo))
		return
	}
	if err != nil {
		os.Remove(imagePath)
		log.Printf("students: creating %s: %v", sanitizeForLog(rollNo), err)
		respondError(w, http.StatusInternalServerError, "failed to create student")
		return
	}

	respondJSON(w, http.StatusCreated, studentResponse{ID: id, RollNo: rollNo, Name: name})
}

// saveEnrollmentImage writes the upload under the course's image
// directory with a collision-proof name.
func (h *StudentsHandler) saveEnrollmentImage(courseID int64, filename string, src io.Reader) (string, error) {
	dir := filepath.Join(h.imageDir, fmt.Sprintf("course_%d", courseID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating image dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(dir, uuid.New().String()+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating image file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing image file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing image file: %w", err)
	}
	return path, nil
}

// List returns the course roster with per-student encoding state.
func (h *StudentsHandler) List(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	roster, err := h.students.StudentsByCourse(r.Context(), courseID)
	if err != nil {
		log.Printf("students: listing course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}

	set := h.refs.Get(courseID)
	out := make([]studentResponse, 0, len(roster))
	for _, s := range roster {
		_, encoded := set.Get(s.ID)
		out = append(out, studentResponse{
			ID:          s.ID,
			RollNo:      s.RollNo,
			Name:        s.Name,
			HasEncoding: encoded,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
