package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/classware/attendance/internal/attendance"
	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store"
)

// AttendanceDeps carries the attendance handler's collaborators.
type AttendanceDeps struct {
	Students   store.StudentStore
	Attendance store.AttendanceStore
	Refs       *refstore.Repository
	Detector   recognition.Detector
	OpenVideo  func(path string) (recognition.FrameSource, error)
	Matching   config.MatchingConfig
	UploadDir  string
}

// AttendanceHandler takes attendance from images and videos and
// serves the resulting state.
type AttendanceHandler struct {
	deps AttendanceDeps
	rec  *attendance.Reconciler
}

func NewAttendanceHandler(deps AttendanceDeps) *AttendanceHandler {
	return &AttendanceHandler{
		deps: deps,
		rec:  &attendance.Reconciler{Store: deps.Attendance},
	}
}

type attendanceReport struct {
	CourseID     int64            `json:"course_id"`
	Date         string           `json:"date"`
	PresentCount int              `json:"present_count"`
	PresentNames []string         `json:"present_names"`
	Students     []attendance.Row `json:"students"`
}

// MatchImage takes attendance from one classroom photo: detect faces,
// match against the course references, reconcile the full roster.
func (h *AttendanceHandler) MatchImage(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	embeddings, err := h.deps.Detector.DetectEmbeddings(r.Context(), image)
	if err != nil {
		log.Printf("attendance: detection failed for course %d: %v", courseID, err)
		respondError(w, http.StatusBadGateway, "face detection failed")
		return
	}

	set := h.deps.Refs.Get(courseID)
	present := recognition.Match(embeddings, set, h.deps.Matching.Threshold)
	h.reconcileAndRespond(w, r, courseID, present)
}

// MatchVideo takes attendance from an uploaded video, sampling frames
// at the configured stride. Decode failures mid-stream keep the
// partial result: some attendance beats none.
func (h *AttendanceHandler) MatchVideo(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(w, http.StatusBadRequest, "video is required")
		return
	}
	defer file.Close()

	tmpPath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		log.Printf("attendance: saving video upload: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to store video")
		return
	}
	defer os.Remove(tmpPath)

	src, err := h.deps.OpenVideo(tmpPath)
	if err != nil {
		log.Printf("attendance: opening video for course %d: %v", courseID, err)
		respondError(w, http.StatusBadRequest, "failed to open video")
		return
	}

	set := h.deps.Refs.Get(courseID)
	present, err := recognition.MatchVideo(r.Context(), src, h.deps.Detector, set, h.deps.Matching.Stride, h.deps.Matching.Threshold)
	if err != nil {
		// Only cancellation reaches here; decode failures are absorbed.
		respondError(w, http.StatusRequestTimeout, "video processing cancelled")
		return
	}

	h.reconcileAndRespond(w, r, courseID, present)
}

// saveUpload spills the video to the upload dir; OpenCV needs a file.
func (h *AttendanceHandler) saveUpload(src io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(h.deps.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	ext := filepath.Ext(filepath.Base(filename))
	path := filepath.Join(h.deps.UploadDir, uuid.New().String()+ext)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("closing upload file: %w", err)
	}
	return path, nil
}

func (h *AttendanceHandler) reconcileAndRespond(w http.ResponseWriter, r *http.Request, courseID int64, present recognition.PresentSet) {
	roster, err := h.deps.Students.StudentsByCourse(r.Context(), courseID)
	if err != nil {
		log.Printf("attendance: reading roster for course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to read roster")
		return
	}

	date := store.Today()
	rows, err := h.rec.Reconcile(r.Context(), courseID, date, present, roster)
	if err != nil {
		log.Printf("attendance: reconciling course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	var presentNames []string
	for _, row := range rows {
		if row.Status == store.StatusPresent {
			presentNames = append(presentNames, fmt.Sprintf("%s - %s", row.RollNo, row.Name))
		}
	}

	respondJSON(w, http.StatusOK, attendanceReport{
		CourseID:     courseID,
		Date:         date,
		PresentCount: len(presentNames),
		PresentNames: presentNames,
		Students:     rows,
	})
}

type dayEntry struct {
	StudentID int64        `json:"student_id"`
	RollNo    string       `json:"roll_no"`
	Name      string       `json:"name"`
	Status    store.Status `json:"status"`
	Date      string       `json:"date"`
	Time      string       `json:"time,omitempty"`
}

// Today returns the full roster with today's status. Students without
// a record yet default to Absent.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	roster, err := h.deps.Students.StudentsByCourse(r.Context(), courseID)
	if err != nil {
		log.Printf("attendance: reading roster for course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to read roster")
		return
	}

	date := store.Today()
	records, err := h.deps.Attendance.AttendanceForDay(r.Context(), courseID, date)
	if err != nil {
		log.Printf("attendance: reading day for course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	byStudent := make(map[int64]store.AttendanceRecord, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	out := make([]dayEntry, 0, len(roster))
	for _, s := range roster {
		entry := dayEntry{
			StudentID: s.ID,
			RollNo:    s.RollNo,
			Name:      s.Name,
			Status:    store.StatusAbsent,
			Date:      date,
		}
		if rec, found := byStudent[s.ID]; found {
			entry.Status = rec.Status
			entry.Time = rec.MarkedAt
		}
		out = append(out, entry)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"course_id":  courseID,
		"date":       date,
		"attendance": out,
	})
}

type updateRequest struct {
	Status store.Status `json:"status"`
}

// Update manually overrides one student's status for today.
func (h *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}
	studentID, ok := urlID(r, "studentID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != store.StatusPresent && req.Status != store.StatusAbsent {
		respondError(w, http.StatusBadRequest, "status must be Present or Absent")
		return
	}

	err := h.deps.Attendance.UpsertAttendance(r.Context(), store.AttendanceRecord{
		StudentID: studentID,
		CourseID:  courseID,
		Date:      store.Today(),
		Status:    req.Status,
		MarkedAt:  time.Now().Format(store.TimeFormat),
	})
	if err != nil {
		log.Printf("attendance: updating student %d in course %d: %v", studentID, courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to update attendance")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"student_id": studentID,
		"status":     req.Status,
	})
}

// ExportCSV streams the course's full attendance history.
func (h *AttendanceHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid course ID")
		return
	}

	roster, err := h.deps.Students.StudentsByCourse(r.Context(), courseID)
	if err != nil {
		log.Printf("attendance: reading roster for course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to read roster")
		return
	}
	records, err := h.deps.Attendance.AttendanceByCourse(r.Context(), courseID)
	if err != nil {
		log.Printf("attendance: reading history for course %d: %v", courseID, err)
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	byID := make(map[int64]store.Student, len(roster))
	for _, s := range roster {
		byID[s.ID] = s
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="course_%d_attendance.csv"`, courseID))

	writer := csv.NewWriter(w)
	writer.Write([]string{"Roll No", "Name", "Date", "Time", "Status"})
	for _, rec := range records {
		s, found := byID[rec.StudentID]
		if !found {
			continue
		}
		writer.Write([]string{s.RollNo, s.Name, rec.Date, rec.MarkedAt, string(rec.Status)})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Printf("attendance: writing CSV for course %d: %v", courseID, err)
	}
}
