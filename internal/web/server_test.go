package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/classware/attendance/internal/config"
	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/refstore"
	"github.com/classware/attendance/internal/store"
	"github.com/classware/attendance/internal/store/mock"
)

// stubDetector maps image bytes to canned embeddings. Unknown images
// yield no faces.
type stubDetector struct {
	faces map[string][][]float32
}

func (d *stubDetector) DetectEmbeddings(ctx context.Context, image []byte) ([][]float32, error) {
	return d.faces[string(image)], nil
}

// stubFrameSource plays back a fixed frame sequence.
type stubFrameSource struct {
	frames [][]byte
	pos    int
}

func (s *stubFrameSource) Next() ([]byte, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *stubFrameSource) Close() error { return nil }

type testEnv struct {
	router   http.Handler
	store    *mock.Store
	refs     *refstore.Repository
	detector *stubDetector
	frames   *[][]byte
	imageDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	detector := &stubDetector{faces: make(map[string][][]float32)}
	mockStore := mock.New()
	refs := refstore.New(t.TempDir())
	imageDir := t.TempDir()
	frames := &[][]byte{}

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Storage: config.StorageConfig{
			SnapshotDir:     t.TempDir(),
			StudentImageDir: imageDir,
			UploadDir:       t.TempDir(),
		},
		Matching: config.MatchingConfig{
			Threshold: 0.45,
			Stride:    2,
			Dim:       3,
		},
	}

	srv := NewServer(Deps{
		Config:     cfg,
		Refs:       refs,
		Detector:   detector,
		Teachers:   mockStore,
		Courses:    mockStore,
		Students:   mockStore,
		Attendance: mockStore,
		OpenVideo: func(path string) (recognition.FrameSource, error) {
			return &stubFrameSource{frames: *frames}, nil
		},
	})

	return &testEnv{
		router:   srv.Router(),
		store:    mockStore,
		refs:     refs,
		detector: detector,
		frames:   frames,
		imageDir: imageDir,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	return e.do(t, method, path, bytes.NewReader(body), "application/json")
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

// multipartBody builds a multipart form with fields and one file part.
func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		t.Fatalf("creating file part: %v", err)
	}
	if _, err := part.Write(fileContent); err != nil {
		t.Fatalf("writing file part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"name":     "Ada Lovelace",
		"email":    "Ada@Example.com",
		"password": "secret",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	created := decodeBody[map[string]any](t, rec)
	if created["email"] != "ada@example.com" {
		t.Errorf("email = %v, want normalized lowercase", created["email"])
	}

	// Duplicate email
	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"name":     "Ada Again",
		"email":    "ada@example.com",
		"password": "other",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = env.doJSON(t, http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad password login status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateCourse(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/courses", map[string]any{
		"name":       "Distributed Systems",
		"code":       "CS-501",
		"teacher_id": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create course status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	rec = env.doJSON(t, http.MethodPost, "/api/v1/courses", map[string]any{
		"name":       "Distributed Systems (repeat)",
		"code":       "CS-501",
		"teacher_id": 1,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate code status = %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/teachers/1/courses", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list courses status = %d, want %d", rec.Code, http.StatusOK)
	}
	courses := decodeBody[[]map[string]any](t, rec)
	if len(courses) != 1 {
		t.Errorf("len(courses) = %d, want 1", len(courses))
	}
}

func TestAddStudent(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)

	body, contentType := multipartBody(t, map[string]string{
		"roll_no": "R-001",
		"name":    "Grace Hopper",
	}, "image", "grace.jpg", []byte("grace-image"))

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/students", courseID), body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add student status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	// Duplicate roll number in the same course
	body, contentType = multipartBody(t, map[string]string{
		"roll_no": "R-001",
		"name":    "Grace Again",
	}, "image", "grace2.jpg", []byte("grace-image-2"))
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/students", courseID), body, contentType)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate roll status = %d, want %d", rec.Code, http.StatusConflict)
	}

	// The rejected upload must not leave an orphaned file behind.
	files, err := os.ReadDir(filepath.Join(env.imageDir, fmt.Sprintf("course_%d", courseID)))
	if err != nil {
		t.Fatalf("reading image dir: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("image dir has %d files, want 1", len(files))
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/students", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list students status = %d, want %d", rec.Code, http.StatusOK)
	}
	students := decodeBody[[]map[string]any](t, rec)
	if len(students) != 1 {
		t.Fatalf("len(students) = %d, want 1", len(students))
	}
	if students[0]["has_encoding"] != false {
		t.Errorf("has_encoding = %v before rebuild, want false", students[0]["has_encoding"])
	}
}

// createCourse seeds one course through the API and returns its ID.
func (e *testEnv) createCourse(t *testing.T) int64 {
	t.Helper()
	rec := e.doJSON(t, http.MethodPost, "/api/v1/courses", map[string]any{
		"name":       "Test Course",
		"code":       "TC-100",
		"teacher_id": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seeding course: status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[map[string]any](t, rec)
	return int64(created["id"].(float64))
}

// seedStudent inserts a student directly with an on-disk enrollment
// image whose content the stub detector can key on.
func (e *testEnv) seedStudent(t *testing.T, courseID int64, rollNo, name string, imageContent []byte) int64 {
	t.Helper()
	path := filepath.Join(e.imageDir, fmt.Sprintf("%s.jpg", rollNo))
	if err := os.WriteFile(path, imageContent, 0o600); err != nil {
		t.Fatalf("writing enrollment image: %v", err)
	}
	id, err := e.store.CreateStudent(context.Background(), store.Student{
		CourseID:  courseID,
		RollNo:    rollNo,
		Name:      name,
		ImagePath: path,
	})
	if err != nil {
		t.Fatalf("seeding student %s: %v", rollNo, err)
	}
	return id
}

func TestRebuildEncodings(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)

	aliceID := env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))
	bobID := env.seedStudent(t, courseID, "R-002", "Bob", []byte("bob-img"))
	env.seedStudent(t, courseID, "R-003", "Carol", []byte("carol-img"))

	env.detector.faces["alice-img"] = [][]float32{{1, 0, 0}}
	env.detector.faces["bob-img"] = [][]float32{{0, 1, 0}}
	// Carol's image yields no face.

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/encodings", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	result := decodeBody[map[string]any](t, rec)
	if got := result["encoded"].(float64); got != 2 {
		t.Errorf("encoded = %v, want 2", got)
	}
	if got := result["skipped"].(float64); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	outcomes := result["outcomes"].([]any)
	if len(outcomes) != 3 {
		t.Fatalf("len(outcomes) = %d, want 3", len(outcomes))
	}

	// Encoded vectors are mirrored into the store, skipped ones cleared.
	if env.store.ReferenceEmbedding(aliceID) == nil {
		t.Error("alice embedding not mirrored into store")
	}
	if env.store.ReferenceEmbedding(bobID) == nil {
		t.Error("bob embedding not mirrored into store")
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/encodings", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list encodings status = %d, want %d", rec.Code, http.StatusOK)
	}
	encodings := decodeBody[[]map[string]any](t, rec)
	if len(encodings) != 2 {
		t.Errorf("len(encodings) = %d, want 2 (carol has no face)", len(encodings))
	}
}

func TestRebuildFlagsDuplicateEnrollments(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)

	aliceID := env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))
	twinID := env.seedStudent(t, courseID, "R-002", "Alice T", []byte("twin-img"))
	env.seedStudent(t, courseID, "R-003", "Bob", []byte("bob-img"))

	// Two roll numbers enrolled from the same face.
	env.detector.faces["alice-img"] = [][]float32{{1, 0, 0}}
	env.detector.faces["twin-img"] = [][]float32{{1, 0, 0}}
	env.detector.faces["bob-img"] = [][]float32{{0, 1, 0}}

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/encodings", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d: %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[map[string]any](t, rec)

	duplicates, ok := result["possible_duplicates"].([]any)
	if !ok || len(duplicates) != 1 {
		t.Fatalf("possible_duplicates = %v, want exactly 1 pair", result["possible_duplicates"])
	}
	pair := duplicates[0].(map[string]any)
	if int64(pair["student_a"].(float64)) != aliceID || int64(pair["student_b"].(float64)) != twinID {
		t.Errorf("duplicate pair = %v, want (%d,%d)", pair, aliceID, twinID)
	}
}

func TestImageAttendance(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)

	env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))
	env.seedStudent(t, courseID, "R-002", "Bob", []byte("bob-img"))

	env.detector.faces["alice-img"] = [][]float32{{1, 0, 0}}
	env.detector.faces["bob-img"] = [][]float32{{0, 1, 0}}
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/encodings", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d: %s", rec.Code, rec.Body.String())
	}

	// Classroom photo contains only Alice's face.
	env.detector.faces["classroom"] = [][]float32{{1, 0, 0}}

	body, contentType := multipartBody(t, nil, "image", "class.jpg", []byte("classroom"))
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/attendance/image", courseID), body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("image attendance status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	report := decodeBody[map[string]any](t, rec)
	if got := report["present_count"].(float64); got != 1 {
		t.Errorf("present_count = %v, want 1", got)
	}
	students := report["students"].([]any)
	if len(students) != 2 {
		t.Fatalf("report covers %d students, want full roster of 2", len(students))
	}

	// Everyone gets a row for today, present or not.
	if got := env.store.AttendanceCount(); got != 2 {
		t.Errorf("attendance rows = %d, want 2", got)
	}

	// Running the same photo again must not create duplicate rows.
	body, contentType = multipartBody(t, nil, "image", "class.jpg", []byte("classroom"))
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/attendance/image", courseID), body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat image attendance status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := env.store.AttendanceCount(); got != 2 {
		t.Errorf("attendance rows after repeat = %d, want 2", got)
	}
}

func TestVideoAttendance(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)

	env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))
	env.seedStudent(t, courseID, "R-002", "Bob", []byte("bob-img"))

	env.detector.faces["alice-img"] = [][]float32{{1, 0, 0}}
	env.detector.faces["bob-img"] = [][]float32{{0, 1, 0}}
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/encodings", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild status = %d: %s", rec.Code, rec.Body.String())
	}

	// Stride is 2: frames 2 and 4 are sampled. Alice shows up on frame
	// 2, Bob on frame 4, and frame 3 would match nobody but is skipped
	// anyway.
	env.detector.faces["frame-alice"] = [][]float32{{1, 0, 0}}
	env.detector.faces["frame-bob"] = [][]float32{{0, 1, 0}}
	*env.frames = [][]byte{
		[]byte("frame-skip-1"),
		[]byte("frame-alice"),
		[]byte("frame-skip-2"),
		[]byte("frame-bob"),
	}

	body, contentType := multipartBody(t, nil, "video", "class.mp4", []byte("video-bytes"))
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/attendance/video", courseID), body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("video attendance status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	report := decodeBody[map[string]any](t, rec)
	if got := report["present_count"].(float64); got != 2 {
		t.Errorf("present_count = %v, want 2 (union across sampled frames)", got)
	}
}

func TestTodayDefaultsAbsent(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)
	env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))
	env.seedStudent(t, courseID, "R-002", "Bob", []byte("bob-img"))

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/attendance/today", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("today status = %d, want %d", rec.Code, http.StatusOK)
	}
	result := decodeBody[map[string]any](t, rec)
	entries := result["attendance"].([]any)
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, raw := range entries {
		entry := raw.(map[string]any)
		if entry["status"] != "Absent" {
			t.Errorf("student %v status = %v, want Absent with no records", entry["roll_no"], entry["status"])
		}
	}
}

func TestManualUpdate(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)
	aliceID := env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))

	rec := env.doJSON(t, http.MethodPut,
		fmt.Sprintf("/api/v1/courses/%d/attendance/%d", courseID, aliceID),
		map[string]string{"status": "Present"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/attendance/today", courseID), nil, "")
	result := decodeBody[map[string]any](t, rec)
	entries := result["attendance"].([]any)
	if got := entries[0].(map[string]any)["status"]; got != "Present" {
		t.Errorf("status after manual update = %v, want Present", got)
	}

	// Invalid status is rejected.
	rec = env.doJSON(t, http.MethodPut,
		fmt.Sprintf("/api/v1/courses/%d/attendance/%d", courseID, aliceID),
		map[string]string{"status": "Late"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status update = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	courseID := env.createCourse(t)
	aliceID := env.seedStudent(t, courseID, "R-001", "Alice", []byte("alice-img"))

	err := env.store.UpsertAttendance(context.Background(), store.AttendanceRecord{
		StudentID: aliceID,
		CourseID:  courseID,
		Date:      "2026-02-10",
		Status:    store.StatusPresent,
		MarkedAt:  "09:15:00",
	})
	if err != nil {
		t.Fatalf("seeding attendance: %v", err)
	}

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/courses/%d/attendance/export", courseID), nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Errorf("Content-Disposition = %q, want attachment", got)
	}

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("CSV has %d lines, want header + 1 row", len(lines))
	}
	if !strings.Contains(lines[1], "R-001") || !strings.Contains(lines[1], "Present") {
		t.Errorf("CSV row = %q, want roll number and status", lines[1])
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestInvalidCourseID(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/courses/banana/students", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d for non-numeric course ID", rec.Code, http.StatusBadRequest)
	}
}
