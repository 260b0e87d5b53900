// Package mock provides in-memory implementations of the store
// interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/classware/attendance/internal/store"
)

// Store is an in-memory store implementing TeacherStore, CourseStore,
// StudentStore and AttendanceStore, with per-method error injection.
type Store struct {
	mu         sync.Mutex
	nextID     int64
	teachers   map[int64]store.Teacher
	courses    map[int64]store.Course
	students   map[int64]store.Student
	attendance map[string]store.AttendanceRecord // key: student|course|date
	embeddings map[int64][]float32

	// Error injection
	CreateError error
	QueryError  error
	UpsertError error
}

// New creates an empty mock store.
func New() *Store {
	return &Store{
		teachers:   make(map[int64]store.Teacher),
		courses:    make(map[int64]store.Course),
		students:   make(map[int64]store.Student),
		attendance: make(map[string]store.AttendanceRecord),
		embeddings: make(map[int64][]float32),
	}
}

func attendanceKey(studentID, courseID int64, date string) string {
	return fmt.Sprintf("%d|%d|%s", studentID, courseID, date)
}

func (m *Store) allocID() int64 {
	m.nextID++
	return m.nextID
}

func (m *Store) CreateTeacher(ctx context.Context, t store.Teacher) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.teachers {
		if existing.Email == t.Email {
			return 0, store.ErrDuplicate
		}
	}
	t.ID = m.allocID()
	m.teachers[t.ID] = t
	return t.ID, nil
}

func (m *Store) TeacherByEmail(ctx context.Context, email string) (*store.Teacher, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teachers {
		if t.Email == email {
			copied := t
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) CreateCourse(ctx context.Context, c store.Course) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.courses {
		if existing.Code == c.Code {
			return 0, store.ErrDuplicate
		}
	}
	c.ID = m.allocID()
	m.courses[c.ID] = c
	return c.ID, nil
}

func (m *Store) CoursesByTeacher(ctx context.Context, teacherID int64) ([]store.Course, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var courses []store.Course
	for _, c := range m.courses {
		if c.TeacherID == teacherID {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (m *Store) CourseByID(ctx context.Context, courseID int64) (*store.Course, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[courseID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := c
	return &copied, nil
}

func (m *Store) CreateStudent(ctx context.Context, s store.Student) (int64, error) {
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.students {
		if existing.CourseID == s.CourseID && existing.RollNo == s.RollNo {
			return 0, store.ErrDuplicate
		}
	}
	s.ID = m.allocID()
	m.students[s.ID] = s
	return s.ID, nil
}

func (m *Store) StudentsByCourse(ctx context.Context, courseID int64) ([]store.Student, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var students []store.Student
	for _, s := range m.students {
		if s.CourseID == courseID {
			students = append(students, s)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RollNo < students[j].RollNo })
	return students, nil
}

func (m *Store) SetReferenceEmbedding(ctx context.Context, studentID int64, vector []float32) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if vector == nil {
		delete(m.embeddings, studentID)
		return nil
	}
	m.embeddings[studentID] = append([]float32(nil), vector...)
	return nil
}

// ReferenceEmbedding exposes the mirrored vector for assertions.
func (m *Store) ReferenceEmbedding(studentID int64) []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embeddings[studentID]
}

func (m *Store) UpsertAttendance(ctx context.Context, rec store.AttendanceRecord) error {
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendanceKey(rec.StudentID, rec.CourseID, rec.Date)
	if existing, ok := m.attendance[key]; ok {
		rec.ID = existing.ID
	} else {
		rec.ID = m.allocID()
	}
	m.attendance[key] = rec
	return nil
}

func (m *Store) AttendanceForDay(ctx context.Context, courseID int64, date string) ([]store.AttendanceRecord, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.CourseID == courseID && rec.Date == date {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records, nil
}

func (m *Store) AttendanceByCourse(ctx context.Context, courseID int64) ([]store.AttendanceRecord, error) {
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []store.AttendanceRecord
	for _, rec := range m.attendance {
		if rec.CourseID == courseID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}

// AttendanceCount returns the total number of stored records.
func (m *Store) AttendanceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.attendance)
}
