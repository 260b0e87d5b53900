package store

import (
	"context"
	"errors"
)

// ErrDuplicate is returned when an insert violates a uniqueness
// constraint (course code, roll number within a course, email).
var ErrDuplicate = errors.New("store: duplicate record")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

// TeacherStore manages teacher accounts.
type TeacherStore interface {
	CreateTeacher(ctx context.Context, t Teacher) (int64, error)
	TeacherByEmail(ctx context.Context, email string) (*Teacher, error)
}

// CourseStore manages courses.
type CourseStore interface {
	CreateCourse(ctx context.Context, c Course) (int64, error)
	CoursesByTeacher(ctx context.Context, teacherID int64) ([]Course, error)
	CourseByID(ctx context.Context, courseID int64) (*Course, error)
}

// RosterReader reads the student roster for a course.
type RosterReader interface {
	StudentsByCourse(ctx context.Context, courseID int64) ([]Student, error)
}

// StudentStore manages roster membership and enrollment state.
type StudentStore interface {
	RosterReader
	CreateStudent(ctx context.Context, s Student) (int64, error)
	// SetReferenceEmbedding mirrors the student's current reference
	// vector into the store; nil clears it.
	SetReferenceEmbedding(ctx context.Context, studentID int64, vector []float32) error
}

// AttendanceStore performs the per-day upsert and reads daily state.
// Upsert must be atomic on (StudentID, CourseID, Date): concurrent
// calls for the same key never produce duplicate rows.
type AttendanceStore interface {
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) error
	AttendanceForDay(ctx context.Context, courseID int64, date string) ([]AttendanceRecord, error)
	AttendanceByCourse(ctx context.Context, courseID int64) ([]AttendanceRecord, error)
}
