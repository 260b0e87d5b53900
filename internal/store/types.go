// Package store defines the persistence entities and the interfaces
// the engine consumes. Implementations live in the postgres and mis
// subpackages; mock holds test doubles.
package store

import "time"

// Status is an attendance status.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

// DateFormat is the calendar-day key format for attendance records.
const DateFormat = "2006-01-02"

// TimeFormat is the time-of-mark format.
const TimeFormat = "15:04:05"

// Today returns the current date key.
func Today() string {
	return time.Now().Format(DateFormat)
}

// Teacher is an account that owns courses.
type Teacher struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
}

// Course groups students under one teacher.
type Course struct {
	ID        int64
	Name      string
	Code      string
	TeacherID int64
}

// Student is one roster entry with an optional enrollment image.
type Student struct {
	ID        int64
	CourseID  int64
	RollNo    string
	Name      string
	ImagePath string
}

// AttendanceRecord is the calendar-day-scoped attendance singleton
// for one student in one course. At most one record exists per
// (StudentID, CourseID, Date); the store enforces this.
type AttendanceRecord struct {
	ID        int64
	StudentID int64
	CourseID  int64
	Date      string // DateFormat
	Status    Status
	MarkedAt  string // TimeFormat
}
