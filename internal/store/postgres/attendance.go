package postgres

import (
	"context"
	"fmt"

	"github.com/classware/attendance/internal/store"
)

// AttendanceRepository implements store.AttendanceStore.
type AttendanceRepository struct {
	pool *Pool
}

func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// UpsertAttendance writes the day's record for one student. The
// single-statement ON CONFLICT upsert makes concurrent calls for the
// same (student, course, date) race-free: exactly one row survives
// and the last writer's status and time win.
func (r *AttendanceRepository) UpsertAttendance(ctx context.Context, rec store.AttendanceRecord) error {
	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO attendance (student_id, course_id, date, status, marked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course_id, date)
		DO UPDATE SET status = EXCLUDED.status, marked_at = EXCLUDED.marked_at
	`, rec.StudentID, rec.CourseID, rec.Date, rec.Status, rec.MarkedAt)
	if err != nil {
		return fmt.Errorf("upserting attendance: %w", err)
	}
	return nil
}

func (r *AttendanceRepository) AttendanceForDay(ctx context.Context, courseID int64, date string) ([]store.AttendanceRecord, error) {
	return r.queryRecords(ctx, `
		SELECT id, student_id, course_id, to_char(date, 'YYYY-MM-DD'), status, to_char(marked_at, 'HH24:MI:SS')
		FROM attendance
		WHERE course_id = $1 AND date = $2
	`, courseID, date)
}

func (r *AttendanceRepository) AttendanceByCourse(ctx context.Context, courseID int64) ([]store.AttendanceRecord, error) {
	return r.queryRecords(ctx, `
		SELECT id, student_id, course_id, to_char(date, 'YYYY-MM-DD'), status, to_char(marked_at, 'HH24:MI:SS')
		FROM attendance
		WHERE course_id = $1
		ORDER BY date, student_id
	`, courseID)
}

func (r *AttendanceRepository) queryRecords(ctx context.Context, query string, args ...any) ([]store.AttendanceRecord, error) {
	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attendance: %w", err)
	}
	defer rows.Close()

	var records []store.AttendanceRecord
	for rows.Next() {
		var rec store.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.CourseID, &rec.Date, &rec.Status, &rec.MarkedAt); err != nil {
			return nil, fmt.Errorf("scanning attendance record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
