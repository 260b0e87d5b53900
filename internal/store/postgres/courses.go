package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classware/attendance/internal/store"
)

// CourseRepository implements store.CourseStore.
type CourseRepository struct {
	pool *Pool
}

func NewCourseRepository(pool *Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

func (r *CourseRepository) CreateCourse(ctx context.Context, c store.Course) (int64, error) {
	var id int64
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO courses (name, code, teacher_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, c.Name, c.Code, c.TeacherID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating course: %w", translateErr(err))
	}
	return id, nil
}

func (r *CourseRepository) CoursesByTeacher(ctx context.Context, teacherID int64) ([]store.Course, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, name, code, teacher_id
		FROM courses
		WHERE teacher_id = $1
		ORDER BY id
	`, teacherID)
	if err != nil {
		return nil, fmt.Errorf("querying courses: %w", err)
	}
	defer rows.Close()

	var courses []store.Course
	for rows.Next() {
		var c store.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.TeacherID); err != nil {
			return nil, fmt.Errorf("scanning course: %w", err)
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (r *CourseRepository) CourseByID(ctx context.Context, courseID int64) (*store.Course, error) {
	var c store.Course
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, code, teacher_id
		FROM courses
		WHERE id = $1
	`, courseID).Scan(&c.ID, &c.Name, &c.Code, &c.TeacherID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying course: %w", err)
	}
	return &c, nil
}
