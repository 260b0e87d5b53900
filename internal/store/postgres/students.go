package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/classware/attendance/internal/store"
)

// StudentRepository implements store.StudentStore.
type StudentRepository struct {
	pool *Pool
}

func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

func (r *StudentRepository) CreateStudent(ctx context.Context, s store.Student) (int64, error) {
	var id int64
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO students (course_id, roll_no, name, image_path)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, s.CourseID, s.RollNo, s.Name, s.ImagePath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating student: %w", translateErr(err))
	}
	return id, nil
}

func (r *StudentRepository) StudentsByCourse(ctx context.Context, courseID int64) ([]store.Student, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, course_id, roll_no, name, image_path
		FROM students
		WHERE course_id = $1
		ORDER BY roll_no
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("querying students: %w", err)
	}
	defer rows.Close()

	var students []store.Student
	for rows.Next() {
		var s store.Student
		if err := rows.Scan(&s.ID, &s.CourseID, &s.RollNo, &s.Name, &s.ImagePath); err != nil {
			return nil, fmt.Errorf("scanning student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// SetReferenceEmbedding mirrors the current reference vector for a
// student. A nil vector clears the column, marking the student as
// having no usable reference.
func (r *StudentRepository) SetReferenceEmbedding(ctx context.Context, studentID int64, vector []float32) error {
	var err error
	if vector == nil {
		_, err = r.pool.db.ExecContext(ctx,
			"UPDATE students SET ref_embedding = NULL WHERE id = $1", studentID)
	} else {
		_, err = r.pool.db.ExecContext(ctx,
			"UPDATE students SET ref_embedding = $2 WHERE id = $1",
			studentID, pgvector.NewVector(vector))
	}
	if err != nil {
		return fmt.Errorf("updating reference embedding: %w", err)
	}
	return nil
}
