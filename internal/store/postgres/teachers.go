package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/classware/attendance/internal/store"
)

// TeacherRepository implements store.TeacherStore.
type TeacherRepository struct {
	pool *Pool
}

func NewTeacherRepository(pool *Pool) *TeacherRepository {
	return &TeacherRepository{pool: pool}
}

func (r *TeacherRepository) CreateTeacher(ctx context.Context, t store.Teacher) (int64, error) {
	var id int64
	err := r.pool.db.QueryRowContext(ctx, `
		INSERT INTO teachers (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`, t.Name, t.Email, t.PasswordHash).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating teacher: %w", translateErr(err))
	}
	return id, nil
}

func (r *TeacherRepository) TeacherByEmail(ctx context.Context, email string) (*store.Teacher, error) {
	var t store.Teacher
	err := r.pool.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash
		FROM teachers
		WHERE email = $1
	`, email).Scan(&t.ID, &t.Name, &t.Email, &t.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying teacher by email: %w", err)
	}
	return &t, nil
}
