// Package mis reads rosters out of an existing school-management
// MariaDB so courses can be populated without retyping students.
// Read-only: the MIS schema is never written.
package mis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Pool manages a MariaDB connection pool to the MIS.
type Pool struct {
	db *sql.DB
}

// NewPool opens a connection pool against the MIS database.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MIS DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening MIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging MIS database: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing MIS connection: %w", err)
	}
	return nil
}

// RosterMember is one student row as the MIS holds it.
type RosterMember struct {
	RollNo string
	Name   string
}

// Roster reads the members of a class by its MIS class code. Rows
// with duplicate normalized names and roll numbers are collapsed,
// since MIS exports commonly repeat students across term rows.
func (p *Pool) Roster(ctx context.Context, classCode string) ([]RosterMember, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT s.roll_no, s.full_name
		FROM students s
		JOIN class_enrollments e ON e.student_id = s.id
		JOIN classes c ON c.id = e.class_id
		WHERE c.code = ?
		ORDER BY s.roll_no
	`, classCode)
	if err != nil {
		return nil, fmt.Errorf("querying MIS roster: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var members []RosterMember
	for rows.Next() {
		var m RosterMember
		if err := rows.Scan(&m.RollNo, &m.Name); err != nil {
			return nil, fmt.Errorf("scanning MIS roster row: %w", err)
		}
		key := m.RollNo + "|" + NormalizeName(m.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		members = append(members, m)
	}
	return members, rows.Err()
}
