// Package attendance turns a present-set into the day's full-roster
// attendance state and persists it.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/classware/attendance/internal/recognition"
	"github.com/classware/attendance/internal/store"
)

// Row is one roster member's status in a reconciliation report.
type Row struct {
	StudentID int64        `json:"student_id"`
	RollNo    string       `json:"roll_no"`
	Name      string       `json:"name"`
	Status    store.Status `json:"status"`
}

// Upserter is the slice of the store the reconciler needs.
type Upserter interface {
	UpsertAttendance(ctx context.Context, rec store.AttendanceRecord) error
}

// Reconciler writes per-day attendance records. Now is overridable
// for tests and defaults to time.Now.
type Reconciler struct {
	Store Upserter
	Now   func() time.Time
}

// Reconcile produces one row per roster member — Present iff the
// member is in the present set, Absent otherwise — and upserts each
// row keyed by (student, course, date). Repeating the call on the
// same day overwrites status and time: the last call wins, there is
// no accumulation across calls.
func (r *Reconciler) Reconcile(ctx context.Context, courseID int64, date string, present recognition.PresentSet, roster []store.Student) ([]Row, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	markedAt := now().Format(store.TimeFormat)

	rows := make([]Row, 0, len(roster))
	for _, s := range roster {
		status := store.StatusAbsent
		if present.Contains(s.ID) {
			status = store.StatusPresent
		}
		rows = append(rows, Row{
			StudentID: s.ID,
			RollNo:    s.RollNo,
			Name:      s.Name,
			Status:    status,
		})

		err := r.Store.UpsertAttendance(ctx, store.AttendanceRecord{
			StudentID: s.ID,
			CourseID:  courseID,
			Date:      date,
			Status:    status,
			MarkedAt:  markedAt,
		})
		if err != nil {
			return rows, fmt.Errorf("marking student %d: %w", s.ID, err)
		}
	}
	return rows, nil
}
