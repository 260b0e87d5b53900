// Package refstore owns the per-course reference embedding sets: it
// rebuilds them from enrollment images, persists them as snapshots,
// and restores them at startup. Published sets are immutable; a
// rebuild swaps in a whole new set under the lock.
package refstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/classware/attendance/internal/recognition"
)

// EncodeStatus is the per-student outcome of a rebuild.
type EncodeStatus string

const (
	StatusEncoded         EncodeStatus = "encoded"
	StatusNoFace          EncodeStatus = "no_face"
	StatusImageUnreadable EncodeStatus = "image_unreadable"
)

// EncodeOutcome reports what happened to one roster member during a
// rebuild. Students without StatusEncoded have no reference stored
// and can never match until re-encoded with a usable image.
type EncodeOutcome struct {
	StudentID int64        `json:"student_id"`
	RollNo    string       `json:"roll_no"`
	Name      string       `json:"name"`
	Status    EncodeStatus `json:"status"`
}

// EnrollInput is one roster member considered during a rebuild.
type EnrollInput struct {
	StudentID int64
	RollNo    string
	Name      string
	ImagePath string
}

// Repository holds the reference sets for all courses. Reads vastly
// outnumber writes; sets are replaced wholesale and never mutated in
// place, so readers always see a complete set.
type Repository struct {
	mu   sync.RWMutex
	dir  string
	sets map[int64]*recognition.CourseSet
}

// New creates a repository persisting snapshots under dir.
func New(dir string) *Repository {
	return &Repository{
		dir:  dir,
		sets: make(map[int64]*recognition.CourseSet),
	}
}

// Get returns the published reference set for a course. An unknown
// course yields an empty set, not an error.
func (r *Repository) Get(courseID int64) *recognition.CourseSet {
	r.mu.RLock()
	set := r.sets[courseID]
	r.mu.RUnlock()
	if set == nil {
		return recognition.NewCourseSet(courseID, nil)
	}
	return set
}

// Courses returns the IDs of all courses with a published set.
func (r *Repository) Courses() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.sets))
	for id := range r.sets {
		ids = append(ids, id)
	}
	return ids
}

// Rebuild re-encodes a course from its enrollment images. Each member
// with a readable image gets exactly one detector call; members whose
// image yields no face are omitted from the set but reported in the
// outcomes. The new set fully replaces any prior one and is persisted
// before publication.
func (r *Repository) Rebuild(ctx context.Context, courseID int64, roster []EnrollInput, det recognition.Detector) (*recognition.CourseSet, []EncodeOutcome, error) {
	refs := make([]recognition.Reference, 0, len(roster))
	outcomes := make([]EncodeOutcome, 0, len(roster))

	for _, in := range roster {
		if err := ctx.Err(); err != nil {
			return nil, outcomes, err
		}
		outcome := EncodeOutcome{StudentID: in.StudentID, RollNo: in.RollNo, Name: in.Name}

		image, err := os.ReadFile(in.ImagePath)
		if err != nil {
			outcome.Status = StatusImageUnreadable
			outcomes = append(outcomes, outcome)
			continue
		}

		embeddings, err := det.DetectEmbeddings(ctx, image)
		if err != nil {
			return nil, outcomes, fmt.Errorf("detecting face for student %d: %w", in.StudentID, err)
		}
		if len(embeddings) == 0 {
			outcome.Status = StatusNoFace
			outcomes = append(outcomes, outcome)
			continue
		}

		// First detected face is the reference, as enrolled.
		refs = append(refs, recognition.Reference{
			StudentID: in.StudentID,
			RollNo:    in.RollNo,
			Name:      in.Name,
			Vector:    recognition.Normalize(embeddings[0]),
		})
		outcome.Status = StatusEncoded
		outcomes = append(outcomes, outcome)
	}

	set := recognition.NewCourseSet(courseID, refs)
	if err := persistRefs(r.dir, courseID, refs); err != nil {
		return nil, outcomes, fmt.Errorf("persisting reference set for course %d: %w", courseID, err)
	}

	r.mu.Lock()
	r.sets[courseID] = set
	r.mu.Unlock()

	return set, outcomes, nil
}

// Persist rewrites the snapshot for a course from its published set.
// A course with no published references keeps no snapshot; a stale
// file is removed instead.
func (r *Repository) Persist(courseID int64) error {
	set := r.Get(courseID)
	return persistRefs(r.dir, courseID, set.References())
}

// RestoreAll scans the snapshot directory and publishes every course
// set it can read. Missing or corrupt snapshots are logged and
// skipped; restore never fails startup. Returns the number of courses
// restored.
func (r *Repository) RestoreAll() int {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		log.Printf("refstore: creating snapshot dir %s: %v", r.dir, err)
		return 0
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		log.Printf("refstore: reading snapshot dir %s: %v", r.dir, err)
		return 0
	}

	restored := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		courseID, ok := parseSnapshotName(entry.Name())
		if !ok {
			continue
		}

		refs, err := readSnapshot(snapshotPath(r.dir, courseID), courseID)
		if err != nil {
			log.Printf("refstore: skipping snapshot %s: %v", entry.Name(), err)
			continue
		}

		set := recognition.NewCourseSet(courseID, refs)
		r.mu.Lock()
		r.sets[courseID] = set
		r.mu.Unlock()
		restored++
	}

	log.Printf("refstore: restored reference sets for %d courses", restored)
	return restored
}
