package refstore

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/classware/attendance/internal/recognition"
)

// snapshotVersion guards against silently misparsing snapshots
// written by a different schema. Bump on any change to snapshotFile.
const snapshotVersion = 1

// snapshotFile is the on-disk form of one course's reference set.
type snapshotFile struct {
	Version  int
	CourseID int64
	SavedAt  time.Time
	Refs     []recognition.Reference
}

func snapshotPath(dir string, courseID int64) string {
	return filepath.Join(dir, fmt.Sprintf("course_%d_refs.gob", courseID))
}

// parseSnapshotName extracts the course ID from a snapshot filename.
func parseSnapshotName(name string) (int64, bool) {
	var courseID int64
	if n, err := fmt.Sscanf(name, "course_%d_refs.gob", &courseID); err != nil || n != 1 {
		return 0, false
	}
	return courseID, true
}

// persistRefs writes the course snapshot, or removes it when there is
// nothing to keep: an empty snapshot would read back at startup as a
// restored course.
func persistRefs(dir string, courseID int64, refs []recognition.Reference) error {
	path := snapshotPath(dir, courseID)
	if len(refs) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing empty snapshot: %w", err)
		}
		return nil
	}
	return writeSnapshot(path, courseID, refs)
}

// writeSnapshot serializes the references to a temp file and renames
// it into place, so a crash mid-write never corrupts the previous
// snapshot.
func writeSnapshot(path string, courseID int64, refs []recognition.Reference) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "refs-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	snap := snapshotFile{
		Version:  snapshotVersion,
		CourseID: courseID,
		SavedAt:  time.Now(),
		Refs:     refs,
	}
	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// readSnapshot loads and validates one course snapshot.
func readSnapshot(path string, courseID int64) ([]recognition.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshotFile
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.CourseID != courseID {
		return nil, fmt.Errorf("snapshot course ID %d does not match filename course %d", snap.CourseID, courseID)
	}
	return snap.Refs, nil
}
