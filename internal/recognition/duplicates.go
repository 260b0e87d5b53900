package recognition

// DefaultDuplicateThreshold is the similarity above which two
// enrollment references are flagged as probably the same person.
// Distinct people rarely exceed it; the same photo enrolled twice
// always does.
const DefaultDuplicateThreshold = 0.92

// DuplicatePair flags two enrollments whose reference embeddings are
// suspiciously close. StudentA < StudentB; each pair appears once.
type DuplicatePair struct {
	StudentA int64
	StudentB int64
	Score    float64
}

// FindDuplicates scans a course's references for pairs that look like
// the same person enrolled under two roll numbers. Advisory only: the
// pairs are reported after a rebuild so a teacher can clean up the
// roster, nothing is removed automatically.
func FindDuplicates(set *CourseSet, threshold float64) []DuplicatePair {
	var pairs []DuplicatePair
	for _, ref := range set.References() {
		// k=2 because the reference itself is its own best neighbor.
		for _, n := range set.Similar(ref.Vector, 2) {
			if n.StudentID <= ref.StudentID {
				continue
			}
			if n.Score > threshold {
				pairs = append(pairs, DuplicatePair{
					StudentA: ref.StudentID,
					StudentB: n.StudentID,
					Score:    n.Score,
				})
			}
		}
	}
	return pairs
}
