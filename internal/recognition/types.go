// Package recognition implements the face matching core: cosine
// similarity over reference embeddings, per-image matching, and
// stride-sampled video matching.
package recognition

import (
	"context"
	"sort"
)

// Reference is one enrolled student's face embedding plus the display
// metadata needed to report on them. Vector is unit-norm.
type Reference struct {
	StudentID int64
	RollNo    string
	Name      string
	Vector    []float32
}

// CourseSet is the complete reference set for one course. It is built
// once and never mutated afterwards; the repository publishes a new
// set wholesale on every rebuild.
type CourseSet struct {
	courseID int64
	refs     map[int64]Reference
	order    []int64 // ascending student IDs
	index    *hnswIndex
}

// NewCourseSet builds an immutable set from the given references.
// With indexCutoff or more references an HNSW index is built to back
// Similar; matching itself always scans every reference.
func NewCourseSet(courseID int64, refs []Reference) *CourseSet {
	s := &CourseSet{
		courseID: courseID,
		refs:     make(map[int64]Reference, len(refs)),
		order:    make([]int64, 0, len(refs)),
	}
	for _, r := range refs {
		if len(r.Vector) == 0 {
			continue
		}
		if _, ok := s.refs[r.StudentID]; !ok {
			s.order = append(s.order, r.StudentID)
		}
		s.refs[r.StudentID] = r
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	if len(s.order) >= indexCutoff {
		s.index = newHNSWIndex(s.refs, s.order)
	}
	return s
}

// CourseID returns the course this set belongs to.
func (s *CourseSet) CourseID() int64 {
	return s.courseID
}

// Len returns the number of references in the set.
func (s *CourseSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Get returns the reference for a student, if one exists.
func (s *CourseSet) Get(studentID int64) (Reference, bool) {
	if s == nil {
		return Reference{}, false
	}
	r, ok := s.refs[studentID]
	return r, ok
}

// References returns all references ordered by student ID.
func (s *CourseSet) References() []Reference {
	if s == nil {
		return nil
	}
	out := make([]Reference, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.refs[id])
	}
	return out
}

// Nearest returns the student whose reference is most similar to the
// query embedding, along with the similarity score. Every reference
// is scored; the HNSW index is never consulted here, since an
// approximate preselection can miss the true argmax and flip a match
// across the threshold. Equal scores resolve to the lowest student
// ID. ok is false for an empty set or empty query.
func (s *CourseSet) Nearest(query []float32) (studentID int64, score float64, ok bool) {
	if s.Len() == 0 || len(query) == 0 {
		return 0, 0, false
	}
	best := int64(0)
	bestScore := -2.0
	found := false
	for _, id := range s.order {
		sim := Similarity(query, s.refs[id].Vector)
		// order is ascending, so the first holder of a score wins ties.
		if sim > bestScore {
			best, bestScore, found = id, sim, true
		}
	}
	return best, bestScore, found
}

// Neighbor is one hit from a similarity search.
type Neighbor struct {
	StudentID int64
	Score     float64
}

// Similar returns up to k references most similar to the query, best
// first, ties on the lower student ID. Above the index cutoff the
// HNSW graph preselects candidates, so results are approximate; the
// attendance matcher never uses this, it serves enrollment hygiene
// checks where a near miss is harmless.
func (s *CourseSet) Similar(query []float32, k int) []Neighbor {
	if s.Len() == 0 || len(query) == 0 || k <= 0 {
		return nil
	}
	candidates := s.order
	if s.index != nil {
		candidates = s.index.candidates(query, k)
	}
	neighbors := make([]Neighbor, 0, len(candidates))
	for _, id := range candidates {
		neighbors = append(neighbors, Neighbor{StudentID: id, Score: Similarity(query, s.refs[id].Vector)})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Score != neighbors[j].Score {
			return neighbors[i].Score > neighbors[j].Score
		}
		return neighbors[i].StudentID < neighbors[j].StudentID
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// PresentSet is the set of students judged present from one image or
// one video.
type PresentSet map[int64]struct{}

// Add records a student as present.
func (p PresentSet) Add(studentID int64) {
	p[studentID] = struct{}{}
}

// Contains reports whether the student was judged present.
func (p PresentSet) Contains(studentID int64) bool {
	_, ok := p[studentID]
	return ok
}

// Union merges another present set into this one and returns it.
func (p PresentSet) Union(other PresentSet) PresentSet {
	for id := range other {
		p[id] = struct{}{}
	}
	return p
}

// IDs returns the member student IDs in ascending order.
func (p PresentSet) IDs() []int64 {
	ids := make([]int64, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Detector produces face embeddings for an encoded image. Zero
// embeddings means no face was found, which is a valid result.
type Detector interface {
	DetectEmbeddings(ctx context.Context, image []byte) ([][]float32, error)
}
