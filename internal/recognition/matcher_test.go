package recognition

import (
	"math/rand"
	"testing"
)

func orthogonalSet() *CourseSet {
	return NewCourseSet(1, []Reference{
		{StudentID: 1, RollNo: "R1", Name: "Ada", Vector: []float32{1, 0, 0}},
		{StudentID: 2, RollNo: "R2", Name: "Ben", Vector: []float32{0, 1, 0}},
	})
}

func TestGreedy_MatchesClosestReference(t *testing.T) {
	set := orthogonalSet()

	present := Match([][]float32{{1, 0, 0}}, set, DefaultThreshold)

	if len(present) != 1 || !present.Contains(1) {
		t.Errorf("expected present set {1}, got %v", present.IDs())
	}
}

func TestGreedy_RejectsBelowThreshold(t *testing.T) {
	set := orthogonalSet()

	// Best similarity against either reference is 0.40, below 0.45.
	q := Normalize([]float32{0.4, 0, float32(0.9165151)})
	present := Match([][]float32{q}, set, DefaultThreshold)

	if len(present) != 0 {
		t.Errorf("expected empty present set for sub-threshold match, got %v", present.IDs())
	}
}

func TestGreedy_ThresholdIsStrict(t *testing.T) {
	set := NewCourseSet(1, []Reference{
		{StudentID: 1, Vector: []float32{1, 0}},
	})

	// Exactly at the threshold must not match.
	present := Greedy([][]float32{{1, 0}}, set, 1.0)
	if len(present) != 0 {
		t.Errorf("expected score equal to threshold to be rejected, got %v", present.IDs())
	}
}

func TestGreedy_TieBreaksToLowestStudentID(t *testing.T) {
	v := []float32{1, 0, 0}
	set := NewCourseSet(1, []Reference{
		{StudentID: 9, Vector: v},
		{StudentID: 3, Vector: v},
		{StudentID: 7, Vector: v},
	})

	id, _, ok := set.Nearest(v)
	if !ok || id != 3 {
		t.Errorf("expected tie to resolve to student 3, got %d (ok=%v)", id, ok)
	}
}

func TestGreedy_EmptyInputs(t *testing.T) {
	if got := Match(nil, orthogonalSet(), DefaultThreshold); len(got) != 0 {
		t.Errorf("expected empty set for no queries, got %v", got.IDs())
	}
	if got := Match([][]float32{{1, 0, 0}}, NewCourseSet(1, nil), DefaultThreshold); len(got) != 0 {
		t.Errorf("expected empty set for empty references, got %v", got.IDs())
	}
	if got := Match([][]float32{{1, 0, 0}}, nil, DefaultThreshold); len(got) != 0 {
		t.Errorf("expected empty set for nil reference set, got %v", got.IDs())
	}
}

func TestGreedy_Idempotent(t *testing.T) {
	set := orthogonalSet()
	queries := [][]float32{{1, 0, 0}, {0, 1, 0}}

	first := Match(queries, set, DefaultThreshold)
	second := Match(queries, set, DefaultThreshold)

	if len(first) != len(second) {
		t.Fatalf("expected identical present sets, got %v and %v", first.IDs(), second.IDs())
	}
	for id := range first {
		if !second.Contains(id) {
			t.Errorf("student %d missing from second run", id)
		}
	}
}

func TestGreedy_TwoFacesMayMatchSameStudent(t *testing.T) {
	set := NewCourseSet(1, []Reference{
		{StudentID: 1, Vector: []float32{1, 0, 0}},
	})

	// Greedy matching is independent per face; duplicates collapse in the set.
	present := Match([][]float32{{1, 0, 0}, {1, 0, 0}}, set, DefaultThreshold)
	if len(present) != 1 || !present.Contains(1) {
		t.Errorf("expected {1}, got %v", present.IDs())
	}
}

func TestCourseSet_OrderAndLookup(t *testing.T) {
	set := orthogonalSet()

	if set.Len() != 2 {
		t.Fatalf("expected 2 references, got %d", set.Len())
	}
	refs := set.References()
	if refs[0].StudentID != 1 || refs[1].StudentID != 2 {
		t.Errorf("expected references ordered by student ID, got %+v", refs)
	}
	if r, ok := set.Get(2); !ok || r.Name != "Ben" {
		t.Errorf("expected to find Ben for student 2, got %+v (ok=%v)", r, ok)
	}
	if _, ok := set.Get(99); ok {
		t.Error("expected lookup miss for unknown student")
	}
}

func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return Normalize(v)
}

// bruteForceArgmax is the reference answer: score every member,
// highest similarity wins, ties to the lowest student ID.
func bruteForceArgmax(set *CourseSet, query []float32) (int64, float64) {
	best := int64(0)
	bestScore := -2.0
	for _, r := range set.References() {
		if sim := Similarity(query, r.Vector); sim > bestScore {
			best, bestScore = r.StudentID, sim
		}
	}
	return best, bestScore
}

func TestNearest_AgreesWithExhaustiveScanAboveCutoff(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	// Well past the HNSW cutoff, so any approximate shortcut inside
	// Nearest would surface as a disagreement here.
	refs := make([]Reference, 0, 120)
	for i := 0; i < 120; i++ {
		refs = append(refs, Reference{StudentID: int64(i + 1), Vector: randomUnitVector(rng, 16)})
	}
	set := NewCourseSet(1, refs)
	if set.index == nil {
		t.Fatal("expected HNSW index above cutoff")
	}

	for i := 0; i < 500; i++ {
		query := randomUnitVector(rng, 16)
		wantID, wantScore := bruteForceArgmax(set, query)
		gotID, gotScore, ok := set.Nearest(query)
		if !ok {
			t.Fatalf("query %d: expected a nearest match", i)
		}
		if gotID != wantID || gotScore != wantScore {
			t.Fatalf("query %d: Nearest returned %d (%.4f), exhaustive scan says %d (%.4f)",
				i, gotID, gotScore, wantID, wantScore)
		}
	}
}

func TestSimilar_OrdersBestFirst(t *testing.T) {
	set := NewCourseSet(1, []Reference{
		{StudentID: 1, Vector: Normalize([]float32{1, 0, 0})},
		{StudentID: 2, Vector: Normalize([]float32{1, 0.2, 0})},
		{StudentID: 3, Vector: Normalize([]float32{0, 1, 0})},
	})

	got := set.Similar([]float32{1, 0, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(got))
	}
	if got[0].StudentID != 1 || got[1].StudentID != 2 {
		t.Errorf("expected neighbors [1 2], got [%d %d]", got[0].StudentID, got[1].StudentID)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("expected descending scores, got %f then %f", got[0].Score, got[1].Score)
	}

	if set.Similar(nil, 2) != nil {
		t.Error("expected nil for empty query")
	}
	if set.Similar([]float32{1, 0, 0}, 0) != nil {
		t.Error("expected nil for k=0")
	}
}

func TestFindDuplicates_FlagsNearIdenticalEnrollments(t *testing.T) {
	shared := Normalize([]float32{1, 0.01, 0})
	set := NewCourseSet(1, []Reference{
		{StudentID: 1, Vector: Normalize([]float32{1, 0, 0})},
		{StudentID: 2, Vector: shared},
		{StudentID: 3, Vector: Normalize([]float32{0, 1, 0})},
	})

	pairs := FindDuplicates(set, DefaultDuplicateThreshold)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 duplicate pair, got %d: %+v", len(pairs), pairs)
	}
	p := pairs[0]
	if p.StudentA != 1 || p.StudentB != 2 {
		t.Errorf("expected pair (1,2), got (%d,%d)", p.StudentA, p.StudentB)
	}
	if p.Score <= DefaultDuplicateThreshold {
		t.Errorf("expected score above threshold, got %f", p.Score)
	}
}

func TestFindDuplicates_CleanRosterFlagsNothing(t *testing.T) {
	if pairs := FindDuplicates(orthogonalSet(), DefaultDuplicateThreshold); len(pairs) != 0 {
		t.Errorf("expected no duplicates among orthogonal references, got %+v", pairs)
	}
}
